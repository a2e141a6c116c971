package state

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://github.com/GideonBear/iso-updater/schema/data.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add state schema: %w", err)
	}
	return compiler.Compile(schemaURL)
})

// validateSchema checks a decoded JSON document against the state schema.
func validateSchema(doc any) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile state schema: %w", err)
	}
	return schema.Validate(doc)
}
