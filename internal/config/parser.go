package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Parser represents a Lua settings parser with platform detection.
type Parser struct {
	detector PlatformDetector
}

// NewParser creates a new settings parser with the given platform detector.
// A nil detector leaves the platform global undefined.
func NewParser(detector PlatformDetector) *Parser {
	return &Parser{detector: detector}
}

// Load reads the settings file at path. A missing file yields Defaults.
func (p *Parser) Load(ctx context.Context, path string) (*Settings, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	return p.ParseString(ctx, string(content))
}

// ParseString parses Lua settings from a string.
// Fields the file does not set keep their default value.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Settings, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		injectPlatformTable(L, info)
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractSettings(L)
}

// extractSettings reads the global "isos" table over a copy of Defaults.
// The table is optional: a file without it configures nothing.
func extractSettings(L *lua.LState) (*Settings, error) {
	settings := Defaults()

	global := L.GetGlobal(luaGlobalIsos)
	switch global.Type() {
	case lua.LTNil:
		return settings, nil
	case lua.LTTable:
	default:
		return nil, &ParseError{
			Message: "invalid 'isos' table",
			Detail:  fmt.Sprintf("expected table, got %s", global.Type()),
		}
	}
	table := global.(*lua.LTable)

	extractors := []struct {
		name string
		fn   func(*lua.LTable, *Settings) error
	}{
		{luaFieldUSB, extractUSB},
		{luaFieldVerify, extractVerify},
		{luaFieldDownload, extractDownload},
		{luaFieldLog, extractLog},
	}
	for _, ex := range extractors {
		section, err := subTable(table, ex.name)
		if err != nil {
			return nil, err
		}
		if section == nil {
			continue
		}
		if err := ex.fn(section, settings); err != nil {
			return nil, err
		}
	}

	if err := readBool(table, "", luaFieldHistory, &settings.History); err != nil {
		return nil, err
	}

	if err := settings.Validate(); err != nil {
		return nil, &ParseError{
			Message: "settings validation failed",
			Detail:  err.Error(),
		}
	}

	return settings, nil
}

func extractUSB(t *lua.LTable, s *Settings) error {
	if err := readString(t, luaFieldUSB, luaFieldPath, &s.USB.Path); err != nil {
		return err
	}
	path, err := expandHome(s.USB.Path)
	if err != nil {
		return &ParseError{Message: "invalid usb.path", Detail: err.Error()}
	}
	s.USB.Path = path

	if err := readBool(t, luaFieldUSB, luaFieldAutoDetect, &s.USB.AutoDetect); err != nil {
		return err
	}
	return readString(t, luaFieldUSB, luaFieldMarker, &s.USB.Marker)
}

func extractVerify(t *lua.LTable, s *Settings) error {
	var backend string
	if err := readString(t, luaFieldVerify, luaFieldBackend, &backend); err != nil {
		return err
	}
	if backend != "" {
		s.Verify.Backend = Backend(strings.ToLower(backend))
	}
	return readString(t, luaFieldVerify, luaFieldKeyserver, &s.Verify.Keyserver)
}

func extractDownload(t *lua.LTable, s *Settings) error {
	if err := readInt(t, luaFieldDownload, luaFieldRetries, &s.Download.Retries); err != nil {
		return err
	}
	if err := readDuration(t, luaFieldDownload, luaFieldTimeout, &s.Download.Timeout); err != nil {
		return err
	}
	return readString(t, luaFieldDownload, luaFieldUserAgent, &s.Download.UserAgent)
}

func extractLog(t *lua.LTable, s *Settings) error {
	if err := readString(t, luaFieldLog, luaFieldLevel, &s.Log.Level); err != nil {
		return err
	}
	if err := readString(t, luaFieldLog, luaFieldFormat, &s.Log.Format); err != nil {
		return err
	}
	return readBool(t, luaFieldLog, luaFieldFile, &s.Log.File)
}

// subTable returns the named table field, nil when absent.
func subTable(t *lua.LTable, name string) (*lua.LTable, error) {
	v := t.RawGetString(name)
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTTable:
		return v.(*lua.LTable), nil
	default:
		return nil, typeError("", name, "table", v)
	}
}

func readString(t *lua.LTable, section, field string, dst *string) error {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTString:
		*dst = v.String()
		return nil
	default:
		return typeError(section, field, "string", v)
	}
}

func readBool(t *lua.LTable, section, field string, dst *bool) error {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTBool:
		*dst = bool(v.(lua.LBool))
		return nil
	default:
		return typeError(section, field, "boolean", v)
	}
}

func readInt(t *lua.LTable, section, field string, dst *int) error {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTNumber:
		n := float64(lua.LVAsNumber(v))
		if n != math.Trunc(n) {
			return &ParseError{Message: "invalid " + qualified(section, field), Detail: fmt.Sprintf("expected integer, got %v", n)}
		}
		*dst = int(n)
		return nil
	default:
		return typeError(section, field, "number", v)
	}
}

// readDuration accepts a Go duration string ("30m") or a number of seconds.
func readDuration(t *lua.LTable, section, field string, dst *time.Duration) error {
	v := t.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil
	case lua.LTString:
		d, err := time.ParseDuration(v.String())
		if err != nil {
			return &ParseError{Message: "invalid " + qualified(section, field), Detail: err.Error()}
		}
		*dst = d
		return nil
	case lua.LTNumber:
		*dst = time.Duration(float64(lua.LVAsNumber(v)) * float64(time.Second))
		return nil
	default:
		return typeError(section, field, "duration string", v)
	}
}

func typeError(section, field, want string, got lua.LValue) error {
	return &ParseError{
		Message: "invalid " + qualified(section, field),
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

func qualified(section, field string) string {
	if section == "" {
		return field
	}
	return section + "." + field
}

// expandHome expands a leading "~/" to the user's home directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, path[2:]), nil
}
