package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Generator generates Lua settings code from Settings.
type Generator struct {
	indent string // Indentation string (default: two spaces)
}

// NewGenerator creates a new Lua settings generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ", // Two spaces
	}
}

// Generate renders settings as an annotated isos.lua file.
// The output parses back to the same Settings.
func (g *Generator) Generate(s *Settings) string {
	var buf bytes.Buffer

	buf.WriteString("-- iso-updater settings\n")
	buf.WriteString("--\n")
	buf.WriteString("-- Sources are managed with `iso-updater source add|remove`; this file only\n")
	buf.WriteString("-- configures how they are fetched, verified and mirrored. A read-only\n")
	buf.WriteString("-- `platform` table (os, arch, hostname, distro) is available.\n\n")

	buf.WriteString("isos = {\n")

	g.section(&buf, "Removable drive mirror. Leave path empty to auto-detect a mounted\n"+
		"-- partition containing the marker directory.", luaFieldUSB, [][2]string{
		{luaFieldPath, g.quoteLuaString(s.USB.Path)},
		{luaFieldAutoDetect, strconv.FormatBool(s.USB.AutoDetect)},
		{luaFieldMarker, g.quoteLuaString(s.USB.Marker)},
	})

	g.section(&buf, "Signature verification: \"openpgp\" (built in) or \"gpg\".", luaFieldVerify, [][2]string{
		{luaFieldBackend, g.quoteLuaString(string(s.Verify.Backend))},
		{luaFieldKeyserver, g.quoteLuaString(s.Verify.Keyserver)},
	})

	g.section(&buf, "", luaFieldDownload, [][2]string{
		{luaFieldRetries, strconv.Itoa(s.Download.Retries)},
		{luaFieldTimeout, g.quoteLuaString(s.Download.Timeout.String())},
		{luaFieldUserAgent, g.quoteLuaString(s.Download.UserAgent)},
	})

	g.section(&buf, "level: debug, info, warn, error. format: text or json.", luaFieldLog, [][2]string{
		{luaFieldLevel, g.quoteLuaString(s.Log.Level)},
		{luaFieldFormat, g.quoteLuaString(s.Log.Format)},
		{luaFieldFile, strconv.FormatBool(s.Log.File)},
	})

	buf.WriteString(g.indent)
	buf.WriteString("-- Commit every change of data.json to a local git history.\n")
	buf.WriteString(g.indent)
	buf.WriteString(fmt.Sprintf("%s = %t,\n", luaFieldHistory, s.History))

	buf.WriteString("}\n")

	return buf.String()
}

// section writes one nested table with an optional comment above it.
func (g *Generator) section(buf *bytes.Buffer, comment, name string, fields [][2]string) {
	if comment != "" {
		for _, line := range strings.Split(comment, "\n") {
			buf.WriteString(g.indent)
			if !strings.HasPrefix(line, "--") {
				buf.WriteString("-- ")
			}
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}

	buf.WriteString(g.indent)
	buf.WriteString(name)
	buf.WriteString(" = {\n")
	for _, f := range fields {
		buf.WriteString(g.indent)
		buf.WriteString(g.indent)
		buf.WriteString(f[0])
		buf.WriteString(" = ")
		buf.WriteString(f[1])
		buf.WriteString(",\n")
	}
	buf.WriteString(g.indent)
	buf.WriteString("},\n\n")
}

// quoteLuaString quotes a string for Lua, handling special characters.
func (g *Generator) quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
