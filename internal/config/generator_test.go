package config

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestGenerator_GenerateParsesBack(t *testing.T) {
	tests := []struct {
		name     string
		settings *Settings
	}{
		{"defaults", Defaults()},
		{
			name: "customised",
			settings: &Settings{
				USB:      USBSettings{Path: `/media/me/My "Ventoy"`, AutoDetect: false, Marker: "ventoy"},
				Verify:   VerifySettings{Backend: BackendGPG, Keyserver: "hkp://pool.sks-keyservers.net"},
				Download: DownloadSettings{Retries: 0, Timeout: 90 * time.Second, UserAgent: "ua\twith tab"},
				Log:      LogSettings{Level: "warn", Format: "json", File: false},
				History:  false,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := NewGenerator().Generate(tt.settings)
			if !strings.HasPrefix(code, "-- iso-updater settings") {
				t.Errorf("missing header:\n%s", code)
			}

			parsed, err := NewParser(nil).ParseString(context.Background(), code)
			if err != nil {
				t.Fatalf("generated code does not parse: %v\n%s", err, code)
			}
			if *parsed != *tt.settings {
				t.Errorf("parsed = %+v\nwant %+v", *parsed, *tt.settings)
			}
		})
	}
}

func TestGenerator_QuoteLuaString(t *testing.T) {
	g := NewGenerator()
	tests := []struct {
		in   string
		want string
	}{
		{`plain`, `"plain"`},
		{`a"b`, `"a\"b"`},
		{`back\slash`, `"back\\slash"`},
		{"new\nline", `"new\nline"`},
	}
	for _, tt := range tests {
		if got := g.quoteLuaString(tt.in); got != tt.want {
			t.Errorf("quoteLuaString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
