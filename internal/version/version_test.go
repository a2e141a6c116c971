package version

import (
	"errors"
	"fmt"
	"slices"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{"two components", "20.1", Version{Major: 20, Minor: 1}, false},
		{"single component", "20", Version{Major: 20, Minor: 0}, false},
		{"zero", "0.0", Version{}, false},
		{"large minor", "19.30", Version{Major: 19, Minor: 30}, false},
		{"invalid", "invalid", Version{}, true},
		{"invalid minor", "20.invalid", Version{}, true},
		{"invalid major", "invalid.1", Version{}, true},
		{"empty", "", Version{}, true},
		{"trailing dot", "20.", Version{}, true},
		{"three components", "20.1.2", Version{}, true},
		{"negative", "-1.0", Version{}, true},
		{"plus sign", "+1.0", Version{}, true},
		{"whitespace", " 20.1", Version{}, true},
		{"overflow", "4294967296.0", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidVersion) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalidVersion", tt.input, err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for major := 0; major < 30; major += 7 {
		for minor := 0; minor < 12; minor += 3 {
			text := fmt.Sprintf("%d.%d", major, minor)
			v, err := Parse(text)
			if err != nil {
				t.Fatalf("Parse(%q): %v", text, err)
			}
			if v.String() != text {
				t.Errorf("round trip %q -> %q", text, v.String())
			}
		}
	}

	if got := MustParse("21").String(); got != "21.0" {
		t.Errorf("single component renders as %q, want 21.0", got)
	}
}

func TestOrdering(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"20.1", "21.0", -1},
		{"20.1", "20.2", -1},
		{"20.1", "20.1", 0},
		{"20", "20.0", 0},
		{"9", "10", -1},
		{"9.10", "9.9", 1},
		{"22.0", "21.3", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			a, b := MustParse(tt.a), MustParse(tt.b)
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := b.Compare(a); got != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
			if a.Less(b) != (tt.want < 0) {
				t.Errorf("Less(%s, %s) = %v", tt.a, tt.b, a.Less(b))
			}
		})
	}
}

func TestOrderingMatchesTuples(t *testing.T) {
	var all []Version
	for major := uint32(0); major < 4; major++ {
		for minor := uint32(0); minor < 4; minor++ {
			all = append(all, Version{Major: major, Minor: minor})
		}
	}

	for _, a := range all {
		for _, b := range all {
			tupleLess := a.Major < b.Major || (a.Major == b.Major && a.Minor < b.Minor)
			if a.Less(b) != tupleLess {
				t.Errorf("Less(%s, %s) = %v, want %v", a, b, a.Less(b), tupleLess)
			}
		}
	}
}

func TestSortNumeric(t *testing.T) {
	versions := []Version{MustParse("10"), MustParse("9.1"), MustParse("9"), MustParse("19.3")}
	slices.SortFunc(versions, Compare)

	want := []string{"9.0", "9.1", "10.0", "19.3"}
	for i, v := range versions {
		if v.String() != want[i] {
			t.Errorf("versions[%d] = %s, want %s", i, v, want[i])
		}
	}
}
