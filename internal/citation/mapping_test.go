package citation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		in      string
		want    Rule
		wantErr bool
	}{
		{"r1=r100", Rule{Old: "r1", New: "r100"}, false},
		{" r1 = r100 ", Rule{Old: "r1", New: "r100"}, false},
		{"r1=", Rule{}, true},
		{"r1", Rule{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRule(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRule(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRule(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestMapping_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr bool
	}{
		{"valid", []Rule{{Old: "a", New: "b"}, DropRule("c")}, false},
		{"repeated identical rule", []Rule{{Old: "a", New: "b"}, {Old: "a", New: "b"}}, false},
		{"merge", []Rule{{Old: "a", New: "x"}, {Old: "b", New: "x"}}, false},
		{"conflicting rules", []Rule{{Old: "a", New: "b"}, {Old: "a", New: "c"}}, true},
		{"drop and rename", []Rule{{Old: "a", New: "b", Drop: true}}, true},
		{"empty old", []Rule{{Old: "", New: "b"}}, true},
		{"empty new", []Rule{{Old: "a"}}, true},
		{"comma in new", []Rule{{Old: "a", New: "b,c"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Mapping{Rules: tt.rules}.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMapping_Invert(t *testing.T) {
	m := Mapping{Rules: []Rule{{Old: "a", New: "b"}, {Old: "b", New: "c"}}}
	inv, err := m.Invert()
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	want := []Rule{{Old: "b", New: "a"}, {Old: "c", New: "b"}}
	if diff := cmp.Diff(want, inv.Rules); diff != "" {
		t.Errorf("inverse (-want +got):\n%s", diff)
	}

	if _, err := (Mapping{Rules: []Rule{DropRule("a")}}).Invert(); err == nil {
		t.Error("expected error inverting a drop")
	}
	if _, err := (Mapping{Rules: []Rule{{Old: "a", New: "x"}, {Old: "b", New: "x"}}}).Invert(); err == nil {
		t.Error("expected error inverting a merge")
	}
}

func TestMapping_Identity(t *testing.T) {
	if !(Mapping{Rules: []Rule{{Old: "a", New: "a"}}}).Identity() {
		t.Error("expected identity")
	}
	if (Mapping{Rules: []Rule{{Old: "a", New: "b"}}}).Identity() {
		t.Error("expected non-identity")
	}
}

func TestLoadMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.yml")
	content := `temp_prefix: TMP_
rules:
  - old: r42
    new: r47
  - old: r46
    drop: true
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMapping(path)
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	want := Mapping{TempPrefix: "TMP_", Rules: []Rule{{Old: "r42", New: "r47"}, {Old: "r46", Drop: true}}}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("mapping (-want +got):\n%s", diff)
	}
}

func TestParseMapping_Errors(t *testing.T) {
	if _, err := ParseMapping([]byte("rules:\n  - old: a\n    neww: b\n")); err == nil {
		t.Error("expected error for unknown field")
	}

	_, err := ParseMapping([]byte("rules:\n  - old: a\n    new: b\n  - old: a\n    new: c\n"))
	var me MappingError
	if !errors.As(err, &me) {
		t.Fatalf("expected MappingError, got %v", err)
	}
	if me.Rule != 1 {
		t.Errorf("expected rule index 1, got %d", me.Rule)
	}
}
