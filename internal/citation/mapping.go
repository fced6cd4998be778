package citation

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps one old key to a new key, or drops it.
type Rule struct {
	Old  string `yaml:"old" json:"old"`
	New  string `yaml:"new,omitempty" json:"new,omitempty"`
	Drop bool   `yaml:"drop,omitempty" json:"drop,omitempty"`
}

func (r Rule) String() string {
	if r.Drop {
		return r.Old + " -> (drop)"
	}
	return r.Old + " -> " + r.New
}

// Mapping is an ordered list of rules. Order only affects reporting;
// lookups are by exact key.
type Mapping struct {
	TempPrefix string `yaml:"temp_prefix,omitempty" json:"temp_prefix,omitempty"`
	Rules      []Rule `yaml:"rules" json:"rules"`
}

// Validate checks every rule and rejects conflicting rules for the same key.
func (m Mapping) Validate() error {
	seen := make(map[string]Rule)
	for i, r := range m.Rules {
		if !validKey(r.Old) {
			return MappingError{Rule: i, Old: r.Old, Message: "old key is empty or contains whitespace, braces or commas"}
		}
		if r.Drop && r.New != "" {
			return MappingError{Rule: i, Old: r.Old, Message: "rule both drops and renames"}
		}
		if !r.Drop && !validKey(r.New) {
			return MappingError{Rule: i, Old: r.Old, Message: "new key is empty or contains whitespace, braces or commas"}
		}
		if prev, ok := seen[r.Old]; ok && prev != r {
			return MappingError{Rule: i, Old: r.Old, Message: "conflicts with earlier rule " + prev.String()}
		}
		seen[r.Old] = r
	}
	return nil
}

// Identity reports whether every rule maps a key to itself.
func (m Mapping) Identity() bool {
	for _, r := range m.Rules {
		if r.Drop || r.Old != r.New {
			return false
		}
	}
	return true
}

// Invert returns the reverse mapping. Only bijective mappings without drops
// can be inverted.
func (m Mapping) Invert() (Mapping, error) {
	inv := Mapping{TempPrefix: m.TempPrefix}
	targets := make(map[string]string)
	for i, r := range m.Rules {
		if r.Drop {
			return Mapping{}, MappingError{Rule: i, Old: r.Old, Message: "cannot invert a drop"}
		}
		if prev, ok := targets[r.New]; ok && prev != r.Old {
			return Mapping{}, MappingError{Rule: i, Old: r.Old, Message: fmt.Sprintf("cannot invert merge into %q", r.New)}
		}
		targets[r.New] = r.Old
		inv.Rules = append(inv.Rules, Rule{Old: r.New, New: r.Old})
	}
	return inv, nil
}

// ParseRule parses "old=new". An empty right side is rejected; use DropRule to drop.
func ParseRule(s string) (Rule, error) {
	old, newKey, ok := strings.Cut(s, "=")
	if !ok {
		return Rule{}, fmt.Errorf("invalid rule %q: expected old=new", s)
	}
	old, newKey = strings.TrimSpace(old), strings.TrimSpace(newKey)
	if newKey == "" {
		return Rule{}, fmt.Errorf("invalid rule %q: empty new key (use --drop to remove a key)", s)
	}
	return Rule{Old: old, New: newKey}, nil
}

// DropRule returns a rule that removes key.
func DropRule(key string) Rule {
	return Rule{Old: strings.TrimSpace(key), Drop: true}
}

// ParseMapping decodes a YAML mapping document.
func ParseMapping(data []byte) (Mapping, error) {
	var m Mapping
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Mapping{}, fmt.Errorf("parsing mapping: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// LoadMapping reads a YAML mapping file.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mapping{}, fmt.Errorf("reading mapping: %w", err)
	}
	return ParseMapping(data)
}
