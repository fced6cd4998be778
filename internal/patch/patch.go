// Package patch applies declarative anchor-based edits to document text.
//
// An edit locates a literal (or regexp) anchor and replaces it, inserts text
// around it, or deletes it. A missing anchor skips that edit with a warning;
// an anchor found more than once where one was expected aborts the whole plan.
package patch

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/matsen/citefix/internal/citation"
	"gopkg.in/yaml.v3"
)

// Op is the kind of edit.
type Op string

const (
	OpReplace      Op = "replace"
	OpInsertAfter  Op = "insert_after"
	OpInsertBefore Op = "insert_before"
	OpDelete       Op = "delete"
)

// Edit is one anchor-based change.
type Edit struct {
	Name          string   `yaml:"name" json:"name"`
	Op            Op       `yaml:"op" json:"op"`
	Anchor        string   `yaml:"anchor" json:"anchor"`
	Alternatives  []string `yaml:"alternatives,omitempty" json:"alternatives,omitempty"` // Tried in order when Anchor is absent
	Text          string   `yaml:"text,omitempty" json:"text,omitempty"`
	All           bool     `yaml:"all,omitempty" json:"all,omitempty"`     // Apply to every occurrence
	Regex         bool     `yaml:"regex,omitempty" json:"regex,omitempty"` // Anchor is a regexp, Text an expansion template for replace
	SkipIfPresent string   `yaml:"skip_if_present,omitempty" json:"skip_if_present,omitempty"`
}

// Plan is an ordered list of edits.
type Plan struct {
	Edits []Edit `yaml:"edits"`
}

// Status is the outcome of one edit.
type Status string

const (
	StatusApplied        Status = "applied"
	StatusAlreadyApplied Status = "already_applied"
	StatusAnchorNotFound Status = "anchor_not_found"
)

// Outcome reports what one edit did.
type Outcome struct {
	Name    string `json:"name"`
	Op      Op     `json:"op"`
	Status  Status `json:"status"`
	Anchor  string `json:"anchor,omitempty"` // The anchor that matched
	Count   int    `json:"count,omitempty"`  // Occurrences changed
	Line    int    `json:"line,omitempty"`   // Line of the first occurrence
	Message string `json:"message,omitempty"`
}

// Validate checks that the edit is well-formed.
func (e Edit) Validate() error {
	switch e.Op {
	case OpReplace, OpInsertAfter, OpInsertBefore:
		if e.Text == "" {
			return fmt.Errorf("edit %q: %s requires text", e.Name, e.Op)
		}
	case OpDelete:
	default:
		return fmt.Errorf("edit %q: unknown op %q", e.Name, e.Op)
	}
	if e.Anchor == "" {
		return fmt.Errorf("edit %q: empty anchor", e.Name)
	}
	if e.Regex {
		for _, a := range e.anchors() {
			if _, err := regexp.Compile(a); err != nil {
				return fmt.Errorf("edit %q: invalid regexp: %w", e.Name, err)
			}
		}
	}
	return nil
}

func (e Edit) anchors() []string {
	return append([]string{e.Anchor}, e.Alternatives...)
}

// ParsePlan decodes a YAML edit plan and validates every edit.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}
	for i := range p.Edits {
		if p.Edits[i].Name == "" {
			p.Edits[i].Name = fmt.Sprintf("edit-%d", i+1)
		}
		if err := p.Edits[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// LoadPlan reads a YAML edit plan.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return ParsePlan(data)
}

// Apply runs edits in order, each on the output of the previous one. If any
// edit fails the original text is returned with the error.
func Apply(text string, edits []Edit) (string, []Outcome, error) {
	out := text
	outcomes := make([]Outcome, 0, len(edits))
	for _, e := range edits {
		if err := e.Validate(); err != nil {
			return text, outcomes, err
		}
		next, oc, err := applyOne(out, e)
		if err != nil {
			return text, outcomes, err
		}
		outcomes = append(outcomes, oc)
		out = next
	}
	return out, outcomes, nil
}

func applyOne(text string, e Edit) (string, Outcome, error) {
	oc := Outcome{Name: e.Name, Op: e.Op}

	if e.SkipIfPresent != "" && strings.Contains(text, e.SkipIfPresent) {
		oc.Status = StatusAlreadyApplied
		oc.Message = "guard text already present"
		return text, oc, nil
	}
	if !e.Regex && alreadyApplied(text, e) {
		oc.Status = StatusAlreadyApplied
		oc.Message = "edit text already in place"
		return text, oc, nil
	}

	anchor, locs := e.find(text)
	if len(locs) == 0 {
		oc.Status = StatusAnchorNotFound
		oc.Message = fmt.Errorf("%w: %q", citation.ErrAnchorNotFound, truncate(e.Anchor, 60)).Error()
		return text, oc, nil
	}
	if len(locs) > 1 && !e.All {
		return text, oc, fmt.Errorf("edit %q: %w: %q occurs %d times", e.Name, citation.ErrAmbiguousAnchor, truncate(anchor, 60), len(locs))
	}

	oc.Status = StatusApplied
	oc.Anchor = anchor
	oc.Count = len(locs)
	oc.Line = strings.Count(text[:locs[0][0]], "\n") + 1

	var re *regexp.Regexp
	if e.Regex {
		re = regexp.MustCompile(anchor)
	}

	var b strings.Builder
	pos := 0
	for _, loc := range locs {
		match := text[loc[0]:loc[1]]
		b.WriteString(text[pos:loc[0]])
		switch e.Op {
		case OpReplace:
			if re != nil {
				b.Write(re.ExpandString(nil, e.Text, text, loc))
			} else {
				b.WriteString(e.Text)
			}
		case OpInsertAfter:
			b.WriteString(match)
			b.WriteString(e.Text)
		case OpInsertBefore:
			b.WriteString(e.Text)
			b.WriteString(match)
		case OpDelete:
		}
		pos = loc[1]
	}
	b.WriteString(text[pos:])
	return b.String(), oc, nil
}

// alreadyApplied detects a literal edit that a previous run has performed.
func alreadyApplied(text string, e Edit) bool {
	for _, a := range e.anchors() {
		switch e.Op {
		case OpInsertAfter:
			if strings.Contains(text, a+e.Text) {
				return true
			}
		case OpInsertBefore:
			if strings.Contains(text, e.Text+a) {
				return true
			}
		}
	}
	if e.Op == OpReplace && !strings.Contains(e.Text, e.Anchor) && strings.Contains(text, e.Text) {
		for _, a := range e.anchors() {
			if strings.Contains(text, a) {
				return false
			}
		}
		return true
	}
	return false
}

// find returns the first anchor with any occurrence and its match locations.
// Regexp locations carry submatch indexes for template expansion.
func (e Edit) find(text string) (string, [][]int) {
	for _, a := range e.anchors() {
		var locs [][]int
		if e.Regex {
			locs = regexp.MustCompile(a).FindAllStringSubmatchIndex(text, -1)
		} else {
			locs = literalIndexes(text, a)
		}
		if len(locs) > 0 {
			return a, locs
		}
	}
	return "", nil
}

// literalIndexes returns the non-overlapping locations of sub in text.
func literalIndexes(text, sub string) [][]int {
	var locs [][]int
	for pos := 0; pos <= len(text); {
		i := strings.Index(text[pos:], sub)
		if i < 0 {
			break
		}
		start := pos + i
		locs = append(locs, []int{start, start + len(sub)})
		pos = start + len(sub)
	}
	return locs
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
