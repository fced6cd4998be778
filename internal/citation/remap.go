package citation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DefaultTempPrefix is the temporary key namespace used when none is configured.
const DefaultTempPrefix = "ZZZtmp"

// Action describes what happened to one key occurrence during a remap.
type Action string

const (
	ActionRenamed      Action = "renamed"
	ActionDropped      Action = "dropped"
	ActionMerged       Action = "merged"        // Renamed onto a key already present at the site or another entry
	ActionSiteRemoved  Action = "site_removed"  // Every key of a citation was dropped
	ActionEntryRemoved Action = "entry_removed" // A bibliography entry was dropped with its text
	ActionUnchanged    Action = "unchanged"     // Key at a rewritten site with no effective rule
	ActionNotFound     Action = "not_found"     // Rule whose old key occurs nowhere
)

// Change is one line of the transform log.
type Change struct {
	Action Action   `json:"action"`
	Old    string   `json:"old,omitempty"`
	New    string   `json:"new,omitempty"`
	Kind   SiteKind `json:"kind,omitempty"`
	Line   int      `json:"line,omitempty"`
}

// RemapOptions configures Remap.
type RemapOptions struct {
	// TempPrefix overrides the mapping's temporary key namespace.
	TempPrefix string
}

// RemapResult is the rewritten text plus the transform log.
type RemapResult struct {
	Text           string   `json:"-"`
	Changes        []Change `json:"changes"`
	SitesRewritten int      `json:"sites_rewritten"`
	SitesRemoved   int      `json:"sites_removed"`
	TempPrefix     string   `json:"temp_prefix"`
}

// Count returns how many changes have the given action.
func (r *RemapResult) Count(a Action) int {
	n := 0
	for _, c := range r.Changes {
		if c.Action == a {
			n++
		}
	}
	return n
}

// tempSpace is the isolated namespace of the two-phase remap. Phase 1 moves
// every matched old key into it; phase 2 resolves it to the final keys. A
// value written by one rule can therefore never be matched by another.
type tempSpace struct {
	prefix string
	temps  map[string]string // old key -> temporary key
	rules  map[string]Rule   // temporary key -> rule
	used   map[string]bool   // old keys that were entered
}

func newTempSpace(prefix string, m Mapping) *tempSpace {
	ts := &tempSpace{
		prefix: prefix,
		temps:  make(map[string]string),
		rules:  make(map[string]Rule),
		used:   make(map[string]bool),
	}
	for _, r := range m.Rules {
		if _, ok := ts.temps[r.Old]; ok {
			continue
		}
		tmp := prefix + strconv.Itoa(len(ts.temps)+1)
		ts.temps[r.Old] = tmp
		ts.rules[tmp] = r
	}
	return ts
}

// checkDisjoint asserts that the namespace collides with nothing in the
// document or the mapping.
func (ts *tempSpace) checkDisjoint(text string, m Mapping) error {
	if !validKey(ts.prefix) {
		return fmt.Errorf("%w: temporary prefix %q is not a usable key", ErrMappingCollisionRisk, ts.prefix)
	}
	if strings.Contains(text, ts.prefix) {
		return fmt.Errorf("%w: temporary prefix %q already occurs in the document", ErrMappingCollisionRisk, ts.prefix)
	}
	for _, r := range m.Rules {
		if strings.HasPrefix(r.Old, ts.prefix) || (!r.Drop && strings.HasPrefix(r.New, ts.prefix)) {
			return fmt.Errorf("%w: rule %s overlaps temporary prefix %q", ErrMappingCollisionRisk, r, ts.prefix)
		}
	}
	return nil
}

// enter is phase 1.
func (ts *tempSpace) enter(key string) (string, bool) {
	tmp, ok := ts.temps[key]
	if ok {
		ts.used[key] = true
	}
	return tmp, ok
}

// resolve is phase 2.
func (ts *tempSpace) resolve(key string) (Rule, bool) {
	r, ok := ts.rules[key]
	return r, ok
}

// edit replaces text[start:end].
type edit struct {
	start, end int
	text       string
}

// Remap rewrites every site of idx according to m. idx must have been built
// from text. On error the text is not modified.
func Remap(text string, idx *Index, m Mapping, opts RemapOptions) (*RemapResult, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	prefix := opts.TempPrefix
	if prefix == "" {
		prefix = m.TempPrefix
	}
	if prefix == "" {
		prefix = DefaultTempPrefix
	}

	ts := newTempSpace(prefix, m)
	if err := ts.checkDisjoint(text, m); err != nil {
		return nil, err
	}

	res := &RemapResult{TempPrefix: prefix}
	var edits []edit
	entries := make(map[string]string) // final entry key -> old key of its first entry

	for _, site := range idx.Sites {
		if !site.hasArgs() {
			continue
		}
		raw := text[site.ArgStart:site.ArgEnd]
		var tokens []token
		if idx.markers.Whole {
			tokens = []token{{key: strings.TrimSpace(raw)}}
			tokens[0].lead = raw[:strings.Index(raw, tokens[0].key)]
			tokens[0].trail = raw[len(tokens[0].lead)+len(tokens[0].key):]
		} else {
			tokens = splitTokens(raw)
		}

		// Phase 1: old keys into the temporary namespace.
		entered := false
		for i := range tokens {
			if tokens[i].key == "" {
				continue
			}
			if tmp, ok := ts.enter(tokens[i].key); ok {
				tokens[i].key = tmp
				entered = true
			}
		}
		if !entered {
			if site.Kind == KindEntry {
				for _, k := range site.Keys {
					res.Changes = append(res.Changes, noteEntry(entries, k, k, site)...)
				}
			}
			continue
		}

		// Phase 2: temporary keys to final keys, dropping and merging.
		out, changes := resolveTokens(tokens, ts, site)
		res.Changes = append(res.Changes, changes...)
		if site.Kind == KindEntry {
			for _, c := range changes {
				switch c.Action {
				case ActionRenamed:
					res.Changes = append(res.Changes, noteEntry(entries, c.Old, c.New, site)...)
				case ActionUnchanged:
					res.Changes = append(res.Changes, noteEntry(entries, c.Old, c.Old, site)...)
				}
			}
		}

		if countKeys(out) == 0 {
			res.SitesRemoved++
			if site.Kind == KindEntry {
				res.Changes = append(res.Changes, Change{Action: ActionEntryRemoved, Kind: site.Kind, Line: site.Line})
				edits = append(edits, edit{start: site.Start, end: site.BodyEnd})
			} else {
				res.Changes = append(res.Changes, Change{Action: ActionSiteRemoved, Kind: site.Kind, Line: site.Line})
				start, end := trimRemoval(text, site.Start, site.End)
				edits = append(edits, edit{start: start, end: end})
			}
			continue
		}

		out[0].lead = tokens[0].lead
		out[len(out)-1].trail = tokens[len(tokens)-1].trail
		res.SitesRewritten++
		edits = append(edits, edit{start: site.ArgStart, end: site.ArgEnd, text: joinTokens(out)})
	}

	for _, r := range m.Rules {
		if !ts.used[r.Old] {
			res.Changes = append(res.Changes, Change{Action: ActionNotFound, Old: r.Old, New: r.New})
			ts.used[r.Old] = true
		}
	}

	res.Text = applyEdits(text, edits)
	return res, nil
}

// resolveTokens runs phase 2 over one site. Empty tokens of a malformed list
// are kept unless a key was removed from the list, so that a pass-through
// mapping leaves the site byte-identical.
// noteEntry records that an entry now defines final. An earlier entry with
// a different old key defining the same final key means the rules merged
// the two entries. Both stay in the bibliography until one is replaced.
func noteEntry(entries map[string]string, old, final string, site Site) []Change {
	prev, ok := entries[final]
	if !ok {
		entries[final] = old
		return nil
	}
	if prev == old {
		return nil
	}
	return []Change{{Action: ActionMerged, Old: old, New: final, Kind: KindEntry, Line: site.Line}}
}

func resolveTokens(tokens []token, ts *tempSpace, site Site) ([]token, []Change) {
	var out []token
	var changes []Change
	emitted := make(map[string]bool) // final key -> produced by a renaming rule
	removed := false

	for _, tok := range tokens {
		if tok.key == "" {
			out = append(out, tok)
			continue
		}
		rule, mapped := ts.resolve(tok.key)
		if mapped && rule.Drop {
			changes = append(changes, Change{Action: ActionDropped, Old: rule.Old, Kind: site.Kind, Line: site.Line})
			removed = true
			continue
		}

		final, old := tok.key, tok.key
		if mapped {
			final, old = rule.New, rule.Old
		}
		renamed := mapped && rule.Old != rule.New

		if prevRenamed, ok := emitted[final]; ok && (renamed || prevRenamed) {
			changes = append(changes, Change{Action: ActionMerged, Old: old, New: final, Kind: site.Kind, Line: site.Line})
			removed = true
			continue
		}
		if _, ok := emitted[final]; !ok {
			emitted[final] = renamed
		}

		action := ActionUnchanged
		if renamed {
			action = ActionRenamed
		}
		c := Change{Action: action, Old: old, Kind: site.Kind, Line: site.Line}
		if action == ActionRenamed {
			c.New = final
		}
		changes = append(changes, c)
		out = append(out, token{lead: tok.lead, key: final, trail: tok.trail})
	}

	if removed {
		kept := out[:0]
		for _, tok := range out {
			if tok.key != "" {
				kept = append(kept, tok)
			}
		}
		out = kept
	}
	return out, changes
}

func countKeys(tokens []token) int {
	n := 0
	for _, t := range tokens {
		if t.key != "" {
			n++
		}
	}
	return n
}

// trimRemoval widens a removed citation to take its tie or a redundant space.
func trimRemoval(text string, start, end int) (int, int) {
	if start == 0 {
		return start, end
	}
	switch text[start-1] {
	case '~':
		return start - 1, end
	case ' ':
		if end == len(text) || strings.ContainsRune(" .,;:)\n", rune(text[end])) {
			return start - 1, end
		}
	}
	return start, end
}

// applyEdits applies non-overlapping edits; an edit inside an earlier one is skipped.
func applyEdits(text string, edits []edit) string {
	if len(edits) == 0 {
		return text
	}
	sort.SliceStable(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(text))
	pos := 0
	for _, e := range edits {
		if e.start < pos {
			continue
		}
		b.WriteString(text[pos:e.start])
		b.WriteString(e.text)
		pos = e.end
	}
	b.WriteString(text[pos:])
	return b.String()
}

// RemapText scans text with markers and remaps it in one call.
func RemapText(text string, markers Markers, m Mapping, opts RemapOptions) (*RemapResult, error) {
	return Remap(text, Scan(text, markers), m, opts)
}
