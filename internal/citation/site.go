// Package citation indexes, checks and rewrites citation keys in LaTeX text.
//
// Keys are only ever compared inside the bounded argument list of a recognized
// command, after splitting that list on commas. A key is never searched for as
// free text, so "r1" cannot match inside "r10" or "r11".
package citation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SiteKind distinguishes inline citations from bibliography entry declarations.
type SiteKind string

const (
	KindCite  SiteKind = "cite"
	KindEntry SiteKind = "entry"
)

// Default command sets.
var (
	DefaultCiteCommands   = []string{"cite", "citep", "citet", "citealt", "citealp", "citeauthor", "citeyear", "parencite", "textcite", "autocite"}
	DefaultEntryCommands  = []string{"bibitem"}
	DefaultRefCommands    = []string{"ref", "eqref", "autoref", "pageref", "cref", "Cref"}
	DefaultLabelCommands  = []string{"label"}
	DefaultFigureCommands = []string{"includegraphics"}
)

// Markers names the commands that form sites.
type Markers struct {
	Cite  []string // Commands whose argument is a comma-separated key list
	Entry []string // Commands declaring exactly one key

	// Terminator ends the descriptive text of the last entry.
	// Defaults to the thebibliography end marker.
	Terminator string

	// Whole disables comma splitting: the trimmed argument is one key.
	// Used for file path arguments such as \includegraphics.
	Whole bool
}

// DefaultMarkers returns the markers for \cite-family citations and \bibitem entries.
func DefaultMarkers() Markers {
	return Markers{
		Cite:       DefaultCiteCommands,
		Entry:      DefaultEntryCommands,
		Terminator: DefaultBlock().End,
	}
}

// LabelMarkers returns the markers for \ref-family references and \label declarations.
func LabelMarkers() Markers {
	return Markers{Cite: DefaultRefCommands, Entry: DefaultLabelCommands}
}

// FigureMarkers returns the markers for \includegraphics file paths.
func FigureMarkers() Markers {
	return Markers{Cite: DefaultFigureCommands, Whole: true}
}

// Site is one command instance in the document.
type Site struct {
	Kind     SiteKind `json:"kind"`
	Command  string   `json:"command"`
	Line     int      `json:"line"`
	Start    int      `json:"start"`              // Offset of the backslash
	End      int      `json:"end"`                // Offset just past the closing brace
	ArgStart int      `json:"-"`                  // Offset just past the opening brace, -1 if absent
	ArgEnd   int      `json:"-"`                  // Offset of the closing brace, -1 if absent
	BodyEnd  int      `json:"-"`                  // Entry sites: end of the entry's descriptive text
	Keys     []string `json:"keys"`               // Valid keys in order, duplicates preserved
	Problems []string `json:"problems,omitempty"` // Why the site is malformed
}

// Malformed reports whether the site has any problems.
func (s Site) Malformed() bool {
	return len(s.Problems) > 0
}

// Err describes a malformed site as an error wrapping ErrMalformedSite.
// It returns nil for a well-formed site.
func (s Site) Err() error {
	if !s.Malformed() {
		return nil
	}
	return fmt.Errorf("%w: \\%s at line %d: %s", ErrMalformedSite, s.Command, s.Line, strings.Join(s.Problems, ", "))
}

// hasArgs reports whether the site has a brace-delimited argument list.
func (s Site) hasArgs() bool {
	return s.ArgStart >= 0 && s.ArgEnd >= s.ArgStart
}

// Index is the set of sites found in one document.
type Index struct {
	Sites   []Site
	markers Markers
}

// token is one comma-separated entry of a key list, with its surrounding whitespace.
type token struct {
	lead, key, trail string
}

func (t token) String() string {
	return t.lead + t.key + t.trail
}

// splitTokens splits a raw key list on commas.
func splitTokens(arg string) []token {
	parts := strings.Split(arg, ",")
	tokens := make([]token, len(parts))
	for i, p := range parts {
		key := strings.TrimSpace(p)
		if key == "" {
			tokens[i] = token{lead: p}
			continue
		}
		start := strings.Index(p, key)
		tokens[i] = token{lead: p[:start], key: key, trail: p[start+len(key):]}
	}
	return tokens
}

// joinTokens is the inverse of splitTokens.
func joinTokens(tokens []token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// validKey reports whether key can stand as a citation key.
func validKey(key string) bool {
	return key != "" && !strings.ContainsAny(key, " \t\r\n{},")
}

func commandPattern(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = regexp.QuoteMeta(n)
	}
	// Longest first so alternation prefers \citep over \cite.
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return strings.Join(quoted, "|")
}

// siteRegex matches \name*[opt][opt]{args}. Group 1 is the name, group 2 the args.
func siteRegex(names []string) *regexp.Regexp {
	return regexp.MustCompile(`\\(` + commandPattern(names) + `)\*?(?:\s*\[[^\]]*\]){0,2}\s*\{([^{}]*)\}`)
}

// bareRegex matches the command name alone, so commands without a parsable
// argument list can be reported.
func bareRegex(names []string) *regexp.Regexp {
	return regexp.MustCompile(`\\(` + commandPattern(names) + `)(?:[^A-Za-z@]|$)`)
}

// Scan builds the site index for text.
func Scan(text string, m Markers) *Index {
	idx := &Index{markers: m}
	lines := newLineCounter(text)

	if len(m.Cite) > 0 {
		idx.Sites = append(idx.Sites, scanKind(text, KindCite, m.Cite, m.Whole, lines)...)
	}
	if len(m.Entry) > 0 {
		entries := scanKind(text, KindEntry, m.Entry, m.Whole, lines)
		setBodyEnds(text, entries, m.Terminator)
		idx.Sites = append(idx.Sites, entries...)
	}

	sort.SliceStable(idx.Sites, func(i, j int) bool { return idx.Sites[i].Start < idx.Sites[j].Start })
	return idx
}

func scanKind(text string, kind SiteKind, names []string, whole bool, lines *lineCounter) []Site {
	var sites []Site
	parsed := make(map[int]bool)

	for _, loc := range siteRegex(names).FindAllStringSubmatchIndex(text, -1) {
		site := Site{
			Kind:     kind,
			Command:  text[loc[2]:loc[3]],
			Start:    loc[0],
			End:      loc[1],
			ArgStart: loc[4],
			ArgEnd:   loc[5],
			BodyEnd:  loc[1],
			Line:     lines.lineAt(loc[0]),
		}
		parseKeys(&site, text[loc[4]:loc[5]], kind, whole)
		parsed[loc[0]] = true
		sites = append(sites, site)
	}

	for _, loc := range bareRegex(names).FindAllStringSubmatchIndex(text, -1) {
		if parsed[loc[0]] {
			continue
		}
		end := loc[3]
		sites = append(sites, Site{
			Kind:     kind,
			Command:  text[loc[2]:loc[3]],
			Start:    loc[0],
			End:      end,
			ArgStart: -1,
			ArgEnd:   -1,
			BodyEnd:  end,
			Line:     lines.lineAt(loc[0]),
			Problems: []string{"missing or unparsable key list"},
		})
	}
	return sites
}

func parseKeys(site *Site, arg string, kind SiteKind, whole bool) {
	if whole {
		key := strings.TrimSpace(arg)
		if key == "" {
			site.Problems = append(site.Problems, "empty argument")
			return
		}
		site.Keys = []string{key}
		return
	}

	for _, tok := range splitTokens(arg) {
		switch {
		case tok.key == "":
			site.Problems = append(site.Problems, "empty key")
		case !validKey(tok.key):
			site.Problems = append(site.Problems, "invalid key "+quote(tok.key))
		default:
			site.Keys = append(site.Keys, tok.key)
		}
	}

	if kind == KindEntry && len(site.Keys) > 1 {
		site.Problems = append(site.Problems, "entry declares more than one key")
	}
}

// setBodyEnds extends each entry to the next entry, the terminator, or end of text.
func setBodyEnds(text string, entries []Site, terminator string) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Start < entries[j].Start })
	for i := range entries {
		end := len(text)
		if i+1 < len(entries) {
			end = entries[i+1].Start
		}
		if terminator != "" {
			if t := strings.Index(text[entries[i].End:end], terminator); t >= 0 {
				end = entries[i].End + t
			}
		}
		entries[i].BodyEnd = end
	}
}

func quote(s string) string {
	return `"` + s + `"`
}

// Cited returns the distinct keys of citation sites, sorted.
func (idx *Index) Cited() []string {
	return sortedKeys(idx.keyCounts(KindCite))
}

// Defined returns the distinct keys of entry sites, sorted.
func (idx *Index) Defined() []string {
	return sortedKeys(idx.keyCounts(KindEntry))
}

// Malformed returns the sites that have problems.
func (idx *Index) Malformed() []Site {
	var out []Site
	for _, s := range idx.Sites {
		if s.Malformed() {
			out = append(out, s)
		}
	}
	return out
}

// SitesOf returns the sites of one kind in document order.
func (idx *Index) SitesOf(kind SiteKind) []Site {
	var out []Site
	for _, s := range idx.Sites {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// keyCounts counts how many sites of kind mention each key.
func (idx *Index) keyCounts(kind SiteKind) map[string]int {
	counts := make(map[string]int)
	for _, s := range idx.Sites {
		if s.Kind != kind {
			continue
		}
		seen := make(map[string]bool)
		for _, k := range s.Keys {
			if !seen[k] {
				counts[k]++
				seen[k] = true
			}
		}
	}
	return counts
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lineCounter maps byte offsets to 1-based line numbers.
type lineCounter struct {
	starts []int
}

func newLineCounter(text string) *lineCounter {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineCounter{starts: starts}
}

func (lc *lineCounter) lineAt(offset int) int {
	return sort.Search(len(lc.starts), func(i int) bool { return lc.starts[i] > offset })
}
