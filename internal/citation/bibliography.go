package citation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Block delimits the bibliography environment.
type Block struct {
	Begin string `json:"begin" yaml:"begin"`
	End   string `json:"end" yaml:"end"`
}

// DefaultBlock returns the thebibliography environment markers.
func DefaultBlock() Block {
	return Block{Begin: `\begin{thebibliography}`, End: `\end{thebibliography}`}
}

// Locate returns the interior of the single bibliography block: the text after
// the begin marker (and its {widest-label} argument) up to the end marker.
func (b Block) Locate(text string) (start, end int, err error) {
	if b.Begin == "" || b.End == "" {
		return 0, 0, errors.New("bibliography markers not configured")
	}

	nb, ne := strings.Count(text, b.Begin), strings.Count(text, b.End)
	switch {
	case nb == 0:
		return 0, 0, fmt.Errorf("%w: %s", ErrAnchorNotFound, b.Begin)
	case ne == 0:
		return 0, 0, fmt.Errorf("%w: %s", ErrAnchorNotFound, b.End)
	case nb > 1:
		return 0, 0, fmt.Errorf("%w: %s occurs %d times", ErrAmbiguousAnchor, b.Begin, nb)
	case ne > 1:
		return 0, 0, fmt.Errorf("%w: %s occurs %d times", ErrAmbiguousAnchor, b.End, ne)
	}

	start = strings.Index(text, b.Begin) + len(b.Begin)
	end = strings.Index(text, b.End)
	if end < start {
		return 0, 0, fmt.Errorf("%w: %s before %s", ErrAnchorNotFound, b.End, b.Begin)
	}

	// \begin{thebibliography}{99}: the widest-label argument stays with the header.
	if start < end && text[start] == '{' {
		if brace := strings.IndexByte(text[start:end], '}'); brace >= 0 {
			start += brace + 1
		}
	}
	return start, end, nil
}

// ReplaceBibliography replaces the whole interior of the bibliography block
// with entries. Old and new entries are never merged. entries may be a bare
// list of entries or a complete environment, which is unwrapped. On error text
// is returned unmodified.
func ReplaceBibliography(text string, b Block, entries string) (string, error) {
	if strings.Contains(entries, b.Begin) || strings.Contains(entries, b.End) {
		s, e, err := b.Locate(entries)
		if err != nil {
			return text, fmt.Errorf("replacement block: %w", err)
		}
		entries = entries[s:e]
	}
	entries = strings.Trim(entries, " \t\r\n")
	if entries == "" {
		return text, errors.New("replacement block has no entries")
	}

	start, end, err := b.Locate(text)
	if err != nil {
		return text, err
	}
	return text[:start] + "\n\n" + entries + "\n\n" + text[end:], nil
}

// ReorderBibliography reorders the entries of the bibliography block so that
// keys listed in order come first, in that order. Other entries keep their
// relative order after them. Text is unchanged when the order already holds.
func ReorderBibliography(text string, b Block, m Markers, order []string) (string, error) {
	start, end, err := b.Locate(text)
	if err != nil {
		return text, err
	}
	interior := text[start:end]

	entries := Scan(interior, Markers{Entry: m.Entry, Whole: m.Whole}).SitesOf(KindEntry)
	if len(entries) == 0 {
		return text, nil
	}

	rank := make(map[string]int, len(order))
	for i, k := range order {
		if _, ok := rank[k]; !ok {
			rank[k] = i
		}
	}
	rankOf := func(s Site) int {
		if len(s.Keys) > 0 {
			if r, ok := rank[s.Keys[0]]; ok {
				return r
			}
		}
		return len(order)
	}

	sorted := make([]Site, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return rankOf(sorted[i]) < rankOf(sorted[j]) })

	same := true
	for i := range sorted {
		if sorted[i].Start != entries[i].Start {
			same = false
			break
		}
	}
	if same {
		return text, nil
	}

	last := interior[entries[len(entries)-1].Start:entries[len(entries)-1].BodyEnd]
	tail := last[len(strings.TrimRight(last, " \t\r\n")):]

	chunks := make([]string, len(sorted))
	for i, s := range sorted {
		chunks[i] = strings.TrimRight(interior[s.Start:s.BodyEnd], " \t\r\n")
	}

	var sb strings.Builder
	sb.WriteString(text[:start])
	sb.WriteString(interior[:entries[0].Start])
	sb.WriteString(strings.Join(chunks, "\n\n"))
	sb.WriteString(tail)
	sb.WriteString(text[end:])
	return sb.String(), nil
}
