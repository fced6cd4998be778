package citation

import "sort"

// Report is the result of a consistency check.
type Report struct {
	Cited      int      `json:"cited"`      // Distinct cited keys
	Defined    int      `json:"defined"`    // Distinct defined keys
	Missing    []string `json:"missing"`    // Cited but never defined
	Unused     []string `json:"unused"`     // Defined but never cited
	Duplicates []string `json:"duplicates"` // Defined by more than one entry
	Malformed  []Site   `json:"malformed"`
}

// OK reports whether the check found nothing to fix.
func (r Report) OK() bool {
	return len(r.Missing) == 0 && len(r.Unused) == 0 && len(r.Duplicates) == 0 && len(r.Malformed) == 0
}

// Check computes missing and unused keys from the index.
// It has no side effects.
func Check(idx *Index) Report {
	cited := idx.keyCounts(KindCite)
	defined := idx.keyCounts(KindEntry)

	r := Report{
		Cited:      len(cited),
		Defined:    len(defined),
		Missing:    Difference(cited, defined),
		Unused:     Difference(defined, cited),
		Duplicates: []string{},
		Malformed:  idx.Malformed(),
	}
	for k, n := range defined {
		if n > 1 {
			r.Duplicates = append(r.Duplicates, k)
		}
	}
	sort.Strings(r.Duplicates)
	if r.Malformed == nil {
		r.Malformed = []Site{}
	}
	return r
}

// Difference returns the keys of a that are absent from b, sorted.
// The result is never nil.
func Difference(a, b map[string]int) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
