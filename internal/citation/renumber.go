package citation

import "strconv"

// PlanRenumber builds a mapping that renames keys to prefix+N in order of
// first citation, starting at start. Keys that are defined but never cited
// are numbered after the cited ones, in definition order. Keys already
// carrying their target name get no rule. The second return value is the
// final key order, suitable for ReorderBibliography.
func PlanRenumber(idx *Index, prefix string, start int) (Mapping, []string) {
	var keys []string
	seen := make(map[string]bool)
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	for _, s := range idx.SitesOf(KindCite) {
		for _, k := range s.Keys {
			add(k)
		}
	}
	for _, s := range idx.SitesOf(KindEntry) {
		for _, k := range s.Keys {
			add(k)
		}
	}

	var m Mapping
	order := make([]string, len(keys))
	for i, k := range keys {
		target := prefix + strconv.Itoa(start+i)
		order[i] = target
		if k != target {
			m.Rules = append(m.Rules, Rule{Old: k, New: target})
		}
	}
	return m, order
}
