package citation

import (
	"errors"
	"fmt"
)

// Diagnostic conditions are recovered locally and reported; integrity risks
// abort the whole transform before anything is written.
var (
	// ErrAnchorNotFound is returned when required marker or anchor text is absent.
	ErrAnchorNotFound = errors.New("anchor not found")

	// ErrAmbiguousAnchor is returned when a marker that must be unique occurs more than once.
	ErrAmbiguousAnchor = errors.New("ambiguous anchor")

	// ErrMalformedSite marks a site with an empty or unparsable key list.
	ErrMalformedSite = errors.New("malformed site")

	// ErrMappingCollisionRisk is returned when the temporary key namespace
	// already occurs in the document or overlaps a mapped key.
	ErrMappingCollisionRisk = errors.New("mapping collision risk")
)

// MappingError reports an invalid mapping rule.
type MappingError struct {
	Rule    int    // Index of the rule (0-based)
	Old     string // Old key of the rule
	Message string
}

func (e MappingError) Error() string {
	return fmt.Sprintf("mapping rule %d (%q): %s", e.Rule+1, e.Old, e.Message)
}
