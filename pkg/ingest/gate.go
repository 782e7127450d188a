// pkg/ingest/gate.go
package ingest

import (
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// IdentitySet holds the codes of records already persisted by prior runs.
type IdentitySet map[string]struct{}

// NewIdentitySet builds a set from a list of codes.
func NewIdentitySet(ids ...string) IdentitySet {
	s := make(IdentitySet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts a code.
func (s IdentitySet) Add(id string) { s[id] = struct{}{} }

// Contains reports whether a code is known.
func (s IdentitySet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of known codes.
func (s IdentitySet) Len() int { return len(s) }

// FilterNew returns the records whose code is not in the known set,
// preserving input order. An empty known set means non-incremental mode and
// the input is returned unchanged. Pure function; callers decide what an
// empty result means (zero new records is a success, not an error).
func FilterNew(records []model.Record, known IdentitySet) []model.Record {
	if len(known) == 0 {
		return records
	}
	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		if known.Contains(rec.Code) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
