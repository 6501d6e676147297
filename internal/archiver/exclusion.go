package archiver

import (
	"strings"

	"github.com/elliotchance/orderedmap/v2"
)

// ExclusionSet is a set of record ids that must never be selected. It keeps
// the order in which ids were supplied so the audit log echoes the
// operator's input.
type ExclusionSet struct {
	ids *orderedmap.OrderedMap[string, struct{}]
}

// NewExclusionSet builds a set from operator input. Ids are trimmed, blanks
// dropped and duplicates collapsed.
func NewExclusionSet(ids []string) *ExclusionSet {
	s := &ExclusionSet{ids: orderedmap.NewOrderedMap[string, struct{}]()}
	for _, id := range ids {
		s.add(id)
	}
	return s
}

func (s *ExclusionSet) add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s.ids.Set(id, struct{}{})
}

// Contains reports whether id is excluded. A nil set excludes nothing.
func (s *ExclusionSet) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.ids.Get(id)
	return ok
}

// Len returns the number of excluded ids.
func (s *ExclusionSet) Len() int {
	if s == nil {
		return 0
	}
	return s.ids.Len()
}

// IDs returns the excluded ids in insertion order.
func (s *ExclusionSet) IDs() []string {
	if s == nil {
		return nil
	}
	return s.ids.Keys()
}

func (s *ExclusionSet) String() string {
	if s.Len() == 0 {
		return "(none)"
	}
	return strings.Join(s.IDs(), ", ")
}

// IsEligible reports whether record may be acted upon. Records without an
// id are never eligible.
func IsEligible(record Record, excluded *ExclusionSet) bool {
	return record.ID != "" && !excluded.Contains(record.ID)
}

// firstEligible returns the first record in listing order that is eligible
// under every given set.
func firstEligible(records []Record, sets ...*ExclusionSet) (Record, bool) {
next:
	for _, rec := range records {
		for _, set := range sets {
			if !IsEligible(rec, set) {
				continue next
			}
		}
		return rec, true
	}
	return Record{}, false
}
