// Package objectset implements the case-insensitive string sets the
// expander uses as a cycle guard ("already") and an exclusion list
// ("stoplist") — spec.md §3 and the design note on ASCII case folding
// (spec.md §9).
package objectset

// Set is a case-insensitive set of object names, keyed by ASCII case
// folding (never locale-sensitive, per spec.md §9).
type Set struct {
	m map[string]struct{}
}

// New returns an empty set.
func New() *Set {
	return &Set{m: make(map[string]struct{})}
}

func fold(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// Add inserts object, folding case. Reports whether it was newly added.
func (s *Set) Add(object string) bool {
	if s.m == nil {
		s.m = make(map[string]struct{})
	}
	k := fold(object)
	if _, ok := s.m[k]; ok {
		return false
	}
	s.m[k] = struct{}{}
	return true
}

// Contains reports whether object (case-insensitively) is a member.
func (s *Set) Contains(object string) bool {
	_, ok := s.m[fold(object)]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.m) }
