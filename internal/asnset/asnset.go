// Package asnset implements an ordered set of 32-bit autonomous system
// numbers, as described in spec.md §3 ("ASN set").
package asnset

import "sort"

// Set holds unique ASNs. The zero value is ready to use.
type Set struct {
	members map[uint32]struct{}
	order   []uint32
}

// New returns an empty set.
func New() *Set {
	return &Set{members: make(map[uint32]struct{})}
}

// Add inserts asn if not already present. Reports whether it was newly
// added.
func (s *Set) Add(asn uint32) bool {
	if s.members == nil {
		s.members = make(map[uint32]struct{})
	}
	if _, ok := s.members[asn]; ok {
		return false
	}
	s.members[asn] = struct{}{}
	s.order = append(s.order, asn)
	return true
}

// Remove deletes asn from the set. This is the only path by which an
// ASN leaves the set once added (spec.md §4.5, ASN validation).
func (s *Set) Remove(asn uint32) {
	if _, ok := s.members[asn]; !ok {
		return
	}
	delete(s.members, asn)
	for i, v := range s.order {
		if v == asn {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Contains reports whether asn is a member.
func (s *Set) Contains(asn uint32) bool {
	_, ok := s.members[asn]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.order) }

// Sorted returns the members in ascending ASN order, per the downstream
// contract (spec.md §6): printers iterate in ascending order.
func (s *Set) Sorted() []uint32 {
	out := make([]uint32, len(s.order))
	copy(out, s.order)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Range iterates members in insertion order, the order requests were
// discovered.
func (s *Set) Range(f func(asn uint32)) {
	for _, v := range s.order {
		f(v)
	}
}
