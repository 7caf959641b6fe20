package asnset

import (
	"reflect"
	"testing"
)

func TestAddReportsNewMembership(t *testing.T) {
	s := New()
	if !s.Add(65000) {
		t.Error("first Add should report true")
	}
	if s.Add(65000) {
		t.Error("second Add of the same ASN should report false")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestRemove(t *testing.T) {
	s := New()
	s.Add(65000)
	s.Add(65001)
	s.Remove(65000)

	if s.Contains(65000) {
		t.Error("65000 should have been removed")
	}
	if !s.Contains(65001) {
		t.Error("65001 should remain")
	}
	if s.Len() != 1 {
		t.Errorf("Len = %d, want 1", s.Len())
	}
}

func TestSortedAscending(t *testing.T) {
	s := New()
	s.Add(65002)
	s.Add(65000)
	s.Add(65001)

	want := []uint32{65000, 65001, 65002}
	if got := s.Sorted(); !reflect.DeepEqual(got, want) {
		t.Errorf("Sorted = %v, want %v", got, want)
	}
}

func TestRangeInsertionOrder(t *testing.T) {
	s := New()
	s.Add(65002)
	s.Add(65000)
	s.Add(65001)

	var got []uint32
	s.Range(func(asn uint32) { got = append(got, asn) })

	want := []uint32{65002, 65000, 65001}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Range order = %v, want %v", got, want)
	}
}
