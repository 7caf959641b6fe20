package radixtree

import "testing"

func TestAggregateMergesSiblingPair(t *testing.T) {
	tr := New(IPv4)
	tr.InsertExact(mustPrefix(t, "192.0.2.0/24"))
	tr.InsertExact(mustPrefix(t, "192.0.3.0/24"))
	tr.Aggregate()

	view, ok := tr.Lookup(mustPrefix(t, "192.0.2.0/23"))
	if !ok {
		t.Fatal("expected merged /23 node")
	}
	if !view.IsAggregate || view.AggregateLow != 24 || view.AggregateHi != 24 {
		t.Errorf("unexpected merged node: %+v", view)
	}
}

func TestAggregateIsIdempotent(t *testing.T) {
	tr := New(IPv4)
	tr.InsertExact(mustPrefix(t, "192.0.2.0/24"))
	tr.InsertExact(mustPrefix(t, "192.0.3.0/24"))
	tr.Aggregate()
	before := tr.Count()
	tr.Aggregate()
	if after := tr.Count(); after != before {
		t.Errorf("second Aggregate changed node count: %d -> %d", before, after)
	}
}

func TestAggregatePreservesUnmergeableLeftovers(t *testing.T) {
	tr := New(IPv4)
	tr.InsertExact(mustPrefix(t, "192.0.2.0/24"))
	tr.InsertExact(mustPrefix(t, "192.0.3.0/24"))
	tr.InsertExact(mustPrefix(t, "192.0.2.128/25"))
	tr.Aggregate()

	seen := map[string]bool{}
	tr.Traverse(func(v NodeView) {
		if !v.IsGlue {
			seen[v.Prefix.String()] = true
		}
	})
	if !seen["192.0.2.128/25"] {
		t.Errorf("expected /25 leftover to remain reachable, got %v", seen)
	}
}
