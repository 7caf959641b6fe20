package radixtree

import "testing"

func TestInsertExactAndLookup(t *testing.T) {
	tr := New(IPv4)
	p := mustPrefix(t, "192.0.2.0/24")

	if _, err := tr.InsertExact(p); err != nil {
		t.Fatalf("InsertExact: %v", err)
	}

	got, ok := tr.Lookup(p)
	if !ok {
		t.Fatal("expected lookup to find inserted prefix")
	}
	if got.Prefix.String() != "192.0.2.0/24" || got.IsGlue {
		t.Errorf("unexpected node view: %+v", got)
	}
}

func TestInsertExactIdempotent(t *testing.T) {
	tr := New(IPv4)
	p := mustPrefix(t, "192.0.2.0/24")

	if _, err := tr.InsertExact(p); err != nil {
		t.Fatalf("InsertExact: %v", err)
	}
	if _, err := tr.InsertExact(p); err != nil {
		t.Fatalf("InsertExact (2nd): %v", err)
	}
	if got := tr.Count(); got != 1 {
		t.Errorf("Count = %d, want 1", got)
	}
}

func TestInsertFamilyMismatch(t *testing.T) {
	tr := New(IPv4)
	p := mustPrefix(t, "2001:db8::/32")
	if _, err := tr.InsertExact(p); err == nil {
		t.Fatal("expected family-mismatch error")
	}
}

func TestInsertCreatesGlueNode(t *testing.T) {
	tr := New(IPv4)
	a := mustPrefix(t, "192.0.2.0/24")
	b := mustPrefix(t, "192.0.3.0/24")

	if _, err := tr.InsertExact(a); err != nil {
		t.Fatalf("InsertExact a: %v", err)
	}
	if _, err := tr.InsertExact(b); err != nil {
		t.Fatalf("InsertExact b: %v", err)
	}

	var glueCount, leafCount int
	tr.Traverse(func(v NodeView) {
		if v.IsGlue {
			glueCount++
		} else {
			leafCount++
		}
	})
	if glueCount != 1 {
		t.Errorf("glueCount = %d, want 1", glueCount)
	}
	if leafCount != 2 {
		t.Errorf("leafCount = %d, want 2", leafCount)
	}
}

func TestInsertRangeSplicesAncestor(t *testing.T) {
	tr := New(IPv4)
	specific := mustPrefix(t, "192.0.2.0/24")
	broad := mustPrefix(t, "192.0.0.0/16")

	if _, err := tr.InsertExact(specific); err != nil {
		t.Fatalf("InsertExact specific: %v", err)
	}
	if _, err := tr.InsertRange(broad, 17, 24); err != nil {
		t.Fatalf("InsertRange broad: %v", err)
	}

	got, ok := tr.Lookup(broad)
	if !ok {
		t.Fatal("expected broad ancestor to be present")
	}
	if !got.IsAggregate || got.AggregateLow != 17 || got.AggregateHi != 24 {
		t.Errorf("unexpected range: %+v", got)
	}
	if got := tr.Count(); got != 2 {
		t.Errorf("Count = %d, want 2", got)
	}
}

func TestTraverseVisitsMergedPairOnce(t *testing.T) {
	tr := New(IPv4)
	a := mustPrefix(t, "192.0.2.0/24")
	b := mustPrefix(t, "192.0.3.0/24")
	tr.InsertExact(a)
	tr.InsertExact(b)
	tr.Aggregate()

	var order []string
	tr.Traverse(func(v NodeView) {
		order = append(order, v.Prefix.String())
	})
	if len(order) != 1 {
		t.Fatalf("expected a single merged node, got %v", order)
	}
	if order[0] != "192.0.2.0/23" {
		t.Errorf("merged node = %s, want 192.0.2.0/23", order[0])
	}
}

func TestMaxDepth(t *testing.T) {
	tr := New(IPv4)
	if got := tr.MaxDepth(); got != -1 {
		t.Errorf("MaxDepth of empty tree = %d, want -1", got)
	}
	tr.InsertExact(mustPrefix(t, "192.0.2.0/24"))
	tr.InsertExact(mustPrefix(t, "10.0.0.0/8"))
	if got := tr.MaxDepth(); got != 24 {
		t.Errorf("MaxDepth = %d, want 24", got)
	}
}
