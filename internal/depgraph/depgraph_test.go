package depgraph

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/irrquery/irrgen/internal/radixtree"
)

func TestConnectedComponents(t *testing.T) {
	g := NewGraph()
	g.AddEdge("AS-A", "AS-B")
	g.AddEdge("AS-B", "AS-C")
	g.AddEdge("AS-X", "AS-Y")

	ccs := g.ConnectedComponents()
	if len(ccs) != 2 {
		t.Fatalf("got %d connected components, want 2", len(ccs))
	}
}

func TestAsciiTreeContainsReferencedObjects(t *testing.T) {
	g := NewGraph()
	g.AddEdge("AS-A", "AS-B")

	out := g.AsciiTree()
	if !strings.Contains(out, "AS-A") || !strings.Contains(out, "AS-B") {
		t.Errorf("expected both objects in the ascii tree, got %q", out)
	}
}

func TestOverlayReportDetectsCoveredPrefix(t *testing.T) {
	tr := radixtree.New(radixtree.IPv4)
	insert(t, tr, "192.0.2.0/23")
	insert(t, tr, "192.0.2.0/24")

	overlaps := OverlayReport(tr)
	if len(overlaps) != 1 {
		t.Fatalf("got %d overlaps, want 1: %+v", len(overlaps), overlaps)
	}
	if overlaps[0].Aggregate != "192.0.2.0/23" || overlaps[0].Member != "192.0.2.0/24" {
		t.Errorf("unexpected overlap: %+v", overlaps[0])
	}
}

func insert(t *testing.T, tr *radixtree.Tree, s string) {
	t.Helper()
	np, err := netip.ParsePrefix(s)
	if err != nil {
		t.Fatalf("ParsePrefix(%q): %v", s, err)
	}
	p, err := radixtree.NewPrefix(np)
	if err != nil {
		t.Fatalf("NewPrefix(%q): %v", s, err)
	}
	if _, err := tr.InsertExact(p); err != nil {
		t.Fatalf("InsertExact(%q): %v", s, err)
	}
}
