// Package depgraph supplies two optional diagnostics that sit beside
// the core expansion: an as-set/route-set dependency graph (the
// -debug-graph connected-components report) and an "overlay" report
// over the resolved prefix set, both modelled directly on the
// teacher's own overlays_processing.go / rib_analysis.go, repurposed
// from routing-table overlay detection to IRR object dependency and
// prefix-redundancy reporting.
package depgraph

import (
	"bytes"
	"strings"

	radix "github.com/Emeline-1/radix"
	graph "github.com/Emeline-1/basic_graph"

	"github.com/irrquery/irrgen/internal/asciitree"
	"github.com/irrquery/irrgen/internal/radixtree"
)

// Graph records as-set/route-set "references" edges as the expander
// discovers them, then reports the reachable object groups as
// connected components — the same shape overlays_processing.go uses
// to fold per-prefix overlays into their transitive closure.
type Graph struct {
	g *graph.Graph

	paths [][]string // object-reference chains, root first
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{g: graph.New()}
}

// AddEdge records that parent's members() reply referenced child.
func (d *Graph) AddEdge(parent, child string) {
	d.g.Add_edge(parent, child)
	d.paths = append(d.paths, []string{parent, child})
}

// AsciiTree renders every recorded reference chain as a single
// box-drawing diagram, merging shared prefixes the way a directory
// tree would.
func (d *Graph) AsciiTree() string {
	root := asciitree.Tree{}
	noop := func(string, interface{}) {}
	for _, path := range d.paths {
		root.Add(path, noop, noop, nil)
	}
	var buf bytes.Buffer
	root.Fprint(&buf, true, "")
	return buf.String()
}

// ConnectedComponents returns every connected component of the
// dependency graph, each as a slice of object names. Order follows the
// underlying graph's iterator and is not otherwise meaningful.
func (d *Graph) ConnectedComponents() [][]string {
	var out [][]string
	d.g.Set_iterator()
	for d.g.Next_connected_component() {
		cc := d.g.Connected_component()
		component := make([]string, len(cc))
		copy(component, cc)
		out = append(out, component)
	}
	return out
}

// Overlap describes one prefix that is redundant with respect to an
// aggregate already present in the same resolved prefix set.
type Overlap struct {
	Aggregate string
	Member    string
}

// OverlayReport walks tree and reports every prefix that is a direct
// child of another prefix already present in the tree — the prefix
// equivalent of overlays_processing.go's AS-path-equality overlay
// detection, here simplified to plain containment since a resolved
// irrgen prefix set carries no per-entry AS path to compare.
func OverlayReport(tree *radixtree.Tree) []Overlap {
	rt := radix.New()
	tree.Traverse(func(n radixtree.NodeView) {
		if n.IsGlue {
			return
		}
		rt.Insert(binaryKey(n.Prefix), n.Prefix.String())
	})

	var out []Overlap
	rt.Walk_post(func(parent *radix.LeafNode, children []*radix.LeafNode) {
		parentPrefix, ok := parent.Val.(string)
		if !ok || parentPrefix == "" {
			return
		}
		for _, child := range children {
			childPrefix, ok := child.Val.(string)
			if !ok || childPrefix == "" || childPrefix == parentPrefix {
				continue
			}
			out = append(out, Overlap{Aggregate: parentPrefix, Member: childPrefix})
		}
	})
	return out
}

// binaryKey renders p's network bits as a "0"/"1" string, the bit
// representation github.com/Emeline-1/radix keys its trie on.
func binaryKey(p radixtree.Prefix) string {
	addr := p.Addr().AsSlice()
	var b strings.Builder
	b.Grow(p.Masklen())
	for i := 0; i < p.Masklen(); i++ {
		byteIdx := i / 8
		bitIdx := 7 - (i % 8)
		if byteIdx >= len(addr) {
			break
		}
		if addr[byteIdx]&(1<<uint(bitIdx)) != 0 {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
