// Package printer renders a resolved expansion as router configuration
// fragments. The vendor surface itself is an external collaborator
// (spec.md §1 leaves output formats out of scope); this package fixes
// the contract and ships one worked Cisco-style example.
package printer

import (
	"fmt"
	"io"

	"github.com/irrquery/irrgen/internal/asnset"
	"github.com/irrquery/irrgen/internal/radixtree"
)

// Printer renders the expander's resolved state in a vendor-specific
// syntax.
type Printer interface {
	PrintPrefixList(w io.Writer, name string, tree *radixtree.Tree) error
	PrintASPath(w io.Writer, name string, asns *asnset.Set) error
	PrintRouteFilterList(w io.Writer, name string, tree *radixtree.Tree) error
	PrintExtendedACL(w io.Writer, name string, tree *radixtree.Tree) error
	PrintASSet(w io.Writer, name string, asns *asnset.Set) error
}

// Cisco renders classic IOS configuration fragments.
type Cisco struct{}

func (Cisco) PrintPrefixList(w io.Writer, name string, tree *radixtree.Tree) error {
	seq := 10
	var werr error
	tree.Traverse(func(n radixtree.NodeView) {
		if werr != nil || n.IsGlue {
			return
		}
		line := fmt.Sprintf("ip prefix-list %s seq %d permit %s", name, seq, n.Prefix)
		if n.IsAggregate && (n.AggregateLow != n.Prefix.Masklen() || n.AggregateHi != n.Prefix.Masklen()) {
			line += fmt.Sprintf(" ge %d le %d", n.AggregateLow, n.AggregateHi)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			werr = err
			return
		}
		seq += 10
	})
	return werr
}

func (Cisco) PrintASPath(w io.Writer, name string, asns *asnset.Set) error {
	seq := 10
	for _, asn := range asns.Sorted() {
		if _, err := fmt.Fprintf(w, "ip as-path access-list %s permit ^%d$\n", name, asn); err != nil {
			return err
		}
		seq += 10
	}
	return nil
}

func (Cisco) PrintRouteFilterList(w io.Writer, name string, tree *radixtree.Tree) error {
	var werr error
	tree.Traverse(func(n radixtree.NodeView) {
		if werr != nil || n.IsGlue {
			return
		}
		low, hi := n.Prefix.Masklen(), n.Prefix.Masklen()
		if n.IsAggregate {
			low, hi = n.AggregateLow, n.AggregateHi
		}
		_, werr = fmt.Fprintf(w, "route-filter %s le %d ge %d\n", n.Prefix, hi, low)
	})
	return werr
}

func (Cisco) PrintExtendedACL(w io.Writer, name string, tree *radixtree.Tree) error {
	if _, err := fmt.Fprintf(w, "ip access-list extended %s\n", name); err != nil {
		return err
	}
	var werr error
	tree.Traverse(func(n radixtree.NodeView) {
		if werr != nil || n.IsGlue {
			return
		}
		_, werr = fmt.Fprintf(w, " permit ip %s any\n", n.Prefix)
	})
	return werr
}

func (Cisco) PrintASSet(w io.Writer, name string, asns *asnset.Set) error {
	if _, err := fmt.Fprintf(w, "! %s: %d members\n", name, asns.Len()); err != nil {
		return err
	}
	for _, asn := range asns.Sorted() {
		if _, err := fmt.Fprintf(w, "!  AS%d\n", asn); err != nil {
			return err
		}
	}
	return nil
}
