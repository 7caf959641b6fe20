// Package asciitree renders nested paths (as-set/route-set dependency
// chains, in this repo's case) as a box-drawing tree, for the
// -debug-graph diagnostic in internal/depgraph.
//
// Adapted from https://github.com/Tufin/asciitree: Add takes a path as
// a []string directly (the object-reference chain an expansion
// followed) instead of a string split on '/', and the caller supplies
// if_absent/if_present callbacks run as each path segment is visited.
package asciitree

import (
	"fmt"
	"io"
)

// Tree maps a path segment to the subtree reached through it.
type Tree map[string]Tree

// Add inserts path into the tree, calling if_absent the first time a
// segment is seen at its position and if_present on every subsequent
// visit.
func (tree Tree) Add(path []string, if_absent, if_present func(string, interface{}), arg interface{}) {
	if len(path) == 0 {
		return
	}

	nextTree, ok := tree[path[0]]
	if !ok {
		nextTree = Tree{}
		tree[path[0]] = nextTree
		if_absent(path[0], arg)
	} else {
		if_present(path[0], arg)
	}
	nextTree.Add(path[1:], if_absent, if_present, arg)
}

// Fprint writes tree as a box-drawing diagram to w.
func (tree Tree) Fprint(w io.Writer, root bool, padding string) {
	if tree == nil {
		return
	}

	index := 0
	for k, v := range tree {
		fmt.Fprintf(w, "%s%s\n", padding+getPadding(root, getBoxType(index, len(tree))), k)
		v.Fprint(w, false, padding+getPadding(root, getBoxTypeExternal(index, len(tree))))
		index++
	}
}

// BoxType is the box-drawing glyph used for one tree line.
type BoxType int

const (
	Regular BoxType = iota
	Last
	AfterLast
	Between
)

func (boxType BoxType) String() string {
	switch boxType {
	case Regular:
		return "├" // ├
	case Last:
		return "└" // └
	case AfterLast:
		return " "
	case Between:
		return "│" // │
	default:
		panic("invalid box type")
	}
}

func getBoxType(index, length int) BoxType {
	if index+1 == length {
		return Last
	} else if index+1 > length {
		return AfterLast
	}
	return Regular
}

func getBoxTypeExternal(index, length int) BoxType {
	if index+1 == length {
		return AfterLast
	}
	return Between
}

func getPadding(root bool, boxType BoxType) string {
	if root {
		return ""
	}
	return boxType.String() + " "
}
