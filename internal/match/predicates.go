package match

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/standardbeagle/codegraph/internal/lang"
)

// Predicate is a structural post-filter over one captured node. Args are
// node kinds; has-child also accepts "field:<name>".
type Predicate func(spec *lang.Spec, n *tree_sitter.Node, args []string) bool

var predicates = map[string]Predicate{
	"has-child":       HasChild,
	"has-parent":      HasParent,
	"has-ancestor":    HasAncestor,
	"has-grandparent": HasGrandparent,
	"enclosing-is":    EnclosingIs,
}

// Evaluate runs the named predicate. "not-" prefixed names negate their base.
func Evaluate(name string, spec *lang.Spec, n *tree_sitter.Node, args []string) (bool, error) {
	negate := false
	base := name
	if strings.HasPrefix(name, "not-") {
		negate, base = true, strings.TrimPrefix(name, "not-")
	} else if strings.HasSuffix(name, "-not") {
		negate, base = true, strings.TrimSuffix(name, "-not")
	}
	p, ok := predicates[base]
	if !ok {
		return false, fmt.Errorf("unknown predicate %q", name)
	}
	return p(spec, n, args) != negate, nil
}

// HasChild reports whether n has a direct child of one of the kinds, or a
// child under one of the named fields.
func HasChild(_ *lang.Spec, n *tree_sitter.Node, args []string) bool {
	for _, a := range args {
		if field, ok := strings.CutPrefix(a, "field:"); ok {
			if n.ChildByFieldName(field) != nil {
				return true
			}
			continue
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if c := n.Child(i); c != nil && c.Kind() == a {
				return true
			}
		}
	}
	return false
}

// HasParent reports whether the direct parent is one of the kinds.
func HasParent(_ *lang.Spec, n *tree_sitter.Node, args []string) bool {
	p := n.Parent()
	return p != nil && oneOf(p.Kind(), args)
}

// HasGrandparent reports whether the parent's parent is one of the kinds.
func HasGrandparent(_ *lang.Spec, n *tree_sitter.Node, args []string) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	g := p.Parent()
	return g != nil && oneOf(g.Kind(), args)
}

// HasAncestor reports whether any proper ancestor is one of the kinds.
func HasAncestor(_ *lang.Spec, n *tree_sitter.Node, args []string) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if oneOf(p.Kind(), args) {
			return true
		}
	}
	return false
}

// EnclosingIs reports whether the nearest scope or function ancestor is one
// of the kinds. A node with no such ancestor encloses nothing and fails.
func EnclosingIs(spec *lang.Spec, n *tree_sitter.Node, args []string) bool {
	e := Enclosing(spec, n)
	return e != nil && oneOf(e.Kind(), args)
}

// Enclosing returns the nearest proper ancestor that opens a scope or a
// callable body, or nil at top level.
func Enclosing(spec *lang.Spec, n *tree_sitter.Node) *tree_sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if spec.IsBoundary(p.Kind()) {
			return p
		}
	}
	return nil
}

func oneOf(kind string, kinds []string) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
