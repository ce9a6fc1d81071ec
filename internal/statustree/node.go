package statustree

// node is the tree's internal mutable representation. Unlike Value (an
// immutable, copy-on-read sum type handed to callers), node is the
// loop-goroutine-owned storage: a scalar/seq leaf, or a mapping with named
// children, each stamped with the revision it (or an ancestor) was last
// written at.
type node struct {
	revision int64
	kind     Kind
	scalar   Value // valid when kind != KindMap
	children map[string]*node
}

func newEmptyMapNode(revision int64) *node {
	return &node{kind: KindMap, revision: revision, children: map[string]*node{}}
}

// valueToNode builds a fresh node subtree from a Value, stamping every node
// (including newly materialized mapping children) with revision r.
func valueToNode(v Value, r int64) *node {
	if v.Kind() == KindMap {
		n := &node{kind: KindMap, revision: r, children: map[string]*node{}}
		for name, child := range v.MapValue() {
			n.children[name] = valueToNode(child, r)
		}
		return n
	}
	return &node{kind: v.Kind(), revision: r, scalar: v}
}

// nodeValue reconstructs the Value a node represents.
func nodeValue(n *node) Value {
	if n.kind == KindMap {
		m := make(map[string]Value, len(n.children))
		for name, child := range n.children {
			m[name] = nodeValue(child)
		}
		return Value{kind: KindMap, m: m}
	}
	return n.scalar
}
