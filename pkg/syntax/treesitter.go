package syntax

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// tsNode adapts a tree-sitter node to Node.
type tsNode struct {
	n *tree_sitter.Node
}

// FromTreeSitter wraps a tree-sitter node. A nil input yields a nil Node.
func FromTreeSitter(n *tree_sitter.Node) Node {
	if n == nil {
		return nil
	}
	return tsNode{n: n}
}

func (t tsNode) Kind() string    { return t.n.Kind() }
func (t tsNode) StartByte() uint { return t.n.StartByte() }
func (t tsNode) EndByte() uint   { return t.n.EndByte() }

func (t tsNode) StartPoint() Point {
	p := t.n.StartPosition()
	return Point{Row: p.Row, Column: p.Column}
}

func (t tsNode) ChildCount() int { return int(t.n.ChildCount()) }

func (t tsNode) Child(i int) Node {
	if i < 0 {
		return nil
	}
	return FromTreeSitter(t.n.Child(uint(i)))
}

func (t tsNode) ChildByField(name string) Node {
	return FromTreeSitter(t.n.ChildByFieldName(name))
}

// Raw returns the underlying tree-sitter node, or nil when n was not built by
// FromTreeSitter.
func Raw(n Node) *tree_sitter.Node {
	if t, ok := n.(tsNode); ok {
		return t.n
	}
	return nil
}
