// Package syntax defines the read-only view of a parsed syntax tree that the
// matcher and scorer walk.
//
// A Node never owns the tree it belongs to. Whoever produced the tree is
// responsible for keeping it alive while nodes are in use.
package syntax

// Point is a zero-based row/column position.
type Point struct {
	Row    uint
	Column uint
}

// Node is a single syntax tree node.
//
// Implementations must return an untyped nil from Child and ChildByField when
// no node exists, so callers can compare against nil.
type Node interface {
	Kind() string
	StartByte() uint
	EndByte() uint
	StartPoint() Point
	ChildCount() int
	Child(i int) Node
	ChildByField(name string) Node
}

// Text returns the source slice covered by n. ok is false when the span is
// inverted or extends past the end of source.
func Text(n Node, source []byte) (string, bool) {
	start, end := n.StartByte(), n.EndByte()
	if start > end || end > uint(len(source)) {
		return "", false
	}
	return string(source[start:end]), true
}

// Count returns the number of nodes reachable from root, root included.
func Count(root Node) int {
	if root == nil {
		return 0
	}
	n := 0
	stack := []Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n++
		for i := node.ChildCount() - 1; i >= 0; i-- {
			if c := node.Child(i); c != nil {
				stack = append(stack, c)
			}
		}
	}
	return n
}
