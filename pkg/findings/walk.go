package findings

import "github.com/jestersw/codeparser/pkg/syntax"

// walk visits every node reachable from root exactly once, in pre-order,
// using an explicit stack so deep trees cannot exhaust the goroutine stack.
// Nil children are skipped and reported to onNil when it is non-nil.
func walk(root syntax.Node, visit func(syntax.Node), onNil func(parent syntax.Node, index int)) {
	stack := []syntax.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visit(n)

		for i := n.ChildCount() - 1; i >= 0; i-- {
			c := n.Child(i)
			if c == nil {
				if onNil != nil {
					onNil(n, i)
				}
				continue
			}
			stack = append(stack, c)
		}
	}
}
