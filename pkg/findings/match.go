package findings

import (
	"fmt"

	"github.com/jestersw/codeparser/pkg/rules"
	"github.com/jestersw/codeparser/pkg/syntax"
)

// MatchRule returns every site in the tree where rule fires, in pre-order.
//
// A target node whose capture cannot be resolved is skipped silently. A
// capture whose span falls outside source is skipped with a warning, as is a
// nil child.
func MatchRule(root syntax.Node, source []byte, rule *rules.Rule) ([]Match, []MalformedNodeWarning) {
	return matchRule(root, source, rule, true)
}

func matchRule(root syntax.Node, source []byte, rule *rules.Rule, reportNil bool) ([]Match, []MalformedNodeWarning) {
	if root == nil || rule == nil {
		return nil, nil
	}

	var (
		matches  []Match
		warnings []MalformedNodeWarning
	)

	var onNil func(syntax.Node, int)
	if reportNil {
		onNil = func(parent syntax.Node, i int) {
			warnings = append(warnings, nodeWarning(parent, rule.Category, fmt.Sprintf("child %d is nil", i)))
		}
	}

	path := rule.CapturePath()
	walk(root, func(n syntax.Node) {
		if !rule.Targets(n.Kind()) {
			return
		}
		capture := resolveCapture(n, path)
		if capture == nil {
			return
		}
		text, ok := syntax.Text(capture, source)
		if !ok {
			warnings = append(warnings, nodeWarning(capture, rule.Category, "span outside source"))
			return
		}
		if !rule.Test(text) {
			return
		}
		p := capture.StartPoint()
		matches = append(matches, Match{
			Category: rule.Category,
			Severity: rule.Severity,
			Line:     p.Row + 1,
			Column:   p.Column + 1,
			Text:     text,
			Node:     capture,
		})
	}, onNil)

	return matches, warnings
}

func resolveCapture(n syntax.Node, path []string) syntax.Node {
	for _, field := range path {
		n = n.ChildByField(field)
		if n == nil {
			return nil
		}
	}
	return n
}
