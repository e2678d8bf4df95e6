package findings

import (
	"github.com/jestersw/codeparser/pkg/rules"
	"github.com/jestersw/codeparser/pkg/syntax"
)

// Analyze scores the tree once and runs every catalog rule over it, in
// catalog order. It performs no I/O and does not modify its inputs, so the
// same inputs always produce an equal report.
//
// Matches in the returned report reference nodes of root; call Detach before
// the tree is released if the report is kept.
func Analyze(root syntax.Node, source []byte, catalog *rules.Catalog, scorer *Scorer) *Report {
	if scorer == nil {
		scorer = NewScorer()
	}

	report := &Report{Vulnerabilities: []Match{}}
	report.Complexity, report.Warnings = scorer.Score(root)

	for _, rule := range catalog.Rules() {
		// Nil children were already reported by the scorer.
		matches, warnings := matchRule(root, source, rule, false)
		report.Vulnerabilities = append(report.Vulnerabilities, matches...)
		report.Warnings = append(report.Warnings, warnings...)
	}
	return report
}
