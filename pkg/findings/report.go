package findings

import (
	"fmt"

	"github.com/jestersw/codeparser/pkg/syntax"
)

// Match is one site where a rule fired.
type Match struct {
	Category string `json:"category"`
	Line     uint   `json:"line"` // 1-based
	Text     string `json:"text"`

	Column   uint        `json:"-"` // 1-based
	Severity string      `json:"-"`
	Node     syntax.Node `json:"-"` // captured node; nil once detached
}

func (m Match) String() string {
	return fmt.Sprintf("%s at line %d: %s", m.Category, m.Line, m.Text)
}

// MalformedNodeWarning records a node that was skipped because its shape or
// span could not be trusted. It never aborts an analysis.
type MalformedNodeWarning struct {
	Kind      string `json:"kind,omitempty"`
	Category  string `json:"category,omitempty"` // rule being evaluated, if any
	StartByte uint   `json:"start_byte"`
	EndByte   uint   `json:"end_byte"`
	Line      uint   `json:"line,omitempty"`
	Reason    string `json:"reason"`
}

func (w MalformedNodeWarning) Error() string {
	if w.Kind == "" {
		return "malformed node: " + w.Reason
	}
	return fmt.Sprintf("malformed %s node at bytes %d-%d: %s", w.Kind, w.StartByte, w.EndByte, w.Reason)
}

func nodeWarning(n syntax.Node, category, reason string) MalformedNodeWarning {
	return MalformedNodeWarning{
		Kind:      n.Kind(),
		Category:  category,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Line:      n.StartPoint().Row + 1,
		Reason:    reason,
	}
}

// Report is the result of analysing one tree.
type Report struct {
	Complexity      uint                   `json:"complexity"`
	Vulnerabilities []Match                `json:"vulnerabilities"`
	Warnings        []MalformedNodeWarning `json:"warnings,omitempty"`
}

// Detach drops node references so the report can outlive its tree.
func (r *Report) Detach() *Report {
	for i := range r.Vulnerabilities {
		r.Vulnerabilities[i].Node = nil
	}
	return r
}

// Lines renders one line per vulnerability.
func (r *Report) Lines() []string {
	out := make([]string, 0, len(r.Vulnerabilities))
	for _, m := range r.Vulnerabilities {
		out = append(out, m.String())
	}
	return out
}
