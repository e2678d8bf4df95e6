package rules

import (
	"fmt"
	"strings"
)

// RuleCompilationError reports a spec that could not be compiled.
//
// Index is the position of the spec in the list that was validated: the
// specs given to Validate, NewCatalog or WithExtraSpecs, or the concatenation
// read by LoadSpecsFiles. Source names the file it was read from, if any.
type RuleCompilationError struct {
	Index    int
	Source   string
	Category string // category of the offending spec, may be empty
	Field    string // offending field
	Err      error
}

func (e *RuleCompilationError) Error() string {
	msg := fmt.Sprintf("rule %d", e.Index)
	if e.Category != "" {
		msg += " (" + e.Category + ")"
	}
	msg += fmt.Sprintf(": invalid %s: %v", e.Field, e.Err)
	if e.Source != "" {
		return e.Source + ": " + msg
	}
	return msg
}

func (e *RuleCompilationError) Unwrap() error {
	return e.Err
}

// Rule is a compiled, immutable structural rule.
type Rule struct {
	Category string
	Severity string
	Kind     MatchKind

	index   int
	targets map[string]struct{}
	capture []string
	pred    predicate
	spec    Spec
}

// Targets reports whether nodes of the given kind are inspected by the rule.
func (r *Rule) Targets(kind string) bool {
	_, ok := r.targets[kind]
	return ok
}

// CapturePath returns the chain of field roles leading from a target node to
// the captured node. An empty path captures the target node itself.
func (r *Rule) CapturePath() []string {
	return r.capture
}

// Test evaluates the rule predicate against captured text. Rules without a
// predicate accept everything.
func (r *Rule) Test(text string) bool {
	if r.pred == nil {
		return true
	}
	return r.pred.test(text)
}

// Spec returns a copy of the spec the rule was compiled from.
func (r *Rule) Spec() Spec {
	s := r.spec
	s.Kinds = append([]string(nil), r.spec.Kinds...)
	s.Names = append([]string(nil), r.spec.Names...)
	s.Contains = append([]string(nil), r.spec.Contains...)
	s.Languages = append([]string(nil), r.spec.Languages...)
	return s
}

func (r *Rule) String() string {
	return fmt.Sprintf("%s[%s]", r.Category, r.Kind)
}

// compile validates spec and builds a Rule with the given ordinal.
func compile(spec Spec, index int) (*Rule, error) {
	fail := func(field string, err error) error {
		return &RuleCompilationError{Index: index, Category: spec.Category, Field: field, Err: err}
	}

	if strings.TrimSpace(spec.Category) == "" {
		return nil, fail("category", fmt.Errorf("category is required"))
	}
	if len(spec.Kinds) == 0 {
		return nil, fail("kinds", fmt.Errorf("at least one target node kind is required"))
	}
	targets := make(map[string]struct{}, len(spec.Kinds))
	for _, k := range spec.Kinds {
		if k == "" {
			return nil, fail("kinds", fmt.Errorf("empty node kind"))
		}
		targets[k] = struct{}{}
	}

	severity := spec.Severity
	if severity == "" {
		severity = DefaultSeverity(spec.Category)
	} else if !validSeverity(severity) {
		return nil, fail("severity", fmt.Errorf("unknown severity %q", severity))
	}

	r := &Rule{
		Category: spec.Category,
		Severity: severity,
		Kind:     spec.Kind,
		index:    index,
		targets:  targets,
		spec:     spec,
	}

	capture := spec.Capture
	switch spec.Kind {
	case KindCallCallee:
		if capture == "" {
			capture = DefaultCapture
		}
		if len(spec.Names) == 0 {
			return nil, fail("names", fmt.Errorf("at least one callee name is required"))
		}
		names := make(namesEqual, len(spec.Names))
		for _, n := range spec.Names {
			if n == "" {
				return nil, fail("names", fmt.Errorf("empty callee name"))
			}
			names[n] = struct{}{}
		}
		r.pred = names

	case KindStringSubstring:
		if spec.Pattern == "" && len(spec.Contains) == 0 {
			return nil, fail("pattern", fmt.Errorf("pattern or contains is required"))
		}
		p, err := newSubstring(spec.Pattern, spec.Contains)
		if err != nil {
			return nil, fail("pattern", err)
		}
		r.pred = p

	case KindStringCharset:
		if spec.MinLength <= 0 {
			return nil, fail("min_length", fmt.Errorf("must be positive, got %d", spec.MinLength))
		}
		set, err := parseCharset(spec.Charset)
		if err != nil {
			return nil, fail("charset", err)
		}
		r.pred = &charsetLength{allowed: set, min: spec.MinLength}

	case KindNodeKind:
		// Predicate fields would be ignored, silently matching every node.
		switch {
		case len(spec.Names) > 0:
			return nil, fail("names", fmt.Errorf("not allowed for %s rules", KindNodeKind))
		case spec.Pattern != "" || len(spec.Contains) > 0:
			return nil, fail("pattern", fmt.Errorf("not allowed for %s rules", KindNodeKind))
		case spec.Charset != "" || spec.MinLength != 0:
			return nil, fail("charset", fmt.Errorf("not allowed for %s rules", KindNodeKind))
		}

	default:
		return nil, fail("kind", fmt.Errorf("unknown match kind %q", spec.Kind))
	}

	path, err := parseCapture(capture)
	if err != nil {
		return nil, fail("capture", err)
	}
	r.capture = path
	return r, nil
}

// parseCapture splits "function.object" into field roles. "" and "self"
// capture the target node.
func parseCapture(capture string) ([]string, error) {
	if capture == "" || capture == "self" {
		return nil, nil
	}
	parts := strings.Split(capture, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("empty field in %q", capture)
		}
	}
	return parts, nil
}
