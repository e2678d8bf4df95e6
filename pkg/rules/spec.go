// Package rules compiles declarative structural rules into an immutable,
// ordered catalog.
//
// A rule names the node kinds it targets, which child to capture, and an
// optional predicate over the captured text. Rules are validated eagerly, so
// a Catalog that was built successfully never fails at match time.
package rules

// MatchKind selects the match spec variant of a rule.
type MatchKind string

const (
	// KindCallCallee matches call nodes whose callee text is one of Names.
	KindCallCallee MatchKind = "call-callee-equals"
	// KindStringSubstring matches string literals whose text matches Pattern
	// or contains one of the Contains literals.
	KindStringSubstring MatchKind = "string-substring-match"
	// KindStringCharset matches string literals whose unquoted content uses
	// only Charset characters and is at least MinLength long.
	KindStringCharset MatchKind = "string-charset-length-match"
	// KindNodeKind matches every node of the target kinds.
	KindNodeKind MatchKind = "node-kind"
)

// Built-in categories.
const (
	CategoryDynamicEval     = "Insecure dynamic evaluation"
	CategoryInjectableQuery = "Potential injectable query"
	CategoryHardcodedSecret = "Hardcoded secret"
	CategoryWeakRandom      = "Insecure randomness"
)

// Severity levels.
const (
	SevCritical = "critical"
	SevWarning  = "warning"
	SevInfo     = "info"
)

// DefaultCapture is the field role captured by call rules when none is given.
const DefaultCapture = "function"

// Spec is the uncompiled form of a rule, as written in Go or YAML.
type Spec struct {
	Category  string    `yaml:"category" json:"category"`
	Severity  string    `yaml:"severity,omitempty" json:"severity,omitempty"`
	Kind      MatchKind `yaml:"kind" json:"kind"`
	Languages []string  `yaml:"languages,omitempty" json:"languages,omitempty"`
	Kinds     []string  `yaml:"kinds" json:"kinds"`
	Capture   string    `yaml:"capture,omitempty" json:"capture,omitempty"`
	Names     []string  `yaml:"names,omitempty" json:"names,omitempty"`
	Pattern   string    `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Contains  []string  `yaml:"contains,omitempty" json:"contains,omitempty"`
	Charset   string    `yaml:"charset,omitempty" json:"charset,omitempty"`
	MinLength int       `yaml:"min_length,omitempty" json:"min_length,omitempty"`
}

// DefaultSeverity returns the severity used for a category when a spec does
// not set one.
func DefaultSeverity(category string) string {
	switch category {
	case CategoryDynamicEval, CategoryInjectableQuery, CategoryHardcodedSecret:
		return SevCritical
	case CategoryWeakRandom:
		return SevWarning
	default:
		return SevWarning
	}
}

func validSeverity(sev string) bool {
	switch sev {
	case SevCritical, SevWarning, SevInfo:
		return true
	}
	return false
}

// AppliesTo reports whether the spec is meant for the given dialect or
// language. A spec without Languages applies everywhere.
func (s Spec) AppliesTo(names ...string) bool {
	if len(s.Languages) == 0 {
		return true
	}
	for _, l := range s.Languages {
		for _, n := range names {
			if l == n {
				return true
			}
		}
	}
	return false
}
