// Package findings matches compiled rules against syntax trees, scores their
// structural complexity, and defines the persisted form of the results.
package findings

import (
	"strings"
	"time"

	"github.com/jestersw/codeparser/pkg/rules"
)

// Severity levels for findings.
const (
	SevCritical = rules.SevCritical
	SevWarning  = rules.SevWarning
	SevInfo     = rules.SevInfo
)

// SeverityRank returns a numeric rank for the given severity level:
// info=0, warning=1, critical=2. Unknown values return -1.
func SeverityRank(sev string) int {
	switch sev {
	case SevInfo:
		return 0
	case SevWarning:
		return 1
	case SevCritical:
		return 2
	default:
		return -1
	}
}

// Analyzer names.
const (
	AnalyzerRules      = "rules"
	AnalyzerComplexity = "complexity"
	AnalyzerSecrets    = "secrets"
)

// CategoryComplexity is the category of file-level complexity findings.
const CategoryComplexity = "High structural complexity"

// Finding is the persisted form of a single result.
type Finding struct {
	ID        string            `json:"id"`                 // ULID
	Analyzer  string            `json:"analyzer"`           // "rules", "complexity", "secrets"
	Severity  string            `json:"severity"`           // "critical", "warning", "info"
	Category  string            `json:"category,omitempty"` // rule category
	FilePath  string            `json:"file"`               // Relative file path
	Language  string            `json:"lang,omitempty"`
	Line      int               `json:"line"`             // Start line (1-indexed)
	Column    int               `json:"column,omitempty"` // Start column (1-indexed)
	Title     string            `json:"title"`            // Short description
	Detail    string            `json:"detail,omitempty"` // Matched text or explanation
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// SearchOptions for filtering findings.
type SearchOptions struct {
	Analyzer string // Filter by analyzer name
	Severity string // Filter by severity
	FilePath string // Filter by file path pattern (substring)
	Category string // Filter by category
	Language string // Filter by language
	Limit    int    // Max results (0 = default, <0 = unlimited)
}

// Matches reports whether f satisfies the non-text filters in opts.
func (o SearchOptions) Matches(f *Finding) bool {
	if o.Analyzer != "" && f.Analyzer != o.Analyzer {
		return false
	}
	if o.Severity != "" && f.Severity != o.Severity {
		return false
	}
	if o.FilePath != "" && !strings.Contains(f.FilePath, o.FilePath) {
		return false
	}
	if o.Category != "" && f.Category != o.Category {
		return false
	}
	if o.Language != "" && f.Language != o.Language {
		return false
	}
	return true
}

// Stats holds aggregate counts of findings.
type Stats struct {
	Total      int            `json:"total"`
	Files      int            `json:"files"`
	ByAnalyzer map[string]int `json:"byAnalyzer"`
	BySeverity map[string]int `json:"bySeverity"`
	ByCategory map[string]int `json:"byCategory"`
}

// SearchResult pairs a finding with its search relevance score.
type SearchResult struct {
	Finding *Finding
	Score   float64
}
