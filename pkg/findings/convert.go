package findings

import (
	"fmt"
	"strconv"

	"github.com/jestersw/codeparser/pkg/rules"
)

// ToFindings converts a report into persistable findings for one file. A
// complexity finding is added when threshold is positive and the score
// reaches it.
func ToFindings(report *Report, filePath, language string, threshold int) []*Finding {
	if report == nil {
		return nil
	}
	out := make([]*Finding, 0, len(report.Vulnerabilities)+1)
	for _, m := range report.Vulnerabilities {
		sev := m.Severity
		if sev == "" {
			sev = rules.DefaultSeverity(m.Category)
		}
		out = append(out, &Finding{
			Analyzer: AnalyzerRules,
			Severity: sev,
			Category: m.Category,
			FilePath: filePath,
			Language: language,
			Line:     int(m.Line),
			Column:   int(m.Column),
			Title:    fmt.Sprintf("%s at line %d", m.Category, m.Line),
			Detail:   truncate(m.Text, maxTextLen),
		})
	}

	if threshold > 0 && report.Complexity >= uint(threshold) {
		sev := SevWarning
		if report.Complexity >= uint(threshold*SeverityCriticalMultiplier) {
			sev = SevCritical
		}
		out = append(out, &Finding{
			Analyzer: AnalyzerComplexity,
			Severity: sev,
			Category: CategoryComplexity,
			FilePath: filePath,
			Language: language,
			Line:     1,
			Title:    fmt.Sprintf("Structural complexity %d (threshold %d)", report.Complexity, threshold),
			Metadata: map[string]string{
				"complexity": strconv.FormatUint(uint64(report.Complexity), 10),
				"threshold":  strconv.Itoa(threshold),
			},
		})
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
