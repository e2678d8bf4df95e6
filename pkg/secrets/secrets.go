// Package secrets runs the Titus (NoseyParker-compatible) rule set over files
// as a deep complement to the hardcoded-secret tree rules.
package secrets

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/praetorian-inc/titus"

	"github.com/jestersw/codeparser/pkg/findings"
	"github.com/jestersw/codeparser/pkg/rules"
)

// maxSnippetLine caps each context line shown in a finding's detail.
const maxSnippetLine = 120

// skipExtensions lists binary or bulky file types never worth scanning.
var skipExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".o": true, ".a": true,
	".pyc": true, ".pyo": true, ".class": true, ".jar": true, ".war": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true, ".otf": true,
	".db": true, ".sqlite": true, ".sqlite3": true, ".bleve": true,
	".pdf": true, ".lock": true,
}

type matcher interface {
	ScanFile(path string) ([]*titus.Match, error)
	RuleCount() int
}

// Scanner wraps a Titus scanner. It is safe for concurrent use.
type Scanner struct {
	mu    sync.Mutex
	ts    matcher
	close func()
}

// New creates a Scanner. When validate is true, matches are checked against
// the live provider APIs, which makes network calls.
func New(validate bool) (*Scanner, error) {
	var opts []titus.Option
	if validate {
		opts = append(opts, titus.WithValidation())
	}
	ts, err := titus.NewScanner(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets scanner: %w", err)
	}
	return &Scanner{ts: ts, close: func() { ts.Close() }}, nil
}

// RuleCount returns the number of loaded detection rules.
func (s *Scanner) RuleCount() int {
	return s.ts.RuleCount()
}

// Close releases the underlying scanner.
func (s *Scanner) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.close()
}

// Skip reports whether path has an extension that is never scanned.
func Skip(path string) bool {
	return skipExtensions[strings.ToLower(filepath.Ext(path))]
}

// ScanFile scans the file at path. relPath is the name recorded on findings.
func (s *Scanner) ScanFile(path, relPath string) ([]*findings.Finding, error) {
	s.mu.Lock()
	matches, err := s.ts.ScanFile(path)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", relPath, err)
	}

	out := make([]*findings.Finding, 0, len(matches))
	now := time.Now()
	for _, match := range matches {
		line := 0
		if match.Location.Source.Start.Line > 0 {
			line = int(match.Location.Source.Start.Line)
		}

		severity := findings.SevWarning
		if match.ValidationResult != nil && match.ValidationResult.Status == titus.StatusValid {
			severity = findings.SevCritical
		}

		metadata := map[string]string{
			"rule_id":   match.RuleID,
			"rule_name": match.RuleName,
			"provider":  categorizeRule(match.RuleID),
		}
		if match.ValidationResult != nil {
			metadata["validation"] = string(match.ValidationResult.Status)
		}
		if line > 0 {
			metadata["line"] = strconv.Itoa(line)
		}

		out = append(out, &findings.Finding{
			Analyzer:  findings.AnalyzerSecrets,
			Severity:  severity,
			Category:  rules.CategoryHardcodedSecret,
			FilePath:  relPath,
			Line:      line,
			Title:     fmt.Sprintf("Potential secret: %s", match.RuleName),
			Detail:    buildDetail(match, relPath),
			Metadata:  metadata,
			CreatedAt: now,
		})
	}
	return out, nil
}

// categorizeRule maps a Titus rule ID like "np.aws.1" to a provider name.
func categorizeRule(ruleID string) string {
	parts := strings.SplitN(ruleID, ".", 3)
	if len(parts) < 2 || parts[1] == "" {
		return "generic"
	}

	switch parts[1] {
	case "docker", "dockerhub":
		return "docker"
	case "pem", "rsa":
		return "crypto_key"
	default:
		return parts[1]
	}
}

func buildDetail(match *titus.Match, filePath string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Rule: %s (%s)\n", match.RuleName, match.RuleID)
	fmt.Fprintf(&sb, "File: %s\n", filePath)

	if match.Location.Source.Start.Line > 0 {
		fmt.Fprintf(&sb, "Line: %d", match.Location.Source.Start.Line)
		if match.Location.Source.Start.Column > 0 {
			fmt.Fprintf(&sb, ", Column: %d", match.Location.Source.Start.Column)
		}
		sb.WriteString("\n")
	}

	if match.ValidationResult != nil {
		fmt.Fprintf(&sb, "Validation: %s", match.ValidationResult.Status)
		if match.ValidationResult.Message != "" {
			fmt.Fprintf(&sb, " (%s)", match.ValidationResult.Message)
		}
		sb.WriteString("\n")
	}

	// The matching line itself is never shown.
	if len(match.Snippet.Before) > 0 {
		sb.WriteString("\nContext:\n")
		writeContext(&sb, string(match.Snippet.Before))
		sb.WriteString("  [REDACTED SECRET]\n")
		writeContext(&sb, string(match.Snippet.After))
	}

	return sb.String()
}

func writeContext(sb *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if len(line) > maxSnippetLine {
			line = line[:maxSnippetLine] + "..."
		}
		fmt.Fprintf(sb, "  %s\n", line)
	}
}
