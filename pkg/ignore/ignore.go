// Package ignore provides gitignore-compatible path matching for scans and the
// file watcher.
//
// It loads patterns from a project's .codeparserignore file (if present) and
// merges them with built-in defaults for dependencies, build output and
// generated code.
//
// Pattern syntax mirrors .gitignore:
//
//	# comment
//	*.pb.go          match files by extension
//	vendor/          match directories by name (trailing slash)
//	**/test/         match at any depth
//	!important.go    negate a previous pattern
//	/rootonly        anchored to project root (leading slash)
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileName is the per-project ignore file.
const FileName = ".codeparserignore"

// Matcher tests whether a path should be ignored.
type Matcher struct {
	rules []rule
}

type rule struct {
	pattern  string
	negation bool
	dirOnly  bool
	anchored bool // pattern contains '/' (other than trailing), anchored to root
}

// BuiltinDefaults are patterns applied even when no ignore file exists.
var BuiltinDefaults = []string{
	// Version control
	".git/",
	".svn/",
	".hg/",

	// Own state
	".codeparser/",

	// Node / JavaScript / TypeScript
	"node_modules/",
	"dist/",
	".next/",
	".nuxt/",
	"coverage/",
	".cache/",
	"*.min.js",

	// Python
	"__pycache__/",
	".venv/",
	"venv/",
	".tox/",
	".mypy_cache/",
	".pytest_cache/",
	"*.egg-info/",
	"site-packages/",

	// Go
	"vendor/",

	// Build output
	"build/",
	"out/",
	"bin/",

	// IDE / Editor
	".idea/",
	".vscode/",

	// Generated code
	"*.pb.go",
	"*_generated.go",
	"*.gen.go",
	"*.pb.ts",
	"*.pb.js",
	"*_pb2.py",

	// Test fixtures
	"**/testdata/",
	"**/fixtures/",
}

// New creates a Matcher from built-in defaults plus an optional ignore file at
// <projectRoot>/.codeparserignore, followed by extra patterns. Later patterns
// take precedence and may negate earlier ones.
func New(projectRoot string, extra ...string) (*Matcher, error) {
	m := NewFromDefaults()

	if err := m.loadFile(filepath.Join(projectRoot, FileName)); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err := m.Add(extra...); err != nil {
		return nil, err
	}
	return m, nil
}

// NewFromDefaults creates a Matcher using only built-in defaults (no file).
func NewFromDefaults() *Matcher {
	m := &Matcher{}
	for _, p := range BuiltinDefaults {
		m.rules = append(m.rules, parsePattern(p))
	}
	return m
}

// NewEmpty creates a Matcher with no rules at all; nothing is ignored.
func NewEmpty() *Matcher {
	return &Matcher{}
}

// Add appends patterns. Invalid glob syntax is rejected.
func (m *Matcher) Add(patterns ...string) error {
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		r := parsePattern(p)
		if !doublestar.ValidatePattern(r.pattern) {
			return fmt.Errorf("invalid ignore pattern %q", p)
		}
		m.rules = append(m.rules, r)
	}
	return nil
}

// ShouldIgnore reports whether the given path (relative to the project root)
// should be ignored. isDir must be true when path refers to a directory.
func (m *Matcher) ShouldIgnore(path string, isDir bool) bool {
	path = strings.TrimSuffix(filepath.ToSlash(path), "/")
	path = strings.TrimPrefix(path, "./")

	if path == "" || path == "." {
		return false
	}

	// Last matching rule wins.
	ignored := false
	matched := false
	for _, r := range m.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.match(path) {
			ignored = !r.negation
			matched = true
		}
	}

	if ignored {
		return true
	}
	// An explicit negation beats an ignored parent directory.
	if matched {
		return false
	}

	// Files handed over one by one (watcher events) still need their parent
	// directories checked.
	if !isDir {
		parts := strings.Split(path, "/")
		for i := 1; i < len(parts); i++ {
			if m.ShouldIgnore(strings.Join(parts[:i], "/"), true) {
				return true
			}
		}
	}

	return false
}

// ShouldIgnoreDir is a convenience for ShouldIgnore(path, true).
func (m *Matcher) ShouldIgnoreDir(path string) bool {
	return m.ShouldIgnore(path, true)
}

// ShouldIgnoreFile is a convenience for ShouldIgnore(path, false).
func (m *Matcher) ShouldIgnoreFile(path string) bool {
	return m.ShouldIgnore(path, false)
}

// WalkFunc returns a skip-check for use inside filepath.WalkDir callbacks. It
// converts absolute paths to paths relative to projectRoot.
func (m *Matcher) WalkFunc(projectRoot string) func(path string, isDir bool) (skip bool, skipDir bool) {
	return func(path string, isDir bool) (bool, bool) {
		rel, err := filepath.Rel(projectRoot, path)
		if err != nil {
			rel = path
		}
		if m.ShouldIgnore(rel, isDir) {
			return true, isDir
		}
		return false, false
	}
}

func (m *Matcher) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := m.Add(patterns...); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// parsePattern converts a gitignore-style pattern string into a rule.
func parsePattern(pattern string) rule {
	r := rule{}

	if strings.HasPrefix(pattern, "!") {
		r.negation = true
		pattern = pattern[1:]
	}
	if strings.HasSuffix(pattern, "/") {
		r.dirOnly = true
		pattern = strings.TrimSuffix(pattern, "/")
	}
	if strings.HasPrefix(pattern, "/") {
		r.anchored = true
		pattern = strings.TrimPrefix(pattern, "/")
	}
	// A slash anywhere else also anchors the pattern, as in gitignore.
	if strings.Contains(pattern, "/") {
		r.anchored = true
	}

	r.pattern = pattern
	return r
}

// match tests a forward-slash path relative to the project root.
func (r *rule) match(path string) bool {
	pattern := r.pattern
	if !r.anchored {
		pattern = "**/" + pattern
	}
	ok, _ := doublestar.Match(pattern, path)
	return ok
}
