package rules

import (
	"fmt"
	"sort"
	"sync"
)

// base64Charset covers standard base64 output, the usual shape of embedded
// keys and tokens.
const base64Charset = "A-Za-z0-9+/="

// secretMinLength is the shortest literal reported as a hardcoded secret.
const secretMinLength = 40

// queryPattern flags literals that read like an interpolated SQL statement.
const queryPattern = `SELECT.*FROM.*WHERE`

var (
	dialectsMu sync.RWMutex
	dialects   = make(map[string][]Spec)
)

// registerDialect records the built-in specs for a dialect. Called from init.
func registerDialect(name string, specs []Spec) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[name] = specs
}

// DialectSpecs returns a copy of the built-in specs for a dialect, or nil when
// the dialect is unknown.
func DialectSpecs(name string) []Spec {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	specs, ok := dialects[name]
	if !ok {
		return nil
	}
	return append([]Spec(nil), specs...)
}

// Dialects returns the names of all registered dialects, sorted.
func Dialects() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasDialect reports whether a dialect is registered.
func HasDialect(name string) bool {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	_, ok := dialects[name]
	return ok
}

// BuiltinCatalog compiles the built-in rules for a dialect.
func BuiltinCatalog(dialect string) (*Catalog, error) {
	if !HasDialect(dialect) {
		return nil, fmt.Errorf("unknown rule dialect %q", dialect)
	}
	return NewCatalog(DialectSpecs(dialect)...)
}
