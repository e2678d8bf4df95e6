// Package grammar provides the tree-sitter grammars and per-language pack
// metadata used by the analysis engine.
//
// Grammars are compiled in via CGO. Pack metadata (file detection, branching
// node kinds, rule dialect) is embedded as JSON and may be overridden from
// disk.
package grammar

import (
	"context"
	"fmt"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// Loader provides access to tree-sitter language grammars.
type Loader interface {
	// Load returns the Language for the given canonical name.
	Load(ctx context.Context, name string) (*tree_sitter.Language, error)

	// Available returns all grammar names that can be loaded, sorted.
	Available() []string
}

// BuiltinProvider is a function that returns an unsafe.Pointer to a TSLanguage.
// This is the signature exposed by tree-sitter grammar Go bindings.
type BuiltinProvider func() unsafe.Pointer

// ErrGrammarNotFound is returned when a grammar is not available.
type ErrGrammarNotFound struct {
	Name string
}

func (e *ErrGrammarNotFound) Error() string {
	return fmt.Sprintf("grammar %q not found", e.Name)
}
