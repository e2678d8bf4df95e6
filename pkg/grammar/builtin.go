package grammar

import (
	"context"
	"sort"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// compiledIn maps canonical pack names to their CGO grammar bindings.
var compiledIn = map[string]BuiltinProvider{
	"go":         tree_sitter_go.Language,
	"javascript": tree_sitter_javascript.Language,
	"python":     tree_sitter_python.Language,
	"typescript": func() unsafe.Pointer { return tree_sitter_typescript.LanguageTypescript() },
}

// lazyLanguage resolves a provider at most once.
type lazyLanguage struct {
	once     sync.Once
	provider BuiltinProvider
	lang     *tree_sitter.Language
}

func (l *lazyLanguage) get() *tree_sitter.Language {
	l.once.Do(func() {
		if ptr := l.provider(); ptr != nil {
			l.lang = tree_sitter.NewLanguage(ptr)
		}
	})
	return l.lang
}

// BuiltinRegistry is the Loader for grammars linked into the binary. The set
// of grammars is fixed at construction, so it is safe for concurrent use.
type BuiltinRegistry struct {
	grammars map[string]*lazyLanguage
	names    []string
}

var _ Loader = (*BuiltinRegistry)(nil)

func NewBuiltinRegistry() *BuiltinRegistry {
	return newBuiltinRegistry(compiledIn)
}

func newBuiltinRegistry(providers map[string]BuiltinProvider) *BuiltinRegistry {
	r := &BuiltinRegistry{grammars: make(map[string]*lazyLanguage, len(providers))}
	for name, p := range providers {
		r.grammars[name] = &lazyLanguage{provider: p}
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// Load returns the language for name. A provider yielding a null language is
// reported as not found.
func (r *BuiltinRegistry) Load(_ context.Context, name string) (*tree_sitter.Language, error) {
	g, ok := r.grammars[name]
	if !ok {
		return nil, &ErrGrammarNotFound{Name: name}
	}
	lang := g.get()
	if lang == nil {
		return nil, &ErrGrammarNotFound{Name: name}
	}
	return lang, nil
}

func (r *BuiltinRegistry) Has(name string) bool {
	_, ok := r.grammars[name]
	return ok
}

// Available returns the compiled-in grammar names, sorted.
func (r *BuiltinRegistry) Available() []string {
	return append([]string(nil), r.names...)
}
