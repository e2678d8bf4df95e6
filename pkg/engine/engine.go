// Package engine is the entry point for analysing source text: it resolves a
// language tag, parses the source and runs the language's rule catalog and
// complexity scorer over the tree.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jestersw/codeparser/pkg/code"
	"github.com/jestersw/codeparser/pkg/findings"
	"github.com/jestersw/codeparser/pkg/grammar"
	"github.com/jestersw/codeparser/pkg/rules"
	"github.com/jestersw/codeparser/pkg/syntax"
)

// Language describes a language the engine can analyse.
type Language struct {
	Name        string   `json:"name"`
	Dialect     string   `json:"dialect"`
	Aliases     []string `json:"aliases,omitempty"`
	Extensions  []string `json:"extensions,omitempty"`
	Rules       int      `json:"rules"`
	BranchKinds []string `json:"branch_kinds"`

	catalog *rules.Catalog
	scorer  *findings.Scorer
}

// Engine analyses source text. Catalogs are compiled once in New and shared
// read-only, so an Engine is safe for concurrent use.
type Engine struct {
	loader    grammar.Loader
	packs     *grammar.PackRegistry
	strict    bool
	log       *zap.Logger
	languages map[string]*Language
	tags      map[string]string // accepted tag -> canonical name
}

type options struct {
	loader   grammar.Loader
	packs    *grammar.PackRegistry
	strict   bool
	logger   *zap.Logger
	extra    []rules.Spec
	branches map[string][]string
}

// Option configures an Engine.
type Option func(*options)

// WithLoader sets the grammar loader. Defaults to the compiled-in grammars.
func WithLoader(l grammar.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithPackRegistry sets the pack registry. Defaults to grammar.DefaultPackRegistry.
func WithPackRegistry(r *grammar.PackRegistry) Option {
	return func(o *options) { o.packs = r }
}

// WithStrictParse makes Analyze fail with a *code.ParseError when the tree
// contains syntax errors instead of analysing the recovered tree.
func WithStrictParse(strict bool) Option {
	return func(o *options) { o.strict = strict }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithExtraSpecs appends rule specs after the built-in rules of every
// language or dialect they apply to.
func WithExtraSpecs(specs ...rules.Spec) Option {
	return func(o *options) { o.extra = append(o.extra, specs...) }
}

// WithBranchKinds overrides the branching node kinds for a language.
func WithBranchKinds(lang string, kinds []string) Option {
	return func(o *options) {
		if o.branches == nil {
			o.branches = make(map[string][]string)
		}
		o.branches[lang] = kinds
	}
}

// New builds an engine for every pack that has both a grammar and a rule
// dialect. It fails with a *rules.RuleCompilationError if any catalog does
// not compile.
func New(opts ...Option) (*Engine, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.loader == nil {
		o.loader = grammar.NewBuiltinRegistry()
	}
	if o.packs == nil {
		o.packs = grammar.DefaultPackRegistry()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	e := &Engine{
		loader:    o.loader,
		packs:     o.packs,
		strict:    o.strict,
		log:       o.logger,
		languages: make(map[string]*Language),
		tags:      make(map[string]string),
	}

	// Extra specs are numbered by their position in o.extra, not by where
	// they land in each language's catalog.
	if err := rules.Validate(o.extra...); err != nil {
		return nil, fmt.Errorf("extra rules: %w", err)
	}

	available := make(map[string]bool)
	for _, name := range o.loader.Available() {
		available[name] = true
	}

	for _, name := range o.packs.All() {
		pack := o.packs.Get(name)
		if pack.Dialect == "" || !rules.HasDialect(pack.Dialect) {
			continue
		}
		if !available[name] {
			e.log.Debug("skipping language without grammar", zap.String("language", name))
			continue
		}

		specs := append(rules.DialectSpecs(pack.Dialect), rules.Filter(o.extra, name, pack.Dialect)...)
		catalog, err := rules.NewCatalog(specs...)
		if err != nil {
			return nil, fmt.Errorf("compile %s rules: %w", name, err)
		}

		kinds := pack.BranchTypes()
		if override, ok := o.branches[name]; ok {
			kinds = override
		}
		scorer := findings.NewScorer(kinds...)

		e.languages[name] = &Language{
			Name:        name,
			Dialect:     pack.Dialect,
			Aliases:     append([]string(nil), pack.Meta.Aliases...),
			Extensions:  append([]string(nil), pack.Meta.Extensions...),
			Rules:       catalog.Len(),
			BranchKinds: scorer.Branching.Sorted(),
			catalog:     catalog,
			scorer:      scorer,
		}
		e.tags[name] = name
		for _, alias := range pack.Meta.Aliases {
			e.tags[alias] = name
		}
		e.log.Debug("language ready",
			zap.String("language", name),
			zap.String("dialect", pack.Dialect),
			zap.Int("rules", catalog.Len()),
		)
	}

	for _, s := range o.extra {
		if len(s.Languages) > 0 && !e.anyLanguage(s) {
			e.log.Warn("extra rule applies to no supported language",
				zap.String("category", s.Category),
				zap.Strings("languages", s.Languages),
			)
		}
	}

	return e, nil
}

func (e *Engine) anyLanguage(s rules.Spec) bool {
	for _, l := range e.languages {
		if s.AppliesTo(l.Name, l.Dialect) {
			return true
		}
	}
	return false
}

// Resolve maps a language tag or alias to a supported canonical name.
func (e *Engine) Resolve(tag string) (string, error) {
	l, err := e.language(tag)
	if err != nil {
		return "", err
	}
	return l.Name, nil
}

func (e *Engine) language(tag string) (*Language, error) {
	key := strings.ToLower(strings.TrimSpace(tag))
	if name, ok := e.tags[key]; ok {
		return e.languages[name], nil
	}
	return nil, &UnsupportedLanguageError{Language: tag, Suggestions: suggest(key, e.tags)}
}

// Analyze parses source as the given language and analyses it. The returned
// report holds no references into the parsed tree.
func (e *Engine) Analyze(ctx context.Context, lang string, source []byte) (*findings.Report, error) {
	l, err := e.language(lang)
	if err != nil {
		return nil, err
	}

	tree, err := code.Parse(ctx, e.loader, l.Name, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	if e.strict && tree.HasError() {
		return nil, &code.ParseError{Language: l.Name, Err: code.ErrSyntax}
	}

	return findings.Analyze(tree.Root(), source, l.catalog, l.scorer).Detach(), nil
}

// AnalyzeTree analyses a tree the caller already parsed. Matches reference
// nodes of root and are valid only while the caller keeps the tree alive.
func (e *Engine) AnalyzeTree(lang string, root syntax.Node, source []byte) (*findings.Report, error) {
	l, err := e.language(lang)
	if err != nil {
		return nil, err
	}
	return findings.Analyze(root, source, l.catalog, l.scorer), nil
}

// Catalog returns the compiled rule catalog for a language.
func (e *Engine) Catalog(lang string) (*rules.Catalog, error) {
	l, err := e.language(lang)
	if err != nil {
		return nil, err
	}
	return l.catalog, nil
}

// Languages returns the supported languages sorted by name.
func (e *Engine) Languages() []Language {
	out := make([]Language, 0, len(e.languages))
	for _, l := range e.languages {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Packs returns the pack registry the engine was built from.
func (e *Engine) Packs() *grammar.PackRegistry {
	return e.packs
}
