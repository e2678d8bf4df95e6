package code

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/jestersw/codeparser/pkg/grammar"
	"github.com/jestersw/codeparser/pkg/syntax"
)

var errNoTree = errors.New("parser produced no tree")

// ErrSyntax is wrapped by a ParseError when strict parsing rejects a tree that
// contains error nodes.
var ErrSyntax = errors.New("source contains syntax errors")

// ParseError reports that a syntax tree could not be produced for the input.
type ParseError struct {
	Language string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s source: %v", e.Language, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Tree is a parsed syntax tree together with the source it was parsed from.
// It must be closed after use; nodes obtained from Root are invalid after Close.
type Tree struct {
	Language string
	Source   []byte
	tree     *tree_sitter.Tree
}

// Root returns the root node of the tree.
func (t *Tree) Root() syntax.Node {
	return syntax.FromTreeSitter(t.tree.RootNode())
}

// HasError reports whether the parser had to recover from syntax errors.
func (t *Tree) HasError() bool {
	return t.tree.RootNode().HasError()
}

// Close releases the underlying tree-sitter tree.
func (t *Tree) Close() {
	if t.tree != nil {
		t.tree.Close()
		t.tree = nil
	}
}

// Parse parses source with the grammar registered under lang.
// tree-sitter recovers from most syntax errors, so a tree is normally returned
// even for invalid input; check Tree.HasError when that matters.
func Parse(ctx context.Context, loader grammar.Loader, lang string, source []byte) (*Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	language, err := loader.Load(ctx, lang)
	if err != nil {
		return nil, &ParseError{Language: lang, Err: err}
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(language); err != nil {
		return nil, &ParseError{Language: lang, Err: fmt.Errorf("set language: %w", err)}
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, &ParseError{Language: lang, Err: errNoTree}
	}
	if err := ctx.Err(); err != nil {
		tree.Close()
		return nil, err
	}

	return &Tree{Language: lang, Source: source, tree: tree}, nil
}

// DetectLanguage determines the language of a file using (in order):
// 1. File extension
// 2. Known filename
// 3. Shebang line (for extensionless scripts, requires content)
func DetectLanguage(filePath string, content []byte) string {
	reg := grammar.DefaultPackRegistry()

	ext := strings.ToLower(filepath.Ext(filePath))
	if lang, ok := reg.LangForExtension(ext); ok {
		return lang
	}

	base := filepath.Base(filePath)
	if lang, ok := reg.LangForFilename(base); ok {
		return lang
	}

	if len(content) > 0 {
		return detectShebang(content)
	}

	return ""
}

// detectShebang parses the first line of content for a shebang interpreter.
func detectShebang(content []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	if !scanner.Scan() {
		return ""
	}
	line := scanner.Text()

	if !strings.HasPrefix(line, "#!") {
		return ""
	}

	// Parse "#!/usr/bin/env python3" or "#!/usr/bin/python3"
	shebang := strings.TrimSpace(strings.TrimPrefix(line, "#!"))
	parts := strings.Fields(shebang)
	if len(parts) == 0 {
		return ""
	}

	// If using /usr/bin/env, the interpreter is the next argument
	interpreter := filepath.Base(parts[0])
	if interpreter == "env" && len(parts) > 1 {
		interpreter = filepath.Base(parts[1])
	}

	reg := grammar.DefaultPackRegistry()
	if lang, ok := reg.LangForShebang(interpreter); ok {
		return lang
	}

	// python3.12 -> python
	stripped := strings.TrimRight(interpreter, "0123456789.")
	if lang, ok := reg.LangForShebang(stripped); ok {
		return lang
	}

	return ""
}

// SupportedFile returns true if the file is supported (by extension or filename).
func SupportedFile(filePath string) bool {
	reg := grammar.DefaultPackRegistry()
	ext := strings.ToLower(filepath.Ext(filePath))
	if _, ok := reg.LangForExtension(ext); ok {
		return true
	}
	_, ok := reg.LangForFilename(filepath.Base(filePath))
	return ok
}
