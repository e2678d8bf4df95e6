package grammar

import (
	"context"
	"errors"
	"testing"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// expectedBuiltins lists the grammars that must be compiled in.
var expectedBuiltins = []string{"go", "javascript", "python", "typescript"}

func TestNewBuiltinRegistryContainsAll(t *testing.T) {
	r := NewBuiltinRegistry()

	names := r.Available()
	if len(names) != len(expectedBuiltins) {
		t.Fatalf("expected %d builtins, got %d: %v", len(expectedBuiltins), len(names), names)
	}

	for i, want := range expectedBuiltins {
		if names[i] != want {
			t.Errorf("Available()[%d] = %q; want %q", i, names[i], want)
		}
	}
}

func TestBuiltinRegistryHas(t *testing.T) {
	r := NewBuiltinRegistry()

	for _, name := range expectedBuiltins {
		if !r.Has(name) {
			t.Errorf("Has(%q) = false; want true", name)
		}
	}

	for _, name := range []string{"ruby", "rust", "nonexistent"} {
		if r.Has(name) {
			t.Errorf("Has(%q) = true; want false (not a builtin)", name)
		}
	}
}

func TestBuiltinRegistryLoadAll(t *testing.T) {
	r := NewBuiltinRegistry()

	for _, name := range expectedBuiltins {
		t.Run(name, func(t *testing.T) {
			lang, err := r.Load(context.Background(), name)
			if err != nil {
				t.Fatalf("Load(%q): %v", name, err)
			}
			if lang == nil {
				t.Fatalf("Load(%q) returned nil Language", name)
			}

			parser := tree_sitter.NewParser()
			defer parser.Close()
			if err := parser.SetLanguage(lang); err != nil {
				t.Fatalf("SetLanguage(%q): %v", name, err)
			}
		})
	}
}

func TestBuiltinRegistryLoadCaching(t *testing.T) {
	r := NewBuiltinRegistry()

	lang1, err := r.Load(context.Background(), "go")
	if err != nil {
		t.Fatal(err)
	}

	lang2, err := r.Load(context.Background(), "go")
	if err != nil {
		t.Fatal(err)
	}

	if lang1 != lang2 {
		t.Error("Load should resolve each grammar once")
	}
}

func TestBuiltinRegistryLoadUnknown(t *testing.T) {
	r := NewBuiltinRegistry()

	_, err := r.Load(context.Background(), "cobol")
	var notFound *ErrGrammarNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrGrammarNotFound, got %v", err)
	}
	if notFound.Name != "cobol" {
		t.Errorf("ErrGrammarNotFound.Name = %q; want %q", notFound.Name, "cobol")
	}
}

func TestBuiltinRegistryAvailableIsCopy(t *testing.T) {
	r := NewBuiltinRegistry()
	names := r.Available()
	names[0] = "cobol"
	if r.Has("cobol") || r.Available()[0] == "cobol" {
		t.Error("Available must not expose the registry's slice")
	}
}

func TestBuiltinRegistryNilProvider(t *testing.T) {
	r := newBuiltinRegistry(map[string]BuiltinProvider{
		"broken": func() unsafe.Pointer { return nil },
	})

	if _, err := r.Load(context.Background(), "broken"); err == nil {
		t.Fatal("expected error for provider returning nil")
	}
}
