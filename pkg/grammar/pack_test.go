package grammar

import (
	"os"
	"path/filepath"
	"testing"
)

// allExpectedLanguages lists every language that should have a pack.json.
var allExpectedLanguages = []string{"go", "javascript", "python", "typescript"}

func TestNewPackRegistry_LoadsAllPacks(t *testing.T) {
	reg, err := NewPackRegistry()
	if err != nil {
		t.Fatalf("NewPackRegistry() error: %v", err)
	}

	got := reg.All()
	if len(got) != len(allExpectedLanguages) {
		t.Fatalf("expected %d languages, got %d\ngot:      %v\nexpected: %v",
			len(allExpectedLanguages), len(got), got, allExpectedLanguages)
	}

	for i, name := range allExpectedLanguages {
		if got[i] != name {
			t.Errorf("position %d: expected %q, got %q", i, name, got[i])
		}
	}
}

func TestNewPackRegistry_AllPacksHaveSchemaVersion(t *testing.T) {
	reg, err := NewPackRegistry()
	if err != nil {
		t.Fatalf("NewPackRegistry() error: %v", err)
	}
	for _, name := range allExpectedLanguages {
		p := reg.Get(name)
		if p == nil {
			t.Errorf("pack %q not found", name)
			continue
		}
		if p.SchemaVersion != 1 {
			t.Errorf("pack %q: schema_version = %d, want 1", name, p.SchemaVersion)
		}
		if len(p.Meta.Extensions) == 0 {
			t.Errorf("pack %q has no extensions", name)
		}
	}
}

func TestNewPackRegistry_DialectsAndBranchTypes(t *testing.T) {
	reg := DefaultPackRegistry()

	wantDialect := map[string]string{
		"python":     "python",
		"javascript": "javascript",
		"typescript": "javascript",
		"go":         "go",
	}
	for lang, dialect := range wantDialect {
		p := reg.Get(lang)
		if p == nil {
			t.Fatalf("pack %q not found", lang)
		}
		if p.Dialect != dialect {
			t.Errorf("pack %q dialect = %q, want %q", lang, p.Dialect, dialect)
		}
		if len(p.BranchTypes()) == 0 {
			t.Errorf("pack %q has no branch types", lang)
		}
	}

	var nilPack *Pack
	if nilPack.BranchTypes() != nil {
		t.Error("nil pack should have no branch types")
	}
}

func TestLangForExtension_SpotChecks(t *testing.T) {
	reg := DefaultPackRegistry()
	tests := []struct {
		ext  string
		want string
	}{
		{".py", "python"},
		{".pyi", "python"},
		{".js", "javascript"},
		{".mjs", "javascript"},
		{".ts", "typescript"},
		{".go", "go"},
	}
	for _, tt := range tests {
		got, ok := reg.LangForExtension(tt.ext)
		if !ok || got != tt.want {
			t.Errorf("LangForExtension(%q) = %q, %v; want %q", tt.ext, got, ok, tt.want)
		}
	}
	if _, ok := reg.LangForExtension(".rb"); ok {
		t.Error("LangForExtension(.rb) should not resolve")
	}
}

func TestLangForShebang_SpotChecks(t *testing.T) {
	reg := DefaultPackRegistry()
	for interp, want := range map[string]string{"python3": "python", "node": "javascript", "deno": "javascript"} {
		got, ok := reg.LangForShebang(interp)
		if !ok || got != want {
			t.Errorf("LangForShebang(%q) = %q, %v; want %q", interp, got, ok, want)
		}
	}
}

func TestNormaliseLang_Aliases(t *testing.T) {
	reg := DefaultPackRegistry()
	tests := map[string]string{
		"py":         "python",
		"js":         "javascript",
		"node":       "javascript",
		"ts":         "typescript",
		"golang":     "go",
		"python":     "python",
		"javascript": "javascript",
		"cobol":      "cobol",
	}
	for in, want := range tests {
		if got := reg.NormaliseLang(in); got != want {
			t.Errorf("NormaliseLang(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestGet_ReturnsNilForUnknown(t *testing.T) {
	if p := DefaultPackRegistry().Get("nonexistent"); p != nil {
		t.Errorf("Get(nonexistent) = %+v; want nil", p)
	}
}

func TestLoadOverrides(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "python")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data := `{"schema_version":1,"name":"python","dialect":"python",` +
		`"meta":{"extensions":[".py"]},"complexity":{"branch_types":["if_statement"]}}`
	if err := os.WriteFile(filepath.Join(dir, "pack.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := NewPackRegistry()
	if err != nil {
		t.Fatal(err)
	}
	loaded, err := reg.LoadOverrides(root)
	if err != nil {
		t.Fatalf("LoadOverrides: %v", err)
	}
	if len(loaded) != 1 || loaded[0] != "python" {
		t.Fatalf("loaded = %v; want [python]", loaded)
	}
	if got := reg.Get("python").BranchTypes(); len(got) != 1 || got[0] != "if_statement" {
		t.Errorf("override branch types = %v", got)
	}

	if loaded, err := reg.LoadOverrides(filepath.Join(root, "missing")); err != nil || loaded != nil {
		t.Errorf("missing root: loaded=%v err=%v; want nil, nil", loaded, err)
	}
}

func TestLoadFromDir_InvalidPack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pack.json"), []byte(`{"schema_version":1}`), 0o644); err != nil {
		t.Fatal(err)
	}
	reg, err := NewPackRegistry()
	if err != nil {
		t.Fatal(err)
	}
	if err := reg.LoadFromDir(dir); err == nil {
		t.Error("expected error for pack without a name")
	}
}
