package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinDefaults(t *testing.T) {
	m := NewFromDefaults()

	dirs := []string{
		".git", ".svn", ".hg", ".codeparser", "node_modules", "dist",
		".next", "coverage", "__pycache__", ".venv", "venv", ".tox",
		"vendor", "build", ".idea", ".vscode", "pkg.egg-info",
	}
	for _, d := range dirs {
		if !m.ShouldIgnoreDir(d) {
			t.Errorf("expected directory %q to be ignored by defaults", d)
		}
	}

	files := []string{
		"foo.pb.go",
		"types_generated.go",
		"schema.gen.go",
		"api.pb.ts",
		"vendor.min.js",
		"service_pb2.py",
	}
	for _, f := range files {
		if !m.ShouldIgnoreFile(f) {
			t.Errorf("expected file %q to be ignored by defaults", f)
		}
	}

	okFiles := []string{"main.go", "index.ts", "README.md", "server.py", "./app.js"}
	for _, f := range okFiles {
		if m.ShouldIgnoreFile(f) {
			t.Errorf("expected file %q to NOT be ignored by defaults", f)
		}
	}
}

func TestDirOnlyPattern(t *testing.T) {
	m := NewFromDefaults()

	if m.ShouldIgnoreFile("build") {
		t.Error("dir-only pattern 'build/' should not match file named 'build'")
	}
	if !m.ShouldIgnoreDir("build") {
		t.Error("dir-only pattern 'build/' should match directory named 'build'")
	}
}

func TestNegation(t *testing.T) {
	m := NewEmpty()
	if err := m.Add("*.pb.go", "!important.pb.go"); err != nil {
		t.Fatal(err)
	}

	if !m.ShouldIgnoreFile("foo.pb.go") {
		t.Error("expected foo.pb.go to be ignored")
	}
	if m.ShouldIgnoreFile("important.pb.go") {
		t.Error("expected important.pb.go to be un-ignored by negation")
	}
}

func TestAnchoredPattern(t *testing.T) {
	m := NewEmpty()
	if err := m.Add("/rootfile.txt"); err != nil {
		t.Fatal(err)
	}

	if !m.ShouldIgnoreFile("rootfile.txt") {
		t.Error("anchored pattern should match at root")
	}
	if m.ShouldIgnoreFile("sub/rootfile.txt") {
		t.Error("anchored pattern should not match in subdirectory")
	}
}

func TestUnanchoredPattern(t *testing.T) {
	m := NewEmpty()
	if err := m.Add("*.log"); err != nil {
		t.Fatal(err)
	}

	if !m.ShouldIgnoreFile("error.log") {
		t.Error("*.log should match error.log")
	}
	if !m.ShouldIgnoreFile("logs/error.log") {
		t.Error("*.log should match logs/error.log")
	}
}

func TestDoubleStarPrefix(t *testing.T) {
	m := NewEmpty()
	if err := m.Add("**/test/"); err != nil {
		t.Fatal(err)
	}

	if !m.ShouldIgnoreDir("test") {
		t.Error("**/test/ should match test at root")
	}
	if !m.ShouldIgnoreDir("a/b/test") {
		t.Error("**/test/ should match nested test dir")
	}
	if !m.ShouldIgnoreFile("a/test/x.py") {
		t.Error("files under an ignored dir should be ignored")
	}
}

func TestDirChildPaths(t *testing.T) {
	m := NewFromDefaults()
	if err := m.Add("packages/plugin/src/"); err != nil {
		t.Fatal(err)
	}

	ignored := []string{
		"node_modules/express/index.js",
		"packages/app/node_modules/lodash/lodash.js",
		"vendor/github.com/foo/bar.go",
		"packages/plugin/src/index.ts",
		"packages/plugin/src/utils/helper.ts",
	}
	for _, f := range ignored {
		if !m.ShouldIgnoreFile(f) {
			t.Errorf("expected %q to be ignored", f)
		}
	}

	kept := []string{"packages/plugin/README.md", "packages/plugin/src-backup/file.ts"}
	for _, f := range kept {
		if m.ShouldIgnoreFile(f) {
			t.Errorf("expected %q to be kept", f)
		}
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := "# generated\n*.generated.ts\n\n!testdata/important.txt\n/config.local.yaml\n"
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := New(dir, "*.snap")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if !m.ShouldIgnoreFile("foo.generated.ts") {
		t.Error("expected foo.generated.ts to be ignored")
	}
	if !m.ShouldIgnoreDir("testdata") {
		t.Error("testdata should still be ignored by defaults")
	}
	if m.ShouldIgnoreFile("testdata/important.txt") {
		t.Error("negated file inside ignored dir should be kept")
	}
	if !m.ShouldIgnoreFile("config.local.yaml") {
		t.Error("anchored pattern from file should match at root")
	}
	if m.ShouldIgnoreFile("sub/config.local.yaml") {
		t.Error("anchored pattern should not match in subdirectory")
	}
	if !m.ShouldIgnoreFile("ui/__snapshots__/a.snap") {
		t.Error("extra pattern should apply")
	}
}

func TestMissingFileUsesDefaults(t *testing.T) {
	m, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !m.ShouldIgnoreDir("node_modules") {
		t.Error("defaults should apply without an ignore file")
	}
}

func TestInvalidPattern(t *testing.T) {
	if err := NewEmpty().Add("[unclosed"); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestWalkFunc(t *testing.T) {
	root := t.TempDir()
	check := NewFromDefaults().WalkFunc(root)

	skip, skipDir := check(filepath.Join(root, "node_modules"), true)
	if !skip || !skipDir {
		t.Errorf("node_modules: skip=%v skipDir=%v; want true, true", skip, skipDir)
	}
	skip, skipDir = check(filepath.Join(root, "gen", "a.pb.go"), false)
	if !skip || skipDir {
		t.Errorf("a.pb.go: skip=%v skipDir=%v; want true, false", skip, skipDir)
	}
	skip, _ = check(filepath.Join(root, "src", "main.py"), false)
	if skip {
		t.Error("main.py should not be skipped")
	}
}
