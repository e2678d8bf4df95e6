package scan

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/jestersw/codeparser/pkg/engine"
	"github.com/jestersw/codeparser/pkg/findings"
	"github.com/jestersw/codeparser/pkg/rules"
	"github.com/jestersw/codeparser/pkg/store"
)

// bleve starts its analysis workers at package init; they live for the
// whole process.
var bleveWorkers = goleak.IgnoreTopFunction("github.com/blevesearch/bleve_index_api.AnalysisWorker")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, bleveWorkers)
}

// memStore is an in-memory store.FindingsStore.
type memStore struct {
	mu       sync.Mutex
	files    map[string]store.FileRecord
	findings map[string][]*findings.Finding
	replaces int
}

func newMemStore() *memStore {
	return &memStore{
		files:    make(map[string]store.FileRecord),
		findings: make(map[string][]*findings.Finding),
	}
}

func (m *memStore) GetFinding(id string) (*findings.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, fs := range m.findings {
		for _, f := range fs {
			if f.ID == id {
				return f, nil
			}
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) SearchFindings(q string, opts findings.SearchOptions) ([]*findings.SearchResult, error) {
	all, _ := m.ListFindings(opts)
	var out []*findings.SearchResult
	for _, f := range all {
		if q == "" || strings.Contains(f.Title+" "+f.Detail, q) {
			out = append(out, &findings.SearchResult{Finding: f, Score: 1})
		}
	}
	return out, nil
}

func (m *memStore) ListFindings(opts findings.SearchOptions) ([]*findings.Finding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*findings.Finding
	for _, fs := range m.findings {
		for _, f := range fs {
			if opts.Matches(f) {
				out = append(out, f)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

func (m *memStore) Stats(opts findings.SearchOptions) (*findings.Stats, error) {
	all, _ := m.ListFindings(opts)
	return &findings.Stats{Total: len(all)}, nil
}

func (m *memStore) ReplaceFile(rec store.FileRecord, fs []*findings.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.Findings = len(fs)
	m.files[rec.Path] = rec
	m.findings[rec.Path] = fs
	m.replaces++
	return nil
}

func (m *memStore) RemoveFile(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	delete(m.findings, path)
	return nil
}

func (m *memStore) GetFile(path string) (*store.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.files[path]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (m *memStore) ListFiles() ([]*store.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.FileRecord
	for _, rec := range m.files {
		rec := rec
		out = append(out, &rec)
	}
	return out, nil
}

func (m *memStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = make(map[string]store.FileRecord)
	m.findings = make(map[string][]*findings.Finding)
	return nil
}

func (m *memStore) Close() error { return nil }

const (
	evalJS  = "if (x) {\n  eval(userInput);\n}\n"
	queryPy = "q = \"SELECT * FROM users WHERE id = %s\"\n"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	eng, err := engine.New()
	require.NoError(t, err)
	return eng
}

func projectTree(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, root, "src/app.js", evalJS)
	writeFile(t, root, "db/query.py", queryPy)
	writeFile(t, root, "node_modules/lib/index.js", evalJS)
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, "big.py", strings.Repeat("x = 1\n", 20))
	return root
}

func TestRunScansTree(t *testing.T) {
	root := projectTree(t)
	st := newMemStore()
	s := New(newTestEngine(t), st, Config{Root: root, MaxFileSize: 64, Concurrency: 2}, nil)

	res, err := s.Run(context.Background(), nil)
	require.NoError(t, err)

	var paths []string
	for _, fr := range res.Files {
		paths = append(paths, fr.Path)
	}
	assert.Equal(t, []string{"big.py", "db/query.py", "src/app.js"}, paths)
	assert.Equal(t, 2, res.Analyzed)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 2, res.Findings)

	assert.Equal(t, StatusSkipped, res.Files[0].Status)
	assert.Contains(t, res.Files[0].Reason, "larger than")

	js := res.Files[2]
	assert.Equal(t, "javascript", js.Language)
	require.Len(t, js.Report.Vulnerabilities, 1)
	assert.Equal(t, rules.CategoryDynamicEval, js.Report.Vulnerabilities[0].Category)
	assert.EqualValues(t, 2, js.Report.Vulnerabilities[0].Line)

	stored, err := st.ListFindings(findings.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, "db/query.py", stored[0].FilePath)
	assert.Equal(t, rules.CategoryInjectableQuery, stored[0].Category)
	assert.Equal(t, "python", stored[0].Language)
	assert.Equal(t, "src/app.js", stored[1].FilePath)

	rec, err := st.GetFile("src/app.js")
	require.NoError(t, err)
	assert.Equal(t, Digest([]byte(evalJS)), rec.Digest)
}

func TestRunIncremental(t *testing.T) {
	root := projectTree(t)
	st := newMemStore()
	s := New(newTestEngine(t), st, Config{Root: root, Incremental: true}, nil)

	res, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Analyzed)
	replaces := st.replaces

	res, err = s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, res.Analyzed)
	assert.Equal(t, 3, res.Unchanged)
	assert.Equal(t, replaces, st.replaces)

	writeFile(t, root, "src/app.js", "let x = 1;\n")
	res, err = s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Analyzed)
	assert.Equal(t, 2, res.Unchanged)

	fs, _ := st.ListFindings(findings.SearchOptions{FilePath: "src/app.js"})
	assert.Empty(t, fs)
}

func TestRunExplicitPaths(t *testing.T) {
	root := projectTree(t)
	s := New(newTestEngine(t), nil, Config{Root: root}, nil)

	// Named files bypass the ignore matcher; named dirs are walked.
	res, err := s.Run(context.Background(), []string{
		filepath.Join(root, "node_modules", "lib", "index.js"),
		filepath.Join(root, "src"),
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "node_modules/lib/index.js", res.Files[0].Path)
	assert.Equal(t, "src/app.js", res.Files[1].Path)
	assert.Equal(t, 2, res.Analyzed)
}

func TestRunMissingPath(t *testing.T) {
	s := New(newTestEngine(t), nil, Config{Root: t.TempDir()}, nil)
	_, err := s.Run(context.Background(), []string{"does/not/exist"})
	assert.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	root := projectTree(t)
	s := New(newTestEngine(t), nil, Config{Root: root}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Run(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProgressFn(t *testing.T) {
	root := projectTree(t)
	var mu sync.Mutex
	seen := make(map[string]Status)
	s := New(newTestEngine(t), nil, Config{
		Root:        root,
		MaxFileSize: 64,
		ProgressFn: func(path string, status Status, _ int) {
			mu.Lock()
			seen[path] = status
			mu.Unlock()
		},
	}, nil)

	_, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]Status{
		"big.py":      StatusSkipped,
		"db/query.py": StatusAnalyzed,
		"src/app.js":  StatusAnalyzed,
	}, seen)
}

func TestComplexityFinding(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "deep.py", strings.Repeat("if a:\n    pass\n", 30))
	st := newMemStore()
	s := New(newTestEngine(t), st, Config{Root: root, ComplexityThreshold: 50}, nil)

	res, err := s.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	fs, _ := st.ListFindings(findings.SearchOptions{Analyzer: findings.AnalyzerComplexity})
	require.Len(t, fs, 1)
	assert.Equal(t, findings.SevCritical, fs[0].Severity)
	assert.Equal(t, "deep.py", fs[0].FilePath)
}

func TestAnalyzeFile(t *testing.T) {
	root := projectTree(t)
	st := newMemStore()
	s := New(newTestEngine(t), st, Config{Root: root}, nil)

	fr, err := s.AnalyzeFile(context.Background(), filepath.Join(root, "node_modules", "lib", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzed, fr.Status)
	assert.Len(t, fr.Findings, 1)

	_, err = st.GetFile("node_modules/lib/index.js")
	assert.NoError(t, err)

	fr, err = s.AnalyzeFile(context.Background(), filepath.Join(root, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, fr.Status)
}

func TestWatchHandler(t *testing.T) {
	root := projectTree(t)
	st := newMemStore()
	s := New(newTestEngine(t), st, Config{Root: root}, nil)

	var results []*FileResult
	h := s.WatchHandler(context.Background())
	h.OnResult = func(fr *FileResult) { results = append(results, fr) }

	app := filepath.Join(root, "src", "app.js")
	h.OnChanges(map[string]fsnotify.Op{
		app: fsnotify.Write,
		filepath.Join(root, "node_modules", "lib", "index.js"): fsnotify.Write,
		filepath.Join(root, "README.md"):                       fsnotify.Write,
	})
	require.Len(t, results, 1)
	assert.Equal(t, "src/app.js", results[0].Path)
	assert.Equal(t, StatusAnalyzed, results[0].Status)
	_, err := st.GetFile("src/app.js")
	require.NoError(t, err)

	require.NoError(t, os.Remove(app))
	h.OnChanges(map[string]fsnotify.Op{app: fsnotify.Remove})
	require.Len(t, results, 2)
	assert.Equal(t, "removed", results[1].Reason)
	_, err = st.GetFile("src/app.js")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestWatchHandlerCancelled(t *testing.T) {
	root := projectTree(t)
	st := newMemStore()
	s := New(newTestEngine(t), st, Config{Root: root}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.WatchHandler(ctx).OnChanges(map[string]fsnotify.Op{filepath.Join(root, "src", "app.js"): fsnotify.Write})
	assert.Zero(t, st.replaces)
}

func TestDigest(t *testing.T) {
	assert.Equal(t, Digest([]byte("abc")), Digest([]byte("abc")))
	assert.NotEqual(t, Digest([]byte("abc")), Digest([]byte("abd")))
	assert.Len(t, Digest(nil), 16)
}
