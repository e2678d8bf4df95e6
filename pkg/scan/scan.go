// Package scan analyses whole directory trees with the engine and keeps the
// finding store in step with the files on disk.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jestersw/codeparser/pkg/code"
	"github.com/jestersw/codeparser/pkg/engine"
	"github.com/jestersw/codeparser/pkg/findings"
	"github.com/jestersw/codeparser/pkg/ignore"
	"github.com/jestersw/codeparser/pkg/secrets"
	"github.com/jestersw/codeparser/pkg/store"
)

// DefaultMaxFileSize is the largest file analysed when Config.MaxFileSize is unset.
const DefaultMaxFileSize = 1 << 20

// Status describes what happened to a single file.
type Status string

const (
	StatusAnalyzed  Status = "analyzed"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

type Config struct {
	// Root is the directory stored paths are relative to. Defaults to the
	// working directory.
	Root        string
	Concurrency int
	MaxFileSize int64
	// Ignore filters the walk. Built-in defaults when nil.
	Ignore *ignore.Matcher
	// Incremental skips files whose content digest matches the store.
	Incremental         bool
	ComplexityThreshold int
	// Secrets, when set, adds deep secret findings to every analysed file.
	Secrets    *secrets.Scanner
	ProgressFn func(path string, status Status, findings int)
}

// FileResult is the outcome of scanning one file.
type FileResult struct {
	Path     string              `json:"path"`
	Language string              `json:"lang,omitempty"`
	Digest   string              `json:"digest,omitempty"`
	Status   Status              `json:"status"`
	Reason   string              `json:"reason,omitempty"`
	Report   *findings.Report    `json:"report,omitempty"`
	Findings []*findings.Finding `json:"findings,omitempty"`
}

// Result summarises a Run. Files are sorted by path.
type Result struct {
	Files     []*FileResult `json:"files"`
	Analyzed  int           `json:"analyzed"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Findings  int           `json:"findings"`
	Duration  time.Duration `json:"duration"`
}

func (r *Result) add(fr *FileResult) {
	r.Files = append(r.Files, fr)
	switch fr.Status {
	case StatusAnalyzed:
		r.Analyzed++
		r.Findings += len(fr.Findings)
	case StatusUnchanged:
		r.Unchanged++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// Scanner runs the engine over files and persists the findings. A nil store
// disables persistence and incremental mode.
type Scanner struct {
	engine *engine.Engine
	store  store.FindingsStore
	config Config
	log    *zap.Logger

	// mu serialises store writes for the same path.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(eng *engine.Engine, st store.FindingsStore, cfg Config, log *zap.Logger) *Scanner {
	if cfg.Root == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.Root = cwd
		}
	}
	if abs, err := filepath.Abs(cfg.Root); err == nil {
		cfg.Root = abs
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Ignore == nil {
		cfg.Ignore = ignore.NewFromDefaults()
	}
	if cfg.ComplexityThreshold <= 0 {
		cfg.ComplexityThreshold = findings.DefaultComplexityThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scanner{
		engine: eng,
		store:  st,
		config: cfg,
		log:    log,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Run walks paths (files or directories), analyses every supported file and
// returns the per-file outcomes. Per-file failures are recorded in the
// result; only cancellation and walk errors abort the run.
func (s *Scanner) Run(ctx context.Context, paths []string) (*Result, error) {
	start := time.Now()
	if len(paths) == 0 {
		paths = []string{s.config.Root}
	}

	files, err := s.collect(paths)
	if err != nil {
		return nil, err
	}

	results := make([]*FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Concurrency)

	for i, abs := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr := s.scanFile(gctx, abs, s.rel(abs), true)
			if fr.Status == StatusFailed && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, fr := range results {
		res.add(fr)
	}
	res.Duration = time.Since(start)

	s.log.Info("scan complete",
		zap.Int("analyzed", res.Analyzed),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
		zap.Int("findings", res.Findings),
		zap.Duration("duration", res.Duration))
	return res, nil
}

// AnalyzeFile analyses one file regardless of ignore rules and incremental
// state, and stores its findings.
func (s *Scanner) AnalyzeFile(ctx context.Context, path string) (*FileResult, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fr := s.scanFile(ctx, abs, s.rel(abs), false)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return fr, nil
}

// collect walks paths and returns the absolute paths of candidate files,
// sorted and de-duplicated.
func (s *Scanner) collect(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	skip := s.config.Ignore.WalkFunc(s.config.Root)

	for _, root := range paths {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", root, err)
		}
		if !info.IsDir() {
			// Explicitly named files bypass the ignore matcher.
			seen[absRoot] = true
			continue
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.log.Debug("walk error", zap.String("path", path), zap.Error(err))
				return nil
			}
			if path != absRoot {
				if skipped, skipDir := skip(path, d.IsDir()); skipped {
					if skipDir {
						return filepath.SkipDir
					}
					return nil
				}
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !code.SupportedFile(path) {
				return nil
			}
			seen[path] = true
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

func (s *Scanner) rel(abs string) string {
	rel, err := filepath.Rel(s.config.Root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

func (s *Scanner) scanFile(ctx context.Context, abs, rel string, incremental bool) (fr *FileResult) {
	fr = &FileResult{Path: rel}
	defer func() {
		if s.config.ProgressFn != nil {
			s.config.ProgressFn(rel, fr.Status, len(fr.Findings))
		}
	}()

	info, err := os.Stat(abs)
	if err != nil {
		return failed(fr, err)
	}
	if info.Size() > s.config.MaxFileSize {
		return skipped(fr, fmt.Sprintf("larger than %d bytes", s.config.MaxFileSize))
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return failed(fr, err)
	}
	fr.Digest = Digest(content)

	lang := code.DetectLanguage(abs, content)
	if lang == "" {
		return skipped(fr, "unknown language")
	}
	name, err := s.engine.Resolve(lang)
	if err != nil {
		return skipped(fr, err.Error())
	}
	fr.Language = name

	lock := s.fileLock(rel)
	lock.Lock()
	defer lock.Unlock()

	if incremental && s.config.Incremental && s.store != nil {
		if rec, err := s.store.GetFile(rel); err == nil && rec.Digest == fr.Digest {
			fr.Status = StatusUnchanged
			return fr
		}
	}

	report, err := s.engine.Analyze(ctx, name, content)
	if err != nil {
		return failed(fr, err)
	}
	fr.Report = report
	fr.Findings = findings.ToFindings(report, rel, name, s.config.ComplexityThreshold)
	for _, w := range report.Warnings {
		s.log.Debug("malformed node", zap.String("file", rel), zap.String("warning", w.Error()))
	}

	if s.config.Secrets != nil && !secrets.Skip(abs) {
		deep, err := s.config.Secrets.ScanFile(abs, rel)
		if err != nil {
			s.log.Warn("deep secret scan failed", zap.String("file", rel), zap.Error(err))
		}
		for _, f := range deep {
			f.Language = name
		}
		fr.Findings = append(fr.Findings, deep...)
	}

	if s.store != nil {
		rec := store.FileRecord{Path: rel, Language: name, Digest: fr.Digest}
		if err := s.store.ReplaceFile(rec, fr.Findings); err != nil {
			return failed(fr, fmt.Errorf("store findings: %w", err))
		}
	}

	fr.Status = StatusAnalyzed
	return fr
}

func (s *Scanner) fileLock(rel string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[rel]
	if !ok {
		l = &sync.Mutex{}
		s.locks[rel] = l
	}
	return l
}

// Digest returns the content digest recorded for incremental scans.
func Digest(content []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(content))
}

func skipped(fr *FileResult, reason string) *FileResult {
	fr.Status = StatusSkipped
	fr.Reason = reason
	return fr
}

func failed(fr *FileResult, err error) *FileResult {
	fr.Status = StatusFailed
	fr.Reason = err.Error()
	return fr
}
