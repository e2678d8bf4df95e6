package scan

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jestersw/codeparser/pkg/code"
	"github.com/jestersw/codeparser/pkg/watcher"
)

// ChangeHandler re-analyses files reported by a watcher.
type ChangeHandler struct {
	scanner *Scanner
	ctx     context.Context
	// OnResult is called for every file handled. May be nil.
	OnResult func(*FileResult)
}

// WatchHandler returns a watcher handler bound to ctx. Batches arriving after
// ctx is done are dropped.
func (s *Scanner) WatchHandler(ctx context.Context) *ChangeHandler {
	return &ChangeHandler{scanner: s, ctx: ctx}
}

var _ watcher.FileChangeHandler = (*ChangeHandler)(nil)

func (h *ChangeHandler) OnChanges(files map[string]fsnotify.Op) {
	s := h.scanner
	if h.ctx.Err() != nil {
		return
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, file := range paths {
		if h.ctx.Err() != nil {
			return
		}
		abs, err := filepath.Abs(file)
		if err != nil {
			continue
		}
		rel := s.rel(abs)
		if !code.SupportedFile(abs) || s.config.Ignore.ShouldIgnoreFile(rel) {
			continue
		}

		if watcher.IsRemove(files[file]) {
			if _, err := os.Stat(abs); os.IsNotExist(err) {
				h.remove(rel)
				continue
			}
		}

		fr := s.scanFile(h.ctx, abs, rel, true)
		switch fr.Status {
		case StatusFailed:
			s.log.Warn("re-analysis failed", zap.String("file", rel), zap.String("reason", fr.Reason))
		case StatusAnalyzed:
			s.log.Info("re-analysed", zap.String("file", rel), zap.Int("findings", len(fr.Findings)))
		}
		if h.OnResult != nil {
			h.OnResult(fr)
		}
	}
}

func (h *ChangeHandler) remove(rel string) {
	s := h.scanner
	if s.store != nil {
		lock := s.fileLock(rel)
		lock.Lock()
		err := s.store.RemoveFile(rel)
		lock.Unlock()
		if err != nil {
			s.log.Warn("failed to drop findings", zap.String("file", rel), zap.Error(err))
			return
		}
	}
	s.log.Info("file removed", zap.String("file", rel))
	if h.OnResult != nil {
		h.OnResult(&FileResult{Path: rel, Status: StatusSkipped, Reason: "removed"})
	}
}
