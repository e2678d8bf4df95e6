// Package project locates the root of the project being analysed.
package project

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// StateDir is the marker directory that also identifies a project root.
const StateDir = ".codeparser"

// FindRoot returns the root of the git work tree containing dir. Outside a
// repository it returns the nearest ancestor holding a .codeparser directory,
// or dir itself.
func FindRoot(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err == nil {
		if wt, err := repo.Worktree(); err == nil {
			return wt.Filesystem.Root(), nil
		}
	} else if !errors.Is(err, git.ErrRepositoryNotExists) {
		return "", err
	}

	for cur := abs; ; {
		if info, err := os.Stat(filepath.Join(cur, StateDir)); err == nil && info.IsDir() {
			return cur, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		cur = parent
	}
}
