package cryptodocs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
	"github.com/ishan-surana/cryptosystems-docs/internal"
)

// repoInfo is what the theme needs to know about the repository that holds
// the documentation sources.
type repoInfo struct {
	Branch string
	// LastChanged maps source paths, relative to the source directory, to
	// the time of the last commit that changed them.
	LastChanged map[string]time.Time
}

// findRepoRoot walks up from dir looking for a .git entry.
func findRepoRoot(dir string) (string, bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}

	for {
		_, err := os.Stat(filepath.Join(abs, ".git"))
		if err == nil {
			return abs, true
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", false
		}

		abs = parent
	}
}

// loadRepoInfo reads branch and change history for the given source files.
// Returns nil if the source directory isn't in a git repository.
func loadRepoInfo(sourceDir string, sources []string) (*repoInfo, error) {
	root, ok := findRepoRoot(sourceDir)
	if !ok {
		return nil, nil
	}

	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, fmt.Errorf("open git repository: %w", err)
	}

	absSource, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory: %w", err)
	}

	prefix, err := filepath.Rel(root, absSource)
	if err != nil {
		return nil, fmt.Errorf("resolve source directory in repository: %w", err)
	}

	info := repoInfo{
		LastChanged: make(map[string]time.Time),
	}

	head, err := repo.Head()
	if err != nil {
		// No commits yet.
		return &info, nil
	}

	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	wanted := make(map[string]string, len(sources))

	for _, s := range sources {
		repoPath := filepath.ToSlash(filepath.Join(prefix, filepath.FromSlash(s)))
		wanted[repoPath] = s
	}

	log, err := repo.Log(&git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, fmt.Errorf("get git log: %w", err)
	}

	err = internal.ForEachChange(log, func(c *object.Commit, names []string) error {
		for _, name := range names {
			src, ok := wanted[name]
			if !ok {
				continue
			}

			if _, seen := info.LastChanged[src]; !seen {
				info.LastChanged[src] = c.Committer.When
			}
		}

		if len(info.LastChanged) == len(wanted) {
			return storer.ErrStop
		}

		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("read git log: %w", err)
	}

	return &info, nil
}
