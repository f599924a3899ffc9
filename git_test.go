package cryptodocs

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFiles(
	t *testing.T, repo *git.Repository, root string,
	files map[string]string, when time.Time,
) {
	t.Helper()

	writeFiles(t, root, files)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name := range files {
		_, err := wt.Add(name)
		require.NoError(t, err)
	}

	_, err = wt.Commit("Update docs", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Ishan Surana",
			Email: "ishan@example.org",
			When:  when,
		},
	})
	require.NoError(t, err)
}

func TestLoadRepoInfo(t *testing.T) {
	root := t.TempDir()

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	commitFiles(t, repo, root, map[string]string{
		"docs/index.rst": "Index\n=====\n",
		"docs/guide.md":  "# Guide\n",
	}, first)

	commitFiles(t, repo, root, map[string]string{
		"docs/guide.md": "# Guide\n\nMore text.\n",
	}, second)

	info, err := loadRepoInfo(filepath.Join(root, "docs"),
		[]string{"index.rst", "guide.md", "new.rst"})
	require.NoError(t, err)
	require.NotNil(t, info)

	head, err := repo.Head()
	require.NoError(t, err)

	assert.Equal(t, head.Name().Short(), info.Branch)
	assert.True(t, first.Equal(info.LastChanged["index.rst"]))
	assert.True(t, second.Equal(info.LastChanged["guide.md"]))

	_, ok := info.LastChanged["new.rst"]
	assert.False(t, ok, "uncommitted files have no history")
}

func TestLoadRepoInfoOutsideRepository(t *testing.T) {
	info, err := loadRepoInfo(t.TempDir(), []string{"index.rst"})
	require.NoError(t, err)
	assert.Nil(t, info)
}
