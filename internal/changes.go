package internal

import (
	"errors"
	"io"

	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// ForEachChange calls fn for every commit from the iterator together with
// the names of the files that the commit changed compared to its first
// parent. Root commits are compared to an empty tree. Returning
// storer.ErrStop from fn ends the iteration without error.
func ForEachChange(
	commits object.CommitIter,
	fn func(c *object.Commit, names []string) error,
) error {
	defer commits.Close()

	for {
		commit, err := commits.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		names, err := changedFiles(commit)
		if err != nil {
			return err
		}

		err = fn(commit, names)
		if errors.Is(err, storer.ErrStop) {
			return nil
		}

		if err != nil {
			return err
		}
	}
}

func changedFiles(commit *object.Commit) ([]string, error) {
	currentTree, err := commit.Tree()
	if err != nil {
		return nil, err
	}

	// Parent tree stays nil for the initial commit.
	var parentTree *object.Tree

	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return nil, err
		}

		parentTree, err = parent.Tree()
		if err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTree(parentTree, currentTree)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(changes))

	for _, change := range changes {
		name := change.To.Name
		if name == "" {
			name = change.From.Name
		}

		names = append(names, name)
	}

	return names, nil
}
