package cryptodocs

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchPathEnsureIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	sp := &SearchPath{}

	added, err := sp.Ensure(dir)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = sp.Ensure(filepath.Join(dir, "sub", ".."))
	require.NoError(t, err)
	assert.False(t, added, "equivalent path must not be added again")

	assert.Equal(t, []string{dir}, sp.Entries())
	assert.True(t, sp.Contains(dir))
}

func TestSearchPathEnsurePrepends(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	sp := &SearchPath{}

	_, err := sp.Ensure(first)
	require.NoError(t, err)

	_, err = sp.Ensure(second)
	require.NoError(t, err)

	assert.Equal(t, []string{second, first}, sp.Entries())
}

func TestSearchPathConcurrentEnsure(t *testing.T) {
	dir := t.TempDir()
	sp := &SearchPath{}

	var wg sync.WaitGroup

	for range 16 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := sp.Ensure(dir)
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	assert.Len(t, sp.Entries(), 1)
}

func TestEnsureSourceRoots(t *testing.T) {
	root := t.TempDir()
	sourceDir := filepath.Join(root, "docs")
	sp := &SearchPath{}

	conf := Cryptosystems()

	require.NoError(t, EnsureSourceRoots(sp, conf, sourceDir))
	require.NoError(t, EnsureSourceRoots(sp, conf, sourceDir))

	assert.Equal(t, []string{root}, sp.Entries(),
		"the parent of the source directory is added exactly once")
}

func TestSearchPathResolve(t *testing.T) {
	root := t.TempDir()

	writeFiles(t, root, map[string]string{
		"go.mod":               "module github.com/ishan-surana/cryptosystems\n\ngo 1.24\n",
		"ciphers/ciphers.go":   "package ciphers\n",
		"vendorlike/x/hash.go": "package x\n",
	})

	sp := &SearchPath{}

	_, err := sp.Ensure(root)
	require.NoError(t, err)

	dir, err := sp.Resolve("github.com/ishan-surana/cryptosystems/ciphers")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ciphers"), dir)

	dir, err = sp.Resolve("github.com/ishan-surana/cryptosystems")
	require.NoError(t, err)
	assert.Equal(t, root, dir)

	dir, err = sp.Resolve("vendorlike/x")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "vendorlike", "x"), dir)

	_, err = sp.Resolve("github.com/ishan-surana/cryptosystems-extra")
	assert.Error(t, err, "module path prefix must end at a path separator")
}
