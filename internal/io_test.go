package internal

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalFile(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "build-info.json")

	require.NoError(t, MarshalFile(name, map[string]int{"documents": 2}))
	require.NoError(t, MarshalFile(name, map[string]int{"documents": 3}))

	data, err := os.ReadFile(name)
	require.NoError(t, err)

	var got map[string]int

	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, map[string]int{"documents": 3}, got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestMarshalFileError(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "report.json")

	err := MarshalFile(name, map[string]any{"bad": func() {}})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type failingCloser struct{ err error }

func (c failingCloser) Close() error { return c.err }

func TestClose(t *testing.T) {
	var err error

	Close("ok", failingCloser{}, &err)
	require.NoError(t, err)

	Close("closed", failingCloser{err: os.ErrClosed}, &err)
	require.NoError(t, err)

	boom := errors.New("boom")

	Close("objects.inv", failingCloser{err: boom}, &err)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "close objects.inv")
}
