package cryptodocs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/mod/modfile"
)

// SearchPath is an ordered set of directories that autodoc uses to find
// packages. It's safe for concurrent use.
type SearchPath struct {
	m       sync.RWMutex
	entries []string
}

// DefaultSearchPath is the process wide search path.
var DefaultSearchPath = &SearchPath{}

// Ensure prepends dir to the search path unless it's already present.
// Returns true if the entry was added.
func (sp *SearchPath) Ensure(dir string) (bool, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolve %q: %w", dir, err)
	}

	sp.m.Lock()
	defer sp.m.Unlock()

	if slices.Contains(sp.entries, abs) {
		return false, nil
	}

	sp.entries = append([]string{abs}, sp.entries...)

	return true, nil
}

// Contains reports whether dir is on the search path.
func (sp *SearchPath) Contains(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}

	sp.m.RLock()
	defer sp.m.RUnlock()

	return slices.Contains(sp.entries, abs)
}

// Entries returns a copy of the search path entries.
func (sp *SearchPath) Entries() []string {
	sp.m.RLock()
	defer sp.m.RUnlock()

	return slices.Clone(sp.entries)
}

// Resolve finds the directory of the package with the given import path. An
// entry matches either through the module path in its go.mod, or by
// containing the import path as a relative directory.
func (sp *SearchPath) Resolve(importPath string) (string, error) {
	for _, entry := range sp.Entries() {
		modPath, err := readModulePath(filepath.Join(entry, "go.mod"))
		if err != nil {
			return "", err
		}

		if modPath != "" {
			rel, ok := strings.CutPrefix(importPath, modPath)
			if ok && (rel == "" || strings.HasPrefix(rel, "/")) {
				dir := filepath.Join(entry, filepath.FromSlash(rel))

				if isDir(dir) {
					return dir, nil
				}
			}
		}

		dir := filepath.Join(entry, filepath.FromSlash(importPath))
		if isDir(dir) {
			return dir, nil
		}
	}

	return "", fmt.Errorf("package %q not found on search path", importPath)
}

func readModulePath(name string) (string, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("read go.mod: %w", err)
	}

	mod, err := modfile.ParseLax(name, data, nil)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", name, err)
	}

	if mod.Module == nil {
		return "", nil
	}

	return mod.Module.Mod.Path, nil
}

func isDir(name string) bool {
	info, err := os.Stat(name)

	return err == nil && info.IsDir()
}

// EnsureSourceRoots adds the configured sys_path entries, relative to
// sourceDir, to the search path. Must run before extensions are set up.
func EnsureSourceRoots(sp *SearchPath, conf Config, sourceDir string) error {
	for _, p := range conf.SysPath {
		dir := p
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(sourceDir, p)
		}

		_, err := sp.Ensure(dir)
		if err != nil {
			return fmt.Errorf("add %q to search path: %w", p, err)
		}
	}

	return nil
}
