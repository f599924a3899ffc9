package cryptodocs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndexRST = `Cryptosystems
=============

Welcome. Start with :doc:` + "`guide`" + ` or read about :class:` + "`cryptosystems.RSA`" + `.

.. toctree::
   :maxdepth: 2

   guide

.. code-block:: python

   from cryptosystems import RSA

.. doctest::

   >>> 1 + 1
   2
`

const testGuideMD = `# Guide

Back to the [index](index.rst). Packages are on
[PyPI](https://pypi.org/project/cryptosystems/).
`

func writeTestDocs(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	docs := filepath.Join(root, "docs")

	writeFiles(t, docs, map[string]string{
		"index.rst":          testIndexRST,
		"guide.md":           testGuideMD,
		"_build/stale.rst":   "Stale\n=====\n",
		".hidden/secret.rst": "Secret\n======\n",
		"notes.draft.rst":    "Draft\n=====\n",
	})

	return docs
}

func TestBuildHTML(t *testing.T) {
	docs := writeTestDocs(t)

	conf := testConfig()
	conf.ExcludePatterns = []string{"*.draft.rst"}
	conf.HTMLThemeOptions.IconLinks = []IconLink{
		{
			Name: "GitHub",
			URL:  "https://github.com/ishan-surana/cryptosystems",
			Icon: "fa-brands fa-github",
		},
	}

	opts := testOptions(t, docs)

	b, err := NewBuilder(conf, opts, nil)
	require.NoError(t, err)

	require.NoError(t, b.Run(context.Background()))

	for _, name := range []string{
		"index.html", "guide.html", "objects.inv", "build-info.json",
		"_static/book.css", "_static/copybutton.js",
	} {
		assert.FileExists(t, filepath.Join(opts.OutDir, filepath.FromSlash(name)))
	}

	for _, name := range []string{"stale.html", "_build/stale.html", "notes.draft.html"} {
		assert.NoFileExists(t, filepath.Join(opts.OutDir, filepath.FromSlash(name)))
	}

	index := readFile(t, filepath.Join(opts.OutDir, "index.html"))

	assert.Equal(t, 1, strings.Count(index, `aria-label="GitHub"`),
		"exactly one icon link is rendered")
	assert.Contains(t, index, `href="https://github.com/ishan-surana/cryptosystems"`)
	assert.Contains(t, index, `<i class="fa-brands fa-github" aria-hidden="true"></i>`)
	assert.Contains(t, index, "/blob/")
	assert.Contains(t, index, "docs/index.rst")

	assert.Contains(t, index, `<a class="reference internal" href="guide.html">Guide</a>`)
	assert.Contains(t, index, `class="xref broken"`)
	assert.Contains(t, index, `class="copybtn"`)
	assert.Contains(t, index, `_static/copybutton.js`)
	assert.Contains(t, index, "<title>Cryptosystems &#8212; cryptosystems 1.0.0</title>")

	guide := readFile(t, filepath.Join(opts.OutDir, "guide.html"))

	assert.Contains(t, guide, `<a href="index.html">index</a>`)

	var report BuildReport

	require.NoError(t, json.Unmarshal(
		[]byte(readFile(t, filepath.Join(opts.OutDir, "build-info.json"))), &report))

	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, "cryptosystems", report.Project)
	assert.Equal(t, FormatHTML, report.Format)
	assert.Contains(t, report.Extensions, ExtAutodoc)
	assert.Equal(t, 1, report.Counters["doctest"])
	assert.Len(t, report.Durations, 2)
	assert.GreaterOrEqual(t, report.Warnings, 1, "unresolved class reference")

	inv, err := os.Open(filepath.Join(opts.OutDir, "objects.inv"))
	require.NoError(t, err)

	defer inv.Close()

	parsed, err := ParseInventory(inv, "https://cryptosystems.readthedocs.io/")
	require.NoError(t, err)

	target, ok := parsed.Lookup(Reference{Domain: "std", Role: "doc", Target: "guide"})
	require.True(t, ok)
	assert.Equal(t, "https://cryptosystems.readthedocs.io/guide.html", target.URL)
	assert.Equal(t, "Guide", target.Title)
}

func TestBuildBasicThemeIgnoresThemeOptions(t *testing.T) {
	docs := writeTestDocs(t)

	conf := testConfig()
	conf.HTMLTheme = ""

	opts := testOptions(t, docs)

	require.NoError(t, Build(context.Background(), conf, opts, nil))

	index := readFile(t, filepath.Join(opts.OutDir, "index.html"))

	assert.Contains(t, index, "_static/basic.css")
	assert.NotContains(t, index, `aria-label="GitHub"`)
	assert.NotContains(t, index, "Show source")
}

func TestBuildWithoutDocuments(t *testing.T) {
	err := Build(context.Background(), testConfig(), testOptions(t, t.TempDir()), nil)
	assert.ErrorIs(t, err, errNoDocuments)
}

func TestBuildAutodoc(t *testing.T) {
	root := t.TempDir()

	writeFiles(t, root, map[string]string{
		"go.mod": "module github.com/ishan-surana/cryptosystems\n\ngo 1.24\n",
		"ciphers/ciphers.go": `// Package ciphers implements classical ciphers.
package ciphers

// Caesar shifts every letter of the text by key positions.
func Caesar(text string, key int) string {
	return text
}

// Key is a cipher key.
type Key struct{}

// Reverse returns the inverse key.
func (k Key) Reverse() Key {
	return k
}
`,
		"docs/index.rst": `API
===

.. automodule:: github.com/ishan-surana/cryptosystems/ciphers

.. autosummary::

   github.com/ishan-surana/cryptosystems/ciphers
`,
	})

	opts := testOptions(t, filepath.Join(root, "docs"))

	b, err := NewBuilder(testConfig(), opts, nil)
	require.NoError(t, err)

	assert.True(t, opts.SearchPath.Contains(root),
		"the source roots are on the search path before extensions load")

	require.NoError(t, b.Run(context.Background()))

	index := readFile(t, filepath.Join(opts.OutDir, "index.html"))

	assert.Contains(t, index, `id="module-github-com-ishan-surana-cryptosystems-ciphers"`)
	assert.Contains(t, index, `id="github-com-ishan-surana-cryptosystems-ciphers-caesar"`)
	assert.Contains(t, index, `id="github-com-ishan-surana-cryptosystems-ciphers-key-reverse"`)
	assert.Contains(t, index, "Caesar shifts every letter")
	assert.Contains(t, index, `<table class="autosummary">`)
	assert.Contains(t, index,
		`href="#github-com-ishan-surana-cryptosystems-ciphers-caesar"`,
		"autosummary entries link to the documented members")
	assert.Equal(t, 0, b.Report().Warnings)
}

func TestBuildUnreachableInventory(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	docs := writeTestDocs(t)

	conf := testConfig()
	conf.IntersphinxMapping = map[string]IntersphinxTarget{
		"python": {BaseURL: srv.URL + "/3/"},
	}

	b, err := NewBuilder(conf, testOptions(t, docs), nil)
	require.NoError(t, err)

	require.NoError(t, b.Run(context.Background()),
		"an unreachable inventory doesn't fail the build")

	assert.GreaterOrEqual(t, b.Report().Warnings, 2)
}

func TestBuildResolvesIntersphinxReferences(t *testing.T) {
	data := testInventory(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	root := t.TempDir()
	docs := filepath.Join(root, "docs")

	writeFiles(t, docs, map[string]string{
		"index.rst": "Hashing\n=======\n\nUses :func:`hashlib.sha256`.\n\n" +
			".. toctree::\n\n   api/hash\n",
		"api/hash.rst": "Hash API\n========\n\nSee :doc:`python:glossary` and :doc:`/index`.\n",
	})

	conf := testConfig()
	conf.IntersphinxMapping = map[string]IntersphinxTarget{
		"python": {BaseURL: srv.URL + "/3/"},
	}

	opts := testOptions(t, docs)

	b, err := NewBuilder(conf, opts, nil)
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background()))

	index := readFile(t, filepath.Join(opts.OutDir, "index.html"))

	assert.Contains(t, index,
		`<a class="reference external" href="`+srv.URL+`/3/library/hashlib.html#hashlib.sha256">hashlib.sha256</a>`)
	assert.NotContains(t, index, `class="xref broken"`)

	hash := readFile(t, filepath.Join(opts.OutDir, "api", "hash.html"))

	assert.Contains(t, hash,
		`<a class="reference external" href="`+srv.URL+`/3/glossary.html">Glossary</a>`,
		"project scoped doc references aren't made relative to the document")
	assert.Contains(t, hash, `href="../index.html"`)
	assert.NotContains(t, hash, `class="xref broken"`)
	assert.Equal(t, 0, b.Report().Warnings)
}

func TestWarnPrintsOnce(t *testing.T) {
	var logged strings.Builder

	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logged,
		&slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	var printed []string

	b, err := NewBuilder(testConfig(), testOptions(t, t.TempDir()),
		func(format string, a ...any) {
			printed = append(printed, fmt.Sprintf(format, a...))
		})
	require.NoError(t, err)

	b.Warn("%s: unknown directive type %q", "index.rst", "tabs")

	assert.Equal(t, []string{`WARNING: index.rst: unknown directive type "tabs"`}, printed)
	assert.Empty(t, logged.String())
	assert.Equal(t, 1, b.Report().Warnings)
}
