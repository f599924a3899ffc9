package cryptodocs

import (
	"bytes"
	"compress/zlib"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInventory(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer

	buf.WriteString("# Sphinx inventory version 2\n# Project: Python\n# Version: 3.13\n# The remainder of this file is compressed using zlib.\n")

	zw := zlib.NewWriter(&buf)

	_, err := zw.Write([]byte(`hashlib py:module 0 library/hashlib.html#module-$ -
hashlib.sha256 py:function 1 library/hashlib.html#$ -
int py:class 1 library/functions.html#$ -
glossary std:doc -1 glossary.html Glossary
`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return buf.Bytes()
}

func TestParseInventory(t *testing.T) {
	inv, err := ParseInventory(bytes.NewReader(testInventory(t)), "https://docs.python.org/3")
	require.NoError(t, err)

	assert.Equal(t, "Python", inv.Project)
	assert.Equal(t, "3.13", inv.Version)
	assert.Equal(t, 4, inv.Len())

	target, ok := inv.Lookup(Reference{Domain: "py", Role: "func", Target: "hashlib.sha256"})
	require.True(t, ok, "func role matches function objects")
	assert.Equal(t, "https://docs.python.org/3/library/hashlib.html#hashlib.sha256", target.URL)
	assert.Equal(t, "hashlib.sha256", target.Title)

	target, ok = inv.Lookup(Reference{Domain: "py", Role: "mod", Target: "hashlib"})
	require.True(t, ok)
	assert.Equal(t, "https://docs.python.org/3/library/hashlib.html#module-hashlib", target.URL)

	target, ok = inv.Lookup(Reference{Domain: "std", Role: "doc", Target: "glossary"})
	require.True(t, ok)
	assert.Equal(t, "Glossary", target.Title)

	_, err = ParseInventory(bytes.NewReader([]byte("# Sphinx inventory version 1\n")), "")
	assert.Error(t, err)
}

func TestWriteInventory(t *testing.T) {
	objects := []Object{
		{
			Name: "cryptosystems.RSA", Domain: "py", Role: "class",
			Target: Target{DocName: "api/rsa", Anchor: "cryptosystems-rsa"},
		},
		{
			Name: "index", Domain: "std", Role: "doc",
			Target: Target{DocName: "index", Title: "Cryptosystems"},
		},
	}

	var buf bytes.Buffer

	err := WriteInventory(&buf, "cryptosystems", "1.0.0", objects, func(t Target) string {
		if t.Anchor == "" {
			return t.DocName + ".html"
		}

		return t.DocName + ".html#" + t.Anchor
	})
	require.NoError(t, err)

	inv, err := ParseInventory(&buf, "https://cryptosystems.readthedocs.io/en/latest/")
	require.NoError(t, err)

	assert.Equal(t, "cryptosystems", inv.Project)
	assert.Equal(t, "1.0.0", inv.Version)

	target, ok := inv.Lookup(Reference{Domain: "py", Role: "class", Target: "cryptosystems.RSA"})
	require.True(t, ok)
	assert.Equal(t,
		"https://cryptosystems.readthedocs.io/en/latest/api/rsa.html#cryptosystems-rsa",
		target.URL)

	target, ok = inv.Lookup(Reference{Domain: "std", Role: "doc", Target: "index"})
	require.True(t, ok)
	assert.Equal(t, "Cryptosystems", target.Title)
}

func TestInventoryLocation(t *testing.T) {
	local := "python.inv"

	assert.Equal(t, "https://docs.python.org/3/objects.inv",
		InventoryLocation(IntersphinxTarget{BaseURL: "https://docs.python.org/3"}))
	assert.Equal(t, "python.inv",
		InventoryLocation(IntersphinxTarget{BaseURL: "https://docs.python.org/3/", Inventory: &local}))
}

func testHTTPClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil

	return client
}

func TestFetchInventory(t *testing.T) {
	data := testInventory(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/3/objects.inv" {
			http.NotFound(w, r)

			return
		}

		_, _ = w.Write(data)
	}))
	defer srv.Close()

	ctx := context.Background()

	inv, err := FetchInventory(ctx, testHTTPClient(),
		IntersphinxTarget{BaseURL: srv.URL + "/3/"}, "")
	require.NoError(t, err)
	assert.Equal(t, 4, inv.Len())

	_, err = FetchInventory(ctx, testHTTPClient(),
		IntersphinxTarget{BaseURL: srv.URL + "/2/"}, "")
	assert.Error(t, err)
}

func TestFetchInventoryFromFile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"inventories/python.inv": string(testInventory(t))})

	loc := filepath.Join("inventories", "python.inv")

	inv, err := FetchInventory(context.Background(), testHTTPClient(),
		IntersphinxTarget{BaseURL: "https://docs.python.org/3/", Inventory: &loc}, dir)
	require.NoError(t, err)

	target, ok := inv.Lookup(Reference{Domain: "py", Role: "class", Target: "int"})
	require.True(t, ok)
	assert.Equal(t, "https://docs.python.org/3/library/functions.html#int", target.URL)
}

func TestInventoryResolver(t *testing.T) {
	inv, err := ParseInventory(bytes.NewReader(testInventory(t)), "https://docs.python.org/3/")
	require.NoError(t, err)

	r := InventoryResolver{
		Inventories:     map[string]*Inventory{"python": inv},
		DisabledDomains: []string{"std"},
	}

	_, ok := r.Resolve(Reference{Domain: "py", Role: "class", Target: "int"})
	assert.True(t, ok)

	_, ok = r.Resolve(Reference{Domain: "py", Role: "class", Target: "python:int"})
	assert.True(t, ok, "project prefix")

	_, ok = r.Resolve(Reference{Domain: "py", Role: "class", Target: "sphinx:int"})
	assert.False(t, ok, "unknown project prefix")

	_, ok = r.Resolve(Reference{Domain: "std", Role: "doc", Target: "glossary"})
	assert.False(t, ok, "std domain is disabled")

	target, ok := r.Resolve(Reference{Domain: "std", Role: "doc", Target: "python:glossary"})
	require.True(t, ok, "an explicit project prefix bypasses disabled domains")
	assert.Equal(t, "https://docs.python.org/3/glossary.html", target.URL)
}
