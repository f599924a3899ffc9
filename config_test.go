package cryptodocs

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCryptosystemsConfig(t *testing.T) {
	conf := Cryptosystems()

	project, ok := conf.Get("project")
	require.True(t, ok)
	assert.Equal(t, "cryptosystems", project)

	theme, ok := conf.Get("html_theme")
	require.True(t, ok)
	assert.Equal(t, ThemeBook, theme)

	assert.Equal(t, []string{
		"sphinx.ext.duration",
		"sphinx.ext.doctest",
		"sphinx.ext.autodoc",
		"sphinx.ext.autosummary",
		"sphinx.ext.intersphinx",
		"sphinx_design",
		"sphinx_copybutton",
		"m2r2",
	}, conf.Extensions)

	python := conf.IntersphinxMapping["python"]
	assert.Equal(t, "https://docs.python.org/3/", python.BaseURL)
	assert.Nil(t, python.Inventory)

	assert.Equal(t, []string{"std"}, conf.IntersphinxDisabledDomains)
	assert.Equal(t, EPUBShowURLsFootnote, conf.EffectiveEPUBShowURLs())
	assert.Equal(t, map[string]string{
		".rst": ParserRestructuredText,
		".txt": ParserMarkdown,
		".md":  ParserMarkdown,
	}, conf.EffectiveSourceSuffix())

	require.Len(t, conf.HTMLThemeOptions.IconLinks, 2)
	assert.Equal(t, IconTypeFontAwesome, conf.HTMLThemeOptions.IconLinks[0].IconType())
	assert.Equal(t, IconTypeURL, conf.HTMLThemeOptions.IconLinks[1].IconType())
}

func TestGetUnsetOption(t *testing.T) {
	var conf Config

	_, ok := conf.Get("html_logo")
	assert.False(t, ok, "unset option")

	_, ok = conf.Get("no_such_option")
	assert.False(t, ok, "unknown option")

	assert.Equal(t, ThemeBasic, conf.Lookup("html_theme"))
	assert.Equal(t, "Python", conf.Lookup("project"))
	assert.Equal(t, EPUBShowURLsInline, conf.EffectiveEPUBShowURLs())
	assert.Equal(t, map[string]string{".rst": ParserRestructuredText},
		conf.EffectiveSourceSuffix())
	assert.Nil(t, conf.Lookup("html_logo"))
}

func TestOptionsCoverGet(t *testing.T) {
	conf := Cryptosystems()

	for _, name := range Options() {
		_, ok := conf.Get(name)
		assert.True(t, ok, "option %q should be set", name)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"conf.yaml": `project: cryptosystems
release: 1.0.0
version: "1.0"
extensions:
  - sphinx.ext.intersphinx
  - m2r2
source_suffix:
  .rst: restructuredtext
  .md: markdown
intersphinx_mapping:
  python: ["https://docs.python.org/3/", null]
  local: ["https://example.org/", "inventories/example.inv"]
html_theme: sphinx_book_theme
html_theme_options:
  repository_url: https://github.com/ishan-surana/cryptosystems
  icon_links:
    - name: GitHub
      url: https://github.com/ishan-surana/cryptosystems
      icon: fa-brands fa-github
`,
	})

	conf, err := LoadConfig(filepath.Join(dir, "conf.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "cryptosystems", conf.Project)
	assert.Equal(t, []string{ExtIntersphinx, ExtM2R2}, conf.Extensions)

	python := conf.IntersphinxMapping["python"]
	assert.Equal(t, "https://docs.python.org/3/", python.BaseURL)
	assert.Nil(t, python.Inventory)

	local := conf.IntersphinxMapping["local"]
	require.NotNil(t, local.Inventory)
	assert.Equal(t, "inventories/example.inv", *local.Inventory)

	require.Len(t, conf.HTMLThemeOptions.IconLinks, 1)
	assert.Equal(t, "GitHub", conf.HTMLThemeOptions.IconLinks[0].Name)

	require.NoError(t, Validate(conf, nil))
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"conf.json": `{
  "project": "cryptosystems",
  "release": "1.0.0",
  "extensions": ["sphinx.ext.duration", "sphinx_copybutton"],
  "source_suffix": {".rst": "restructuredtext"},
  "intersphinx_mapping": {
    "sphinx": ["https://www.sphinx-doc.org/en/master/", null]
  },
  "html_theme": "basic",
  "html_theme_options": {},
  "epub_show_urls": "no"
}`,
	})

	conf, err := LoadConfig(filepath.Join(dir, "conf.json"))
	require.NoError(t, err)

	assert.Equal(t, ThemeBasic, conf.EffectiveTheme())
	assert.Equal(t, EPUBShowURLsNo, conf.EffectiveEPUBShowURLs())
	assert.Equal(t, "https://www.sphinx-doc.org/en/master/objects.inv",
		InventoryLocation(conf.IntersphinxMapping["sphinx"]))

	_, ok := conf.Get("html_theme_options")
	assert.False(t, ok, "empty theme options are unset")

	_, err = LoadConfig(filepath.Join(dir, "conf.toml"))
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownOptions(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"conf.json": `{"project": "cryptosystems", "html_static_path": ["_static"]}`,
		"conf.yml":  "project: cryptosystems\nhtml_static_path: [_static]\n",
	})

	for _, name := range []string{"conf.json", "conf.yml"} {
		_, err := LoadConfig(filepath.Join(dir, name))
		assert.ErrorIs(t, err, ErrMalformedOption, name)
	}
}

func TestLoadConfigMalformedIntersphinxTarget(t *testing.T) {
	dir := t.TempDir()

	writeFiles(t, dir, map[string]string{
		"single.json": `{"intersphinx_mapping": {"python": ["https://docs.python.org/3/"]}}`,
		"string.json": `{"intersphinx_mapping": {"python": "https://docs.python.org/3/"}}`,
		"null.yaml":   "intersphinx_mapping:\n  python: [null, null]\n",
	})

	for _, name := range []string{"single.json", "string.json", "null.yaml"} {
		_, err := LoadConfig(filepath.Join(dir, name))
		assert.ErrorIs(t, err, ErrMalformedOption, name)
	}
}

func TestIntersphinxTargetJSON(t *testing.T) {
	inv := "objects.inv"

	data, err := json.Marshal(map[string]IntersphinxTarget{
		"python": {BaseURL: "https://docs.python.org/3/"},
		"sphinx": {BaseURL: "https://www.sphinx-doc.org/en/master/", Inventory: &inv},
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"python": ["https://docs.python.org/3/", null],
		"sphinx": ["https://www.sphinx-doc.org/en/master/", "objects.inv"]
	}`, string(data))
}
