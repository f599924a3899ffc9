package cryptodocs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchSuffix(t *testing.T) {
	suffixes := Cryptosystems().SourceSuffix

	cases := []struct {
		Name   string
		Suffix string
		Parser string
		OK     bool
	}{
		{Name: "guide.md", Suffix: ".md", Parser: ParserMarkdown, OK: true},
		{Name: "index.rst", Suffix: ".rst", Parser: ParserRestructuredText, OK: true},
		{Name: "notes/changes.txt", Suffix: ".txt", Parser: ParserMarkdown, OK: true},
		{Name: "logo.png"},
		{Name: ".md"},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			suffix, parser, ok := MatchSuffix(suffixes, c.Name)

			assert.Equal(t, c.OK, ok)
			assert.Equal(t, c.Suffix, suffix)
			assert.Equal(t, c.Parser, parser)
		})
	}
}

func TestMatchSuffixPrefersLongest(t *testing.T) {
	suffixes := map[string]string{
		".md":     ParserMarkdown,
		".rst.md": ParserRestructuredText,
	}

	suffix, parser, ok := MatchSuffix(suffixes, "api.rst.md")
	require.True(t, ok)
	assert.Equal(t, ".rst.md", suffix)
	assert.Equal(t, ParserRestructuredText, parser)
}

func TestParserForDispatch(t *testing.T) {
	b, err := NewBuilder(testConfig(), testOptions(t, t.TempDir()), nil)
	require.NoError(t, err)

	p, err := ParserFor(b.Config(), b.Parsers(), "guide.md")
	require.NoError(t, err)
	assert.Equal(t, ParserMarkdown, p.Name())

	p, err = ParserFor(b.Config(), b.Parsers(), "index.rst")
	require.NoError(t, err)
	assert.Equal(t, ParserRestructuredText, p.Name())

	_, err = ParserFor(b.Config(), b.Parsers(), "logo.png")
	assert.ErrorIs(t, err, ErrNoParser)
}

func TestParserForUnregisteredParser(t *testing.T) {
	reg := NewParserRegistry()
	reg.Register(rstParser{})

	_, err := ParserFor(Cryptosystems(), reg, "guide.md")
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestParserRegistryReplaces(t *testing.T) {
	reg := NewParserRegistry()

	gfm := newMarkdownParser(nil)
	myst := newMarkdownParser([]string{"colon_fence"})

	reg.Register(gfm)
	reg.Register(myst)
	reg.Register(rstParser{})

	p, ok := reg.Get(ParserMarkdown)
	require.True(t, ok)
	assert.Same(t, myst, p)

	assert.Equal(t, []string{ParserMarkdown, ParserRestructuredText}, reg.Names())
}
