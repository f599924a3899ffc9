package cryptodocs

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldhtml "github.com/yuin/goldmark/renderer/html"
	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Markdown dialect extensions that can be enabled with
// myst_enable_extensions. Only the first group changes rendering, the rest
// are accepted for compatibility.
var (
	supportedMystExtensions = []string{
		"colon_fence", "linkify", "tasklist", "deflist", "strikethrough",
	}
	knownMystExtensions = append(slices.Clone(supportedMystExtensions),
		"amsmath", "attrs_block", "attrs_inline", "dollarmath",
		"fieldlist", "html_admonition", "html_image", "replacements",
		"smartquotes", "substitution",
	)
)

type markdownParser struct {
	md         goldmark.Markdown
	colonFence bool
}

// newMarkdownParser creates a markdown parser. A nil extension list gives
// the GitHub flavoured dialect.
func newMarkdownParser(mystExtensions []string) *markdownParser {
	p := markdownParser{}

	var exts []goldmark.Extender

	if mystExtensions == nil {
		exts = append(exts, extension.GFM)
	} else {
		exts = append(exts, extension.Table)

		for _, name := range mystExtensions {
			switch name {
			case "colon_fence":
				p.colonFence = true
			case "linkify":
				exts = append(exts, extension.Linkify)
			case "tasklist":
				exts = append(exts, extension.TaskList)
			case "deflist":
				exts = append(exts, extension.DefinitionList)
			case "strikethrough":
				exts = append(exts, extension.Strikethrough)
			}
		}
	}

	p.md = goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(goldhtml.WithUnsafe(), goldhtml.WithXHTML()),
	)

	return &p
}

func (p *markdownParser) Name() string {
	return ParserMarkdown
}

func (p *markdownParser) Parse(
	_ context.Context, _ *ParseEnv, src SourceFile,
) (*Document, error) {
	body, title, err := p.render(src.Data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.Rel, err)
	}

	doc := newDocument(src)
	doc.Title = title
	doc.Body = body

	return doc, nil
}

func (p *markdownParser) render(data []byte) (template.HTML, string, error) {
	if p.colonFence {
		data = expandColonFences(data)
	}

	var buf bytes.Buffer

	err := p.md.Convert(data, &buf)
	if err != nil {
		return "", "", fmt.Errorf("render markdown: %w", err)
	}

	title, err := firstHeading(buf.String())
	if err != nil {
		return "", "", err
	}

	return template.HTML(buf.String()), title, nil
}

func firstHeading(fragment string) (string, error) {
	nodes, err := parseFragment(fragment)
	if err != nil {
		return "", err
	}

	for _, n := range nodes {
		if n.Type == xhtml.ElementNode && n.DataAtom == atom.H1 {
			return strings.TrimSpace(textContent(n)), nil
		}

		for d := range n.Descendants() {
			if d.Type == xhtml.ElementNode && d.DataAtom == atom.H1 {
				return strings.TrimSpace(textContent(d)), nil
			}
		}
	}

	return "", nil
}

var colonFenceRE = regexp.MustCompile(`^(:{3,})\{([\w-]+)\}\s*(.*)$`)

// expandColonFences turns ":::{note}" blocks into admonition divs that
// goldmark passes through as raw HTML.
func expandColonFences(data []byte) []byte {
	var (
		out   []string
		stack []string
		code  bool
	)

	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimRight(line, " \r")

		if strings.HasPrefix(strings.TrimSpace(trimmed), "```") {
			code = !code
		}

		if code {
			out = append(out, line)

			continue
		}

		if m := colonFenceRE.FindStringSubmatch(trimmed); m != nil {
			name, title := m[2], m[3]
			if title == "" {
				title = strings.ToUpper(name[:1]) + name[1:]
			}

			out = append(out, "",
				fmt.Sprintf(`<div class="admonition %s">`, html.EscapeString(name)),
				fmt.Sprintf(`<p class="admonition-title">%s</p>`, html.EscapeString(title)),
				"")

			stack = append(stack, m[1])

			continue
		}

		if len(stack) > 0 && trimmed == stack[len(stack)-1] {
			out = append(out, "", "</div>", "")
			stack = stack[:len(stack)-1]

			continue
		}

		out = append(out, line)
	}

	for range stack {
		out = append(out, "", "</div>", "")
	}

	return []byte(strings.Join(out, "\n"))
}
