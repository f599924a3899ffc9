package cryptodocs

import (
	"cmp"
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// durationExt measures how long each document takes to parse.
type durationExt struct{}

func (*durationExt) Name() string { return ExtDuration }

func (*durationExt) Setup(*Builder) error { return nil }

func (*durationExt) Finish(_ context.Context, b *Builder, docs []*Document) error {
	durations := make([]DocumentDuration, len(docs))

	for i, d := range docs {
		durations[i] = DocumentDuration{
			DocName:  d.Source.DocName,
			Duration: d.ParseDuration,
		}
	}

	slices.SortStableFunc(durations, func(a, b DocumentDuration) int {
		return cmp.Compare(b.Duration, a.Duration)
	})

	b.setDurations(durations)

	b.uiPrintln("Slowest documents to parse:")

	for _, d := range durations[:min(5, len(durations))] {
		b.uiPrintln("  %s: %s", d.DocName, d.Duration)
	}

	return nil
}

// doctestExt renders doctest blocks and counts them.
type doctestExt struct{}

func (*doctestExt) Name() string { return ExtDoctest }

func (*doctestExt) Setup(b *Builder) error {
	for _, name := range []string{"doctest", "testcode", "testoutput"} {
		b.AddDirective(name, func(
			_ context.Context, _ *ParseEnv, d Directive,
		) (string, error) {
			if d.Name == "doctest" {
				d.Doc.Counters["doctest"]++
			}

			return codeBlockHTML("pycon", "highlight doctest", d.Content), nil
		})
	}

	return nil
}

func (*doctestExt) Finish(_ context.Context, b *Builder, docs []*Document) error {
	var blocks, withTests int

	for _, d := range docs {
		n := d.Counters["doctest"]
		if n > 0 {
			withTests++
			blocks += n
		}
	}

	b.Count("doctest", blocks)
	b.uiPrintln("Found %d doctest blocks in %d documents", blocks, withTests)

	return nil
}

// designExt provides card and grid layout directives.
type designExt struct{}

func (*designExt) Name() string { return ExtDesign }

func (*designExt) Setup(b *Builder) error {
	b.AddDirective("card", cardDirective)
	b.AddDirective("grid-item-card", func(
		ctx context.Context, env *ParseEnv, d Directive,
	) (string, error) {
		card, err := cardDirective(ctx, env, d)
		if err != nil {
			return "", err
		}

		return `<div class="sd-col">` + card + "</div>\n", nil
	})
	b.AddDirective("grid", gridDirective)

	return nil
}

func cardDirective(_ context.Context, _ *ParseEnv, d Directive) (string, error) {
	inner, err := d.RenderContent()
	if err != nil {
		return "", err
	}

	var title string
	if d.Argument != "" {
		title = `<div class="sd-card-title">` + html.EscapeString(d.Argument) + "</div>\n"
	}

	card := "<div class=\"sd-card\">\n" + title +
		"<div class=\"sd-card-body\">\n" + inner + "</div>\n</div>\n"

	if link := d.Options["link"]; link != "" {
		card = fmt.Sprintf("<a class=\"sd-stretched-link\" href=\"%s\">\n%s</a>\n",
			html.EscapeString(link), card)
	}

	return card, nil
}

func gridDirective(_ context.Context, _ *ParseEnv, d Directive) (string, error) {
	inner, err := d.RenderContent()
	if err != nil {
		return "", err
	}

	// The argument is a column count per breakpoint, the widest one
	// decides the layout.
	columns := 1

	for _, f := range strings.Fields(d.Argument) {
		n, err := strconv.Atoi(f)
		if err == nil && n > columns {
			columns = n
		}
	}

	return fmt.Sprintf(
		"<div class=\"sd-row\" style=\"grid-template-columns: repeat(%d, 1fr)\">\n%s</div>\n",
		columns, inner), nil
}

// copyButtonExt adds a copy button to code blocks.
type copyButtonExt struct{}

func (*copyButtonExt) Name() string { return ExtCopyButton }

func (*copyButtonExt) Setup(b *Builder) error {
	b.AddScript("copybutton.js")

	return nil
}

func (*copyButtonExt) TransformDocument(
	_ context.Context, b *Builder, doc *Document,
) error {
	if b.opts.Format != FormatHTML {
		return nil
	}

	body, err := transformFragment(doc.Body, func(root *xhtml.Node) error {
		for _, pre := range elements(root, atom.Pre) {
			wrapper := pre.Parent

			if !hasClass(wrapper, "highlight") {
				wrapper = element(atom.Div, xhtml.Attribute{
					Key: "class", Val: "highlight",
				})

				pre.Parent.InsertBefore(wrapper, pre)
				pre.Parent.RemoveChild(pre)
				wrapper.AppendChild(pre)
			}

			btn := element(atom.Button,
				xhtml.Attribute{Key: "class", Val: "copybtn"},
				xhtml.Attribute{Key: "title", Val: "Copy to clipboard"},
			)
			btn.AppendChild(textNode("Copy"))

			wrapper.AppendChild(btn)
		}

		return nil
	})
	if err != nil {
		return err
	}

	doc.Body = body

	return nil
}

// m2r2Ext adds markdown support to a build.
type m2r2Ext struct {
	parser *markdownParser
}

func (*m2r2Ext) Name() string { return ExtM2R2 }

func (e *m2r2Ext) Setup(b *Builder) error {
	e.parser = newMarkdownParser(nil)

	if _, ok := b.Parsers().Get(ParserMarkdown); !ok {
		b.Parsers().Register(e.parser)
	}

	b.AddDirective("mdinclude", e.mdinclude)

	return nil
}

func (e *m2r2Ext) mdinclude(_ context.Context, _ *ParseEnv, d Directive) (string, error) {
	name := d.Argument
	if !filepath.IsAbs(name) {
		name = filepath.Join(filepath.Dir(d.Source.Path), name)
	}

	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("read included file: %w", err)
	}

	body, _, err := e.parser.render(data)
	if err != nil {
		return "", err
	}

	return string(body), nil
}

// mystExt adds the markdown dialect configured by myst_enable_extensions.
type mystExt struct{}

func (*mystExt) Name() string { return ExtMystParser }

func (*mystExt) Setup(b *Builder) error {
	exts := b.Config().MystEnableExtensions
	if exts == nil {
		exts = []string{}
	}

	b.Parsers().Register(newMarkdownParser(exts))

	return nil
}
