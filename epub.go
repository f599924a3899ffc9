package cryptodocs

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"path"
	"path/filepath"
	"strings"

	epub "github.com/go-shiori/go-epub"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// epubFileName returns the name of the EPUB file for a project.
func epubFileName(project string) string {
	name := slugify(project)
	if project == "" {
		name = "documentation"
	}

	return name + ".epub"
}

// epubSection returns the flat chapter file name used for a document.
func epubSection(docName string) string {
	return strings.ReplaceAll(docName, "/", "-") + ".xhtml"
}

func (b *Builder) writeEPUB(docs []*Document, nav []MenuItem) error {
	const ext = ".xhtml"

	book, err := epub.NewEpub(b.conf.Project)
	if err != nil {
		return fmt.Errorf("create epub: %w", err)
	}

	book.SetIdentifier(epubIdentifier(b.conf))
	book.SetLang("en")

	if b.conf.Author != "" {
		book.SetAuthor(b.conf.Author)
	}

	if b.conf.Copyright != "" {
		book.SetDescription("Copyright " + b.conf.Copyright)
	}

	css, err := assetFS.ReadFile("assets/epub.css")
	if err != nil {
		return fmt.Errorf("read epub stylesheet: %w", err)
	}

	cssPath, err := book.AddCSS(
		"data:text/css;base64,"+base64.StdEncoding.EncodeToString(css),
		"epub.css")
	if err != nil {
		return fmt.Errorf("add epub stylesheet: %w", err)
	}

	mode := b.conf.EffectiveEPUBShowURLs()

	for _, doc := range spineOrder(nav, docs) {
		body, err := b.resolveLinks(doc, ext)
		if err != nil {
			return fmt.Errorf("resolve links in %s: %w", doc.Source.Rel, err)
		}

		body, err = flattenLinks(body, doc.Source.DocName, ext)
		if err != nil {
			return fmt.Errorf("flatten links in %s: %w", doc.Source.Rel, err)
		}

		body, err = showURLs(body, mode)
		if err != nil {
			return fmt.Errorf("show URLs in %s: %w", doc.Source.Rel, err)
		}

		title := doc.Title
		if title == "" {
			title = doc.Source.DocName
		}

		_, err = book.AddSection(string(body), title,
			epubSection(doc.Source.DocName), cssPath)
		if err != nil {
			return fmt.Errorf("add %s to epub: %w", doc.Source.Rel, err)
		}
	}

	outFile := filepath.Join(b.opts.OutDir, epubFileName(b.conf.Project))

	err = book.Write(outFile)
	if err != nil {
		return fmt.Errorf("write epub: %w", err)
	}

	b.uiPrintln("Wrote %s", outFile)

	return nil
}

func epubIdentifier(conf Config) string {
	if conf.RepoURL != "" {
		return conf.RepoURL
	}

	return "urn:project:" + slugify(conf.Project) + ":" + conf.Release
}

// flattenLinks rewrites links between chapters, which are relative to the
// document directory, to the flat chapter names of the book.
func flattenLinks(body template.HTML, fromDoc string, ext string) (template.HTML, error) {
	return transformFragment(body, func(root *html.Node) error {
		for _, a := range elements(root, atom.A) {
			href, ok := attr(a, "href")
			if !ok || href == "" || strings.HasPrefix(href, "#") ||
				strings.Contains(href, ":") {
				continue
			}

			target, anchor, hasAnchor := strings.Cut(href, "#")

			docName, ok := strings.CutSuffix(target, ext)
			if !ok {
				continue
			}

			docName = path.Join(path.Dir(fromDoc), docName)

			link := epubSection(docName)
			if hasAnchor {
				link += "#" + anchor
			}

			setAttr(a, "href", link)
		}

		return nil
	})
}

// showURLs makes the targets of external links visible, either inline after
// the link or as numbered footnotes at the end of the document.
func showURLs(body template.HTML, mode string) (template.HTML, error) {
	if mode == EPUBShowURLsNo {
		return body, nil
	}

	return transformFragment(body, func(root *html.Node) error {
		numbers := make(map[string]int)

		var footnotes []string

		for _, a := range elements(root, atom.A) {
			href, _ := attr(a, "href")

			if !isURL(href) || strings.TrimSpace(textContent(a)) == href {
				continue
			}

			switch mode {
			case EPUBShowURLsInline:
				span := element(atom.Span, html.Attribute{
					Key: "class", Val: "link-target",
				})
				span.AppendChild(textNode(" (" + href + ")"))

				a.Parent.InsertBefore(span, a.NextSibling)
			case EPUBShowURLsFootnote:
				n, ok := numbers[href]
				if !ok {
					footnotes = append(footnotes, href)
					n = len(footnotes)
					numbers[href] = n
				}

				ref := element(atom.A,
					html.Attribute{Key: "class", Val: "footnote-reference"},
					html.Attribute{Key: "epub:type", Val: "noteref"},
					html.Attribute{Key: "href", Val: fmt.Sprintf("#fn-%d", n)},
				)
				ref.AppendChild(textNode(fmt.Sprintf("[%d]", n)))

				sup := element(atom.Sup)
				sup.AppendChild(ref)

				a.Parent.InsertBefore(sup, a.NextSibling)
			}
		}

		if len(footnotes) == 0 {
			return nil
		}

		aside := element(atom.Aside,
			html.Attribute{Key: "class", Val: "footnotes"},
			html.Attribute{Key: "epub:type", Val: "footnotes"},
		)

		list := element(atom.Ol)

		for i, href := range footnotes {
			li := element(atom.Li, html.Attribute{
				Key: "id", Val: fmt.Sprintf("fn-%d", i+1),
			})

			link := element(atom.A, html.Attribute{Key: "href", Val: href})
			link.AppendChild(textNode(href))

			li.AppendChild(link)
			list.AppendChild(li)
		}

		aside.AppendChild(list)
		root.AppendChild(aside)

		return nil
	})
}
