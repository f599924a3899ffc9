package cryptodocs

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ishan-surana/cryptosystems-docs/internal"
	"golang.org/x/sync/errgroup"
)

const lastUpdatedFormat = "Jan 02, 2006"

func (b *Builder) templateDirs() []string {
	dirs := make([]string, len(b.conf.TemplatesPath))

	for i, p := range b.conf.TemplatesPath {
		dirs[i] = filepath.Join(b.opts.SourceDir, p)
	}

	return dirs
}

func (b *Builder) writeHTML(
	ctx context.Context, docs []*Document, nav []MenuItem,
	local *localResolver,
) error {
	outDir := b.opts.OutDir
	staticDir := filepath.Join(outDir, "_static")

	tpl, err := loadTemplates(b.templateDirs())
	if err != nil {
		return err
	}

	assets, err := fs.Sub(assetFS, "assets")
	if err != nil {
		return fmt.Errorf("open assets: %w", err)
	}

	err = os.CopyFS(staticDir, assets)
	if err != nil {
		return fmt.Errorf("write static directory: %w", err)
	}

	b.logo, err = copyLogo(b.opts.SourceDir, staticDir, b.conf.HTMLLogo)
	if err != nil {
		return err
	}

	jobs := make(chan *Document)

	grp, gCtx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		defer close(jobs)

		for _, doc := range docs {
			select {
			case jobs <- doc:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}

		return nil
	})

	for range b.opts.Workers {
		grp.Go(func() error {
			localTpl, err := tpl.Clone()
			if err != nil {
				return fmt.Errorf("clone templates: %w", err)
			}

			for doc := range jobs {
				err := b.renderHTMLPage(localTpl, doc, nav)
				if err != nil {
					return fmt.Errorf("render %s: %w", doc.Source.Rel, err)
				}
			}

			return nil
		})
	}

	grp.Go(func() error {
		return b.writeInventory(local)
	})

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("render documentation: %w", err)
	}

	return nil
}

func (b *Builder) renderHTMLPage(
	tpl *template.Template, doc *Document, nav []MenuItem,
) error {
	const ext = ".html"

	body, err := b.resolveLinks(doc, ext)
	if err != nil {
		return err
	}

	page := Page{
		Title:    doc.Title,
		Root:     rootPrefix(doc.Source.DocName),
		Menu:     menuFor(nav, doc.Source.DocName, ext),
		Contents: body,
	}

	if !doc.LastUpdated.IsZero() {
		page.LastUpdated = doc.LastUpdated.Format(lastUpdatedFormat)
	}

	b.pageChrome(&page, doc)

	return renderPage(
		filepath.Join(b.opts.OutDir, filepath.FromSlash(doc.Source.DocName)+ext),
		tpl, b.theme.Layout, page)
}

func renderPage(
	outFile string,
	tpl *template.Template,
	templateName string,
	data any,
) (outErr error) {
	err := os.MkdirAll(filepath.Dir(outFile), 0o770)
	if err != nil {
		return fmt.Errorf("create %q: %w", filepath.Dir(outFile), err)
	}

	file, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(outFile), err)
	}

	defer internal.Close(filepath.Base(outFile), file, &outErr)

	err = tpl.ExecuteTemplate(file, templateName, data)
	if err != nil {
		return fmt.Errorf("render page: %w", err)
	}

	return nil
}

func (b *Builder) writeInventory(local *localResolver) (outErr error) {
	file, err := os.Create(filepath.Join(b.opts.OutDir, "objects.inv"))
	if err != nil {
		return fmt.Errorf("create objects.inv: %w", err)
	}

	defer internal.Close("objects.inv", file, &outErr)

	err = WriteInventory(file, b.conf.Project, b.conf.Version,
		local.allObjects(), func(t Target) string {
			return b.href("", t, ".html")
		})
	if err != nil {
		return fmt.Errorf("write objects.inv: %w", err)
	}

	return nil
}
