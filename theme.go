package cryptodocs

import (
	"embed"
	"fmt"
	"html/template"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

//go:embed templates
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

// Theme identifiers.
const (
	ThemeBasic = "basic"
	ThemeBook  = "sphinx_book_theme"
)

type Theme struct {
	Name       string
	Layout     string
	Stylesheet string
	// UsesOptions is true if the theme honours html_theme_options.
	UsesOptions bool
}

var themes = map[string]Theme{
	ThemeBasic: {
		Name:       ThemeBasic,
		Layout:     "basic.html",
		Stylesheet: "basic.css",
	},
	ThemeBook: {
		Name:        ThemeBook,
		Layout:      "book.html",
		Stylesheet:  "book.css",
		UsesOptions: true,
	},
}

func LookupTheme(name string) (Theme, bool) {
	t, ok := themes[name]

	return t, ok
}

func ThemeNames() []string {
	return slices.Sorted(maps.Keys(themes))
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// loadTemplates parses the embedded templates and then any overrides found
// in the template directories.
func loadTemplates(templateDirs []string) (*template.Template, error) {
	tpl := template.New("templates")

	tpl.Funcs(template.FuncMap{
		"asset_url": func(root string, p string) string {
			if isURL(p) {
				return p
			}

			return root + p
		},
	})

	tpl, err := tpl.ParseFS(templateFS, "templates/*")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	for _, dir := range templateDirs {
		matches, err := filepath.Glob(filepath.Join(dir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("list templates in %q: %w", dir, err)
		}

		if len(matches) == 0 {
			continue
		}

		tpl, err = tpl.ParseFiles(matches...)
		if err != nil {
			return nil, fmt.Errorf("parse templates in %q: %w", dir, err)
		}
	}

	return tpl, nil
}

// sourceButtonURL links to the source file in the repository.
func sourceButtonURL(opts ThemeOptions, branch string, rel string) string {
	if branch == "" {
		branch = "main"
	}

	parts := []string{strings.TrimSuffix(opts.RepositoryURL, "/"), "blob", branch}

	if p := strings.Trim(opts.PathToDocs, "/"); p != "" {
		parts = append(parts, p)
	}

	return strings.Join(append(parts, rel), "/")
}

// pageChrome fills in the theme dependent parts of a page.
func (b *Builder) pageChrome(page *Page, doc *Document) {
	opts := b.conf.HTMLThemeOptions

	page.Project = b.conf.Project
	page.Release = b.conf.Release
	page.Copyright = b.conf.Copyright
	page.Logo = b.logo
	page.Stylesheet = b.theme.Stylesheet
	page.Scripts = b.scripts

	if !b.theme.UsesOptions {
		return
	}

	page.IconLinks = opts.IconLinks

	if opts.UseRepositoryButton {
		page.Repository = opts.RepositoryURL
	}

	if opts.UseSourceButton {
		var branch string

		if opts.RepositoryBranch != "" {
			branch = opts.RepositoryBranch
		} else if b.repo != nil {
			branch = b.repo.Branch
		}

		page.Source = sourceButtonURL(opts, branch, doc.Source.Rel)
	}
}

// copyLogo copies a local html_logo into the static directory and returns
// the path relative to the output root.
func copyLogo(sourceDir string, staticDir string, logo string) (string, error) {
	if logo == "" || isURL(logo) {
		return logo, nil
	}

	data, err := os.ReadFile(filepath.Join(sourceDir, logo))
	if err != nil {
		return "", fmt.Errorf("read logo: %w", err)
	}

	name := filepath.Base(logo)

	err = os.WriteFile(filepath.Join(staticDir, name), data, 0o600)
	if err != nil {
		return "", fmt.Errorf("write logo: %w", err)
	}

	return "_static/" + name, nil
}
