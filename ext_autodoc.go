package cryptodocs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/doc"
	"go/parser"
	"go/printer"
	"go/token"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// autodocExt documents Go packages found on the search path.
type autodocExt struct {
	sp *SearchPath

	m        sync.Mutex
	packages map[string]*loadedPackage
}

type loadedPackage struct {
	fset *token.FileSet
	pkg  *doc.Package
}

func (*autodocExt) Name() string { return ExtAutodoc }

func (e *autodocExt) Setup(b *Builder) error {
	e.sp = b.Options().SearchPath
	e.packages = make(map[string]*loadedPackage)

	b.AddDirective("automodule", e.automodule)
	b.AddDirective("autofunction", e.autoMember)
	b.AddDirective("autotype", e.autoMember)

	return nil
}

// load parses and caches the package with the given import path.
func (e *autodocExt) load(importPath string) (*loadedPackage, error) {
	e.m.Lock()
	defer e.m.Unlock()

	if p, ok := e.packages[importPath]; ok {
		return p, nil
	}

	dir, err := e.sp.Resolve(importPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list package files: %w", err)
	}

	fset := token.NewFileSet()

	var files []*ast.File

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".go") ||
			strings.HasSuffix(name, "_test.go") {
			continue
		}

		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil,
			parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}

		files = append(files, f)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("no Go files in %s", dir)
	}

	pkg, err := doc.NewFromFiles(fset, files, importPath)
	if err != nil {
		return nil, fmt.Errorf("read package documentation: %w", err)
	}

	p := loadedPackage{fset: fset, pkg: pkg}

	e.packages[importPath] = &p

	return &p, nil
}

func (e *autodocExt) automodule(_ context.Context, _ *ParseEnv, d Directive) (string, error) {
	p, err := e.load(d.Argument)
	if err != nil {
		return "", err
	}

	var out strings.Builder

	pkg := p.pkg
	anchor := "module-" + slugify(pkg.ImportPath)

	d.Doc.AddObject("go", "package", pkg.ImportPath, anchor, pkg.ImportPath)

	fmt.Fprintf(&out, "<section class=\"go-package\" id=\"%s\">\n", anchor)
	fmt.Fprintf(&out, "<p class=\"go-import\"><code>import %q</code></p>\n",
		pkg.ImportPath)
	out.Write(pkg.HTML(pkg.Doc))

	for _, c := range pkg.Consts {
		p.writeValue(&out, c)
	}

	for _, v := range pkg.Vars {
		p.writeValue(&out, v)
	}

	for _, f := range pkg.Funcs {
		p.writeFunc(&out, d.Doc, "", f)
	}

	for _, t := range pkg.Types {
		p.writeType(&out, d.Doc, t)
	}

	out.WriteString("</section>\n")

	return out.String(), nil
}

// autoMember documents a single function or type, the argument is the
// import path and the name joined with a dot.
func (e *autodocExt) autoMember(_ context.Context, _ *ParseEnv, d Directive) (string, error) {
	idx := strings.LastIndex(d.Argument, ".")
	if idx <= 0 {
		return "", fmt.Errorf("%q is not a qualified name", d.Argument)
	}

	importPath, name := d.Argument[:idx], d.Argument[idx+1:]

	p, err := e.load(importPath)
	if err != nil {
		return "", err
	}

	var out strings.Builder

	switch d.Name {
	case "autofunction":
		for _, f := range p.pkg.Funcs {
			if f.Name == name {
				p.writeFunc(&out, d.Doc, "", f)

				return out.String(), nil
			}
		}
	case "autotype":
		for _, t := range p.pkg.Types {
			if t.Name == name {
				p.writeType(&out, d.Doc, t)

				return out.String(), nil
			}
		}
	}

	return "", errors.New("no exported member " + d.Argument)
}

func (p *loadedPackage) decl(node any) string {
	var buf bytes.Buffer

	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 4}

	err := cfg.Fprint(&buf, p.fset, node)
	if err != nil {
		return fmt.Sprintf("/* %v */", err)
	}

	return buf.String()
}

func (p *loadedPackage) writeValue(out *strings.Builder, v *doc.Value) {
	fmt.Fprintf(out, "<dl class=\"go value\">\n<dt><pre class=\"go-decl\">%s</pre></dt>\n<dd>",
		html.EscapeString(p.decl(v.Decl)))
	out.Write(p.pkg.HTML(v.Doc))
	out.WriteString("</dd>\n</dl>\n")
}

func (p *loadedPackage) writeFunc(
	out *strings.Builder, d *Document, recv string, f *doc.Func,
) {
	name := p.pkg.ImportPath + "." + f.Name
	role := "func"

	if recv != "" {
		name = p.pkg.ImportPath + "." + recv + "." + f.Name
		role = "method"
	}

	anchor := slugify(name)

	d.AddObject("go", role, name, anchor, f.Name)

	fmt.Fprintf(out, "<dl class=\"go %s\">\n<dt id=\"%s\"><pre class=\"go-decl\">%s</pre></dt>\n<dd>",
		role, anchor, html.EscapeString(p.decl(f.Decl)))
	out.Write(p.pkg.HTML(f.Doc))
	out.WriteString("</dd>\n</dl>\n")
}

func (p *loadedPackage) writeType(out *strings.Builder, d *Document, t *doc.Type) {
	name := p.pkg.ImportPath + "." + t.Name
	anchor := slugify(name)

	d.AddObject("go", "type", name, anchor, t.Name)

	fmt.Fprintf(out, "<dl class=\"go type\">\n<dt id=\"%s\"><pre class=\"go-decl\">%s</pre></dt>\n<dd>",
		anchor, html.EscapeString(p.decl(t.Decl)))
	out.Write(p.pkg.HTML(t.Doc))

	for _, c := range t.Consts {
		p.writeValue(out, c)
	}

	for _, v := range t.Vars {
		p.writeValue(out, v)
	}

	for _, f := range t.Funcs {
		p.writeFunc(out, d, "", f)
	}

	for _, m := range t.Methods {
		p.writeFunc(out, d, t.Name, m)
	}

	out.WriteString("</dd>\n</dl>\n")
}

// autosummaryExt renders tables of package members.
type autosummaryExt struct {
	autodoc *autodocExt
}

func (*autosummaryExt) Name() string { return ExtAutosummary }

func (e *autosummaryExt) Setup(b *Builder) error {
	err := b.RequireExtension(ExtAutodoc)
	if err != nil {
		return err
	}

	autodoc, ok := b.extension(ExtAutodoc).(*autodocExt)
	if !ok {
		return errors.New("autodoc extension has an unexpected type")
	}

	e.autodoc = autodoc

	b.AddDirective("autosummary", e.autosummary)

	return nil
}

// autosummary lists the exported members of the packages named in the
// argument and content.
func (e *autosummaryExt) autosummary(_ context.Context, _ *ParseEnv, d Directive) (string, error) {
	var paths []string

	if d.Argument != "" {
		paths = append(paths, d.Argument)
	}

	for _, l := range d.Content {
		if l = strings.TrimSpace(l); l != "" {
			paths = append(paths, l)
		}
	}

	var out strings.Builder

	out.WriteString("<table class=\"autosummary\">\n<tbody>\n")

	row := func(ref Reference, synopsis string) {
		fmt.Fprintf(&out, "<tr><td>%s</td><td>%s</td></tr>\n",
			xrefHTML(ref), html.EscapeString(synopsis))
	}

	for _, importPath := range paths {
		p, err := e.autodoc.load(importPath)
		if err != nil {
			return "", err
		}

		pkg := p.pkg

		row(Reference{Domain: "go", Role: "package", Target: importPath},
			pkg.Synopsis(pkg.Doc))

		for _, f := range pkg.Funcs {
			row(Reference{
				Domain: "go", Role: "func",
				Target: importPath + "." + f.Name, Title: f.Name,
			}, pkg.Synopsis(f.Doc))
		}

		for _, t := range pkg.Types {
			row(Reference{
				Domain: "go", Role: "type",
				Target: importPath + "." + t.Name, Title: t.Name,
			}, pkg.Synopsis(t.Doc))
		}
	}

	out.WriteString("</tbody>\n</table>\n")

	return out.String(), nil
}
