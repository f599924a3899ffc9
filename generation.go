package cryptodocs

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/ishan-surana/cryptosystems-docs/internal"
	"github.com/ryanuber/go-glob"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"
)

// Output formats.
const (
	FormatHTML = "html"
	FormatEPUB = "epub"
)

type BuildOptions struct {
	SourceDir string
	OutDir    string
	Format    string
	// SearchPath defaults to DefaultSearchPath.
	SearchPath *SearchPath
	HTTPClient *retryablehttp.Client
	Workers    int
}

// BuildReport summarises a build, it's written as build-info.json.
type BuildReport struct {
	Project    string             `json:"project"`
	Version    string             `json:"version"`
	Release    string             `json:"release"`
	Format     string             `json:"format"`
	Extensions []string           `json:"extensions"`
	Documents  int                `json:"documents"`
	Warnings   int                `json:"warnings"`
	Counters   map[string]int     `json:"counters,omitempty"`
	Durations  []DocumentDuration `json:"durations,omitempty"`
}

type DocumentDuration struct {
	DocName  string        `json:"doc_name"`
	Duration time.Duration `json:"duration_ns"`
}

// Builder turns documentation sources into rendered output according to a
// configuration.
type Builder struct {
	conf      Config
	opts      BuildOptions
	uiPrintln func(format string, a ...any)

	parsers    *ParserRegistry
	directives map[string]DirectiveFunc
	resolvers  []ReferenceResolver
	scripts    []string
	loaded     []Extension
	theme      Theme
	logo       string
	repo       *repoInfo

	m      sync.Mutex
	report BuildReport
}

// Build validates the configuration and builds the documentation.
func Build(
	ctx context.Context, conf Config, opts BuildOptions,
	uiPrintln func(format string, a ...any),
) error {
	b, err := NewBuilder(conf, opts, uiPrintln)
	if err != nil {
		return err
	}

	return b.Run(ctx)
}

// NewBuilder applies the search path, sets up the configured extensions in
// order, and validates the configuration.
func NewBuilder(
	conf Config, opts BuildOptions,
	uiPrintln func(format string, a ...any),
) (*Builder, error) {
	if opts.SearchPath == nil {
		opts.SearchPath = DefaultSearchPath
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = newHTTPClient()
	}

	if opts.Workers <= 0 {
		opts.Workers = 8
	}

	if opts.Format == "" {
		opts.Format = FormatHTML
	}

	if uiPrintln == nil {
		uiPrintln = func(string, ...any) {}
	}

	b := Builder{
		conf:       conf,
		opts:       opts,
		uiPrintln:  uiPrintln,
		parsers:    NewParserRegistry(),
		directives: make(map[string]DirectiveFunc),
		report: BuildReport{
			Project:  conf.Project,
			Version:  conf.Version,
			Release:  conf.Release,
			Format:   opts.Format,
			Counters: make(map[string]int),
		},
	}

	// Autodoc resolves packages through the search path, so it has to be
	// in place before any extension is set up.
	err := EnsureSourceRoots(opts.SearchPath, conf, opts.SourceDir)
	if err != nil {
		return nil, err
	}

	b.parsers.Register(rstParser{})

	for _, name := range conf.Extensions {
		if b.HasExtension(name) {
			continue
		}

		if _, ok := LookupExtension(name); !ok {
			continue
		}

		err := b.RequireExtension(name)
		if err != nil {
			return nil, err
		}
	}

	err = Validate(conf, b.parsers)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	switch opts.Format {
	case FormatHTML, FormatEPUB:
	default:
		return nil, fmt.Errorf("unknown output format %q", opts.Format)
	}

	b.theme, _ = LookupTheme(conf.EffectiveTheme())

	return &b, nil
}

func newHTTPClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()

	client.RetryMax = 3
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.Logger = slog.Default()

	return client
}

// RequireExtension sets up an extension unless it's already loaded.
func (b *Builder) RequireExtension(name string) error {
	if b.HasExtension(name) {
		return nil
	}

	ext, ok := LookupExtension(name)
	if !ok {
		return unresolvable("extensions", "no extension named %q", name)
	}

	b.loaded = append(b.loaded, ext)
	b.report.Extensions = append(b.report.Extensions, name)

	err := ext.Setup(b)
	if err != nil {
		return fmt.Errorf("set up extension %q: %w", name, err)
	}

	return nil
}

func (b *Builder) HasExtension(name string) bool {
	return b.extension(name) != nil
}

func (b *Builder) extension(name string) Extension {
	for _, e := range b.loaded {
		if e.Name() == name {
			return e
		}
	}

	return nil
}

// Extensions returns the names of the loaded extensions in load order.
func (b *Builder) Extensions() []string {
	return slices.Clone(b.report.Extensions)
}

func (b *Builder) Config() Config {
	return b.conf
}

func (b *Builder) Options() BuildOptions {
	return b.opts
}

func (b *Builder) Parsers() *ParserRegistry {
	return b.parsers
}

func (b *Builder) AddDirective(name string, fn DirectiveFunc) {
	b.directives[name] = fn
}

func (b *Builder) AddResolver(r ReferenceResolver) {
	b.resolvers = append(b.resolvers, r)
}

// AddScript links a script from the static directory on every HTML page.
func (b *Builder) AddScript(name string) {
	if !slices.Contains(b.scripts, name) {
		b.scripts = append(b.scripts, name)
	}
}

// Warn logs a build warning and counts it in the report.
func (b *Builder) Warn(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)

	slog.Debug("build warning", "message", msg)

	b.m.Lock()
	b.report.Warnings++
	b.m.Unlock()

	b.uiPrintln("WARNING: %s", msg)
}

// Count adds n to a named counter in the build report.
func (b *Builder) Count(name string, n int) {
	b.m.Lock()
	defer b.m.Unlock()

	b.report.Counters[name] += n
}

// Report returns a copy of the build report.
func (b *Builder) Report() BuildReport {
	b.m.Lock()
	defer b.m.Unlock()

	r := b.report
	r.Counters = make(map[string]int, len(b.report.Counters))

	for k, v := range b.report.Counters {
		r.Counters[k] = v
	}

	r.Durations = slices.Clone(b.report.Durations)

	return r
}

func (b *Builder) setDurations(d []DocumentDuration) {
	b.m.Lock()
	defer b.m.Unlock()

	b.report.Durations = d
}

func (b *Builder) parseEnv() *ParseEnv {
	return &ParseEnv{
		Parsers:    b.parsers,
		Directives: b.directives,
		Warn:       b.Warn,
		Projects:   slices.Sorted(maps.Keys(b.conf.IntersphinxMapping)),
	}
}

// Run builds the documentation.
func (b *Builder) Run(ctx context.Context) error {
	for _, ext := range b.loaded {
		initializer, ok := ext.(Initializer)
		if !ok {
			continue
		}

		err := initializer.Init(ctx, b)
		if err != nil {
			return fmt.Errorf("initialise extension %q: %w", ext.Name(), err)
		}
	}

	sources, err := b.discover()
	if err != nil {
		return fmt.Errorf("discover sources: %w", err)
	}

	if len(sources) == 0 {
		return errNoDocuments
	}

	b.uiPrintln("Found %d source files", len(sources))

	rels := make([]string, len(sources))
	for i := range sources {
		rels[i] = sources[i].Rel
	}

	repo, err := loadRepoInfo(b.opts.SourceDir, rels)
	if err != nil {
		b.Warn("could not read git history: %v", err)
	}

	b.repo = repo

	docs, err := b.parseAll(ctx, sources)
	if err != nil {
		return err
	}

	b.report.Documents = len(docs)

	local := newLocalResolver(docs)

	b.resolvers = append([]ReferenceResolver{local}, b.resolvers...)

	nav := b.buildNav(docs)

	err = os.MkdirAll(b.opts.OutDir, 0o770)
	if err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	switch b.opts.Format {
	case FormatEPUB:
		err = b.writeEPUB(docs, nav)
	default:
		err = b.writeHTML(ctx, docs, nav, local)
	}

	if err != nil {
		return err
	}

	for _, ext := range b.loaded {
		fin, ok := ext.(Finisher)
		if !ok {
			continue
		}

		err := fin.Finish(ctx, b, docs)
		if err != nil {
			return fmt.Errorf("finish extension %q: %w", ext.Name(), err)
		}
	}

	if b.opts.Format == FormatHTML {
		err = internal.MarshalFile(
			filepath.Join(b.opts.OutDir, "build-info.json"), b.Report())
		if err != nil {
			return fmt.Errorf("write build info: %w", err)
		}
	}

	b.uiPrintln("Build finished with %d warnings", b.Report().Warnings)

	return nil
}

// discover walks the source directory and returns the documents to build,
// sorted by document name.
func (b *Builder) discover() ([]SourceFile, error) {
	root := b.opts.SourceDir
	suffixes := b.conf.EffectiveSourceSuffix()

	skipDirs := make(map[string]bool)

	for _, d := range append(slices.Clone(b.conf.TemplatesPath), "_build", "_static") {
		abs, err := filepath.Abs(filepath.Join(root, d))
		if err == nil {
			skipDirs[abs] = true
		}
	}

	if absOut, err := filepath.Abs(b.opts.OutDir); err == nil {
		skipDirs[absOut] = true
	}

	var sources []SourceFile

	seen := make(map[string]string)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relative path for %q: %w", p, err)
		}

		rel = filepath.ToSlash(rel)

		if rel == "." {
			return nil
		}

		hidden := strings.HasPrefix(d.Name(), ".")

		if d.IsDir() {
			abs, _ := filepath.Abs(p)

			if hidden || skipDirs[abs] || b.excluded(rel) {
				return filepath.SkipDir
			}

			return nil
		}

		if hidden || b.excluded(rel) {
			return nil
		}

		suffix, _, ok := MatchSuffix(suffixes, rel)
		if !ok {
			return nil
		}

		docName := strings.TrimSuffix(rel, suffix)

		if first, dup := seen[docName]; dup {
			b.Warn("%s: document %q is already provided by %s, skipping",
				rel, docName, first)

			return nil
		}

		seen[docName] = rel

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("read %s: %w", rel, err)
		}

		sources = append(sources, SourceFile{
			DocName: docName,
			Rel:     rel,
			Path:    p,
			Data:    data,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(sources, func(a, b SourceFile) int {
		return strings.Compare(a.DocName, b.DocName)
	})

	return sources, nil
}

func (b *Builder) excluded(rel string) bool {
	for _, pattern := range b.conf.ExcludePatterns {
		if glob.Glob(pattern, rel) {
			return true
		}
	}

	return false
}

// parseAll parses the sources with a pool of workers and runs the document
// transformers. The returned documents keep the order of the sources.
func (b *Builder) parseAll(ctx context.Context, sources []SourceFile) ([]*Document, error) {
	docs := make([]*Document, len(sources))
	jobs := make(chan int)
	env := b.parseEnv()

	grp, gCtx := errgroup.WithContext(ctx)

	grp.Go(func() error {
		defer close(jobs)

		for i := range sources {
			select {
			case jobs <- i:
			case <-gCtx.Done():
				return gCtx.Err()
			}
		}

		return nil
	})

	for range b.opts.Workers {
		grp.Go(func() error {
			for i := range jobs {
				doc, err := b.parseDocument(gCtx, env, sources[i])
				if err != nil {
					return err
				}

				docs[i] = doc
			}

			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return nil, fmt.Errorf("parse documents: %w", err)
	}

	return docs, nil
}

func (b *Builder) parseDocument(
	ctx context.Context, env *ParseEnv, src SourceFile,
) (*Document, error) {
	parser, err := ParserFor(b.conf, b.parsers, src.Rel)
	if err != nil {
		return nil, err
	}

	start := time.Now()

	doc, err := parser.Parse(ctx, env, src)
	if err != nil {
		return nil, err
	}

	doc.ParseDuration = time.Since(start)

	if doc.Title == "" {
		doc.Title = src.DocName
	}

	if b.repo != nil {
		doc.LastUpdated = b.repo.LastChanged[src.Rel]
	}

	for _, ext := range b.loaded {
		t, ok := ext.(DocumentTransformer)
		if !ok {
			continue
		}

		err := t.TransformDocument(ctx, b, doc)
		if err != nil {
			return nil, fmt.Errorf("%s: extension %q: %w",
				src.Rel, ext.Name(), err)
		}
	}

	return doc, nil
}

// buildNav creates the navigation from the toctree of the root document,
// or lists all documents when there is none.
func (b *Builder) buildNav(docs []*Document) []MenuItem {
	byName := make(map[string]*Document, len(docs))
	for _, d := range docs {
		byName[d.Source.DocName] = d
	}

	root, ok := byName["index"]
	if !ok || len(root.TocTree) == 0 {
		items := make([]MenuItem, 0, len(docs))

		for _, d := range docs {
			item := MenuItem{Title: d.Title, DocName: d.Source.DocName}

			if d.Source.DocName == "index" {
				items = slices.Insert(items, 0, item)
			} else {
				items = append(items, item)
			}
		}

		return items
	}

	visited := map[string]bool{"index": true}

	var walk func(doc *Document, depth int) []MenuItem

	walk = func(doc *Document, depth int) []MenuItem {
		var items []MenuItem

		for _, name := range doc.TocTree {
			d, ok := byName[name]
			if !ok {
				b.Warn("%s: toctree contains reference to nonexisting document %q",
					doc.Source.Rel, name)

				continue
			}

			if visited[name] {
				continue
			}

			visited[name] = true

			item := MenuItem{Title: d.Title, DocName: name}
			if depth < 3 {
				item.Children = walk(d, depth+1)
			}

			items = append(items, item)
		}

		return items
	}

	items := append([]MenuItem{{Title: root.Title, DocName: "index"}},
		walk(root, 1)...)

	for _, d := range docs {
		if !visited[d.Source.DocName] {
			b.Warn("%s: document isn't included in any toctree", d.Source.Rel)
		}
	}

	return items
}

// spineOrder flattens the navigation, followed by documents that aren't in
// it.
func spineOrder(nav []MenuItem, docs []*Document) []*Document {
	byName := make(map[string]*Document, len(docs))
	for _, d := range docs {
		byName[d.Source.DocName] = d
	}

	var order []*Document

	seen := make(map[string]bool)

	var walk func(items []MenuItem)

	walk = func(items []MenuItem) {
		for _, item := range items {
			if d, ok := byName[item.DocName]; ok && !seen[item.DocName] {
				seen[item.DocName] = true
				order = append(order, d)
			}

			walk(item.Children)
		}
	}

	walk(nav)

	for _, d := range docs {
		if !seen[d.Source.DocName] {
			order = append(order, d)
		}
	}

	return order
}

func (b *Builder) resolve(ref Reference) (Target, bool) {
	for _, r := range b.resolvers {
		t, ok := r.Resolve(ref)
		if ok {
			return t, true
		}
	}

	return Target{}, false
}

func (b *Builder) href(fromDoc string, t Target, ext string) string {
	if t.URL != "" {
		return t.URL
	}

	var anchor string
	if t.Anchor != "" {
		anchor = "#" + t.Anchor
	}

	if t.DocName == fromDoc && anchor != "" {
		return anchor
	}

	return relativeURL(fromDoc, t.DocName+ext) + anchor
}

// resolveLinks replaces cross reference placeholders with links, and
// rewrites links to source files into links to their output files.
func (b *Builder) resolveLinks(doc *Document, ext string) (template.HTML, error) {
	suffixes := b.conf.EffectiveSourceSuffix()
	from := doc.Source.DocName

	return transformFragment(doc.Body, func(root *html.Node) error {
		for _, a := range elements(root, atom.A) {
			if !hasClass(a, "xref") {
				rewriteSourceLink(a, doc, suffixes, ext)

				continue
			}

			ref := Reference{}
			ref.Domain, _ = attr(a, "data-xref-domain")
			ref.Role, _ = attr(a, "data-xref-role")
			ref.Target, _ = attr(a, "data-xref-target")
			explicit, _ := attr(a, "data-xref-explicit")

			target, ok := b.resolve(ref)
			if !ok {
				b.Warn("%s: %s reference target not found: %s",
					doc.Source.Rel, ref.Key(), ref.Target)

				a.Data = "span"
				a.DataAtom = atom.Span
				a.Attr = []html.Attribute{{Key: "class", Val: "xref broken"}}

				continue
			}

			class := "reference internal"
			if target.URL != "" {
				class = "reference external"
			}

			a.Attr = []html.Attribute{
				{Key: "class", Val: class},
				{Key: "href", Val: b.href(from, target, ext)},
			}

			useTitle := explicit != "true" && target.Title != "" &&
				ref.Domain == "std" && (ref.Role == "doc" || ref.Role == "ref")
			if useTitle {
				for c := a.FirstChild; c != nil; c = a.FirstChild {
					a.RemoveChild(c)
				}

				a.AppendChild(textNode(target.Title))
			}
		}

		return nil
	})
}

func rewriteSourceLink(
	a *html.Node, doc *Document, suffixes map[string]string, ext string,
) {
	href, ok := attr(a, "href")
	if !ok || href == "" || strings.Contains(href, ":") ||
		strings.HasPrefix(href, "#") || strings.HasPrefix(href, "/") {
		return
	}

	target, anchor, _ := strings.Cut(href, "#")

	suffix, _, ok := MatchSuffix(suffixes, target)
	if !ok {
		return
	}

	docName := absDocName(doc.Source.Dir(), strings.TrimSuffix(target, suffix))

	link := relativeURL(doc.Source.DocName, docName+ext)
	if anchor != "" {
		link += "#" + anchor
	}

	setAttr(a, "href", link)
}

var errNoDocuments = errors.New("no source documents found")
