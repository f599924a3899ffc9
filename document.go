package cryptodocs

import (
	"context"
	"fmt"
	"html/template"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// Parser identifiers.
const (
	ParserRestructuredText = "restructuredtext"
	ParserMarkdown         = "markdown"
)

// SourceFile is a discovered documentation source.
type SourceFile struct {
	// DocName is the slash separated path relative to the source
	// directory, without suffix.
	DocName string
	// Rel is the slash separated path relative to the source directory.
	Rel string
	// Path is the path on disk.
	Path string
	Data []byte
}

// Dir returns the slash separated directory of the document.
func (s SourceFile) Dir() string {
	return path.Dir(s.Rel)
}

// Document is a parsed source file.
type Document struct {
	Source  SourceFile
	Title   string
	Body    template.HTML
	TocTree []string
	// Labels maps explicit target labels to section anchors.
	Labels   map[string]Target
	Objects  []Object
	Counters map[string]int

	ParseDuration time.Duration
	LastUpdated   time.Time
}

func newDocument(src SourceFile) *Document {
	return &Document{
		Source:   src,
		Labels:   make(map[string]Target),
		Counters: make(map[string]int),
	}
}

// AddObject registers a cross reference target defined by the document.
func (d *Document) AddObject(domain, role, name, anchor, title string) {
	d.Objects = append(d.Objects, Object{
		Name:   name,
		Domain: domain,
		Role:   role,
		Target: Target{
			DocName: d.Source.DocName,
			Anchor:  anchor,
			Title:   title,
		},
	})
}

// Parser turns a source file into a document.
type Parser interface {
	Name() string
	Parse(ctx context.Context, env *ParseEnv, src SourceFile) (*Document, error)
}

// ParseEnv gives parsers access to directive handlers and other parsers.
type ParseEnv struct {
	Parsers    *ParserRegistry
	Directives map[string]DirectiveFunc
	Warn       func(format string, a ...any)
	// Projects are the intersphinx project names a reference target
	// may be prefixed with.
	Projects []string
}

// ParserRegistry holds the parsers available to a build. It's safe for
// concurrent use.
type ParserRegistry struct {
	m       sync.RWMutex
	parsers map[string]Parser
}

func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		parsers: make(map[string]Parser),
	}
}

// Register adds a parser, replacing any earlier parser with the same name.
func (r *ParserRegistry) Register(p Parser) {
	r.m.Lock()
	defer r.m.Unlock()

	r.parsers[p.Name()] = p
}

func (r *ParserRegistry) Get(name string) (Parser, bool) {
	r.m.RLock()
	defer r.m.RUnlock()

	p, ok := r.parsers[name]

	return p, ok
}

func (r *ParserRegistry) Names() []string {
	r.m.RLock()
	defer r.m.RUnlock()

	names := make([]string, 0, len(r.parsers))

	for n := range r.parsers {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

// MatchSuffix returns the source suffix that matches the filename and the
// identifier of its parser. The longest matching suffix wins.
func MatchSuffix(sourceSuffix map[string]string, filename string) (string, string, bool) {
	suffixes := make([]string, 0, len(sourceSuffix))

	for s := range sourceSuffix {
		suffixes = append(suffixes, s)
	}

	sort.Slice(suffixes, func(i, j int) bool {
		if len(suffixes[i]) != len(suffixes[j]) {
			return len(suffixes[i]) > len(suffixes[j])
		}

		return suffixes[i] < suffixes[j]
	})

	for _, s := range suffixes {
		if strings.HasSuffix(filename, s) && len(filename) > len(s) {
			return s, sourceSuffix[s], true
		}
	}

	return "", "", false
}

// ParserFor dispatches a filename to the parser configured for its suffix.
func ParserFor(conf Config, reg *ParserRegistry, filename string) (Parser, error) {
	_, name, ok := MatchSuffix(conf.EffectiveSourceSuffix(), filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoParser, filename)
	}

	p, ok := reg.Get(name)
	if !ok {
		return nil, unresolvable("source_suffix",
			"no parser %q is registered for %s", name, filename)
	}

	return p, nil
}
