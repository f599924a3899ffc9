package cryptodocs

import (
	"context"
	"slices"
	"sync"
)

// Extension identifiers.
const (
	ExtDuration    = "sphinx.ext.duration"
	ExtDoctest     = "sphinx.ext.doctest"
	ExtAutodoc     = "sphinx.ext.autodoc"
	ExtAutosummary = "sphinx.ext.autosummary"
	ExtIntersphinx = "sphinx.ext.intersphinx"
	ExtDesign      = "sphinx_design"
	ExtCopyButton  = "sphinx_copybutton"
	ExtM2R2        = "m2r2"
	ExtMystParser  = "myst_parser"
)

// Extension adds capabilities to a build. Setup registers parsers,
// directives and resolvers and must not do any IO.
type Extension interface {
	Name() string
	Setup(b *Builder) error
}

// Initializer is implemented by extensions that need to prepare before
// documents are parsed.
type Initializer interface {
	Init(ctx context.Context, b *Builder) error
}

// DocumentTransformer is implemented by extensions that modify documents
// after they have been parsed.
type DocumentTransformer interface {
	TransformDocument(ctx context.Context, b *Builder, doc *Document) error
}

// Finisher is implemented by extensions that act when all documents have
// been written.
type Finisher interface {
	Finish(ctx context.Context, b *Builder, docs []*Document) error
}

var (
	extMutex   sync.RWMutex
	extensions = map[string]func() Extension{}
)

// RegisterExtension makes an extension available under its name.
func RegisterExtension(name string, fn func() Extension) {
	extMutex.Lock()
	defer extMutex.Unlock()

	extensions[name] = fn
}

// LookupExtension creates a new instance of a registered extension.
func LookupExtension(name string) (Extension, bool) {
	extMutex.RLock()
	defer extMutex.RUnlock()

	fn, ok := extensions[name]
	if !ok {
		return nil, false
	}

	return fn(), true
}

// ExtensionNames lists the registered extensions.
func ExtensionNames() []string {
	extMutex.RLock()
	defer extMutex.RUnlock()

	names := make([]string, 0, len(extensions))
	for n := range extensions {
		names = append(names, n)
	}

	slices.Sort(names)

	return names
}

func init() {
	RegisterExtension(ExtDuration, func() Extension { return &durationExt{} })
	RegisterExtension(ExtDoctest, func() Extension { return &doctestExt{} })
	RegisterExtension(ExtAutodoc, func() Extension { return &autodocExt{} })
	RegisterExtension(ExtAutosummary, func() Extension { return &autosummaryExt{} })
	RegisterExtension(ExtIntersphinx, func() Extension { return &intersphinxExt{} })
	RegisterExtension(ExtDesign, func() Extension { return &designExt{} })
	RegisterExtension(ExtCopyButton, func() Extension { return &copyButtonExt{} })
	RegisterExtension(ExtM2R2, func() Extension { return &m2r2Ext{} })
	RegisterExtension(ExtMystParser, func() Extension { return &mystExt{} })
}
