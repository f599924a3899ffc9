package cryptodocs

import (
	"context"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// intersphinxExt links to the documentation of other projects.
type intersphinxExt struct {
	resolver InventoryResolver
}

func (*intersphinxExt) Name() string { return ExtIntersphinx }

func (e *intersphinxExt) Setup(b *Builder) error {
	e.resolver = InventoryResolver{
		Inventories:     make(map[string]*Inventory),
		DisabledDomains: b.Config().IntersphinxDisabledDomains,
	}

	b.AddResolver(&e.resolver)

	return nil
}

// Init loads the inventories of all mapped projects. Unreachable
// inventories are reported as warnings.
func (e *intersphinxExt) Init(ctx context.Context, b *Builder) error {
	mapping := b.Config().IntersphinxMapping
	opts := b.Options()

	var m sync.Mutex

	grp, gCtx := errgroup.WithContext(ctx)

	for _, project := range slices.Sorted(maps.Keys(mapping)) {
		target := mapping[project]

		grp.Go(func() error {
			inv, err := FetchInventory(gCtx, opts.HTTPClient, target, opts.SourceDir)
			if err != nil {
				b.Warn("failed to reach inventory of %s at %s: %v",
					project, InventoryLocation(target), err)

				return nil
			}

			m.Lock()
			e.resolver.Inventories[project] = inv
			m.Unlock()

			b.uiPrintln("Loaded inventory of %s with %d objects", project, inv.Len())

			return nil
		})
	}

	return grp.Wait()
}
