package cryptodocs

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
)

const inventoryHeader = "# Sphinx inventory version 2"

// Inventory is a machine readable index of the documented objects of a
// project, used for linking between projects.
type Inventory struct {
	Project string
	Version string
	objects objectTable
}

// Len returns the number of objects in the inventory.
func (inv *Inventory) Len() int {
	var n int

	for _, names := range inv.objects {
		n += len(names)
	}

	return n
}

// Lookup finds an object, applying role aliases.
func (inv *Inventory) Lookup(ref Reference) (Target, bool) {
	return inv.objects.lookup(ref)
}

var inventoryLineRE = regexp.MustCompile(`^(.+?)\s+(\S+)\s+(-?\d+)\s+?(\S*)\s+(.*)$`)

// ParseInventory reads an inventory in version 2 format. Object URIs are
// made absolute using baseURL.
func ParseInventory(r io.Reader, baseURL string) (*Inventory, error) {
	br := bufio.NewReader(r)

	header, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read inventory header: %w", err)
	}

	if strings.TrimSpace(header) != inventoryHeader {
		return nil, fmt.Errorf("unsupported inventory format %q",
			strings.TrimSpace(header))
	}

	inv := Inventory{
		objects: make(objectTable),
	}

	for range 3 {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("read inventory header: %w", err)
		}

		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "# Project: "):
			inv.Project = strings.TrimPrefix(line, "# Project: ")
		case strings.HasPrefix(line, "# Version: "):
			inv.Version = strings.TrimPrefix(line, "# Version: ")
		}
	}

	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("open compressed inventory: %w", err)
	}

	defer zr.Close()

	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	scanner := bufio.NewScanner(zr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		m := inventoryLineRE.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		name, key, uri, dispName := m[1], m[2], m[4], m[5]

		domain, role, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}

		if anchor, ok := strings.CutSuffix(uri, "$"); ok {
			uri = anchor + name
		}

		if dispName == "-" {
			dispName = name
		}

		inv.objects.add(Object{
			Name:   name,
			Domain: domain,
			Role:   role,
			Target: Target{
				URL:   baseURL + uri,
				Title: dispName,
			},
		})
	}

	err = scanner.Err()
	if err != nil {
		return nil, fmt.Errorf("read inventory entries: %w", err)
	}

	return &inv, nil
}

// WriteInventory writes the objects in version 2 format. uriFor maps
// targets to URIs relative to the documentation root.
func WriteInventory(
	w io.Writer, project string, version string,
	objects []Object, uriFor func(t Target) string,
) error {
	_, err := fmt.Fprintf(w,
		"%s\n# Project: %s\n# Version: %s\n# The remainder of this file is compressed using zlib.\n",
		inventoryHeader, project, version)
	if err != nil {
		return fmt.Errorf("write inventory header: %w", err)
	}

	slices.SortFunc(objects, func(a, b Object) int {
		ka := a.Domain + ":" + a.Role + " " + a.Name
		kb := b.Domain + ":" + b.Role + " " + b.Name

		return strings.Compare(ka, kb)
	})

	zw := zlib.NewWriter(w)

	for _, o := range objects {
		priority := 1
		if o.Domain == "std" && o.Role == "doc" {
			priority = -1
		}

		dispName := o.Target.Title
		if dispName == "" || dispName == o.Name {
			dispName = "-"
		}

		_, err := fmt.Fprintf(zw, "%s %s:%s %s %s %s\n",
			o.Name, o.Domain, o.Role, strconv.Itoa(priority),
			uriFor(o.Target), dispName)
		if err != nil {
			return fmt.Errorf("write inventory entry: %w", err)
		}
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("flush compressed inventory: %w", err)
	}

	return nil
}

// InventoryLocation returns where the inventory of a target is found.
func InventoryLocation(target IntersphinxTarget) string {
	if target.Inventory != nil {
		return *target.Inventory
	}

	base := target.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	return base + "objects.inv"
}

// FetchInventory loads the inventory of a target over HTTP, or from disk
// when the location isn't a URL. Relative paths are resolved against
// sourceDir.
func FetchInventory(
	ctx context.Context, client *retryablehttp.Client,
	target IntersphinxTarget, sourceDir string,
) (*Inventory, error) {
	loc := InventoryLocation(target)

	if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
		if !filepath.IsAbs(loc) {
			loc = filepath.Join(sourceDir, loc)
		}

		data, err := os.ReadFile(loc)
		if err != nil {
			return nil, fmt.Errorf("read inventory: %w", err)
		}

		return ParseInventory(bytes.NewReader(data), target.BaseURL)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("create inventory request: %w", err)
	}

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}

	defer func() {
		_ = res.Body.Close()
	}()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch inventory %s: server responded with %s",
			loc, res.Status)
	}

	inv, err := ParseInventory(res.Body, target.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("inventory %s: %w", loc, err)
	}

	return inv, nil
}

// InventoryResolver resolves references against the inventories of other
// projects.
type InventoryResolver struct {
	Inventories     map[string]*Inventory
	DisabledDomains []string
}

var errNoInventory = errors.New("no such inventory")

// Resolve implements ReferenceResolver. A "project:" prefix on the target
// restricts the lookup to that project's inventory.
func (r *InventoryResolver) Resolve(ref Reference) (Target, bool) {
	if project, name, ok := strings.Cut(ref.Target, ":"); ok {
		inv, err := r.inventory(project)
		if err == nil {
			scoped := ref
			scoped.Target = name

			return inv.Lookup(scoped)
		}
	}

	names := make([]string, 0, len(r.Inventories))
	for n := range r.Inventories {
		names = append(names, n)
	}

	slices.Sort(names)

	for _, n := range names {
		t, ok := r.lookup(r.Inventories[n], ref)
		if ok {
			return t, true
		}
	}

	return Target{}, false
}

func (r *InventoryResolver) inventory(project string) (*Inventory, error) {
	inv, ok := r.Inventories[project]
	if !ok {
		return nil, errNoInventory
	}

	return inv, nil
}

// lookup searches an inventory for a reference without a project prefix.
// Disabled domains only apply to these.
func (r *InventoryResolver) lookup(inv *Inventory, ref Reference) (Target, bool) {
	if slices.Contains(r.DisabledDomains, ref.Domain) {
		return Target{}, false
	}

	return inv.Lookup(ref)
}
