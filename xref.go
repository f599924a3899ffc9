package cryptodocs

import (
	"fmt"
	"html"
	"strings"
)

// Reference is a cross reference found in a document.
type Reference struct {
	Domain string
	Role   string
	Target string
	// Title is the link text. Empty when the text should come from the
	// resolved target.
	Title string
}

// Key returns the domain:role key used by inventories.
func (r Reference) Key() string {
	return r.Domain + ":" + r.Role
}

// Target is where a reference resolves to. External targets have a URL,
// local targets a document name and an optional anchor.
type Target struct {
	URL     string
	DocName string
	Anchor  string
	Title   string
}

// Object is a named cross reference target.
type Object struct {
	Name   string
	Domain string
	Role   string
	Target Target
}

// ReferenceResolver resolves cross references.
type ReferenceResolver interface {
	Resolve(ref Reference) (Target, bool)
}

var roleAliases = map[string]map[string][]string{
	"py": {
		"func":  {"function"},
		"meth":  {"method"},
		"mod":   {"module"},
		"attr":  {"attribute", "property"},
		"exc":   {"exception"},
		"const": {"data"},
		"obj": {
			"function", "class", "method", "module", "attribute",
			"exception", "data", "property",
		},
	},
	"std": {
		"ref": {"label"},
	},
	"go": {
		"pkg": {"package"},
		"obj": {"package", "func", "type", "method"},
	},
}

// roleKeys returns the inventory keys a role may match.
func roleKeys(domain, role string) []string {
	roles, ok := roleAliases[domain][role]
	if !ok {
		roles = []string{role}
	}

	keys := make([]string, len(roles))

	for i, r := range roles {
		keys[i] = domain + ":" + r
	}

	return keys
}

// objectTable indexes objects by domain:role and name.
type objectTable map[string]map[string]Target

func (t objectTable) add(o Object) {
	key := o.Domain + ":" + o.Role

	names, ok := t[key]
	if !ok {
		names = make(map[string]Target)
		t[key] = names
	}

	if _, exists := names[o.Name]; !exists {
		names[o.Name] = o.Target
	}
}

func (t objectTable) lookup(ref Reference) (Target, bool) {
	for _, key := range roleKeys(ref.Domain, ref.Role) {
		target, ok := t[key][ref.Target]
		if ok {
			return target, true
		}
	}

	return Target{}, false
}

// parseRole splits a role like "py:class" into domain and role, applying the
// default domain.
func parseRole(role string) (string, string) {
	domain, name, ok := strings.Cut(role, ":")
	if ok {
		return domain, name
	}

	switch role {
	case "ref", "doc", "term", "envvar", "option", "token", "label":
		return "std", role
	}

	return "py", role
}

// parseRefTarget handles the "Title <target>" and "~a.b.C" forms.
func parseRefTarget(text string) (string, string) {
	text = strings.TrimSpace(text)

	if strings.HasSuffix(text, ">") {
		idx := strings.LastIndex(text, "<")
		if idx > 0 {
			return strings.TrimSpace(text[idx+1 : len(text)-1]),
				strings.TrimSpace(text[:idx])
		}
	}

	if short, ok := strings.CutPrefix(text, "~"); ok {
		title := short
		if idx := strings.LastIndex(short, "."); idx >= 0 {
			title = short[idx+1:]
		}

		return short, title
	}

	return text, ""
}

// xrefHTML renders an unresolved reference placeholder.
func xrefHTML(ref Reference) string {
	text := ref.Title
	if text == "" {
		text = ref.Target
	}

	return fmt.Sprintf(
		`<a class="xref" data-xref-domain="%s" data-xref-role="%s" data-xref-target="%s" data-xref-explicit="%t">%s</a>`,
		html.EscapeString(ref.Domain), html.EscapeString(ref.Role),
		html.EscapeString(ref.Target), ref.Title != "",
		html.EscapeString(text))
}

// localResolver resolves references to documents, labels and objects
// defined in the build.
type localResolver struct {
	docs    map[string]*Document
	objects objectTable
}

func newLocalResolver(docs []*Document) *localResolver {
	r := localResolver{
		docs:    make(map[string]*Document),
		objects: make(objectTable),
	}

	for _, d := range docs {
		r.docs[d.Source.DocName] = d

		for label, target := range d.Labels {
			r.objects.add(Object{
				Name: label, Domain: "std", Role: "label",
				Target: target,
			})
		}

		for _, o := range d.Objects {
			r.objects.add(o)
		}
	}

	return &r
}

// Resolve implements ReferenceResolver. Document references must carry
// absolute document names.
func (r *localResolver) Resolve(ref Reference) (Target, bool) {
	if ref.Domain == "std" && ref.Role == "doc" {
		d, ok := r.docs[strings.TrimPrefix(ref.Target, "/")]
		if !ok {
			return Target{}, false
		}

		return Target{DocName: d.Source.DocName, Title: d.Title}, true
	}

	return r.objects.lookup(ref)
}

// allObjects lists every object for the inventory, documents included.
func (r *localResolver) allObjects() []Object {
	var objects []Object

	for name, d := range r.docs {
		objects = append(objects, Object{
			Name: name, Domain: "std", Role: "doc",
			Target: Target{DocName: name, Title: d.Title},
		})
	}

	for key, names := range r.objects {
		domain, role, _ := strings.Cut(key, ":")

		for name, t := range names {
			objects = append(objects, Object{
				Name: name, Domain: domain, Role: role, Target: t,
			})
		}
	}

	return objects
}
