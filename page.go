package cryptodocs

import (
	"html/template"
	"strings"
)

type Page struct {
	Title     string
	Project   string
	Release   string
	Copyright string
	// Root is the relative path from the page to the output root.
	Root       string
	Menu       []MenuItem
	Contents   template.HTML
	Logo       string
	IconLinks  []IconLink
	Repository string
	Source     string
	// LastUpdated is empty when no history is known.
	LastUpdated string
	Stylesheet  string
	Scripts     []string
}

type MenuItem struct {
	Title    string
	DocName  string
	HRef     string
	Active   bool
	Children []MenuItem
}

func (m MenuItem) HasActive() bool {
	for i := range m.Children {
		if m.Children[i].Active || m.Children[i].HasActive() {
			return true
		}
	}

	return false
}

// menuFor copies the navigation for a page, marking the active item and
// making links relative to the page.
func menuFor(items []MenuItem, current string, ext string) []MenuItem {
	if items == nil {
		return nil
	}

	menu := make([]MenuItem, len(items))

	for i, item := range items {
		item.Active = item.DocName == current
		item.HRef = relativeURL(current, item.DocName+ext)
		item.Children = menuFor(item.Children, current, ext)

		menu[i] = item
	}

	return menu
}

// rootPrefix returns the relative path from a document to the output root.
func rootPrefix(docName string) string {
	return strings.Repeat("../", strings.Count(docName, "/"))
}

// relativeURL returns a link from the document to a path relative to the
// output root.
func relativeURL(fromDoc string, to string) string {
	return rootPrefix(fromDoc) + to
}
