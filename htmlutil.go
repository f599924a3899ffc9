package cryptodocs

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var bodyContext = &html.Node{
	Type:     html.ElementNode,
	Data:     "body",
	DataAtom: atom.Body,
}

func parseFragment(fragment string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), bodyContext)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	return nodes, nil
}

// transformFragment parses an HTML fragment, lets fn modify it under a
// shared root, and renders it again.
func transformFragment(
	fragment template.HTML, fn func(root *html.Node) error,
) (template.HTML, error) {
	nodes, err := parseFragment(string(fragment))
	if err != nil {
		return "", err
	}

	root := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	}

	for _, n := range nodes {
		root.AppendChild(n)
	}

	err = fn(root)
	if err != nil {
		return "", err
	}

	var out bytes.Buffer

	for c := root.FirstChild; c != nil; c = c.NextSibling {
		err := html.Render(&out, c)
		if err != nil {
			return "", fmt.Errorf("render modified HTML: %w", err)
		}
	}

	return template.HTML(out.String()), nil
}

// elements collects the element nodes below root that match the atom.
// Collecting first allows callers to modify the tree while iterating.
func elements(root *html.Node, a atom.Atom) []*html.Node {
	var found []*html.Node

	for n := range root.Descendants() {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = append(found, n)
		}
	}

	return found
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}

	return "", false
}

func setAttr(n *html.Node, key string, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val

			return
		}
	}

	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	v, _ := attr(n, "class")

	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}

	return false
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}

	var b strings.Builder

	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}

	return b.String()
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
		Attr:     attrs,
	}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
