package cryptodocs

import (
	"context"
	"fmt"
	"html"
	"html/template"
	"path"
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// Directive is an explicit markup block like ".. note::".
type Directive struct {
	Name     string
	Argument string
	Options  map[string]string
	Content  []string
	Source   SourceFile
	Doc      *Document

	nested func(lines []string) (string, error)
}

// RenderContent parses the directive content as nested markup.
func (d Directive) RenderContent() (string, error) {
	return d.nested(d.Content)
}

// RenderLines parses arbitrary lines as nested markup in the context of the
// directive's document.
func (d Directive) RenderLines(lines []string) (string, error) {
	return d.nested(lines)
}

// DirectiveFunc renders a directive to HTML.
type DirectiveFunc func(ctx context.Context, env *ParseEnv, d Directive) (string, error)

type rstParser struct{}

func (rstParser) Name() string {
	return ParserRestructuredText
}

func (rstParser) Parse(
	ctx context.Context, env *ParseEnv, src SourceFile,
) (*Document, error) {
	doc := newDocument(src)

	st := rstState{
		ctx:    ctx,
		env:    env,
		doc:    doc,
		levels: make(map[string]int),
		ids:    make(map[string]int),
	}

	body, err := st.blocks(splitLines(string(src.Data)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src.Rel, err)
	}

	doc.Body = template.HTML(body)

	return doc, nil
}

type rstState struct {
	ctx           context.Context
	env           *ParseEnv
	doc           *Document
	levels        map[string]int
	ids           map[string]int
	pendingLabels []string
}

var (
	directiveRE  = regexp.MustCompile(`^\.\.\s+([\w:.+-]+)::\s*(.*)$`)
	labelRE      = regexp.MustCompile(`^\.\.\s+_([^:]+):\s*$`)
	optionRE     = regexp.MustCompile(`^:([\w-]+):\s*(.*)$`)
	enumeratedRE = regexp.MustCompile(`^(\d+|#)[.)]\s+`)
	inlineRE     = regexp.MustCompile(
		"``([^`]+?)``" +
			"|:([A-Za-z0-9_.+:-]+):`([^`]+)`" +
			"|`([^`<]*?)\\s*<([^>]+)>`__?" +
			"|\\*\\*([^*]+?)\\*\\*" +
			"|\\*([^*\\s][^*]*?)\\*" +
			"|`([^`]+)`" +
			`|(https?://[^\s<>"]*[^\s<>".,;:)])`)
)

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\t", "        ")

	return strings.Split(s, "\n")
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

func isAdornment(line string) bool {
	line = strings.TrimRight(line, " ")
	if len(line) < 2 {
		return false
	}

	c := line[0]
	if !strings.ContainsRune("=-~^\"'`#*+_:.", rune(c)) {
		return false
	}

	return strings.Count(line, string(c)) == len(line)
}

func isBullet(line string) bool {
	return len(line) >= 2 && strings.ContainsRune("-*+", rune(line[0])) &&
		line[1] == ' '
}

// indentedBlock collects the lines from start that are blank or indented,
// and returns them together with the index of the first line after them.
func indentedBlock(lines []string, start int) ([]string, int) {
	i := start
	for i < len(lines) && (isBlank(lines[i]) || indentOf(lines[i]) > 0) {
		i++
	}

	return trimBlankEdges(lines[start:i]), i
}

func trimBlankEdges(lines []string) []string {
	for len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}

	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}

	return lines
}

func dedent(lines []string) []string {
	minIndent := -1

	for _, l := range lines {
		if isBlank(l) {
			continue
		}

		if n := indentOf(l); minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}

	out := make([]string, len(lines))

	for i, l := range lines {
		if len(l) >= minIndent && minIndent > 0 {
			out[i] = l[minIndent:]
		} else {
			out[i] = strings.TrimLeft(l, " ")
		}
	}

	return out
}

func (st *rstState) blocks(lines []string) (string, error) {
	var out strings.Builder

	i := 0
	for i < len(lines) {
		line := lines[i]

		switch {
		case isBlank(line):
			i++
		case i+2 < len(lines) && isAdornment(line) && !isBlank(lines[i+1]) &&
			isAdornment(lines[i+2]) && lines[i+2][0] == line[0]:
			st.section(strings.TrimSpace(lines[i+1]), "o"+line[:1], &out)
			i += 3
		case i+1 < len(lines) && indentOf(line) == 0 && !isAdornment(line) &&
			isAdornment(lines[i+1]) &&
			len(strings.TrimRight(lines[i+1], " ")) >= len(strings.TrimSpace(line)):
			st.section(strings.TrimSpace(line), "u"+lines[i+1][:1], &out)
			i += 2
		case isAdornment(line) && len(strings.TrimSpace(line)) >= 4:
			out.WriteString("<hr/>\n")
			i++
		case line == ".." || strings.HasPrefix(line, ".. "):
			next, err := st.explicit(lines, i, &out)
			if err != nil {
				return "", err
			}

			i = next
		case indentOf(line) > 0:
			block, next := indentedBlock(lines, i)

			inner, err := st.blocks(dedent(block))
			if err != nil {
				return "", err
			}

			out.WriteString("<blockquote>\n" + inner + "</blockquote>\n")
			i = next
		case isBullet(line) || line == "-":
			next, err := st.list(lines, i, &out, false)
			if err != nil {
				return "", err
			}

			i = next
		case enumeratedRE.MatchString(line):
			next, err := st.list(lines, i, &out, true)
			if err != nil {
				return "", err
			}

			i = next
		default:
			i = st.paragraph(lines, i, &out)
		}
	}

	return out.String(), nil
}

func (st *rstState) paragraph(lines []string, i int, out *strings.Builder) int {
	j := i
	for j < len(lines) && !isBlank(lines[j]) {
		j++
	}

	text := strings.Join(trimEach(lines[i:j]), " ")

	literal := strings.HasSuffix(text, "::")
	if literal {
		switch {
		case text == "::":
			text = ""
		case strings.HasSuffix(text, " ::"):
			text = strings.TrimSuffix(text, " ::")
		default:
			text = strings.TrimSuffix(text, ":")
		}
	}

	if text != "" {
		out.WriteString("<p>" + st.inline(text) + "</p>\n")
	}

	if !literal {
		return j
	}

	k := j
	for k < len(lines) && isBlank(lines[k]) {
		k++
	}

	if k >= len(lines) || indentOf(lines[k]) == 0 {
		return j
	}

	block, next := indentedBlock(lines, k)

	out.WriteString(`<pre class="literal-block">` +
		html.EscapeString(strings.Join(dedent(block), "\n")) + "</pre>\n")

	return next
}

func trimEach(lines []string) []string {
	out := make([]string, len(lines))

	for i, l := range lines {
		out[i] = strings.TrimSpace(l)
	}

	return out
}

func (st *rstState) list(
	lines []string, i int, out *strings.Builder, ordered bool,
) (int, error) {
	tag := "ul"
	if ordered {
		tag = "ol"
	}

	marker := func(line string) int {
		if ordered {
			m := enumeratedRE.FindString(line)

			return len(m)
		}

		if line == "-" || isBullet(line) {
			return 2
		}

		return 0
	}

	out.WriteString("<" + tag + ">\n")

	for i < len(lines) {
		width := marker(lines[i])
		if width == 0 {
			break
		}

		item := []string{lines[i][min(width, len(lines[i])):]}

		j := i + 1
		for j < len(lines) && (isBlank(lines[j]) || indentOf(lines[j]) >= width) {
			l := lines[j]
			if len(l) >= width {
				l = l[width:]
			} else {
				l = ""
			}

			item = append(item, l)
			j++
		}

		inner, err := st.blocks(trimBlankEdges(item))
		if err != nil {
			return 0, err
		}

		inner = strings.TrimSuffix(inner, "\n")

		if strings.Count(inner, "<p>") == 1 && strings.HasPrefix(inner, "<p>") &&
			strings.HasSuffix(inner, "</p>") {
			inner = strings.TrimSuffix(strings.TrimPrefix(inner, "<p>"), "</p>")
		}

		out.WriteString("<li>" + inner + "</li>\n")

		i = j

		// Blank lines between items are part of the previous item, so i
		// now points at the next marker or the end of the list.
	}

	out.WriteString("</" + tag + ">\n")

	return i, nil
}

func (st *rstState) section(title string, style string, out *strings.Builder) {
	level, ok := st.levels[style]
	if !ok {
		level = len(st.levels) + 1
		st.levels[style] = level
	}

	plain := plainText(title)
	anchor := st.uniqueID(slugify(plain))

	if st.doc.Title == "" {
		st.doc.Title = plain
	}

	for _, label := range st.pendingLabels {
		st.doc.Labels[label] = Target{
			DocName: st.doc.Source.DocName,
			Anchor:  anchor,
			Title:   plain,
		}
	}

	st.pendingLabels = nil

	h := min(level, 6)

	fmt.Fprintf(out,
		"<h%d id=\"%s\">%s<a class=\"headerlink\" href=\"#%s\" title=\"Link to this heading\">¶</a></h%d>\n",
		h, anchor, st.inline(title), anchor, h)
}

func (st *rstState) uniqueID(id string) string {
	n := st.ids[id]
	st.ids[id] = n + 1

	if n == 0 {
		return id
	}

	return fmt.Sprintf("%s-%d", id, n)
}

func slugify(s string) string {
	var b strings.Builder

	dash := false

	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)

			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')

			dash = true
		}
	}

	id := strings.TrimSuffix(b.String(), "-")
	if id == "" {
		return "section"
	}

	return id
}

var markupRE = regexp.MustCompile(":[A-Za-z0-9_.+:-]+:`|[`*]|_\\b")

func plainText(s string) string {
	return strings.TrimSpace(markupRE.ReplaceAllString(s, ""))
}

// explicit handles explicit markup: labels, directives and comments.
func (st *rstState) explicit(
	lines []string, i int, out *strings.Builder,
) (int, error) {
	line := lines[i]

	if m := labelRE.FindStringSubmatch(line); m != nil {
		st.pendingLabels = append(st.pendingLabels,
			strings.ToLower(strings.TrimSpace(m[1])))

		return i + 1, nil
	}

	block, next := indentedBlock(lines, i+1)

	m := directiveRE.FindStringSubmatch(line)
	if m == nil {
		// A comment.
		return next, nil
	}

	d := Directive{
		Name:     m[1],
		Argument: strings.TrimSpace(m[2]),
		Options:  make(map[string]string),
		Source:   st.doc.Source,
		Doc:      st.doc,
		nested:   st.blocks,
	}

	content := dedent(block)

	for len(content) > 0 {
		om := optionRE.FindStringSubmatch(content[0])
		if om == nil {
			break
		}

		d.Options[om[1]] = strings.TrimSpace(om[2])
		content = content[1:]
	}

	d.Content = trimBlankEdges(content)

	rendered, err := st.directive(d)
	if err != nil {
		return 0, fmt.Errorf("directive %q on line %d: %w", d.Name, i+1, err)
	}

	out.WriteString(rendered)

	return next, nil
}

var admonitions = map[string]string{
	"note":      "Note",
	"warning":   "Warning",
	"tip":       "Tip",
	"important": "Important",
	"hint":      "Hint",
	"caution":   "Caution",
	"danger":    "Danger",
	"attention": "Attention",
	"error":     "Error",
	"seealso":   "See also",
}

func (st *rstState) directive(d Directive) (string, error) {
	if title, ok := admonitions[d.Name]; ok || d.Name == "admonition" {
		if d.Name == "admonition" {
			title = d.Argument
		} else if d.Argument != "" {
			d.Content = append([]string{d.Argument, ""}, d.Content...)
		}

		return admonitionHTML(d.Name, st.inline(title), d)
	}

	switch d.Name {
	case "code-block", "code", "sourcecode":
		return codeBlockHTML(d.Argument, "highlight", d.Content), nil
	case "toctree":
		return st.toctree(d), nil
	case "image":
		return fmt.Sprintf(`<img src="%s" alt="%s"/>`+"\n",
			html.EscapeString(d.Argument),
			html.EscapeString(d.Options["alt"])), nil
	case "raw":
		if d.Argument != "html" {
			return "", nil
		}

		return strings.Join(d.Content, "\n") + "\n", nil
	case "contents":
		return "", nil
	}

	fn, ok := st.env.Directives[d.Name]
	if !ok {
		st.env.Warn("%s: unknown directive type %q", d.Source.Rel, d.Name)

		return fmt.Sprintf("<!-- unknown directive %s -->\n",
			html.EscapeString(d.Name)), nil
	}

	return fn(st.ctx, st.env, d)
}

func admonitionHTML(class string, title string, d Directive) (string, error) {
	inner, err := d.RenderContent()
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"<div class=\"admonition %s\">\n<p class=\"admonition-title\">%s</p>\n%s</div>\n",
		html.EscapeString(class), title, inner), nil
}

func codeBlockHTML(language string, class string, content []string) string {
	var langAttr string
	if language != "" {
		langAttr = fmt.Sprintf(` class="language-%s"`, html.EscapeString(language))
	}

	return fmt.Sprintf("<div class=\"%s\"><pre><code%s>%s</code></pre></div>\n",
		class, langAttr, html.EscapeString(strings.Join(content, "\n")))
}

func (st *rstState) toctree(d Directive) string {
	_, hidden := d.Options["hidden"]

	var items strings.Builder

	for _, entry := range d.Content {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		target, title := parseRefTarget(entry)
		docName := absDocName(st.doc.Source.Dir(), target)

		st.doc.TocTree = append(st.doc.TocTree, docName)

		items.WriteString("<li>" + xrefHTML(Reference{
			Domain: "std", Role: "doc", Target: docName, Title: title,
		}) + "</li>\n")
	}

	if hidden {
		return ""
	}

	var caption string
	if c := d.Options["caption"]; c != "" {
		caption = `<p class="caption">` + html.EscapeString(c) + "</p>\n"
	}

	return "<div class=\"toctree-wrapper\">\n" + caption +
		"<ul>\n" + items.String() + "</ul>\n</div>\n"
}

// projectScoped reports whether target is prefixed with the name of an
// intersphinx project.
func (st *rstState) projectScoped(target string) bool {
	project, _, ok := strings.Cut(target, ":")

	return ok && slices.Contains(st.env.Projects, project)
}

// absDocName resolves a document reference relative to dir. References
// starting with a slash are relative to the source root.
func absDocName(dir string, target string) string {
	if abs, ok := strings.CutPrefix(target, "/"); ok {
		return path.Clean(abs)
	}

	return strings.TrimPrefix(path.Join(dir, target), "./")
}

func (st *rstState) inline(text string) string {
	var out strings.Builder

	last := 0

	for _, m := range inlineRE.FindAllStringSubmatchIndex(text, -1) {
		out.WriteString(html.EscapeString(text[last:m[0]]))

		last = m[1]

		group := func(n int) string {
			if m[2*n] < 0 {
				return ""
			}

			return text[m[2*n]:m[2*n+1]]
		}

		switch {
		case m[2] >= 0:
			out.WriteString("<code>" + html.EscapeString(group(1)) + "</code>")
		case m[4] >= 0:
			out.WriteString(st.role(group(2), group(3)))
		case m[8] >= 0:
			label := group(4)
			if label == "" {
				label = group(5)
			}

			fmt.Fprintf(&out, `<a class="reference external" href="%s">%s</a>`,
				html.EscapeString(group(5)), html.EscapeString(label))
		case m[12] >= 0:
			out.WriteString("<strong>" + html.EscapeString(group(6)) + "</strong>")
		case m[14] >= 0:
			out.WriteString("<em>" + html.EscapeString(group(7)) + "</em>")
		case m[16] >= 0:
			out.WriteString("<em>" + html.EscapeString(group(8)) + "</em>")
		case m[18] >= 0:
			u := html.EscapeString(group(9))

			fmt.Fprintf(&out, `<a class="reference external" href="%s">%s</a>`, u, u)
		}
	}

	out.WriteString(html.EscapeString(text[last:]))

	return out.String()
}

func (st *rstState) role(role string, text string) string {
	switch role {
	case "code", "literal", "file", "samp", "command", "kbd":
		return "<code>" + html.EscapeString(text) + "</code>"
	case "strong":
		return "<strong>" + html.EscapeString(text) + "</strong>"
	case "emphasis", "dfn":
		return "<em>" + html.EscapeString(text) + "</em>"
	case "sub", "subscript":
		return "<sub>" + html.EscapeString(text) + "</sub>"
	case "sup", "superscript":
		return "<sup>" + html.EscapeString(text) + "</sup>"
	case "math":
		return `<span class="math">` + html.EscapeString(text) + "</span>"
	}

	domain, name := parseRole(role)
	target, title := parseRefTarget(text)

	switch {
	case domain == "std" && name == "doc" && !st.projectScoped(target):
		target = absDocName(st.doc.Source.Dir(), target)
	case domain == "std" && name == "ref":
		target = strings.ToLower(target)
	}

	return xrefHTML(Reference{
		Domain: domain,
		Role:   name,
		Target: target,
		Title:  title,
	})
}
