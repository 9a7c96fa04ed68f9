package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const nonContentSelector = "head, script, style, nav, footer, aside, noscript, svg, iframe, template"

func convertHTML(_ context.Context, content string, opts Options) (string, error) {
	return HTMLToMarkdown(content, opts)
}

// HTMLToMarkdown strips non-content elements, selects the main content and
// serializes it as Markdown.
func HTMLToMarkdown(content string, opts Options) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: html: %v", ErrParse, err)
	}
	doc.Find(nonContentSelector).Remove()

	root := doc.Find("main").First()
	if root.Length() == 0 {
		root = doc.Find("body").First()
	}
	if root.Length() == 0 {
		root = doc.Selection
	}
	if sel := strings.TrimSpace(opts.ExcludeSelectors); sel != "" {
		root.Find(sel).Remove()
	}
	if sel := strings.TrimSpace(opts.IncludeSelectors); sel != "" {
		if matched := selectFirstMatch(root, sel); matched != nil {
			return serializeNodes(matched.Nodes), nil
		}
	}

	var nodes []*html.Node
	for _, n := range root.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			nodes = append(nodes, c)
		}
	}
	return serializeNodes(nodes), nil
}

// selectFirstMatch tries each comma separated selector in order and returns
// the matches of the first one that finds anything.
func selectFirstMatch(root *goquery.Selection, selectors string) *goquery.Selection {
	for _, sel := range strings.Split(selectors, ",") {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func serializeNodes(nodes []*html.Node) string {
	s := &serializer{}
	for _, n := range nodes {
		s.walk(n)
	}
	return strings.Join(s.finish(), "\n\n")
}

// serializer turns an HTML tree into Markdown blocks. Inline content is
// buffered until a block element forces a paragraph break.
type serializer struct {
	blocks []string
	inline strings.Builder
}

func (s *serializer) finish() []string {
	s.flush()
	return s.blocks
}

func (s *serializer) flush() {
	text := tidyInline(s.inline.String())
	s.inline.Reset()
	if text != "" {
		s.blocks = append(s.blocks, text)
	}
}

func (s *serializer) add(block string) {
	s.flush()
	if strings.TrimSpace(block) != "" {
		s.blocks = append(s.blocks, block)
	}
}

func (s *serializer) walkChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		s.walk(c)
	}
}

func (s *serializer) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		s.inline.WriteString(collapseSpace(n.Data))
		return
	case html.DocumentNode:
		s.walkChildren(n)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		if text := tidyInline(inlineText(n)); text != "" {
			s.add(strings.Repeat("#", level) + " " + strings.ReplaceAll(text, "\n", " "))
		}
	case "pre":
		s.add(fencedCode(n))
	case "ul", "ol":
		s.add(renderList(n, 0))
	case "blockquote":
		s.add(renderBlockquote(n))
	case "table":
		s.add(renderTable(n))
	case "hr":
		s.add("---")
	case "br":
		s.inline.WriteString("\n")
	case "p", "div", "section", "article", "main", "body", "html", "header",
		"figure", "figcaption", "details", "summary", "dl", "dt", "dd", "form", "fieldset", "address":
		s.flush()
		s.walkChildren(n)
		s.flush()
	default:
		s.inline.WriteString(inlineNode(n))
	}
}

// inlineText renders the children of n as inline Markdown.
func inlineText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(inlineNode(c))
	}
	return sb.String()
}

func inlineNode(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return collapseSpace(n.Data)
	case html.ElementNode:
	default:
		return ""
	}
	switch n.Data {
	case "br":
		return "\n"
	case "strong", "b":
		return wrapInline(inlineText(n), "**")
	case "em", "i":
		return wrapInline(inlineText(n), "*")
	case "del", "s", "strike":
		return wrapInline(inlineText(n), "~~")
	case "code", "kbd", "samp":
		return codeSpan(textContent(n))
	case "a":
		label := strings.TrimSpace(inlineText(n))
		href := attr(n, "href")
		if href == "" || strings.HasPrefix(href, "javascript:") {
			return label
		}
		if label == "" {
			label = href
		}
		return "[" + label + "](" + href + ")"
	case "img":
		src := attr(n, "src")
		if src == "" {
			return ""
		}
		alt := attr(n, "alt")
		if title := attr(n, "title"); title != "" {
			return "![" + alt + "](" + src + " \"" + strings.ReplaceAll(title, "\"", "\\\"") + "\")"
		}
		return "![" + alt + "](" + src + ")"
	default:
		return inlineText(n)
	}
}

func wrapInline(text, marker string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return text
	}
	lead := text[:len(text)-len(strings.TrimLeft(text, " "))]
	trail := text[len(strings.TrimRight(text, " ")):]
	return lead + marker + trimmed + marker + trail
}

func codeSpan(code string) string {
	if code == "" {
		return ""
	}
	fence := "`"
	for strings.Contains(code, fence) {
		fence += "`"
	}
	if strings.HasPrefix(code, "`") || strings.HasSuffix(code, "`") {
		return fence + " " + code + " " + fence
	}
	return fence + code + fence
}

func fencedCode(n *html.Node) string {
	code := strings.TrimRight(textContent(n), "\n")
	code = strings.TrimPrefix(code, "\n")
	fence := "```"
	for strings.Contains(code, fence) {
		fence += "`"
	}
	return fence + codeLanguage(n) + "\n" + code + "\n" + fence
}

func codeLanguage(pre *html.Node) string {
	if lang := attr(pre, "data-language"); lang != "" {
		return lang
	}
	if lang := classLanguage(attr(pre, "class")); lang != "" {
		return lang
	}
	for c := pre.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "code" {
			continue
		}
		if lang := attr(c, "data-language"); lang != "" {
			return lang
		}
		if lang := classLanguage(attr(c, "class")); lang != "" {
			return lang
		}
	}
	return ""
}

func classLanguage(class string) string {
	for _, item := range strings.Fields(class) {
		for _, prefix := range []string{"language-", "lang-"} {
			if strings.HasPrefix(item, prefix) && len(item) > len(prefix) {
				return strings.TrimPrefix(item, prefix)
			}
		}
	}
	return ""
}

func renderList(n *html.Node, depth int) string {
	ordered := n.Data == "ol"
	index := 1
	if ordered {
		if start := attr(n, "start"); start != "" {
			fmt.Sscanf(start, "%d", &index)
		}
	}
	var items []string
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.Data != "li" {
			continue
		}
		marker := "- "
		if ordered {
			marker = fmt.Sprintf("%d. ", index)
			index++
		}
		sub := &serializer{}
		sub.walkChildren(c)
		body := strings.Join(sub.finish(), "\n")
		pad := strings.Repeat(" ", len(marker))
		lines := strings.Split(body, "\n")
		for i := range lines {
			if i == 0 {
				lines[i] = marker + lines[i]
			} else if lines[i] != "" {
				lines[i] = pad + lines[i]
			}
		}
		items = append(items, strings.Join(lines, "\n"))
	}
	return strings.Join(items, "\n")
}

func renderBlockquote(n *html.Node) string {
	sub := &serializer{}
	sub.walkChildren(n)
	body := strings.Join(sub.finish(), "\n\n")
	if body == "" {
		return ""
	}
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n")
}

func renderTable(n *html.Node) string {
	var rows [][]string
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				collect(c)
			case "tr":
				var row []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						text := strings.ReplaceAll(tidyInline(inlineText(cell)), "\n", " ")
						row = append(row, strings.ReplaceAll(text, "|", "\\|"))
					}
				}
				rows = append(rows, row)
			}
		}
	}
	collect(n)
	if len(rows) == 0 {
		return ""
	}
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	if width == 0 {
		return ""
	}
	var lines []string
	for i, row := range rows {
		for len(row) < width {
			row = append(row, "")
		}
		lines = append(lines, "| "+strings.Join(row, " | ")+" |")
		if i == 0 {
			sep := make([]string, width)
			for j := range sep {
				sep[j] = "---"
			}
			lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
		}
	}
	return strings.Join(lines, "\n")
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode && node.Data == "br" {
			sb.WriteString("\n")
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func collapseSpace(s string) string {
	if s == "" {
		return ""
	}
	var sb strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			if !space {
				sb.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		sb.WriteRune(r)
	}
	return sb.String()
}

// tidyInline trims a paragraph and the spaces around explicit line breaks.
func tidyInline(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
