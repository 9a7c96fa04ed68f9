package convert

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var (
	rstDirectiveRe = regexp.MustCompile(`^\.\.\s+([A-Za-z0-9_-]+(?::[A-Za-z0-9_-]+)?)::\s*(.*)$`)
	rstOptionRe    = regexp.MustCompile(`^:([A-Za-z0-9_ -]+):\s*(.*)$`)
	rstBulletRe    = regexp.MustCompile(`^([-*+•])\s+(.*)$`)
	rstEnumRe      = regexp.MustCompile(`^(\d+|#)[.)]\s+(.*)$`)
	rstFootnoteRe  = regexp.MustCompile(`\s*\[(?:#[\w-]*|\*|\d+)\]_`)
	rstInlineRe    = regexp.MustCompile("``(.+?)``" +
		"|:([A-Za-z0-9_:+-]+):`([^`]+)`" +
		"|`([^`<]*?)\\s*<([^`>]+)>`__?" +
		"|`([^`]+)`__?" +
		"|\\*\\*(.+?)\\*\\*" +
		"|\\*([^*\\s][^*]*?)\\*" +
		"|`([^`]+)`")
	rstRoleTargetRe = regexp.MustCompile(`^(.*?)\s*<[^>]*>$`)
)

var rstAdmonitions = map[string]bool{
	"note": true, "warning": true, "tip": true, "important": true, "caution": true,
	"danger": true, "hint": true, "attention": true, "error": true, "seealso": true,
	"admonition": true,
}

var rstSkippedDirectives = map[string]bool{
	"toctree": true, "contents": true, "index": true, "meta": true, "highlight": true,
	"include": true, "literalinclude": true, "autosummary": true, "sectnum": true,
}

// convertRST renders a reStructuredText subset as HTML and then normalizes
// it through the HTML serializer.
func convertRST(_ context.Context, content string, _ Options) (string, error) {
	return HTMLToMarkdown(RSTToHTML(content), Options{})
}

// RSTToHTML renders titles, paragraphs, lists, literal blocks, block quotes
// and common directives. Unsupported constructs degrade to paragraphs.
func RSTToHTML(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\t", "    ")
	styles := []string{}
	return renderRSTLines(strings.Split(content, "\n"), &styles)
}

type rstParser struct {
	lines  []string
	pos    int
	styles *[]string
	out    strings.Builder
}

func renderRSTLines(lines []string, styles *[]string) string {
	p := &rstParser{lines: lines, styles: styles}
	p.parse()
	return p.out.String()
}

func (p *rstParser) parse() {
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			p.pos++
		case indentOf(line) > 0:
			block := p.indentedBlock()
			p.out.WriteString("<blockquote>" + renderRSTLines(block, p.styles) + "</blockquote>")
		case p.title():
		case trimmed == ".." || strings.HasPrefix(line, ".. "):
			p.explicit()
		case isAdornment(trimmed) && utf8.RuneCountInString(trimmed) >= 4:
			p.out.WriteString("<hr>")
			p.pos++
		case rstBulletRe.MatchString(line):
			p.list(rstBulletRe, "ul")
		case rstEnumRe.MatchString(line):
			p.list(rstEnumRe, "ol")
		default:
			p.paragraph()
		}
	}
}

// title consumes an underlined or overlined section title.
func (p *rstParser) title() bool {
	i := p.pos
	line := strings.TrimRight(p.lines[i], " ")
	if isAdornment(line) && i+2 < len(p.lines) {
		text := strings.TrimSpace(p.lines[i+1])
		under := strings.TrimRight(p.lines[i+2], " ")
		if text != "" && under == line && !isAdornment(text) {
			p.heading("o"+line[:1], text)
			p.pos += 3
			return true
		}
	}
	if indentOf(line) > 0 || isAdornment(line) || i+1 >= len(p.lines) {
		return false
	}
	under := strings.TrimRight(p.lines[i+1], " ")
	if !isAdornment(under) {
		return false
	}
	n := utf8.RuneCountInString(under)
	if n < utf8.RuneCountInString(strings.TrimSpace(line)) && n < 4 {
		return false
	}
	p.heading("u"+under[:1], strings.TrimSpace(line))
	p.pos += 2
	return true
}

func (p *rstParser) heading(style, text string) {
	level := 0
	for i, s := range *p.styles {
		if s == style {
			level = i + 1
			break
		}
	}
	if level == 0 {
		*p.styles = append(*p.styles, style)
		level = len(*p.styles)
	}
	if level > 6 {
		level = 6
	}
	tag := "h" + string(rune('0'+level))
	p.out.WriteString("<" + tag + ">" + renderRSTInline(text) + "</" + tag + ">")
}

func (p *rstParser) explicit() {
	line := p.lines[p.pos]
	p.pos++
	body := p.indentedBlock()
	m := rstDirectiveRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	name := strings.ToLower(m[1])
	arg := strings.TrimSpace(m[2])
	options, content := splitDirectiveBody(body)

	switch {
	case name == "code-block" || name == "code" || name == "sourcecode":
		p.out.WriteString(`<pre data-language="` + html.EscapeString(arg) + `"><code>` +
			html.EscapeString(strings.Join(content, "\n")) + "</code></pre>")
	case name == "image" || name == "figure":
		if arg != "" {
			p.out.WriteString(`<p><img src="` + html.EscapeString(arg) + `" alt="` +
				html.EscapeString(options["alt"]) + `"></p>`)
		}
		if name == "figure" && len(content) > 0 {
			p.out.WriteString(renderRSTLines(content, p.styles))
		}
	case rstAdmonitions[name]:
		label := strings.ToUpper(name[:1]) + name[1:]
		if name == "seealso" {
			label = "See also"
		}
		if name == "admonition" && arg != "" {
			label = arg
		} else if arg != "" {
			content = append([]string{arg}, content...)
		}
		p.out.WriteString("<blockquote><p><strong>" + html.EscapeString(label) + "</strong></p>" +
			renderRSTLines(content, p.styles) + "</blockquote>")
	case name == "raw":
		if strings.EqualFold(arg, "html") {
			p.out.WriteString(strings.Join(content, "\n"))
		}
	case rstSkippedDirectives[name]:
	default:
		if len(content) > 0 {
			p.out.WriteString(renderRSTLines(content, p.styles))
		}
	}
}

// splitDirectiveBody separates the leading ":name: value" option lines from
// the directive content.
func splitDirectiveBody(body []string) (map[string]string, []string) {
	options := map[string]string{}
	i := 0
	for ; i < len(body); i++ {
		m := rstOptionRe.FindStringSubmatch(strings.TrimSpace(body[i]))
		if m == nil {
			break
		}
		options[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
	}
	for i < len(body) && strings.TrimSpace(body[i]) == "" {
		i++
	}
	return options, body[i:]
}

func (p *rstParser) list(re *regexp.Regexp, tag string) {
	p.out.WriteString("<" + tag + ">")
	for p.pos < len(p.lines) {
		m := re.FindStringSubmatch(p.lines[p.pos])
		if m == nil {
			break
		}
		p.pos++
		item := []string{m[2]}
		item = append(item, p.indentedBlock()...)
		p.out.WriteString("<li>" + renderRSTLines(item, p.styles) + "</li>")
		next := p.pos
		for next < len(p.lines) && strings.TrimSpace(p.lines[next]) == "" {
			next++
		}
		if next >= len(p.lines) || !re.MatchString(p.lines[next]) {
			break
		}
		p.pos = next
	}
	p.out.WriteString("</" + tag + ">")
}

func (p *rstParser) paragraph() {
	var lines []string
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if strings.TrimSpace(line) == "" || indentOf(line) > 0 {
			break
		}
		lines = append(lines, strings.TrimSpace(line))
		p.pos++
	}
	text := strings.Join(lines, " ")
	literal := strings.HasSuffix(text, "::")
	switch {
	case !literal:
	case text == "::":
		text = ""
	case strings.HasSuffix(text, " ::"):
		text = strings.TrimSuffix(text, " ::")
	default:
		text = strings.TrimSuffix(text, ":")
	}

	// A single line directly followed by an indented block is a definition.
	if !literal && len(lines) == 1 && p.pos < len(p.lines) && indentOf(p.lines[p.pos]) > 0 {
		p.out.WriteString("<p><strong>" + renderRSTInline(text) + "</strong></p>")
		p.out.WriteString(renderRSTLines(p.indentedBlock(), p.styles))
		return
	}
	if text != "" {
		p.out.WriteString("<p>" + renderRSTInline(text) + "</p>")
	}
	if !literal {
		return
	}
	next := p.pos
	for next < len(p.lines) && strings.TrimSpace(p.lines[next]) == "" {
		next++
	}
	if next < len(p.lines) && indentOf(p.lines[next]) > 0 {
		p.pos = next
		block := p.indentedBlock()
		p.out.WriteString("<pre><code>" + html.EscapeString(strings.Join(block, "\n")) + "</code></pre>")
	}
}

// indentedBlock consumes the indented (or blank) lines at the cursor and
// returns them with the common indentation removed.
func (p *rstParser) indentedBlock() []string {
	start := p.pos
	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if strings.TrimSpace(line) != "" && indentOf(line) == 0 {
			break
		}
		p.pos++
	}
	end := p.pos
	for end > start && strings.TrimSpace(p.lines[end-1]) == "" {
		end--
	}
	p.pos = end
	block := p.lines[start:end]
	minIndent := -1
	for _, line := range block {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if n := indentOf(line); minIndent < 0 || n < minIndent {
			minIndent = n
		}
	}
	out := make([]string, 0, len(block))
	for _, line := range block {
		if len(line) >= minIndent && minIndent > 0 {
			line = line[minIndent:]
		}
		out = append(out, strings.TrimRight(line, " "))
	}
	return out
}

func renderRSTInline(text string) string {
	text = rstFootnoteRe.ReplaceAllString(text, "")
	var sb strings.Builder
	last := 0
	for _, m := range rstInlineRe.FindAllStringSubmatchIndex(text, -1) {
		sb.WriteString(html.EscapeString(text[last:m[0]]))
		last = m[1]
		group := func(n int) (string, bool) {
			if m[2*n] < 0 {
				return "", false
			}
			return text[m[2*n]:m[2*n+1]], true
		}
		if code, ok := group(1); ok {
			sb.WriteString("<code>" + html.EscapeString(code) + "</code>")
		} else if role, ok := group(2); ok {
			value, _ := group(3)
			sb.WriteString(renderRSTRole(role, value))
		} else if label, ok := group(4); ok {
			url, _ := group(5)
			if label == "" {
				label = url
			}
			sb.WriteString(`<a href="` + html.EscapeString(url) + `">` + html.EscapeString(label) + "</a>")
		} else if ref, ok := group(6); ok {
			sb.WriteString(html.EscapeString(ref))
		} else if strong, ok := group(7); ok {
			sb.WriteString("<strong>" + html.EscapeString(strong) + "</strong>")
		} else if em, ok := group(8); ok {
			sb.WriteString("<em>" + html.EscapeString(em) + "</em>")
		} else if cite, ok := group(9); ok {
			sb.WriteString("<em>" + html.EscapeString(cite) + "</em>")
		}
	}
	sb.WriteString(html.EscapeString(text[last:]))
	return sb.String()
}

func renderRSTRole(role, value string) string {
	switch role {
	case "code", "literal", "samp", "file", "kbd", "command", "math":
		return "<code>" + html.EscapeString(value) + "</code>"
	case "strong":
		return "<strong>" + html.EscapeString(value) + "</strong>"
	case "emphasis":
		return "<em>" + html.EscapeString(value) + "</em>"
	}
	if m := rstRoleTargetRe.FindStringSubmatch(value); m != nil && m[1] != "" {
		value = m[1]
	}
	return html.EscapeString(strings.TrimPrefix(value, "~"))
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

func isAdornment(line string) bool {
	if len(line) < 2 {
		return false
	}
	first := rune(line[0])
	if first > unicode.MaxASCII || !unicode.IsPunct(first) && !unicode.IsSymbol(first) {
		return false
	}
	for _, r := range line {
		if r != first {
			return false
		}
	}
	return true
}
