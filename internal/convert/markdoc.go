package convert

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
)

var (
	markdocTagRe  = regexp.MustCompile(`\{%\s*(/?)\s*([^%]*?)\s*(/?)\s*%\}`)
	markdocAttrRe = regexp.MustCompile(`([A-Za-z_][\w-]*)\s*=\s*(?:"([^"]*)"|'([^']*)'|([^\s"']+))`)
)

var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
)

// convertMarkdoc renders image tags as HTML images, drops every other tag
// and variable, then normalizes the result through the HTML serializer.
// Frontmatter is preserved as is.
func convertMarkdoc(_ context.Context, content string, _ Options) (string, error) {
	frontmatter, body := splitRawFrontmatter(content)
	body = markdocTagRe.ReplaceAllStringFunc(body, replaceMarkdocTag)

	var buf bytes.Buffer
	if err := markdownRenderer.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("%w: markdoc: %v", ErrParse, err)
	}
	md, err := HTMLToMarkdown(buf.String(), Options{})
	if err != nil {
		return "", err
	}
	if frontmatter == "" {
		return md, nil
	}
	return frontmatter + "\n" + md, nil
}

func replaceMarkdocTag(tag string) string {
	m := markdocTagRe.FindStringSubmatch(tag)
	if m == nil || m[1] == "/" {
		return ""
	}
	inner := m[2]
	name, attrs, _ := strings.Cut(inner, " ")
	if name != "image" {
		return ""
	}
	values := map[string]string{}
	for _, am := range markdocAttrRe.FindAllStringSubmatch(attrs, -1) {
		values[am[1]] = am[2] + am[3] + am[4]
	}
	if values["src"] == "" {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(`<img src="`)
	sb.WriteString(html.EscapeString(values["src"]))
	sb.WriteString(`" alt="`)
	sb.WriteString(html.EscapeString(values["alt"]))
	sb.WriteString(`"`)
	if title := values["title"]; title != "" {
		sb.WriteString(` title="`)
		sb.WriteString(html.EscapeString(title))
		sb.WriteString(`"`)
	}
	sb.WriteString(">")
	return sb.String()
}

// splitRawFrontmatter separates a leading "---" block, fences included,
// from the rest of the document.
func splitRawFrontmatter(content string) (string, string) {
	text := strings.TrimPrefix(content, "\ufeff")
	if !strings.HasPrefix(text, "---\n") && !strings.HasPrefix(text, "---\r\n") {
		return "", content
	}
	lines := strings.SplitAfter(text, "\n")
	for i := 1; i < len(lines); i++ {
		switch strings.TrimRight(lines[i], "\r\n") {
		case "---", "...":
			return strings.Join(lines[:i+1], ""), strings.Join(lines[i+1:], "")
		}
	}
	return "", content
}
