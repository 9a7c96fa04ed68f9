// Package section parses canonical Markdown into heading-delimited sections.
package section

import (
	"bytes"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/xxxsen/docembed/internal/model"
)

type Document struct {
	Sections []model.Section
	// LeadHeading is the value of the first emitted lead heading, if any.
	LeadHeading string
	Frontmatter map[string]interface{}
}

type span struct {
	start int
	end   int
}

type headingMark struct {
	start   int
	heading *model.LeadHeading
}

// Split parses markdown and partitions its top-level nodes into sections.
// Every heading opens a section; content before the first heading forms a
// section without a lead heading. Frontmatter and embedded script blocks
// never reach section text.
func Split(markdown string) *Document {
	body, frontmatter := ExtractFrontmatter(markdown)
	source := []byte(body)
	root := goldmark.New().Parser().Parse(text.NewReader(source))

	slugger := NewSlugger()
	var marks []headingMark
	var removed []span
	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Lines().Len() == 0 {
				continue
			}
			value := flattenText(n, source)
			marks = append(marks, headingMark{
				start: lineStart(source, n.Lines().At(0).Start),
				heading: &model.LeadHeading{
					Value: value,
					Depth: n.Level,
					Slug:  slugger.Slug(value),
				},
			})
		case *ast.HTMLBlock:
			if sp, ok := scriptSpan(n, source); ok {
				removed = append(removed, sp)
			}
		}
	}

	doc := &Document{Frontmatter: frontmatter}
	prefixEnd := len(source)
	if len(marks) > 0 {
		prefixEnd = marks[0].start
	}
	if content := sliceWithout(source, 0, prefixEnd, removed); content != "" {
		doc.Sections = append(doc.Sections, model.Section{Content: content})
	}
	for i, mark := range marks {
		end := len(source)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		content := sliceWithout(source, mark.start, end, removed)
		if content == "" {
			continue
		}
		doc.Sections = append(doc.Sections, model.Section{Content: content, LeadHeading: mark.heading})
		if doc.LeadHeading == "" {
			doc.LeadHeading = mark.heading.Value
		}
	}
	return doc
}

// flattenText returns the plain text of an inline container with markup removed.
func flattenText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(source))
			if v.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		case *ast.AutoLink:
			sb.Write(v.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func scriptSpan(n *ast.HTMLBlock, source []byte) (span, bool) {
	if n.Lines().Len() == 0 {
		return span{}, false
	}
	first := n.Lines().At(0)
	head := bytes.ToLower(bytes.TrimSpace(first.Value(source)))
	if !bytes.HasPrefix(head, []byte("<script")) && !bytes.HasPrefix(head, []byte("<style")) {
		return span{}, false
	}
	end := n.Lines().At(n.Lines().Len() - 1).Stop
	if n.HasClosure() {
		end = n.ClosureLine.Stop
	}
	return span{start: lineStart(source, first.Start), end: end}, true
}

func lineStart(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	idx := bytes.LastIndexByte(source[:offset], '\n')
	return idx + 1
}

// sliceWithout returns source[start:end] minus the removed spans, trimmed.
func sliceWithout(source []byte, start, end int, removed []span) string {
	if start >= end {
		return ""
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].start < removed[j].start })
	var buf bytes.Buffer
	cursor := start
	for _, sp := range removed {
		if sp.end <= cursor || sp.start >= end {
			continue
		}
		if sp.start > cursor {
			buf.Write(source[cursor:sp.start])
		}
		cursor = sp.end
	}
	if cursor < end {
		buf.Write(source[cursor:end])
	}
	return strings.TrimSpace(buf.String())
}
