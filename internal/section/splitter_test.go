package section

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitByHeadings(t *testing.T) {
	md := "Intro paragraph.\n\n# Getting *Started*\n\nFirst.\n\n- a\n- b\n\n## Install `cli`\n\nRun it.\n"
	doc := Split(md)
	require.Len(t, doc.Sections, 3)

	require.Nil(t, doc.Sections[0].LeadHeading)
	require.Equal(t, "Intro paragraph.", doc.Sections[0].Content)

	require.Equal(t, "Getting Started", doc.Sections[1].LeadHeading.Value)
	require.Equal(t, 1, doc.Sections[1].LeadHeading.Depth)
	require.Equal(t, "getting-started", doc.Sections[1].LeadHeading.Slug)
	require.Equal(t, "# Getting *Started*\n\nFirst.\n\n- a\n- b", doc.Sections[1].Content)

	require.Equal(t, "Install cli", doc.Sections[2].LeadHeading.Value)
	require.Equal(t, 2, doc.Sections[2].LeadHeading.Depth)
	require.Equal(t, "## Install `cli`\n\nRun it.", doc.Sections[2].Content)

	require.Equal(t, "Getting Started", doc.LeadHeading)
}

func TestSplitRemovesFrontmatter(t *testing.T) {
	md := "---\ntitle: Guide\ntags: [a, b]\n---\n# Heading\n\nBody text.\n"
	doc := Split(md)
	require.Equal(t, "Guide", doc.Frontmatter["title"])
	require.Len(t, doc.Sections, 1)
	require.NotContains(t, doc.Sections[0].Content, "title:")
	require.Equal(t, "Heading", doc.LeadHeading)
}

func TestSplitIgnoresHeadingsInsideCode(t *testing.T) {
	md := "# Real\n\n```sh\n# not a heading\necho hi\n```\n"
	doc := Split(md)
	require.Len(t, doc.Sections, 1)
	require.Contains(t, doc.Sections[0].Content, "# not a heading")
}

func TestSplitSetextHeadings(t *testing.T) {
	md := "Title\n=====\n\ntext\n\nSub\n---\n\nmore\n"
	doc := Split(md)
	require.Len(t, doc.Sections, 2)
	require.Equal(t, "Title", doc.Sections[0].LeadHeading.Value)
	require.Equal(t, 1, doc.Sections[0].LeadHeading.Depth)
	require.Equal(t, "Sub", doc.Sections[1].LeadHeading.Value)
	require.Equal(t, 2, doc.Sections[1].LeadHeading.Depth)
}

func TestSplitDropsScriptBlocks(t *testing.T) {
	md := "# A\n\nbefore\n\n<script>\nwindow.x = 1;\n</script>\n\nafter\n"
	doc := Split(md)
	require.Len(t, doc.Sections, 1)
	require.NotContains(t, doc.Sections[0].Content, "window.x")
	require.Contains(t, doc.Sections[0].Content, "before")
	require.Contains(t, doc.Sections[0].Content, "after")
}

func TestSplitDuplicateSlugs(t *testing.T) {
	doc := Split("## Usage\n\na\n\n## Usage\n\nb\n")
	require.Len(t, doc.Sections, 2)
	require.Equal(t, "usage", doc.Sections[0].LeadHeading.Slug)
	require.Equal(t, "usage-1", doc.Sections[1].LeadHeading.Slug)
}

func TestSplitEmptyDocument(t *testing.T) {
	doc := Split("")
	require.Empty(t, doc.Sections)
	require.Equal(t, "", doc.LeadHeading)
}

func TestExtractFrontmatterVariants(t *testing.T) {
	body, fm := ExtractFrontmatter("no frontmatter")
	require.Equal(t, "no frontmatter", body)
	require.Nil(t, fm)

	body, fm = ExtractFrontmatter("---\ntitle: x\nno closing fence")
	require.Equal(t, "---\ntitle: x\nno closing fence", body)
	require.Nil(t, fm)

	body, fm = ExtractFrontmatter("---\n: : bad yaml [\n---\nbody")
	require.Equal(t, "body", body)
	require.Nil(t, fm)

	body, fm = ExtractFrontmatter("---\r\ndescription: hi\r\n---\r\nbody")
	require.Equal(t, "body", body)
	require.Equal(t, "hi", fm["description"])
}

func TestInferTitle(t *testing.T) {
	require.Equal(t, "FM", InferTitle(map[string]interface{}{"title": "FM"}, "Heading", "docs/a.md"))
	require.Equal(t, "Heading", InferTitle(nil, "Heading", "docs/a.md"))
	require.Equal(t, "getting-started", InferTitle(map[string]interface{}{"title": ""}, "", "docs/getting-started.mdx"))
}

func TestSlugify(t *testing.T) {
	s := NewSlugger()
	require.Equal(t, "whats-new-in-v2", s.Slug("What's new in v2?"))
	require.Equal(t, "api_reference", s.Slug("API_Reference"))
	require.Equal(t, "中文-标题", s.Slug("中文 标题"))
}
