package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLToMarkdownDropsNonContent(t *testing.T) {
	out, err := HTMLToMarkdown("<html><head><title>T</title></head><body><nav>Nav</nav><h1>Heading</h1></body></html>", Options{})
	require.NoError(t, err)
	assert.Equal(t, "# Heading", out)
}

func TestHTMLToMarkdownCodeLanguage(t *testing.T) {
	out, err := HTMLToMarkdown(`<pre data-language="js">var i = 0</pre>`, Options{})
	require.NoError(t, err)
	assert.Equal(t, "```js\nvar i = 0\n```", out)

	out, err = HTMLToMarkdown(`<pre><code class="hljs language-go">fmt.Println("x")</code></pre>`, Options{})
	require.NoError(t, err)
	assert.Equal(t, "```go\nfmt.Println(\"x\")\n```", out)

	out, err = HTMLToMarkdown("<pre>a ``` b</pre>", Options{})
	require.NoError(t, err)
	assert.Equal(t, "````\na ``` b\n````", out)
}

func TestHTMLToMarkdownIncludeSelectors(t *testing.T) {
	in := `<main><h1>H</h1><div id="target1">T1</div><div id="target2">T2</div></main>`
	out, err := HTMLToMarkdown(in, Options{IncludeSelectors: "#target1,#target2"})
	require.NoError(t, err)
	assert.Equal(t, "T1", out)

	out, err = HTMLToMarkdown(in, Options{IncludeSelectors: "#missing, #target2"})
	require.NoError(t, err)
	assert.Equal(t, "T2", out)

	out, err = HTMLToMarkdown(in, Options{IncludeSelectors: "#missing"})
	require.NoError(t, err)
	assert.Equal(t, "# H\n\nT1\n\nT2", out)
}

func TestHTMLToMarkdownExcludeSelectors(t *testing.T) {
	in := `<body><div class="ad">Ad</div><p>Keep</p></body>`
	out, err := HTMLToMarkdown(in, Options{ExcludeSelectors: ".ad"})
	require.NoError(t, err)
	assert.Equal(t, "Keep", out)
}

func TestHTMLToMarkdownPrefersMain(t *testing.T) {
	in := `<body><div>Outside</div><main><p>Inside</p></main></body>`
	out, err := HTMLToMarkdown(in, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Inside", out)
}

func TestHTMLToMarkdownInline(t *testing.T) {
	in := `<p>Hello <strong>world</strong> and <em>you</em>, see <a href="https://x.io">link</a> <code>x()</code> <img src="/i.png" alt="pic"></p>`
	out, err := HTMLToMarkdown(in, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Hello **world** and *you*, see [link](https://x.io) `x()` ![pic](/i.png)", out)
}

func TestHTMLToMarkdownLists(t *testing.T) {
	in := `<ul><li>a</li><li>b<ul><li>c</li></ul></li></ul><ol start="3"><li>x</li><li>y</li></ol>`
	out, err := HTMLToMarkdown(in, Options{})
	require.NoError(t, err)
	assert.Equal(t, "- a\n- b\n  - c\n\n3. x\n4. y", out)
}

func TestHTMLToMarkdownBlocks(t *testing.T) {
	in := "<body>\n<blockquote><p>quoted</p></blockquote>\n<hr>\n" +
		"<table><tr><th>A</th><th>B</th></tr><tr><td>1</td><td>2</td></tr></table>\n</body>"
	out, err := HTMLToMarkdown(in, Options{})
	require.NoError(t, err)
	assert.Equal(t, "> quoted\n\n---\n\n| A | B |\n| --- | --- |\n| 1 | 2 |", out)
}

func TestHTMLToMarkdownInlineOutsideParagraph(t *testing.T) {
	in := `<body><div>Read <a href="/docs">the docs</a> or run <code>make</code></div><img src="a.png" alt="A"><strong>done</strong></body>`
	out, err := HTMLToMarkdown(in, Options{})
	require.NoError(t, err)
	assert.Equal(t, "Read [the docs](/docs) or run `make`\n\n![A](a.png)**done**", out)

	out, err = HTMLToMarkdown(`<p><img src="a.png" alt="A" title="Cap"></p>`, Options{})
	require.NoError(t, err)
	assert.Equal(t, `![A](a.png "Cap")`, out)
}
