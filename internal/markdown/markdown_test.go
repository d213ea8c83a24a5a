package markdown

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderer_ParseAppliesDefaultsAndConverts(t *testing.T) {
	r := New(Options{})
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	res, err := r.Parse([]byte("---\ntitle: Hello\ntags: [a]\n---\n# Hello World\n\nline one\nline two\n"), now)
	require.NoError(t, err)
	require.Equal(t, "Hello", res.Fields.Title)
	require.Equal(t, []string{"a"}, res.Fields.Tags)
	require.Equal(t, now, res.Fields.Date)

	out := string(res.HTML)
	require.Contains(t, out, `<h1 id="hello-world">Hello World</h1>`)
	require.Contains(t, out, "line one<br>")
}

func TestRenderer_NoFrontMatter(t *testing.T) {
	res, err := New(Options{}).Parse([]byte("plain text\n"), time.Now())
	require.NoError(t, err)
	require.Equal(t, "Untitled", res.Fields.Title)
	require.Empty(t, res.FrontMatter)
	require.Contains(t, string(res.HTML), "<p>plain text</p>")
}

func TestRenderer_GFMTables(t *testing.T) {
	out, err := New(Options{}).Convert([]byte("| a | b |\n|---|---|\n| 1 | 2 |\n"))
	require.NoError(t, err)
	require.Contains(t, string(out), "<table>")
}

func TestRenderer_InvalidFrontMatter(t *testing.T) {
	_, err := New(Options{}).Parse([]byte("---\ntitle: [broken\n---\nbody\n"), time.Now())
	require.Error(t, err)
}

func TestRenderer_SanitizeKeepsHeadingIDs(t *testing.T) {
	r := New(Options{Sanitize: true})
	out, err := r.Convert([]byte("# Title\n\n<script>alert(1)</script>\n"))
	require.NoError(t, err)
	require.Contains(t, string(out), `id="title"`)
	require.NotContains(t, string(out), "<script>")
}

func TestRenderer_Highlighting(t *testing.T) {
	r := New(Options{Highlight: "monokai"})
	out, err := r.Convert([]byte("```go\npackage main\n```\n"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(out), "<pre"), string(out))
	require.Contains(t, string(out), "style=")
}
