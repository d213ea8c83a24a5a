package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewriteImageSrc(t *testing.T) {
	cases := []struct {
		name, src, dir, want string
	}{
		{"root image", "cat.png", ".", "/public/cat.png"},
		{"nested image", "img/cat.png", ".", "/public/img/cat.png"},
		{"post relative", "cat.png", "blog", "/public/blog/cat.png"},
		{"parent relative", "../shared/cat.png", "blog", "/public/shared/cat.png"},
		{"dot slash", "./cat.png", "docs", "/public/docs/cat.png"},
		{"query kept", "cat.png?v=2", ".", "/public/cat.png?v=2"},
		{"already rewritten", "/public/cat.png", "blog", "/public/cat.png"},
		{"absolute path", "/static/cat.png", ".", "/static/cat.png"},
		{"http url", "http://example.com/cat.png", ".", "http://example.com/cat.png"},
		{"https url", "https://example.com/cat.png", ".", "https://example.com/cat.png"},
		{"protocol relative", "//cdn.example.com/cat.png", ".", "//cdn.example.com/cat.png"},
		{"data uri", "data:image/png;base64,AAAA", ".", "data:image/png;base64,AAAA"},
		{"not an image", "doc.pdf", ".", "doc.pdf"},
		{"escapes root", "../../cat.png", "blog", "../../cat.png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := RewriteImageSrc(tc.src, tc.dir)
			require.Equal(t, tc.want, got)
			require.Equal(t, got, RewriteImageSrc(got, tc.dir), "rewrite must be idempotent")
		})
	}
}

func TestRewriteImages_OnlyTouchesImgSrc(t *testing.T) {
	in := []byte(`<p>a &amp; b <img src="cat.png" alt="A &quot;cat&quot;"> <a href="cat.png">link</a></p>` + "\n" +
		`<p><img src="https://x.test/y.png"></p>`)

	out, err := RewriteImages(in, "blog")
	require.NoError(t, err)
	s := string(out)
	require.Contains(t, s, `src="/public/blog/cat.png"`)
	require.Contains(t, s, `<a href="cat.png">link</a>`)
	require.Contains(t, s, `a &amp; b`)
	require.Contains(t, s, `<img src="https://x.test/y.png">`)

	again, err := RewriteImages(out, "blog")
	require.NoError(t, err)
	require.Equal(t, s, string(again))
}

func TestRewriteImages_NoImages(t *testing.T) {
	in := []byte("<p>nothing here</p>")
	out, err := RewriteImages(in, ".")
	require.NoError(t, err)
	require.Equal(t, in, out)
}
