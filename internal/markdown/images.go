package markdown

import (
	"bytes"
	"io"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"git.home.luguber.info/inful/pagebrew/internal/assets/imagetypes"
)

// PublicPrefix is the URL root that copied images are served from.
const PublicPrefix = "/public/"

// RewriteImageSrc maps a relative image reference, resolved against the
// directory of the referencing document (slash-separated, relative to the
// content root), onto the public asset root. Absolute paths, URLs with a
// scheme and non-image targets are returned unchanged, so the rewrite is
// idempotent.
func RewriteImageSrc(src, docDir string) string {
	if src == "" || strings.HasPrefix(src, "/") || strings.HasPrefix(src, "#") || hasScheme(src) {
		return src
	}
	target, suffix := splitSuffix(src)
	if !imagetypes.IsImage(target) {
		return src
	}
	resolved := path.Clean(path.Join(docDir, target))
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return src
	}
	return PublicPrefix + resolved + suffix
}

// RewriteImages rewrites the src attribute of every <img> element in
// rendered. Everything else is copied through byte for byte.
func RewriteImages(rendered []byte, docDir string) ([]byte, error) {
	if !bytes.Contains(rendered, []byte("<img")) {
		return rendered, nil
	}
	var out bytes.Buffer
	out.Grow(len(rendered))
	z := html.NewTokenizer(bytes.NewReader(rendered))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return out.Bytes(), nil
			}
			return nil, z.Err()
		case html.StartTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			tok := z.Token()
			if tok.DataAtom != atom.Img || !rewriteSrcAttr(&tok, docDir) {
				out.Write(raw)
				continue
			}
			out.WriteString(tok.String())
		default:
			out.Write(z.Raw())
		}
	}
}

func rewriteSrcAttr(tok *html.Token, docDir string) bool {
	changed := false
	for i, a := range tok.Attr {
		if a.Key != "src" {
			continue
		}
		if next := RewriteImageSrc(a.Val, docDir); next != a.Val {
			tok.Attr[i].Val = next
			changed = true
		}
	}
	return changed
}

func hasScheme(s string) bool {
	if strings.HasPrefix(s, "//") {
		return true
	}
	i := strings.IndexByte(s, ':')
	if i <= 0 {
		return false
	}
	for _, r := range s[:i] {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.') {
			return false
		}
	}
	return true
}

func splitSuffix(s string) (string, string) {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
