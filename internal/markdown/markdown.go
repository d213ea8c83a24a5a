package markdown

import (
	"bytes"
	"fmt"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"git.home.luguber.info/inful/pagebrew/internal/frontmatter"
)

// Options configures the renderer.
type Options struct {
	// Highlight is a chroma style name for fenced code blocks. Empty disables highlighting.
	Highlight string
	// Sanitize filters rendered HTML through a user-generated-content policy.
	Sanitize bool
}

// Result is the output of converting one markdown document.
type Result struct {
	HTML   []byte
	Fields frontmatter.Fields
	// FrontMatter and Body are the raw split parts of the source.
	FrontMatter []byte
	Body        []byte
}

// Renderer converts markdown with front matter into HTML. It is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// New builds a renderer with GFM, hard line breaks and generated heading ids.
func New(opts Options) *Renderer {
	exts := []goldmark.Extender{extension.GFM}
	if opts.Highlight != "" {
		exts = append(exts, highlighting.NewHighlighting(highlighting.WithStyle(opts.Highlight)))
	}
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(exts...),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithUnsafe()),
		),
	}
	if opts.Sanitize {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("id").OnElements("h1", "h2", "h3", "h4", "h5", "h6")
		p.AllowAttrs("style").OnElements("span", "pre")
		r.policy = p
	}
	return r
}

// Parse splits front matter from raw, applies field defaults (now stands in
// for a missing date) and converts the body.
func (r *Renderer) Parse(raw []byte, now time.Time) (*Result, error) {
	fm, body, _, err := frontmatter.Split(raw)
	if err != nil {
		return nil, err
	}
	fields, err := frontmatter.ParseYAML(fm)
	if err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}
	htmlOut, err := r.Convert(body)
	if err != nil {
		return nil, err
	}
	return &Result{
		HTML:        htmlOut,
		Fields:      frontmatter.ApplyDefaults(fields, now),
		FrontMatter: fm,
		Body:        body,
	}, nil
}

// Convert renders a markdown body without front matter.
func (r *Renderer) Convert(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("convert markdown: %w", err)
	}
	if r.policy != nil {
		return r.policy.SanitizeBytes(buf.Bytes()), nil
	}
	return buf.Bytes(), nil
}
