// Package render turns indexed documents into page HTML and decides where
// each page lands in the output tree.
package render

import (
	"bytes"
	"context"
	"errors"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/pagebrew/internal/content"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/templates"
	"git.home.luguber.info/inful/pagebrew/internal/themes"
)

// BlogListingFile is the output file of the blog listing, relative to the output root.
const BlogListingFile = "blog.html"

// OutputPath derives a document's output file from its class and path.
func OutputPath(outputRoot string, doc *content.Document) string {
	return filepath.Join(outputRoot, filepath.FromSlash(OutputRel(doc)))
}

// OutputRel is OutputPath relative to the output root, slash-separated.
func OutputRel(doc *content.Document) string {
	switch doc.Class {
	case content.ClassHome:
		return "index.html"
	case content.ClassBlogPost:
		return "blog/" + strings.TrimSuffix(path.Base(doc.Path), path.Ext(doc.Path)) + ".html"
	case content.ClassBlogIndex:
		return BlogListingFile
	default:
		return strings.TrimSuffix(doc.Path, path.Ext(doc.Path)) + ".html"
	}
}

// Renderer executes page templates.
type Renderer struct {
	Resolver *templates.Resolver
	Theme    *themes.Theme
}

// Render resolves the template for doc and executes it.
func (r *Renderer) Render(ctx context.Context, doc *content.Document, shared Shared) ([]byte, error) {
	key := templates.KeyFor(doc.Class)
	h, err := r.Resolver.Resolve(key, r.Theme)
	if err != nil {
		return nil, err
	}
	out, err := execute(ctx, h, NewContext(doc, shared))
	if err != nil {
		return nil, wrapExecError(err, doc.Path, key)
	}
	return out, nil
}

// RenderBlogListing renders blog.html. ok is false when no listing template exists.
func (r *Renderer) RenderBlogListing(ctx context.Context, intro *content.Document, shared Shared) (out []byte, ok bool, err error) {
	h, err := r.Resolver.Resolve(templates.KeyBlog, r.Theme)
	if errors.Is(err, templates.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out, err = execute(ctx, h, NewBlogContext(intro, shared))
	if err != nil {
		return nil, false, wrapExecError(err, BlogListingFile, templates.KeyBlog)
	}
	return out, true, nil
}

// execute runs the template, giving up when ctx ends. Template execution
// itself cannot be interrupted; an abandoned execution finishes in the background.
func execute(ctx context.Context, h *templates.Handle, data Context) ([]byte, error) {
	type result struct {
		out []byte
		err error
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	done := make(chan result, 1)
	go func() {
		var buf bytes.Buffer
		err := h.Execute(&buf, data)
		done <- result{out: buf.Bytes(), err: err}
	}()
	select {
	case res := <-done:
		return res.out, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func wrapExecError(err error, p string, key templates.Key) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ferrors.WrapError(err, ferrors.CategoryRender, "template execution did not finish").
			Fatal().WithContext("path", p).WithContext("template", string(key)).Build()
	}
	return ferrors.WrapError(err, ferrors.CategoryRender, "template execution failed").
		Fatal().WithContext("path", p).WithContext("template", string(key)).Build()
}
