package build

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/pagebrew/internal/content"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/render"
)

type renderJob struct {
	rel string
	out []byte
	err error
	// render is nil for documents without a page of their own.
	render func(ctx context.Context) ([]byte, bool, error)
}

// stageRender executes page templates concurrently and then writes the
// results in discovery order, so a later document wins a shared output file.
func stageRender(ctx context.Context, st *State) error {
	renderer := &render.Renderer{Resolver: st.builder.resolver, Theme: st.Theme}
	shared := render.NewShared(st.Site, st.Menu, st.Now)
	shared.LiveReload = st.builder.opts.LiveReload

	var jobs []*renderJob
	for _, doc := range st.Site.Documents {
		if doc.Class == content.ClassBlogIndex {
			continue
		}
		jobs = append(jobs, &renderJob{
			rel: render.OutputRel(doc),
			render: func(ctx context.Context) ([]byte, bool, error) {
				out, err := renderer.Render(ctx, doc, shared)
				return out, true, err
			},
		})
	}
	jobs = append(jobs, &renderJob{
		rel: render.BlogListingFile,
		render: func(ctx context.Context) ([]byte, bool, error) {
			return renderer.RenderBlogListing(ctx, st.Site.BlogIndex, shared)
		},
	})

	rctx, cancel := st.stageContext(ctx)
	defer cancel()

	workers := st.Config.Build.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	g.SetLimit(workers)
	skipped := make([]bool, len(jobs))
	for i, job := range jobs {
		g.Go(func() error {
			out, ok, err := job.render(rctx)
			job.out, job.err, skipped[i] = out, err, !ok
			return nil
		})
	}
	_ = g.Wait()

	written := 0
	for i, job := range jobs {
		if job.err != nil {
			if st.Mode == ModeWatch && timedOut(ctx, job.err) {
				st.warnf("render of %s timed out; page skipped", job.rel)
				st.logger.Warn("Render timed out; page skipped", logfields.Path(job.rel))
				continue
			}
			return job.err
		}
		if skipped[i] {
			continue
		}
		if err := writePage(st.StageDir, job.rel, job.out); err != nil {
			return err
		}
		written++
	}
	st.Report.Pages = written
	st.builder.recorder.AddPagesRendered(written)
	st.logger.Info("Pages rendered", logfields.Count(written), logfields.Theme(st.Theme.Name))
	return nil
}

func writePage(root, rel string, data []byte) error {
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create page directory").
			Fatal().WithContext("path", rel).Build()
	}
	// #nosec G306 - published site files are world readable
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write page").
			Fatal().WithContext("path", rel).Build()
	}
	return nil
}
