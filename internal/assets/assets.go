// Package assets copies image assets into the public asset root and builds
// the site stylesheet.
package assets

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/pagebrew/internal/assets/imagetypes"
	"git.home.luguber.info/inful/pagebrew/internal/content"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/metrics"
	"git.home.luguber.info/inful/pagebrew/internal/stylesheet"
)

// Output tree locations owned by the pipeline.
const (
	PublicDir      = "public"
	CSSDir         = "css"
	StylesheetName = "style.css"
)

// Pipeline copies images and builds stylesheets for one content root.
type Pipeline struct {
	ContentRoot string
	Skip        content.SkipFunc
	Workers     int
	Stylesheets stylesheet.Builder
	Minify      bool
	Logger      *slog.Logger
	Recorder    metrics.Recorder
}

// CopyResult summarizes one CopyImages pass.
type CopyResult struct {
	Copied   int
	Failed   int
	Failures []string
}

// PublicPath is where the image at rel (relative to the content root) is published.
func PublicPath(outputRoot, rel string) string {
	return filepath.Join(outputRoot, PublicDir, filepath.FromSlash(rel))
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// CopyImages copies every recognized image under the content root into
// <outputRoot>/public, keeping relative subdirectories. Per-file failures are
// logged and counted; only discovery failures return an error.
func (p *Pipeline) CopyImages(ctx context.Context, outputRoot string) (CopyResult, error) {
	files, err := content.DiscoverFiles(p.ContentRoot, p.Skip, imagetypes.IsImage)
	if err != nil {
		return CopyResult{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "image discovery failed").
			Fatal().WithContext("path", p.ContentRoot).Build()
	}

	workers := p.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	var (
		mu  sync.Mutex
		res CopyResult
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			copyErr := p.CopyImage(outputRoot, rel)
			mu.Lock()
			defer mu.Unlock()
			if copyErr != nil {
				res.Failed++
				res.Failures = append(res.Failures, rel)
				return nil
			}
			res.Copied++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	p.logger().Debug("Images copied", logfields.Count(res.Copied), slog.Int("failed", res.Failed))
	return res, nil
}

// CopyImage publishes one image. Failures are logged and returned as a
// warning-severity AssetError.
func (p *Pipeline) CopyImage(outputRoot, rel string) error {
	src := filepath.Join(p.ContentRoot, filepath.FromSlash(rel))
	dst := PublicPath(outputRoot, rel)
	err := copyFile(src, dst)
	metrics.OrNoop(p.Recorder).IncAssetResult(err == nil)
	if err != nil {
		p.logger().Warn("Skipping image", logfields.Path(rel), logfields.Error(err))
		return ferrors.AssetError("image copy failed").WithCause(err).WithContext("path", rel).Build()
	}
	return nil
}

// RemoveImage deletes a published image. A missing target is not an error.
func (p *Pipeline) RemoveImage(outputRoot, rel string) error {
	dst := PublicPath(outputRoot, rel)
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		p.logger().Warn("Failed to remove published image", logfields.Path(rel), logfields.Error(err))
		return ferrors.AssetError("image removal failed").WithCause(err).WithContext("path", rel).Build()
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src) // #nosec G304 - path comes from content discovery
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	out, err := os.CreateTemp(filepath.Dir(dst), ".pagebrew-asset-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(out.Name())
		}
	}()
	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err = out.Close(); err != nil {
		return err
	}
	if err = os.Chmod(out.Name(), 0o644); err != nil { // #nosec G302 - published files are world readable
		return err
	}
	return os.Rename(out.Name(), dst)
}
