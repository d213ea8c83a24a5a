package assets

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/stylesheet"
	"git.home.luguber.info/inful/pagebrew/internal/themes"
)

// StylesheetPath is the published stylesheet location.
func StylesheetPath(outputRoot string) string {
	return filepath.Join(outputRoot, CSSDir, StylesheetName)
}

// BuildStylesheet regenerates <outputRoot>/css from the theme's stylesheet
// source. The content globs cover the rendered output, the theme templates
// and any custom templates. A theme without stylesheet source is fatal.
func (p *Pipeline) BuildStylesheet(ctx context.Context, outputRoot string, theme *themes.Theme) error {
	start := time.Now()
	source, err := theme.ReadFile(themes.StylesheetFile)
	if err != nil {
		return ferrors.StylesheetError("no stylesheet source for theme").
			WithCause(err).WithContext("theme", theme.Name).Build()
	}

	work, err := os.MkdirTemp("", "pagebrew-theme-*")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStylesheet, "create theme extraction dir").Fatal().Build()
	}
	defer func() { _ = os.RemoveAll(work) }()

	themeGlob, err := theme.Extract(work)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryStylesheet, "extract theme templates").
			Fatal().WithContext("theme", theme.Name).Build()
	}
	opts := stylesheet.Options{
		ContentGlobs: []string{filepath.Join(outputRoot, "**", "*.html"), themeGlob},
		Minify:       p.Minify,
	}
	customDir := filepath.Join(p.ContentRoot, "templates")
	if info, statErr := os.Stat(customDir); statErr == nil && info.IsDir() {
		opts.ContentGlobs = append(opts.ContentGlobs, filepath.Join(customDir, "**", "*.html"))
	}
	opts.ConfigPath, err = p.tailwindConfig(theme, work)
	if err != nil {
		return err
	}

	builder := p.Stylesheets
	if builder == nil {
		builder = stylesheet.Passthrough{}
	}
	css, err := builder.Build(ctx, source, opts)
	if err != nil {
		return err
	}

	cssDir := filepath.Join(outputRoot, CSSDir)
	if err := os.MkdirAll(cssDir, 0o750); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create css dir").Fatal().Build()
	}
	if err := writeAtomic(StylesheetPath(outputRoot), css); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write stylesheet").
			Fatal().WithContext("path", StylesheetPath(outputRoot)).Build()
	}
	if err := clearOthers(cssDir, StylesheetName); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "clear css dir").Fatal().Build()
	}
	p.logger().Info("Stylesheet built",
		logfields.Theme(theme.Name),
		logfields.Count(len(css)),
		logfields.Since(start),
		logfields.Action(builder.Name()))
	return nil
}

// tailwindConfig prefers <contentRoot>/tailwind.config.js and falls back to
// the theme's config, materialized into work.
func (p *Pipeline) tailwindConfig(theme *themes.Theme, work string) (string, error) {
	local := filepath.Join(p.ContentRoot, themes.TailwindFile)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	data, err := theme.ReadFile(themes.TailwindFile)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryStylesheet, "read theme tailwind config").Fatal().Build()
	}
	path := filepath.Join(work, themes.TailwindFile)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryStylesheet, "write tailwind config").Fatal().Build()
	}
	return path, nil
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pagebrew-css-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil { // #nosec G302 - published files are world readable
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// clearOthers removes everything in dir except keep.
func clearOthers(dir, keep string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == keep {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
