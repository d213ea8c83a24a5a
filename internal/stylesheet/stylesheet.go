// Package stylesheet produces the site CSS from a theme's stylesheet source.
package stylesheet

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
)

// Options are passed to every build.
type Options struct {
	// ContentGlobs are scanned for utility classes that must survive purging.
	ContentGlobs []string
	// ConfigPath is the tailwind configuration file, if any.
	ConfigPath string
	Minify     bool
}

// Builder turns stylesheet source into final CSS.
type Builder interface {
	Build(ctx context.Context, source []byte, opts Options) ([]byte, error)
	Name() string
}

// Detect returns a tailwind builder for binary, or for tailwindcss on PATH
// when binary is empty; without either it falls back to Passthrough.
func Detect(binary string, logger *slog.Logger) Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if binary != "" {
		return &TailwindCLI{Binary: binary}
	}
	if p, err := exec.LookPath("tailwindcss"); err == nil {
		return &TailwindCLI{Binary: p}
	}
	logger.Warn("tailwindcss not found; stylesheet source is copied without processing")
	return Passthrough{}
}

// Passthrough copies the source unchanged.
type Passthrough struct{}

func (Passthrough) Name() string { return "passthrough" }

func (Passthrough) Build(_ context.Context, source []byte, _ Options) ([]byte, error) {
	return append([]byte(nil), source...), nil
}

// TailwindCLI runs the tailwind standalone executable, which also applies autoprefixing.
type TailwindCLI struct {
	Binary string
}

func (t *TailwindCLI) Name() string { return "tailwindcss" }

func (t *TailwindCLI) Build(ctx context.Context, source []byte, opts Options) ([]byte, error) {
	work, err := os.MkdirTemp("", "pagebrew-css-*")
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStylesheet, "create stylesheet work dir").Fatal().Build()
	}
	defer func() { _ = os.RemoveAll(work) }()

	input := filepath.Join(work, "input.css")
	output := filepath.Join(work, "output.css")
	if err := os.WriteFile(input, source, 0o600); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStylesheet, "write stylesheet source").Fatal().Build()
	}

	args := []string{"-i", input, "-o", output}
	if opts.ConfigPath != "" {
		args = append(args, "-c", opts.ConfigPath)
	}
	if len(opts.ContentGlobs) > 0 {
		args = append(args, "--content", strings.Join(opts.ContentGlobs, ","))
	}
	if opts.Minify {
		args = append(args, "--minify")
	}

	// #nosec G204 - binary comes from configuration or PATH lookup
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	cmd.Dir = work
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryStylesheet, "tailwindcss failed").
			Fatal().
			WithContext("binary", t.Binary).
			WithContext("stderr", strings.TrimSpace(stderr.String())).
			Build()
	}
	css, err := os.ReadFile(output)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryStylesheet, "tailwindcss produced no output").
			Fatal().WithContext("binary", t.Binary).Build()
	}
	slog.Debug("Stylesheet built", logfields.Count(len(css)), slog.String("builder", t.Name()))
	return css, nil
}
