// Package commands implements the pagebrew subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagebrew/internal/config"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
)

// LogLevelEnv overrides the log level when set to debug, info, warn or error.
const LogLevelEnv = "PAGEBREW_LOG_LEVEL"

// stdout receives user-facing command output.
var stdout io.Writer = os.Stdout

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (default: pagebrew.yaml in the content root)"`
	Content string           `help:"Content root directory" default:"."`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build     BuildCmd   `cmd:"" help:"Build the site once"`
	Serve     ServeCmd   `cmd:"" help:"Build, serve and rebuild on change"`
	Preview   PreviewCmd `cmd:"" help:"Serve the existing output without building"`
	Configure ConfigCmd  `cmd:"" name:"config" help:"Update and print the site configuration"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// ContentRoot returns the absolute content root.
func (c *CLI) ContentRoot() (string, error) {
	dir := c.Content
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryValidation, "invalid content root").
			WithContext("path", dir).Build()
	}
	return abs, nil
}

// ConfigPath returns the configuration document path for root.
func (c *CLI) ConfigPath(root string) string {
	if c.Config == "" {
		return filepath.Join(root, config.DefaultFileName)
	}
	if abs, err := filepath.Abs(c.Config); err == nil {
		return abs
	}
	return c.Config
}

// openStore resolves the content root and loads its configuration.
func (c *CLI) openStore() (string, *config.Store, error) {
	root, err := c.ContentRoot()
	if err != nil {
		return "", nil, err
	}
	store, err := config.Load(c.ConfigPath(root), root)
	if err != nil {
		return "", nil, err
	}
	return root, store, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
