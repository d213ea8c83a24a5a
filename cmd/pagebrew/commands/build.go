package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/pagebrew/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Theme  string `help:"Theme to build with; persisted after a successful build"`
	Output string `short:"o" help:"Output directory (default: outputDir from the configuration)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	contentRoot, store, err := root.openStore()
	if err != nil {
		return err
	}
	builder, err := build.New(build.Options{
		ContentRoot: contentRoot,
		Store:       store,
		Theme:       b.Theme,
		OutputDir:   b.Output,
		Mode:        build.ModeOneShot,
		Logger:      g.logger(),
	})
	if err != nil {
		return err
	}
	report, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Built %d pages (%d posts) into %s in %s: %s\n",
		report.Pages, report.Posts, builder.OutputRoot(), report.Duration().Round(time.Millisecond), report.Outcome)
	for _, w := range report.Warnings {
		_, _ = fmt.Fprintf(stdout, "  warning: %v\n", w)
	}
	return nil
}
