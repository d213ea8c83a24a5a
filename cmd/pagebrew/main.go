package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/pagebrew/cmd/pagebrew/commands"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("pagebrew"),
		kong.Description("Build and preview a static site from a directory of markdown."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
	)
	global := &commands.Global{Logger: slog.Default()}
	if err := parser.Run(global, cli); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
