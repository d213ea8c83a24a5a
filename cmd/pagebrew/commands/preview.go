package commands

import (
	"os"

	"git.home.luguber.info/inful/pagebrew/internal/build"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/server"
)

// PreviewCmd serves the existing output root as-is.
type PreviewCmd struct {
	Port int `help:"Server port (default: server.port from the configuration, else 3000)"`
}

func (p *PreviewCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	srv, err := p.server(g, root)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func (p *PreviewCmd) server(g *Global, root *CLI) (*server.Server, error) {
	contentRoot, store, err := root.openStore()
	if err != nil {
		return nil, err
	}
	cfg := store.Snapshot()
	out := build.ResolveOutputRoot(contentRoot, "", cfg)
	if fi, err := os.Stat(out); err != nil || !fi.IsDir() {
		return nil, ferrors.ValidationError("nothing to preview; run pagebrew build first").
			WithContext("path", out).Build()
	}
	port := p.Port
	if port == 0 {
		port = cfg.Server.Port
	}
	return server.New(server.Options{Root: out, Port: port, Logger: g.logger()}), nil
}
