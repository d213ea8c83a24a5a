package commands

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/pagebrew/internal/build"
	"git.home.luguber.info/inful/pagebrew/internal/events"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/metrics"
	"git.home.luguber.info/inful/pagebrew/internal/server"
	"git.home.luguber.info/inful/pagebrew/internal/watch"
)

// ServeCmd builds the site, serves it and rebuilds on every change.
type ServeCmd struct {
	Port         int    `help:"Dev server port (default: server.port from the configuration, else 3000)"`
	Theme        string `help:"Theme to build with; persisted after a successful build"`
	NoLiveReload bool   `name:"no-live-reload" help:"Disable the live reload stream and script injection"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	logger := g.logger()

	contentRoot, store, err := root.openStore()
	if err != nil {
		return err
	}
	cfg := store.Snapshot()
	live := cfg.Server.LiveReloadEnabled() && !s.NoLiveReload

	var (
		recorder       metrics.Recorder = metrics.NoopRecorder{}
		metricsHandler http.Handler
	)
	if cfg.Server.Metrics {
		prom := metrics.NewPrometheusRecorder(nil)
		recorder = prom
		metricsHandler = metrics.HTTPHandler(prom.Registry())
	}

	builder, err := build.New(build.Options{
		ContentRoot: contentRoot,
		Store:       store,
		Theme:       s.Theme,
		Mode:        build.ModeWatch,
		LiveReload:  live,
		Recorder:    recorder,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()
	ctrl, err := watch.NewController(builder, watch.Options{
		ContentRoot: contentRoot,
		OutputRoot:  builder.OutputRoot(),
		ConfigPath:  root.ConfigPath(contentRoot),
		Debounce:    cfg.Watch.DebounceDuration(),
		MaxDelay:    cfg.Watch.MaxDelayDuration(),
		Resync:      cfg.Watch.ResyncDuration(),
		Bus:         bus,
		Recorder:    recorder,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	report, err := ctrl.InitialBuild(ctx)
	if err != nil {
		return err
	}

	var hub *server.Hub
	if live {
		hub = server.NewHub(recorder, logger)
		hub.Broadcast(report.ID)
	}
	port := s.Port
	if port == 0 {
		port = cfg.Server.Port
	}
	srv := server.New(server.Options{
		Root:    builder.OutputRoot(),
		Port:    port,
		Hub:     hub,
		Metrics: metricsHandler,
		Logger:  logger,
	})
	bound, err := srv.Listen()
	if err != nil {
		return err
	}
	logger.Info("Dev server ready", logfields.Port(bound))

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return ctrl.Run(gctx) })
	grp.Go(func() error { return srv.Serve(gctx) })
	if hub != nil {
		grp.Go(func() error {
			hub.Follow(gctx, bus)
			return nil
		})
	}
	return grp.Wait()
}
