// Package server is the local dev HTTP server: it serves the output root,
// streams live reload notifications and optionally exposes metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/server/middleware"
)

// MaxPortAttempts bounds how many consecutive ports Listen tries.
const MaxPortAttempts = 10

// Options configure a Server.
type Options struct {
	// Root is the directory served as the site.
	Root string
	Host string
	Port int
	// Hub enables live reload when set.
	Hub *Hub
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

type Server struct {
	opts   Options
	logger *slog.Logger
	srv    *http.Server
	ln     net.Listener
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{opts: opts, logger: opts.Logger.With(slog.String("component", "server"))}
}

// Handler returns the router without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.NoCache)

	if s.opts.Hub != nil {
		r.Handle("/livereload", s.opts.Hub)
		r.Get("/livereload.js", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
			_, _ = w.Write([]byte(Script))
		})
	}
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics)
	}

	var site http.Handler = http.FileServer(http.Dir(s.opts.Root))
	if s.opts.Hub != nil {
		site = InjectLiveReload(site)
	}
	r.Handle("/*", site)
	return r
}

// Listen binds the configured port, moving on to the next one while the
// port is in use. It returns the port actually bound.
func (s *Server) Listen() (int, error) {
	port := s.opts.Port
	var lastErr error
	for attempt := 0; attempt < MaxPortAttempts; attempt++ {
		addr := net.JoinHostPort(s.opts.Host, strconv.Itoa(port+attempt))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			s.ln = ln
			bound := ln.Addr().(*net.TCPAddr).Port
			if attempt > 0 {
				s.logger.Warn("Port in use; using next free port",
					slog.Int("requested", port), logfields.Port(bound))
			}
			return bound, nil
		}
		lastErr = err
		if !errors.Is(err, syscall.EADDRINUSE) || port == 0 {
			break
		}
	}
	return 0, ferrors.WrapError(lastErr, ferrors.CategoryRuntime, "failed to bind dev server port").
		Fatal().
		WithContext("port", port).
		WithContext("attempts", MaxPortAttempts).
		Build()
}

// URL returns the base URL of a listening server.
func (s *Server) URL() string {
	if s.ln == nil {
		return ""
	}
	host := s.opts.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(s.ln.Addr().(*net.TCPAddr).Port)))
}

// Serve listens (unless Listen was called) and serves until ctx ends, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if _, err := s.Listen(); err != nil {
			return err
		}
	}
	s.srv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()
	s.logger.Info("Serving site", slog.String("url", s.URL()), logfields.Path(s.opts.Root))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "dev server failed").Build()
	case <-ctx.Done():
	}

	if s.opts.Hub != nil {
		s.opts.Hub.Shutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "dev server shutdown failed").Build()
	}
	return nil
}
