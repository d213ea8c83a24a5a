package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/pagebrew/internal/events"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
)

// Resync periodically requests a full rebuild through the debouncer. It
// covers changes the filesystem watcher missed, e.g. on network mounts.
type Resync struct {
	scheduler gocron.Scheduler
	bus       *events.Bus
	interval  time.Duration
	logger    *slog.Logger
}

func NewResync(bus *events.Bus, interval time.Duration, logger *slog.Logger) (*Resync, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resync{scheduler: s, bus: bus, interval: interval, logger: logger}, nil
}

// Start schedules the resync job and starts the scheduler.
func (r *Resync) Start() error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.interval),
		gocron.NewTask(r.request),
		gocron.WithName("resync"),
	)
	if err != nil {
		return fmt.Errorf("failed to create resync job: %w", err)
	}
	r.scheduler.Start()
	r.logger.Debug("Periodic resync enabled", slog.Duration("interval", r.interval))
	return nil
}

func (r *Resync) Stop() {
	if err := r.scheduler.Shutdown(); err != nil {
		r.logger.Warn("Failed to stop resync scheduler", logfields.Error(err))
	}
}

func (r *Resync) request() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := r.bus.Publish(ctx, events.RebuildRequested{
		Kind:        events.RebuildFull,
		Reason:      "resync",
		RequestedAt: time.Now(),
	})
	if err != nil {
		r.logger.Warn("Resync request failed", logfields.Error(err))
	}
}
