package watch

import (
	"context"
	"sync"
	"time"

	"git.home.luguber.info/inful/pagebrew/internal/events"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/metrics"
)

// DebouncerConfig tunes the rebuild debouncer.
type DebouncerConfig struct {
	QuietWindow time.Duration
	MaxDelay    time.Duration

	// CheckBuildRunning reports whether a rebuild is in progress. While it
	// is, requests are held and exactly one follow-up is emitted afterwards.
	CheckBuildRunning func() bool

	// PollInterval controls how often completion of a running build is polled.
	PollInterval time.Duration

	Recorder metrics.Recorder
}

// Debouncer coalesces bursts of RebuildRequested events into a single
// RebuildNow. It enforces a quiet window, a max delay that a steady stream of
// requests cannot postpone, and one follow-up when a build is already running.
// A full request subsumes a pending style request.
type Debouncer struct {
	bus *events.Bus
	cfg DebouncerConfig

	mu        sync.Mutex
	readyOnce sync.Once
	ready     chan struct{}

	pending         bool
	pendingAfterRun bool
	kind            events.RebuildKind
	firstRequestAt  time.Time
	lastRequestAt   time.Time
	lastReason      string
	lastPath        string
	requestCount    int
}

func NewDebouncer(bus *events.Bus, cfg DebouncerConfig) (*Debouncer, error) {
	if bus == nil {
		return nil, ferrors.ValidationError("bus is required").Build()
	}
	if cfg.QuietWindow <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay <= 0 {
		return nil, ferrors.ValidationError("max delay must be > 0").Build()
	}
	if cfg.CheckBuildRunning == nil {
		cfg.CheckBuildRunning = func() bool { return false }
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	cfg.Recorder = metrics.OrNoop(cfg.Recorder)
	return &Debouncer{bus: bus, cfg: cfg, ready: make(chan struct{})}, nil
}

// Ready is closed once Run has subscribed to requests.
func (d *Debouncer) Ready() <-chan struct{} { return d.ready }

func stoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}

// Run processes requests until ctx ends or the bus closes.
func (d *Debouncer) Run(ctx context.Context) error {
	reqCh, unsubscribe := events.Subscribe[events.RebuildRequested](d.bus, 64)
	defer unsubscribe()
	d.readyOnce.Do(func() { close(d.ready) })

	quietTimer, maxTimer, pollTimer := stoppedTimer(), stoppedTimer(), stoppedTimer()
	defer quietTimer.Stop()
	defer maxTimer.Stop()
	defer pollTimer.Stop()
	var quietC, maxC, pollC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case req, ok := <-reqCh:
			if !ok {
				return nil
			}
			if d.onRequest(req) {
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}
			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C
		case <-quietC:
			if d.tryEmit(ctx, "quiet") {
				quietC, maxC = nil, nil
			}
		case <-maxC:
			if d.tryEmit(ctx, "max_delay") {
				quietC, maxC = nil, nil
			}
		case <-pollC:
			pollC = nil
			if d.tryEmitAfterRunning(ctx) {
				quietC, maxC = nil, nil
				continue
			}
		}

		if d.shouldPoll() && pollC == nil {
			resetTimer(pollTimer, d.cfg.PollInterval)
			pollC = pollTimer.C
		}
	}
}

// onRequest records req and reports whether it opened a new burst.
func (d *Debouncer) onRequest(req events.RebuildRequested) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := req.RequestedAt
	if now.IsZero() {
		now = time.Now()
	}
	kind := req.Kind
	if kind == 0 {
		kind = events.RebuildFull
	}
	first := !d.pending
	if first {
		d.pending = true
		d.firstRequestAt = now
		d.requestCount = 0
		d.kind = 0
	}
	d.kind = d.kind.Merge(kind)
	d.lastRequestAt = now
	d.lastReason = req.Reason
	d.lastPath = req.Path
	d.requestCount++
	return first
}

func (d *Debouncer) shouldPoll() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pendingAfterRun
}

func (d *Debouncer) tryEmit(ctx context.Context, cause string) bool {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return true
	}
	if d.cfg.CheckBuildRunning() {
		d.pendingAfterRun = true
		d.mu.Unlock()
		return false
	}
	evt := events.RebuildNow{
		Kind:          d.kind,
		TriggeredAt:   time.Now(),
		RequestCount:  d.requestCount,
		LastReason:    d.lastReason,
		LastPath:      d.lastPath,
		FirstRequest:  d.firstRequestAt,
		LastRequest:   d.lastRequestAt,
		DebounceCause: cause,
	}
	d.pending = false
	d.pendingAfterRun = false
	d.kind = 0
	d.mu.Unlock()

	d.cfg.Recorder.IncRebuildTrigger(cause)
	_ = d.bus.Publish(ctx, evt)
	return true
}

func (d *Debouncer) tryEmitAfterRunning(ctx context.Context) bool {
	d.mu.Lock()
	if !d.pendingAfterRun {
		d.mu.Unlock()
		return true
	}
	d.mu.Unlock()

	if d.cfg.CheckBuildRunning() {
		return false
	}
	return d.tryEmit(ctx, "after_running")
}
