package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pagebrew/internal/assets/imagetypes"
	"git.home.luguber.info/inful/pagebrew/internal/build"
	"git.home.luguber.info/inful/pagebrew/internal/content"
	"git.home.luguber.info/inful/pagebrew/internal/events"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/metrics"
)

// Builder is the part of build.Builder the controller drives.
type Builder interface {
	Build(ctx context.Context) (*build.Report, error)
	BuildStyles(ctx context.Context) (*build.Report, error)
	SyncAsset(ctx context.Context, rel string, remove bool) error
	Running() bool
	Fingerprint(rel string) (string, bool)
	EvictTemplate(path string) int
	ReloadConfig() (bool, error)
}

// State is the controller lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateInitialBuild
	StateWatching
	StateRebuilding
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialBuild:
		return "initial_build"
	case StateWatching:
		return "watching"
	case StateRebuilding:
		return "rebuilding"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

const (
	defaultDebounce      = 300 * time.Millisecond
	defaultMaxDelay      = 3 * time.Second
	defaultAssetDebounce = 100 * time.Millisecond
)

// Options configure a Controller.
type Options struct {
	ContentRoot string
	OutputRoot  string
	ConfigPath  string

	Debounce      time.Duration
	MaxDelay      time.Duration
	AssetDebounce time.Duration
	// Resync requests a full rebuild at this interval. Zero disables it.
	Resync time.Duration

	// Bus carries rebuild requests and build notifications. A private bus is
	// created when nil.
	Bus      *events.Bus
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Controller watches the content root and turns changes into serialized
// rebuilds, stylesheet rebuilds and asset syncs.
type Controller struct {
	opts       Options
	builder    Builder
	bus        *events.Bus
	ownBus     bool
	classifier Classifier
	recorder   metrics.Recorder
	logger     *slog.Logger
	dispatch   map[ChangeKind]func(context.Context, Change)

	state atomic.Int32
	busy  atomic.Bool
	ready chan struct{}

	watcher *Watcher

	assetMu     sync.Mutex
	assetTimers map[string]*time.Timer
	assetLatest map[string]AssetAction
	assetJobs   chan assetJob
}

type assetJob struct {
	rel    string
	action AssetAction
}

// NewController validates opts and prepares a controller for b.
func NewController(b Builder, opts Options) (*Controller, error) {
	if b == nil {
		return nil, ferrors.ValidationError("builder is required").Build()
	}
	if opts.ContentRoot == "" {
		return nil, ferrors.ValidationError("content root is required").Build()
	}
	root, err := filepath.Abs(opts.ContentRoot)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid content root").Build()
	}
	opts.ContentRoot = root
	if opts.OutputRoot != "" {
		if opts.OutputRoot, err = filepath.Abs(opts.OutputRoot); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid output root").Build()
		}
	}
	if opts.ConfigPath != "" {
		if opts.ConfigPath, err = filepath.Abs(opts.ConfigPath); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid config path").Build()
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.AssetDebounce <= 0 {
		opts.AssetDebounce = defaultAssetDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	c := &Controller{
		opts:    opts,
		builder: b,
		bus:     opts.Bus,
		classifier: Classifier{
			ContentRoot: opts.ContentRoot,
			OutputRoot:  opts.OutputRoot,
			ConfigPath:  opts.ConfigPath,
		},
		recorder:    metrics.OrNoop(opts.Recorder),
		logger:      opts.Logger.With(slog.String("component", "watch")),
		ready:       make(chan struct{}),
		assetTimers: make(map[string]*time.Timer),
		assetLatest: make(map[string]AssetAction),
		assetJobs:   make(chan assetJob, 64),
	}
	if c.bus == nil {
		c.bus = events.NewBus()
		c.ownBus = true
	}
	c.dispatch = map[ChangeKind]func(context.Context, Change){
		KindContent:  c.onContent,
		KindAsset:    c.onAsset,
		KindStyle:    c.onStyle,
		KindTemplate: c.onTemplate,
		KindConfig:   c.onConfig,
	}
	return c, nil
}

// Bus returns the bus the controller publishes on.
func (c *Controller) Bus() *events.Bus { return c.bus }

func (c *Controller) State() State { return State(c.state.Load()) }

// Ready is closed once Run is watching.
func (c *Controller) Ready() <-chan struct{} { return c.ready }

// InitialBuild runs the first full build. Its error is returned so the
// caller can refuse to start a session on a broken site.
func (c *Controller) InitialBuild(ctx context.Context) (*build.Report, error) {
	c.state.Store(int32(StateInitialBuild))
	defer c.state.CompareAndSwap(int32(StateInitialBuild), int32(StateIdle))
	report, err := c.builder.Build(ctx)
	c.publishFinished(ctx, events.RebuildFull, report, err)
	return report, err
}

// Run watches until ctx ends. Build failures are logged and reported on
// the bus; only a watcher setup failure makes Run return an error.
func (c *Controller) Run(ctx context.Context) error {
	skip := func(abs string) bool {
		return c.opts.OutputRoot != "" && build.IsOutputPath(c.opts.OutputRoot, abs)
	}
	w, err := NewWatcher(skip, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	c.watcher = w

	n, err := w.AddTree(c.opts.ContentRoot)
	if err != nil {
		return err
	}
	if c.opts.ConfigPath != "" {
		w.Add(filepath.Dir(c.opts.ConfigPath))
	}

	debouncer, err := NewDebouncer(c.bus, DebouncerConfig{
		QuietWindow:       c.opts.Debounce,
		MaxDelay:          c.opts.MaxDelay,
		CheckBuildRunning: func() bool { return c.busy.Load() || c.builder.Running() },
		Recorder:          c.recorder,
	})
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		c.stopAssetTimers()
		wg.Wait()
		c.state.Store(int32(StateStopped))
		if c.ownBus {
			c.bus.Close()
		}
	}()

	rebuilds, unsubscribe := events.Subscribe[events.RebuildNow](c.bus, 4)
	defer unsubscribe()

	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = debouncer.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		c.worker(runCtx, rebuilds)
	}()
	select {
	case <-debouncer.Ready():
	case <-ctx.Done():
		return nil
	}

	if c.opts.Resync > 0 {
		resync, err := NewResync(c.bus, c.opts.Resync, c.logger)
		if err != nil {
			return err
		}
		if err := resync.Start(); err != nil {
			return err
		}
		defer resync.Stop()
	}

	c.state.Store(int32(StateWatching))
	close(c.ready)
	c.logger.Info("Watching for changes", logfields.Path(c.opts.ContentRoot), logfields.Count(n))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			c.handle(runCtx, ev)
		case werr, ok := <-w.Errors():
			if !ok {
				return nil
			}
			c.logger.Warn("Watch error", logfields.Error(werr))
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev fsnotify.Event) {
	if c.handleDir(ctx, ev) {
		return
	}
	change, ok := c.classifier.Classify(ev)
	if !ok {
		return
	}
	c.recorder.IncWatchEvent(string(change.Kind()))
	c.logger.Debug("Change detected",
		logfields.Event(string(change.Kind())),
		logfields.Path(change.ChangedPath()),
		slog.String("op", ev.Op.String()))
	c.dispatch[change.Kind()](ctx, change)
}

// handleDir keeps the watched set in sync with directory creation and
// removal. It reports whether ev was a directory event.
func (c *Controller) handleDir(ctx context.Context, ev fsnotify.Event) bool {
	abs := filepath.Clean(ev.Name)
	switch {
	case ev.Op.Has(fsnotify.Create):
		fi, err := os.Stat(abs)
		if err != nil || !fi.IsDir() {
			return false
		}
		if !c.inContent(abs) {
			return true
		}
		added, err := c.watcher.AddTree(abs)
		if err != nil {
			c.logger.Warn("Failed to watch new directory", logfields.Path(abs), logfields.Error(err))
			return true
		}
		c.recorder.IncWatchEvent("dir")
		c.logger.Debug("Watching new directory", logfields.Path(abs), logfields.Count(added))
		c.scanNewDir(ctx, abs)
		return true
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		if !c.watcher.IsWatched(abs) {
			return false
		}
		c.watcher.Forget(abs)
		c.recorder.IncWatchEvent("dir")
		c.request(ctx, events.RebuildFull, "directory removed", abs)
		return true
	}
	return false
}

func (c *Controller) inContent(abs string) bool {
	rel, err := filepath.Rel(c.opts.ContentRoot, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	if c.opts.OutputRoot != "" && build.IsOutputPath(c.opts.OutputRoot, abs) {
		return false
	}
	return !ShouldIgnore(filepath.ToSlash(rel))
}

// scanNewDir handles files that landed in a directory before it was watched,
// typically after a move or a recursive copy.
func (c *Controller) scanNewDir(ctx context.Context, dir string) {
	hasMarkdown := false
	var images []string
	files, err := content.DiscoverFiles(dir, nil, func(name string) bool {
		return content.IsMarkdown(name) || imagetypes.IsImage(name)
	})
	if err != nil {
		c.logger.Warn("Failed to scan new directory", logfields.Path(dir), logfields.Error(err))
		return
	}
	for _, f := range files {
		abs := filepath.Join(dir, filepath.FromSlash(f))
		if !c.inContent(abs) {
			continue
		}
		if content.IsMarkdown(f) {
			hasMarkdown = true
			break
		}
		rel, _ := filepath.Rel(c.opts.ContentRoot, abs)
		images = append(images, filepath.ToSlash(rel))
	}
	if hasMarkdown {
		c.request(ctx, events.RebuildFull, "directory added", dir)
		return
	}
	for _, rel := range images {
		c.scheduleAsset(rel, AssetCopy)
	}
}

func (c *Controller) request(ctx context.Context, kind events.RebuildKind, reason, path string) {
	err := c.bus.Publish(ctx, events.RebuildRequested{
		Kind:        kind,
		Reason:      reason,
		Path:        path,
		RequestedAt: time.Now(),
	})
	if err != nil && ctx.Err() == nil {
		c.logger.Warn("Failed to request rebuild", logfields.Error(err))
	}
}

func (c *Controller) onContent(ctx context.Context, ch Change) {
	cc := ch.(ContentChanged)
	if cc.Op.Has(fsnotify.Write) || cc.Op.Has(fsnotify.Create) {
		if c.unchanged(cc.Path) {
			c.logger.Debug("Content unchanged since last build", logfields.Path(cc.Path))
			return
		}
	}
	c.request(ctx, events.RebuildFull, "content", cc.Path)
}

// unchanged reports whether rel still has the fingerprint it was last built with.
func (c *Controller) unchanged(rel string) bool {
	last, ok := c.builder.Fingerprint(rel)
	if !ok {
		return false
	}
	raw, err := os.ReadFile(filepath.Join(c.opts.ContentRoot, filepath.FromSlash(rel)))
	if err != nil {
		return false
	}
	return content.Fingerprint(raw) == last
}

func (c *Controller) onAsset(_ context.Context, ch Change) {
	ac := ch.(AssetChanged)
	c.scheduleAsset(ac.Path, ac.Action)
}

func (c *Controller) onStyle(ctx context.Context, ch Change) {
	c.request(ctx, events.RebuildStyles, "stylesheet", ch.ChangedPath())
}

func (c *Controller) onTemplate(ctx context.Context, ch Change) {
	n := c.builder.EvictTemplate(ch.ChangedPath())
	c.logger.Debug("Template cache evicted", logfields.Template(ch.ChangedPath()), logfields.Count(n))
	c.request(ctx, events.RebuildFull, "template", ch.ChangedPath())
}

func (c *Controller) onConfig(ctx context.Context, ch Change) {
	changed, err := c.builder.ReloadConfig()
	if err != nil {
		c.logger.Warn("Configuration reload failed", logfields.Path(ch.ChangedPath()), logfields.Error(err))
		return
	}
	if !changed {
		return
	}
	c.logger.Info("Configuration changed", logfields.Path(ch.ChangedPath()))
	c.request(ctx, events.RebuildFull, "config", ch.ChangedPath())
}

// scheduleAsset debounces per path; the last action within the window wins.
func (c *Controller) scheduleAsset(rel string, action AssetAction) {
	c.assetMu.Lock()
	defer c.assetMu.Unlock()
	c.assetLatest[rel] = action
	if t, ok := c.assetTimers[rel]; ok {
		t.Stop()
	}
	var self *time.Timer
	self = time.AfterFunc(c.opts.AssetDebounce, func() {
		c.assetMu.Lock()
		if c.assetTimers[rel] != self {
			// Superseded by a later change to the same path.
			c.assetMu.Unlock()
			return
		}
		act := c.assetLatest[rel]
		delete(c.assetLatest, rel)
		delete(c.assetTimers, rel)
		c.assetMu.Unlock()
		select {
		case c.assetJobs <- assetJob{rel: rel, action: act}:
		default:
			c.logger.Warn("Asset queue full; change deferred to next build", logfields.Path(rel))
		}
	})
	c.assetTimers[rel] = self
}

func (c *Controller) stopAssetTimers() {
	c.assetMu.Lock()
	defer c.assetMu.Unlock()
	for rel, t := range c.assetTimers {
		t.Stop()
		delete(c.assetTimers, rel)
		delete(c.assetLatest, rel)
	}
}

// worker is the only goroutine that touches the output root during a session.
func (c *Controller) worker(ctx context.Context, rebuilds <-chan events.RebuildNow) {
	for {
		select {
		case <-ctx.Done():
			return
		case now, ok := <-rebuilds:
			if !ok {
				return
			}
			c.rebuild(ctx, now)
		case job := <-c.assetJobs:
			c.syncAsset(ctx, job)
		}
	}
}

func (c *Controller) rebuild(ctx context.Context, now events.RebuildNow) {
	c.busy.Store(true)
	c.state.Store(int32(StateRebuilding))
	defer func() {
		c.state.CompareAndSwap(int32(StateRebuilding), int32(StateWatching))
		c.busy.Store(false)
	}()

	c.logger.Info("Rebuilding",
		slog.String("kind", now.Kind.String()),
		slog.String("reason", now.LastReason),
		slog.String("cause", now.DebounceCause),
		logfields.Count(now.RequestCount))

	var (
		report *build.Report
		err    error
	)
	if now.Kind == events.RebuildStyles {
		report, err = c.builder.BuildStyles(ctx)
	} else {
		report, err = c.builder.Build(ctx)
	}
	if err != nil && ctx.Err() == nil {
		c.logger.Error("Rebuild failed; waiting for the next change", logfields.Error(err))
	}
	c.publishFinished(ctx, now.Kind, report, err)
}

func (c *Controller) syncAsset(ctx context.Context, job assetJob) {
	c.busy.Store(true)
	defer c.busy.Store(false)
	remove := job.action == AssetRemove
	err := c.builder.SyncAsset(ctx, job.rel, remove)
	if err != nil {
		c.logger.Warn("Asset sync failed", logfields.Path(job.rel), logfields.Error(err))
	} else {
		c.logger.Debug("Asset synced", logfields.Path(job.rel), logfields.Action(job.action.String()))
	}
	_ = c.bus.Publish(ctx, events.AssetSynced{Path: job.rel, Removed: remove, Err: err})
}

func (c *Controller) publishFinished(ctx context.Context, kind events.RebuildKind, report *build.Report, err error) {
	evt := events.BuildFinished{Kind: kind, Err: err, FinishedAt: time.Now()}
	if report != nil {
		evt.BuildID = report.ID
		evt.Outcome = string(report.Outcome)
	} else if err != nil {
		evt.Outcome = string(build.OutcomeFailed)
	}
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	pubCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = c.bus.Publish(pubCtx, evt)
}
