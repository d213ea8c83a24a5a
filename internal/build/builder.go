package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/pagebrew/internal/assets"
	"git.home.luguber.info/inful/pagebrew/internal/config"
	"git.home.luguber.info/inful/pagebrew/internal/content"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
	"git.home.luguber.info/inful/pagebrew/internal/metrics"
	"git.home.luguber.info/inful/pagebrew/internal/stylesheet"
	"git.home.luguber.info/inful/pagebrew/internal/templates"
	"git.home.luguber.info/inful/pagebrew/internal/themes"
)

// Mode selects how stage timeouts are treated.
type Mode int

const (
	// ModeOneShot fails the build when a stage times out.
	ModeOneShot Mode = iota
	// ModeWatch downgrades stage timeouts to warnings so a dev session survives one bad file.
	ModeWatch
)

// Build kinds, as reported and used as metric labels.
const (
	KindFull   = "full"
	KindStyles = "styles"
	KindAsset  = "asset"
)

// Options configure a Builder.
type Options struct {
	ContentRoot string
	Store       *config.Store
	// Theme and OutputDir override the configured values when set.
	Theme     string
	OutputDir string
	Mode      Mode
	// LiveReload is exposed to templates.
	LiveReload bool
	// Stylesheets defaults to the tailwind CLI found through the configuration.
	Stylesheets stylesheet.Builder
	Recorder    metrics.Recorder
	Logger      *slog.Logger
	Now         func() time.Time
}

// State is the mutable state threaded through the stages of one build.
type State struct {
	Report      *Report
	Config      config.Config
	Mode        Mode
	ContentRoot string
	OutputRoot  string
	StageDir    string
	Theme       *themes.Theme
	Site        *content.Site
	Menu        []config.MenuItem
	MenuDerived bool
	Now         time.Time

	builder *Builder
	logger  *slog.Logger
}

// Builder runs builds for one content root.
type Builder struct {
	opts        Options
	root        string
	resolver    *templates.Resolver
	stylesheets stylesheet.Builder
	recorder    metrics.Recorder
	logger      *slog.Logger

	mu       sync.Mutex
	running  atomic.Bool
	last     atomic.Pointer[Report]
	lastFull atomic.Pointer[Report]
}

// New validates opts and creates a Builder.
func New(opts Options) (*Builder, error) {
	if opts.Store == nil {
		return nil, ferrors.ValidationError("configuration store is required").Build()
	}
	if opts.ContentRoot == "" {
		opts.ContentRoot = "."
	}
	root, err := filepath.Abs(opts.ContentRoot)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "resolve content root").Fatal().Build()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := &Builder{
		opts:     opts,
		root:     root,
		resolver: templates.NewResolver(filepath.Join(root, "templates")),
		recorder: metrics.OrNoop(opts.Recorder),
		logger:   opts.Logger,
	}
	b.stylesheets = opts.Stylesheets
	if b.stylesheets == nil {
		cfg := opts.Store.Snapshot()
		b.stylesheets = stylesheet.Detect(cfg.Build.Tailwind, opts.Logger)
	}
	return b, nil
}

// ContentRoot is the absolute content root.
func (b *Builder) ContentRoot() string { return b.root }

// Resolver exposes the template cache so the watch loop can evict entries.
func (b *Builder) Resolver() *templates.Resolver { return b.resolver }

// EvictTemplate drops cached templates parsed from path.
func (b *Builder) EvictTemplate(path string) int { return b.resolver.Evict(path) }

// ReloadConfig re-reads the configuration document. It reports whether the
// contents changed since the last load or commit.
func (b *Builder) ReloadConfig() (bool, error) { return b.opts.Store.Reload() }

// Store returns the configuration service the builder commits to.
func (b *Builder) Store() *config.Store { return b.opts.Store }

// Running reports whether any build operation is in progress.
func (b *Builder) Running() bool { return b.running.Load() }

// LastReport returns the most recent report of any kind, or nil.
func (b *Builder) LastReport() *Report { return b.last.Load() }

// Fingerprint returns the fingerprint rel had in the last successful full build.
func (b *Builder) Fingerprint(rel string) (string, bool) {
	r := b.lastFull.Load()
	if r == nil {
		return "", false
	}
	fp, ok := r.Fingerprints[rel]
	return fp, ok
}

// OutputRoot resolves the output directory against the content root.
func (b *Builder) OutputRoot() string {
	return b.outputRoot(b.opts.Store.Snapshot())
}

func (b *Builder) outputRoot(cfg config.Config) string {
	return ResolveOutputRoot(b.root, b.opts.OutputDir, cfg)
}

// ResolveOutputRoot picks override, then the configured output directory,
// then the default, and resolves relative paths against contentRoot.
func ResolveOutputRoot(contentRoot, override string, cfg config.Config) string {
	dir := override
	if dir == "" {
		dir = cfg.OutputDir
	}
	if dir == "" {
		dir = config.DefaultOutputDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(contentRoot, dir)
	}
	return filepath.Clean(dir)
}

func (b *Builder) themeName(cfg config.Config) string {
	switch {
	case b.opts.Theme != "":
		return b.opts.Theme
	case cfg.Theme != "":
		return cfg.Theme
	default:
		return config.DefaultTheme
	}
}

func (b *Builder) pipeline(st *State) *assets.Pipeline {
	return &assets.Pipeline{
		ContentRoot: b.root,
		Skip:        st.skip,
		Workers:     st.Config.Build.Workers,
		Stylesheets: b.stylesheets,
		Minify:      b.opts.Mode == ModeOneShot,
		Logger:      st.logger,
		Recorder:    b.recorder,
	}
}

func (b *Builder) newState(kind string) *State {
	id := uuid.NewString()
	cfg := b.opts.Store.Snapshot()
	report := newReport(id, kind)
	return &State{
		Report:      report,
		Config:      cfg,
		Mode:        b.opts.Mode,
		ContentRoot: b.root,
		OutputRoot:  b.outputRoot(cfg),
		Now:         b.opts.Now(),
		builder:     b,
		logger:      b.logger.With(logfields.BuildID(id)),
	}
}

func (st *State) skip(abs string, _ os.DirEntry) bool {
	return IsOutputPath(st.OutputRoot, abs)
}

// stageContext bounds a stage by the configured stage timeout. A zero
// timeout leaves the stage unbounded.
func (st *State) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	d := st.Config.Build.StageTimeoutDuration()
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// timedOut reports whether err is a stage timeout rather than a caller cancellation.
func timedOut(parent context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}

// Build runs a full build and promotes it over the output root. A failed
// build leaves the previous output untouched.
func (b *Builder) Build(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running.Store(true)
	defer b.running.Store(false)

	st := b.newState(KindFull)
	st.logger.Info("Build started", logfields.Path(st.ContentRoot))

	err := runStages(ctx, st, fullStages(), b.recorder)
	if err == nil {
		if err = promoteStaging(st.StageDir, st.OutputRoot, st.Report.ID); err != nil {
			err = newFatalStageError(StagePromote, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to promote build output").
				Fatal().WithContext("path", st.OutputRoot).Build())
		}
	}
	if err != nil {
		abortStaging(st.StageDir)
		return b.fail(st, err)
	}
	b.commitConfig(st)
	return b.succeed(st), nil
}

func (b *Builder) commitConfig(st *State) {
	store := b.opts.Store
	store.SetTheme(st.Theme.Name)
	if st.MenuDerived {
		store.EnsureMenu(st.Menu)
	}
	wrote, err := store.Commit()
	if err != nil {
		st.Report.warn(err)
		st.logger.Warn("Failed to persist configuration", logfields.Path(store.Location()), logfields.Error(err))
		return
	}
	if wrote {
		st.logger.Info("Configuration saved", logfields.Path(store.Location()))
	}
}

func (b *Builder) succeed(st *State) *Report {
	r := st.Report
	r.finish()
	b.last.Store(r)
	if r.Kind == KindFull {
		b.lastFull.Store(r)
	}
	b.recorder.ObserveBuildDuration(r.Kind, r.Duration())
	b.recorder.IncBuildOutcome(r.Kind, string(r.Outcome))
	st.logger.Info("Build completed",
		logfields.Outcome(string(r.Outcome)),
		logfields.Count(r.Pages),
		logfields.DurationMS(float64(r.Duration().Microseconds())/1000),
		slog.String("summary", r.Summary()))
	return r
}

func (b *Builder) fail(st *State, err error) (*Report, error) {
	r := st.Report
	r.Errors = append(r.Errors, err)
	r.finish()
	b.last.Store(r)
	b.recorder.ObserveBuildDuration(r.Kind, r.Duration())
	b.recorder.IncBuildOutcome(r.Kind, string(r.Outcome))
	st.logger.Error("Build failed", logfields.Outcome(string(r.Outcome)), logfields.Error(err))
	return r, err
}

// BuildStyles regenerates only the stylesheet of the current output root.
func (b *Builder) BuildStyles(ctx context.Context) (*Report, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running.Store(true)
	defer b.running.Store(false)

	st := b.newState(KindStyles)
	if _, err := os.Stat(st.OutputRoot); err != nil {
		return b.fail(st, ferrors.BuildError("no output to restyle; run a full build first").
			WithCause(err).WithContext("path", st.OutputRoot).Build())
	}
	stages := []StageDef{
		{Name: StageValidate, Fn: resolveTheme},
		{Name: StageStyles, Fn: func(ctx context.Context, st *State) error {
			return st.buildStylesheet(ctx, st.OutputRoot)
		}},
	}
	if err := runStages(ctx, st, stages, b.recorder); err != nil {
		return b.fail(st, err)
	}
	return b.succeed(st), nil
}

// SyncAsset publishes or removes one image in the current output root
// without a full rebuild. Nothing happens before the first build.
func (b *Builder) SyncAsset(_ context.Context, rel string, remove bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.running.Store(true)
	defer b.running.Store(false)

	st := b.newState(KindAsset)
	if _, err := os.Stat(st.OutputRoot); err != nil {
		st.logger.Debug("Output root missing; asset sync deferred to next build", logfields.Path(rel))
		return nil
	}
	p := b.pipeline(st)
	if remove {
		return p.RemoveImage(st.OutputRoot, rel)
	}
	return p.CopyImage(st.OutputRoot, rel)
}

func fullStages() []StageDef {
	return []StageDef{
		{Name: StageValidate, Fn: stageValidate},
		{Name: StageIndex, Fn: stageIndex},
		{Name: StageRender, Fn: stageRender},
		{Name: StageAssets, Fn: stageAssets},
		{Name: StageStyles, Fn: stageStyles},
	}
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage.
func runStages(ctx context.Context, st *State, defs []StageDef, recorder metrics.Recorder) error {
	for _, def := range defs {
		if err := ctx.Err(); err != nil {
			se := newCanceledStageError(def.Name, err)
			st.Report.recordStageResult(def.Name, StageResultCanceled, recorder)
			return se
		}
		warningsBefore := len(st.Report.Warnings)
		t0 := time.Now()
		err := def.Fn(ctx, st)
		dur := time.Since(t0)
		st.Report.StageDurations[def.Name] = dur
		recorder.ObserveStageDuration(string(def.Name), dur)

		se := classify(def.Name, err)
		switch {
		case se == nil:
			res := StageResultSuccess
			if len(st.Report.Warnings) > warningsBefore {
				res = StageResultWarning
			}
			st.Report.recordStageResult(def.Name, res, recorder)
		case se.Kind == StageErrorWarning:
			st.Report.warn(se)
			st.Report.recordStageResult(def.Name, StageResultWarning, recorder)
			st.logger.Warn("Stage completed with warning", logfields.Stage(string(def.Name)), logfields.Error(se.Err))
		default:
			st.Report.recordStageResult(def.Name, se.Kind.result(), recorder)
			return se
		}
		st.logger.Debug("Stage finished", logfields.Stage(string(def.Name)),
			logfields.DurationMS(float64(dur.Microseconds())/1000))
	}
	return nil
}

func (st *State) warnf(format string, args ...any) {
	err := fmt.Errorf(format, args...)
	st.Report.warn(err)
}
