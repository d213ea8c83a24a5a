package config

import (
	"fmt"
	"time"
)

// Config is the persisted site configuration document (pagebrew.yaml).
type Config struct {
	Theme       string `yaml:"theme"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Footer      string `yaml:"footer,omitempty"`
	OutputDir   string `yaml:"outputDir"`
	Menu        Menu   `yaml:"menu,omitempty"`

	Build  BuildConfig  `yaml:"build,omitempty"`
	Watch  WatchConfig  `yaml:"watch,omitempty"`
	Server ServerConfig `yaml:"server,omitempty"`
}

// BuildConfig tunes the build pipeline.
type BuildConfig struct {
	StageTimeout string `yaml:"stage_timeout,omitempty"` // per-stage bound, e.g. "2m"
	Highlight    string `yaml:"highlight,omitempty"`     // chroma style name; empty disables highlighting
	Sanitize     bool   `yaml:"sanitize,omitempty"`      // run rendered markdown through a UGC policy
	GitDates     bool   `yaml:"git_dates,omitempty"`     // attach last commit dates to documents
	Tailwind     string `yaml:"tailwind,omitempty"`      // tailwind standalone binary; empty searches PATH
	Workers      int    `yaml:"workers,omitempty"`       // parse/copy concurrency within a stage
}

// WatchConfig tunes the watch loop.
type WatchConfig struct {
	Debounce       string `yaml:"debounce,omitempty"`
	MaxDelay       string `yaml:"max_delay,omitempty"`
	ResyncInterval string `yaml:"resync_interval,omitempty"`
}

// ServerConfig tunes the local dev server.
type ServerConfig struct {
	Port       int   `yaml:"port,omitempty"`
	LiveReload *bool `yaml:"live_reload,omitempty"`
	Metrics    bool  `yaml:"metrics,omitempty"`
}

const (
	DefaultTheme        = "minimal"
	DefaultOutputDir    = "dist"
	DefaultPort         = 3000
	DefaultStageTimeout = 2 * time.Minute
	DefaultDebounce     = 300 * time.Millisecond
	DefaultMaxDelay     = 3 * time.Second
)

// EffectiveFooter returns the configured footer or the copyright line for year.
func (c *Config) EffectiveFooter(year int) string {
	if c.Footer != "" {
		return c.Footer
	}
	return fmt.Sprintf("© %d %s. All rights reserved.", year, c.Name)
}

// LiveReloadEnabled defaults to true when unset.
func (s ServerConfig) LiveReloadEnabled() bool {
	return s.LiveReload == nil || *s.LiveReload
}

// StageTimeoutDuration returns the parsed stage timeout; 0 means unbounded.
func (b BuildConfig) StageTimeoutDuration() time.Duration {
	return parseDurationOr(b.StageTimeout, DefaultStageTimeout)
}

// DebounceDuration returns the quiet window for the watch debouncer.
func (w WatchConfig) DebounceDuration() time.Duration {
	return parseDurationOr(w.Debounce, DefaultDebounce)
}

// MaxDelayDuration returns the upper bound on debounced delay.
func (w WatchConfig) MaxDelayDuration() time.Duration {
	return parseDurationOr(w.MaxDelay, DefaultMaxDelay)
}

// ResyncDuration returns the periodic resync interval; 0 disables it.
func (w WatchConfig) ResyncDuration() time.Duration {
	return parseDurationOr(w.ResyncInterval, 0)
}

func parseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// clone returns a deep copy so snapshots never alias store state.
func (c *Config) clone() Config {
	out := *c
	if c.Menu != nil {
		out.Menu = append(Menu{}, c.Menu...)
	}
	if c.Server.LiveReload != nil {
		v := *c.Server.LiveReload
		out.Server.LiveReload = &v
	}
	return out
}
