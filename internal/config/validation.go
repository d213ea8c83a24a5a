package config

import (
	"time"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
)

// ValidateConfig checks value ranges and duration syntax.
func ValidateConfig(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return ferrors.ConfigError("server.port out of range").WithContext("port", cfg.Server.Port).Build()
	}
	durations := []struct{ key, raw string }{
		{"build.stage_timeout", cfg.Build.StageTimeout},
		{"watch.debounce", cfg.Watch.Debounce},
		{"watch.max_delay", cfg.Watch.MaxDelay},
		{"watch.resync_interval", cfg.Watch.ResyncInterval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid duration").
				Fatal().WithContext("key", d.key).WithContext("value", d.raw).Build()
		}
		if parsed < 0 {
			return ferrors.ConfigError("negative duration").WithContext("key", d.key).WithContext("value", d.raw).Build()
		}
	}
	for i, item := range cfg.Menu {
		if item.URL == "" {
			return ferrors.ConfigError("menu entry without url").WithContext("index", i).Build()
		}
	}
	return nil
}
