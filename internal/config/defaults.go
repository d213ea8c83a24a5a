package config

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config)
	Domain() string
}

// SiteDefaultApplier fills site identity fields.
type SiteDefaultApplier struct {
	ContentRoot string
}

func (s *SiteDefaultApplier) Domain() string { return "site" }

func (s *SiteDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Theme == "" {
		cfg.Theme = DefaultTheme
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}
	if cfg.Name == "" {
		cfg.Name = SiteNameFromDir(s.ContentRoot)
	}
	if cfg.Description == "" {
		cfg.Description = "Welcome to " + cfg.Name
	}
}

// BuildDefaultApplier normalizes build tuning values.
type BuildDefaultApplier struct{}

func (b *BuildDefaultApplier) Domain() string { return "build" }

func (b *BuildDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Build.Workers < 0 {
		cfg.Build.Workers = 0
	}
	cfg.Build.Highlight = strings.TrimSpace(cfg.Build.Highlight)
}

// ServerDefaultApplier fills the default dev server port.
type ServerDefaultApplier struct{}

func (s *ServerDefaultApplier) Domain() string { return "server" }

func (s *ServerDefaultApplier) ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
}

// DefaultAppliers returns the appliers in application order.
func DefaultAppliers(contentRoot string) []DefaultApplier {
	return []DefaultApplier{
		&SiteDefaultApplier{ContentRoot: contentRoot},
		&BuildDefaultApplier{},
		&ServerDefaultApplier{},
	}
}

// ApplyDefaults runs every domain applier over cfg.
func ApplyDefaults(cfg *Config, contentRoot string) {
	for _, a := range DefaultAppliers(contentRoot) {
		a.ApplyDefaults(cfg)
	}
}

// SiteNameFromDir derives a display name from a directory: "my-cool_site" becomes "My Cool Site".
func SiteNameFromDir(dir string) string {
	base := dir
	if abs, err := filepath.Abs(dir); err == nil {
		base = abs
	}
	base = filepath.Base(base)
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	if len(words) == 0 {
		return "My Site"
	}
	caser := cases.Title(language.English)
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}
