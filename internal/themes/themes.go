// Package themes bundles the built-in site themes.
package themes

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
)

//go:embed minimal aurora frappe
var bundles embed.FS

// Well-known files inside a theme bundle.
const (
	StylesheetFile = "style.css"
	TailwindFile   = "tailwind.config.js"
	PartialsDir    = "partials"
)

// Theme is one embedded bundle of templates and stylesheet source.
type Theme struct {
	Name string
	fsys fs.FS
}

// Names lists the built-in themes.
func Names() []string {
	entries, _ := fs.ReadDir(bundles, ".")
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out
}

// Get returns the named theme. Unknown names are a validation error.
func Get(name string) (*Theme, error) {
	sub, err := fs.Sub(bundles, name)
	if err == nil {
		if _, statErr := fs.Stat(sub, "base.html"); statErr == nil && name != "" && name != "." {
			return &Theme{Name: name, fsys: sub}, nil
		}
	}
	return nil, ferrors.ValidationError("unknown theme").
		WithContext("theme", name).
		WithContext("available", Names()).
		Build()
}

// FromFS wraps an arbitrary bundle, e.g. a theme directory on disk.
func FromFS(name string, fsys fs.FS) *Theme {
	return &Theme{Name: name, fsys: fsys}
}

// FS exposes the bundle contents.
func (t *Theme) FS() fs.FS { return t.fsys }

// Has reports whether the bundle contains name.
func (t *Theme) Has(name string) bool {
	_, err := fs.Stat(t.fsys, name)
	return err == nil
}

// ReadFile reads one bundle file.
func (t *Theme) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(t.fsys, name)
}

// Partials lists the partial template files, sorted.
func (t *Theme) Partials() []string {
	matches, _ := fs.Glob(t.fsys, path.Join(PartialsDir, "*.html"))
	sort.Strings(matches)
	return matches
}

// Extract writes the bundle's template files to dir, for tools that scan
// templates on disk. It returns the glob matching the extracted templates.
func (t *Theme) Extract(dir string) (string, error) {
	err := fs.WalkDir(t.fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(p))
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if path.Ext(p) != ".html" {
			return nil
		}
		data, err := fs.ReadFile(t.fsys, p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o600)
	})
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "**", "*.html"), nil
}
