package watch

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/pagebrew/internal/assets/imagetypes"
	"git.home.luguber.info/inful/pagebrew/internal/build"
	"git.home.luguber.info/inful/pagebrew/internal/content"
	"git.home.luguber.info/inful/pagebrew/internal/themes"
)

// ChangeKind tags a classified filesystem change.
type ChangeKind string

const (
	KindContent  ChangeKind = "content"
	KindAsset    ChangeKind = "asset"
	KindStyle    ChangeKind = "style"
	KindTemplate ChangeKind = "template"
	KindConfig   ChangeKind = "config"
)

// Change is one classified filesystem event.
type Change interface {
	Kind() ChangeKind
	ChangedPath() string
}

// ContentChanged is a markdown file write, creation, removal or rename.
type ContentChanged struct {
	Path string // relative, slash-separated
	Op   fsnotify.Op
}

// AssetAction is what to do with the published copy of an image.
type AssetAction int

const (
	AssetCopy AssetAction = iota
	AssetRemove
)

func (a AssetAction) String() string {
	if a == AssetRemove {
		return "remove"
	}
	return "copy"
}

// AssetChanged is an image change below the content root.
type AssetChanged struct {
	Path      string // relative, slash-separated
	ImageKind string // e.g. "png"
	Action    AssetAction
}

// StyleSourceChanged is a template or stylesheet source change. Template
// changes affect rendered pages; the others only the stylesheet.
type StyleSourceChanged struct {
	Path     string // absolute
	Template bool
}

// ConfigChanged is a change to the configuration document.
type ConfigChanged struct {
	Path string
}

func (c ContentChanged) Kind() ChangeKind        { return KindContent }
func (c ContentChanged) ChangedPath() string     { return c.Path }
func (c AssetChanged) Kind() ChangeKind          { return KindAsset }
func (c AssetChanged) ChangedPath() string       { return c.Path }
func (c ConfigChanged) Kind() ChangeKind         { return KindConfig }
func (c ConfigChanged) ChangedPath() string      { return c.Path }
func (c StyleSourceChanged) ChangedPath() string { return c.Path }

func (c StyleSourceChanged) Kind() ChangeKind {
	if c.Template {
		return KindTemplate
	}
	return KindStyle
}

// Classifier turns raw fsnotify events into Changes.
type Classifier struct {
	ContentRoot string
	OutputRoot  string
	ConfigPath  string
}

const templatesDir = "templates"

// Classify returns the change for ev, or false when the event is irrelevant.
func (c *Classifier) Classify(ev fsnotify.Event) (Change, bool) {
	if ev.Op == fsnotify.Chmod || ev.Name == "" {
		return nil, false
	}
	abs := filepath.Clean(ev.Name)
	if c.ConfigPath != "" && abs == filepath.Clean(c.ConfigPath) {
		return ConfigChanged{Path: abs}, true
	}
	if c.OutputRoot != "" && build.IsOutputPath(c.OutputRoot, abs) {
		return nil, false
	}
	rel, err := filepath.Rel(c.ContentRoot, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil, false
	}
	rel = filepath.ToSlash(rel)
	if ShouldIgnore(rel) {
		return nil, false
	}

	removed := ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
	inTemplates := strings.HasPrefix(rel, templatesDir+"/")
	name := filepath.Base(abs)

	switch {
	case inTemplates && strings.EqualFold(filepath.Ext(name), ".html"):
		return StyleSourceChanged{Path: abs, Template: true}, true
	case rel == themes.TailwindFile || strings.EqualFold(filepath.Ext(name), ".css"):
		return StyleSourceChanged{Path: abs}, true
	case inTemplates:
		return nil, false
	case content.IsMarkdown(name):
		return ContentChanged{Path: rel, Op: ev.Op}, true
	case imagetypes.IsImage(name):
		action := AssetCopy
		if removed {
			action = AssetRemove
		}
		return AssetChanged{Path: rel, ImageKind: imagetypes.Kind(name), Action: action}, true
	}
	return nil, false
}

// ShouldIgnore reports whether a slash-separated relative path is hidden,
// an editor temp file, or inside node_modules.
func ShouldIgnore(rel string) bool {
	for _, seg := range strings.Split(rel, "/") {
		if strings.HasPrefix(seg, ".") || seg == "node_modules" {
			return true
		}
	}
	base := rel[strings.LastIndex(rel, "/")+1:]
	switch {
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasSuffix(base, ".tmp"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"),
		base == "4913",
		base == "Thumbs.db":
		return true
	}
	return false
}
