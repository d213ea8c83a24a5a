// Package templates resolves and caches the page templates of the active
// theme, honouring per-file overrides from the content root's templates/
// directory.
package templates

import (
	"errors"
	"html/template"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/pagebrew/internal/content"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/themes"
)

// Key selects a template by role.
type Key string

const (
	KeyIndex Key = "index"
	KeyPost  Key = "post"
	KeyBase  Key = "base"
	KeyBlog  Key = "blog"
)

const layoutName = "base.html"

// ErrNotFound is returned when no template exists for an optional key (the blog listing).
var ErrNotFound = errors.New("template not found")

// KeyFor maps a document class to its template key.
func KeyFor(class content.Class) Key {
	switch class {
	case content.ClassHome:
		return KeyIndex
	case content.ClassBlogPost:
		return KeyPost
	case content.ClassBlogIndex:
		return KeyBlog
	default:
		return KeyBase
	}
}

// source is one resolved template file.
type source struct {
	name    string // logical name within a theme, e.g. "partials/nav.html"
	path    string // absolute path for custom files, "theme:<name>/<file>" for bundled ones
	custom  bool
	modTime time.Time
	size    int64
}

// Handle is a parsed template ready for execution. It is safe for concurrent use.
type Handle struct {
	Key  Key
	Path string
	tmpl *template.Template
	deps []source
}

// Execute renders the layout with data.
func (h *Handle) Execute(w io.Writer, data any) error {
	return h.tmpl.ExecuteTemplate(w, layoutName, data)
}

// DependsOn reports whether the handle was parsed from path.
func (h *Handle) DependsOn(p string) bool {
	for _, d := range h.deps {
		if d.path == p {
			return true
		}
	}
	return false
}

func (h *Handle) fresh() bool {
	for _, d := range h.deps {
		if !d.custom {
			continue
		}
		info, err := os.Stat(d.path)
		if err != nil || !info.ModTime().Equal(d.modTime) || info.Size() != d.size {
			return false
		}
	}
	return true
}

// Resolver resolves template keys against a custom template directory and a
// theme bundle. Handles are cached by the resolved path of their key file and
// revalidated against the modification time of every file they were parsed from.
type Resolver struct {
	customDir string
	funcs     template.FuncMap

	mu    sync.Mutex
	cache map[string]*Handle
}

// NewResolver creates a resolver. customDir may be empty or missing.
func NewResolver(customDir string) *Resolver {
	return &Resolver{customDir: customDir, funcs: FuncMap(), cache: make(map[string]*Handle)}
}

// CustomDir returns the custom template directory.
func (r *Resolver) CustomDir() string { return r.customDir }

// CustomTemplatesPresent reports whether the custom template directory exists.
func (r *Resolver) CustomTemplatesPresent() bool {
	if r.customDir == "" {
		return false
	}
	info, err := os.Stat(r.customDir)
	return err == nil && info.IsDir()
}

// HasBlogListing reports whether a blog listing template is resolvable.
func (r *Resolver) HasBlogListing(theme *themes.Theme) bool {
	_, ok := r.locate(string(KeyBlog)+".html", theme)
	return ok
}

// Resolve returns the handle for key. A missing blog template yields
// ErrNotFound; any other missing template is a validation error.
func (r *Resolver) Resolve(key Key, theme *themes.Theme) (*Handle, error) {
	file := string(key) + ".html"
	keySrc, ok := r.locate(file, theme)
	if !ok {
		if key == KeyBlog {
			return nil, ErrNotFound
		}
		return nil, ferrors.ValidationError("no template resolvable").
			WithContext("template", string(key)).
			WithContext("theme", theme.Name).
			Build()
	}

	r.mu.Lock()
	h, cached := r.cache[keySrc.path]
	r.mu.Unlock()
	if cached && h.fresh() {
		return h, nil
	}

	h, err := r.parse(key, keySrc, theme)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[keySrc.path] = h
	r.mu.Unlock()
	return h, nil
}

// Evict drops every cached handle that depends on p. p may be a custom
// template path or a file newly created under the custom directory that
// would shadow a bundled file. It returns the number of evicted handles.
func (r *Resolver) Evict(p string) int {
	logical := ""
	if r.customDir != "" {
		if rel, err := filepath.Rel(r.customDir, p); err == nil && !strings.HasPrefix(rel, "..") {
			logical = filepath.ToSlash(rel)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, h := range r.cache {
		if h.DependsOn(p) || (logical != "" && dependsOnName(h, logical)) {
			delete(r.cache, k)
			n++
		}
	}
	return n
}

// Purge drops every cached handle.
func (r *Resolver) Purge() {
	r.mu.Lock()
	r.cache = make(map[string]*Handle)
	r.mu.Unlock()
}

// Len reports the number of cached handles.
func (r *Resolver) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func dependsOnName(h *Handle, name string) bool {
	for _, d := range h.deps {
		if d.name == name {
			return true
		}
	}
	return false
}

func (r *Resolver) locate(name string, theme *themes.Theme) (source, bool) {
	if r.customDir != "" {
		p := filepath.Join(r.customDir, filepath.FromSlash(name))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return source{name: name, path: p, custom: true, modTime: info.ModTime(), size: info.Size()}, true
		}
	}
	if theme != nil && theme.Has(name) {
		return source{name: name, path: "theme:" + theme.Name + "/" + name}, true
	}
	return source{}, false
}

func (r *Resolver) partials(theme *themes.Theme) []source {
	names := map[string]struct{}{}
	for _, p := range theme.Partials() {
		names[p] = struct{}{}
	}
	if r.customDir != "" {
		matches, _ := filepath.Glob(filepath.Join(r.customDir, themes.PartialsDir, "*.html"))
		for _, m := range matches {
			names[path.Join(themes.PartialsDir, filepath.Base(m))] = struct{}{}
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	out := make([]source, 0, len(sorted))
	for _, n := range sorted {
		if src, ok := r.locate(n, theme); ok {
			out = append(out, src)
		}
	}
	return out
}

func (r *Resolver) read(src source, theme *themes.Theme) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if src.custom {
		data, err = os.ReadFile(src.path)
	} else {
		data, err = theme.ReadFile(src.name)
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryTemplate, "failed to read template").
			Fatal().WithContext("path", src.path).Build()
	}
	return data, nil
}

// parse builds the template set: layout first, then partials, then the key
// file, whose define blocks override the layout's defaults.
func (r *Resolver) parse(key Key, keySrc source, theme *themes.Theme) (*Handle, error) {
	layout, ok := r.locate(layoutName, theme)
	if !ok {
		return nil, ferrors.ValidationError("no layout template resolvable").
			WithContext("template", layoutName).WithContext("theme", theme.Name).Build()
	}
	sources := []source{layout}
	sources = append(sources, r.partials(theme)...)
	if key != KeyBase {
		sources = append(sources, keySrc)
	}

	root := template.New(layoutName).Funcs(r.funcs)
	for i, src := range sources {
		data, err := r.read(src, theme)
		if err != nil {
			return nil, err
		}
		t := root
		if i > 0 {
			t = root.New(src.name)
		}
		if _, err := t.Parse(string(data)); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryTemplate, "failed to parse template").
				Fatal().WithContext("path", src.path).WithContext("template", string(key)).Build()
		}
	}
	return &Handle{Key: key, Path: keySrc.path, tmpl: root, deps: sources}, nil
}
