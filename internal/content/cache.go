package content

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/markdown"
)

// ParseCache holds parse results for one build invocation, keyed by path and
// validated by modification time and size. Create a new cache per build.
type ParseCache struct {
	root     string
	renderer *markdown.Renderer
	now      time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry
	parses  atomic.Int64
}

type cacheEntry struct {
	modTime time.Time
	size    int64
	doc     *Document
}

// NewParseCache creates a cache. now is the build timestamp used for undated documents.
func NewParseCache(root string, renderer *markdown.Renderer, now time.Time) *ParseCache {
	return &ParseCache{
		root:     root,
		renderer: renderer,
		now:      now,
		entries:  make(map[string]*cacheEntry),
	}
}

// Parses reports how many files were actually parsed (cache misses).
func (c *ParseCache) Parses() int { return int(c.parses.Load()) }

// Get returns the parsed document for the slash-separated relative path.
// The returned document must be treated as read-only except for neighbor links.
func (c *ParseCache) Get(rel string) (*Document, error) {
	abs := filepath.Join(c.root, filepath.FromSlash(rel))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "stat content file").
			Fatal().WithContext("path", rel).Build()
	}

	c.mu.Lock()
	if e, ok := c.entries[rel]; ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		c.mu.Unlock()
		return e.doc, nil
	}
	c.mu.Unlock()

	raw, err := os.ReadFile(abs)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read content file").
			Fatal().WithContext("path", rel).Build()
	}
	doc, err := c.parse(rel, raw)
	if err != nil {
		return nil, err
	}
	doc.ModTime = info.ModTime()

	c.mu.Lock()
	c.entries[rel] = &cacheEntry{modTime: info.ModTime(), size: info.Size(), doc: doc}
	c.mu.Unlock()
	return doc, nil
}

func (c *ParseCache) parse(rel string, raw []byte) (*Document, error) {
	c.parses.Add(1)
	res, err := c.renderer.Parse(raw, c.now)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "failed to parse markdown").
			Fatal().WithContext("path", rel).Build()
	}
	class := Classify(rel)
	doc := &Document{
		Path:        rel,
		Class:       class,
		URL:         URLFor(rel, class),
		Fields:      res.Fields,
		Fingerprint: Fingerprint(raw),
	}
	doc.HTML, err = markdown.RewriteImages(res.HTML, doc.Dir())
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRender, "failed to rewrite image references").
			Fatal().WithContext("path", rel).Build()
	}
	return doc, nil
}
