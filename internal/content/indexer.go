package content

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/pagebrew/internal/config"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/logfields"
)

// PageEntry is one navigable page.
type PageEntry struct {
	Title string
	URL   string
}

// SiteMetadata is site-level identity shown by every template.
type SiteMetadata struct {
	Name        string
	Description string
	Footer      string
}

// DateSource supplies last-modified dates for documents.
type DateSource interface {
	LastModified(rel string) (time.Time, bool)
}

// IndexOptions parameterize one indexing pass.
type IndexOptions struct {
	Site SiteMetadata
	// HasBlogListing adds the synthetic Blog entry to the page index.
	HasBlogListing bool
}

// Site is the result of indexing a content root.
type Site struct {
	// Documents holds every parsed document in discovery order.
	Documents []*Document
	Home      *Document
	BlogIndex *Document
	Posts     []*Document
	Pages     []PageEntry
	Metadata  SiteMetadata
	Warnings  []string
}

// Indexer scans a content root and derives the cross-document indices.
type Indexer struct {
	Root    string
	Cache   *ParseCache
	Skip    SkipFunc
	Dates   DateSource
	Workers int
	Logger  *slog.Logger
}

// Index discovers and parses every markdown file under the root and builds
// the post index, page index and site metadata. A missing root is a
// validation error; an empty root is a warning.
func (ix *Indexer) Index(ctx context.Context, opts IndexOptions) (*Site, error) {
	logger := ix.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if info, err := os.Stat(ix.Root); err != nil || !info.IsDir() {
		return nil, ferrors.ValidationError("content root does not exist").
			WithContext("path", ix.Root).WithCause(err).Build()
	}

	files, err := Discover(ix.Root, ix.Skip)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "content discovery failed").
			Fatal().WithContext("path", ix.Root).Build()
	}

	site := &Site{Metadata: opts.Site}
	if len(files) == 0 {
		logger.Warn("No markdown files found in content root", logfields.Path(ix.Root))
		site.Warnings = append(site.Warnings, "no markdown files found")
	}

	docs, err := ix.parseAll(ctx, files)
	if err != nil {
		return nil, err
	}
	site.Documents = docs

	var posts []*Document
	var pages []*Document
	for _, d := range docs {
		switch d.Class {
		case ClassHome:
			site.Home = d
		case ClassBlogIndex:
			site.BlogIndex = d
		case ClassBlogPost:
			posts = append(posts, d)
		default:
			pages = append(pages, d)
		}
	}

	site.Posts = BuildPostIndex(posts)
	site.Pages = BuildPageIndex(site.Home, pages, opts.HasBlogListing)
	site.Warnings = append(site.Warnings, duplicateURLWarnings(logger, posts)...)
	if opts.HasBlogListing {
		site.Warnings = append(site.Warnings, listingCollisionWarnings(logger, pages)...)
	}
	return site, nil
}

func (ix *Indexer) parseAll(ctx context.Context, files []string) ([]*Document, error) {
	docs := make([]*Document, len(files))
	workers := ix.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := ix.Cache.Get(rel)
			if err != nil {
				return err
			}
			if ix.Dates != nil {
				if t, ok := ix.Dates.LastModified(rel); ok {
					doc.LastModified = t
				}
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

// BuildPostIndex sorts posts by date descending, stable on discovery order,
// and links each post to its neighbors: NextPost is the newer entry and
// PreviousPost the older one.
func BuildPostIndex(posts []*Document) []*Document {
	out := append([]*Document(nil), posts...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Fields.Date.After(out[j].Fields.Date)
	})
	for i, p := range out {
		p.NextPost, p.PreviousPost = nil, nil
		if i > 0 {
			p.NextPost = &PostLink{Title: out[i-1].Title(), URL: out[i-1].URL}
		}
		if i < len(out)-1 {
			p.PreviousPost = &PostLink{Title: out[i+1].Title(), URL: out[i+1].URL}
		}
	}
	return out
}

// BuildPageIndex returns Home first, the pages sorted by case-folded title,
// and Blog last when a listing template exists. A page whose URL is the
// listing's is left out then, since the listing replaces it.
func BuildPageIndex(home *Document, pages []*Document, hasBlogListing bool) []PageEntry {
	homeTitle := "Home"
	if home != nil {
		if v, ok := home.Fields.Raw["nav_title"].(string); ok && v != "" {
			homeTitle = v
		}
	}
	entries := make([]PageEntry, 0, len(pages)+2)
	for _, p := range pages {
		if hasBlogListing && p.URL == BlogListingURL {
			continue
		}
		entries = append(entries, PageEntry{Title: p.NavTitle(), URL: p.URL})
	}
	fold := cases.Fold()
	sort.SliceStable(entries, func(i, j int) bool {
		return fold.String(entries[i].Title) < fold.String(entries[j].Title)
	})

	out := make([]PageEntry, 0, len(entries)+2)
	out = append(out, PageEntry{Title: homeTitle, URL: HomeURL})
	out = append(out, entries...)
	if hasBlogListing {
		out = append(out, PageEntry{Title: "Blog", URL: BlogListingURL})
	}
	return out
}

// NavMenu converts a page index into persisted menu entries.
func NavMenu(pages []PageEntry) []config.MenuItem {
	out := make([]config.MenuItem, 0, len(pages))
	for _, p := range pages {
		out = append(out, config.MenuItem{Title: p.Title, URL: p.URL})
	}
	return out
}

// ResolveMenu prefers a persisted menu; otherwise it derives one from pages.
func ResolveMenu(persisted []config.MenuItem, ok bool, pages []PageEntry) (menu []config.MenuItem, derived bool) {
	if ok {
		return persisted, false
	}
	return NavMenu(pages), true
}

func listingCollisionWarnings(logger *slog.Logger, pages []*Document) []string {
	var warnings []string
	for _, p := range pages {
		if p.URL != BlogListingURL {
			continue
		}
		logger.Warn("Page URL collides with the blog listing; the listing overwrites it",
			logfields.Path(p.Path), slog.String("url", p.URL))
		warnings = append(warnings, "page "+p.Path+" collides with blog listing "+BlogListingURL)
	}
	return warnings
}

func duplicateURLWarnings(logger *slog.Logger, posts []*Document) []string {
	seen := make(map[string]string, len(posts))
	var warnings []string
	for _, p := range posts {
		if first, dup := seen[p.URL]; dup {
			logger.Warn("Duplicate post URL; the later file overwrites the earlier one",
				logfields.Path(p.Path), slog.String("conflicts_with", first), slog.String("url", p.URL))
			warnings = append(warnings, "duplicate post url "+p.URL)
			continue
		}
		seen[p.URL] = p.Path
	}
	return warnings
}
