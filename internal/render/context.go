package render

import (
	"html/template"
	"time"

	"git.home.luguber.info/inful/pagebrew/internal/config"
	"git.home.luguber.info/inful/pagebrew/internal/content"
)

// PageData describes the document being rendered.
type PageData struct {
	Title        string
	Description  string
	Date         time.Time
	Tags         []string
	URL          string
	LastModified time.Time
	NextPost     *content.PostLink
	PreviousPost *content.PostLink
}

// PostSummary is one entry of the post index as seen by templates.
type PostSummary struct {
	Title        string
	URL          string
	Description  string
	Date         time.Time
	Tags         []string
	NextPost     *content.PostLink
	PreviousPost *content.PostLink
}

// Context is the data passed to every page template.
type Context struct {
	Content     template.HTML
	Metadata    map[string]any
	Page        PageData
	Posts       []PostSummary
	Pages       []content.PageEntry
	Menu        []config.MenuItem
	Site        content.SiteMetadata
	Footer      string
	CurrentPage string
	BuildTime   time.Time
	// LiveReload is true when pages are served by the dev server with live reload on.
	LiveReload bool
}

// Shared holds the build-wide parts of every page context.
type Shared struct {
	Posts      []PostSummary
	Pages      []content.PageEntry
	Menu       []config.MenuItem
	Site       content.SiteMetadata
	BuildTime  time.Time
	LiveReload bool
}

// NewShared prepares the build-wide context from an indexed site.
func NewShared(site *content.Site, menu []config.MenuItem, buildTime time.Time) Shared {
	posts := make([]PostSummary, 0, len(site.Posts))
	for _, p := range site.Posts {
		posts = append(posts, PostSummary{
			Title:        p.Title(),
			URL:          p.URL,
			Description:  p.Fields.Description,
			Date:         p.Fields.Date,
			Tags:         p.Fields.Tags,
			NextPost:     p.NextPost,
			PreviousPost: p.PreviousPost,
		})
	}
	return Shared{Posts: posts, Pages: site.Pages, Menu: menu, Site: site.Metadata, BuildTime: buildTime}
}

// CurrentPage returns the navigation URL considered active for doc. Posts
// belong to the blog listing.
func CurrentPage(doc *content.Document) string {
	switch doc.Class {
	case content.ClassHome:
		return content.HomeURL
	case content.ClassBlogPost, content.ClassBlogIndex:
		return content.BlogListingURL
	default:
		return doc.URL
	}
}

// NewContext builds the template context for one document.
func NewContext(doc *content.Document, shared Shared) Context {
	ctx := shared.base()
	ctx.Content = template.HTML(doc.HTML) //nolint:gosec // site content is trusted input
	ctx.Metadata = doc.Fields.Raw
	ctx.Page = PageData{
		Title:        doc.Fields.Title,
		Description:  doc.Fields.Description,
		Date:         doc.Fields.Date,
		Tags:         doc.Fields.Tags,
		URL:          doc.URL,
		LastModified: doc.LastModified,
		NextPost:     doc.NextPost,
		PreviousPost: doc.PreviousPost,
	}
	ctx.CurrentPage = CurrentPage(doc)
	return ctx
}

// Blog listing defaults when no blog/index.md exists.
const (
	BlogTitle       = "Blog"
	BlogDescription = "All blog posts"
)

// NewBlogContext builds the listing page context. intro is blog/index.md, if any.
func NewBlogContext(intro *content.Document, shared Shared) Context {
	if intro != nil {
		return NewContext(intro, shared)
	}
	ctx := shared.base()
	ctx.Metadata = map[string]any{"title": BlogTitle, "description": BlogDescription}
	ctx.Page = PageData{Title: BlogTitle, Description: BlogDescription, Date: shared.BuildTime, URL: content.BlogListingURL}
	ctx.CurrentPage = content.BlogListingURL
	return ctx
}

func (s Shared) base() Context {
	return Context{
		Posts:      s.Posts,
		Pages:      s.Pages,
		Menu:       s.Menu,
		Site:       s.Site,
		Footer:     s.Site.Footer,
		BuildTime:  s.BuildTime,
		LiveReload: s.LiveReload,
	}
}
