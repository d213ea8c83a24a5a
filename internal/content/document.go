package content

import (
	"path"
	"strings"
	"time"

	"git.home.luguber.info/inful/pagebrew/internal/frontmatter"
)

// Class is the structural role of a content file.
type Class int

const (
	ClassPage Class = iota
	ClassHome
	ClassBlogPost
	// ClassBlogIndex is blog/index.md: it introduces the blog listing and is
	// neither a post nor a navigable page.
	ClassBlogIndex
)

func (c Class) String() string {
	switch c {
	case ClassHome:
		return "home"
	case ClassBlogPost:
		return "blogPost"
	case ClassBlogIndex:
		return "blogIndex"
	default:
		return "page"
	}
}

const (
	homeFile      = "index.md"
	blogDir       = "blog/"
	blogIndexFile = "blog/index.md"

	// BlogListingURL is the canonical URL of the blog listing page.
	BlogListingURL = "/blog.html"
	HomeURL        = "/"
)

// Classify derives the document class from a slash-separated path relative to the content root.
func Classify(rel string) Class {
	switch {
	case rel == homeFile:
		return ClassHome
	case rel == blogIndexFile:
		return ClassBlogIndex
	case strings.HasPrefix(rel, blogDir):
		return ClassBlogPost
	default:
		return ClassPage
	}
}

// URLFor returns the canonical site URL of a document.
func URLFor(rel string, class Class) string {
	switch class {
	case ClassHome:
		return HomeURL
	case ClassBlogPost:
		return "/blog/" + strings.TrimSuffix(path.Base(rel), path.Ext(rel)) + ".html"
	case ClassBlogIndex:
		return BlogListingURL
	default:
		return "/" + strings.TrimSuffix(rel, path.Ext(rel)) + ".html"
	}
}

// PostLink is a neighbor reference within the post index.
type PostLink struct {
	Title string
	URL   string
}

// Document is one parsed content file. It is built fresh every build and
// only the neighbor links of blog posts are attached after construction.
type Document struct {
	Path         string
	Class        Class
	URL          string
	HTML         []byte
	Fields       frontmatter.Fields
	Fingerprint  string
	ModTime      time.Time
	LastModified time.Time

	NextPost     *PostLink
	PreviousPost *PostLink
}

// Title is shorthand for the normalized front matter title.
func (d *Document) Title() string { return d.Fields.Title }

// NavTitle prefers an explicit nav_title front matter key.
func (d *Document) NavTitle() string {
	if v, ok := d.Fields.Raw["nav_title"].(string); ok && v != "" {
		return v
	}
	return d.Fields.Title
}

// Dir returns the slash-separated directory of the document relative to the content root.
func (d *Document) Dir() string { return path.Dir(d.Path) }
