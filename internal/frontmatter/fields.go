package frontmatter

import (
	"fmt"
	"strings"
	"time"
)

// Well-known keys that always exist after ApplyDefaults.
const (
	KeyTitle       = "title"
	KeyDescription = "description"
	KeyTags        = "tags"
	KeyDate        = "date"
)

// DefaultTitle is used when a document has no title.
const DefaultTitle = "Untitled"

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// Fields is the normalized front matter of one document.
type Fields struct {
	Title       string
	Description string
	Tags        []string
	Date        time.Time
	// Dated is false when Date was filled in from the build time.
	Dated bool
	// Raw holds every key from the source, with the well-known keys normalized.
	Raw map[string]any
}

// ApplyDefaults normalizes raw front matter. Missing or unparsable dates fall
// back to now so undated documents sort as the newest.
func ApplyDefaults(raw map[string]any, now time.Time) Fields {
	out := make(map[string]any, len(raw)+4)
	for k, v := range raw {
		out[k] = v
	}

	f := Fields{Raw: out}
	f.Title = stringValue(raw[KeyTitle])
	if f.Title == "" {
		f.Title = DefaultTitle
	}
	f.Description = stringValue(raw[KeyDescription])
	f.Tags = stringSlice(raw[KeyTags])
	if d, ok := ParseDate(raw[KeyDate]); ok {
		f.Date = d
		f.Dated = true
	} else {
		f.Date = now
	}

	out[KeyTitle] = f.Title
	out[KeyDescription] = f.Description
	out[KeyTags] = f.Tags
	out[KeyDate] = f.Date
	return f
}

// ParseDate accepts yaml timestamps and common string layouts.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, !d.IsZero()
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	case int:
		// Bare years such as `date: 2024`.
		if d > 0 {
			return time.Date(d, time.January, 1, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return append([]string{}, t...)
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		if out == nil {
			return []string{}
		}
		return out
	default:
		return []string{}
	}
}
