package templates

import (
	"html/template"
	"strings"
	"time"
)

// FuncMap returns the helpers available to every page template.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"date":       func(t time.Time) string { return t.Format("January 2, 2006") },
		"dateFormat": func(layout string, t time.Time) string { return t.Format(layout) },
		"iso":        func(t time.Time) string { return t.Format(time.RFC3339) },
		"lower":      strings.ToLower,
		"join":       func(items []string, sep string) string { return strings.Join(items, sep) },
		"isActive":   IsActive,
	}
}

// IsActive reports whether a navigation URL points at the page being rendered.
func IsActive(url, current string) bool {
	return canonical(url) == canonical(current)
}

func canonical(u string) string {
	if u == "/index.html" || u == "" {
		return "/"
	}
	return u
}
