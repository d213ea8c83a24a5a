package content

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// SkipFunc reports whether a path (absolute) should be excluded from discovery.
type SkipFunc func(abs string, d fs.DirEntry) bool

// reservedDirs are never scanned for content.
var reservedDirs = map[string]struct{}{
	"templates":    {},
	"node_modules": {},
}

// IsMarkdown reports whether name has a .md extension (case-insensitive).
func IsMarkdown(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".md")
}

// Discover walks root and returns the slash-separated relative paths of all
// markdown files, in lexical walk order.
func Discover(root string, skip SkipFunc) ([]string, error) {
	return DiscoverFiles(root, skip, IsMarkdown)
}

// DiscoverFiles walks root like Discover but keeps files accepted by match.
func DiscoverFiles(root string, skip SkipFunc, match func(name string) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || (skip != nil && skip(p, d)) {
				return filepath.SkipDir
			}
			if _, reserved := reservedDirs[name]; reserved && filepath.Dir(p) == root {
				return filepath.SkipDir
			}
			if name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !match(name) {
			return nil
		}
		if skip != nil && skip(p, d) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

// SkipPaths returns a SkipFunc excluding the given absolute paths and everything below them.
func SkipPaths(paths ...string) SkipFunc {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		cleaned = append(cleaned, filepath.Clean(p))
	}
	return func(abs string, _ fs.DirEntry) bool {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
		for _, p := range cleaned {
			if abs == p || strings.HasPrefix(abs, p+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
}
