// Package imagetypes holds the image extension allow-list shared by the
// markdown rewriter, the asset pipeline and the watch classifier.
package imagetypes

import (
	"path/filepath"
	"strings"
)

var extensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".svg": {}, ".webp": {},
	".bmp": {}, ".tiff": {}, ".ico": {}, ".avif": {}, ".jfif": {}, ".pjpeg": {},
	".pjp": {}, ".apng": {}, ".heif": {}, ".heic": {},
}

// IsImage reports whether name has a recognized image extension (case-insensitive).
func IsImage(name string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Kind returns the normalized extension without the dot, or "" for non-images.
func Kind(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := extensions[ext]; !ok {
		return ""
	}
	return strings.TrimPrefix(ext, ".")
}
