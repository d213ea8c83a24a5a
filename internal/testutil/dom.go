// Package testutil holds helpers shared by package tests.
package testutil

import (
	"bytes"
	"os"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// ParseHTML parses the provided HTML payload into a goquery document for assertions.
func ParseHTML(t testing.TB, body []byte) *goquery.Document {
	t.Helper()

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

// ParseHTMLFile reads and parses an HTML file.
func ParseHTMLFile(t testing.TB, path string) *goquery.Document {
	t.Helper()

	// #nosec G304 - test helper, paths are controlled by test code
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return ParseHTML(t, body)
}

// Texts collects the trimmed text of every match.
func Texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, trimSpace(s.Text()))
	})
	return out
}

func trimSpace(s string) string {
	return string(bytes.TrimSpace([]byte(s)))
}
