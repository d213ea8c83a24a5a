package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagebrew/internal/content"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/stylesheet"
	"git.home.luguber.info/inful/pagebrew/internal/testutil"
	"git.home.luguber.info/inful/pagebrew/internal/themes"
)

type recordingBuilder struct {
	source []byte
	opts   stylesheet.Options
}

func (r *recordingBuilder) Name() string { return "recording" }

func (r *recordingBuilder) Build(_ context.Context, source []byte, opts stylesheet.Options) ([]byte, error) {
	r.source = source
	r.opts = opts
	return []byte("/* compiled */"), nil
}

func TestCopyImages_PreservesSubdirectories(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "dist")
	testutil.WriteTree(t, root, map[string]string{
		"img/logo.png":        "logo",
		"blog/pics/logo.png":  "other logo",
		"notes.md":            "# notes",
		"dist/public/old.png": "stale",
		"templates/shot.png":  "template asset",
		".cache/hidden.png":   "hidden",
	})

	p := &Pipeline{ContentRoot: root, Skip: content.SkipPaths(out), Workers: 2}
	res, err := p.CopyImages(t.Context(), out)
	require.NoError(t, err)
	require.Equal(t, 2, res.Copied)
	require.Zero(t, res.Failed)

	fa := testutil.NewFileAssertions(t, out)
	fa.AssertFileContains("public/img/logo.png", "logo")
	fa.AssertFileContains("public/blog/pics/logo.png", "other logo")
	fa.AssertNoFile("public/notes.md")
	fa.AssertNoFile("public/templates/shot.png")
}

func TestCopyImage_FailureIsWarning(t *testing.T) {
	p := &Pipeline{ContentRoot: t.TempDir()}
	err := p.CopyImage(t.TempDir(), "missing.png")
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryAsset))
	require.True(t, ferrors.HasSeverity(err, ferrors.SeverityWarning))
}

func TestRemoveImage(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"a/b.gif": "gif"})
	p := &Pipeline{ContentRoot: root}

	require.NoError(t, p.CopyImage(out, "a/b.gif"))
	require.FileExists(t, PublicPath(out, "a/b.gif"))
	require.NoError(t, p.RemoveImage(out, "a/b.gif"))
	require.NoFileExists(t, PublicPath(out, "a/b.gif"))
	require.NoError(t, p.RemoveImage(out, "a/b.gif"), "removing twice is fine")
}

func TestBuildStylesheet_ThemeSourceAndGlobs(t *testing.T) {
	root := t.TempDir()
	out := t.TempDir()
	testutil.WriteTree(t, out, map[string]string{"css/stale.css": "old"})
	testutil.WriteTree(t, root, map[string]string{"templates/post.html": "{{define \"content\"}}{{end}}"})

	theme, err := themes.Get("minimal")
	require.NoError(t, err)
	rb := &recordingBuilder{}
	p := &Pipeline{ContentRoot: root, Stylesheets: rb}

	require.NoError(t, p.BuildStylesheet(t.Context(), out, theme))

	want, err := theme.ReadFile(themes.StylesheetFile)
	require.NoError(t, err)
	require.Equal(t, want, rb.source)
	require.Len(t, rb.opts.ContentGlobs, 3)
	require.Equal(t, filepath.Join(out, "**", "*.html"), rb.opts.ContentGlobs[0])
	require.Equal(t, filepath.Join(root, "templates", "**", "*.html"), rb.opts.ContentGlobs[2])
	require.Equal(t, themes.TailwindFile, filepath.Base(rb.opts.ConfigPath))

	fa := testutil.NewFileAssertions(t, out)
	fa.AssertFileContains("css/style.css", "/* compiled */")
	fa.AssertNoFile("css/stale.css")
}

func TestBuildStylesheet_PrefersContentRootTailwindConfig(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{themes.TailwindFile: "module.exports = {}"})
	theme, err := themes.Get("aurora")
	require.NoError(t, err)
	rb := &recordingBuilder{}

	p := &Pipeline{ContentRoot: root, Stylesheets: rb}
	require.NoError(t, p.BuildStylesheet(t.Context(), t.TempDir(), theme))
	require.Equal(t, filepath.Join(root, themes.TailwindFile), rb.opts.ConfigPath)
	require.Len(t, rb.opts.ContentGlobs, 2)
}

func TestBuildStylesheet_MissingSourceIsFatal(t *testing.T) {
	theme := themes.FromFS("bare", fstest.MapFS{"base.html": {Data: []byte("x")}})
	p := &Pipeline{ContentRoot: t.TempDir()}
	out := t.TempDir()

	err := p.BuildStylesheet(t.Context(), out, theme)
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryStylesheet))
	require.True(t, ferrors.HasSeverity(err, ferrors.SeverityFatal))
	_, statErr := os.Stat(StylesheetPath(out))
	require.True(t, os.IsNotExist(statErr))
}

func TestBuildStylesheet_PassthroughDefault(t *testing.T) {
	theme, err := themes.Get("frappe")
	require.NoError(t, err)
	out := t.TempDir()
	p := &Pipeline{ContentRoot: t.TempDir()}
	require.NoError(t, p.BuildStylesheet(t.Context(), out, theme))

	want, err := theme.ReadFile(themes.StylesheetFile)
	require.NoError(t, err)
	got, err := os.ReadFile(StylesheetPath(out))
	require.NoError(t, err)
	require.Equal(t, want, got)
}
