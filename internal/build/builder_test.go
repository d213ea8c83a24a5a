package build

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/pagebrew/internal/config"
	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/stylesheet"
	"git.home.luguber.info/inful/pagebrew/internal/testutil"
)

type countingStyles struct {
	builds int
}

func (c *countingStyles) Name() string { return "counting" }

func (c *countingStyles) Build(_ context.Context, source []byte, _ stylesheet.Options) ([]byte, error) {
	c.builds++
	return append([]byte("/* built */\n"), source...), nil
}

var scenario = map[string]string{
	"index.md":     "---\ntitle: Home\n---\nWelcome\n",
	"about.md":     "---\ntitle: About\n---\nAbout us ![logo](img/logo.png)\n",
	"blog/a.md":    "---\ntitle: A\ndate: 2024-01-01\n---\nPost A\n",
	"blog/b.md":    "---\ntitle: B\ndate: 2024-02-01\n---\nPost B\n",
	"img/logo.png": "png",
}

func newBuilder(t *testing.T, root string, persisted []byte, mutate func(*Options)) (*Builder, *config.MemoryPersister) {
	t.Helper()
	p := config.NewMemoryPersister(persisted)
	store, err := config.Open(p, root)
	require.NoError(t, err)
	opts := Options{ContentRoot: root, Store: store, Stylesheets: stylesheet.Passthrough{}}
	if mutate != nil {
		mutate(&opts)
	}
	b, err := New(opts)
	require.NoError(t, err)
	return b, p
}

func TestBuild_EndToEndScenario(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	b, p := newBuilder(t, root, nil, nil)

	report, err := b.Build(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, 4, report.Documents)
	require.Equal(t, 2, report.Posts)
	require.Equal(t, 5, report.Pages)
	require.Equal(t, 1, report.ImagesCopied)

	out := filepath.Join(root, config.DefaultOutputDir)
	require.Equal(t, out, b.OutputRoot())
	testutil.NewFileAssertions(t, out).
		AssertFileExists("index.html").
		AssertFileExists("about.html").
		AssertFileExists("blog/a.html").
		AssertFileExists("blog/b.html").
		AssertFileExists("blog.html").
		AssertFileExists("css/style.css").
		AssertFileExists("public/img/logo.png").
		AssertFileContains("about.html", `src="/public/img/logo.png"`)

	postB := testutil.ParseHTMLFile(t, filepath.Join(out, "blog", "b.html"))
	require.Equal(t, 0, postB.Find("a.post-next").Length())
	href, _ := postB.Find("a.post-previous").Attr("href")
	require.Equal(t, "/blog/a.html", href)

	postA := testutil.ParseHTMLFile(t, filepath.Join(out, "blog", "a.html"))
	require.Equal(t, 0, postA.Find("a.post-previous").Length())
	href, _ = postA.Find("a.post-next").Attr("href")
	require.Equal(t, "/blog/b.html", href)

	home := testutil.ParseHTMLFile(t, filepath.Join(out, "index.html"))
	require.Equal(t, []string{"Home", "About", "Blog"}, testutil.Texts(home.Find("nav a:not(.font-bold)")))

	menu, ok := b.Store().Menu()
	require.True(t, ok)
	require.Equal(t, []config.MenuItem{
		{Title: "Home", URL: "/"},
		{Title: "About", URL: "/about.html"},
		{Title: "Blog", URL: "/blog.html"},
	}, menu)
	require.Equal(t, 1, p.Saves())
	require.Equal(t, config.DefaultTheme, b.Store().Snapshot().Theme)

	fp, ok := b.Fingerprint("blog/a.md")
	require.True(t, ok)
	require.NotEmpty(t, fp)
}

func TestBuild_MissingRootLeavesOutputUntouched(t *testing.T) {
	base := t.TempDir()
	out := filepath.Join(base, "out")
	testutil.WriteTree(t, out, map[string]string{"index.html": "previous"})
	b, p := newBuilder(t, filepath.Join(base, "missing"), nil, func(o *Options) { o.OutputDir = out })

	report, err := b.Build(t.Context())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.Equal(t, OutcomeFailed, report.Outcome)
	require.Equal(t, StageResultFatal, report.StageResults[StageValidate])

	testutil.NewFileAssertions(t, out).AssertFileContains("index.html", "previous")
	require.Equal(t, []string{"out"}, dirNames(t, base))
	require.Zero(t, p.Saves())
}

func TestBuild_EmptyRootStillProducesStylesheet(t *testing.T) {
	root := t.TempDir()
	styles := &countingStyles{}
	b, _ := newBuilder(t, root, nil, func(o *Options) { o.Stylesheets = styles })

	report, err := b.Build(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Equal(t, StageResultWarning, report.StageResults[StageIndex])
	require.Equal(t, 1, styles.builds)
	testutil.NewFileAssertions(t, b.OutputRoot()).
		AssertFileContains("css/style.css", "/* built */").
		AssertFileExists("blog.html").
		AssertNoFile("index.html")
}

func TestBuild_FailureKeepsPreviousOutput(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	b, _ := newBuilder(t, root, nil, nil)
	_, err := b.Build(t.Context())
	require.NoError(t, err)

	testutil.WriteTree(t, root, map[string]string{
		"templates/post.html": `{{define "content"}}{{.Page.Title.Broken}}{{end}}`,
	})
	report, err := b.Build(t.Context())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryRender) || ferrors.HasCategory(err, ferrors.CategoryTemplate))
	require.Equal(t, OutcomeFailed, report.Outcome)

	testutil.NewFileAssertions(t, b.OutputRoot()).
		AssertFileExists("blog/a.html").
		AssertFileExists("index.html")
	for _, name := range dirNames(t, root) {
		require.NotContains(t, name, stagingInfix, "leftover staging directory")
	}
}

func TestBuild_FullRebuildDropsRemovedPages(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	b, _ := newBuilder(t, root, nil, nil)
	_, err := b.Build(t.Context())
	require.NoError(t, err)

	require.NoError(t, removeFile(filepath.Join(root, "about.md")))
	_, err = b.Build(t.Context())
	require.NoError(t, err)
	testutil.NewFileAssertions(t, b.OutputRoot()).
		AssertNoFile("about.html").
		AssertFileExists("index.html")
}

func TestBuild_ThemeOverrideIsPersisted(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"index.md": "# hi\n"})
	b, _ := newBuilder(t, root, []byte("theme: minimal\nname: Site\n"), func(o *Options) { o.Theme = "aurora" })

	report, err := b.Build(t.Context())
	require.NoError(t, err)
	require.Equal(t, "aurora", report.Theme)
	require.Equal(t, "aurora", b.Store().Snapshot().Theme)
}

func TestBuild_UnknownThemeIsValidationError(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"index.md": "# hi\n"})
	b, p := newBuilder(t, root, []byte("theme: nope\n"), nil)

	_, err := b.Build(t.Context())
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.Zero(t, p.Saves())
	testutil.NewFileAssertions(t, root).AssertNoFile(config.DefaultOutputDir)
}

func TestBuild_PersistedMenuIsNotOverwritten(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	persisted := []byte("theme: minimal\nname: Site\nmenu:\n  - title: Start\n    url: /\n")
	b, p := newBuilder(t, root, persisted, nil)

	_, err := b.Build(t.Context())
	require.NoError(t, err)
	menu, _ := b.Store().Menu()
	require.Equal(t, []config.MenuItem{{Title: "Start", URL: "/"}}, menu)
	require.Zero(t, p.Saves(), "nothing changed, nothing written")

	home := testutil.ParseHTMLFile(t, filepath.Join(b.OutputRoot(), "index.html"))
	require.Equal(t, []string{"Start"}, testutil.Texts(home.Find("nav a:not(.font-bold)")))
}

func TestBuild_StageTimeoutIsWarningInWatchMode(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	persisted := []byte("theme: minimal\nname: Site\nbuild:\n  stage_timeout: 1ns\n")

	watch, _ := newBuilder(t, root, persisted, func(o *Options) { o.Mode = ModeWatch })
	report, err := watch.Build(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeWarning, report.Outcome)
	require.Less(t, report.Pages, 5)

	oneShot, _ := newBuilder(t, root, persisted, nil)
	_, err = oneShot.Build(t.Context())
	require.Error(t, err)
}

func TestBuild_ZeroStageTimeoutIsUnbounded(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	persisted := []byte("theme: minimal\nname: Site\nbuild:\n  stage_timeout: 0s\n")

	b, _ := newBuilder(t, root, persisted, nil)
	report, err := b.Build(t.Context())
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, report.Outcome)
	require.Equal(t, 5, report.Pages)
}

func TestBuild_CanceledContext(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	b, _ := newBuilder(t, root, nil, nil)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	report, err := b.Build(ctx)
	require.Error(t, err)
	require.Equal(t, OutcomeCanceled, report.Outcome)
	testutil.NewFileAssertions(t, root).AssertNoFile(config.DefaultOutputDir)
}

func TestBuildStyles(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	styles := &countingStyles{}
	b, _ := newBuilder(t, root, nil, func(o *Options) { o.Stylesheets = styles })

	_, err := b.BuildStyles(t.Context())
	require.Error(t, err, "no output yet")

	_, err = b.Build(t.Context())
	require.NoError(t, err)
	report, err := b.BuildStyles(t.Context())
	require.NoError(t, err)
	require.Equal(t, KindStyles, report.Kind)
	require.Equal(t, 2, styles.builds)
	require.Same(t, report, b.LastReport())
}

func TestSyncAsset(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)
	b, _ := newBuilder(t, root, nil, nil)

	require.NoError(t, b.SyncAsset(t.Context(), "img/new.png", false), "before the first build it is a no-op")

	_, err := b.Build(t.Context())
	require.NoError(t, err)
	testutil.WriteTree(t, root, map[string]string{"img/new.png": "new"})
	require.NoError(t, b.SyncAsset(t.Context(), "img/new.png", false))
	fa := testutil.NewFileAssertions(t, b.OutputRoot())
	fa.AssertFileContains("public/img/new.png", "new")

	require.NoError(t, b.SyncAsset(t.Context(), "img/new.png", true))
	fa.AssertNoFile("public/img/new.png")
}

func TestIsOutputPath(t *testing.T) {
	out := filepath.Join(string(filepath.Separator), "site", "dist")
	for _, p := range []string{
		out,
		filepath.Join(out, "css", "style.css"),
		out + ".staging-123",
		filepath.Join(out+".staging-123", "index.html"),
		out + ".prev-abc",
	} {
		require.True(t, IsOutputPath(out, p), p)
	}
	for _, p := range []string{
		filepath.Join(string(filepath.Separator), "site", "distribution"),
		filepath.Join(string(filepath.Separator), "site", "index.md"),
		filepath.Join(string(filepath.Separator), "other"),
	} {
		require.False(t, IsOutputPath(out, p), p)
	}
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
}

func TestBuild_DerivesMenuAfterConfigCommittedWithoutOne(t *testing.T) {
	root := t.TempDir()
	testutil.WriteTree(t, root, scenario)

	p := config.NewMemoryPersister(nil)
	store, err := config.Open(p, root)
	require.NoError(t, err)
	name := "Renamed"
	store.Update(config.Patch{Name: &name})
	_, err = store.Commit()
	require.NoError(t, err)

	reopened, err := config.Open(p, root)
	require.NoError(t, err)
	b, err := New(Options{ContentRoot: root, Store: reopened, Stylesheets: stylesheet.Passthrough{}})
	require.NoError(t, err)

	_, err = b.Build(t.Context())
	require.NoError(t, err)

	menu, ok := b.Store().Menu()
	require.True(t, ok)
	require.Len(t, menu, 3)
	about := testutil.ParseHTMLFile(t, filepath.Join(b.OutputRoot(), "about.html"))
	require.Equal(t, []string{"Home", "About", "Blog"}, testutil.Texts(about.Find("nav a:not(.font-bold)")))
}
