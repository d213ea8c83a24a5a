package commands

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
	"git.home.luguber.info/inful/pagebrew/internal/testutil"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

func newSite(t *testing.T) string {
	t.Helper()
	t.Setenv("PATH", t.TempDir())
	root := filepath.Join(t.TempDir(), "my-site")
	testutil.WriteTree(t, root, map[string]string{
		"index.md":  "---\ntitle: Home\n---\nWelcome",
		"about.md":  "---\ntitle: About\n---\nAbout us",
		"blog/a.md": "---\ntitle: A\ndate: 2024-01-01\n---\nPost A",
	})
	return root
}

func global() *Global { return &Global{Logger: slog.New(slog.DiscardHandler)} }

func TestBuildCmd_BuildsSite(t *testing.T) {
	root := newSite(t)
	out := captureStdout(t)

	cmd := &BuildCmd{}
	require.NoError(t, cmd.Run(global(), &CLI{Content: root}))

	testutil.NewFileAssertions(t, filepath.Join(root, "dist")).
		AssertFileExists("index.html").
		AssertFileExists("about.html").
		AssertFileExists("blog/a.html").
		AssertFileExists("blog.html").
		AssertFileExists("css/style.css")
	require.Contains(t, out.String(), "Built 4 pages")
	require.FileExists(t, filepath.Join(root, "pagebrew.yaml"), "first successful build persists the configuration")
}

func TestBuildCmd_OutputOverride(t *testing.T) {
	root := newSite(t)
	captureStdout(t)
	target := filepath.Join(t.TempDir(), "public-site")

	cmd := &BuildCmd{Output: target, Theme: "aurora"}
	require.NoError(t, cmd.Run(global(), &CLI{Content: root}))
	require.FileExists(t, filepath.Join(target, "index.html"))

	data, err := os.ReadFile(filepath.Join(root, "pagebrew.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "theme: aurora")
}

func TestBuildCmd_MissingContentRoot(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	root := filepath.Join(t.TempDir(), "missing")
	captureStdout(t)

	err := (&BuildCmd{}).Run(global(), &CLI{Content: root})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.NoDirExists(t, root)
}

func TestConfigCmd_UpdatesAndPrints(t *testing.T) {
	root := newSite(t)
	out := captureStdout(t)

	cmd := &ConfigCmd{Name: "Field Notes", Footer: "Made by hand"}
	require.NoError(t, cmd.Run(global(), &CLI{Content: root}))

	require.Contains(t, out.String(), "name: Field Notes")
	data, err := os.ReadFile(filepath.Join(root, "pagebrew.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "footer: Made by hand")
	require.Contains(t, string(data), "theme: minimal")

	out.Reset()
	require.NoError(t, (&ConfigCmd{Description: "Notes"}).Run(global(), &CLI{Content: root}))
	require.Contains(t, out.String(), "name: Field Notes", "unset flags keep their value")
	require.Contains(t, out.String(), "description: Notes")
}

func TestConfigCmd_UnknownTheme(t *testing.T) {
	root := newSite(t)
	captureStdout(t)
	err := (&ConfigCmd{Theme: "nope"}).Run(global(), &CLI{Content: root})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	require.NoFileExists(t, filepath.Join(root, "pagebrew.yaml"))
}

func TestConfigCmd_ExplicitConfigPath(t *testing.T) {
	root := newSite(t)
	captureStdout(t)
	cfgPath := filepath.Join(t.TempDir(), "site.yaml")

	require.NoError(t, (&ConfigCmd{Name: "Elsewhere"}).Run(global(), &CLI{Content: root, Config: cfgPath}))
	require.FileExists(t, cfgPath)
	require.NoFileExists(t, filepath.Join(root, "pagebrew.yaml"))
}

func TestPreviewCmd_RequiresOutput(t *testing.T) {
	root := newSite(t)
	_, err := (&PreviewCmd{}).server(global(), &CLI{Content: root})
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	captureStdout(t)
	require.NoError(t, (&BuildCmd{}).Run(global(), &CLI{Content: root}))
	srv, err := (&PreviewCmd{Port: 4100}).server(global(), &CLI{Content: root})
	require.NoError(t, err)
	require.NotNil(t, srv)
}

func TestParseLogLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, "")
	require.Equal(t, slog.LevelInfo, parseLogLevel(false))
	require.Equal(t, slog.LevelDebug, parseLogLevel(true))
	t.Setenv(LogLevelEnv, "WARN")
	require.Equal(t, slog.LevelWarn, parseLogLevel(false))
	t.Setenv(LogLevelEnv, "error")
	require.Equal(t, slog.LevelError, parseLogLevel(false))
	require.Equal(t, slog.LevelDebug, parseLogLevel(true), "--verbose wins")
}

func TestCLI_Parse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"--content", "site", "-v", "serve", "--port", "4000", "--no-live-reload"})
	require.NoError(t, err)
	require.Equal(t, "serve", ctx.Command())
	require.Equal(t, "site", cli.Content)
	require.True(t, cli.Verbose)
	require.Equal(t, 4000, cli.Serve.Port)
	require.True(t, cli.Serve.NoLiveReload)

	ctx, err = parser.Parse([]string{"config", "--theme", "frappe", "--outputDir", "public"})
	require.NoError(t, err)
	require.Equal(t, "config", ctx.Command())
	require.Equal(t, "frappe", cli.Configure.Theme)
	require.Equal(t, "public", cli.Configure.OutputDir)
}

func TestCLI_ConfigPath(t *testing.T) {
	c := &CLI{}
	require.Equal(t, filepath.Join("/srv/site", "pagebrew.yaml"), c.ConfigPath("/srv/site"))
	c.Config = "/etc/pagebrew.yaml"
	require.Equal(t, "/etc/pagebrew.yaml", c.ConfigPath("/srv/site"))
}
