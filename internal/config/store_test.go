package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_FirstRunUsesDerivedDefaults(t *testing.T) {
	root := filepath.Join(t.TempDir(), "my-cool-site")
	require.NoError(t, os.MkdirAll(root, 0o750))

	p := NewMemoryPersister(nil)
	s, err := Open(p, root)
	require.NoError(t, err)
	require.True(t, s.Dirty(), "first run must be persisted by the first commit")

	cfg := s.Snapshot()
	require.Equal(t, "My Cool Site", cfg.Name)
	require.Equal(t, "Welcome to My Cool Site", cfg.Description)
	require.Equal(t, DefaultTheme, cfg.Theme)
	require.Equal(t, DefaultOutputDir, cfg.OutputDir)
	require.Equal(t, DefaultPort, cfg.Server.Port)
	require.Equal(t, 0, p.Saves())
}

func TestStore_EnsureMenuNeverOverwritesUserEdits(t *testing.T) {
	p := NewMemoryPersister([]byte("theme: aurora\nname: Site\nmenu:\n  - title: Start\n    url: /\n"))
	s, err := Open(p, t.TempDir())
	require.NoError(t, err)

	set := s.EnsureMenu([]MenuItem{{Title: "Home", URL: "/"}, {Title: "About", URL: "/about.html"}})
	require.False(t, set)

	menu, ok := s.Menu()
	require.True(t, ok)
	require.Equal(t, []MenuItem{{Title: "Start", URL: "/"}}, menu)
	require.False(t, s.Dirty())
}

func TestStore_EnsureMenuSetsWhenAbsent(t *testing.T) {
	s, err := Open(NewMemoryPersister([]byte("theme: minimal\n")), t.TempDir())
	require.NoError(t, err)

	require.True(t, s.EnsureMenu([]MenuItem{{Title: "Home", URL: "/"}}))
	require.True(t, s.Dirty())
	require.False(t, s.EnsureMenu([]MenuItem{{Title: "Other", URL: "/x.html"}}))

	menu, _ := s.Menu()
	require.Len(t, menu, 1)
	require.Equal(t, "Home", menu[0].Title)
}

func TestStore_CommitWritesOnlyWhenDirty(t *testing.T) {
	p := NewMemoryPersister([]byte("theme: minimal\nname: Site\n"))
	s, err := Open(p, t.TempDir())
	require.NoError(t, err)

	wrote, err := s.Commit()
	require.NoError(t, err)
	require.False(t, wrote)
	require.Equal(t, 0, p.Saves())

	s.SetTheme("minimal")
	require.False(t, s.Dirty(), "setting the same theme is not a change")

	s.SetTheme("aurora")
	wrote, err = s.Commit()
	require.NoError(t, err)
	require.True(t, wrote)
	require.Equal(t, 1, p.Saves())

	data, err := p.Load()
	require.NoError(t, err)
	cfg, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, "aurora", cfg.Theme)
}

func TestStore_ReloadIgnoresOwnCommit(t *testing.T) {
	p := NewMemoryPersister(nil)
	s, err := Open(p, t.TempDir())
	require.NoError(t, err)
	_, err = s.Commit()
	require.NoError(t, err)

	changed, err := s.Reload()
	require.NoError(t, err)
	require.False(t, changed)

	p.Set([]byte("theme: frappe\nname: Edited\n"))
	changed, err = s.Reload()
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "frappe", s.Snapshot().Theme)
	require.Equal(t, "Edited", s.Snapshot().Name)
}

func TestStore_UpdatePatch(t *testing.T) {
	s, err := Open(NewMemoryPersister([]byte("name: Old\n")), t.TempDir())
	require.NoError(t, err)

	name := "New"
	footer := "Custom footer"
	s.Update(Patch{Name: &name, Footer: &footer})
	require.True(t, s.Dirty())

	cfg := s.Snapshot()
	require.Equal(t, "New", cfg.Name)
	require.Equal(t, "Custom footer", cfg.EffectiveFooter(2024))
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s, err := Open(NewMemoryPersister([]byte("menu:\n  - title: Home\n    url: /\n")), t.TempDir())
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Menu[0].Title = "Mutated"
	menu, _ := s.Menu()
	require.Equal(t, "Home", menu[0].Title)
}

func TestFilePersister_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	s, err := Load(path, t.TempDir())
	require.NoError(t, err)
	s.SetTheme("aurora")
	_, err = s.Commit()
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file must be renamed away")

	again, err := Load(path, t.TempDir())
	require.NoError(t, err)
	require.Equal(t, "aurora", again.Snapshot().Theme)
	require.False(t, again.Dirty())
}

func TestStore_CommitOmitsUnsetMenu(t *testing.T) {
	p := NewMemoryPersister(nil)
	s, err := Open(p, t.TempDir())
	require.NoError(t, err)

	name := "Renamed"
	s.Update(Patch{Name: &name})
	_, err = s.Commit()
	require.NoError(t, err)

	data, err := p.Load()
	require.NoError(t, err)
	require.NotContains(t, string(data), "menu")

	again, err := Open(p, t.TempDir())
	require.NoError(t, err)
	_, ok := again.Menu()
	require.False(t, ok, "a menu that was never set must still be derived after reload")
}

func TestStore_EmptyMenuSurvivesCommit(t *testing.T) {
	p := NewMemoryPersister([]byte("name: Site\nmenu: []\n"))
	s, err := Open(p, t.TempDir())
	require.NoError(t, err)

	menu, ok := s.Menu()
	require.True(t, ok)
	require.Empty(t, menu)

	s.SetTheme("aurora")
	_, err = s.Commit()
	require.NoError(t, err)

	again, err := Open(p, t.TempDir())
	require.NoError(t, err)
	menu, ok = again.Menu()
	require.True(t, ok, "an explicit empty menu belongs to the user")
	require.Empty(t, menu)
}
