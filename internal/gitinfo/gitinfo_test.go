package gitinfo

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, root, rel, body string, when time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(rel)
	require.NoError(t, err)
	sig := &object.Signature{Name: "Test", Email: "test@example.com", When: when}
	_, err = wt.Commit("update "+rel, &git.CommitOptions{Author: sig, Committer: sig})
	require.NoError(t, err)
}

func TestDates_LastModifiedFromNewestCommit(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	first := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	second := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	commitFile(t, repo, root, "site/about.md", "v1", first)
	commitFile(t, repo, root, "site/blog/a.md", "a", first)
	commitFile(t, repo, root, "site/about.md", "v2", second)

	dates, err := Open(filepath.Join(root, "site"))
	require.NoError(t, err)

	got, ok := dates.LastModified("about.md")
	require.True(t, ok)
	require.True(t, second.Equal(got))

	got, ok = dates.LastModified("blog/a.md")
	require.True(t, ok)
	require.True(t, first.Equal(got))

	_, ok = dates.LastModified("untracked.md")
	require.False(t, ok)
}

func TestOpen_NotARepository(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorIs(t, err, ErrNotRepository)
}
