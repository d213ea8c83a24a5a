// Package gitinfo looks up per-file commit dates for documents tracked in git.
package gitinfo

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned when the content root is not inside a git work tree.
var ErrNotRepository = errors.New("content root is not inside a git repository")

// Dates resolves the last commit time of content files. Results are memoized
// for the lifetime of the value, so create one per build.
type Dates struct {
	repo   *git.Repository
	prefix string // content root relative to the work tree, slash-separated

	mu    sync.Mutex
	cache map[string]time.Time
}

// Open locates the repository containing contentRoot.
func Open(contentRoot string) (*Dates, error) {
	abs, err := filepath.Abs(contentRoot)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, ErrNotRepository
		}
		return nil, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	top, err := filepath.EvalSymlinks(wt.Filesystem.Root())
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	rel, err := filepath.Rel(top, resolved)
	if err != nil {
		return nil, err
	}
	prefix := filepath.ToSlash(rel)
	if prefix == "." {
		prefix = ""
	}
	return &Dates{repo: repo, prefix: prefix, cache: make(map[string]time.Time)}, nil
}

// LastModified returns the committer time of the newest commit touching rel
// (slash-separated, relative to the content root).
func (d *Dates) LastModified(rel string) (time.Time, bool) {
	target := rel
	if d.prefix != "" {
		target = d.prefix + "/" + rel
	}

	d.mu.Lock()
	if t, ok := d.cache[target]; ok {
		d.mu.Unlock()
		return t, !t.IsZero()
	}
	d.mu.Unlock()

	t := d.lookup(target)

	d.mu.Lock()
	d.cache[target] = t
	d.mu.Unlock()
	return t, !t.IsZero()
}

func (d *Dates) lookup(target string) time.Time {
	iter, err := d.repo.Log(&git.LogOptions{
		Order:      git.LogOrderCommitterTime,
		PathFilter: func(p string) bool { return p == target || strings.HasPrefix(p, target+"/") },
	})
	if err != nil {
		return time.Time{}
	}
	defer iter.Close()
	c, err := iter.Next()
	if err != nil {
		// io.EOF: no commit touches the file.
		return time.Time{}
	}
	return committed(c)
}

func committed(c *object.Commit) time.Time {
	if !c.Committer.When.IsZero() {
		return c.Committer.When
	}
	return c.Author.When
}
