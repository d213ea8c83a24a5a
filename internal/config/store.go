package config

import (
	"errors"
	"io/fs"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/pagebrew/internal/foundation/errors"
)

// Store is the configuration service shared by the CLI, the build orchestrator
// and the watch loop. Mutations mark the store dirty; nothing reaches the
// persister until Commit.
type Store struct {
	mu          sync.Mutex
	persister   Persister
	contentRoot string
	doc         Config
	dirty       bool
	lastHash    string
}

// Patch carries explicit updates; nil fields are left unchanged.
type Patch struct {
	Theme       *string
	Name        *string
	Description *string
	Footer      *string
	OutputDir   *string
}

// Open loads the document through p. A missing document yields first-run
// defaults and a dirty store so the first successful build persists it.
func Open(p Persister, contentRoot string) (*Store, error) {
	s := &Store{persister: p, contentRoot: contentRoot}
	data, err := p.Load()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		(&SiteDefaultApplier{ContentRoot: contentRoot}).ApplyDefaults(&s.doc)
		s.dirty = true
		return s, nil
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read configuration").
			Fatal().WithContext("path", p.Location()).Build()
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s.doc = *cfg
	s.lastHash = contentHash(data)
	return s, nil
}

// Location describes where the document is persisted.
func (s *Store) Location() string { return s.persister.Location() }

// Snapshot returns a copy of the configuration with defaults applied.
func (s *Store) Snapshot() Config {
	s.mu.Lock()
	out := s.doc.clone()
	s.mu.Unlock()
	ApplyDefaults(&out, s.contentRoot)
	return out
}

// Dirty reports whether uncommitted changes exist.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// SetTheme records the active theme.
func (s *Store) SetTheme(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "" || s.doc.Theme == name {
		return
	}
	s.doc.Theme = name
	s.dirty = true
}

// Menu returns the persisted menu and whether one exists.
func (s *Store) Menu() ([]MenuItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Menu == nil {
		return nil, false
	}
	return slices.Clone(s.doc.Menu), true
}

// EnsureMenu stores items only when no menu has been persisted yet.
// It reports whether the menu was set.
func (s *Store) EnsureMenu(items []MenuItem) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc.Menu != nil {
		return false
	}
	s.doc.Menu = Menu(slices.Clone(items))
	if s.doc.Menu == nil {
		s.doc.Menu = Menu{}
	}
	s.dirty = true
	return true
}

// Update applies an explicit patch.
func (s *Store) Update(p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := func(dst *string, v *string) {
		if v != nil && *dst != *v {
			*dst = *v
			s.dirty = true
		}
	}
	set(&s.doc.Theme, p.Theme)
	set(&s.doc.Name, p.Name)
	set(&s.doc.Description, p.Description)
	set(&s.doc.Footer, p.Footer)
	set(&s.doc.OutputDir, p.OutputDir)
}

// Marshal encodes the persisted form of the document.
func (s *Store) Marshal() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return yaml.Marshal(&s.doc)
}

// Commit persists pending changes. It reports whether anything was written.
func (s *Store) Commit() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return false, nil
	}
	data, err := yaml.Marshal(&s.doc)
	if err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to encode configuration").Fatal().Build()
	}
	if err := s.persister.Save(data); err != nil {
		return false, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to write configuration").
			Fatal().WithContext("path", s.persister.Location()).Build()
	}
	s.lastHash = contentHash(data)
	s.dirty = false
	return true, nil
}

// Reload re-reads the persisted document. It reports whether the contents
// differ from what was last loaded or committed; a document identical to the
// last commit (our own write) is not a change.
func (s *Store) Reload() (bool, error) {
	data, err := s.persister.Load()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read configuration").
			Fatal().WithContext("path", s.persister.Location()).Build()
	}
	hash := contentHash(data)
	s.mu.Lock()
	same := hash == s.lastHash
	s.mu.Unlock()
	if same {
		return false, nil
	}
	cfg, err := Parse(data)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = *cfg
	s.lastHash = hash
	s.dirty = false
	return true, nil
}
