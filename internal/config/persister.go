package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Persister reads and writes the raw configuration document.
// Load returns an error matching fs.ErrNotExist when no document exists yet.
type Persister interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Location() string
}

// FilePersister stores the document on disk.
type FilePersister struct {
	Path string
}

func NewFilePersister(path string) *FilePersister { return &FilePersister{Path: path} }

func (p *FilePersister) Location() string { return p.Path }

func (p *FilePersister) Load() ([]byte, error) {
	return os.ReadFile(p.Path)
}

// Save writes through a hidden temp file and renames it into place, so readers
// (including the watch loop) never observe a truncated document.
func (p *FilePersister) Save(data []byte) error {
	dir := filepath.Dir(p.Path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".pagebrew-*.yaml")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, p.Path)
}

// MemoryPersister keeps the document in memory. Used by tests and dry runs.
type MemoryPersister struct {
	mu     sync.Mutex
	data   []byte
	exists bool
	saves  int
}

// NewMemoryPersister returns a persister preloaded with data; nil means no document.
func NewMemoryPersister(data []byte) *MemoryPersister {
	return &MemoryPersister{data: data, exists: data != nil}
}

func (m *MemoryPersister) Location() string { return "memory" }

func (m *MemoryPersister) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exists {
		return nil, fs.ErrNotExist
	}
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryPersister) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.exists = true
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryPersister) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Set replaces the stored document, simulating an external edit.
func (m *MemoryPersister) Set(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.exists = true
}
