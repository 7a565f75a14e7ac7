// Package store maintains the catalog of model files available on disk.
// Only stat() metadata is consumed; download and caching happen elsewhere.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"inferd/pkg/types"
)

// Store scans a directory for *.gguf model files. The id of a model is its
// filename without the extension, so catalogs rebuild identically across
// restarts.
type Store struct {
	mu     sync.RWMutex
	dir    string
	models map[string]types.Model
}

// Open resolves dir (expanding a leading '~') and performs the initial scan.
func Open(dir string) (*Store, error) {
	base, err := expandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	s := &Store{dir: abs, models: make(map[string]types.Model)}
	if err := s.Rescan(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the scanned directory.
func (s *Store) Dir() string { return s.dir }

// Rescan rebuilds the catalog from the directory contents.
func (s *Store) Rescan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read dir: %w", err)
	}
	models := make(map[string]types.Model)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		var sizeMB int
		if fi, err := e.Info(); err == nil {
			sizeMB = int(fi.Size() / (1024 * 1024))
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models[id] = types.Model{
			ID:     id,
			Name:   name,
			Path:   filepath.Join(s.dir, name),
			SizeMB: sizeMB,
		}
	}
	s.mu.Lock()
	s.models = models
	s.mu.Unlock()
	return nil
}

// Resolve maps a model id to its catalog entry.
func (s *Store) Resolve(id string) (types.Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.models[id]
	return m, ok
}

// List returns the catalog sorted by id.
func (s *Store) List() []types.Model {
	s.mu.RLock()
	out := make([]types.Model, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of cataloged models.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.models)
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "" || path[0] != '~' {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home dir: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/")), nil
}
