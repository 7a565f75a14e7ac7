package store

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, dir, name string, sizeMB int) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if sizeMB > 0 {
		if err := f.Truncate(int64(sizeMB) * 1024 * 1024); err != nil {
			t.Fatalf("truncate: %v", err)
		}
	}
	return p
}

func TestOpenScansGGUFOnly(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "llama-3.1-8b-q4.gguf", 2)
	touch(t, dir, "Tiny.GGUF", 1)
	touch(t, dir, "readme.txt", 0)
	if err := os.Mkdir(filepath.Join(dir, "sub.gguf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := s.Count(); n != 2 {
		t.Fatalf("expected 2 models, got %d", n)
	}
	m, ok := s.Resolve("llama-3.1-8b-q4")
	if !ok {
		t.Fatalf("model not resolved")
	}
	if m.Name != "llama-3.1-8b-q4.gguf" || m.Path != filepath.Join(dir, "llama-3.1-8b-q4.gguf") || m.SizeMB != 2 {
		t.Fatalf("unexpected entry: %+v", m)
	}
	if _, ok := s.Resolve("llama-3.1-8b-q4.gguf"); ok {
		t.Fatalf("ids must not carry the extension")
	}
}

func TestListSortedByID(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.gguf", 0)
	touch(t, dir, "a.gguf", 0)
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	out := s.List()
	if len(out) != 2 || out[0].ID != "a" || out[1].ID != "b" {
		t.Fatalf("list not sorted: %+v", out)
	}
}

func TestRescanPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if s.Count() != 0 {
		t.Fatalf("expected empty catalog")
	}
	touch(t, dir, "new.gguf", 1)
	if err := s.Rescan(); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if _, ok := s.Resolve("new"); !ok {
		t.Fatalf("new model not picked up")
	}
}

func TestOpenMissingDir(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
