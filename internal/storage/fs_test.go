package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func tempLibrary(t *testing.T) (string, *FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return dir, fs
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestListOnlyPlanFiles(t *testing.T) {
	dir, s := tempLibrary(t)
	writeFile(t, dir, "ground.svg", `<svg width="10" height="10"/>`)
	writeFile(t, dir, "floors/first.png", "png")
	writeFile(t, dir, "readme.txt", "ignored")
	writeFile(t, dir, ".cache/x.svg", "ignored")

	metas, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("got %d files, want 2: %+v", len(metas), metas)
	}
	paths := map[string]bool{}
	for _, m := range metas {
		paths[m.Path] = true
		if m.Checksum == "" {
			t.Errorf("%s: empty checksum", m.Path)
		}
	}
	if !paths["ground.svg"] || !paths["floors/first.png"] {
		t.Errorf("paths = %v", paths)
	}
}

func TestRead(t *testing.T) {
	dir, s := tempLibrary(t)
	writeFile(t, dir, "a.svg", "<svg/>")
	got, err := s.Read("a.svg")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "<svg/>" {
		t.Errorf("content = %q", got)
	}
	if _, err := s.Read("missing.svg"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing read err = %v", err)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	_, s := tempLibrary(t)
	if _, err := s.Read("../../etc/passwd"); err == nil {
		t.Error("expected traversal to be rejected")
	}
	if _, err := s.List("/abs"); err == nil {
		t.Error("expected absolute path to be rejected")
	}
}

func TestNewFSRejectsFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f")
	if err := os.WriteFile(p, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFS(p); err == nil {
		t.Error("expected error for non-directory root")
	}
}
