package scheduler

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
}

func TestSweepExportsRemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "segment-old.mp4"), 48*time.Hour)
	touch(t, filepath.Join(dir, "segment-fresh.mp4"), time.Hour)

	s := New(dir, t.TempDir(), 24*time.Hour)
	if got := s.sweepExports(time.Now().Add(-s.retention)); got != 1 {
		t.Errorf("removed %d files, want 1", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "segment-fresh.mp4")); err != nil {
		t.Error("fresh export was removed")
	}
	if _, err := os.Stat(filepath.Join(dir, "segment-old.mp4")); !os.IsNotExist(err) {
		t.Error("expired export survived the sweep")
	}
}

func TestSweepFrameDirsSkipsForeignEntries(t *testing.T) {
	tmp := t.TempDir()
	orphan := filepath.Join(tmp, "frames-abc123")
	if err := os.Mkdir(orphan, 0755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(orphan, old, old); err != nil {
		t.Fatal(err)
	}
	foreign := filepath.Join(tmp, "uploads")
	if err := os.Mkdir(foreign, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(foreign, old, old); err != nil {
		t.Fatal(err)
	}

	s := New(t.TempDir(), tmp, 24*time.Hour)
	if got := s.sweepFrameDirs(time.Now().Add(-s.retention)); got != 1 {
		t.Errorf("removed %d dirs, want 1", got)
	}
	if _, err := os.Stat(foreign); err != nil {
		t.Error("directory without the frames- prefix was removed")
	}
}

func TestSweepMissingDirsIsQuiet(t *testing.T) {
	s := New("/nonexistent/exports", "/nonexistent/tmp", time.Hour)
	if got := s.sweepExports(time.Now()); got != 0 {
		t.Errorf("sweepExports = %d, want 0", got)
	}
	if got := s.sweepFrameDirs(time.Now()); got != 0 {
		t.Errorf("sweepFrameDirs = %d, want 0", got)
	}
}
