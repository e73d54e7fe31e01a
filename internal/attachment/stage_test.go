package attachment

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wabulk/internal/domain"
)

func newTestStager(t *testing.T) *Stager {
	t.Helper()
	s, err := NewStager(StagerConfig{Dir: filepath.Join(t.TempDir(), "staging"), Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStager_StageAndRelease(t *testing.T) {
	s := newTestStager(t)

	path, err := s.Stage(strings.NewReader("image-bytes"), "photo.png")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "photo.png" {
		t.Errorf("staged name = %q", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("content = %q", data)
	}

	if err := s.Release(path); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("staged file still exists: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(path)); !os.IsNotExist(err) {
		t.Errorf("upload dir still exists: %v", err)
	}
}

func TestStager_SameNameDoesNotCollide(t *testing.T) {
	s := newTestStager(t)
	a, err := s.Stage(strings.NewReader("a"), "x.png")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Stage(strings.NewReader("b"), "x.png")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("expected distinct staged paths")
	}
}

func TestStager_StripsDirectoryFromName(t *testing.T) {
	s := newTestStager(t)
	path, err := s.Stage(strings.NewReader("x"), "../../etc/passwd")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(path, s.Dir()) {
		t.Errorf("staged outside staging dir: %s", path)
	}
}

func TestStager_CapsCopiedBytes(t *testing.T) {
	s, err := NewStager(StagerConfig{Dir: t.TempDir(), MaxBytes: 4, Logger: testLogger()})
	if err != nil {
		t.Fatal(err)
	}
	path, err := s.Stage(bytes.NewReader(make([]byte, 100)), "a.png")
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 4 {
		t.Errorf("size = %d, want 4", info.Size())
	}
}

func TestStager_ReleaseMissingIsNoop(t *testing.T) {
	s := newTestStager(t)
	if err := s.Release(filepath.Join(s.Dir(), "upload-gone", "x.png")); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if err := s.Release(""); err != nil {
		t.Fatalf("expected nil for empty path, got %v", err)
	}
}

func TestStager_ReleaseFailureIsCleanupError(t *testing.T) {
	s := newTestStager(t)
	// A non-empty directory cannot be removed with os.Remove.
	dir := filepath.Join(s.Dir(), "upload-busy")
	if err := os.MkdirAll(filepath.Join(dir, "child"), 0o700); err != nil {
		t.Fatal(err)
	}
	err := s.Release(dir)
	var ce *domain.CleanupError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CleanupError, got %v", err)
	}
}

func TestStager_StageFileMissing(t *testing.T) {
	s := newTestStager(t)
	_, err := s.StageFile(filepath.Join(t.TempDir(), "nope.mp4"))
	if !errors.Is(err, domain.ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, got %v", err)
	}
}
