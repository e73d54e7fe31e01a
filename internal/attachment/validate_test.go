package attachment

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"wabulk/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// sparseFile creates a file of the given size without writing its content.
func sparseFile(t *testing.T, name string, size int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClassify(t *testing.T) {
	tests := []struct {
		ext  string
		want domain.AttachmentKind
	}{
		{"mp4", domain.KindVideo},
		{".MOV", domain.KindVideo},
		{"mkv", domain.KindVideo},
		{"avi", domain.KindVideo},
		{"png", domain.KindImage},
		{".jpeg", domain.KindImage},
		{"pdf", domain.KindImage}, // unknown falls back to image
		{"", domain.KindImage},
	}
	for _, tt := range tests {
		if got := Classify(tt.ext); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestValidate_NotFound(t *testing.T) {
	v := NewValidator(ValidatorConfig{Logger: testLogger()})
	_, err := v.Validate(filepath.Join(t.TempDir(), "missing.png"), "png")
	if !errors.Is(err, domain.ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound, got %v", err)
	}
}

func TestValidate_Directory(t *testing.T) {
	v := NewValidator(ValidatorConfig{Logger: testLogger()})
	_, err := v.Validate(t.TempDir(), "png")
	if !errors.Is(err, domain.ErrAttachmentNotFound) {
		t.Fatalf("expected ErrAttachmentNotFound for a directory, got %v", err)
	}
}

func TestValidate_ImageTooLarge(t *testing.T) {
	v := NewValidator(ValidatorConfig{Logger: testLogger()})
	path := sparseFile(t, "big.png", 17*MiB)

	_, err := v.Validate(path, "png")
	if !errors.Is(err, domain.ErrAttachmentTooLarge) {
		t.Fatalf("expected ErrAttachmentTooLarge, got %v", err)
	}
	var ae *domain.AttachmentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AttachmentError, got %T", err)
	}
	if ae.Limit != 16*MiB {
		t.Errorf("limit = %d, want %d", ae.Limit, 16*MiB)
	}
}

func TestValidate_VideoUnderLimit(t *testing.T) {
	v := NewValidator(ValidatorConfig{Logger: testLogger()})
	path := sparseFile(t, "clip.mp4", 50*MiB)

	att, err := v.Validate(path, "mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if att.Kind != domain.KindVideo {
		t.Errorf("kind = %v, want video", att.Kind)
	}
	if att.SizeBytes != 50*MiB {
		t.Errorf("size = %d", att.SizeBytes)
	}
	if !filepath.IsAbs(att.Path) {
		t.Errorf("path %q is not absolute", att.Path)
	}
}

func TestValidate_VideoTooLarge(t *testing.T) {
	v := NewValidator(ValidatorConfig{Logger: testLogger()})
	path := sparseFile(t, "long.mkv", 101*MiB)

	if _, err := v.Validate(path, ""); !errors.Is(err, domain.ErrAttachmentTooLarge) {
		t.Fatalf("expected ErrAttachmentTooLarge, got %v", err)
	}
}

func TestValidate_RelativePathBecomesAbsolute(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pic.jpg"), []byte("jpg"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	att, err := NewValidator(ValidatorConfig{Logger: testLogger()}).Validate("pic.jpg", "")
	if err != nil {
		t.Fatal(err)
	}
	if !filepath.IsAbs(att.Path) || filepath.Base(att.Path) != "pic.jpg" {
		t.Errorf("unexpected path %q", att.Path)
	}
	if att.Kind != domain.KindImage {
		t.Errorf("kind = %v, want image", att.Kind)
	}
}

func TestDescribe(t *testing.T) {
	got := Describe(domain.Attachment{Path: "/tmp/x/promo.mp4", Kind: domain.KindVideo, SizeBytes: 3 * MiB})
	if !strings.Contains(got, "promo.mp4") || !strings.Contains(got, "3.0 MiB") {
		t.Errorf("Describe = %q", got)
	}
}
