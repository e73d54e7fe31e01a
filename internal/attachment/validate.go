// Package attachment validates optional media for a run and owns the
// lifetime of staged upload files.
package attachment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"wabulk/internal/domain"
)

const (
	MiB = 1 << 20

	DefaultMaxImageBytes = 16 * MiB
	DefaultMaxVideoBytes = 100 * MiB
)

var videoExtensions = map[string]bool{
	"mp4": true, "avi": true, "mov": true, "mkv": true,
}

var imageExtensions = map[string]bool{
	"png": true, "jpg": true, "jpeg": true, "gif": true, "webp": true,
}

// Classify maps a file extension to its kind. Unknown extensions are treated
// as images so callers that only ever sent pictures keep working.
func Classify(ext string) domain.AttachmentKind {
	if videoExtensions[normalizeExt(ext)] {
		return domain.KindVideo
	}
	return domain.KindImage
}

// Supported reports whether ext is one of the known image or video types.
func Supported(ext string) bool {
	e := normalizeExt(ext)
	return videoExtensions[e] || imageExtensions[e]
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ValidatorConfig holds the per-kind size ceilings.
type ValidatorConfig struct {
	MaxImageBytes int64
	MaxVideoBytes int64
	Logger        *slog.Logger
}

type Validator struct {
	maxImage int64
	maxVideo int64
	logger   *slog.Logger
}

func NewValidator(cfg ValidatorConfig) *Validator {
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = DefaultMaxImageBytes
	}
	if cfg.MaxVideoBytes <= 0 {
		cfg.MaxVideoBytes = DefaultMaxVideoBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Validator{maxImage: cfg.MaxImageBytes, maxVideo: cfg.MaxVideoBytes, logger: cfg.Logger}
}

// Limit returns the size ceiling for kind.
func (v *Validator) Limit(kind domain.AttachmentKind) int64 {
	if kind == domain.KindVideo {
		return v.maxVideo
	}
	return v.maxImage
}

// Validate checks the staged file and returns it as an Attachment with an
// absolute path. declaredExt may be empty, in which case the path's own
// extension is used.
func (v *Validator) Validate(stagedPath, declaredExt string) (domain.Attachment, error) {
	info, err := os.Stat(stagedPath)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("is a directory")
		}
		return domain.Attachment{}, &domain.AttachmentError{Kind: domain.AttachmentNotFound, Path: stagedPath, Err: err}
	}

	abs, err := filepath.Abs(stagedPath)
	if err != nil {
		return domain.Attachment{}, &domain.AttachmentError{Kind: domain.AttachmentNotFound, Path: stagedPath, Err: err}
	}

	if declaredExt == "" {
		declaredExt = filepath.Ext(stagedPath)
	}
	kind := Classify(declaredExt)
	if !Supported(declaredExt) {
		v.logger.Warn("unrecognized attachment extension, sending as image", "ext", declaredExt)
	}

	size := info.Size()
	if limit := v.Limit(kind); size > limit {
		return domain.Attachment{}, &domain.AttachmentError{
			Kind: domain.AttachmentTooLarge, Path: abs, Size: size, Limit: limit,
		}
	}

	att := domain.Attachment{Path: abs, Kind: kind, SizeBytes: size}
	v.logger.Info("attachment ready", "summary", Describe(att))
	return att, nil
}

// Describe is the human-readable "name (size)" line shown to operators.
func Describe(att domain.Attachment) string {
	return fmt.Sprintf("%s %s (%s)", att.Kind, filepath.Base(att.Path), humanize.IBytes(uint64(att.SizeBytes)))
}
