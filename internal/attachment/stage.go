package attachment

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"wabulk/internal/domain"
)

// StagerConfig configures where uploads are staged.
type StagerConfig struct {
	Dir      string // base directory; defaults to <os temp>/wabulk
	MaxBytes int64  // hard cap while copying; 0 means DefaultMaxVideoBytes+1
	Logger   *slog.Logger
}

// Stager copies uploads into private per-file directories and removes them
// again on Release.
type Stager struct {
	dir      string
	maxBytes int64
	logger   *slog.Logger
}

func NewStager(cfg StagerConfig) (*Stager, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "wabulk")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxVideoBytes + 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Stager{dir: dir, maxBytes: maxBytes, logger: logger}, nil
}

// Dir returns the base staging directory.
func (s *Stager) Dir() string { return s.dir }

// Stage writes the upload to local storage and returns its path. Reading
// stops after MaxBytes so an oversized upload is kept just large enough for
// the validator to reject it.
func (s *Stager) Stage(r io.Reader, fileName string) (string, error) {
	name := filepath.Base(strings.TrimSpace(fileName))
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "attachment"
	}

	sub, err := os.MkdirTemp(s.dir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}
	path := filepath.Join(sub, name)

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		os.RemoveAll(sub)
		return "", fmt.Errorf("create staged file: %w", err)
	}
	written, err := io.Copy(out, io.LimitReader(r, s.maxBytes))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.RemoveAll(sub)
		return "", fmt.Errorf("write staged file: %w", err)
	}

	s.logger.Debug("attachment staged", "path", path, "size", written)
	return path, nil
}

// StageFile copies an existing local file into staging.
func (s *Stager) StageFile(src string) (string, error) {
	f, err := os.Open(src)
	if err != nil {
		return "", &domain.AttachmentError{Kind: domain.AttachmentNotFound, Path: src, Err: err}
	}
	defer f.Close()
	return s.Stage(f, filepath.Base(src))
}

// Release deletes a staged file and its private directory. Failures come
// back as *domain.CleanupError and are meant to be reported, not escalated.
func (s *Stager) Release(path string) error {
	if path == "" {
		return nil
	}
	var errs []error
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}
	// Only remove the parent if it is one of ours.
	parent := filepath.Dir(path)
	if filepath.Dir(parent) == filepath.Clean(s.dir) && strings.HasPrefix(filepath.Base(parent), "upload-") {
		if err := os.Remove(parent); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &domain.CleanupError{Path: path, Err: errs[0]}
	}
	s.logger.Debug("staged attachment released", "path", path)
	return nil
}
