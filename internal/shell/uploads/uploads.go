// Package uploads stores files attached to submissions, on local disk or in
// an S3-compatible bucket.
package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/metrics"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrTooLarge is returned when a file exceeds the configured limit.
	ErrTooLarge = errors.New("file too large")

	// ErrNotImage is returned when an image field receives another kind of file.
	ErrNotImage = errors.New("file is not an image")

	// ErrInvalidPath is returned when a stored path does not belong to the backend.
	ErrInvalidPath = errors.New("invalid upload path")
)

// DefaultMaxFileSize is the per-file limit when none is configured.
const DefaultMaxFileSize int64 = 10 << 20

// nameLength is the number of random characters in stored file names.
const nameLength = 12

// =============================================================================
// Storage
// =============================================================================

// Storage persists uploaded files. Save returns the path recorded on the
// answer; Delete accepts a path previously returned by Save.
type Storage interface {
	Save(ctx context.Context, name, contentType string, r io.Reader) (string, error)
	Delete(ctx context.Context, path string) error
}

// FileName returns a random stored name that keeps the original extension.
func FileName(original string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(original)))
	if len(ext) > 16 || strings.ContainsAny(ext, `/\ `) {
		ext = ""
	}
	return domain.RandomToken(nameLength) + ext
}

// =============================================================================
// Uploader
// =============================================================================

// UploaderConfig holds limits for accepted files.
type UploaderConfig struct {
	MaxFileSize int64
}

// Uploader validates incoming files and hands them to a Storage.
type Uploader struct {
	storage Storage
	maxSize int64
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewUploader creates an uploader backed by storage.
func NewUploader(storage Storage, cfg UploaderConfig, m *metrics.Metrics, logger *slog.Logger) *Uploader {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		storage: storage,
		maxSize: cfg.MaxFileSize,
		metrics: m,
		logger:  logger.With("component", "uploads"),
	}
}

// MaxFileSize returns the per-file limit in bytes.
func (u *Uploader) MaxFileSize() int64 {
	return u.maxSize
}

// Store reads r fully, enforces the size limit and, when image is set,
// checks that the content sniffs as an image. It returns the stored path.
func (u *Uploader) Store(ctx context.Context, filename string, r io.Reader, image bool) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, u.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("reading upload %q: %w", filename, err)
	}
	if int64(len(data)) > u.maxSize {
		return "", fmt.Errorf("%w: %s exceeds the %s limit", ErrTooLarge, filename, humanize.IBytes(uint64(u.maxSize)))
	}

	contentType := http.DetectContentType(data)
	if image && !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: %s is %s", ErrNotImage, filename, contentType)
	}

	path, err := u.storage.Save(ctx, FileName(filename), contentType, bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	u.metrics.UploadStored(int64(len(data)))
	u.logger.Debug("stored upload", "path", path, "size", humanize.IBytes(uint64(len(data))), "content_type", contentType)
	return path, nil
}

// Remove deletes stored files best-effort, logging failures.
func (u *Uploader) Remove(ctx context.Context, paths []string) int {
	removed := 0
	for _, p := range paths {
		if err := u.storage.Delete(ctx, p); err != nil {
			u.logger.Warn("failed to delete upload", "path", p, "error", err)
			continue
		}
		removed++
	}
	return removed
}
