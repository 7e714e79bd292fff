package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Local stores files in a directory. Returned paths are "<dir>/<name>" with
// forward slashes, matching the /uploads/ URL prefix when dir is "uploads".
type Local struct {
	dir string
}

// NewLocal creates the directory if needed.
func NewLocal(dir string) (*Local, error) {
	if dir == "" {
		dir = "uploads"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Local{dir: dir}, nil
}

// Dir returns the directory files are written to.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Save(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}

	f, err := os.OpenFile(filepath.Join(l.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("creating upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("writing upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing upload: %w", err)
	}

	return path.Join(filepath.ToSlash(l.dir), name), nil
}

// Delete removes the file named by p. Missing files are not an error.
func (l *Local) Delete(ctx context.Context, p string) error {
	name, err := l.name(p)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(l.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting upload: %w", err)
	}
	return nil
}

func (l *Local) name(p string) (string, error) {
	prefix := filepath.ToSlash(filepath.Clean(l.dir)) + "/"
	clean := path.Clean(filepath.ToSlash(p))
	name := strings.TrimPrefix(clean, prefix)
	if name == clean || name == "" || strings.Contains(name, "/") || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return name, nil
}
