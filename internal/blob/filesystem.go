package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidName = errors.New("invalid blob name")

// FileStore keeps uploads under a directory and serves them from baseURL.
type FileStore struct {
	log     *slog.Logger
	dir     string
	baseURL string
}

func NewFileStore(log *slog.Logger, dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{log: log, dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes r to name atomically and returns its URL.
func (s *FileStore) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	clean := path.Clean("/" + name)[1:]
	if clean == "" || clean == "." || strings.Contains(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := filepath.Join(s.dir, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", fmt.Errorf("store blob: %w", err)
	}

	s.log.Info("blob stored", "name", clean, "bytes", n, "content_type", contentType)
	return s.baseURL + "/" + clean, nil
}

// Dir is where uploads live, for serving them over HTTP.
func (s *FileStore) Dir() string { return s.dir }
