package blob

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(slog.New(slog.NewTextHandler(io.Discard, nil)), t.TempDir(), "https://cafe.test/proofs/")
	require.NoError(t, err)
	return s
}

func TestUploadWritesFileAndReturnsURL(t *testing.T) {
	s := newStore(t)

	url, err := s.Upload(context.Background(), "proofs/o-1/receipt.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cafe.test/proofs/proofs/o-1/receipt.png", url)

	body, err := os.ReadFile(filepath.Join(s.Dir(), "proofs", "o-1", "receipt.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(body))

	entries, err := os.ReadDir(filepath.Join(s.Dir(), "proofs", "o-1"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUploadStaysInsideDir(t *testing.T) {
	s := newStore(t)

	url, err := s.Upload(context.Background(), "../../etc/passwd", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "https://cafe.test/proofs/etc/passwd", url)
	_, err = os.Stat(filepath.Join(s.Dir(), "etc", "passwd"))
	assert.NoError(t, err)

	_, err = s.Upload(context.Background(), "", "text/plain", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestUploadHonoursCancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Upload(ctx, "a.png", "image/png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
