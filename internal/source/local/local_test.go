package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcastera/mailer/internal/source"
)

func TestOpen_ReadsFileUnderBasePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.txt"), []byte("quarterly"), 0o600))

	s, err := New(dir)
	require.NoError(t, err)

	rc, err := s.Open(context.Background(), "report.txt")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "quarterly", string(data))
}

func TestOpen_AbsolutePathIgnoresBasePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0xff}, 0o600))

	s, err := New(t.TempDir())
	require.NoError(t, err)

	rc, err := s.Open(context.Background(), path)
	require.NoError(t, err)
	rc.Close()
}

func TestOpen_MissingFileIsNotFound(t *testing.T) {
	t.Parallel()

	s, err := New("")
	require.NoError(t, err)

	_, err = s.Open(context.Background(), filepath.Join(t.TempDir(), "missing.zip"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, source.ErrNotFound))
}

func TestOpen_DirectoryIsRejected(t *testing.T) {
	t.Parallel()

	s, err := New("")
	require.NoError(t, err)

	_, err = s.Open(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.False(t, errors.Is(err, source.ErrNotFound))
}

func TestName(t *testing.T) {
	t.Parallel()

	s, err := New("")
	require.NoError(t, err)
	assert.Equal(t, "local", s.Name())
}
