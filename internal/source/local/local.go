// Package local implements a Source backed by the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rcastera/mailer/internal/source"
)

// Source opens attachments from disk. Relative references are resolved
// against basePath when one is configured.
type Source struct {
	basePath string
}

// New creates a Source rooted at basePath. An empty basePath resolves
// references relative to the working directory.
func New(basePath string) (*Source, error) {
	if basePath == "" {
		return &Source{}, nil
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	return &Source{basePath: abs}, nil
}

// Open opens the file named by ref for reading.
func (s *Source) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	path := s.fullPath(ref)

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, ref)
		}
		return nil, fmt.Errorf("failed to open %s: %w", ref, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", ref, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", ref)
	}

	return f, nil
}

// Name returns the source name.
func (s *Source) Name() string {
	return "local"
}

func (s *Source) fullPath(ref string) string {
	if s.basePath == "" || filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(s.basePath, ref)
}
