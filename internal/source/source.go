// Package source defines where attachment bytes come from.
package source

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when a reference does not resolve to any content.
var ErrNotFound = errors.New("attachment source not found")

// Source resolves an attachment reference (a file path, an object key) to
// its content. The caller closes the returned reader.
type Source interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Name returns the human-readable name of this source.
	Name() string
}
