// Package render turns substituted documents into deliverable artifacts.
package render

import (
	"context"
	"errors"
	"fmt"

	"github.com/joestump/docmerge/internal/document"
)

var (
	// ErrRenderTimeout is returned when a render does not finish in time.
	ErrRenderTimeout = errors.New("render timed out")

	// ErrRenderBackend is returned when the rendering backend fails.
	ErrRenderBackend = errors.New("render backend failure")

	// ErrUnsupportedFormat is returned for documents the backend cannot read.
	ErrUnsupportedFormat = document.ErrUnsupportedFormat
)

// Artifact is a rendered output file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Backend renders a fully substituted document. Implementations return
// either a complete artifact or an error, never a partial artifact.
type Backend interface {
	Render(ctx context.Context, doc document.Document) (Artifact, error)
}

// IsRetryable reports whether err is a transient render failure the caller
// may retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRenderTimeout) || errors.Is(err, ErrRenderBackend)
}

// classify maps a raw backend error onto the package's sentinel errors.
func classify(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRenderTimeout), errors.Is(err, ErrRenderBackend), errors.Is(err, ErrUnsupportedFormat):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrRenderTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrRenderBackend, err)
	}
}
