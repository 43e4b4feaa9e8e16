package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/joestump/docmerge/internal/document"
	"github.com/joestump/docmerge/internal/metrics"
)

// Coordinator bounds every render with a timeout, records metrics, and
// collapses concurrent renders of identical content into one backend call.
type Coordinator struct {
	backend Backend
	timeout time.Duration
	log     *zap.Logger
	group   singleflight.Group
}

func NewCoordinator(backend Backend, timeout time.Duration, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{backend: backend, timeout: timeout, log: log}
}

// Render renders doc. mode labels the request in metrics and logs
// ("preview" or "answer").
func (c *Coordinator) Render(ctx context.Context, mode string, doc document.Document) (Artifact, error) {
	start := time.Now()
	key := mode + ":" + contentKey(doc)

	// The shared call runs detached from any single caller so one caller
	// going away does not fail the others; the timeout still bounds it.
	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := c.withTimeout(context.WithoutCancel(ctx))
		defer cancel()
		art, err := c.backend.Render(callCtx, doc)
		if err != nil {
			return Artifact{}, classify(callCtx, err)
		}
		return art, nil
	})

	var (
		art Artifact
		err error
	)
	select {
	case res := <-ch:
		art, err = res.Val.(Artifact), res.Err
	case <-ctx.Done():
		err = classify(ctx, ctx.Err())
	}

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrRenderTimeout):
		result = "timeout"
	default:
		result = "error"
	}
	metrics.RendersTotal.WithLabelValues(mode, result).Inc()
	metrics.RenderDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	if err != nil {
		c.log.Warn("render failed", zap.String("mode", mode), zap.String("document", doc.Name), zap.Error(err))
		return Artifact{}, err
	}
	return art, nil
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func contentKey(doc document.Document) string {
	h := sha256.New()
	h.Write([]byte(doc.Name))
	h.Write([]byte{0})
	h.Write([]byte(doc.ContentType))
	h.Write([]byte{0})
	h.Write(doc.Data)
	return hex.EncodeToString(h.Sum(nil))
}
