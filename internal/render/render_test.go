package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/joestump/docmerge/internal/document"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	calls atomic.Int32
	fn    func(ctx context.Context, doc document.Document) (Artifact, error)
}

func (f *fakeBackend) Render(ctx context.Context, doc document.Document) (Artifact, error) {
	f.calls.Add(1)
	return f.fn(ctx, doc)
}

func textDoc(s string) document.Document {
	return document.Document{Name: "policy.txt", ContentType: "text/plain", Data: []byte(s)}
}

func TestCoordinator_Render(t *testing.T) {
	backend := &fakeBackend{fn: func(ctx context.Context, doc document.Document) (Artifact, error) {
		return Artifact{Name: "policy.pdf", ContentType: "application/pdf", Data: append([]byte("%PDF "), doc.Data...)}, nil
	}}
	c := NewCoordinator(backend, time.Second, nil)

	art, err := c.Render(context.Background(), "answer", textDoc("hello"))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", art.ContentType)
	assert.Equal(t, "%PDF hello", string(art.Data))
}

func TestCoordinator_TimeoutIsRetryable(t *testing.T) {
	backend := &fakeBackend{fn: func(ctx context.Context, doc document.Document) (Artifact, error) {
		<-ctx.Done()
		return Artifact{Data: []byte("partial")}, ctx.Err()
	}}
	c := NewCoordinator(backend, 20*time.Millisecond, nil)

	art, err := c.Render(context.Background(), "preview", textDoc("x"))
	require.ErrorIs(t, err, ErrRenderTimeout)
	assert.True(t, IsRetryable(err))
	assert.Empty(t, art.Data, "a failed render must not return a partial artifact")
}

func TestCoordinator_BackendFailure(t *testing.T) {
	backend := &fakeBackend{fn: func(ctx context.Context, doc document.Document) (Artifact, error) {
		return Artifact{}, errors.New("browser crashed")
	}}
	c := NewCoordinator(backend, time.Second, nil)

	_, err := c.Render(context.Background(), "answer", textDoc("x"))
	require.ErrorIs(t, err, ErrRenderBackend)
	assert.True(t, IsRetryable(err))
}

func TestCoordinator_UnsupportedFormatNotRetryable(t *testing.T) {
	backend := &fakeBackend{fn: func(ctx context.Context, doc document.Document) (Artifact, error) {
		_, err := doc.Format()
		return Artifact{}, err
	}}
	c := NewCoordinator(backend, time.Second, nil)

	_, err := c.Render(context.Background(), "answer", document.Document{Name: "a.bin"})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.False(t, IsRetryable(err))
}

func TestCoordinator_SharesIdenticalRenders(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{fn: func(ctx context.Context, doc document.Document) (Artifact, error) {
		<-release
		return Artifact{Data: doc.Data}, nil
	}}
	c := NewCoordinator(backend, 5*time.Second, nil)

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			art, err := c.Render(context.Background(), "preview", textDoc("same"))
			if err != nil {
				results <- "error: " + err.Error()
				return
			}
			results <- string(art.Data)
		}()
	}
	// Give the callers time to join the in-flight call.
	require.Eventually(t, func() bool { return backend.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for r := range results {
		assert.Equal(t, "same", r)
	}
	assert.Equal(t, int32(1), backend.calls.Load())
}

func TestCoordinator_CallerCancel(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	backend := &fakeBackend{fn: func(ctx context.Context, doc document.Document) (Artifact, error) {
		defer close(done)
		<-release
		return Artifact{Data: doc.Data}, nil
	}}
	c := NewCoordinator(backend, 5*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Render(ctx, "answer", textDoc("x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsRetryable(err))

	close(release)
	<-done
}

func TestToHTML(t *testing.T) {
	policy := bluemonday.UGCPolicy()

	page, err := toHTML(context.Background(), policy, textDoc("Tom & Jerry <b>\n\nend"))
	require.NoError(t, err)
	assert.Contains(t, page, "<p>Tom &amp; Jerry &lt;b&gt;</p>")
	assert.Contains(t, page, "<p>&nbsp;</p>")

	htmlDoc := document.Document{
		Name:        "policy.html",
		ContentType: "text/html",
		Data:        []byte(`<h1>Policy</h1><script>alert(1)</script><p onclick="x()">Body</p>`),
	}
	page, err = toHTML(context.Background(), policy, htmlDoc)
	require.NoError(t, err)
	assert.Contains(t, page, "<h1>Policy</h1>")
	assert.NotContains(t, page, "<script>")
	assert.NotContains(t, page, "onclick")
}

func TestTextToHTML_Tabular(t *testing.T) {
	got := textToHTML("a\tb\nc\td", true)
	assert.Equal(t, "<table><tr><td>a</td><td>b</td></tr><tr><td>c</td><td>d</td></tr></table>", got)
}

func TestChromeBackend_RejectsUnsupportedFormat(t *testing.T) {
	b := NewChromeBackend(ChromeConfig{}, nil)
	_, err := b.Render(context.Background(), document.Document{Name: "a.bin"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.NoError(t, b.Close())
}

func TestCloseDetached_IgnoresExpiredRenderContext(t *testing.T) {
	renderCtx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-renderCtx.Done()

	var live bool
	err := closeDetached(time.Second, func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		live = ctx.Err() == nil && hasDeadline
		return nil
	})
	require.NoError(t, err)
	assert.True(t, live, "close ran on an expired or unbounded context")

	wantErr := errors.New("target gone")
	err = closeDetached(time.Second, func(context.Context) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestPDFName(t *testing.T) {
	assert.Equal(t, "policy.pdf", pdfName("policy.docx"))
	assert.Equal(t, "document.pdf", pdfName(""))
}
