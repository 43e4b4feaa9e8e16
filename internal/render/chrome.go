package render

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/joestump/docmerge/internal/document"
)

const tabCloseTimeout = 5 * time.Second

// ChromeConfig selects the browser the ChromeBackend drives.
type ChromeConfig struct {
	// DebuggerURL connects to an already running browser when set.
	DebuggerURL string
	// Bin is the Chromium binary to launch; empty lets the launcher find
	// or download one.
	Bin string
}

// ChromeBackend prints documents to PDF in headless Chromium.
type ChromeBackend struct {
	cfg    ChromeConfig
	policy *bluemonday.Policy
	log    *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

func NewChromeBackend(cfg ChromeConfig, log *zap.Logger) *ChromeBackend {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChromeBackend{cfg: cfg, policy: bluemonday.UGCPolicy(), log: log}
}

// Render implements Backend.
func (c *ChromeBackend) Render(ctx context.Context, doc document.Document) (Artifact, error) {
	page, err := c.toHTMLPage(ctx, doc)
	if err != nil {
		return Artifact{}, err
	}
	browser, err := c.connect(ctx)
	if err != nil {
		return Artifact{}, classify(ctx, err)
	}

	tab, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return Artifact{}, classify(ctx, fmt.Errorf("open page: %w", err))
	}
	defer c.closeTab(tab)

	if err := tab.SetDocumentContent(page); err != nil {
		return Artifact{}, classify(ctx, fmt.Errorf("load document: %w", err))
	}
	if err := tab.WaitLoad(); err != nil {
		return Artifact{}, classify(ctx, fmt.Errorf("wait load: %w", err))
	}
	stream, err := tab.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return Artifact{}, classify(ctx, fmt.Errorf("print pdf: %w", err))
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return Artifact{}, classify(ctx, fmt.Errorf("read pdf: %w", err))
	}
	return Artifact{Name: pdfName(doc.Name), ContentType: "application/pdf", Data: data}, nil
}

func (c *ChromeBackend) toHTMLPage(ctx context.Context, doc document.Document) (string, error) {
	if _, err := doc.Format(); err != nil {
		return "", err
	}
	page, err := toHTML(ctx, c.policy, doc)
	if err != nil {
		return "", classify(ctx, err)
	}
	return page, nil
}

// closeTab closes a render's tab on its own context; the render context may
// already have expired.
func (c *ChromeBackend) closeTab(tab *rod.Page) {
	err := closeDetached(tabCloseTimeout, func(ctx context.Context) error {
		return tab.Context(ctx).Close()
	})
	if err != nil {
		c.log.Warn("close tab", zap.String("target_id", string(tab.TargetID)), zap.Error(err))
	}
}

func closeDetached(timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx)
}

// connect returns the shared browser, connecting or launching it on first use.
func (c *ChromeBackend) connect(ctx context.Context) (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		if _, err := c.browser.Version(); err == nil {
			return c.browser, nil
		}
		c.log.Warn("stale browser connection, reconnecting")
		_ = c.browser.Close()
		c.browser = nil
	}

	controlURL := c.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		if c.cfg.Bin != "" {
			l = l.Bin(c.cfg.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	// The browser outlives the request that started it.
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	c.log.Info("browser connected", zap.Bool("launched", c.cfg.DebuggerURL == ""))
	c.browser = browser
	return browser, nil
}

// Close shuts down the browser connection.
func (c *ChromeBackend) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.browser == nil {
		return nil
	}
	err := c.browser.Close()
	c.browser = nil
	return err
}

func pdfName(name string) string {
	base := strings.TrimSuffix(name, path.Ext(name))
	if base == "" {
		base = "document"
	}
	return base + ".pdf"
}
