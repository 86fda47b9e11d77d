package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/advx24/snapmark/internal/browser"
)

// Renderer executes browser work for the pipeline. Each call leases its own
// session and releases it before returning, whatever the outcome.
type Renderer interface {
	// RenderPage navigates to url and reads title, body text and outer HTML.
	RenderPage(ctx context.Context, url string) (PageSnapshot, error)

	// CaptureShot navigates to url and returns a clipped screenshot.
	CaptureShot(ctx context.Context, url string) ([]byte, error)
}

// SessionPool is the slice of browser.Pool the renderer needs.
type SessionPool interface {
	Acquire(ctx context.Context) (*browser.Lease, bool, error)
}

// RendererConfig bounds navigation and shapes the screenshot clip.
type RendererConfig struct {
	NavTimeout       time.Duration
	ScreenshotHeight int
	ViewportWidth    int
	UserAgent        string
}

// ChromedpRenderer implements Renderer over the session pool.
type ChromedpRenderer struct {
	pool SessionPool
	cfg  RendererConfig

	// run executes chromedp actions; overridable in tests.
	run func(ctx context.Context, actions ...chromedp.Action) error
}

// NewChromedpRenderer builds a renderer using the given pool.
func NewChromedpRenderer(pool SessionPool, cfg RendererConfig) *ChromedpRenderer {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.ScreenshotHeight <= 0 {
		cfg.ScreenshotHeight = 3000
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	return &ChromedpRenderer{
		pool: pool,
		cfg:  cfg,
		run:  chromedp.Run,
	}
}

// RenderPage navigates with a bounded timeout, waits for the page to settle,
// then reads the DOM in a single pass.
func (r *ChromedpRenderer) RenderPage(ctx context.Context, url string) (snap PageSnapshot, err error) {
	lease, _, err := r.pool.Acquire(ctx)
	if err != nil {
		return PageSnapshot{}, fmt.Errorf("acquire session: %w", err)
	}
	defer lease.Release()

	runCtx, cancel := context.WithTimeout(lease.Context(), r.cfg.NavTimeout)
	defer cancel()

	actions := append(r.setupActions(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.Title(&snap.Title),
		chromedp.Text("body", &snap.Text, chromedp.ByQuery),
		chromedp.OuterHTML("html", &snap.HTML, chromedp.ByQuery),
	)
	if err := r.run(runCtx, actions...); err != nil {
		return PageSnapshot{}, fmt.Errorf("render %s (session %s): %w", url, lease.SessionID(), err)
	}
	return snap, nil
}

// CaptureShot navigates and captures a viewport-width by fixed-height clip.
func (r *ChromedpRenderer) CaptureShot(ctx context.Context, url string) ([]byte, error) {
	lease, _, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	defer lease.Release()

	runCtx, cancel := context.WithTimeout(lease.Context(), r.cfg.NavTimeout)
	defer cancel()

	var img []byte
	actions := append(r.setupActions(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		r.clipScreenshotAction(&img),
	)
	if err := r.run(runCtx, actions...); err != nil {
		return nil, fmt.Errorf("screenshot %s (session %s): %w", url, lease.SessionID(), err)
	}
	return img, nil
}

func (r *ChromedpRenderer) setupActions() []chromedp.Action {
	actions := []chromedp.Action{
		chromedp.EmulateViewport(int64(r.cfg.ViewportWidth), int64(r.cfg.ScreenshotHeight)),
	}
	if r.cfg.UserAgent != "" {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := emulation.SetUserAgentOverride(r.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
			return nil
		}))
	}
	return actions
}

func (r *ChromedpRenderer) clipScreenshotAction(img *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		buf, err := page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatJpeg).
			WithClip(&page.Viewport{
				X:      0,
				Y:      0,
				Width:  float64(r.cfg.ViewportWidth),
				Height: float64(r.cfg.ScreenshotHeight),
				Scale:  1,
			}).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("capture screenshot: %w", err)
		}
		*img = buf
		return nil
	})
}
