package capture

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/advx24/snapmark/internal/clock"
	"github.com/advx24/snapmark/internal/images"
	"github.com/advx24/snapmark/internal/metrics"
)

// ShotStore persists a processed screenshot and returns its public URL.
type ShotStore interface {
	Put(ctx context.Context, img []byte) (string, error)
}

// Pipeline drives the capture workflow. It surfaces any stage failure as a
// single wrapped error; session leases are released by the renderer on every
// path before the error propagates.
type Pipeline struct {
	renderer Renderer
	images   images.Processor
	shots    ShotStore
	clock    clock.Clock
	logger   *zap.Logger
}

// NewPipeline wires the capture stages together.
func NewPipeline(renderer Renderer, processor images.Processor, shots ShotStore, clk clock.Clock, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Pipeline{
		renderer: renderer,
		images:   processor,
		shots:    shots,
		clock:    clk,
		logger:   logger,
	}
}

// Capture navigates to url, reads the rendered DOM, then runs the screenshot
// sub-flow. The screenshot pass acquires its own session and navigates again;
// keeping Screenshot independently callable is why the two passes are not
// consolidated onto one page.
func (p *Pipeline) Capture(ctx context.Context, url string) (Result, error) {
	start := time.Now()

	snap, err := p.renderer.RenderPage(ctx, url)
	if err != nil {
		metrics.ObserveCapture("render_error", time.Since(start))
		return Result{}, fmt.Errorf("capture %s: %w", url, err)
	}

	coverURL, err := p.Screenshot(ctx, url)
	if err != nil {
		metrics.ObserveCapture("screenshot_error", time.Since(start))
		return Result{}, fmt.Errorf("capture %s: %w", url, err)
	}

	metrics.ObserveCapture("ok", time.Since(start))
	p.logger.Debug("captured url",
		zap.String("url", url),
		zap.String("cover_url", coverURL),
		zap.Duration("elapsed", time.Since(start)),
	)

	return Result{
		URL:       url,
		RawHTML:   snap.HTML,
		Content:   snap.Text,
		Title:     snap.Title,
		CoverURL:  coverURL,
		CreatedAt: p.clock.Now(),
	}, nil
}

// Screenshot captures the clipped page image, forwards it through the image
// transform service, stores the result and returns its public URL.
func (p *Pipeline) Screenshot(ctx context.Context, url string) (string, error) {
	img, err := p.renderer.CaptureShot(ctx, url)
	if err != nil {
		return "", fmt.Errorf("screenshot %s: %w", url, err)
	}
	processed, err := p.images.Process(ctx, img)
	if err != nil {
		return "", fmt.Errorf("screenshot %s: %w", url, err)
	}
	coverURL, err := p.shots.Put(ctx, processed)
	if err != nil {
		return "", fmt.Errorf("screenshot %s: %w", url, err)
	}
	return coverURL, nil
}

// ExtractText navigates to url and returns the rendered body text.
func (p *Pipeline) ExtractText(ctx context.Context, url string) (string, error) {
	snap, err := p.renderer.RenderPage(ctx, url)
	if err != nil {
		return "", fmt.Errorf("extract text %s: %w", url, err)
	}
	return snap.Text, nil
}
