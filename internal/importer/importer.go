// Package importer enqueues capture tasks for URL batches, prefetching each
// page title with a lightweight HTTP pass so captures carry a caller title.
package importer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/advx24/snapmark/internal/clock"
	"github.com/advx24/snapmark/internal/queue"
)

// TaskPublisher enqueues capture tasks.
type TaskPublisher interface {
	Publish(ctx context.Context, task queue.Task) error
}

// IDSource mints task identifiers.
type IDSource interface {
	NewID() (string, error)
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Entry reports the outcome for one URL of a batch. Error is empty when the
// task was enqueued.
type Entry struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	TaskID string `json:"taskId,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Importer turns URL lists into queued capture tasks.
type Importer struct {
	cfg           Config
	publisher     TaskPublisher
	ids           IDSource
	clock         clock.Clock
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds an Importer.
func New(cfg Config, publisher TaskPublisher, ids IDSource, clk clock.Clock, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	return &Importer{
		cfg:           cfg,
		publisher:     publisher,
		ids:           ids,
		clock:         clk,
		logger:        logger,
		baseCollector: c,
	}
}

// Import enqueues one capture task per URL. Each URL succeeds or fails on its
// own; a bad entry never blocks the rest of the batch.
func (im *Importer) Import(ctx context.Context, urls []string) []Entry {
	entries := make([]Entry, 0, len(urls))
	for _, u := range urls {
		entries = append(entries, im.importOne(ctx, u))
	}
	return entries
}

func (im *Importer) importOne(ctx context.Context, url string) Entry {
	entry := Entry{URL: url}

	id, err := im.ids.NewID()
	if err != nil {
		entry.Error = err.Error()
		return entry
	}

	title, err := im.fetchTitle(ctx, url)
	if err != nil {
		// The capture pipeline reads the title again in the browser, so a
		// failed prefetch downgrades to an untitled task.
		im.logger.Warn("title prefetch failed",
			zap.String("url", url),
			zap.Error(err),
		)
	}

	task := queue.Task{
		ID:        id,
		URL:       url,
		Title:     title,
		CreatedAt: im.clock.Now().Format(time.RFC3339),
	}
	if err := im.publisher.Publish(ctx, task); err != nil {
		entry.Error = err.Error()
		return entry
	}
	entry.Title = title
	entry.TaskID = id
	return entry
}

func (im *Importer) fetchTitle(ctx context.Context, url string) (string, error) {
	collector := im.baseCollector.Clone()
	if im.cfg.UserAgent != "" {
		collector.UserAgent = im.cfg.UserAgent
	}
	timeout := im.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	var (
		title    string
		fetchErr error
	)
	collector.OnHTML("title", func(e *colly.HTMLElement) {
		if title == "" {
			title = strings.TrimSpace(e.Text)
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("title fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return "", fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		return title, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
