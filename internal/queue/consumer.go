package queue

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/advx24/snapmark/internal/capture"
	"github.com/advx24/snapmark/internal/metrics"
	"github.com/advx24/snapmark/internal/store"
)

// CapturePipeline is the slice of capture.Pipeline the consumer drives.
type CapturePipeline interface {
	Capture(ctx context.Context, url string) (capture.Result, error)
}

// ArticleSaver persists capture results.
type ArticleSaver interface {
	Save(ctx context.Context, a store.Article) (store.Article, error)
}

// Notifier signals the downstream enrichment service. Best effort; failures
// stay inside the implementation.
type Notifier interface {
	Notify(ctx context.Context)
}

// Consumer processes delivered capture tasks. Ack/nack decisions are made
// here and nowhere else, per message, never for a whole batch.
type Consumer struct {
	pipeline CapturePipeline
	articles ArticleSaver
	notifier Notifier
	logger   *zap.Logger
}

// NewConsumer wires the consumer's collaborators.
func NewConsumer(pipeline CapturePipeline, articles ArticleSaver, notifier Notifier, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{
		pipeline: pipeline,
		articles: articles,
		notifier: notifier,
		logger:   logger,
	}
}

// ProcessBatch handles each delivery independently: one task's failure never
// blocks or rolls back the others. After the batch the enrichment service is
// pinged regardless of per-task outcomes.
func (c *Consumer) ProcessBatch(ctx context.Context, batch []Delivery) {
	for _, d := range batch {
		c.processOne(ctx, d)
	}
	if c.notifier != nil {
		c.notifier.Notify(ctx)
	}
}

func (c *Consumer) processOne(ctx context.Context, d Delivery) {
	task, err := d.Task()
	if err == nil {
		err = task.Validate()
	}
	if err != nil {
		// Malformed messages would fail identically on every redelivery.
		c.logger.Warn("dropping malformed task", zap.Error(err))
		metrics.ObserveTask("invalid")
		d.Ack()
		return
	}

	result, err := c.pipeline.Capture(ctx, task.URL)
	if err != nil {
		c.logger.Error("capture failed, requesting redelivery",
			zap.String("task_id", task.ID),
			zap.String("url", task.URL),
			zap.Error(err),
		)
		metrics.ObserveTask("retry")
		d.Nack()
		return
	}

	article := result.Article()
	if task.Title != "" {
		// The caller-supplied title wins over the page's own.
		article.Title = task.Title
	}
	article.CreatedAt = task.ParsedCreatedAt(result.CreatedAt)

	_, err = c.articles.Save(ctx, article)
	switch {
	case errors.Is(err, store.ErrDuplicateURL):
		// The URL was already captured; processing succeeded, so the
		// message is consumed rather than redelivered.
		c.logger.Info("article already captured",
			zap.String("task_id", task.ID),
			zap.String("url", task.URL),
		)
		metrics.ObserveTask("duplicate")
		d.Ack()
	case err != nil:
		c.logger.Error("persist failed, requesting redelivery",
			zap.String("task_id", task.ID),
			zap.String("url", task.URL),
			zap.Error(err),
		)
		metrics.ObserveTask("retry")
		d.Nack()
	default:
		c.logger.Info("processed task",
			zap.String("task_id", task.ID),
			zap.String("url", task.URL),
		)
		metrics.ObserveTask("ack")
		d.Ack()
	}
}
