// Package main wires together the capture service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/advx24/snapmark/internal/api"
	"github.com/advx24/snapmark/internal/browser"
	"github.com/advx24/snapmark/internal/capture"
	"github.com/advx24/snapmark/internal/clock"
	"github.com/advx24/snapmark/internal/config"
	"github.com/advx24/snapmark/internal/enrich"
	"github.com/advx24/snapmark/internal/id"
	"github.com/advx24/snapmark/internal/images"
	"github.com/advx24/snapmark/internal/importer"
	"github.com/advx24/snapmark/internal/logging"
	"github.com/advx24/snapmark/internal/metrics"
	"github.com/advx24/snapmark/internal/queue"
	"github.com/advx24/snapmark/internal/storage"
	"github.com/advx24/snapmark/internal/store"
)

// taskQueue is the common surface of the pub/sub and in-memory queues.
type taskQueue interface {
	Publish(ctx context.Context, task queue.Task) error
	Close() error
}

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	clk := clock.NewSystem()
	ids := id.NewGenerator()

	directory := browser.NewHTTPDirectory(
		cfg.Browser.Endpoint,
		time.Duration(cfg.Browser.DirectoryTimeout)*time.Second,
	)
	dialer := browser.NewChromedpDialer(directory, time.Duration(cfg.Browser.AttachTimeoutSec)*time.Second)
	pool := browser.NewPool(directory, dialer, logger.Named("browser"))

	renderer := capture.NewChromedpRenderer(pool, capture.RendererConfig{
		NavTimeout:       cfg.NavTimeout(),
		ScreenshotHeight: cfg.Browser.ScreenshotHeight,
		ViewportWidth:    cfg.Browser.ViewportWidth,
		UserAgent:        cfg.Browser.UserAgent,
	})

	provider, err := newBlobProvider(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init blob storage: %w", err)
	}
	defer func() {
		if closeErr := provider.Close(); closeErr != nil {
			logger.Warn("blob storage close failed", zap.Error(closeErr))
		}
	}()
	shots := storage.NewScreenshotStore(provider, ids, cfg.Storage.Prefix, cfg.Storage.PublicBaseURL)

	imgClient := images.NewClient(cfg.ImgProc.Endpoint, time.Duration(cfg.ImgProc.TimeoutSeconds)*time.Second)
	pipeline := capture.NewPipeline(renderer, imgClient, shots, clk, logger.Named("capture"))

	articles, err := store.New(ctx, store.Config{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init article store: %w", err)
	}
	defer articles.Close()

	signalClient := enrich.NewSignal(
		cfg.Enrichment.Endpoint,
		time.Duration(cfg.Enrichment.TimeoutSeconds)*time.Second,
		logger.Named("enrich"),
	)
	searchClient := enrich.NewSearchClient(
		cfg.Enrichment.SearchEndpoint,
		time.Duration(cfg.Enrichment.TimeoutSeconds)*time.Second,
	)
	consumer := queue.NewConsumer(pipeline, articles, signalClient, logger.Named("consumer"))

	tasks, runConsumer, err := newTaskQueue(ctx, cfg, consumer, logger)
	if err != nil {
		return fmt.Errorf("init task queue: %w", err)
	}
	defer func() {
		if closeErr := tasks.Close(); closeErr != nil {
			logger.Warn("queue close failed", zap.Error(closeErr))
		}
	}()

	imp := importer.New(importer.Config{
		UserAgent: cfg.Importer.UserAgent,
		Timeout:   time.Duration(cfg.Importer.TimeoutSeconds) * time.Second,
	}, tasks, ids, clk, logger.Named("importer"))

	apiServer := api.NewServer(pipeline, articles, tasks, imp, signalClient, searchClient, ids, clk, logger.Named("api"), cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("consumer started")
		if err := runConsumer(ctx); err != nil {
			logger.Error("consumer stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

func newBlobProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (storage.Provider, error) {
	switch cfg.Storage.Provider {
	case "gcs":
		return storage.NewGCSProvider(ctx, cfg.Storage.GCSBucket, logger.Named("storage"))
	case "memory":
		return storage.NewMemoryProvider(), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}

func newTaskQueue(
	ctx context.Context,
	cfg config.Config,
	consumer *queue.Consumer,
	logger *zap.Logger,
) (taskQueue, func(context.Context) error, error) {
	switch cfg.PubSub.Provider {
	case "pubsub":
		q, err := queue.NewPubSubQueue(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID, cfg.PubSub.SubscriptionID, logger.Named("queue"))
		if err != nil {
			return nil, nil, err
		}
		return q, func(ctx context.Context) error { return q.Run(ctx, consumer) }, nil
	case "memory":
		q := queue.NewMemoryQueue(cfg.PubSub.QueueDepth)
		return q, func(ctx context.Context) error { return q.Run(ctx, consumer, cfg.PubSub.BatchSize) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue provider %q", cfg.PubSub.Provider)
	}
}
