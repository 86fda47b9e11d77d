// Package api exposes the HTTP interface for the capture service.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/advx24/snapmark/internal/capture"
	"github.com/advx24/snapmark/internal/clock"
	"github.com/advx24/snapmark/internal/config"
	"github.com/advx24/snapmark/internal/importer"
	"github.com/advx24/snapmark/internal/metrics"
	"github.com/advx24/snapmark/internal/queue"
	"github.com/advx24/snapmark/internal/store"
)

// Capturer is the synchronous capture surface the handlers call.
type Capturer interface {
	Capture(ctx context.Context, url string) (capture.Result, error)
	Screenshot(ctx context.Context, url string) (string, error)
	ExtractText(ctx context.Context, url string) (string, error)
}

// Articles is the persistence surface the handlers call.
type Articles interface {
	Save(ctx context.Context, a store.Article) (store.Article, error)
	Update(ctx context.Context, url string, p store.Patch) (store.Article, error)
	SoftDelete(ctx context.Context, url string) (store.Article, error)
	ListActive(ctx context.Context) ([]store.Article, error)
}

// TaskPublisher enqueues capture tasks for asynchronous processing.
type TaskPublisher interface {
	Publish(ctx context.Context, task queue.Task) error
}

// Importer prefetches titles and enqueues a URL batch.
type Importer interface {
	Import(ctx context.Context, urls []string) []importer.Entry
}

// Notifier pings the downstream enrichment service after writes.
type Notifier interface {
	Notify(ctx context.Context)
}

// Searcher proxies similar-articles queries to the enrichment service.
type Searcher interface {
	Search(ctx context.Context, query string) ([]byte, error)
}

// IDSource mints task identifiers for queued bookmarks.
type IDSource interface {
	NewID() (string, error)
}

// Server wires HTTP handlers to the capture pipeline, store and queue.
type Server struct {
	router    chi.Router
	capturer  Capturer
	articles  Articles
	publisher TaskPublisher
	importer  Importer
	notifier  Notifier
	search    Searcher
	ids       IDSource
	clock     clock.Clock
	logger    *zap.Logger
	cfg       config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	capturer Capturer,
	articles Articles,
	publisher TaskPublisher,
	imp Importer,
	notifier Notifier,
	search Searcher,
	ids IDSource,
	clk clock.Clock,
	logger *zap.Logger,
	cfg config.Config,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		capturer:  capturer,
		articles:  articles,
		publisher: publisher,
		importer:  imp,
		notifier:  notifier,
		search:    search,
		ids:       ids,
		clock:     clk,
		logger:    logger,
		cfg:       cfg,
	}

	timeout := time.Duration(cfg.Server.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(timeout))
	r.Use(metrics.Middleware)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/capture", func(r chi.Router) {
			r.Get("/screenshot", s.captureScreenshot)
			r.Get("/text", s.captureText)
			r.Get("/info", s.captureInfo)
		})
		r.Route("/bookmarks", func(r chi.Router) {
			r.Get("/", s.listBookmarks)
			r.Post("/", s.createBookmarks)
			r.Put("/", s.updateBookmark)
			r.Delete("/", s.deleteBookmark)
		})
		r.Post("/tasks/batch", s.submitTaskBatch)
		r.Post("/import", s.importURLs)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	// Downstream dependencies fail per-request; readiness only means the
	// process is serving.
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// notify pings the enrichment service after the response is written. The
// request context dies with the response, so the ping gets its own.
func (s *Server) notify(ctx context.Context) {
	if s.notifier == nil {
		return
	}
	go s.notifier.Notify(context.WithoutCancel(ctx))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
