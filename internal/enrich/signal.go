// Package enrich emits the best-effort signal to the external enrichment
// service. Failures are logged and never propagated: the signal's outcome is
// decoupled from the task that triggered it.
package enrich

import (
	"context"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Signal posts to the enrichment endpoint after articles change.
type Signal struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewSignal creates a Signal. An empty endpoint disables notification.
func NewSignal(endpoint string, timeout time.Duration, logger *zap.Logger) *Signal {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Signal{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Notify fires the signal. It never returns an error.
func (s *Signal) Notify(ctx context.Context) {
	if s.endpoint == "" {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, nil)
	if err != nil {
		s.logger.Warn("enrichment signal request build failed", zap.Error(err))
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("enrichment signal failed", zap.Error(err))
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= http.StatusMultipleChoices {
		s.logger.Warn("enrichment signal rejected", zap.Int("status", resp.StatusCode))
	}
}
