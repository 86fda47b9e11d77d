// Package images calls the external image resize/crop service.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Processor transforms a raw screenshot into its stored form.
type Processor interface {
	Process(ctx context.Context, img []byte) ([]byte, error)
}

// Client posts raw JPEG bytes to the resize service and returns the
// processed buffer.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient creates a Client for the given resize endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Process sends img to the resize service. A non-OK response body is the
// error message.
func (c *Client) Process(ctx context.Context, img []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("build image transform request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image transform request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("image processing failed: %s", strings.TrimSpace(string(msg)))
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read transformed image: %w", err)
	}
	return out, nil
}
