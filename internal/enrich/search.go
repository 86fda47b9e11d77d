package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// SearchError reports a non-OK response from the similar-articles search.
// The upstream status is preserved so callers can forward it.
type SearchError struct {
	Status int
	Body   string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search returned status %d: %s", e.Status, e.Body)
}

// SearchClient proxies similar-articles queries to the enrichment service.
type SearchClient struct {
	endpoint string
	client   *http.Client
}

// NewSearchClient creates a SearchClient. An empty endpoint disables search.
func NewSearchClient(endpoint string, timeout time.Duration) *SearchClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SearchClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a search endpoint is configured.
func (c *SearchClient) Enabled() bool {
	return c.endpoint != ""
}

// Search runs the query against the enrichment service and returns the raw
// JSON response body. A non-OK upstream response yields a *SearchError.
func (c *SearchClient) Search(ctx context.Context, query string) ([]byte, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("search endpoint not configured")
	}
	target := c.endpoint + "?query=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &SearchError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
