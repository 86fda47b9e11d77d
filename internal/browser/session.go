// Package browser manages exclusive leases over a pool of remote browser
// sessions. The pool is stateless between calls: session inventory lives in
// the remote endpoint's directory, and connection exclusivity is enforced by
// the endpoint itself, not by local locking.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// ErrResourceExhausted reports that no session could be attached and a new
// one could not be launched. Safe to retry later; the condition is resource
// pressure, not bad input.
var ErrResourceExhausted = errors.New("browser resource exhausted")

// SessionInfo describes one remote browser session as reported by the
// endpoint's directory. A session with an empty ConnectionID is idle.
type SessionInfo struct {
	SessionID            string `json:"sessionId"`
	ConnectionID         string `json:"connectionId,omitempty"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl,omitempty"`
}

// Idle reports whether no client currently holds the session.
func (s SessionInfo) Idle() bool {
	return s.ConnectionID == ""
}

// Directory lists and launches sessions on the remote browser endpoint.
type Directory interface {
	// Sessions returns the current session inventory, leased or not.
	Sessions(ctx context.Context) ([]SessionInfo, error)

	// Launch asks the endpoint for a brand-new session.
	Launch(ctx context.Context) (SessionInfo, error)
}

// HTTPDirectory implements Directory against the endpoint's REST surface.
type HTTPDirectory struct {
	endpoint string
	client   *http.Client
}

// NewHTTPDirectory creates a Directory for the given base endpoint,
// e.g. "http://browser.internal:9222".
func NewHTTPDirectory(endpoint string, timeout time.Duration) *HTTPDirectory {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPDirectory{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

// Sessions fetches the session inventory from GET <endpoint>/sessions.
func (d *HTTPDirectory) Sessions(ctx context.Context) ([]SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"/sessions", nil)
	if err != nil {
		return nil, fmt.Errorf("build sessions request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list sessions: unexpected status %d", resp.StatusCode)
	}
	var sessions []SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("decode sessions response: %w", err)
	}
	return sessions, nil
}

// Launch requests a fresh session via POST <endpoint>/sessions. Any failure
// here means the endpoint could not give us a browser, which callers treat as
// resource exhaustion.
func (d *HTTPDirectory) Launch(ctx context.Context) (SessionInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint+"/sessions", nil)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("build launch request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("launch session: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return SessionInfo{}, fmt.Errorf("launch session: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var info SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return SessionInfo{}, fmt.Errorf("decode launch response: %w", err)
	}
	if info.SessionID == "" {
		return SessionInfo{}, fmt.Errorf("launch session: endpoint returned no session id")
	}
	return info, nil
}

// WebSocketURL resolves the DevTools URL used to attach to the session.
func (d *HTTPDirectory) WebSocketURL(info SessionInfo) (string, error) {
	if info.WebSocketDebuggerURL != "" {
		return info.WebSocketDebuggerURL, nil
	}
	u, err := url.Parse(d.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse browser endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/devtools/browser/" + info.SessionID
	return u.String(), nil
}

// Conn is an attached browser connection. Closing it returns the lease to
// the endpoint without terminating the remote session.
type Conn interface {
	// Context returns the chromedp browser context actions run against.
	Context() context.Context
	Close()
}

// Dialer attaches to a concrete session.
type Dialer interface {
	Dial(ctx context.Context, info SessionInfo) (Conn, error)
}

// ChromedpDialer attaches to remote sessions over the DevTools protocol.
type ChromedpDialer struct {
	directory     *HTTPDirectory
	attachTimeout time.Duration
}

// NewChromedpDialer creates a Dialer resolving websocket URLs through dir.
func NewChromedpDialer(dir *HTTPDirectory, attachTimeout time.Duration) *ChromedpDialer {
	if attachTimeout <= 0 {
		attachTimeout = 10 * time.Second
	}
	return &ChromedpDialer{directory: dir, attachTimeout: attachTimeout}
}

// Dial connects to the session and probes the connection so that stale or
// dead sessions fail here instead of mid-capture.
func (d *ChromedpDialer) Dial(ctx context.Context, info SessionInfo) (Conn, error) {
	wsURL, err := d.directory.WebSocketURL(info)
	if err != nil {
		return nil, err
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), wsURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	probeCtx, probeCancel := context.WithTimeout(browserCtx, d.attachTimeout)
	defer probeCancel()
	if err := chromedp.Run(probeCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("attach to session %s: %w", info.SessionID, err)
	}
	select {
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("attach canceled: %w", ctx.Err())
	default:
	}

	return &chromedpConn{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}, nil
}

type chromedpConn struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

func (c *chromedpConn) Context() context.Context {
	return c.browserCtx
}

// Close drops the websocket. The remote allocator never signals the browser
// process to exit, so the session stays alive for the next lease.
func (c *chromedpConn) Close() {
	c.browserCancel()
	c.allocCancel()
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}
