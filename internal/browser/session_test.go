package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPDirectorySessions(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/sessions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"sessionId":"a","connectionId":"c-1"},
			{"sessionId":"b"}
		]`))
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(srv.URL, time.Second)
	sessions, err := dir.Sessions(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	require.False(t, sessions[0].Idle())
	require.True(t, sessions[1].Idle())
}

func TestHTTPDirectoryLaunch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/sessions", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sessionId":"new-1","webSocketDebuggerUrl":"ws://example/devtools/browser/new-1"}`))
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(srv.URL, time.Second)
	info, err := dir.Launch(context.Background())
	require.NoError(t, err)
	require.Equal(t, "new-1", info.SessionID)
	require.Equal(t, "ws://example/devtools/browser/new-1", info.WebSocketDebuggerURL)
}

func TestHTTPDirectoryLaunchOverLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("session limit reached"))
	}))
	defer srv.Close()

	dir := NewHTTPDirectory(srv.URL, time.Second)
	_, err := dir.Launch(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "session limit reached")
}

func TestWebSocketURLDerivation(t *testing.T) {
	t.Parallel()

	dir := NewHTTPDirectory("https://browser.internal:9222", time.Second)

	u, err := dir.WebSocketURL(SessionInfo{SessionID: "abc"})
	require.NoError(t, err)
	require.Equal(t, "wss://browser.internal:9222/devtools/browser/abc", u)

	u, err = dir.WebSocketURL(SessionInfo{
		SessionID:            "abc",
		WebSocketDebuggerURL: "ws://other/devtools/browser/abc",
	})
	require.NoError(t, err)
	require.Equal(t, "ws://other/devtools/browser/abc", u)
}
