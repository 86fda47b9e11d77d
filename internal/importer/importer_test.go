package importer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/advx24/snapmark/internal/queue"
)

type fakePublisher struct {
	failFor map[string]error
	tasks   []queue.Task
}

func (p *fakePublisher) Publish(_ context.Context, task queue.Task) error {
	if err, ok := p.failFor[task.URL]; ok {
		return err
	}
	p.tasks = append(p.tasks, task)
	return nil
}

type seqIDs struct {
	next int
	err  error
}

func (s *seqIDs) NewID() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.next++
	return string(rune('a' + s.next - 1)), nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func TestImportPrefetchesTitles(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>  Example Page  </title></head><body></body></html>`))
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	now := time.Date(2024, 7, 20, 12, 0, 0, 0, time.UTC)
	im := New(Config{Timeout: 5 * time.Second}, pub, &seqIDs{}, fixedClock{now: now}, zap.NewNop())

	entries := im.Import(context.Background(), []string{srv.URL})

	require.Len(t, entries, 1)
	require.Empty(t, entries[0].Error)
	require.Equal(t, "Example Page", entries[0].Title)
	require.Equal(t, "a", entries[0].TaskID)

	require.Len(t, pub.tasks, 1)
	require.Equal(t, srv.URL, pub.tasks[0].URL)
	require.Equal(t, "Example Page", pub.tasks[0].Title)
	require.Equal(t, now.Format(time.RFC3339), pub.tasks[0].CreatedAt)
}

func TestImportEnqueuesUntitledWhenPrefetchFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	pub := &fakePublisher{}
	im := New(Config{Timeout: 5 * time.Second}, pub, &seqIDs{}, fixedClock{now: time.Now()}, zap.NewNop())

	entries := im.Import(context.Background(), []string{srv.URL})

	require.Len(t, entries, 1)
	require.Empty(t, entries[0].Error, "a failed prefetch still enqueues the task")
	require.Empty(t, entries[0].Title)
	require.Len(t, pub.tasks, 1)
	require.Empty(t, pub.tasks[0].Title)
}

func TestImportReportsPerEntryPublishFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>T</title></head></html>`))
	}))
	defer srv.Close()

	good := srv.URL + "/good"
	bad := srv.URL + "/bad"
	pub := &fakePublisher{failFor: map[string]error{bad: errors.New("queue full")}}
	im := New(Config{Timeout: 5 * time.Second}, pub, &seqIDs{}, fixedClock{now: time.Now()}, zap.NewNop())

	entries := im.Import(context.Background(), []string{bad, good})

	require.Len(t, entries, 2)
	require.Equal(t, "queue full", entries[0].Error)
	require.Empty(t, entries[1].Error)
	require.Len(t, pub.tasks, 1)
	require.Equal(t, good, pub.tasks[0].URL)
}
