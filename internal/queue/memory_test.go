package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryQueuePublishValidates(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(4)
	defer func() { _ = q.Close() }()

	err := q.Publish(context.Background(), Task{URL: "https://example.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Zero(t, q.Len())
}

func TestMemoryQueuePullBatches(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(8)
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	for i, u := range []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"} {
		require.NoError(t, q.Publish(ctx, Task{ID: string(rune('1' + i)), URL: u}))
	}

	batch, err := q.Pull(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	batch, err = q.Pull(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 1)
}

func TestMemoryQueueNackRequeues(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(8)
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Task{ID: "1", URL: "https://example.com"}))

	batch, err := q.Pull(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)
	require.Zero(t, q.Len())

	batch[0].Nack()
	require.Equal(t, 1, q.Len())

	redelivered, err := q.Pull(ctx, 1)
	require.NoError(t, err)
	task, err := redelivered[0].Task()
	require.NoError(t, err)
	require.Equal(t, "1", task.ID)
}

func TestMemoryQueueNackSurvivesFullQueue(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	defer func() { _ = q.Close() }()

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Task{ID: "1", URL: "https://a.example.com"}))

	batch, err := q.Pull(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	// Fill the publish buffer while the first delivery is in flight, then
	// request redelivery. Both tasks must still come back out.
	require.NoError(t, q.Publish(ctx, Task{ID: "2", URL: "https://b.example.com"}))
	batch[0].Nack()
	require.Equal(t, 2, q.Len())

	seen := map[string]bool{}
	for len(seen) < 2 {
		redelivered, err := q.Pull(ctx, 2)
		require.NoError(t, err)
		for _, d := range redelivered {
			task, err := d.Task()
			require.NoError(t, err)
			seen[task.ID] = true
		}
	}
	require.True(t, seen["1"], "nacked task must be redelivered, not dropped")
	require.True(t, seen["2"])
}

func TestMemoryQueueNackAfterCloseDoesNotPanic(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)

	ctx := context.Background()
	require.NoError(t, q.Publish(ctx, Task{ID: "1", URL: "https://example.com"}))

	batch, err := q.Pull(ctx, 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, q.Close())
	require.NotPanics(t, func() { batch[0].Nack() })

	err = q.Publish(ctx, Task{ID: "2", URL: "https://example.com"})
	require.ErrorIs(t, err, errQueueClosed)

	_, err = q.Pull(ctx, 1)
	require.ErrorIs(t, err, errQueueClosed)
}

func TestMemoryQueuePullRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewMemoryQueue(1)
	defer func() { _ = q.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pull(ctx, 1)
	require.Error(t, err)
}
