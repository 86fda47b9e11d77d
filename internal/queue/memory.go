package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var errQueueClosed = errors.New("queue closed")

// MemoryQueue is a bounded in-memory queue with ack/nack redelivery for
// local single-process deployments and tests. Nacked tasks go to an
// unbounded redelivery list rather than back into the publish buffer, so a
// requeue never drops a task and never blocks the consumer.
type MemoryQueue struct {
	ch   chan Task
	done chan struct{}
	wake chan struct{}

	mu       sync.Mutex
	requeued []Task
	closed   bool
}

// NewMemoryQueue constructs a queue with the provided publish capacity.
func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 128
	}
	return &MemoryQueue{
		ch:   make(chan Task, capacity),
		done: make(chan struct{}),
		wake: make(chan struct{}, 1),
	}
}

// Publish validates the task and pushes it, or returns if the context ends
// or the queue is closed.
func (q *MemoryQueue) Publish(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return fmt.Errorf("enqueue task %s: %w", task.ID, errQueueClosed)
	case q.ch <- task:
		return nil
	}
}

// Pull blocks for the first task, then drains up to max tasks without
// blocking, returning them as deliveries. Requeued tasks are served before
// fresh ones.
func (q *MemoryQueue) Pull(ctx context.Context, max int) ([]Delivery, error) {
	if max <= 0 {
		max = 1
	}
	var batch []Delivery
	for len(batch) == 0 {
		if task, ok := q.takeRequeued(); ok {
			batch = append(batch, &memoryDelivery{task: task, queue: q})
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.done:
			return nil, errQueueClosed
		case <-q.wake:
			// A task was requeued; re-check the redelivery list.
		case task := <-q.ch:
			batch = append(batch, &memoryDelivery{task: task, queue: q})
		}
	}
	for len(batch) < max {
		if task, ok := q.takeRequeued(); ok {
			batch = append(batch, &memoryDelivery{task: task, queue: q})
			continue
		}
		select {
		case task := <-q.ch:
			batch = append(batch, &memoryDelivery{task: task, queue: q})
		default:
			return batch, nil
		}
	}
	return batch, nil
}

// Run pulls batches and feeds them to the consumer until the context ends or
// the queue closes.
func (q *MemoryQueue) Run(ctx context.Context, consumer *Consumer, batchSize int) error {
	for {
		batch, err := q.Pull(ctx, batchSize)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errQueueClosed) {
				return nil
			}
			return err
		}
		consumer.ProcessBatch(ctx, batch)
	}
}

// Close stops the queue. The task channel is never closed, only signalled
// over, so a Publish or Nack racing Close returns instead of panicking.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.done)
	return nil
}

// Len reports the number of tasks currently queued, redeliveries included.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ch) + len(q.requeued)
}

func (q *MemoryQueue) takeRequeued() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.requeued) == 0 {
		return Task{}, false
	}
	task := q.requeued[0]
	q.requeued = q.requeued[1:]
	return task, true
}

func (q *MemoryQueue) requeue(task Task) {
	q.mu.Lock()
	if q.closed {
		// Shutdown is the one point a redelivery is given up.
		q.mu.Unlock()
		return
	}
	q.requeued = append(q.requeued, task)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

type memoryDelivery struct {
	task  Task
	queue *MemoryQueue
}

func (d *memoryDelivery) Task() (Task, error) { return d.task, nil }

func (d *memoryDelivery) Ack() {}

// Nack requeues the task for redelivery. It never drops the task for lack of
// buffer space and never blocks.
func (d *memoryDelivery) Nack() {
	d.queue.requeue(d.task)
}
