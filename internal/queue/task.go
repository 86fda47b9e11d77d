// Package queue implements the capture task queue: publishing, delivery and
// the consumer loop that drives capture and persistence per task.
package queue

import (
	"fmt"
	"net/url"
	"time"
)

// Task is one queued capture request. CreatedAt travels as an RFC3339 string
// on the wire.
type Task struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ValidationError reports a malformed task or request shape. It is rejected
// before any side effect and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// Validate checks the task shape: id and url are required, and url must be
// an absolute http(s) URL.
func (t Task) Validate() error {
	if t.ID == "" {
		return &ValidationError{Reason: "task id is required"}
	}
	if t.URL == "" {
		return &ValidationError{Reason: "task url is required"}
	}
	u, err := url.Parse(t.URL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return &ValidationError{Reason: fmt.Sprintf("task url %q is not an absolute URL", t.URL)}
	}
	return nil
}

// ParsedCreatedAt returns the task timestamp, falling back when the field is
// absent or unparseable.
func (t Task) ParsedCreatedAt(fallback time.Time) time.Time {
	if t.CreatedAt == "" {
		return fallback
	}
	ts, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return fallback
	}
	return ts
}

// Delivery is one message handed to the consumer. Ack confirms processing;
// Nack requests redelivery. Exactly one of the two is called per delivery.
type Delivery interface {
	Task() (Task, error)
	Ack()
	Nack()
}
