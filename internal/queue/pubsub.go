package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// Publisher accepts validated tasks for asynchronous processing.
type Publisher interface {
	Publish(ctx context.Context, task Task) error
	Close() error
}

// PubSubQueue implements Publisher and the consumer feed over Google Cloud
// Pub/Sub. Delivery is at-least-once; the subscription redelivers nacked
// messages.
type PubSubQueue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	subID  string
	logger *zap.Logger
}

// NewPubSubQueue connects to Pub/Sub and verifies the topic exists.
// Authentication uses Application Default Credentials.
func NewPubSubQueue(ctx context.Context, projectID, topicID, subID string, logger *zap.Logger) (*PubSubQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("failed to check for topic existence: %w", err)
	}
	if !exists {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("failed to close pubsub client after topic check failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic '%s' does not exist in project '%s'", topicID, projectID)
	}

	return &PubSubQueue{
		client: client,
		topic:  topic,
		subID:  subID,
		logger: logger,
	}, nil
}

// Publish validates the task and sends it as a JSON message. Publish blocks
// until the server acknowledges the message so a queued task is never
// silently dropped.
func (q *PubSubQueue) Publish(ctx context.Context, task Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	result := q.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish task %s: %w", task.ID, err)
	}
	return nil
}

// Run pulls deliveries from the subscription and feeds them to the consumer
// until the context finishes. Each streamed message forms its own batch.
func (q *PubSubQueue) Run(ctx context.Context, consumer *Consumer) error {
	sub := q.client.Subscription(q.subID)
	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		consumer.ProcessBatch(ctx, []Delivery{&pubsubDelivery{msg: msg}})
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

// Close stops the topic's publisher and closes the client connection.
func (q *PubSubQueue) Close() error {
	q.topic.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}

type pubsubDelivery struct {
	msg *pubsub.Message
}

func (d *pubsubDelivery) Task() (Task, error) {
	var task Task
	if err := json.Unmarshal(d.msg.Data, &task); err != nil {
		return Task{}, fmt.Errorf("decode task message: %w", err)
	}
	return task, nil
}

func (d *pubsubDelivery) Ack()  { d.msg.Ack() }
func (d *pubsubDelivery) Nack() { d.msg.Nack() }
