package queue

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"

	"skypress/domain/model"
	"skypress/infrastructure/logger"
)

// PubSubQueue is the Google Pub/Sub task transport. Pub/Sub has no delayed
// delivery, so Publish ignores the delay; the dispatcher compensates with the
// blast re-announce marker.
type PubSubQueue struct {
	client       *pubsub.Client
	topicName    string
	subscription string

	mu    sync.Mutex
	topic *pubsub.Topic
}

func NewPubSub(ctx context.Context, projectID string) (*pubsub.Client, error) {
	return pubsub.NewClient(ctx, projectID)
}

func NewPubSubQueue(client *pubsub.Client, topic, subscription string) *PubSubQueue {
	return &PubSubQueue{client: client, topicName: topic, subscription: subscription}
}

func (q *PubSubQueue) Publish(ctx context.Context, task *model.Task, _ time.Duration) error {
	data, err := encodeTask(task)
	if err != nil {
		return err
	}
	topic, err := q.getTopic(ctx)
	if err != nil {
		return err
	}
	serverID, err := topic.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
	if err != nil {
		return err
	}
	logger.GetLogger().
		WithField("serverID", serverID).
		WithField("kind", task.Kind).
		Debug("Task published")
	return nil
}

func (q *PubSubQueue) getTopic(ctx context.Context) (*pubsub.Topic, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.topic != nil {
		return q.topic, nil
	}
	topic := q.client.Topic(q.topicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		logger.GetLogger().WithField("topic", q.topicName).Info("Topic doesn't exist - creating it")
		if topic, err = q.client.CreateTopic(ctx, q.topicName); err != nil {
			return nil, err
		}
	}
	q.topic = topic
	return topic, nil
}

// Subscribe receives messages and hands them to the handler in batches. A
// batch is flushed when it reaches batchSize or when the collection window
// elapses with at least one message pending.
func (q *PubSubQueue) Subscribe(ctx context.Context, batchSize int, handler BatchHandler) error {
	sub := q.client.Subscription(q.subscription)

	var mu sync.Mutex
	var pending []*TaskMessage

	flush := func() {
		mu.Lock()
		batch := pending
		pending = nil
		mu.Unlock()
		if len(batch) > 0 {
			handler(ctx, batch)
		}
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				flush()
			}
		}
	}()

	return sub.Receive(ctx, func(_ context.Context, m *pubsub.Message) {
		task, err := decodeTask(m.Data)
		if err != nil {
			// Undecodable payloads would poison the subscription if nacked.
			logger.GetLogger().WithField("error", err).Error("Dropping undecodable task message")
			m.Ack()
			return
		}
		mu.Lock()
		pending = append(pending, NewTaskMessage(task, m.Ack, m.Nack))
		full := len(pending) >= batchSize
		mu.Unlock()
		if full {
			flush()
		}
	})
}
