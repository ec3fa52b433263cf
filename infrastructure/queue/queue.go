package queue

import (
	"context"
	"encoding/json"
	"time"

	"skypress/domain/model"
)

// TaskMessage is one delivered queue message. Ack settles it; Nack returns it
// to the queue for redelivery.
type TaskMessage struct {
	Task *model.Task

	ack  func()
	nack func()
}

func (m *TaskMessage) Ack() {
	if m.ack != nil {
		m.ack()
	}
}

func (m *TaskMessage) Nack() {
	if m.nack != nil {
		m.nack()
	}
}

// NewTaskMessage builds a message with explicit settle callbacks. Used by the
// backends and by tests.
func NewTaskMessage(task *model.Task, ack, nack func()) *TaskMessage {
	return &TaskMessage{Task: task, ack: ack, nack: nack}
}

// BatchHandler processes one delivered batch.
type BatchHandler func(ctx context.Context, messages []*TaskMessage)

// ITaskQueue is the task transport. Publish delay is best effort: backends
// without native delayed delivery enqueue immediately and rely on the
// dispatcher's backpressure marker to keep retries visible.
type ITaskQueue interface {
	Publish(ctx context.Context, task *model.Task, delay time.Duration) error
	// Subscribe blocks, delivering batches of up to batchSize messages to the
	// handler until ctx is cancelled.
	Subscribe(ctx context.Context, batchSize int, handler BatchHandler) error
}

func encodeTask(task *model.Task) ([]byte, error) {
	return json.Marshal(task)
}

func decodeTask(data []byte) (*model.Task, error) {
	var t model.Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}
