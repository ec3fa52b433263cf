package queue

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"skypress/domain/model"
	"skypress/infrastructure/logger"
)

// ServiceBusQueue is the Azure Service Bus task transport. Unlike Pub/Sub it
// supports native scheduled delivery, so retry delays ride on the message
// itself.
type ServiceBusQueue struct {
	client *azservicebus.Client
	queue  string
}

func NewServiceBus(namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

func NewServiceBusQueue(client *azservicebus.Client, queue string) *ServiceBusQueue {
	return &ServiceBusQueue{client: client, queue: queue}
}

func (q *ServiceBusQueue) Publish(ctx context.Context, task *model.Task, delay time.Duration) error {
	data, err := encodeTask(task)
	if err != nil {
		return err
	}
	sender, err := q.client.NewSender(q.queue, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := sender.Close(context.Background()); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing sender")
		}
	}()

	msg := &azservicebus.Message{Body: data}
	if delay > 0 {
		at := time.Now().Add(delay)
		msg.ScheduledEnqueueTime = &at
	}
	return sender.SendMessage(ctx, msg, nil)
}

func (q *ServiceBusQueue) Subscribe(ctx context.Context, batchSize int, handler BatchHandler) error {
	receiver, err := q.client.NewReceiverForQueue(q.queue, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing receiver")
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(ctx, batchSize, nil)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		batch := make([]*TaskMessage, 0, len(messages))
		for _, m := range messages {
			m := m
			task, err := decodeTask(m.Body)
			if err != nil {
				logger.GetLogger().WithField("error", err).Error("Dropping undecodable task message")
				_ = receiver.CompleteMessage(ctx, m, nil)
				continue
			}
			batch = append(batch, NewTaskMessage(task,
				func() { _ = receiver.CompleteMessage(ctx, m, nil) },
				func() { _ = receiver.AbandonMessage(ctx, m, nil) },
			))
		}
		if len(batch) > 0 {
			handler(ctx, batch)
		}
	}
}
