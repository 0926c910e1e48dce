package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/lokastore/storefront-api/internal/events"
)

// TaskOrderEmail is the asynq task type for transactional order emails.
const TaskOrderEmail = "email:order"

// OrderEmailPayload is the task body for one transactional email.
type OrderEmailPayload struct {
	Topic   string `json:"topic"`
	OrderID string `json:"orderId"`
	Email   string `json:"email"`
	Total   int64  `json:"total"`
}

// Enqueuer publishes email tasks for emitted domain events. It implements
// events.Notifier so checkout and order flows stay unaware of the queue.
type Enqueuer struct {
	Client *asynq.Client
}

// Notify enqueues an order email when the event carries a recipient.
// Events without an email address are skipped silently.
func (e Enqueuer) Notify(ctx context.Context, event events.DomainEvent) error {
	if e.Client == nil {
		return nil
	}
	switch event.Topic {
	case events.TopicOrderCreated, events.TopicOrderCanceled, events.TopicOrderShipped:
	default:
		return nil
	}
	var payload map[string]any
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return fmt.Errorf("email enqueue: decode payload: %w", err)
		}
	}
	email := extractRecipient(payload)
	if email == "" {
		return nil
	}
	task := OrderEmailPayload{
		Topic:   event.Topic,
		OrderID: event.AggregateID.String(),
		Email:   email,
	}
	if total, ok := payload["total"].(float64); ok {
		task.Total = int64(total)
	}
	body, err := json.Marshal(task)
	if err != nil {
		return err
	}
	_, err = e.Client.EnqueueContext(ctx, asynq.NewTask(TaskOrderEmail, body), asynq.MaxRetry(5))
	if err != nil {
		return fmt.Errorf("email enqueue: %w", err)
	}
	return nil
}

func extractRecipient(payload map[string]any) string {
	for _, key := range []string{"email", "recipient", "customerEmail"} {
		if val, ok := payload[key]; ok {
			if s, ok := val.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					return s
				}
			}
		}
	}
	return ""
}
