package notify

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/events"
)

func TestHandleOrderEmailSendsIndonesianCopy(t *testing.T) {
	mail := &common.InMemoryEmail{}
	worker := EmailWorker{Mail: mail}

	payload, err := json.Marshal(OrderEmailPayload{
		Topic:   events.TopicOrderCreated,
		OrderID: "a4f0c9b2",
		Email:   "budi@example.com",
		Total:   320000,
	})
	require.NoError(t, err)

	err = worker.HandleOrderEmail(context.Background(), asynq.NewTask(TaskOrderEmail, payload))
	require.NoError(t, err)
	require.Len(t, mail.Outbox, 1)

	msg := mail.Outbox[0]
	require.Equal(t, "budi@example.com", msg.To)
	require.Equal(t, "Pesanan diterima", msg.Subject)
	require.True(t, strings.Contains(msg.HTML, "a4f0c9b2"))
	require.True(t, strings.Contains(msg.HTML, "320000"))
}

func TestHandleOrderEmailSkipsMissingRecipient(t *testing.T) {
	mail := &common.InMemoryEmail{}
	worker := EmailWorker{Mail: mail}

	payload, _ := json.Marshal(OrderEmailPayload{Topic: events.TopicOrderCreated, OrderID: "x"})
	err := worker.HandleOrderEmail(context.Background(), asynq.NewTask(TaskOrderEmail, payload))
	require.NoError(t, err)
	require.Empty(t, mail.Outbox)
}

func TestHandleOrderEmailRejectsMalformedTask(t *testing.T) {
	worker := EmailWorker{Mail: &common.InMemoryEmail{}}
	err := worker.HandleOrderEmail(context.Background(), asynq.NewTask(TaskOrderEmail, []byte("not-json")))
	require.Error(t, err)
}

func TestExtractRecipient(t *testing.T) {
	require.Equal(t, "a@b.id", extractRecipient(map[string]any{"email": " a@b.id "}))
	require.Equal(t, "c@d.id", extractRecipient(map[string]any{"recipient": "c@d.id"}))
	require.Equal(t, "", extractRecipient(map[string]any{"email": 42}))
	require.Equal(t, "", extractRecipient(nil))
}
