package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/lokastore/storefront-api/internal/common"
	"github.com/lokastore/storefront-api/internal/events"
	"github.com/lokastore/storefront-api/internal/obs"
)

var orderEmailTmpl = template.Must(template.New("order").Parse(`<p>Halo,</p>
<p>{{.Intro}}</p>
<p>Nomor pesanan: <strong>{{.OrderID}}</strong></p>
{{if .Total}}<p>Total pembayaran: Rp{{.Total}}</p>{{end}}
<p>Terima kasih telah berbelanja di Lokastore.</p>`))

// EmailWorker renders and sends transactional order emails from queued
// tasks.
type EmailWorker struct {
	Mail common.EmailSender
	Log  *zerolog.Logger
}

// HandleOrderEmail processes one TaskOrderEmail task.
func (w EmailWorker) HandleOrderEmail(ctx context.Context, t *asynq.Task) error {
	if w.Mail == nil {
		return nil
	}
	var payload OrderEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("order email: decode task: %w", err)
	}
	if payload.Email == "" {
		return nil
	}
	subject, intro := subjectFor(payload.Topic)
	var body bytes.Buffer
	if err := orderEmailTmpl.Execute(&body, map[string]any{
		"Intro":   intro,
		"OrderID": payload.OrderID,
		"Total":   payload.Total,
	}); err != nil {
		return fmt.Errorf("order email: render: %w", err)
	}
	if err := w.Mail.Send(payload.Email, subject, body.String()); err != nil {
		if obs.OrderEmailTotal != nil {
			obs.OrderEmailTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("order email: send: %w", err)
	}
	if obs.OrderEmailTotal != nil {
		obs.OrderEmailTotal.WithLabelValues("sent").Inc()
	}
	if w.Log != nil {
		w.Log.Info().Str("order_id", payload.OrderID).Str("topic", payload.Topic).Msg("order email sent")
	}
	return nil
}

func subjectFor(topic string) (subject, intro string) {
	switch topic {
	case events.TopicOrderCreated:
		return "Pesanan diterima", "Pesanan kamu sudah kami terima dan sedang diproses."
	case events.TopicOrderCanceled:
		return "Pesanan dibatalkan", "Pesanan kamu telah dibatalkan."
	case events.TopicOrderShipped:
		return "Pesanan dikirim", "Pesanan kamu sudah dalam perjalanan."
	default:
		return fmt.Sprintf("Notifikasi %s", topic), "Ada pembaruan untuk pesanan kamu."
	}
}

// Mux returns an asynq mux with all notify handlers registered.
func (w EmailWorker) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskOrderEmail, w.HandleOrderEmail)
	return mux
}
