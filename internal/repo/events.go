package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lokastore/storefront-api/internal/events"
)

// EventRepo persists domain events.
type EventRepo struct {
	Pool *pgxpool.Pool
}

// InsertDomainEvent appends one event and returns the stored row.
func (r EventRepo) InsertDomainEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.DomainEvent, error) {
	var ev events.DomainEvent
	err := r.Pool.QueryRow(ctx, `
		INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING id, topic, aggregate_id, payload, occurred_at`,
		topic, pgUUID(aggregateID), payload).
		Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &ev.Payload, &ev.OccurredAt)
	if err != nil {
		return events.DomainEvent{}, err
	}
	return ev, nil
}
