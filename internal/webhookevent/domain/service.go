package domain

import (
	"context"
	"errors"
)

type Service interface {
	// Store validates and persists a raw webhook body. When the generated id
	// collides with an existing row the stored row is returned unchanged.
	Store(ctx context.Context, eventName string, body []byte) (*WebhookEvent, error)
	// Process reconciles a stored event into billing state and marks it
	// processed. Reconciliation failures are recorded on the row, not
	// returned.
	Process(ctx context.Context, event *WebhookEvent) error
	// ReprocessUnprocessed re-runs reconciliation for events that were stored
	// but never finalized. Returns the number of events processed.
	ReprocessUnprocessed(ctx context.Context, limit int) (int, error)
}

var (
	ErrInvalidPayload = errors.New("invalid_payload")
	ErrMissingMeta    = errors.New("missing_meta")
)
