package domain

import (
	"math/rand/v2"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type WebhookEvent struct {
	ID              int64          `json:"id" gorm:"primaryKey"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null"`
	EventName       string         `json:"event_name" gorm:"type:text;not null"`
	Processed       bool           `json:"processed" gorm:"not null"`
	Body            datatypes.JSON `json:"body" gorm:"type:jsonb;not null"`
	ProcessingError string         `json:"processing_error" gorm:"type:text"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }

const (
	eventIDMin = 100_000_000
	eventIDMax = 1_000_000_000
)

// NewEventID draws a random id in [100000000, 1000000000). The id doubles as
// the insert conflict target, so two deliveries of the same provider event
// land as two rows unless they happen to draw the same id. Deduplication by
// provider webhook id would close that gap; the current key is kept until the
// stored rows are migrated.
func NewEventID() int64 {
	return eventIDMin + rand.Int64N(eventIDMax-eventIDMin)
}

// EventKind groups event names by the prefix families the reconciler handles.
type EventKind string

const (
	KindSubscriptionPayment EventKind = "subscription_payment"
	KindSubscription        EventKind = "subscription"
	KindOrder               EventKind = "order"
	KindLicense             EventKind = "license"
	KindUnrecognized        EventKind = "unrecognized"
)

// Classify maps an event name to its kind. The subscription_payment_ prefix
// is checked before subscription_ because the latter is a prefix of the
// former.
func Classify(eventName string) EventKind {
	switch {
	case strings.HasPrefix(eventName, "subscription_payment_"):
		return KindSubscriptionPayment
	case strings.HasPrefix(eventName, "subscription_"):
		return KindSubscription
	case strings.HasPrefix(eventName, "order_"):
		return KindOrder
	case strings.HasPrefix(eventName, "license_"):
		return KindLicense
	default:
		return KindUnrecognized
	}
}
