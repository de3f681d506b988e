package lemonsqueezy

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrMissingMeta    = errors.New("payload missing meta")
	ErrMissingData    = errors.New("payload missing data")
)

// Meta is the metadata object Lemon Squeezy attaches to every webhook body.
type Meta struct {
	EventName  string     `json:"event_name"`
	TestMode   bool       `json:"test_mode"`
	WebhookID  string     `json:"webhook_id"`
	CustomData CustomData `json:"custom_data"`
}

type CustomData struct {
	UserID string `json:"user_id"`
}

// Data is the JSON:API resource object carried by subscription and order
// events. Attributes stays raw until the caller knows which event family it
// belongs to.
type Data struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Attributes json.RawMessage `json:"attributes"`
}

// Envelope is a decoded webhook body. Meta is always present on a valid
// envelope; Data is only present on events that carry a resource.
type Envelope struct {
	Meta Meta            `json:"meta"`
	Data json.RawMessage `json:"data"`
}

// HasData reports whether the envelope carries a resource object with
// attributes, which is what the reconciler needs to act on an event.
func (e Envelope) HasData() bool {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return false
	}
	var d Data
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return false
	}
	return len(d.Attributes) > 0 && string(d.Attributes) != "null"
}

// Resource decodes the envelope's data object.
func (e Envelope) Resource() (Data, error) {
	var d Data
	if len(e.Data) == 0 {
		return d, ErrMissingData
	}
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return d, ErrInvalidPayload
	}
	return d, nil
}

// ParseEnvelope decodes a raw webhook body. A body that is not valid JSON
// yields ErrInvalidPayload; valid JSON whose meta lacks an event_name or a
// custom_data.user_id yields ErrMissingMeta. A delivery without the user id
// cannot be attributed to an account, so it is rejected before storage.
func ParseEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, ErrInvalidPayload
	}
	if strings.TrimSpace(env.Meta.EventName) == "" {
		return Envelope{}, ErrMissingMeta
	}
	if strings.TrimSpace(env.Meta.CustomData.UserID) == "" {
		return Envelope{}, ErrMissingMeta
	}
	return env, nil
}

// OrderAttributes is the attribute set carried by order_* events. Only the
// fields the reconciler reads are decoded.
type OrderAttributes struct {
	StoreID         int64          `json:"store_id"`
	CustomerID      int64          `json:"customer_id"`
	Identifier      string         `json:"identifier"`
	OrderNumber     int64          `json:"order_number"`
	UserName        string         `json:"user_name"`
	UserEmail       string         `json:"user_email"`
	Status          string         `json:"status"`
	StatusFormatted string         `json:"status_formatted"`
	Refunded        bool           `json:"refunded"`
	RefundedAt      *string        `json:"refunded_at"`
	CreatedAt       string         `json:"created_at"`
	UpdatedAt       string         `json:"updated_at"`
	FirstOrderItem  FirstOrderItem `json:"first_order_item"`
}

type FirstOrderItem struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"order_id"`
	ProductID   int64  `json:"product_id"`
	VariantID   int64  `json:"variant_id"`
	ProductName string `json:"product_name"`
	VariantName string `json:"variant_name"`
	Price       int64  `json:"price"`
}

// SubscriptionAttributes is the attribute set carried by subscription_*
// events.
type SubscriptionAttributes struct {
	StoreID               int64                 `json:"store_id"`
	CustomerID            int64                 `json:"customer_id"`
	OrderID               int64                 `json:"order_id"`
	OrderItemID           int64                 `json:"order_item_id"`
	ProductID             int64                 `json:"product_id"`
	VariantID             int64                 `json:"variant_id"`
	ProductName           string                `json:"product_name"`
	VariantName           string                `json:"variant_name"`
	UserName              string                `json:"user_name"`
	UserEmail             string                `json:"user_email"`
	Status                string                `json:"status"`
	StatusFormatted       string                `json:"status_formatted"`
	CardBrand             string                `json:"card_brand"`
	CardLastFour          string                `json:"card_last_four"`
	TrialEndsAt           *string               `json:"trial_ends_at"`
	RenewsAt              *string               `json:"renews_at"`
	EndsAt                *string               `json:"ends_at"`
	FirstSubscriptionItem FirstSubscriptionItem `json:"first_subscription_item"`
	URLs                  SubscriptionURLs      `json:"urls"`
}

type FirstSubscriptionItem struct {
	ID             int64 `json:"id"`
	SubscriptionID int64 `json:"subscription_id"`
	PriceID        int64 `json:"price_id"`
	Quantity       int64 `json:"quantity"`
	IsUsageBased   bool  `json:"is_usage_based"`
}

type SubscriptionURLs struct {
	UpdatePaymentMethod string `json:"update_payment_method"`
	CustomerPortal      string `json:"customer_portal"`
}

// DecodeOrderAttributes decodes the data.attributes object of an order event.
func DecodeOrderAttributes(d Data) (OrderAttributes, error) {
	var attrs OrderAttributes
	if len(d.Attributes) == 0 {
		return attrs, ErrMissingData
	}
	if err := json.Unmarshal(d.Attributes, &attrs); err != nil {
		return attrs, ErrInvalidPayload
	}
	return attrs, nil
}

// DecodeSubscriptionAttributes decodes the data.attributes object of a
// subscription event.
func DecodeSubscriptionAttributes(d Data) (SubscriptionAttributes, error) {
	var attrs SubscriptionAttributes
	if len(d.Attributes) == 0 {
		return attrs, ErrMissingData
	}
	if err := json.Unmarshal(d.Attributes, &attrs); err != nil {
		return attrs, ErrInvalidPayload
	}
	return attrs, nil
}
