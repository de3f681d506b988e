package domain

import (
	"context"
	"errors"
)

// Action is a subscription settings command accepted by the gateway.
type Action string

const (
	ActionPause      Action = "pause"
	ActionUnpause    Action = "unpause"
	ActionResume     Action = "resume"
	ActionCancel     Action = "cancel"
	ActionChangePlan Action = "change_plan"
)

func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionPause, ActionUnpause, ActionResume, ActionCancel, ActionChangePlan:
		return Action(s), nil
	default:
		return "", ErrInvalidAction
	}
}

type CheckoutRequest struct {
	VariantID   int64  `json:"variant_id"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	RedirectURL string `json:"redirect_url"`
	Embed       bool   `json:"embed"`
}

type Checkout struct {
	URL string `json:"url"`
}

// SubscriptionState is the provider-reported state after a settings command.
type SubscriptionState struct {
	SubscriptionID  string  `json:"subscription_id"`
	Status          string  `json:"status"`
	StatusFormatted string  `json:"status_formatted"`
	EndsAt          *string `json:"ends_at"`
	IsPaused        bool    `json:"is_paused"`
}

type Service interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	ApplySubscriptionSettings(ctx context.Context, subscriptionID string, action Action, variantID *int64) (*SubscriptionState, error)
	CustomerPortalURL(ctx context.Context, subscriptionID string) (string, error)
}

var (
	ErrInvalidAction   = errors.New("invalid_action")
	ErrVariantRequired = errors.New("variant_required")
	ErrInvalidVariant  = errors.New("invalid_variant")
)
