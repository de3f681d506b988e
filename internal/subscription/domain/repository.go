package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*Subscription, error)
	ListByUserID(ctx context.Context, db *gorm.DB, userID string) ([]Subscription, error)
	UpdateProviderState(ctx context.Context, db *gorm.DB, subscriptionID, status, statusFormatted string, endsAt *string, isPaused bool) error
}
