package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*Order, error)
	LatestByUserID(ctx context.Context, db *gorm.DB, userID string) (*Order, error)
}
