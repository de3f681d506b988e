package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	FindByVariantID(ctx context.Context, db *gorm.DB, variantID int64) (*Plan, error)
	List(ctx context.Context, db *gorm.DB) ([]Plan, error)
	Upsert(ctx context.Context, db *gorm.DB, plan *Plan) error
}
