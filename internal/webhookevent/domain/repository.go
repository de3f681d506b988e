package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, id int64) (*WebhookEvent, error)
	FindUnprocessed(ctx context.Context, db *gorm.DB, limit int) ([]WebhookEvent, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id int64, processingError string) error
}
