package repository

import (
	"context"

	"github.com/saasfoundry/lemonsync/internal/webhookevent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEvent) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO webhook_events (
			id, created_at, event_name, processed, body, processing_error
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		event.ID,
		event.CreatedAt,
		event.EventName,
		event.Processed,
		event.Body,
		event.ProcessingError,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, id int64) (*domain.WebhookEvent, error) {
	var item domain.WebhookEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, created_at, event_name, processed, body, processing_error
		 FROM webhook_events
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindUnprocessed(ctx context.Context, db *gorm.DB, limit int) ([]domain.WebhookEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []domain.WebhookEvent
	err := db.WithContext(ctx).Raw(
		`SELECT id, created_at, event_name, processed, body, processing_error
		 FROM webhook_events
		 WHERE processed = false
		 ORDER BY created_at
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id int64, processingError string) error {
	return db.WithContext(ctx).Exec(
		`UPDATE webhook_events
		 SET processed = true, processing_error = ?
		 WHERE id = ?`,
		processingError,
		id,
	).Error
}
