package repository

import (
	"context"

	"github.com/saasfoundry/lemonsync/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert replaces the whole row on conflict. Concurrent deliveries for the
// same order resolve to whichever write commits last.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (
			id, order_id, name, email, status, refunded, variant_id,
			product_name, user_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (order_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			status = excluded.status,
			refunded = excluded.refunded,
			variant_id = excluded.variant_id,
			product_name = excluded.product_name,
			user_id = excluded.user_id,
			updated_at = excluded.updated_at`,
		order.ID,
		order.OrderID,
		order.Name,
		order.Email,
		order.Status,
		order.Refunded,
		order.VariantID,
		order.ProductName,
		order.UserID,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, name, email, status, refunded, variant_id,
			product_name, user_id, created_at, updated_at
		 FROM orders
		 WHERE order_id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) LatestByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Order, error) {
	var item domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, name, email, status, refunded, variant_id,
			product_name, user_id, created_at, updated_at
		 FROM orders
		 WHERE user_id = ?
		 ORDER BY updated_at DESC
		 LIMIT 1`,
		userID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}
