package repository

import (
	"context"

	"github.com/saasfoundry/lemonsync/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Upsert replaces the whole row on conflict. The provider is the source of
// truth; whichever delivery commits last wins.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			id, subscription_id, order_id, name, email, status, status_formatted,
			renews_at, ends_at, trial_ends_at, price, is_usage_based, is_paused,
			subscription_item_id, variant_id, card_last_four, card_brand,
			variant_name, user_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscription_id) DO UPDATE SET
			order_id = excluded.order_id,
			name = excluded.name,
			email = excluded.email,
			status = excluded.status,
			status_formatted = excluded.status_formatted,
			renews_at = excluded.renews_at,
			ends_at = excluded.ends_at,
			trial_ends_at = excluded.trial_ends_at,
			price = excluded.price,
			is_usage_based = excluded.is_usage_based,
			is_paused = excluded.is_paused,
			subscription_item_id = excluded.subscription_item_id,
			variant_id = excluded.variant_id,
			card_last_four = excluded.card_last_four,
			card_brand = excluded.card_brand,
			variant_name = excluded.variant_name,
			user_id = excluded.user_id`,
		sub.ID,
		sub.SubscriptionID,
		sub.OrderID,
		sub.Name,
		sub.Email,
		sub.Status,
		sub.StatusFormatted,
		sub.RenewsAt,
		sub.EndsAt,
		sub.TrialEndsAt,
		sub.Price,
		sub.IsUsageBased,
		sub.IsPaused,
		sub.SubscriptionItemID,
		sub.VariantID,
		sub.CardLastFour,
		sub.CardBrand,
		sub.VariantName,
		sub.UserID,
	).Error
}

func (r *repo) FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*domain.Subscription, error) {
	var item domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, order_id, name, email, status, status_formatted,
			renews_at, ends_at, trial_ends_at, price, is_usage_based, is_paused,
			subscription_item_id, variant_id, card_last_four, card_brand,
			variant_name, user_id
		 FROM subscriptions
		 WHERE subscription_id = ?
		 LIMIT 1`,
		subscriptionID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// UpdateProviderState applies the provider's response to the local row after
// a settings command. A row that has not been created by a webhook yet is
// left alone.
func (r *repo) UpdateProviderState(ctx context.Context, db *gorm.DB, subscriptionID, status, statusFormatted string, endsAt *string, isPaused bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, status_formatted = ?, ends_at = ?, is_paused = ?
		 WHERE subscription_id = ?`,
		status,
		statusFormatted,
		endsAt,
		isPaused,
		subscriptionID,
	).Error
}

func (r *repo) ListByUserID(ctx context.Context, db *gorm.DB, userID string) ([]domain.Subscription, error) {
	var items []domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, subscription_id, order_id, name, email, status, status_formatted,
			renews_at, ends_at, trial_ends_at, price, is_usage_based, is_paused,
			subscription_item_id, variant_id, card_last_four, card_brand,
			variant_name, user_id
		 FROM subscriptions
		 WHERE user_id = ?
		 ORDER BY id DESC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
