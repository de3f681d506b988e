package repository

import (
	"context"

	"github.com/saasfoundry/lemonsync/internal/plan/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByVariantID(ctx context.Context, db *gorm.DB, variantID int64) (*domain.Plan, error) {
	var item domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, product_name, variant_id, name, slug, description,
			price, is_usage_based, interval, interval_count, trial_interval,
			trial_interval_count, sort
		 FROM plans
		 WHERE variant_id = ?
		 LIMIT 1`,
		variantID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]domain.Plan, error) {
	var items []domain.Plan
	err := db.WithContext(ctx).Raw(
		`SELECT id, product_id, product_name, variant_id, name, slug, description,
			price, is_usage_based, interval, interval_count, trial_interval,
			trial_interval_count, sort
		 FROM plans
		 ORDER BY sort, variant_id`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, plan *domain.Plan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO plans (
			id, product_id, product_name, variant_id, name, slug, description,
			price, is_usage_based, interval, interval_count, trial_interval,
			trial_interval_count, sort
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (variant_id) DO UPDATE SET
			product_id = excluded.product_id,
			product_name = excluded.product_name,
			name = excluded.name,
			slug = excluded.slug,
			description = excluded.description,
			price = excluded.price,
			is_usage_based = excluded.is_usage_based,
			interval = excluded.interval,
			interval_count = excluded.interval_count,
			trial_interval = excluded.trial_interval,
			trial_interval_count = excluded.trial_interval_count,
			sort = excluded.sort`,
		plan.ID,
		plan.ProductID,
		plan.ProductName,
		plan.VariantID,
		plan.Name,
		plan.Slug,
		plan.Description,
		plan.Price,
		plan.IsUsageBased,
		plan.Interval,
		plan.IntervalCount,
		plan.TrialInterval,
		plan.TrialIntervalCount,
		plan.Sort,
	).Error
}
