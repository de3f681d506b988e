package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/saasfoundry/lemonsync/internal/config"
	planrepo "github.com/saasfoundry/lemonsync/internal/plan/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupCatalogTest(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_plan_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE plans (
		id BIGINT PRIMARY KEY,
		product_id BIGINT NOT NULL,
		product_name TEXT,
		variant_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		slug TEXT NOT NULL,
		description TEXT,
		price BIGINT NOT NULL,
		is_usage_based BOOLEAN NOT NULL DEFAULT FALSE,
		interval TEXT,
		interval_count INTEGER,
		trial_interval TEXT,
		trial_interval_count INTEGER,
		sort INTEGER
	)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX ux_plans_variant_id ON plans(variant_id)`).Error)

	node, err := snowflake.NewNode(40)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  planrepo.Provide(),
	})
	return db, svc
}

func TestSyncCatalogUpsertsEntries(t *testing.T) {
	db, svc := setupCatalogTest(t)

	catalog := config.PlanCatalog{Plans: []config.PlanEntry{
		{ProductID: 1, ProductName: "Lemonsync", VariantID: 9001, Name: "Pro Monthly", Price: 1999, Interval: "month", IntervalCount: 1, Sort: 1},
		{ProductID: 1, ProductName: "Lemonsync", VariantID: 9002, Name: "Pro Yearly", Price: 19990, Interval: "year", IntervalCount: 1, Sort: 2},
	}}
	require.NoError(t, svc.SyncCatalog(context.Background(), catalog))

	plans, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "pro-monthly", plans[0].Slug)
	assert.Equal(t, int64(9001), plans[0].VariantID)

	var count int64
	require.NoError(t, db.Table("plans").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestSyncCatalogIsIdempotentPerVariant(t *testing.T) {
	db, svc := setupCatalogTest(t)

	catalog := config.PlanCatalog{Plans: []config.PlanEntry{
		{ProductID: 1, VariantID: 9001, Name: "Pro Monthly", Price: 1999},
	}}
	require.NoError(t, svc.SyncCatalog(context.Background(), catalog))

	// Re-sync with a new price keeps one row per variant.
	catalog.Plans[0].Price = 2499
	require.NoError(t, svc.SyncCatalog(context.Background(), catalog))

	var count int64
	require.NoError(t, db.Table("plans").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	plan, err := svc.FindByVariantID(context.Background(), 9001)
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Equal(t, int64(2499), plan.Price)
}

func TestFindByVariantIDReturnsNilForUnknown(t *testing.T) {
	_, svc := setupCatalogTest(t)

	plan, err := svc.FindByVariantID(context.Background(), 404)
	require.NoError(t, err)
	assert.Nil(t, plan)
}
