package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/saasfoundry/lemonsync/internal/config"
	"github.com/saasfoundry/lemonsync/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Catalog *config.PlanCatalogHolder
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	catalog *config.PlanCatalogHolder
}

func NewService(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("plan.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		catalog: p.Catalog,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Plan, error) {
	return s.repo.List(ctx, s.db)
}

func (s *Service) FindByVariantID(ctx context.Context, variantID int64) (*domain.Plan, error) {
	return s.repo.FindByVariantID(ctx, s.db, variantID)
}

// SyncCatalog upserts every catalog entry into the plans table. Rows for
// variants that left the catalog are kept; stored events may still reference
// them.
func (s *Service) SyncCatalog(ctx context.Context, catalog config.PlanCatalog) error {
	for _, entry := range catalog.Plans {
		plan := &domain.Plan{
			ID:                 s.genID.Generate().Int64(),
			ProductID:          entry.ProductID,
			ProductName:        entry.ProductName,
			VariantID:          entry.VariantID,
			Name:               entry.Name,
			Slug:               slug.Make(entry.Name),
			Description:        entry.Description,
			Price:              entry.Price,
			IsUsageBased:       entry.IsUsageBased,
			Interval:           entry.Interval,
			IntervalCount:      entry.IntervalCount,
			TrialInterval:      entry.TrialInterval,
			TrialIntervalCount: entry.TrialIntervalCount,
			Sort:               entry.Sort,
		}
		if err := s.repo.Upsert(ctx, s.db, plan); err != nil {
			return err
		}
	}
	s.log.Info("plan catalog synced", zap.Int("plans", len(catalog.Plans)))
	return nil
}
