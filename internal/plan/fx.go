package plan

import (
	"context"

	"github.com/saasfoundry/lemonsync/internal/config"
	"github.com/saasfoundry/lemonsync/internal/plan/repository"
	"github.com/saasfoundry/lemonsync/internal/plan/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("plan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Invoke(registerCatalogSync),
)

// registerCatalogSync seeds the plans table on startup and re-syncs it
// whenever plans.yml changes on disk.
func registerCatalogSync(lc fx.Lifecycle, svc *service.Service, holder *config.PlanCatalogHolder, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := svc.SyncCatalog(ctx, holder.Get()); err != nil {
				return err
			}
			holder.OnReload(func(catalog config.PlanCatalog) {
				if err := svc.SyncCatalog(context.Background(), catalog); err != nil {
					log.Error("plan catalog re-sync failed", zap.Error(err))
				}
			})
			return nil
		},
	})
}
