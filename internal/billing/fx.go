package billing

import (
	"github.com/saasfoundry/lemonsync/internal/billing/domain"
	"github.com/saasfoundry/lemonsync/internal/billing/service"
	"github.com/saasfoundry/lemonsync/internal/lemonsqueezy"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(func(c *lemonsqueezy.Client) service.ProviderClient { return c }),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
