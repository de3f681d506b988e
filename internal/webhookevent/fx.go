package webhookevent

import (
	"github.com/saasfoundry/lemonsync/internal/lemonsqueezy"
	"github.com/saasfoundry/lemonsync/internal/webhookevent/domain"
	"github.com/saasfoundry/lemonsync/internal/webhookevent/repository"
	"github.com/saasfoundry/lemonsync/internal/webhookevent/service"
	"go.uber.org/fx"
)

var Module = fx.Module("webhookevent.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(c *lemonsqueezy.Client) service.PriceFetcher { return c }),
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
