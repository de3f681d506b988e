package order

import (
	"github.com/saasfoundry/lemonsync/internal/order/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("order.repository",
	fx.Provide(repository.Provide),
)
