package subscription

import (
	"github.com/saasfoundry/lemonsync/internal/subscription/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.repository",
	fx.Provide(repository.Provide),
)
