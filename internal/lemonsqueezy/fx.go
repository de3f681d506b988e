package lemonsqueezy

import (
	"github.com/saasfoundry/lemonsync/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("lemonsqueezy.client",
	fx.Provide(func(cfg config.Config) *Client {
		return NewClient(cfg.Lemonsqueezy.APIKey, WithBaseURL(cfg.Lemonsqueezy.APIBaseURL))
	}),
)
