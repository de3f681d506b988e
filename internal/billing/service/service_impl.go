package service

import (
	"context"
	"time"

	"github.com/saasfoundry/lemonsync/internal/billing/domain"
	"github.com/saasfoundry/lemonsync/internal/config"
	"github.com/saasfoundry/lemonsync/internal/lemonsqueezy"
	obsmetrics "github.com/saasfoundry/lemonsync/internal/observability/metrics"
	plandomain "github.com/saasfoundry/lemonsync/internal/plan/domain"
	subscriptiondomain "github.com/saasfoundry/lemonsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Checkout links expire after this window; the provider rejects stale links
// with its own error page.
const checkoutTTL = 12 * time.Hour

// ProviderClient is the slice of the Lemon Squeezy client the gateway uses.
type ProviderClient interface {
	CreateCheckout(ctx context.Context, opts lemonsqueezy.CheckoutOptions) (*lemonsqueezy.Checkout, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*lemonsqueezy.Subscription, error)
	UpdateSubscription(ctx context.Context, subscriptionID string, update lemonsqueezy.SubscriptionUpdate) (*lemonsqueezy.Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*lemonsqueezy.Subscription, error)
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	Provider      ProviderClient
	Plans         plandomain.Repository
	Subscriptions subscriptiondomain.Repository
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	cfg           config.Config
	provider      ProviderClient
	plans         plandomain.Repository
	subscriptions subscriptiondomain.Repository
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("billing.service"),
		cfg:           p.Config,
		provider:      p.Provider,
		plans:         p.Plans,
		subscriptions: p.Subscriptions,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) CreateCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.Checkout, error) {
	plan, err := s.plans.FindByVariantID(ctx, s.db, req.VariantID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, domain.ErrInvalidVariant
	}

	checkout, err := s.provider.CreateCheckout(ctx, lemonsqueezy.CheckoutOptions{
		StoreID:     s.cfg.Lemonsqueezy.StoreID,
		VariantID:   req.VariantID,
		UserID:      req.UserID,
		Email:       req.Email,
		RedirectURL: req.RedirectURL,
		Embed:       req.Embed,
		ExpiresAt:   time.Now().UTC().Add(checkoutTTL),
	})
	if err != nil {
		s.recordCommand(ctx, "create_checkout", "error")
		return nil, err
	}

	s.recordCommand(ctx, "create_checkout", "ok")
	return &domain.Checkout{URL: checkout.URL}, nil
}

func (s *Service) ApplySubscriptionSettings(ctx context.Context, subscriptionID string, action domain.Action, variantID *int64) (*domain.SubscriptionState, error) {
	updated, err := s.applyAction(ctx, subscriptionID, action, variantID)
	if err != nil {
		s.recordCommand(ctx, string(action), "error")
		return nil, err
	}

	state := &domain.SubscriptionState{
		SubscriptionID:  updated.ID,
		Status:          updated.Attributes.Status,
		StatusFormatted: updated.Attributes.StatusFormatted,
		EndsAt:          updated.Attributes.EndsAt,
		IsPaused:        action == domain.ActionPause,
	}

	// The provider also confirms via webhook; this write just keeps the
	// local row from lagging a full delivery round-trip.
	if err := s.subscriptions.UpdateProviderState(ctx, s.db, state.SubscriptionID, state.Status, state.StatusFormatted, state.EndsAt, state.IsPaused); err != nil {
		s.log.Warn("local subscription update failed after settings command",
			zap.String("subscription_id", state.SubscriptionID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}

	s.recordCommand(ctx, string(action), "ok")
	return state, nil
}

func (s *Service) applyAction(ctx context.Context, subscriptionID string, action domain.Action, variantID *int64) (*lemonsqueezy.Subscription, error) {
	switch action {
	case domain.ActionPause:
		return s.provider.UpdateSubscription(ctx, subscriptionID, lemonsqueezy.SubscriptionUpdate{
			Pause: &lemonsqueezy.SubscriptionPause{Mode: "void"},
		})
	case domain.ActionUnpause:
		return s.provider.UpdateSubscription(ctx, subscriptionID, lemonsqueezy.SubscriptionUpdate{ClearPause: true})
	case domain.ActionResume:
		cancelled := false
		return s.provider.UpdateSubscription(ctx, subscriptionID, lemonsqueezy.SubscriptionUpdate{Cancelled: &cancelled})
	case domain.ActionCancel:
		return s.provider.CancelSubscription(ctx, subscriptionID)
	case domain.ActionChangePlan:
		if variantID == nil {
			return nil, domain.ErrVariantRequired
		}
		plan, err := s.plans.FindByVariantID(ctx, s.db, *variantID)
		if err != nil {
			return nil, err
		}
		if plan == nil {
			return nil, domain.ErrInvalidVariant
		}
		return s.provider.UpdateSubscription(ctx, subscriptionID, lemonsqueezy.SubscriptionUpdate{VariantID: variantID})
	default:
		return nil, domain.ErrInvalidAction
	}
}

func (s *Service) CustomerPortalURL(ctx context.Context, subscriptionID string) (string, error) {
	sub, err := s.provider.GetSubscription(ctx, subscriptionID)
	if err != nil {
		s.recordCommand(ctx, "customer_portal", "error")
		return "", err
	}
	s.recordCommand(ctx, "customer_portal", "ok")
	return sub.Attributes.URLs.CustomerPortal, nil
}

func (s *Service) recordCommand(ctx context.Context, command, outcome string) {
	if s.obsMetrics != nil {
		s.obsMetrics.RecordGatewayCommand(ctx, command, outcome)
	}
}
