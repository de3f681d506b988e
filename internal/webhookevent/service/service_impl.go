package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/saasfoundry/lemonsync/internal/lemonsqueezy"
	obsmetrics "github.com/saasfoundry/lemonsync/internal/observability/metrics"
	orderdomain "github.com/saasfoundry/lemonsync/internal/order/domain"
	plandomain "github.com/saasfoundry/lemonsync/internal/plan/domain"
	subscriptiondomain "github.com/saasfoundry/lemonsync/internal/subscription/domain"
	"github.com/saasfoundry/lemonsync/internal/webhookevent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PriceFetcher is the slice of the provider client the reconciler depends on.
type PriceFetcher interface {
	GetPrice(ctx context.Context, priceID int64) (*lemonsqueezy.Price, error)
}

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	Plans         plandomain.Repository
	Orders        orderdomain.Repository
	Subscriptions subscriptiondomain.Repository
	Prices        PriceFetcher
	ObsMetrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	plans         plandomain.Repository
	orders        orderdomain.Repository
	subscriptions subscriptiondomain.Repository
	prices        PriceFetcher
	obsMetrics    *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("webhookevent.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		plans:         p.Plans,
		orders:        p.Orders,
		subscriptions: p.Subscriptions,
		prices:        p.Prices,
		obsMetrics:    p.ObsMetrics,
	}
}

func (s *Service) Store(ctx context.Context, eventName string, body []byte) (*domain.WebhookEvent, error) {
	if eventName == "" {
		return nil, domain.ErrMissingMeta
	}
	if !json.Valid(body) {
		return nil, domain.ErrInvalidPayload
	}

	record := domain.WebhookEvent{
		ID:        domain.NewEventID(),
		CreatedAt: time.Now().UTC(),
		EventName: eventName,
		Processed: false,
		Body:      datatypes.JSON(body),
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &record)
	if err != nil {
		return nil, err
	}
	if !inserted {
		// Another delivery won the insert on this id; return its row.
		stored, err := s.repo.FindEvent(ctx, s.db, record.ID)
		if err != nil {
			return nil, err
		}
		if stored == nil {
			return nil, domain.ErrInvalidPayload
		}
		return stored, nil
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, string(domain.Classify(eventName)))
	}
	return &record, nil
}

func (s *Service) Process(ctx context.Context, event *domain.WebhookEvent) error {
	if event == nil {
		return domain.ErrInvalidPayload
	}

	processingError, reason := s.reconcile(ctx, event)
	if processingError != "" {
		s.log.Warn("webhook event reconciled with error",
			zap.Int64("event_id", event.ID),
			zap.String("event_name", event.EventName),
			zap.String("processing_error", processingError),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordReconcileError(ctx, string(domain.Classify(event.EventName)), reason)
		}
	}

	if err := s.repo.MarkProcessed(ctx, s.db, event.ID, processingError); err != nil {
		return err
	}
	event.Processed = true
	event.ProcessingError = processingError
	return nil
}

func (s *Service) ReprocessUnprocessed(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.FindUnprocessed(ctx, s.db, limit)
	if err != nil {
		return 0, err
	}
	for i := range events {
		if err := s.Process(ctx, &events[i]); err != nil {
			return i, err
		}
	}
	return len(events), nil
}

// reconcile folds every failure mode into the returned processingError string
// so the caller can always finalize the event. The second return value is a
// low-cardinality reason used only for metrics.
func (s *Service) reconcile(ctx context.Context, event *domain.WebhookEvent) (string, string) {
	env, err := lemonsqueezy.ParseEnvelope(event.Body)
	if err != nil {
		return "Event body is missing the 'meta' property.", "invalid_payload"
	}
	if !env.HasData() {
		return "", ""
	}

	switch domain.Classify(event.EventName) {
	case domain.KindSubscription:
		return s.reconcileSubscription(ctx, env)
	case domain.KindOrder:
		return s.reconcileOrder(ctx, env)
	default:
		// License events and payment pings carry no state this service
		// tracks.
		return "", ""
	}
}

func (s *Service) reconcileOrder(ctx context.Context, env lemonsqueezy.Envelope) (string, string) {
	resource, err := env.Resource()
	if err != nil {
		return "Event body is missing the 'data' property.", "invalid_payload"
	}
	attrs, err := lemonsqueezy.DecodeOrderAttributes(resource)
	if err != nil {
		return fmt.Sprintf("Failed to parse the attributes for Order #%s.", resource.ID), "invalid_payload"
	}

	variantID := attrs.FirstOrderItem.VariantID
	plan, err := s.plans.FindByVariantID(ctx, s.db, variantID)
	if err != nil {
		return fmt.Sprintf("Failed to look up Plan #%d in the database. %v", variantID, err), "plan_lookup_failed"
	}
	if plan == nil {
		return fmt.Sprintf("Plan #%d not found in the database.", variantID), "plan_not_found"
	}

	order := &orderdomain.Order{
		ID:        s.genID.Generate().Int64(),
		OrderID:   resource.ID,
		Name:      attrs.UserName,
		Email:     attrs.UserEmail,
		Status:    attrs.Status,
		Refunded:  attrs.Refunded,
		VariantID: variantID,
		// TODO: source product_name from the plans table instead of leaving
		// it blank.
		ProductName: "",
		UserID:      env.Meta.CustomData.UserID,
		CreatedAt:   parseOrderTime(attrs.CreatedAt),
		UpdatedAt:   parseOrderTime(attrs.UpdatedAt),
	}
	if err := s.orders.Upsert(ctx, s.db, order); err != nil {
		return fmt.Sprintf("Failed to upsert Order #%s to the database. %v", order.OrderID, err), "upsert_failed"
	}
	return "", ""
}

// parseOrderTime reads the provider's order timestamps. Replays of the same
// event must write identical values, so the payload's clock is used, not
// ours; an absent or unreadable timestamp falls back to the current time.
func parseOrderTime(value string) time.Time {
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC()
	}
	return time.Now().UTC()
}

func (s *Service) reconcileSubscription(ctx context.Context, env lemonsqueezy.Envelope) (string, string) {
	resource, err := env.Resource()
	if err != nil {
		return "Event body is missing the 'data' property.", "invalid_payload"
	}
	attrs, err := lemonsqueezy.DecodeSubscriptionAttributes(resource)
	if err != nil {
		return fmt.Sprintf("Failed to parse the attributes for Subscription #%s.", resource.ID), "invalid_payload"
	}

	variantID := attrs.VariantID
	plan, err := s.plans.FindByVariantID(ctx, s.db, variantID)
	if err != nil {
		return fmt.Sprintf("Failed to look up Plan #%d in the database. %v", variantID, err), "plan_lookup_failed"
	}
	if plan == nil {
		return fmt.Sprintf("Plan #%d not found in the database.", variantID), "plan_not_found"
	}

	// The subscription row is written even when the price lookup fails; the
	// failure string on the event is what tells an operator the price column
	// is stale.
	processingError, reason := "", ""
	price := ""
	priceData, err := s.prices.GetPrice(ctx, attrs.FirstSubscriptionItem.PriceID)
	if err != nil {
		processingError = fmt.Sprintf("Failed to get the price data for the subscription %s.", resource.ID)
		reason = "price_lookup_failed"
	} else if attrs.FirstSubscriptionItem.IsUsageBased {
		if priceData.UnitPriceDecimal != nil {
			price = *priceData.UnitPriceDecimal
		}
	} else {
		price = strconv.FormatInt(priceData.UnitPrice, 10)
	}

	sub := &subscriptiondomain.Subscription{
		ID:                 s.genID.Generate().Int64(),
		SubscriptionID:     resource.ID,
		OrderID:            attrs.OrderID,
		Name:               attrs.UserName,
		Email:              attrs.UserEmail,
		Status:             attrs.Status,
		StatusFormatted:    attrs.StatusFormatted,
		RenewsAt:           attrs.RenewsAt,
		EndsAt:             attrs.EndsAt,
		TrialEndsAt:        attrs.TrialEndsAt,
		Price:              price,
		IsUsageBased:       attrs.FirstSubscriptionItem.IsUsageBased,
		IsPaused:           false,
		SubscriptionItemID: attrs.FirstSubscriptionItem.ID,
		VariantID:          variantID,
		CardLastFour:       attrs.CardLastFour,
		CardBrand:          attrs.CardBrand,
		VariantName:        attrs.VariantName,
		UserID:             env.Meta.CustomData.UserID,
	}
	if err := s.subscriptions.Upsert(ctx, s.db, sub); err != nil {
		return fmt.Sprintf("Failed to upsert Subscription #%s to the database. %v", sub.SubscriptionID, err), "upsert_failed"
	}
	return processingError, reason
}
