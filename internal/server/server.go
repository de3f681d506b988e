package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/saasfoundry/lemonsync/internal/billing"
	billingdomain "github.com/saasfoundry/lemonsync/internal/billing/domain"
	"github.com/saasfoundry/lemonsync/internal/config"
	"github.com/saasfoundry/lemonsync/internal/lemonsqueezy"
	"github.com/saasfoundry/lemonsync/internal/observability"
	obsmiddleware "github.com/saasfoundry/lemonsync/internal/observability/logger"
	obsmetrics "github.com/saasfoundry/lemonsync/internal/observability/metrics"
	obstracing "github.com/saasfoundry/lemonsync/internal/observability/tracing"
	"github.com/saasfoundry/lemonsync/internal/order"
	orderdomain "github.com/saasfoundry/lemonsync/internal/order/domain"
	"github.com/saasfoundry/lemonsync/internal/plan"
	planservice "github.com/saasfoundry/lemonsync/internal/plan/service"
	"github.com/saasfoundry/lemonsync/internal/ratelimit"
	"github.com/saasfoundry/lemonsync/internal/subscription"
	subscriptiondomain "github.com/saasfoundry/lemonsync/internal/subscription/domain"
	"github.com/saasfoundry/lemonsync/internal/webhookevent"
	webhookeventdomain "github.com/saasfoundry/lemonsync/internal/webhookevent/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	lemonsqueezy.Module,
	ratelimit.Module,
	fx.Provide(registerGin),
	plan.Module,
	order.Module,
	subscription.Module,
	webhookevent.Module,
	billing.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	webhookSvc      webhookeventdomain.Service
	billingSvc      billingdomain.Service
	planSvc         *planservice.Service
	orders          orderdomain.Repository
	subscriptions   subscriptiondomain.Repository
	obsMetrics      *obsmetrics.Metrics
	gatewayLimiter  *ratelimit.GatewayLimiter
	checkoutLimiter *rateLimiter
	settingsLimiter *rateLimiter
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	DB             *gorm.DB
	WebhookSvc     webhookeventdomain.Service
	BillingSvc     billingdomain.Service
	PlanSvc        *planservice.Service
	Orders         orderdomain.Repository
	Subscriptions  subscriptiondomain.Repository
	ObsMetrics     *obsmetrics.Metrics       `optional:"true"`
	GatewayLimiter *ratelimit.GatewayLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		webhookSvc:      p.WebhookSvc,
		billingSvc:      p.BillingSvc,
		planSvc:         p.PlanSvc,
		orders:          p.Orders,
		subscriptions:   p.Subscriptions,
		obsMetrics:      p.ObsMetrics,
		gatewayLimiter:  p.GatewayLimiter,
		checkoutLimiter: newRateLimiter(30, time.Minute),
		settingsLimiter: newRateLimiter(30, time.Minute),
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Webhooks --------
	api.POST("/webhooks/lemonsqueezy", s.HandleLemonsqueezyWebhook)

	// -------- Plans --------
	api.GET("/plans", s.ListPlans)

	// -------- Orders --------
	api.GET("/orders/latest", s.GetLatestOrder)

	// -------- Subscriptions --------
	api.GET("/subscriptions", s.ListSubscriptions)
	api.POST("/subscriptions/:id/settings", s.RateLimit(s.settingsLimiter), s.ApplySubscriptionSettings)
	api.GET("/subscriptions/:id/portal", s.RateLimit(s.settingsLimiter), s.GetCustomerPortalURL)

	// -------- Checkouts --------
	api.POST("/checkouts", s.RateLimit(s.checkoutLimiter), s.CreateCheckout)

	if s.cfg.Environment != "production" {
		api.POST("/webhook-events/reprocess", s.ReprocessWebhookEvents)
		api.POST("/test/cleanup", s.TestCleanup)
	}
}
