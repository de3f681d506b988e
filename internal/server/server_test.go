package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	billingservice "github.com/saasfoundry/lemonsync/internal/billing/service"
	"github.com/saasfoundry/lemonsync/internal/config"
	"github.com/saasfoundry/lemonsync/internal/lemonsqueezy"
	"github.com/saasfoundry/lemonsync/internal/observability"
	orderrepo "github.com/saasfoundry/lemonsync/internal/order/repository"
	plandomain "github.com/saasfoundry/lemonsync/internal/plan/domain"
	planrepo "github.com/saasfoundry/lemonsync/internal/plan/repository"
	planservice "github.com/saasfoundry/lemonsync/internal/plan/service"
	"github.com/saasfoundry/lemonsync/internal/server"
	subscriptionrepo "github.com/saasfoundry/lemonsync/internal/subscription/repository"
	webhookeventrepo "github.com/saasfoundry/lemonsync/internal/webhookevent/repository"
	webhookeventservice "github.com/saasfoundry/lemonsync/internal/webhookevent/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_server_test"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubProvider struct {
	checkoutURL string
	portalURL   string
	status      string
	err         error
}

func (s *stubProvider) CreateCheckout(ctx context.Context, opts lemonsqueezy.CheckoutOptions) (*lemonsqueezy.Checkout, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &lemonsqueezy.Checkout{ID: "ck_1", URL: s.checkoutURL}, nil
}

func (s *stubProvider) GetSubscription(ctx context.Context, id string) (*lemonsqueezy.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	sub := &lemonsqueezy.Subscription{ID: id}
	sub.Attributes.URLs.CustomerPortal = s.portalURL
	return sub, nil
}

func (s *stubProvider) UpdateSubscription(ctx context.Context, id string, update lemonsqueezy.SubscriptionUpdate) (*lemonsqueezy.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	sub := &lemonsqueezy.Subscription{ID: id}
	sub.Attributes.Status = s.status
	sub.Attributes.StatusFormatted = s.status
	return sub, nil
}

func (s *stubProvider) CancelSubscription(ctx context.Context, id string) (*lemonsqueezy.Subscription, error) {
	if s.err != nil {
		return nil, s.err
	}
	sub := &lemonsqueezy.Subscription{ID: id}
	sub.Attributes.Status = "cancelled"
	sub.Attributes.StatusFormatted = "Cancelled"
	return sub, nil
}

type stubPrices struct{}

func (stubPrices) GetPrice(ctx context.Context, priceID int64) (*lemonsqueezy.Price, error) {
	return &lemonsqueezy.Price{ID: "777", UnitPrice: 1999}, nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_srv_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE webhook_events (
			id BIGINT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			event_name TEXT NOT NULL,
			processed BOOLEAN NOT NULL DEFAULT FALSE,
			body TEXT NOT NULL,
			processing_error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE plans (
			id BIGINT PRIMARY KEY,
			product_id BIGINT NOT NULL,
			product_name TEXT,
			variant_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			slug TEXT NOT NULL,
			description TEXT,
			price BIGINT NOT NULL,
			is_usage_based BOOLEAN NOT NULL DEFAULT FALSE,
			interval TEXT,
			interval_count INTEGER,
			trial_interval TEXT,
			trial_interval_count INTEGER,
			sort INTEGER
		)`,
		`CREATE UNIQUE INDEX ux_plans_variant_id ON plans(variant_id)`,
		`CREATE TABLE orders (
			id BIGINT PRIMARY KEY,
			order_id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			status TEXT NOT NULL,
			refunded BOOLEAN NOT NULL DEFAULT FALSE,
			variant_id BIGINT NOT NULL,
			product_name TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_orders_order_id ON orders(order_id)`,
		`CREATE TABLE subscriptions (
			id BIGINT PRIMARY KEY,
			subscription_id TEXT NOT NULL,
			order_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			status TEXT NOT NULL,
			status_formatted TEXT NOT NULL,
			renews_at TEXT,
			ends_at TEXT,
			trial_ends_at TEXT,
			price TEXT NOT NULL,
			is_usage_based BOOLEAN NOT NULL DEFAULT FALSE,
			is_paused BOOLEAN NOT NULL DEFAULT FALSE,
			subscription_item_id BIGINT,
			variant_id BIGINT NOT NULL,
			card_last_four TEXT,
			card_brand TEXT,
			variant_name TEXT NOT NULL,
			user_id TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_subscriptions_subscription_id ON subscriptions(subscription_id)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db
}

func newTestServer(t *testing.T, db *gorm.DB, cfg config.Config, provider billingservice.ProviderClient) *server.Server {
	t.Helper()

	node, err := snowflake.NewNode(30)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	webhookSvc := webhookeventservice.NewService(webhookeventservice.Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Repo:          webhookeventrepo.Provide(),
		Plans:         planrepo.Provide(),
		Orders:        orderrepo.Provide(),
		Subscriptions: subscriptionrepo.Provide(),
		Prices:        stubPrices{},
	})

	billingSvc := billingservice.NewService(billingservice.Params{
		DB:            db,
		Log:           zap.NewNop(),
		Config:        cfg,
		Provider:      provider,
		Plans:         planrepo.Provide(),
		Subscriptions: subscriptionrepo.Provide(),
	})

	holder, err := config.NewPlanCatalogHolder()
	if err != nil {
		t.Fatalf("new plan catalog holder: %v", err)
	}
	planSvc := planservice.NewService(planservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    planrepo.Provide(),
		Catalog: holder,
	})

	engine := server.NewEngine(observability.Config{LogLevel: "error"}, nil)
	return server.NewServer(server.ServerParams{
		Gin:           engine,
		Cfg:           cfg,
		DB:            db,
		WebhookSvc:    webhookSvc,
		BillingSvc:    billingSvc,
		PlanSvc:       planSvc,
		Orders:        orderrepo.Provide(),
		Subscriptions: subscriptionrepo.Provide(),
	})
}

func testConfig() config.Config {
	return config.Config{
		Environment: "test",
		Lemonsqueezy: config.LemonsqueezyConfig{
			APIKey:        "test-key",
			StoreID:       "42",
			WebhookSecret: testWebhookSecret,
		},
	}
}

func seedPlan(t *testing.T, db *gorm.DB, variantID int64) {
	t.Helper()
	plan := plandomain.Plan{
		ID:        variantID * 10,
		ProductID: 1,
		VariantID: variantID,
		Name:      "Pro",
		Slug:      "pro",
		Price:     1999,
	}
	if err := planrepo.Provide().Upsert(context.Background(), db, &plan); err != nil {
		t.Fatalf("seed plan: %v", err)
	}
}

func deliverWebhook(t *testing.T, srv *server.Server, body []byte, secret string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/lemonsqueezy", bytes.NewReader(body))
	if secret != "" {
		req.Header.Set("X-Signature", lemonsqueezy.Sign(body, secret))
	}
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	return rec
}

func subscriptionWebhookBody(subscriptionID string, variantID int64) []byte {
	return []byte(fmt.Sprintf(`{
		"meta": {"event_name": "subscription_created", "custom_data": {"user_id": "user_srv"}},
		"data": {
			"id": %q,
			"type": "subscriptions",
			"attributes": {
				"order_id": 42,
				"variant_id": %d,
				"variant_name": "Pro Monthly",
				"user_name": "Ada",
				"user_email": "ada@example.com",
				"status": "active",
				"status_formatted": "Active",
				"first_subscription_item": {"id": 55, "price_id": 777, "is_usage_based": false}
			}
		}
	}`, subscriptionID, variantID))
}

func TestWebhookEndToEndSuccess(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})
	seedPlan(t, db, 9001)

	rec := deliverWebhook(t, srv, subscriptionWebhookBody("310", 9001), testWebhookSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "OK" {
		t.Fatalf("expected body OK, got %q", rec.Body.String())
	}

	var processed bool
	if err := db.Raw(`SELECT processed FROM webhook_events LIMIT 1`).Scan(&processed).Error; err != nil {
		t.Fatalf("read event: %v", err)
	}
	if !processed {
		t.Fatalf("event must be finalized after delivery")
	}
}

func TestWebhookReturnsOKEvenWithProcessingError(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})
	// No plan seeded for this variant.

	rec := deliverWebhook(t, srv, subscriptionWebhookBody("310", 4040), testWebhookSecret)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}

	var row struct {
		Processed       bool
		ProcessingError string
	}
	if err := db.Raw(`SELECT processed, processing_error FROM webhook_events LIMIT 1`).Scan(&row).Error; err != nil {
		t.Fatalf("read event: %v", err)
	}
	if !row.Processed {
		t.Fatalf("event must be finalized despite missing plan")
	}
	if !strings.Contains(row.ProcessingError, "4040") {
		t.Fatalf("processing error must name the variant, got %q", row.ProcessingError)
	}
}

func TestWebhookRejectsInvalidSignature(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})

	body := subscriptionWebhookBody("310", 9001)
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/lemonsqueezy", bytes.NewReader(body))
	req.Header.Set("X-Signature", lemonsqueezy.Sign(body, "wrong-secret"))
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest || rec.Body.String() != "Invalid signature" {
		t.Fatalf("expected 400 Invalid signature, got %d %q", rec.Code, rec.Body.String())
	}

	var count int64
	if err := db.Table("webhook_events").Count(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 0 {
		t.Fatalf("rejected delivery must not be stored")
	}
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})

	rec := deliverWebhook(t, srv, []byte("not json"), testWebhookSecret)
	if rec.Code != http.StatusBadRequest || rec.Body.String() != "Invalid JSON payload" {
		t.Fatalf("expected 400 Invalid JSON payload, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestWebhookRejectsMissingMeta(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})

	rec := deliverWebhook(t, srv, []byte(`{"data":{"id":"1"}}`), testWebhookSecret)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "meta") {
		t.Fatalf("expected meta error message, got %q", rec.Body.String())
	}
}

func TestWebhookRejectsMetaWithoutUserID(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})

	body := []byte(`{"meta":{"event_name":"order_created"},"data":{"id":"1","attributes":{"status":"paid"}}}`)
	rec := deliverWebhook(t, srv, body, testWebhookSecret)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "meta") {
		t.Fatalf("expected meta error message, got %q", rec.Body.String())
	}

	// The delivery is rejected before anything is written.
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM webhook_events`).Scan(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no stored events, got %d", count)
	}
}

func TestWebhookFailsWithoutSecret(t *testing.T) {
	db := setupTestDB(t)
	cfg := testConfig()
	cfg.Lemonsqueezy.WebhookSecret = ""
	srv := newTestServer(t, db, cfg, &stubProvider{})

	rec := deliverWebhook(t, srv, subscriptionWebhookBody("310", 9001), "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestCreateCheckoutReturnsURL(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{checkoutURL: "https://checkout.example/ck_1"})
	seedPlan(t, db, 9001)

	body, _ := json.Marshal(map[string]any{"variant_id": 9001, "user_id": "user_srv", "email": "ada@example.com"})
	req := httptest.NewRequest(http.MethodPost, "/api/checkouts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.URL != "https://checkout.example/ck_1" {
		t.Fatalf("unexpected url %q", resp.Data.URL)
	}
}

func TestCreateCheckoutRejectsUnknownVariant(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})

	body, _ := json.Marshal(map[string]any{"variant_id": 123, "user_id": "user_srv"})
	req := httptest.NewRequest(http.MethodPost, "/api/checkouts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestSubscriptionSettingsPause(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{status: "paused"})
	seedPlan(t, db, 9001)

	// Existing row written by a webhook.
	rec := deliverWebhook(t, srv, subscriptionWebhookBody("310", 9001), testWebhookSecret)
	if rec.Code != http.StatusOK {
		t.Fatalf("seed delivery failed: %d", rec.Code)
	}

	body, _ := json.Marshal(map[string]any{"action": "pause"})
	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/310/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}

	var paused bool
	if err := db.Raw(`SELECT is_paused FROM subscriptions WHERE subscription_id = '310'`).Scan(&paused).Error; err != nil {
		t.Fatalf("read subscription: %v", err)
	}
	if !paused {
		t.Fatalf("local row should reflect the pause")
	}
}

func TestSubscriptionSettingsRejectsUnknownAction(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})

	body, _ := json.Marshal(map[string]any{"action": "explode"})
	req := httptest.NewRequest(http.MethodPost, "/api/subscriptions/310/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestCustomerPortalURL(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{portalURL: "https://portal.example/310"})

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/310/portal", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "https://portal.example/310") {
		t.Fatalf("expected portal url in response, got %s", rec.Body.String())
	}
}

func TestProviderErrorsMapToUniformMessage(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{err: &lemonsqueezy.APIError{Status: 404, Detail: "Subscription not found"}})

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions/missing/portal", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error.Type != "provider_error" || resp.Error.Message != "Subscription not found" {
		t.Fatalf("unexpected error payload %+v", resp.Error)
	}
}

func TestLatestOrderAndSubscriptionListing(t *testing.T) {
	db := setupTestDB(t)
	srv := newTestServer(t, db, testConfig(), &stubProvider{})
	seedPlan(t, db, 9001)

	orderEvent := []byte(`{
		"meta": {"event_name": "order_created", "custom_data": {"user_id": "user_srv"}},
		"data": {
			"id": "ord_1",
			"type": "orders",
			"attributes": {
				"user_name": "Ada",
				"user_email": "ada@example.com",
				"status": "paid",
				"refunded": false,
				"first_order_item": {"variant_id": 9001}
			}
		}
	}`)
	if rec := deliverWebhook(t, srv, orderEvent, testWebhookSecret); rec.Code != http.StatusOK {
		t.Fatalf("order delivery failed: %d", rec.Code)
	}
	if rec := deliverWebhook(t, srv, subscriptionWebhookBody("310", 9001), testWebhookSecret); rec.Code != http.StatusOK {
		t.Fatalf("subscription delivery failed: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/orders/latest?user_id=user_srv", nil)
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "ord_1") {
		t.Fatalf("expected latest order, got %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/subscriptions?user_id=user_srv", nil)
	rec = httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "310") {
		t.Fatalf("expected subscription listing, got %d %s", rec.Code, rec.Body.String())
	}
}
