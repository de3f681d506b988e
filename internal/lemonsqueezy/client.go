package lemonsqueezy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.lemonsqueezy.com/v1"

// APIError carries the first error detail from a JSON:API error response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("lemonsqueezy: request failed with status %d", e.Status)
}

// Client is a minimal Lemon Squeezy JSON:API client covering the endpoints
// the billing gateway and reconciler need.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckoutOptions mirrors the attributes accepted by POST /checkouts.
type CheckoutOptions struct {
	StoreID     string
	VariantID   int64
	UserID      string
	Email       string
	RedirectURL string
	Embed       bool
	ExpiresAt   time.Time
}

type checkoutAttributes struct {
	CheckoutOptions struct {
		Embed bool `json:"embed"`
		Media bool `json:"media"`
		Logo  bool `json:"logo"`
	} `json:"checkout_options"`
	CheckoutData struct {
		Email  string            `json:"email,omitempty"`
		Custom map[string]string `json:"custom,omitempty"`
	} `json:"checkout_data"`
	ProductOptions struct {
		EnabledVariants []int64 `json:"enabled_variants"`
		RedirectURL     string  `json:"redirect_url,omitempty"`
	} `json:"product_options"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

type resourceIdentifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data resourceIdentifier `json:"data"`
}

// Checkout is the slice of a checkout resource callers consume.
type Checkout struct {
	ID  string
	URL string
}

// CreateCheckout creates a hosted checkout for the given variant and returns
// its URL.
func (c *Client) CreateCheckout(ctx context.Context, opts CheckoutOptions) (*Checkout, error) {
	attrs := checkoutAttributes{}
	attrs.CheckoutOptions.Embed = opts.Embed
	attrs.CheckoutOptions.Media = true
	attrs.CheckoutOptions.Logo = true
	attrs.CheckoutData.Email = opts.Email
	if opts.UserID != "" {
		attrs.CheckoutData.Custom = map[string]string{"user_id": opts.UserID}
	}
	attrs.ProductOptions.EnabledVariants = []int64{opts.VariantID}
	attrs.ProductOptions.RedirectURL = opts.RedirectURL
	if !opts.ExpiresAt.IsZero() {
		attrs.ExpiresAt = opts.ExpiresAt.UTC().Format(time.RFC3339)
	}

	body := map[string]any{
		"data": map[string]any{
			"type":       "checkouts",
			"attributes": attrs,
			"relationships": map[string]relationship{
				"store":   {Data: resourceIdentifier{Type: "stores", ID: opts.StoreID}},
				"variant": {Data: resourceIdentifier{Type: "variants", ID: strconv.FormatInt(opts.VariantID, 10)}},
			},
		},
	}

	var resp struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				URL string `json:"url"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/checkouts", body, &resp); err != nil {
		return nil, err
	}
	return &Checkout{ID: resp.Data.ID, URL: resp.Data.Attributes.URL}, nil
}

// Subscription is the slice of a subscription resource callers consume.
type Subscription struct {
	ID         string
	Attributes SubscriptionAttributes
}

// GetSubscription fetches a subscription by its provider id.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var resp struct {
		Data struct {
			ID         string                 `json:"id"`
			Attributes SubscriptionAttributes `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/subscriptions/"+subscriptionID, nil, &resp); err != nil {
		return nil, err
	}
	return &Subscription{ID: resp.Data.ID, Attributes: resp.Data.Attributes}, nil
}

// SubscriptionUpdate is a partial update applied via PATCH /subscriptions/{id}.
// Nil fields are left untouched by the provider.
type SubscriptionUpdate struct {
	Pause      *SubscriptionPause
	ClearPause bool
	Cancelled  *bool
	VariantID  *int64
}

type SubscriptionPause struct {
	Mode string `json:"mode"`
}

// UpdateSubscription applies a partial update to a subscription.
func (c *Client) UpdateSubscription(ctx context.Context, subscriptionID string, update SubscriptionUpdate) (*Subscription, error) {
	attrs := map[string]any{}
	if update.Pause != nil {
		attrs["pause"] = update.Pause
	} else if update.ClearPause {
		attrs["pause"] = nil
	}
	if update.Cancelled != nil {
		attrs["cancelled"] = *update.Cancelled
	}
	if update.VariantID != nil {
		attrs["variant_id"] = *update.VariantID
	}

	body := map[string]any{
		"data": map[string]any{
			"type":       "subscriptions",
			"id":         subscriptionID,
			"attributes": attrs,
		},
	}

	var resp struct {
		Data struct {
			ID         string                 `json:"id"`
			Attributes SubscriptionAttributes `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPatch, "/subscriptions/"+subscriptionID, body, &resp); err != nil {
		return nil, err
	}
	return &Subscription{ID: resp.Data.ID, Attributes: resp.Data.Attributes}, nil
}

// CancelSubscription cancels a subscription at the end of its billing period.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	var resp struct {
		Data struct {
			ID         string                 `json:"id"`
			Attributes SubscriptionAttributes `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodDelete, "/subscriptions/"+subscriptionID, nil, &resp); err != nil {
		return nil, err
	}
	return &Subscription{ID: resp.Data.ID, Attributes: resp.Data.Attributes}, nil
}

// Price is the slice of a price resource the reconciler reads when storing a
// subscription.
type Price struct {
	ID               string
	UnitPrice        int64
	UnitPriceDecimal *string
}

// GetPrice fetches a price by id.
func (c *Client) GetPrice(ctx context.Context, priceID int64) (*Price, error) {
	var resp struct {
		Data struct {
			ID         string `json:"id"`
			Attributes struct {
				UnitPrice        int64   `json:"unit_price"`
				UnitPriceDecimal *string `json:"unit_price_decimal"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/prices/"+strconv.FormatInt(priceID, 10), nil, &resp); err != nil {
		return nil, err
	}
	return &Price{
		ID:               resp.Data.ID,
		UnitPrice:        resp.Data.Attributes.UnitPrice,
		UnitPriceDecimal: resp.Data.Attributes.UnitPriceDecimal,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.api+json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp.StatusCode, payload)
	}

	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, payload []byte) error {
	var body struct {
		Errors []struct {
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(payload, &body); err == nil && len(body.Errors) > 0 {
		apiErr.Detail = body.Errors[0].Detail
	}
	return apiErr
}
