package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/saasfoundry/lemonsync/internal/lemonsqueezy"
)

// HandleLemonsqueezyWebhook receives signed provider deliveries. The response
// body contract is plain text: signature and shape failures reject the
// delivery, but a reconciliation failure still answers "OK" because the event
// was stored and finalized with its error recorded.
func (s *Server) HandleLemonsqueezyWebhook(c *gin.Context) {
	secret := s.cfg.Lemonsqueezy.WebhookSecret
	if secret == "" {
		c.String(http.StatusInternalServerError, "Lemon Squeezy Webhook Secret not set in .env")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if err := lemonsqueezy.VerifySignature(payload, c.GetHeader("X-Signature"), secret); err != nil {
		c.String(http.StatusBadRequest, "Invalid signature")
		return
	}

	env, err := lemonsqueezy.ParseEnvelope(payload)
	if err != nil {
		if errors.Is(err, lemonsqueezy.ErrMissingMeta) {
			c.String(http.StatusBadRequest, "Invalid webhook payload format: The payload is missing the required 'meta' property with event metadata")
			return
		}
		c.String(http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	c.Set("webhook_event_name", env.Meta.EventName)

	event, err := s.webhookSvc.Store(c.Request.Context(), env.Meta.EventName, payload)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.webhookSvc.Process(c.Request.Context(), event); err != nil {
		AbortWithError(c, err)
		return
	}

	c.String(http.StatusOK, "OK")
}
