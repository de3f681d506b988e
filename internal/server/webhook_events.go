package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type reprocessRequest struct {
	Limit int `json:"limit"`
}

// ReprocessWebhookEvents re-runs reconciliation for events left unprocessed by
// a crash between store and finalize. Operator tooling only; the route is not
// registered in production.
func (s *Server) ReprocessWebhookEvents(c *gin.Context) {
	var req reprocessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// One sweep at a time across replicas.
	token, ok, err := s.gatewayLimiter.TryReprocessLock(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !ok {
		AbortWithError(c, ErrConflict)
		return
	}
	defer func() {
		_ = s.gatewayLimiter.ReleaseReprocessLock(c.Request.Context(), token)
	}()

	processed, err := s.webhookSvc.ReprocessUnprocessed(c.Request.Context(), req.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"processed": processed}})
}
