package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type testCleanupRequest struct {
	Prefix string `json:"prefix"`
}

// TestCleanup deletes rows seeded by integration tests, scoped by a user id
// prefix. Unprocessed webhook events are left alone so reprocessing tests can
// find them.
func (s *Server) TestCleanup(c *gin.Context) {
	if s.cfg.Environment == "production" {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req testCleanupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		AbortWithError(c, newValidationError("prefix", "required", "prefix is required"))
		return
	}

	ctx := c.Request.Context()
	like := prefix + "%"

	if err := s.db.WithContext(ctx).Exec(
		`DELETE FROM subscriptions WHERE user_id LIKE ?`, like,
	).Error; err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.db.WithContext(ctx).Exec(
		`DELETE FROM orders WHERE user_id LIKE ?`, like,
	).Error; err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.db.WithContext(ctx).Exec(
		`DELETE FROM webhook_events WHERE processed = true AND CAST(body AS TEXT) LIKE ?`, "%"+prefix+"%",
	).Error; err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
