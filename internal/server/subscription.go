package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/saasfoundry/lemonsync/internal/billing/domain"
)

func (s *Server) ListSubscriptions(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}

	subs, err := s.subscriptions.ListByUserID(c.Request.Context(), s.db, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": subs})
}

type subscriptionSettingsRequest struct {
	Action    string `json:"action"`
	VariantID *int64 `json:"variant_id"`
}

func (s *Server) ApplySubscriptionSettings(c *gin.Context) {
	subscriptionID := strings.TrimSpace(c.Param("id"))
	if subscriptionID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	var req subscriptionSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	action, err := billingdomain.ParseAction(req.Action)
	if err != nil {
		AbortWithError(c, newValidationError("action", "invalid_action", "action must be one of pause, unpause, resume, cancel, change_plan"))
		return
	}

	state, err := s.billingSvc.ApplySubscriptionSettings(c.Request.Context(), subscriptionID, action, req.VariantID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": state})
}

func (s *Server) GetCustomerPortalURL(c *gin.Context) {
	subscriptionID := strings.TrimSpace(c.Param("id"))
	if subscriptionID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	url, err := s.billingSvc.CustomerPortalURL(c.Request.Context(), subscriptionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"url": url}})
}
