package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/saasfoundry/lemonsync/internal/billing/domain"
)

func (s *Server) CreateCheckout(c *gin.Context) {
	var req billingdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.VariantID == 0 {
		AbortWithError(c, newValidationError("variant_id", "required", "variant_id is required"))
		return
	}
	if req.UserID == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}

	checkout, err := s.billingSvc.CreateCheckout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": checkout})
}
