package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetLatestOrder(c *gin.Context) {
	userID := strings.TrimSpace(c.Query("user_id"))
	if userID == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}

	order, err := s.orders.LatestByUserID(c.Request.Context(), s.db, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if order == nil {
		AbortWithError(c, ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": order})
}
