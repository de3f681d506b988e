package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RateLimit caps requests per client IP on the outbound gateway endpoints so
// a misbehaving caller cannot burn the provider API quota. With redis
// configured the budget is shared across replicas; otherwise the fallback
// limiter counts per process.
func (s *Server) RateLimit(limiter *rateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var allowed bool
		if s.gatewayLimiter.Enabled() {
			ok, err := s.gatewayLimiter.AllowClient(c.Request.Context(), c.FullPath(), c.ClientIP())
			if err != nil {
				// Redis being down must not take billing commands with it.
				ok = limiter.Allow(c.ClientIP())
			}
			allowed = ok
		} else {
			allowed = limiter.Allow(c.ClientIP())
		}

		if !allowed {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), c.FullPath())
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}
		c.Next()
	}
}
