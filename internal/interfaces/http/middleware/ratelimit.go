package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/icubam/icubam/internal/infrastructure/ratelimit"
	"github.com/icubam/icubam/internal/shared/logger"
	"github.com/icubam/icubam/internal/shared/utils"
)

// RateLimiter enforces a fixed-window request budget per client IP and route
// group. The counters live wherever the Limiter keeps them, so a shared Redis
// limits every instance together.
type RateLimiter struct {
	limiter ratelimit.Limiter
	name    string
	limit   int
	window  time.Duration
	logger  logger.Interface
}

// NewRateLimiter allows limit requests per window; a limit <= 0 disables it.
func NewRateLimiter(limiter ratelimit.Limiter, name string, limit int, window time.Duration, log logger.Interface) *RateLimiter {
	return &RateLimiter{
		limiter: limiter,
		name:    name,
		limit:   limit,
		window:  window,
		logger:  log,
	}
}

func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.limit <= 0 {
			c.Next()
			return
		}

		allowed, err := rl.limiter.Allow(c.Request.Context(), rl.name+":"+c.ClientIP(), rl.limit, rl.window)
		if err != nil {
			// Limiter outage must not take the form down.
			rl.logger.Warnw("rate limiter unavailable", "group", rl.name, "error", err)
			c.Next()
			return
		}

		if !allowed {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
