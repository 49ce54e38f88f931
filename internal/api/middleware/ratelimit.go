package middleware

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit applies a token-bucket limit per tenant, so one noisy tenant
// cannot exhaust capacity for the rest. Requests without a resolved domain
// share the "unknown" bucket.
func RateLimit(rps float64, burst int) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	limiterFor := func(domain string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[domain]
		if !ok {
			l = rate.NewLimiter(rate.Limit(rps), burst)
			limiters[domain] = l
		}
		return l
	}

	return func(c *gin.Context) {
		domain := c.GetString("domain")
		if domain == "" {
			domain = "unknown"
		}
		if !limiterFor(domain).Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "rate_limited",
					"message": "too many requests",
				},
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
