package middleware

import (
	"fmt"
	"strconv"
	"time"

	redisc "github.com/geolens/engine/internal/pkg/redis"
	"github.com/geolens/engine/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RateLimit caps requests per client IP within a fixed window. Without a redis
// client, or when redis errors, requests pass through.
func RateLimit(rc *redisc.Client, scope string, max int, window time.Duration, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if rc == nil || ip == "" || max <= 0 {
			c.Next()
			return
		}

		bucket := time.Now().UnixNano() / int64(window)
		key := fmt.Sprintf("geolens:rate_limit:%s:%s:%d", scope, ip, bucket)
		count, err := rc.IncrWindow(c.Request.Context(), key, window)
		if err != nil {
			log.Warn("rate limit check failed", zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		if count > int64(max) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.TooManyRequests(c, "too many requests, slow down")
			return
		}
		c.Next()
	}
}
