package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/metrics"
)

// RedisRateLimitMiddleware provides a coarse fixed-window Redis-backed limiter
// shared by every replica. Each window allows floor(rps*window)+burst requests.
// Redis failures let the request through.
func RedisRateLimitMiddleware(client *redis.Client, name string, rps float64, burst int, window time.Duration) gin.HandlerFunc {
	if client == nil {
		return RateLimitMiddleware(name, rps, burst)
	}
	windowSeconds := int(window.Seconds())
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	allowedPerWindow := int(rps*float64(windowSeconds)) + burst
	ttl := time.Duration(windowSeconds+1) * time.Second
	return func(c *gin.Context) {
		now := time.Now().Unix()
		bucket := now / int64(windowSeconds)
		redisKey := fmt.Sprintf("havacilik:rl:%s:%s:%d", name, clientKey(c), bucket)

		ctx := c.Request.Context()
		var incr *redis.IntCmd
		_, err := client.TxPipelined(ctx, func(p redis.Pipeliner) error {
			incr = p.Incr(ctx, redisKey)
			p.Expire(ctx, redisKey, ttl)
			return nil
		})
		if err != nil {
			logger.Warnf("rate limit %s: redis unavailable: %v", name, err)
			c.Next()
			return
		}
		if int(incr.Val()) > allowedPerWindow {
			retry := (bucket+1)*int64(windowSeconds) - now
			c.Header("Retry-After", strconv.FormatInt(retry, 10))
			metrics.RateLimitRejected.WithLabelValues(name).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(name).Inc()
		c.Next()
	}
}
