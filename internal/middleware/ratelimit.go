package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/tuneedit/api/internal/log"
	"github.com/tuneedit/api/pkg/response"
)

type RateLimiter struct {
	redis  *redis.Client
	logger zerolog.Logger
}

func NewRateLimiter(redisClient *redis.Client) *RateLimiter {
	return &RateLimiter{redis: redisClient, logger: log.WithComponent("ratelimit")}
}

// subject keys the limit by chat so relaunching the editor does not reset
// it. Without a chat the session, then the client IP, is used.
func subject(c *fiber.Ctx) string {
	if chatID := GetChatID(c); chatID != "" {
		return "chat:" + chatID
	}
	if sessionID := GetSessionID(c); sessionID != "" {
		return "session:" + sessionID
	}
	return "ip:" + c.IP()
}

// Limit creates a rate limiting middleware
func (rl *RateLimiter) Limit(keyPrefix string, maxRequests int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("ratelimit:%s:%s", keyPrefix, subject(c))
		ctx := c.Context()

		count, err := rl.redis.Incr(ctx, key).Result()
		if err != nil {
			// fail open
			rl.logger.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
			return c.Next()
		}

		if count == 1 {
			rl.redis.Expire(ctx, key, window)
		}

		if count > int64(maxRequests) {
			ttl, _ := rl.redis.TTL(ctx, key).Result()
			c.Set("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
			return response.RateLimited(c)
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", maxRequests))
		c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", maxRequests-int(count)))

		return c.Next()
	}
}

// ThumbnailLimit limits thumbnail uploads per minute
func (rl *RateLimiter) ThumbnailLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("thumbnail", maxPerMin, time.Minute)
}

// SubmitLimit limits submissions per hour
func (rl *RateLimiter) SubmitLimit(maxPerHour int) fiber.Handler {
	return rl.Limit("submit", maxPerHour, time.Hour)
}

// LaunchLimit limits session launches per client IP per minute
func (rl *RateLimiter) LaunchLimit(maxPerMin int) fiber.Handler {
	return rl.Limit("launch", maxPerMin, time.Minute)
}
