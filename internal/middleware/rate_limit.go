package middleware

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimit caps requests per caller per window using a Redis counter. The
// caller key is the resolved account when present, the client IP otherwise.
// Without Redis, or when the counter errors, the limiter fails open.
func RateLimit(cache *redis.Client, scope string, maxPerWindow int, window time.Duration) fiber.Handler {
	if maxPerWindow <= 0 {
		maxPerWindow = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}

		caller, _ := c.Locals("account_id").(string)
		if caller == "" {
			caller = c.IP()
		}
		key := "rl:" + scope + ":" + caller

		// Reserve the window with a TTL before counting; a crash between the
		// two commands then expires the key instead of freezing the counter.
		if err := cache.SetNX(c.UserContext(), key, 0, window).Err(); err != nil {
			return c.Next() // fail-open on cache errors
		}
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt > int64(maxPerWindow) {
			return fiber.NewError(http.StatusTooManyRequests, "rate limit exceeded, try again later")
		}
		return c.Next()
	}
}
