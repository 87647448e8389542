package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitPrefix = "rl:exchange:"
	rateLimitWindow = time.Minute
)

// ExchangeRateLimit bounds token exchanges per client IP to maxPerMin in a
// fixed one minute window. A zero limit or a nil cache disables it; cache
// errors fail open.
func ExchangeRateLimit(cache *redis.Client, maxPerMin int, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil || maxPerMin <= 0 {
			return c.Next()
		}
		ctx := c.UserContext()
		key := rateLimitPrefix + c.IP()

		var (
			incr *redis.IntCmd
			ttl  *redis.DurationCmd
		)
		_, err := cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			incr = pipe.Incr(ctx, key)
			ttl = pipe.TTL(ctx, key)
			return nil
		})
		if err != nil {
			logger.Warn("rate limit lookup failed", slog.String("key", key), slog.Any("error", err))
			return c.Next()
		}

		// A counter without expiry would throttle the client for good, so any
		// request that finds one starts the window again.
		window := ttl.Val()
		if window < 0 {
			if err := cache.Expire(ctx, key, rateLimitWindow).Err(); err != nil {
				logger.Warn("rate limit expiry failed", slog.String("key", key), slog.Any("error", err))
			}
			window = rateLimitWindow
		}

		if incr.Val() > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(window.Round(time.Second).Seconds())))
			return fiber.NewError(http.StatusTooManyRequests, "too many exchange attempts, try again later")
		}
		return c.Next()
	}
}
