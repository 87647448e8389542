package middleware

import (
	"context"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/walletbridge/authbridge/internal/auth"
)

const inflightPrefix = "inflight:exchange:v1:"

// releaseInflight deletes the reservation only while it still belongs to the
// caller; after expiry another request may hold the key.
var releaseInflight = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// InflightGuard rejects a second exchange of the same bearer token while the
// first is still running. The reservation is keyed by a digest of the token so
// raw credentials never reach Redis, and it expires after ttl even if the
// holder dies.
func InflightGuard(cache *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			// The handler reports the missing credential.
			return c.Next()
		}
		key := inflightKey(token)

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		holder := uuid.NewString()
		reserved, err := cache.SetNX(ctx, key, holder, ttl).Result()
		if err != nil {
			logger.Warn("inflight reservation failed", slog.Any("error", err))
			return c.Next()
		}
		if !reserved {
			return fiber.NewError(http.StatusConflict, "exchange already in progress for this token")
		}

		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseInflight.Run(cleanupCtx, cache, []string{key}, holder).Err(); err != nil {
				logger.Warn("inflight release failed", slog.Any("error", err))
			}
		}()
		return c.Next()
	}
}

func inflightKey(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return inflightPrefix + hex.EncodeToString(sum[:])
}
