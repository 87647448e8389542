package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/walletbridge/authbridge/internal/auth"
	"github.com/walletbridge/authbridge/internal/wallet"
)

// SessionParser verifies first-party session tokens.
type SessionParser interface {
	Parse(token string) (auth.SessionClaims, error)
}

// SessionAuth admits requests carrying a valid session token and exposes the
// user id under wallet.UserIDLocal.
func SessionAuth(sessions SessionParser) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := sessions.Parse(token)
		if err != nil {
			var tokenErr *auth.TokenInvalidError
			if errors.As(err, &tokenErr) && tokenErr.Expired() {
				return fiber.NewError(http.StatusUnauthorized, "token is expired")
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}

		c.Locals(wallet.UserIDLocal, claims.UserID)
		return c.Next()
	}
}
