package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/walletbridge/authbridge/internal/identity"
)

// Handler exposes the token exchange endpoint.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler builds the exchange HTTP handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, logger: logger}
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
}

// Exchange trades an issuer bearer token for a session token.
func (h *Handler) Exchange(c *fiber.Ctx) error {
	token, err := BearerToken(c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}

	session, err := h.svc.Exchange(c.UserContext(), token)
	if err != nil {
		return h.fail(c, err)
	}

	if err := c.Status(http.StatusOK).JSON(exchangeResponse{AccessToken: session.AccessToken}); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return nil
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	reqID, _ := c.Locals("X-Request-ID").(string)
	status, msg := classify(err)
	attrs := []any{slog.Int("status", status), slog.Any("error", err)}
	if reqID != "" {
		attrs = append(attrs, slog.String("request_id", reqID))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("token exchange failed", attrs...)
	} else {
		h.logger.Info("token exchange rejected", attrs...)
	}
	return fiber.NewError(status, msg)
}

// classify maps the exchange error taxonomy to a status and a client-safe message.
func classify(err error) (int, string) {
	var (
		tokenErr   *TokenInvalidError
		keyErr     *KeyImportError
		signErr    *SigningError
		persistErr *identity.PersistenceError
	)
	switch {
	case errors.Is(err, ErrMissingCredential):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &tokenErr):
		if tokenErr.Expired() {
			return http.StatusUnauthorized, "token is expired"
		}
		return http.StatusUnauthorized, tokenErr.Error()
	case errors.As(err, &keyErr):
		return http.StatusInternalServerError, "issuer key is misconfigured"
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, "failed to persist user"
	case errors.As(err, &signErr):
		return http.StatusInternalServerError, "failed to sign session token"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrMissingCredential
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrMissingCredential
	}
	return token, nil
}
