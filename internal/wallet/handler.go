package wallet

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// UserIDLocal is the fiber local the session middleware stores the caller's user id under.
const UserIDLocal = "user_id"

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	wallets Lister
	logger  *slog.Logger
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(wallets Lister, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{wallets: wallets, logger: logger}
}

type walletResponse struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Mine lists the wallets stored for the authenticated user.
func (h *Handler) Mine(c *fiber.Ctx) error {
	userID, _ := c.Locals(UserIDLocal).(string)
	if userID == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing session")
	}
	wallets, err := h.wallets.ListWallets(c.UserContext(), userID)
	if err != nil {
		reqID, _ := c.Locals("X-Request-ID").(string)
		h.logger.Error("list wallets failed",
			slog.String("user_id", userID),
			slog.String("request_id", reqID),
			slog.Any("error", err),
		)
		return fiber.NewError(http.StatusInternalServerError, "failed to load wallets")
	}
	out := make([]walletResponse, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, walletResponse{ID: w.ID, Address: w.Address, CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id": userID,
		"wallets": out,
	})
}
