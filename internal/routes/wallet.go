package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletbridge/authbridge/internal/wallet"
)

// RegisterWalletRoutes exposes the session holder's stored wallets.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallets", h.Mine)
}
