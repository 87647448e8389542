package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/walletbridge/authbridge/internal/auth"
)

// RegisterExchangeRoutes wires the token exchange endpoint behind the given guards.
func RegisterExchangeRoutes(r fiber.Router, h *auth.Handler, guards ...fiber.Handler) {
	group := r.Group("/auth")
	handlers := append(guards, h.Exchange)
	group.Post("/exchange", handlers...)
}
