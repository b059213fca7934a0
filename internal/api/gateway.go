package api

import (
	"strings"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/gateway"
)

// GatewayHandler serves the WebSocket upgrade endpoint for the real-time messaging gateway.
type GatewayHandler struct {
	hub *gateway.Hub
}

func NewGatewayHandler(hub *gateway.Hub) *GatewayHandler {
	return &GatewayHandler{hub: hub}
}

// Upgrade handles GET /api/v1/gateway/:roomId. It authenticates the caller (bearer token, plus guild membership for
// GUILD#<guildId> rooms), then upgrades the HTTP connection to a WebSocket and hands it to the Hub.
func (h *GatewayHandler) Upgrade(c fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	roomID := c.Params("roomId")
	if roomID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "roomId is required")
	}

	rawAuth := c.Get("Authorization")
	if rawAuth == "" {
		if token := c.Query("token"); token != "" {
			rawAuth = "Bearer " + token
		}
	}

	principal, err := h.hub.Authenticate(c.Context(), rawAuth, roomID)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, strings.TrimSpace(err.Error()))
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.hub.ServeWebSocket(conn.Conn, roomID, principal.UserID.String())
	})(c)
}
