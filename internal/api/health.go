package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/goalguild/core-service/internal/httputil"
	"github.com/goalguild/core-service/internal/store"
)

// HealthHandler serves the health check endpoint.
type HealthHandler struct {
	Store *store.Client
	Redis *redis.Client
}

func NewHealthHandler(s *store.Client, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{Store: s, Redis: rdb}
}

// Health pings the core table and Valkey, returning component status.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	storeStatus := "ok"
	if err := h.Store.Ping(ctx); err != nil {
		storeStatus = "unavailable"
	}

	vkStatus := "ok"
	if err := h.Redis.Ping(ctx).Err(); err != nil {
		vkStatus = "unavailable"
	}

	overall := "ok"
	status := fiber.StatusOK
	if storeStatus != "ok" || vkStatus != "ok" {
		overall = "degraded"
		status = fiber.StatusServiceUnavailable
	}

	return httputil.SuccessStatus(c, status, fiber.Map{
		"status": overall,
		"store":  storeStatus,
		"valkey": vkStatus,
	})
}
