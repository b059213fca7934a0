package edge

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

func TestSensitiveLimiterRejectsOverLimit(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	limiter := NewSensitiveLimiter(rdb)
	userID := uuid.New()

	app := fiber.New()
	app.Use(withPrincipal(userID, "default"))
	app.Use(limiter.Middleware())
	app.Post("/quests", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < sensitiveRateLimit; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/quests", nil))
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, resp.StatusCode, fiber.StatusOK)
		}
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/quests", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusTooManyRequests)
	}
}

func TestSensitiveLimiterIsPerRoute(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	limiter := NewSensitiveLimiter(rdb)
	userID := uuid.New()

	app := fiber.New()
	app.Use(withPrincipal(userID, "default"))
	app.Use(limiter.Middleware())
	app.Post("/quests", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/quests/templates", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	for i := 0; i < sensitiveRateLimit; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/quests", nil))
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		if resp.StatusCode != fiber.StatusOK {
			t.Fatalf("/quests request %d: status = %d, want %d", i+1, resp.StatusCode, fiber.StatusOK)
		}
	}

	// A different route for the same principal has its own independent counter.
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/quests/templates", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("/quests/templates status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}
}
