package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func newTestAuthorizer(t *testing.T) (*Authorizer, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewAuthorizer("secret", testIssuer, testAudience, nil, rdb, 300*time.Second), rdb
}

func TestRequireBearerNoHeader(t *testing.T) {
	t.Parallel()
	authorizer, _ := newTestAuthorizer(t)

	app := fiber.New()
	app.Use(RequireBearer(authorizer))
	app.Get("/test", func(c fiber.Ctx) error { return c.SendStatus(200) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}
}

func TestRequireBearerValidToken(t *testing.T) {
	t.Parallel()
	authorizer, _ := newTestAuthorizer(t)
	userID := uuid.New()

	tokenStr, err := NewAccessToken(userID, "secret", 15*time.Minute, testIssuer, testAudience, "free")
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}

	app := fiber.New()
	app.Use(RequireBearer(authorizer))
	app.Get("/test", func(c fiber.Ctx) error {
		p := PrincipalFromContext(c)
		if p.UserID != userID {
			t.Errorf("UserID = %v, want %v", p.UserID, userID)
		}
		return c.SendStatus(200)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusOK)
	}
}

func TestRequireBearerRevokedToken(t *testing.T) {
	t.Parallel()
	authorizer, _ := newTestAuthorizer(t)
	userID := uuid.New()

	tokenStr, err := NewAccessToken(userID, "secret", 15*time.Minute, testIssuer, testAudience, "free")
	if err != nil {
		t.Fatalf("NewAccessToken() error = %v", err)
	}
	claims, err := ValidateAccessToken(tokenStr, "secret", testIssuer, testAudience)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if err := authorizer.Revoke(t.Context(), claims.ID, 15*time.Minute); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	app := fiber.New()
	app.Use(RequireBearer(authorizer))
	app.Get("/test", func(c fiber.Ctx) error { return c.SendStatus(200) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}
}
