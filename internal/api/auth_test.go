package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/config"
)

func testAuthConfig() *config.Config {
	return &config.Config{
		JWTIssuer:         "https://auth.goalguild.example",
		JWTAudience:       "goalguild-api",
		JWTSecretParam:    "test-secret-at-least-32-chars-long!!",
		AccessTokenTTL:    15 * time.Minute,
		RefreshTokenTTL:   7 * 24 * time.Hour,
		AuthDecisionTTL:   5 * time.Minute,
		Argon2Memory:      64 * 1024,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
		Argon2SaltLength:  16,
		Argon2KeyLength:   32,
		FrontendBaseURL:   "https://app.goalguild.example",
	}
}

// testAuthHandler builds an AuthHandler backed by a real Service against a nil user store. This is enough to
// exercise request binding and input validation (the only paths Signup/Login/Renew reach before touching the
// store), which is all handler-level tests need: Service's own behavior against a real repository is covered by
// internal/auth's service_test.go.
func testAuthHandler(t *testing.T) (*AuthHandler, *fiber.App) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	authorizer := auth.NewAuthorizer(testAuthConfig().JWTSecretParam, testAuthConfig().JWTIssuer, testAuthConfig().JWTAudience, nil, rdb, 5*time.Minute)
	svc, err := auth.NewService(nil, authorizer, rdb, testAuthConfig(), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	handler := NewAuthHandler(svc)

	app := fiber.New()
	app.Post("/signup", handler.Signup)
	app.Post("/login", handler.Login)
	app.Post("/verify-email", handler.VerifyEmail)
	app.Post("/renew", handler.Renew)

	return handler, app
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return b
}

func parseError(t *testing.T, body []byte) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("unmarshal error response %q: %v", string(body), err)
	}
	return env
}

func jsonReq(method, url, body string) *http.Request {
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSignupHandler_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, app := testAuthHandler(t)

	resp, err := app.Test(jsonReq(http.MethodPost, "/signup", "not json"))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
	env := parseError(t, body)
	if env.Error.Code != string(apierrors.ValidationFailed) {
		t.Errorf("error code = %q, want %q", env.Error.Code, apierrors.ValidationFailed)
	}
}

func TestSignupHandler_ValidationErrors(t *testing.T) {
	t.Parallel()
	_, app := testAuthHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid email", `{"email":"not-an-email","password":"strongpassword"}`},
		{"password too short", `{"email":"alice@example.com","password":"short"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, err := app.Test(jsonReq(http.MethodPost, "/signup", tt.body))
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			body := readBody(t, resp)

			if resp.StatusCode != fiber.StatusBadRequest {
				t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
			}
			env := parseError(t, body)
			if env.Error.Code != string(apierrors.ValidationFailed) {
				t.Errorf("error code = %q, want %q", env.Error.Code, apierrors.ValidationFailed)
			}
		})
	}
}

func TestLoginHandler_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, app := testAuthHandler(t)

	resp, err := app.Test(jsonReq(http.MethodPost, "/login", "{bad"))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
	env := parseError(t, body)
	if env.Error.Code != string(apierrors.ValidationFailed) {
		t.Errorf("error code = %q, want %q", env.Error.Code, apierrors.ValidationFailed)
	}
}

func TestLoginHandler_InvalidEmail(t *testing.T) {
	t.Parallel()
	_, app := testAuthHandler(t)

	resp, err := app.Test(jsonReq(http.MethodPost, "/login", `{"email":"not-an-email","password":"whatever"}`))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusUnauthorized)
	}
	env := parseError(t, body)
	if env.Error.Code != string(apierrors.AuthClaims) {
		t.Errorf("error code = %q, want %q", env.Error.Code, apierrors.AuthClaims)
	}
}

func TestVerifyEmailHandler_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, app := testAuthHandler(t)

	resp, err := app.Test(jsonReq(http.MethodPost, "/verify-email", "{{"))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
	env := parseError(t, body)
	if env.Error.Code != string(apierrors.ValidationFailed) {
		t.Errorf("error code = %q, want %q", env.Error.Code, apierrors.ValidationFailed)
	}
}

func TestVerifyEmailHandler_InvalidToken(t *testing.T) {
	t.Parallel()
	_, app := testAuthHandler(t)

	resp, err := app.Test(jsonReq(http.MethodPost, "/verify-email", `{"token":"bad-token"}`))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
	env := parseError(t, body)
	if env.Error.Code != string(apierrors.ValidationFailed) {
		t.Errorf("error code = %q, want %q", env.Error.Code, apierrors.ValidationFailed)
	}
}

func TestRenewHandler_MissingToken(t *testing.T) {
	t.Parallel()
	_, app := testAuthHandler(t)

	resp, err := app.Test(jsonReq(http.MethodPost, "/renew", `{}`))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	body := readBody(t, resp)

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, fiber.StatusBadRequest)
	}
	env := parseError(t, body)
	if env.Error.Code != string(apierrors.ValidationFailed) {
		t.Errorf("error code = %q, want %q", env.Error.Code, apierrors.ValidationFailed)
	}
}
