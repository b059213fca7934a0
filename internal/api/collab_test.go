package api

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/collab"
)

// withFixedPrincipal wires a principal with a known user ID, for tests that need to reference the caller's ID from
// the request body (e.g. a self-invite check).
func withFixedPrincipal(app *fiber.App, userID uuid.UUID) {
	app.Use(func(c fiber.Ctx) error {
		c.Locals("principal", auth.Principal{UserID: userID, Tier: "free"})
		return c.Next()
	})
}

func testCollabApp(userID uuid.UUID) (*CollabHandler, *fiber.App) {
	handler := NewCollabHandler(collab.NewInviteService(nil, nil, nil), nil, nil)
	app := fiber.New()
	withFixedPrincipal(app, userID)
	app.Post("/invites", handler.CreateInvite)
	return handler, app
}

func TestCreateInviteHandler_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, app := testCollabApp(uuid.New())

	resp, err := app.Test(jsonReq(http.MethodPost, "/invites", "not json"))
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

func TestCreateInviteHandler_MissingFields(t *testing.T) {
	t.Parallel()
	_, app := testCollabApp(uuid.New())

	resp, err := app.Test(jsonReq(http.MethodPost, "/invites", `{"goalId":""}`))
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

func TestCreateInviteHandler_SelfInvite(t *testing.T) {
	t.Parallel()
	callerID := uuid.New()
	_, app := testCollabApp(callerID)

	resp, err := app.Test(jsonReq(http.MethodPost, "/invites",
		`{"goalId":"g1","inviteeId":"`+callerID.String()+`"}`))
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
