package api

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/guild"
)

func testGuildApp() (*GuildHandler, *fiber.App) {
	guildSvc := guild.NewService(nil, nil)
	membershipSvc := guild.NewMembershipService(nil, nil, nil)
	avatarSvc := guild.NewAvatarService(nil, nil, nil)
	handler := NewGuildHandler(guildSvc, membershipSvc, avatarSvc, nil, nil)

	app := fiber.New()
	withPrincipal(app)
	app.Post("/guilds", handler.CreateGuild)
	return handler, app
}

func TestCreateGuildHandler_InvalidJSON(t *testing.T) {
	t.Parallel()
	_, app := testGuildApp()

	resp, err := app.Test(jsonReq(http.MethodPost, "/guilds", "not json"))
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

func TestCreateGuildHandler_MissingName(t *testing.T) {
	t.Parallel()
	_, app := testGuildApp()

	resp, err := app.Test(jsonReq(http.MethodPost, "/guilds", `{"guildType":"party"}`))
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

func TestCreateGuildHandler_InvalidVisibility(t *testing.T) {
	t.Parallel()
	_, app := testGuildApp()

	resp, err := app.Test(jsonReq(http.MethodPost, "/guilds", `{"name":"Dawn Patrol","visibility":"sort-of"}`))
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
