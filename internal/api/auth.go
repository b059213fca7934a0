package api

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/httputil"
)

// AuthHandler serves the Identity Service (C3) endpoints.
type AuthHandler struct {
	auth *auth.Service
}

func NewAuthHandler(svc *auth.Service) *AuthHandler {
	return &AuthHandler{auth: svc}
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type signupBody struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// Signup handles POST /api/v1/auth/signup.
func (h *AuthHandler) Signup(c fiber.Ctx) error {
	var body signupBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	user, tokens, err := h.auth.Signup(c.Context(), auth.SignupRequest{
		Email:       body.Email,
		Password:    body.Password,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, fiber.Map{
		"user": fiber.Map{
			"userId":        user.UserID,
			"email":         user.Email,
			"displayName":   user.DisplayName,
			"emailVerified": user.EmailVerified,
			"tier":          user.Tier,
		},
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

type verifyEmailBody struct {
	Token string `json:"token"`
}

// VerifyEmail handles POST /api/v1/auth/verify-email.
func (h *AuthHandler) VerifyEmail(c fiber.Ctx) error {
	var body verifyEmailBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}
	if err := h.auth.VerifyEmail(c.Context(), body.Token); err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, fiber.Map{"message": "email verified"})
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body loginBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	user, tokens, err := h.auth.Login(c.Context(), auth.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
		SourceIP: c.IP(),
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}

	return httputil.Success(c, fiber.Map{
		"user": fiber.Map{
			"userId":        user.UserID,
			"email":         user.Email,
			"displayName":   user.DisplayName,
			"emailVerified": user.EmailVerified,
			"tier":          user.Tier,
		},
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

type renewBody struct {
	RefreshToken string `json:"refreshToken"`
}

// Renew handles POST /api/v1/auth/renew.
func (h *AuthHandler) Renew(c fiber.Ctx) error {
	var body renewBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}
	if body.RefreshToken == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "refreshToken is required")
	}

	tokens, err := h.auth.Renew(c.Context(), body.RefreshToken)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, tokenPairResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken})
}

// Logout handles POST /api/v1/auth/logout.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	token := strings.TrimPrefix(c.Get("Authorization"), "Bearer ")

	if err := h.auth.Logout(c.Context(), principal, token); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetProfile handles GET /api/v1/auth/profile.
func (h *AuthHandler) GetProfile(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	user, err := h.auth.GetProfile(c.Context(), principal.UserID.String())
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, fiber.Map{
		"userId":        user.UserID,
		"email":         user.Email,
		"displayName":   user.DisplayName,
		"emailVerified": user.EmailVerified,
		"avatarKey":     user.AvatarKey,
		"tier":          user.Tier,
		"xp":            user.XP,
	})
}

type updateProfileBody struct {
	DisplayName string `json:"displayName"`
	AvatarKey   string `json:"avatarKey"`
}

// UpdateProfile handles PATCH /api/v1/auth/profile.
func (h *AuthHandler) UpdateProfile(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)

	var body updateProfileBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	user, err := h.auth.UpdateProfile(c.Context(), principal.UserID.String(), auth.UpdateProfileRequest{
		DisplayName: body.DisplayName,
		AvatarKey:   body.AvatarKey,
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, fiber.Map{
		"userId":      user.UserID,
		"displayName": user.DisplayName,
		"avatarKey":   user.AvatarKey,
	})
}
