package api

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/collab"
	"github.com/goalguild/core-service/internal/guild"
	"github.com/goalguild/core-service/internal/httputil"
	"github.com/goalguild/core-service/internal/store"
	"github.com/goalguild/core-service/internal/validation"
)

// GuildHandler serves the Guild Service (C6) endpoints: guild CRUD, membership, the avatar upload flow, and the
// guild-scoped comment/reaction threads built on the same internal/collab primitive C7 uses for goals.
type GuildHandler struct {
	guilds     *guild.Service
	membership *guild.MembershipService
	avatars    *guild.AvatarService
	comments   *collab.CommentService
	reactions  *collab.ReactionService
}

func NewGuildHandler(
	guilds *guild.Service,
	membership *guild.MembershipService,
	avatars *guild.AvatarService,
	comments *collab.CommentService,
	reactions *collab.ReactionService,
) *GuildHandler {
	return &GuildHandler{guilds: guilds, membership: membership, avatars: avatars, comments: comments, reactions: reactions}
}

type guildResponse struct {
	GuildID      string  `json:"guildId"`
	GuildType    string  `json:"guildType"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Visibility   string  `json:"visibility"`
	OwnerID      string  `json:"ownerId"`
	AvatarKey    string  `json:"avatarKey,omitempty"`
	MemberCount  int     `json:"memberCount"`
	RankingScore float64 `json:"rankingScore"`
	CreatedAt    string  `json:"createdAt"`
	UpdatedAt    string  `json:"updatedAt"`
}

func toGuildResponse(g store.Guild) guildResponse {
	return guildResponse{
		GuildID:      g.GuildID,
		GuildType:    g.GuildType,
		Name:         g.Name,
		Description:  g.Description,
		Visibility:   string(g.Visibility),
		OwnerID:      g.OwnerID,
		AvatarKey:    g.AvatarKey,
		MemberCount:  g.MemberCount,
		RankingScore: g.RankingScore,
		CreatedAt:    g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    g.UpdatedAt.Format(time.RFC3339),
	}
}

type memberResponse struct {
	GuildID  string `json:"guildId"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	Blocked  bool   `json:"blocked"`
	JoinedAt string `json:"joinedAt"`
}

func toMemberResponse(m store.Member) memberResponse {
	return memberResponse{
		GuildID:  m.GuildID,
		UserID:   m.UserID,
		Role:     string(m.Role),
		Blocked:  m.Blocked,
		JoinedAt: m.JoinedAt.Format(time.RFC3339),
	}
}

type joinRequestResponse struct {
	GuildID   string `json:"guildId"`
	UserID    string `json:"userId"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

func toJoinRequestResponse(jr store.JoinRequest) joinRequestResponse {
	return joinRequestResponse{
		GuildID:   jr.GuildID,
		UserID:    jr.UserID,
		Message:   jr.Message,
		Status:    string(jr.Status),
		CreatedAt: jr.CreatedAt.Format(time.RFC3339),
	}
}

type createGuildBody struct {
	GuildType   string `json:"guildType"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Visibility  string `json:"visibility"`
}

// CreateGuild handles POST /api/v1/guilds.
func (h *GuildHandler) CreateGuild(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)

	var body createGuildBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	var verrs validation.Errors
	verrs.Require("name", body.Name)
	if body.Visibility != "" {
		verrs.Enum("visibility", body.Visibility, string(store.GuildPublic), string(store.GuildPrivate))
	}
	if err := verrs.Err("guild is invalid"); err != nil {
		return httputil.HandleError(c, err)
	}

	g, err := h.guilds.Create(c.Context(), principal.UserID.String(), guild.CreateRequest{
		GuildType:   body.GuildType,
		Name:        validation.Sanitize(body.Name),
		Description: validation.Sanitize(body.Description),
		Visibility:  store.GuildVisibility(body.Visibility),
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toGuildResponse(g))
}

// GetGuild handles GET /api/v1/guilds/:guildId.
func (h *GuildHandler) GetGuild(c fiber.Ctx) error {
	g, err := h.guilds.Get(c.Context(), c.Params("guildId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toGuildResponse(g))
}

// ListGuildsByType handles GET /api/v1/guilds?type=...&cursor=...
func (h *GuildHandler) ListGuildsByType(c fiber.Ctx) error {
	page := store.Page{Cursor: c.Query("cursor")}
	guilds, next, err := h.guilds.ListByType(c.Context(), c.Query("type"), page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]guildResponse, len(guilds))
	for i, g := range guilds {
		resp[i] = toGuildResponse(g)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

// ListOwnedGuilds handles GET /api/v1/guilds/owned.
func (h *GuildHandler) ListOwnedGuilds(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	page := store.Page{Cursor: c.Query("cursor")}
	guilds, next, err := h.guilds.ListOwnedBy(c.Context(), principal.UserID.String(), page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]guildResponse, len(guilds))
	for i, g := range guilds {
		resp[i] = toGuildResponse(g)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

type updateGuildBody struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Visibility  string  `json:"visibility"`
}

// UpdateGuild handles PATCH /api/v1/guilds/:guildId.
func (h *GuildHandler) UpdateGuild(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID := c.Params("guildId")

	var body updateGuildBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	var verrs validation.Errors
	if body.Visibility != "" {
		verrs.Enum("visibility", body.Visibility, string(store.GuildPublic), string(store.GuildPrivate))
	}
	if err := verrs.Err("guild update is invalid"); err != nil {
		return httputil.HandleError(c, err)
	}

	req := guild.UpdateRequest{
		Name:        validation.Sanitize(body.Name),
		Description: body.Description,
		Visibility:  store.GuildVisibility(body.Visibility),
	}
	if req.Description != nil {
		sanitized := validation.Sanitize(*req.Description)
		req.Description = &sanitized
	}

	g, err := h.guilds.Update(c.Context(), principal.UserID.String(), guildID, req)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toGuildResponse(g))
}

// DeleteGuild handles DELETE /api/v1/guilds/:guildId.
func (h *GuildHandler) DeleteGuild(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	if err := h.guilds.Delete(c.Context(), principal.UserID.String(), c.Params("guildId")); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type joinGuildBody struct {
	Message string `json:"message"`
}

// RequestJoin handles POST /api/v1/guilds/:guildId/join.
func (h *GuildHandler) RequestJoin(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID := c.Params("guildId")

	var body joinGuildBody
	_ = c.Bind().Body(&body)

	jr, err := h.membership.RequestJoin(c.Context(), principal.UserID.String(), guildID, validation.Sanitize(body.Message))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toJoinRequestResponse(jr))
}

// CancelJoinRequest handles DELETE /api/v1/guilds/:guildId/join.
func (h *GuildHandler) CancelJoinRequest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	if err := h.membership.CancelRequest(c.Context(), principal.UserID.String(), c.Params("guildId")); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListPendingJoinRequests handles GET /api/v1/guilds/:guildId/join-requests.
func (h *GuildHandler) ListPendingJoinRequests(c fiber.Ctx) error {
	guildID := c.Params("guildId")
	page := store.Page{Cursor: c.Query("cursor")}
	requests, next, err := h.membership.ListPending(c.Context(), guildID, page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]joinRequestResponse, len(requests))
	for i, jr := range requests {
		resp[i] = toJoinRequestResponse(jr)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

// ApproveJoinRequest handles POST /api/v1/guilds/:guildId/join-requests/:userId/approve.
func (h *GuildHandler) ApproveJoinRequest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, userID := c.Params("guildId"), c.Params("userId")
	if err := h.membership.Approve(c.Context(), principal.UserID.String(), guildID, userID); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RejectJoinRequest handles POST /api/v1/guilds/:guildId/join-requests/:userId/reject.
func (h *GuildHandler) RejectJoinRequest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, userID := c.Params("guildId"), c.Params("userId")
	if err := h.membership.Reject(c.Context(), principal.UserID.String(), guildID, userID); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// LeaveGuild handles DELETE /api/v1/guilds/:guildId/members/me.
func (h *GuildHandler) LeaveGuild(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	if err := h.membership.Leave(c.Context(), principal.UserID.String(), c.Params("guildId")); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveMember handles DELETE /api/v1/guilds/:guildId/members/:userId.
func (h *GuildHandler) RemoveMember(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, userID := c.Params("guildId"), c.Params("userId")
	if err := h.membership.RemoveMember(c.Context(), principal.UserID.String(), guildID, userID); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type setBlockedBody struct {
	Blocked bool `json:"blocked"`
}

// SetMemberBlocked handles PUT /api/v1/guilds/:guildId/members/:userId/blocked.
func (h *GuildHandler) SetMemberBlocked(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, userID := c.Params("guildId"), c.Params("userId")

	var body setBlockedBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}
	if err := h.membership.SetBlocked(c.Context(), principal.UserID.String(), guildID, userID, body.Blocked); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type setModeratorBody struct {
	Moderator bool `json:"moderator"`
}

// SetMemberModerator handles PUT /api/v1/guilds/:guildId/members/:userId/moderator.
func (h *GuildHandler) SetMemberModerator(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, userID := c.Params("guildId"), c.Params("userId")

	var body setModeratorBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}
	if err := h.membership.SetModerator(c.Context(), principal.UserID.String(), guildID, userID, body.Moderator); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type transferOwnershipBody struct {
	NewOwnerID string `json:"newOwnerId"`
}

// TransferOwnership handles POST /api/v1/guilds/:guildId/transfer-ownership.
func (h *GuildHandler) TransferOwnership(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID := c.Params("guildId")

	var body transferOwnershipBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	var verrs validation.Errors
	verrs.Require("newOwnerId", body.NewOwnerID)
	if err := verrs.Err("transfer request is invalid"); err != nil {
		return httputil.HandleError(c, err)
	}

	if err := h.membership.TransferOwnership(c.Context(), principal.UserID.String(), guildID, body.NewOwnerID); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type requestAvatarUploadBody struct {
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type presignedUploadResponse struct {
	URL       string `json:"url"`
	Key       string `json:"key"`
	ExpiresAt string `json:"expiresAt"`
}

// RequestAvatarUpload handles POST /api/v1/guilds/:guildId/avatar/upload-url.
func (h *GuildHandler) RequestAvatarUpload(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID := c.Params("guildId")

	var body requestAvatarUploadBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	upload, err := h.avatars.RequestUpload(c.Context(), principal.UserID.String(), guildID, body.ContentType, body.Size)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, presignedUploadResponse{
		URL:       upload.URL,
		Key:       upload.Key,
		ExpiresAt: upload.ExpiresAt.Format(time.RFC3339),
	})
}

// ConfirmAvatarUpload handles POST /api/v1/guilds/:guildId/avatar/confirm.
func (h *GuildHandler) ConfirmAvatarUpload(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID := c.Params("guildId")

	g, err := h.avatars.ConfirmUpload(c.Context(), principal.UserID.String(), guildID)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toGuildResponse(g))
}

type createGuildCommentBody struct {
	ParentID string `json:"parentId"`
	Body     string `json:"body"`
}

// CreateComment handles POST /api/v1/guilds/:guildId/comments.
func (h *GuildHandler) CreateComment(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID := c.Params("guildId")

	var body createGuildCommentBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	var verrs validation.Errors
	verrs.Require("body", body.Body)
	if err := verrs.Err("comment is invalid"); err != nil {
		return httputil.HandleError(c, err)
	}

	cm, err := h.comments.Create(c.Context(), principal.UserID.String(), guildID, body.ParentID, validation.Sanitize(body.Body))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toCommentResponse(cm))
}

type updateGuildCommentBody struct {
	Body string `json:"body"`
}

// UpdateComment handles PATCH /api/v1/guilds/:guildId/comments/:commentId.
func (h *GuildHandler) UpdateComment(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, commentID := c.Params("guildId"), c.Params("commentId")

	var body updateGuildCommentBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	cm, err := h.comments.Update(c.Context(), principal.UserID.String(), guildID, commentID, validation.Sanitize(body.Body))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toCommentResponse(cm))
}

// DeleteComment handles DELETE /api/v1/guilds/:guildId/comments/:commentId.
func (h *GuildHandler) DeleteComment(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, commentID := c.Params("guildId"), c.Params("commentId")
	if err := h.comments.Delete(c.Context(), principal.UserID.String(), guildID, commentID); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListComments handles GET /api/v1/guilds/:guildId/comments.
func (h *GuildHandler) ListComments(c fiber.Ctx) error {
	guildID := c.Params("guildId")
	page := store.Page{Cursor: c.Query("cursor")}

	comments, next, err := h.comments.ListByContainer(c.Context(), guildID, page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]commentResponse, len(comments))
	for i, cm := range comments {
		resp[i] = toCommentResponse(cm)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

// AddReaction handles POST /api/v1/guilds/:guildId/comments/:commentId/reactions.
func (h *GuildHandler) AddReaction(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, commentID := c.Params("guildId"), c.Params("commentId")

	var body reactionBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	if err := h.reactions.Add(c.Context(), principal.UserID.String(), guildID, commentID, body.Kind); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveReaction handles DELETE /api/v1/guilds/:guildId/comments/:commentId/reactions/:kind.
func (h *GuildHandler) RemoveReaction(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	guildID, commentID, kind := c.Params("guildId"), c.Params("commentId"), c.Params("kind")

	if err := h.reactions.Remove(c.Context(), principal.UserID.String(), guildID, commentID, kind); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListReactions handles GET /api/v1/guilds/:guildId/comments/:commentId/reactions.
func (h *GuildHandler) ListReactions(c fiber.Ctx) error {
	guildID, commentID := c.Params("guildId"), c.Params("commentId")
	page := store.Page{Cursor: c.Query("cursor")}

	reactions, next, err := h.reactions.ListByTarget(c.Context(), guildID, commentID, page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]reactionListResponse, len(reactions))
	for i, re := range reactions {
		resp[i] = reactionListResponse{UserID: re.UserID, Kind: re.Kind, CreatedAt: re.CreatedAt.Format(time.RFC3339)}
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}
