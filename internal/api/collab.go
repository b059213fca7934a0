package api

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/collab"
	"github.com/goalguild/core-service/internal/httputil"
	"github.com/goalguild/core-service/internal/store"
	"github.com/goalguild/core-service/internal/validation"
)

// CollabHandler serves the Collaboration Service (C7) endpoints: goal invites, comments, and reactions.
type CollabHandler struct {
	invites   *collab.InviteService
	comments  *collab.CommentService
	reactions *collab.ReactionService
}

func NewCollabHandler(invites *collab.InviteService, comments *collab.CommentService, reactions *collab.ReactionService) *CollabHandler {
	return &CollabHandler{invites: invites, comments: comments, reactions: reactions}
}

type inviteResponse struct {
	GoalID    string `json:"goalId"`
	InviterID string `json:"inviterId"`
	InviteeID string `json:"inviteeId"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toInviteResponse(inv store.Invite) inviteResponse {
	return inviteResponse{
		GoalID:    inv.GoalID,
		InviterID: inv.InviterID,
		InviteeID: inv.InviteeID,
		Status:    string(inv.Status),
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: inv.UpdatedAt.Format(time.RFC3339),
	}
}

type createInviteBody struct {
	GoalID    string `json:"goalId"`
	InviteeID string `json:"inviteeId"`
}

// CreateInvite handles POST /api/v1/invites.
func (h *CollabHandler) CreateInvite(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)

	var body createInviteBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	inv, err := h.invites.Create(c.Context(), principal.UserID.String(), collab.CreateRequest{
		GoalID:    body.GoalID,
		InviteeID: body.InviteeID,
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toInviteResponse(inv))
}

// AcceptInvite handles POST /api/v1/goals/:goalId/invite/accept.
func (h *CollabHandler) AcceptInvite(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	inv, err := h.invites.Accept(c.Context(), principal.UserID.String(), c.Params("goalId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toInviteResponse(inv))
}

// DeclineInvite handles POST /api/v1/goals/:goalId/invite/decline.
func (h *CollabHandler) DeclineInvite(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	inv, err := h.invites.Decline(c.Context(), principal.UserID.String(), c.Params("goalId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toInviteResponse(inv))
}

// ListSentInvites handles GET /api/v1/goals/:goalId/invites.
func (h *CollabHandler) ListSentInvites(c fiber.Ctx) error {
	page := store.Page{Cursor: c.Query("cursor")}
	invites, next, err := h.invites.ListSent(c.Context(), c.Params("goalId"), page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]inviteResponse, len(invites))
	for i, inv := range invites {
		resp[i] = toInviteResponse(inv)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

// ListInviteInbox handles GET /api/v1/invites/inbox.
func (h *CollabHandler) ListInviteInbox(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	page := store.Page{Cursor: c.Query("cursor")}
	invites, next, err := h.invites.ListInbox(c.Context(), principal.UserID.String(), page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]inviteResponse, len(invites))
	for i, inv := range invites {
		resp[i] = toInviteResponse(inv)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

type commentResponse struct {
	ContainerID string `json:"containerId"`
	CommentID   string `json:"commentId"`
	ParentID    string `json:"parentId,omitempty"`
	AuthorID    string `json:"authorId"`
	Body        string `json:"body"`
	Deleted     bool   `json:"deleted"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toCommentResponse(cm store.Comment) commentResponse {
	return commentResponse{
		ContainerID: cm.ContainerID,
		CommentID:   cm.CommentID,
		ParentID:    cm.ParentID,
		AuthorID:    cm.AuthorID,
		Body:        cm.Body,
		Deleted:     cm.Deleted,
		CreatedAt:   cm.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   cm.UpdatedAt.Format(time.RFC3339),
	}
}

type createCommentBody struct {
	ParentID string `json:"parentId"`
	Body     string `json:"body"`
}

// CreateComment handles POST /api/v1/goals/:goalId/comments.
func (h *CollabHandler) CreateComment(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	containerID := c.Params("goalId")

	var body createCommentBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	var verrs validation.Errors
	verrs.Require("body", body.Body)
	if err := verrs.Err("comment is invalid"); err != nil {
		return httputil.HandleError(c, err)
	}

	cm, err := h.comments.Create(c.Context(), principal.UserID.String(), containerID, body.ParentID, validation.Sanitize(body.Body))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toCommentResponse(cm))
}

type updateCommentBody struct {
	Body string `json:"body"`
}

// UpdateComment handles PATCH /api/v1/goals/:goalId/comments/:commentId.
func (h *CollabHandler) UpdateComment(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	containerID := c.Params("goalId")
	commentID := c.Params("commentId")

	var body updateCommentBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	cm, err := h.comments.Update(c.Context(), principal.UserID.String(), containerID, commentID, validation.Sanitize(body.Body))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toCommentResponse(cm))
}

// DeleteComment handles DELETE /api/v1/goals/:goalId/comments/:commentId.
func (h *CollabHandler) DeleteComment(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	containerID := c.Params("goalId")
	commentID := c.Params("commentId")

	if err := h.comments.Delete(c.Context(), principal.UserID.String(), containerID, commentID); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ListComments handles GET /api/v1/goals/:goalId/comments.
func (h *CollabHandler) ListComments(c fiber.Ctx) error {
	containerID := c.Params("goalId")
	page := store.Page{Cursor: c.Query("cursor")}

	comments, next, err := h.comments.ListByContainer(c.Context(), containerID, page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]commentResponse, len(comments))
	for i, cm := range comments {
		resp[i] = toCommentResponse(cm)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

type reactionBody struct {
	Kind string `json:"kind"`
}

// AddReaction handles POST /api/v1/goals/:goalId/comments/:commentId/reactions.
func (h *CollabHandler) AddReaction(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	containerID := c.Params("goalId")
	targetID := c.Params("commentId")

	var body reactionBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	if err := h.reactions.Add(c.Context(), principal.UserID.String(), containerID, targetID, body.Kind); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveReaction handles DELETE /api/v1/goals/:goalId/comments/:commentId/reactions/:kind.
func (h *CollabHandler) RemoveReaction(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	containerID := c.Params("goalId")
	targetID := c.Params("commentId")
	kind := c.Params("kind")

	if err := h.reactions.Remove(c.Context(), principal.UserID.String(), containerID, targetID, kind); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type reactionListResponse struct {
	UserID    string `json:"userId"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"createdAt"`
}

// ListReactions handles GET /api/v1/goals/:goalId/comments/:commentId/reactions.
func (h *CollabHandler) ListReactions(c fiber.Ctx) error {
	containerID := c.Params("goalId")
	targetID := c.Params("commentId")
	page := store.Page{Cursor: c.Query("cursor")}

	reactions, next, err := h.reactions.ListByTarget(c.Context(), containerID, targetID, page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]reactionListResponse, len(reactions))
	for i, re := range reactions {
		resp[i] = reactionListResponse{UserID: re.UserID, Kind: re.Kind, CreatedAt: re.CreatedAt.Format(time.RFC3339)}
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}
