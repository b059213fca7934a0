package api

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/httputil"
	"github.com/goalguild/core-service/internal/quest"
	"github.com/goalguild/core-service/internal/store"
	"github.com/goalguild/core-service/internal/validation"
)

// QuestHandler serves the Quest Engine (C5) endpoints, including the reusable quest-template CRUD surface.
type QuestHandler struct {
	quests    *quest.Service
	analytics *quest.AnalyticsService
	templates *quest.TemplateService
}

func NewQuestHandler(quests *quest.Service, analytics *quest.AnalyticsService, templates *quest.TemplateService) *QuestHandler {
	return &QuestHandler{quests: quests, analytics: analytics, templates: templates}
}

type questResponse struct {
	QuestID     string  `json:"questId"`
	OwnerID     string  `json:"ownerId"`
	GoalID      string  `json:"goalId,omitempty"`
	TemplateID  string  `json:"templateId,omitempty"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	RewardXP    int     `json:"rewardXp"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	DueAt       string  `json:"dueAt,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func toQuestResponse(q store.Quest) questResponse {
	resp := questResponse{
		QuestID:     q.QuestID,
		OwnerID:     q.OwnerID,
		GoalID:      q.GoalID,
		TemplateID:  q.TemplateID,
		Title:       q.Title,
		Description: q.Description,
		RewardXP:    q.RewardXP,
		Status:      string(q.Status),
		Progress:    q.Progress,
		CreatedAt:   q.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   q.UpdatedAt.Format(time.RFC3339),
	}
	if !q.DueAt.IsZero() {
		resp.DueAt = q.DueAt.Format(time.RFC3339)
	}
	return resp
}

type createQuestBody struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	GoalID      string    `json:"goalId"`
	TemplateID  string    `json:"templateId"`
	RewardXP    int       `json:"rewardXp"`
	DueAt       time.Time `json:"dueAt"`
}

// CreateQuest handles POST /api/v1/quests.
func (h *QuestHandler) CreateQuest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)

	var body createQuestBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	q, err := h.quests.Create(c.Context(), principal.UserID.String(), quest.CreateRequest{
		Title:       body.Title,
		Description: body.Description,
		GoalID:      body.GoalID,
		TemplateID:  body.TemplateID,
		RewardXP:    body.RewardXP,
		DueAt:       body.DueAt,
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toQuestResponse(q))
}

// GetQuest handles GET /api/v1/quests/:questId.
func (h *QuestHandler) GetQuest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	q, err := h.quests.Get(c.Context(), principal.UserID.String(), c.Params("questId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toQuestResponse(q))
}

// ListQuests handles GET /api/v1/quests.
func (h *QuestHandler) ListQuests(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	page := store.Page{Cursor: c.Query("cursor")}

	quests, next, err := h.quests.List(c.Context(), principal.UserID.String(), page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]questResponse, len(quests))
	for i, q := range quests {
		resp[i] = toQuestResponse(q)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

type updateQuestBody struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	RewardXP    *int       `json:"rewardXp"`
	DueAt       *time.Time `json:"dueAt"`
}

// UpdateQuest handles PATCH /api/v1/quests/:questId.
func (h *QuestHandler) UpdateQuest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)

	var body updateQuestBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	var verrs validation.Errors
	if body.RewardXP != nil {
		verrs.IntRange("rewardXp", *body.RewardXP, 0, 1000)
	}
	if err := verrs.Err("quest update is invalid"); err != nil {
		return httputil.HandleError(c, err)
	}

	q, err := h.quests.Update(c.Context(), principal.UserID.String(), c.Params("questId"), quest.UpdateRequest{
		Title:       validation.Sanitize(body.Title),
		Description: validation.Sanitize(body.Description),
		RewardXP:    body.RewardXP,
		DueAt:       body.DueAt,
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toQuestResponse(q))
}

// DeleteQuest handles DELETE /api/v1/quests/:questId.
func (h *QuestHandler) DeleteQuest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	if err := h.quests.Delete(c.Context(), principal.UserID.String(), c.Params("questId")); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// StartQuest handles POST /api/v1/quests/:questId/start.
func (h *QuestHandler) StartQuest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	q, err := h.quests.Start(c.Context(), principal.UserID.String(), c.Params("questId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toQuestResponse(q))
}

// CancelQuest handles POST /api/v1/quests/:questId/cancel.
func (h *QuestHandler) CancelQuest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	q, err := h.quests.Cancel(c.Context(), principal.UserID.String(), c.Params("questId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toQuestResponse(q))
}

// FailQuest handles POST /api/v1/quests/:questId/fail.
func (h *QuestHandler) FailQuest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	q, err := h.quests.Fail(c.Context(), principal.UserID.String(), c.Params("questId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toQuestResponse(q))
}

// CompleteQuest handles POST /api/v1/quests/:questId/complete.
func (h *QuestHandler) CompleteQuest(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	q, err := h.quests.Complete(c.Context(), principal.UserID.String(), c.Params("questId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toQuestResponse(q))
}

// CheckCompletion handles POST /api/v1/quests/check-completion: runs the auto-completion sweep for the caller.
func (h *QuestHandler) CheckCompletion(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	result, err := h.quests.CheckCompletion(c.Context(), principal.UserID.String())
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, result)
}

// Analytics handles GET /api/v1/quests/analytics?period=week|month|all.
func (h *QuestHandler) Analytics(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	a, err := h.analytics.Analytics(c.Context(), principal.UserID.String(), quest.Period(c.Query("period")))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, a)
}

type templateResponse struct {
	TemplateID   string   `json:"templateId"`
	OwnerID      string   `json:"ownerId"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Privacy      string   `json:"privacy"`
	DurationDays int      `json:"durationDays"`
	TaskTitles   []string `json:"taskTitles"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

func toTemplateResponse(t store.Template) templateResponse {
	return templateResponse{
		TemplateID:   t.TemplateID,
		OwnerID:      t.OwnerID,
		Title:        t.Title,
		Description:  t.Description,
		Privacy:      string(t.Privacy),
		DurationDays: t.DurationDays,
		TaskTitles:   t.TaskTitles,
		CreatedAt:    t.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    t.UpdatedAt.Format(time.RFC3339),
	}
}

type templateBody struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Privacy      string   `json:"privacy"`
	DurationDays int      `json:"durationDays"`
	TaskTitles   []string `json:"taskTitles"`
}

// CreateTemplate handles POST /api/v1/quests/templates.
func (h *QuestHandler) CreateTemplate(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)

	var body templateBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	t, err := h.templates.Create(c.Context(), principal.UserID.String(), quest.CreateTemplateRequest{
		Title:        body.Title,
		Description:  body.Description,
		Privacy:      store.TemplatePrivacy(body.Privacy),
		DurationDays: body.DurationDays,
		TaskTitles:   body.TaskTitles,
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toTemplateResponse(t))
}

// ListTemplates handles GET /api/v1/quests/templates.
func (h *QuestHandler) ListTemplates(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	page := store.Page{Cursor: c.Query("cursor")}

	templates, next, err := h.templates.List(c.Context(), principal.UserID.String(), page)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	resp := make([]templateResponse, len(templates))
	for i, t := range templates {
		resp[i] = toTemplateResponse(t)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

// GetTemplate handles GET /api/v1/quests/templates/:templateId.
func (h *QuestHandler) GetTemplate(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	t, err := h.templates.Get(c.Context(), principal.UserID.String(), c.Params("templateId"))
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toTemplateResponse(t))
}

// UpdateTemplate handles PUT /api/v1/quests/templates/:templateId.
func (h *QuestHandler) UpdateTemplate(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)

	var body templateBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	durationDays := &body.DurationDays
	if body.DurationDays == 0 {
		durationDays = nil
	}

	t, err := h.templates.Update(c.Context(), principal.UserID.String(), c.Params("templateId"), quest.UpdateTemplateRequest{
		Title:        body.Title,
		Description:  body.Description,
		Privacy:      store.TemplatePrivacy(body.Privacy),
		DurationDays: durationDays,
		TaskTitles:   body.TaskTitles,
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toTemplateResponse(t))
}

// DeleteTemplate handles DELETE /api/v1/quests/templates/:templateId.
func (h *QuestHandler) DeleteTemplate(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	if err := h.templates.Delete(c.Context(), principal.UserID.String(), c.Params("templateId")); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
