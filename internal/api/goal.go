package api

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/goal"
	"github.com/goalguild/core-service/internal/httputil"
	"github.com/goalguild/core-service/internal/store"
	"github.com/goalguild/core-service/internal/validation"
)

// GoalHandler serves the Goal/Task Service (C4) endpoints.
type GoalHandler struct {
	goals *goal.Service
}

func NewGoalHandler(goals *goal.Service) *GoalHandler {
	return &GoalHandler{goals: goals}
}

type goalResponse struct {
	GoalID      string  `json:"goalId"`
	OwnerID     string  `json:"ownerId"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Status      string  `json:"status"`
	TaskCount   int     `json:"taskCount"`
	DoneCount   int     `json:"doneCount"`
	Progress    float64 `json:"progress"`
	DueAt       string  `json:"dueAt,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func toGoalResponse(g store.Goal) goalResponse {
	resp := goalResponse{
		GoalID:      g.GoalID,
		OwnerID:     g.OwnerID,
		Title:       g.Title,
		Description: g.Description,
		Status:      string(g.Status),
		TaskCount:   g.TaskCount,
		DoneCount:   g.DoneCount,
		Progress:    g.Progress,
		CreatedAt:   g.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   g.UpdatedAt.Format(time.RFC3339),
	}
	if !g.DueAt.IsZero() {
		resp.DueAt = g.DueAt.Format(time.RFC3339)
	}
	return resp
}

type taskResponse struct {
	TaskID    string `json:"taskId"`
	GoalID    string `json:"goalId"`
	Title     string `json:"title"`
	Done      bool   `json:"done"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toTaskResponse(t store.Task) taskResponse {
	return taskResponse{
		TaskID:    t.TaskID,
		GoalID:    t.GoalID,
		Title:     t.Title,
		Done:      t.Done,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
}

type createGoalBody struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"dueAt"`
}

// CreateGoal handles POST /api/v1/goals.
func (h *GoalHandler) CreateGoal(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)

	var body createGoalBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	var verrs validation.Errors
	verrs.Require("title", body.Title)
	if err := verrs.Err("goal is invalid"); err != nil {
		return httputil.HandleError(c, err)
	}

	req := goal.CreateGoalRequest{
		Title:       validation.Sanitize(body.Title),
		Description: validation.Sanitize(body.Description),
	}
	if body.DueAt != nil {
		req.DueAt = *body.DueAt
	}

	g, err := h.goals.CreateGoal(c.Context(), principal.UserID.String(), req)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toGoalResponse(g))
}

// ListGoals handles GET /api/v1/goals.
func (h *GoalHandler) ListGoals(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	page := store.Page{Cursor: c.Query("cursor")}

	goals, next, err := h.goals.ListGoals(c.Context(), principal.UserID.String(), page)
	if err != nil {
		return httputil.HandleError(c, err)
	}

	resp := make([]goalResponse, len(goals))
	for i, g := range goals {
		resp[i] = toGoalResponse(g)
	}
	return httputil.Success(c, fiber.Map{"items": resp, "nextCursor": next})
}

// GoalProgress handles GET /api/v1/goals/:goalId/progress.
func (h *GoalHandler) GoalProgress(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	goalID := c.Params("goalId")

	progress, err := h.goals.ListGoalProgress(c.Context(), goalID, principal.UserID.String())
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, progress)
}

type updateGoalBody struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueAt       *time.Time `json:"dueAt"`
}

// UpdateGoal handles PATCH /api/v1/goals/:goalId.
func (h *GoalHandler) UpdateGoal(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	goalID := c.Params("goalId")

	var body updateGoalBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	req := goal.UpdateGoalRequest{
		Title:       validation.Sanitize(body.Title),
		Description: validation.Sanitize(body.Description),
		DueAt:       body.DueAt,
	}

	g, err := h.goals.UpdateGoal(c.Context(), goalID, principal.UserID.String(), req)
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toGoalResponse(g))
}

// DeleteGoal handles DELETE /api/v1/goals/:goalId.
func (h *GoalHandler) DeleteGoal(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	goalID := c.Params("goalId")

	if err := h.goals.DeleteGoal(c.Context(), goalID, principal.UserID.String()); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type createTaskBody struct {
	Title string `json:"title"`
}

// CreateTask handles POST /api/v1/goals/:goalId/tasks.
func (h *GoalHandler) CreateTask(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	goalID := c.Params("goalId")

	var body createTaskBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	t, err := h.goals.CreateTask(c.Context(), goalID, principal.UserID.String(), goal.CreateTaskRequest{
		Title: validation.Sanitize(body.Title),
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, toTaskResponse(t))
}

// UpdateTask handles PATCH /api/v1/goals/:goalId/tasks/:taskId.
func (h *GoalHandler) UpdateTask(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	goalID := c.Params("goalId")
	taskID := c.Params("taskId")

	var body createTaskBody
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, apierrors.ValidationFailed, "invalid request body")
	}

	t, err := h.goals.UpdateTask(c.Context(), goalID, taskID, principal.UserID.String(), goal.UpdateTaskRequest{
		Title: validation.Sanitize(body.Title),
	})
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toTaskResponse(t))
}

// DeleteTask handles DELETE /api/v1/goals/:goalId/tasks/:taskId.
func (h *GoalHandler) DeleteTask(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	goalID := c.Params("goalId")
	taskID := c.Params("taskId")

	if err := h.goals.DeleteTask(c.Context(), goalID, taskID, principal.UserID.String()); err != nil {
		return httputil.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CompleteTask handles POST /api/v1/goals/:goalId/tasks/:taskId/complete.
func (h *GoalHandler) CompleteTask(c fiber.Ctx) error {
	principal := auth.PrincipalFromContext(c)
	goalID := c.Params("goalId")
	taskID := c.Params("taskId")

	g, err := h.goals.CompleteTask(c.Context(), goalID, taskID, principal.UserID.String())
	if err != nil {
		return httputil.HandleError(c, err)
	}
	return httputil.Success(c, toGoalResponse(g))
}
