// Package goal implements the Goal/Task Service (C4): goal and task CRUD, idempotent task completion, and progress
// queries, built on the typed store.GoalRepository/store.TaskRepository.
package goal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// goalStore and taskStore are the slices of store.GoalRepository/store.TaskRepository the service needs, narrowed
// to an interface so unit tests can substitute an in-memory fake.
type goalStore interface {
	Create(ctx context.Context, g store.Goal) error
	Get(ctx context.Context, goalID string) (store.Goal, error)
	Update(ctx context.Context, goalID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	Delete(ctx context.Context, goalID string) error
	ListByOwner(ctx context.Context, ownerID string, page store.Page) ([]store.Goal, string, error)
}

type taskStore interface {
	Create(ctx context.Context, t store.Task) error
	Get(ctx context.Context, goalID, taskID string) (store.Task, error)
	Update(ctx context.Context, goalID, taskID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	Delete(ctx context.Context, goalID, taskID string) error
	List(ctx context.Context, goalID string, page store.Page) ([]store.Task, string, error)
}

// EventEmitter lets the gamification service react to goal/task lifecycle events without internal/goal importing it
// back; Service calls it best-effort and never fails a goal or task operation because an event couldn't be emitted.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// Event is the small vocabulary of goal/task-related gamification triggers.
type Event struct {
	Kind   string // "task.completed" or "goal.completed"
	UserID string
	GoalID string
	TaskID string
}

// Service implements C4's operations: createGoal, listGoals, updateGoal, deleteGoal, createTask, updateTask,
// deleteTask, completeTask, listGoalProgress, listAllGoalProgress.
type Service struct {
	goals  goalStore
	tasks  taskStore
	events EventEmitter
}

func NewService(goals *store.GoalRepository, tasks *store.TaskRepository, events EventEmitter) *Service {
	if events == nil {
		events = noopEmitter{}
	}
	return &Service{goals: goals, tasks: tasks, events: events}
}

// noopEmitter is used when the caller has no gamification wiring yet (e.g. in tests).
type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, Event) {}

// CreateGoalRequest is the input for Service.CreateGoal.
type CreateGoalRequest struct {
	Title       string
	Description string
	DueAt       time.Time
}

func (s *Service) CreateGoal(ctx context.Context, ownerID string, req CreateGoalRequest) (store.Goal, error) {
	if req.Title == "" {
		return store.Goal{}, apierrors.New(apierrors.ValidationFailed, "title is required")
	}

	now := time.Now().UTC()
	g := store.Goal{
		GoalID:      uuid.NewString(),
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Status:      store.GoalActive,
		StartedAt:   now,
		DueAt:       req.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.goals.Create(ctx, g); err != nil {
		return store.Goal{}, fmt.Errorf("create goal: %w", err)
	}
	return g, nil
}

// ListGoals pages through a user's goals, most recently created first.
func (s *Service) ListGoals(ctx context.Context, ownerID string, page store.Page) ([]store.Goal, string, error) {
	return s.goals.ListByOwner(ctx, ownerID, page)
}

// GoalProgress is the read-only progress snapshot for a single goal, as returned by listGoalProgress/
// listAllGoalProgress. It is read directly off the goal row rather than recomputed, since every task mutation
// already writes a fresh snapshot via recomputeProgress.
type GoalProgress struct {
	GoalID    string
	Title     string
	Status    store.GoalStatus
	TaskCount int
	DoneCount int
	Progress  float64
}

// ListGoalProgress returns the progress snapshot for a single goal.
func (s *Service) ListGoalProgress(ctx context.Context, goalID, callerID string) (GoalProgress, error) {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return GoalProgress{}, translateNotFound(err, "goal")
	}
	if g.OwnerID != callerID {
		return GoalProgress{}, apierrors.New(apierrors.PermissionDenied, "only the goal's owner may view its progress")
	}
	return goalProgressOf(g), nil
}

// ListAllGoalProgress returns progress snapshots for every goal the caller owns.
func (s *Service) ListAllGoalProgress(ctx context.Context, callerID string, page store.Page) ([]GoalProgress, string, error) {
	goals, cursor, err := s.goals.ListByOwner(ctx, callerID, page)
	if err != nil {
		return nil, "", err
	}
	result := make([]GoalProgress, 0, len(goals))
	for _, g := range goals {
		result = append(result, goalProgressOf(g))
	}
	return result, cursor, nil
}

func goalProgressOf(g store.Goal) GoalProgress {
	return GoalProgress{
		GoalID:    g.GoalID,
		Title:     g.Title,
		Status:    g.Status,
		TaskCount: g.TaskCount,
		DoneCount: g.DoneCount,
		Progress:  g.Progress,
	}
}

// UpdateGoalRequest is the input for Service.UpdateGoal; zero-value fields are left unchanged.
type UpdateGoalRequest struct {
	Title       string
	Description string
	DueAt       *time.Time
}

func (s *Service) UpdateGoal(ctx context.Context, goalID, callerID string, req UpdateGoalRequest) (store.Goal, error) {
	var updated store.Goal
	err := store.WithRetry(ctx, func() error {
		g, err := s.goals.Get(ctx, goalID)
		if err != nil {
			return translateNotFound(err, "goal")
		}
		if g.OwnerID != callerID {
			return apierrors.New(apierrors.PermissionDenied, "only the goal's owner may update it")
		}

		title := g.Title
		if req.Title != "" {
			title = req.Title
		}
		description := g.Description
		if req.Description != "" {
			description = req.Description
		}
		dueAt := g.DueAt
		if req.DueAt != nil {
			dueAt = *req.DueAt
		}

		err = s.goals.Update(ctx, goalID, g.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET title = :t, description = :d, dueAt = :due, updatedAt = :u", nil, map[string]any{
				":t":   title,
				":d":   description,
				":due": dueAt,
				":u":   time.Now().UTC(),
			}, nil
		})
		if err != nil {
			return err
		}

		updated = g
		updated.Title, updated.Description, updated.DueAt = title, description, dueAt
		return nil
	})
	return updated, err
}

// DeleteGoal removes a goal and every task/invite row beneath it via the Core Store's cascading delete.
func (s *Service) DeleteGoal(ctx context.Context, goalID, callerID string) error {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return translateNotFound(err, "goal")
	}
	if g.OwnerID != callerID {
		return apierrors.New(apierrors.PermissionDenied, "only the goal's owner may delete it")
	}
	if err := s.goals.Delete(ctx, goalID); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// CreateTaskRequest is the input for Service.CreateTask.
type CreateTaskRequest struct {
	Title string
}

func (s *Service) CreateTask(ctx context.Context, goalID, callerID string, req CreateTaskRequest) (store.Task, error) {
	if req.Title == "" {
		return store.Task{}, apierrors.New(apierrors.ValidationFailed, "title is required")
	}

	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return store.Task{}, translateNotFound(err, "goal")
	}
	if g.OwnerID != callerID {
		return store.Task{}, apierrors.New(apierrors.PermissionDenied, "only the goal's owner may add tasks")
	}

	now := time.Now().UTC()
	t := store.Task{
		GoalID:    goalID,
		TaskID:    uuid.NewString(),
		Title:     req.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tasks.Create(ctx, t); err != nil {
		return store.Task{}, fmt.Errorf("create task: %w", err)
	}

	if _, err := s.recomputeProgress(ctx, goalID); err != nil {
		return store.Task{}, err
	}

	return t, nil
}

// UpdateTaskRequest is the input for Service.UpdateTask.
type UpdateTaskRequest struct {
	Title string
}

func (s *Service) UpdateTask(ctx context.Context, goalID, taskID, callerID string, req UpdateTaskRequest) (store.Task, error) {
	if err := s.checkGoalOwner(ctx, goalID, callerID); err != nil {
		return store.Task{}, err
	}

	var updated store.Task
	err := store.WithRetry(ctx, func() error {
		t, err := s.tasks.Get(ctx, goalID, taskID)
		if err != nil {
			return translateNotFound(err, "task")
		}

		title := t.Title
		if req.Title != "" {
			title = req.Title
		}

		err = s.tasks.Update(ctx, goalID, taskID, t.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET title = :t, updatedAt = :u", nil, map[string]any{
				":t": title,
				":u": time.Now().UTC(),
			}, nil
		})
		if err != nil {
			return err
		}

		updated = t
		updated.Title = title
		return nil
	})
	return updated, err
}

func (s *Service) DeleteTask(ctx context.Context, goalID, taskID, callerID string) error {
	if err := s.checkGoalOwner(ctx, goalID, callerID); err != nil {
		return err
	}

	if _, err := s.tasks.Get(ctx, goalID, taskID); err != nil {
		return translateNotFound(err, "task")
	}

	if err := s.tasks.Delete(ctx, goalID, taskID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	_, err := s.recomputeProgress(ctx, goalID)
	return err
}

// CompleteTask marks a task done and recomputes the goal's progress snapshot. Completing an already-completed task
// is a no-op that still returns success, per spec.md §4.4.
func (s *Service) CompleteTask(ctx context.Context, goalID, taskID, callerID string) (store.Goal, error) {
	if err := s.checkGoalOwner(ctx, goalID, callerID); err != nil {
		return store.Goal{}, err
	}

	t, err := s.tasks.Get(ctx, goalID, taskID)
	if err != nil {
		return store.Goal{}, translateNotFound(err, "task")
	}

	if !t.Done {
		now := time.Now().UTC()
		err := s.tasks.Update(ctx, goalID, taskID, t.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET done = :done, doneAt = :at, updatedAt = :u", nil, map[string]any{
				":done": true,
				":at":   now,
				":u":    now,
			}, nil
		})
		if err != nil {
			return store.Goal{}, fmt.Errorf("mark task done: %w", err)
		}
		s.events.Emit(ctx, Event{Kind: "task.completed", UserID: callerID, GoalID: goalID, TaskID: taskID})
	}

	return s.recomputeProgress(ctx, goalID)
}

// checkGoalOwner is the shared ownership gate used by every task operation.
func (s *Service) checkGoalOwner(ctx context.Context, goalID, callerID string) error {
	g, err := s.goals.Get(ctx, goalID)
	if err != nil {
		return translateNotFound(err, "goal")
	}
	if g.OwnerID != callerID {
		return apierrors.New(apierrors.PermissionDenied, "only the goal's owner may modify its tasks")
	}
	return nil
}

// recomputeProgress re-derives doneCount/progress/status from the task list and persists them on the goal row,
// returning the updated goal. The goal transitions to completed once progress reaches 1.0.
func (s *Service) recomputeProgress(ctx context.Context, goalID string) (store.Goal, error) {
	var updated store.Goal
	var justCompleted bool
	err := store.WithRetry(ctx, func() error {
		g, err := s.goals.Get(ctx, goalID)
		if err != nil {
			return err
		}

		doneCount, taskCount, err := s.countDone(ctx, goalID)
		if err != nil {
			return err
		}

		progress := computeProgress(taskCount, doneCount, g.StartedAt, g.DueAt, time.Now())
		status := g.Status
		justCompleted = false
		if progress >= 1.0 && status == store.GoalActive {
			status = store.GoalCompleted
			justCompleted = true
		}

		if err := s.goals.Update(ctx, goalID, g.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET doneCount = :dc, taskCount = :tc, progress = :p, #status = :st, updatedAt = :u", map[string]string{"#status": "status"}, map[string]any{
				":dc": doneCount,
				":tc": taskCount,
				":p":  progress,
				":st": status,
				":u":  time.Now().UTC(),
			}, nil
		}); err != nil {
			return err
		}

		updated = g
		updated.DoneCount, updated.TaskCount, updated.Progress, updated.Status = doneCount, taskCount, progress, status
		return nil
	})
	if err != nil {
		return store.Goal{}, err
	}
	if justCompleted {
		s.events.Emit(ctx, Event{Kind: "goal.completed", UserID: updated.OwnerID, GoalID: updated.GoalID})
	}
	return updated, nil
}

// countDone walks every task under a goal to count completed/total. Goals are bounded in size (spec.md's 25-item
// transact limit already caps practical task counts), so a full partition scan per completion is acceptable.
func (s *Service) countDone(ctx context.Context, goalID string) (done, total int, err error) {
	page := store.Page{Limit: store.MaxPageSize}
	for {
		tasks, cursor, err := s.tasks.List(ctx, goalID, page)
		if err != nil {
			return 0, 0, fmt.Errorf("list tasks: %w", err)
		}
		for _, t := range tasks {
			total++
			if t.Done {
				done++
			}
		}
		if cursor == "" {
			break
		}
		page.Cursor = cursor
	}
	return done, total, nil
}

func translateNotFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierrors.New(apierrors.NotFound, what+" not found")
	}
	return fmt.Errorf("get %s: %w", what, err)
}
