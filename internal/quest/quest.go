// Package quest implements the Quest Engine (C5): the quest lifecycle state machine, milestone-crossing detection,
// the auto-completion sweep, and analytics aggregation.
package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
	"github.com/goalguild/core-service/internal/validation"
)

// questStore and goalStore are the slices of store.QuestRepository/store.GoalRepository the service needs, narrowed
// to an interface so unit tests can substitute an in-memory fake.
type questStore interface {
	Create(ctx context.Context, q store.Quest) error
	Get(ctx context.Context, ownerID, questID string) (store.Quest, error)
	Update(ctx context.Context, ownerID, questID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	Delete(ctx context.Context, ownerID, questID string) error
	List(ctx context.Context, ownerID string, page store.Page) ([]store.Quest, string, error)
	ListActiveByOwner(ctx context.Context, ownerID string, page store.Page) ([]store.Quest, string, error)
	ScanAllActive(ctx context.Context, visit func([]store.Quest) error) error
}

type goalStore interface {
	Get(ctx context.Context, goalID string) (store.Goal, error)
}

// milestoneThresholds are the progress crossings that emit a gamification event, per spec.md §4.5.
var milestoneThresholds = []float64{0.25, 0.5, 0.75, 1.0}

// EventEmitter lets the gamification service react to quest lifecycle events without internal/quest importing it
// back; Service calls it best-effort and never fails a quest operation because an event couldn't be emitted.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// Event is the small vocabulary of quest-related gamification triggers spec.md §4.9 reacts to.
type Event struct {
	Kind      string // "quest.completed" or "milestone.reached"
	UserID    string
	QuestID   string
	GoalID    string
	Threshold float64
	RewardXP  int
}

// Service implements C5's operations: create/get/list/update/delete, start/cancel/fail/complete transitions,
// checkCompletion (the sweep), and analytics.
type Service struct {
	quests questStore
	goals  goalStore
	events EventEmitter
}

func NewService(quests *store.QuestRepository, goals *store.GoalRepository, events EventEmitter) *Service {
	if events == nil {
		events = noopEmitter{}
	}
	return &Service{quests: quests, goals: goals, events: events}
}

// noopEmitter is used when the caller has no gamification wiring yet (e.g. in tests).
type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, Event) {}

// CreateRequest is the input for Service.Create.
type CreateRequest struct {
	Title       string
	Description string
	GoalID      string
	TemplateID  string
	RewardXP    int
	DueAt       time.Time
}

func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (store.Quest, error) {
	var verrs validation.Errors
	verrs.Require("title", req.Title)
	verrs.IntRange("rewardXp", req.RewardXP, 0, 1000)
	if err := verrs.Err("quest is invalid"); err != nil {
		return store.Quest{}, err
	}

	title := validation.Sanitize(req.Title)
	description := validation.Sanitize(req.Description)

	now := time.Now().UTC()
	q := store.Quest{
		QuestID:     uuid.NewString(),
		OwnerID:     ownerID,
		GoalID:      req.GoalID,
		TemplateID:  req.TemplateID,
		Title:       title,
		Description: description,
		RewardXP:    req.RewardXP,
		Status:      store.QuestDraft,
		DueAt:       req.DueAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.quests.Create(ctx, q); err != nil {
		return store.Quest{}, fmt.Errorf("create quest: %w", err)
	}
	return q, nil
}

func (s *Service) Get(ctx context.Context, ownerID, questID string) (store.Quest, error) {
	q, err := s.quests.Get(ctx, ownerID, questID)
	if err != nil {
		return store.Quest{}, translateNotFound(err)
	}
	return q, nil
}

// List pages through a user's quests in ascending quest-id order (not creation order).
func (s *Service) List(ctx context.Context, ownerID string, page store.Page) ([]store.Quest, string, error) {
	return s.quests.List(ctx, ownerID, page)
}

// UpdateRequest is the input for Service.Update; zero-value fields are left unchanged. Edits are allowed only while
// the quest is in draft, per spec.md §4.5's state diagram.
type UpdateRequest struct {
	Title       string
	Description string
	RewardXP    *int
	DueAt       *time.Time
}

func (s *Service) Update(ctx context.Context, ownerID, questID string, req UpdateRequest) (store.Quest, error) {
	var updated store.Quest
	err := store.WithRetry(ctx, func() error {
		q, err := s.quests.Get(ctx, ownerID, questID)
		if err != nil {
			return translateNotFound(err)
		}
		if q.Status != store.QuestDraft {
			return apierrors.New(apierrors.ConflictState, "quest can only be edited while in draft")
		}

		title := q.Title
		if req.Title != "" {
			title = req.Title
		}
		description := q.Description
		if req.Description != "" {
			description = req.Description
		}
		rewardXP := q.RewardXP
		if req.RewardXP != nil {
			rewardXP = *req.RewardXP
		}
		dueAt := q.DueAt
		if req.DueAt != nil {
			dueAt = *req.DueAt
		}

		err = s.quests.Update(ctx, ownerID, questID, q.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET title = :t, description = :d, rewardXp = :rx, dueAt = :due, updatedAt = :u", nil, map[string]any{
				":t":   title,
				":d":   description,
				":rx":  rewardXP,
				":due": dueAt,
				":u":   time.Now().UTC(),
			}, nil
		})
		if err != nil {
			return err
		}

		updated = q
		updated.Title, updated.Description, updated.RewardXP, updated.DueAt = title, description, rewardXP, dueAt
		return nil
	})
	return updated, err
}

func (s *Service) Delete(ctx context.Context, ownerID, questID string) error {
	if _, err := s.quests.Get(ctx, ownerID, questID); err != nil {
		return translateNotFound(err)
	}
	if err := s.quests.Delete(ctx, ownerID, questID); err != nil {
		return fmt.Errorf("delete quest: %w", err)
	}
	return nil
}

// Start transitions a quest draft -> active.
func (s *Service) Start(ctx context.Context, ownerID, questID string) (store.Quest, error) {
	return s.transition(ctx, ownerID, questID, store.QuestDraft, store.QuestActive, func(q *store.Quest) {
		q.StartedAt = time.Now().UTC()
	})
}

// Cancel transitions a quest active -> cancelled.
func (s *Service) Cancel(ctx context.Context, ownerID, questID string) (store.Quest, error) {
	return s.transition(ctx, ownerID, questID, store.QuestActive, store.QuestCancelled, nil)
}

// Fail transitions a quest active -> failed.
func (s *Service) Fail(ctx context.Context, ownerID, questID string) (store.Quest, error) {
	return s.transition(ctx, ownerID, questID, store.QuestActive, store.QuestFailed, nil)
}

// Complete transitions a quest active -> completed, either on explicit request or from the auto-completion sweep.
func (s *Service) Complete(ctx context.Context, ownerID, questID string) (store.Quest, error) {
	q, err := s.transition(ctx, ownerID, questID, store.QuestActive, store.QuestCompleted, func(q *store.Quest) {
		q.Progress = 1.0
		q.CompletedAt = time.Now().UTC()
	})
	if err != nil {
		return store.Quest{}, err
	}
	s.events.Emit(ctx, Event{Kind: "quest.completed", UserID: ownerID, QuestID: q.QuestID, GoalID: q.GoalID, RewardXP: q.RewardXP})
	return q, nil
}

// transition performs a single state-machine edge, enforcing that the quest is currently in `from` and rejecting
// any attempt from a terminal state with gone.terminal per spec.md §4.5.
func (s *Service) transition(ctx context.Context, ownerID, questID string, from, to store.QuestStatus, mutate func(*store.Quest)) (store.Quest, error) {
	var updated store.Quest
	err := store.WithRetry(ctx, func() error {
		q, err := s.quests.Get(ctx, ownerID, questID)
		if err != nil {
			return translateNotFound(err)
		}
		if isTerminal(q.Status) {
			return apierrors.New(apierrors.GoneTerminal, "quest is in a terminal state")
		}
		if q.Status != from {
			return apierrors.New(apierrors.ConflictState, fmt.Sprintf("quest must be %s to transition to %s", from, to))
		}

		next := q
		next.Status = to
		if mutate != nil {
			mutate(&next)
		}

		err = s.quests.Update(ctx, ownerID, questID, q.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET #status = :st, progress = :p, startedAt = :sa, completedAt = :ca, updatedAt = :u", map[string]string{"#status": "status"}, map[string]any{
				":st": next.Status,
				":p":  next.Progress,
				":sa": next.StartedAt,
				":ca": next.CompletedAt,
				":u":  time.Now().UTC(),
			}, nil
		})
		if err != nil {
			return err
		}

		updated = next
		return nil
	})
	return updated, err
}

func isTerminal(s store.QuestStatus) bool {
	return s == store.QuestCompleted || s == store.QuestCancelled || s == store.QuestFailed
}

func translateNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierrors.New(apierrors.NotFound, "quest not found")
	}
	return fmt.Errorf("get quest: %w", err)
}
