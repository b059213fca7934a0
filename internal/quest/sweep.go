package quest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// CheckCompletionResult summarizes one sweep pass over a user's active quests.
type CheckCompletionResult struct {
	Scanned   int
	Completed int
	Failed    int
}

// CheckCompletion scans a user's active quests and transitions to completed any whose underlying goal reached
// progress >= 1.0, or to failed any whose deadline passed with progress < 1.0. It is idempotent: rerunning it
// produces no additional transitions or events, per spec.md §4.5.
func (s *Service) CheckCompletion(ctx context.Context, ownerID string) (CheckCompletionResult, error) {
	var result CheckCompletionResult
	page := store.Page{Limit: store.MaxPageSize}
	now := time.Now().UTC()

	for {
		quests, cursor, err := s.quests.ListActiveByOwner(ctx, ownerID, page)
		if err != nil {
			return result, fmt.Errorf("list active quests: %w", err)
		}

		for _, q := range quests {
			result.Scanned++
			transitioned, err := s.sweepOne(ctx, q, now)
			if err != nil {
				return result, err
			}
			switch transitioned {
			case store.QuestCompleted:
				result.Completed++
			case store.QuestFailed:
				result.Failed++
			}
		}

		if cursor == "" {
			break
		}
		page.Cursor = cursor
	}

	return result, nil
}

// SweepAll runs CheckCompletion's transition logic across every active quest in the table, independent of owner.
// Intended to be called on a ticker from cmd/, the table-wide counterpart of the CheckCompletion handler a user can
// trigger on demand for their own quests.
func (s *Service) SweepAll(ctx context.Context) (CheckCompletionResult, error) {
	var result CheckCompletionResult
	now := time.Now().UTC()

	err := s.quests.ScanAllActive(ctx, func(quests []store.Quest) error {
		for _, q := range quests {
			result.Scanned++
			transitioned, err := s.sweepOne(ctx, q, now)
			if err != nil {
				return err
			}
			switch transitioned {
			case store.QuestCompleted:
				result.Completed++
			case store.QuestFailed:
				result.Failed++
			}
		}
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("scan active quests: %w", err)
	}
	return result, nil
}

// sweepOne evaluates a single active quest: it updates milestone crossings unconditionally, then transitions the
// quest if its goal is done or its deadline has passed. It returns the new status if a transition happened, or ""
// otherwise.
func (s *Service) sweepOne(ctx context.Context, q store.Quest, now time.Time) (store.QuestStatus, error) {
	if q.GoalID == "" {
		return "", nil
	}

	g, err := s.goals.Get(ctx, q.GoalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get goal %s: %w", q.GoalID, err)
	}

	if err := s.syncMilestones(ctx, q, g.Progress); err != nil {
		return "", err
	}

	switch {
	case g.Progress >= 1.0:
		if _, err := s.Complete(ctx, q.OwnerID, q.QuestID); err != nil && !isAlreadyTransitioned(err) {
			return "", err
		}
		return store.QuestCompleted, nil
	case now.After(q.DueAt):
		if _, err := s.Fail(ctx, q.OwnerID, q.QuestID); err != nil && !isAlreadyTransitioned(err) {
			return "", err
		}
		return store.QuestFailed, nil
	default:
		return "", nil
	}
}

// syncMilestones persists any newly-crossed milestone thresholds and emits one gamification event per crossing.
// Re-running with an unchanged progress value is a no-op, since every crossed threshold is recorded under its
// milestoneKey in the quest's own milestonesHit set.
func (s *Service) syncMilestones(ctx context.Context, q store.Quest, progress float64) error {
	crossed := crossedMilestones(progress, q.MilestonesHit)
	if len(crossed) == 0 && progress == q.Progress {
		return nil
	}

	hit := make(map[string]bool, len(q.MilestonesHit)+len(crossed))
	for k, v := range q.MilestonesHit {
		hit[k] = v
	}
	for _, threshold := range crossed {
		hit[milestoneKey(threshold)] = true
	}

	err := s.quests.Update(ctx, q.OwnerID, q.QuestID, q.Version, func() (string, map[string]string, map[string]any, error) {
		return "SET progress = :p, milestonesHit = :m, updatedAt = :u", nil, map[string]any{
			":p": progress,
			":m": hit,
			":u": time.Now().UTC(),
		}, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Another writer touched the quest concurrently; the next sweep pass will pick up the crossing.
			return nil
		}
		return fmt.Errorf("sync milestones: %w", err)
	}

	for _, threshold := range crossed {
		s.events.Emit(ctx, Event{Kind: "milestone.reached", UserID: q.OwnerID, QuestID: q.QuestID, GoalID: q.GoalID, Threshold: threshold})
	}
	return nil
}

// isAlreadyTransitioned reports whether err is the state-machine rejecting a transition the sweep has already
// applied on a prior pass (conflict.state or gone.terminal), which the sweep treats as already-done rather than
// an error.
func isAlreadyTransitioned(err error) bool {
	var apiErr *apierrors.Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == apierrors.ConflictState || apiErr.Kind == apierrors.GoneTerminal
	}
	return false
}
