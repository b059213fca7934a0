// Package gamification implements the Gamification Service (C9): a table-driven rule set that turns lifecycle
// events from the Goal/Task, Quest, and Collaboration services into XP and badge grants on the user profile row.
package gamification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/goalguild/core-service/internal/store"
)

// maxProcessedEvents bounds the replay-guard set kept on the user row; past this cap the oldest ids are evicted,
// same shape as the quest milestone set but as a plain slice rather than a threshold map since event ids have no
// natural ordering to dedupe against.
const maxProcessedEvents = 500

// userStore is the slice of store.UserRepository the service needs, narrowed to an interface so unit tests can
// substitute an in-memory fake.
type userStore interface {
	Get(ctx context.Context, userID string) (store.User, error)
	Update(ctx context.Context, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
}

// Event is the normalized trigger every producer-specific adapter (QuestEventAdapter, GoalEventAdapter,
// CommentEventAdapter) translates its own event vocabulary into before handing it to Service.Apply.
type Event struct {
	Kind    string
	UserID  string
	EventID string // idempotency key; empty means the event is never deduped (not expected in practice)

	// XPOverride replaces the rule table's default XP delta when the producer already carries its own reward
	// amount, as quest.completed does via store.Quest.RewardXP.
	XPOverride *int
}

// rule is one row of the {task.completed, goal.completed, quest.completed, milestone.reached, comment.posted} ->
// {XP delta, badge grant} table.
type rule struct {
	XPDelta int
	Badge   string
}

var rules = map[string]rule{
	"task.completed":     {XPDelta: 5},
	"goal.completed":     {XPDelta: 25, Badge: "goal-finisher"},
	"quest.completed":    {XPDelta: 20, Badge: "quest-champion"},
	"milestone.reached":  {XPDelta: 10},
	"comment.posted":     {XPDelta: 1},
}

// Service applies Events to the user profile row. It is best-effort by design: a failure to apply an event (a
// missing user row, a version conflict past WithRetry's budget) is logged and swallowed rather than propagated,
// since no caller treats gamification as part of the operation it reacts to.
type Service struct {
	users userStore
	log   zerolog.Logger
}

func NewService(users *store.UserRepository, logger zerolog.Logger) *Service {
	return &Service{users: users, log: logger}
}

// Apply grants the XP delta and badge (if any) the rule table maps e.Kind to, unless e.EventID has already been
// recorded on the user's processedEvents set.
func (s *Service) Apply(ctx context.Context, e Event) {
	r, ok := rules[e.Kind]
	if !ok {
		return
	}
	xpDelta := r.XPDelta
	if e.XPOverride != nil {
		xpDelta = *e.XPOverride
	}

	err := store.WithRetry(ctx, func() error {
		u, err := s.users.Get(ctx, e.UserID)
		if err != nil {
			return err
		}
		if e.EventID != "" && containsString(u.ProcessedEvents, e.EventID) {
			return nil
		}

		badges := u.Badges
		if r.Badge != "" && !containsString(badges, r.Badge) {
			badges = append(append([]string{}, badges...), r.Badge)
		}
		processed := u.ProcessedEvents
		if e.EventID != "" {
			processed = appendBounded(processed, e.EventID, maxProcessedEvents)
		}

		return s.users.Update(ctx, e.UserID, u.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET xp = :xp, badges = :b, processedEvents = :pe, updatedAt = :u", nil, map[string]any{
				":xp": u.XP + xpDelta,
				":b":  badges,
				":pe": processed,
				":u":  time.Now().UTC(),
			}, nil
		})
	})
	if err != nil {
		s.log.Warn().Err(err).Str("userId", e.UserID).Str("kind", e.Kind).Msg("apply gamification event failed")
	}
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// appendBounded appends v to list, evicting the oldest entries first once the result would exceed cap.
func appendBounded(list []string, v string, cap int) []string {
	out := append(append([]string{}, list...), v)
	if len(out) > cap {
		out = out[len(out)-cap:]
	}
	return out
}
