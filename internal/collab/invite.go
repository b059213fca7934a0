// Package collab implements the Collaboration Service (C7): cross-user goal invites with a mirrored dual-row
// inbox/outbox layout, a per-user hourly invite cap, and the comment/reaction primitives shared with the Guild
// Service (C6).
package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// inviteRateLimit and inviteRateWindow bound how many invites a single user may send per rolling window, per
// spec.md §4.6's 20/hour/user hard cap.
const (
	inviteRateLimit  = 20
	inviteRateWindow = time.Hour
)

// inviteStore is the slice of store.InviteRepository the service needs, narrowed so tests can substitute a fake.
type inviteStore interface {
	Create(ctx context.Context, inv store.Invite) error
	Get(ctx context.Context, goalID, inviteeID string) (store.Invite, error)
	SetStatus(ctx context.Context, inv store.Invite, status store.InviteStatus) error
	ListByGoal(ctx context.Context, goalID string, page store.Page) ([]store.Invite, string, error)
	ListByInvitee(ctx context.Context, inviteeID string, page store.Page) ([]store.Invite, string, error)
}

type goalStore interface {
	Get(ctx context.Context, goalID string) (store.Goal, error)
}

// InviteService implements invite creation and the accept/decline response, with a Valkey-backed rate limiter on
// the inviter side.
type InviteService struct {
	invites inviteStore
	goals   goalStore
	rdb     *redis.Client
}

func NewInviteService(invites *store.InviteRepository, goals *store.GoalRepository, rdb *redis.Client) *InviteService {
	return &InviteService{invites: invites, goals: goals, rdb: rdb}
}

// CreateRequest is the input for InviteService.Create.
type CreateRequest struct {
	GoalID    string
	InviteeID string
}

// Create issues an invite from inviterID to req.InviteeID for req.GoalID. The inviter must own the goal; a
// rolling hourly counter in Valkey caps how many invites one inviter can send regardless of target goal.
func (s *InviteService) Create(ctx context.Context, inviterID string, req CreateRequest) (store.Invite, error) {
	if req.GoalID == "" || req.InviteeID == "" {
		return store.Invite{}, apierrors.New(apierrors.ValidationFailed, "goalId and inviteeId are required")
	}
	if req.InviteeID == inviterID {
		return store.Invite{}, apierrors.New(apierrors.ValidationFailed, "cannot invite yourself")
	}

	g, err := s.goals.Get(ctx, req.GoalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Invite{}, apierrors.New(apierrors.NotFound, "goal not found")
		}
		return store.Invite{}, fmt.Errorf("get goal: %w", err)
	}
	if g.OwnerID != inviterID {
		return store.Invite{}, apierrors.New(apierrors.PermissionDenied, "only the goal owner can invite collaborators")
	}

	if err := s.checkRateLimit(ctx, inviterID); err != nil {
		return store.Invite{}, err
	}

	now := time.Now().UTC()
	inv := store.Invite{
		GoalID:    req.GoalID,
		InviterID: inviterID,
		InviteeID: req.InviteeID,
		Status:    store.InvitePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.invites.Create(ctx, inv); err != nil {
		return store.Invite{}, fmt.Errorf("create invite: %w", err)
	}
	return inv, nil
}

// checkRateLimit increments the inviter's rolling-hour counter and rejects once it exceeds inviteRateLimit. The
// counter key carries its own TTL so it self-expires; EXPIRE is only set on the increment that creates the key, so
// the window always rolls from the first invite in it rather than resetting on every send.
func (s *InviteService) checkRateLimit(ctx context.Context, inviterID string) error {
	key := inviteRateKey(inviterID)
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("incr invite rate counter: %w", err)
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, key, inviteRateWindow).Err(); err != nil {
			return fmt.Errorf("expire invite rate counter: %w", err)
		}
	}
	if count > inviteRateLimit {
		return apierrors.New(apierrors.Throttled, "invite limit reached, try again later")
	}
	return nil
}

func inviteRateKey(inviterID string) string { return "collab:invite_rate:" + inviterID }

// Accept marks an invite accepted, only valid from pending.
func (s *InviteService) Accept(ctx context.Context, inviteeID, goalID string) (store.Invite, error) {
	return s.respond(ctx, inviteeID, goalID, store.InviteAccepted)
}

// Decline marks an invite declined, only valid from pending.
func (s *InviteService) Decline(ctx context.Context, inviteeID, goalID string) (store.Invite, error) {
	return s.respond(ctx, inviteeID, goalID, store.InviteDeclined)
}

func (s *InviteService) respond(ctx context.Context, inviteeID, goalID string, status store.InviteStatus) (store.Invite, error) {
	inv, err := s.invites.Get(ctx, goalID, inviteeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Invite{}, apierrors.New(apierrors.NotFound, "invite not found")
		}
		return store.Invite{}, fmt.Errorf("get invite: %w", err)
	}
	if inv.InviteeID != inviteeID {
		return store.Invite{}, apierrors.New(apierrors.PermissionDenied, "not your invite")
	}
	if inv.Status != store.InvitePending {
		return store.Invite{}, apierrors.New(apierrors.ConflictState, "invite already responded to")
	}

	if err := s.invites.SetStatus(ctx, inv, status); err != nil {
		return store.Invite{}, fmt.Errorf("set invite status: %w", err)
	}
	inv.Status = status
	return inv, nil
}

// ListSent pages through the invites a user has issued for a goal they own.
func (s *InviteService) ListSent(ctx context.Context, goalID string, page store.Page) ([]store.Invite, string, error) {
	return s.invites.ListByGoal(ctx, goalID, page)
}

// ListInbox pages through a user's received invites, across every goal that invited them.
func (s *InviteService) ListInbox(ctx context.Context, inviteeID string, page store.Page) ([]store.Invite, string, error) {
	return s.invites.ListByInvitee(ctx, inviteeID, page)
}
