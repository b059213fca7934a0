package collab

import (
	"context"
	"errors"
	"fmt"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// GoalPermission implements PermissionChecker for goal-scoped comments and reactions (C7): the goal owner and any
// invitee whose invite has been accepted may post; only the goal owner may moderate.
type GoalPermission struct {
	goals   goalStore
	invites inviteStore
}

func NewGoalPermission(goals *store.GoalRepository, invites *store.InviteRepository) GoalPermission {
	return GoalPermission{goals: goals, invites: invites}
}

func (p GoalPermission) CanPost(ctx context.Context, userID, goalID string) error {
	g, err := p.goals.Get(ctx, goalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.New(apierrors.NotFound, "goal not found")
		}
		return fmt.Errorf("get goal: %w", err)
	}
	if g.OwnerID == userID {
		return nil
	}

	inv, err := p.invites.Get(ctx, goalID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.New(apierrors.PermissionDenied, "not a collaborator on this goal")
		}
		return fmt.Errorf("get invite: %w", err)
	}
	if inv.Status != store.InviteAccepted {
		return apierrors.New(apierrors.PermissionDenied, "not a collaborator on this goal")
	}
	return nil
}

// CanModerate allows only the goal owner to delete a collaborator's comment.
func (p GoalPermission) CanModerate(ctx context.Context, userID, goalID string) error {
	g, err := p.goals.Get(ctx, goalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.New(apierrors.NotFound, "goal not found")
		}
		return fmt.Errorf("get goal: %w", err)
	}
	if g.OwnerID != userID {
		return apierrors.New(apierrors.PermissionDenied, "only the goal owner can moderate comments")
	}
	return nil
}
