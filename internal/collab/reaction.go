package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// reactionStore is the slice of store.ReactionRepository the service needs.
type reactionStore interface {
	Add(ctx context.Context, table, containerPK string, re store.Reaction) error
	Remove(ctx context.Context, table, containerPK, targetID, userID, kind string) error
	ListByTarget(ctx context.Context, table, containerPK, targetID string, page store.Page) ([]store.Reaction, string, error)
}

// ReactionService implements reaction add/remove shared by C6 and C7, parameterized the same way CommentService is.
type ReactionService struct {
	reactions   reactionStore
	table       string
	containerPK func(string) string
	perm        PermissionChecker
}

func NewReactionService(reactions *store.ReactionRepository, table string, containerPK func(string) string, perm PermissionChecker) *ReactionService {
	return &ReactionService{reactions: reactions, table: table, containerPK: containerPK, perm: perm}
}

// Add records userID's reaction of the given kind on targetID. Adding the same (target, user, kind) twice is a
// no-op success, since the composite key already enforces uniqueness at the store layer.
func (s *ReactionService) Add(ctx context.Context, userID, containerID, targetID, kind string) error {
	if kind == "" {
		return apierrors.New(apierrors.ValidationFailed, "kind is required")
	}
	if err := s.perm.CanPost(ctx, userID, containerID); err != nil {
		return err
	}
	re := store.Reaction{
		ContainerID: containerID,
		TargetID:    targetID,
		UserID:      userID,
		Kind:        kind,
		CreatedAt:   time.Now().UTC(),
	}
	err := s.reactions.Add(ctx, s.table, s.containerPK(containerID), re)
	if err != nil && errors.Is(err, store.ErrVersionConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("add reaction: %w", err)
	}
	return nil
}

func (s *ReactionService) Remove(ctx context.Context, userID, containerID, targetID, kind string) error {
	if err := s.reactions.Remove(ctx, s.table, s.containerPK(containerID), targetID, userID, kind); err != nil {
		return fmt.Errorf("remove reaction: %w", err)
	}
	return nil
}

func (s *ReactionService) ListByTarget(ctx context.Context, containerID, targetID string, page store.Page) ([]store.Reaction, string, error) {
	return s.reactions.ListByTarget(ctx, s.table, s.containerPK(containerID), targetID, page)
}
