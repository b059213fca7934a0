package guild

import (
	"context"
	"errors"
	"fmt"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// CommentPermission implements collab.PermissionChecker for guild-scoped comments and reactions: any non-blocked
// member may post, and a moderator or the owner may moderate.
type CommentPermission struct {
	members memberStore
}

func NewCommentPermission(members *store.MemberRepository) CommentPermission {
	return CommentPermission{members: members}
}

func (p CommentPermission) CanPost(ctx context.Context, userID, guildID string) error {
	m, err := p.members.Get(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.New(apierrors.PermissionDenied, "not a member of this guild")
		}
		return fmt.Errorf("get member: %w", err)
	}
	if m.Blocked {
		return apierrors.New(apierrors.PermissionDenied, "blocked from this guild")
	}
	return nil
}

func (p CommentPermission) CanModerate(ctx context.Context, userID, guildID string) error {
	m, err := p.members.Get(ctx, guildID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierrors.New(apierrors.PermissionDenied, "not a member of this guild")
		}
		return fmt.Errorf("get member: %w", err)
	}
	if m.Role != store.RoleOwner && m.Role != store.RoleModerator {
		return apierrors.New(apierrors.PermissionDenied, "requires moderator or owner role")
	}
	return nil
}
