package guild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// joinRequestStore is the slice of store.JoinRequestRepository the service needs.
type joinRequestStore interface {
	Create(ctx context.Context, jr store.JoinRequest) error
	Get(ctx context.Context, guildID, userID string) (store.JoinRequest, error)
	Update(ctx context.Context, guildID, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	Delete(ctx context.Context, guildID, userID string) error
	ListPending(ctx context.Context, guildID string, page store.Page) ([]store.JoinRequest, string, error)
	Approve(ctx context.Context, jr store.JoinRequest, newMember store.Member) error
}

// MembershipService implements the join-request queue and in-guild moderation actions. It is kept separate from
// Service (guild CRUD) since callers that only need membership operations (e.g. the gateway's room-join check)
// shouldn't need to depend on guild CRUD too.
type MembershipService struct {
	guilds   guildStore
	members  memberStore
	requests joinRequestStore
}

func NewMembershipService(guilds *store.GuildRepository, members *store.MemberRepository, requests *store.JoinRequestRepository) *MembershipService {
	return &MembershipService{guilds: guilds, members: members, requests: requests}
}

// IsMember reports whether userID currently belongs to guildID (used by the gateway's room-join check for C8).
func (s *MembershipService) IsMember(ctx context.Context, userID, guildID string) (bool, error) {
	m, err := s.members.Get(ctx, guildID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get member: %w", err)
	}
	return !m.Blocked, nil
}

// RequestJoin files a join request. Public guilds auto-approve instead of queueing, since requiring an explicit
// approval step for a guild anyone can already discover serves no purpose.
func (s *MembershipService) RequestJoin(ctx context.Context, userID, guildID, message string) (store.JoinRequest, error) {
	g, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		return store.JoinRequest{}, translateNotFound(err, "guild")
	}
	if _, err := s.members.Get(ctx, guildID, userID); err == nil {
		return store.JoinRequest{}, apierrors.New(apierrors.ConflictState, "already a member")
	}

	now := time.Now().UTC()
	jr := store.JoinRequest{
		GuildID:   guildID,
		UserID:    userID,
		Message:   message,
		Status:    store.JoinRequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if g.Visibility == store.GuildPublic {
		jr.Status = store.JoinRequestApproved
		if err := s.members.Create(ctx, store.Member{GuildID: guildID, UserID: userID, Role: store.RoleMember, JoinedAt: now}); err != nil {
			return store.JoinRequest{}, fmt.Errorf("auto-approve join: %w", err)
		}
		return jr, nil
	}

	if err := s.requests.Create(ctx, jr); err != nil {
		return store.JoinRequest{}, fmt.Errorf("create join request: %w", err)
	}
	return jr, nil
}

// CancelRequest withdraws the caller's own pending join request.
func (s *MembershipService) CancelRequest(ctx context.Context, userID, guildID string) error {
	jr, err := s.requests.Get(ctx, guildID, userID)
	if err != nil {
		return translateNotFound(err, "join request")
	}
	if jr.Status != store.JoinRequestPending {
		return apierrors.New(apierrors.ConflictState, "join request already resolved")
	}
	if err := s.requests.Delete(ctx, guildID, userID); err != nil {
		return fmt.Errorf("cancel join request: %w", err)
	}
	return nil
}

// ListPending pages through a guild's pending join requests. Callers check moderator/owner role first.
func (s *MembershipService) ListPending(ctx context.Context, guildID string, page store.Page) ([]store.JoinRequest, string, error) {
	return s.requests.ListPending(ctx, guildID, page)
}

// Approve admits a pending applicant as a member, atomically replacing the queued request with a member row.
func (s *MembershipService) Approve(ctx context.Context, callerID, guildID, userID string) error {
	if err := s.requireModerator(ctx, callerID, guildID); err != nil {
		return err
	}
	jr, err := s.requests.Get(ctx, guildID, userID)
	if err != nil {
		return translateNotFound(err, "join request")
	}
	if jr.Status != store.JoinRequestPending {
		return apierrors.New(apierrors.ConflictState, "join request already resolved")
	}

	newMember := store.Member{GuildID: guildID, UserID: userID, Role: store.RoleMember, JoinedAt: time.Now().UTC()}
	if err := s.requests.Approve(ctx, jr, newMember); err != nil {
		return fmt.Errorf("approve join request: %w", err)
	}
	return nil
}

// Reject marks a pending join request rejected without admitting the applicant.
func (s *MembershipService) Reject(ctx context.Context, callerID, guildID, userID string) error {
	if err := s.requireModerator(ctx, callerID, guildID); err != nil {
		return err
	}
	jr, err := s.requests.Get(ctx, guildID, userID)
	if err != nil {
		return translateNotFound(err, "join request")
	}
	if jr.Status != store.JoinRequestPending {
		return apierrors.New(apierrors.ConflictState, "join request already resolved")
	}

	err = s.requests.Update(ctx, guildID, userID, jr.Version, func() (string, map[string]string, map[string]any, error) {
		return "SET #status = :st, updatedAt = :u", map[string]string{"#status": "status"}, map[string]any{
			":st": store.JoinRequestRejected,
			":u":  time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return fmt.Errorf("reject join request: %w", err)
	}
	return nil
}

// Leave removes the caller's own membership. The owner cannot leave without first transferring ownership, since
// that would otherwise leave the guild with no owner.
func (s *MembershipService) Leave(ctx context.Context, userID, guildID string) error {
	g, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		return translateNotFound(err, "guild")
	}
	if g.OwnerID == userID {
		return apierrors.New(apierrors.ConflictState, "owner must transfer ownership before leaving")
	}
	if err := s.members.Remove(ctx, guildID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// RemoveMember lets a moderator or the owner expel a member who isn't the owner.
func (s *MembershipService) RemoveMember(ctx context.Context, callerID, guildID, targetUserID string) error {
	if err := s.requireModerator(ctx, callerID, guildID); err != nil {
		return err
	}
	target, err := s.members.Get(ctx, guildID, targetUserID)
	if err != nil {
		return translateNotFound(err, "member")
	}
	if target.Role == store.RoleOwner {
		return apierrors.New(apierrors.PermissionDenied, "cannot remove the guild owner")
	}
	if err := s.members.Remove(ctx, guildID, targetUserID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

// SetBlocked blocks or unblocks a member. A blocked member keeps their row (and history) but loses CanPost access
// via the permission checker, and cannot be re-admitted through RequestJoin without being unblocked first.
func (s *MembershipService) SetBlocked(ctx context.Context, callerID, guildID, targetUserID string, blocked bool) error {
	if err := s.requireModerator(ctx, callerID, guildID); err != nil {
		return err
	}
	target, err := s.members.Get(ctx, guildID, targetUserID)
	if err != nil {
		return translateNotFound(err, "member")
	}
	if target.Role == store.RoleOwner {
		return apierrors.New(apierrors.PermissionDenied, "cannot block the guild owner")
	}

	err = s.members.Update(ctx, guildID, targetUserID, target.Version, func() (string, map[string]string, map[string]any, error) {
		return "SET blocked = :b, updatedAt = :u", nil, map[string]any{
			":b": blocked,
			":u": time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return fmt.Errorf("set member blocked: %w", err)
	}
	return nil
}

// SetModerator promotes a member to moderator or demotes them back to plain member. Only the owner may do this.
func (s *MembershipService) SetModerator(ctx context.Context, callerID, guildID, targetUserID string, moderator bool) error {
	g, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		return translateNotFound(err, "guild")
	}
	if g.OwnerID != callerID {
		return apierrors.New(apierrors.PermissionDenied, "only the guild owner can assign moderators")
	}
	target, err := s.members.Get(ctx, guildID, targetUserID)
	if err != nil {
		return translateNotFound(err, "member")
	}
	if target.Role == store.RoleOwner {
		return apierrors.New(apierrors.PermissionDenied, "the owner's role cannot be changed this way")
	}

	role := store.RoleMember
	if moderator {
		role = store.RoleModerator
	}
	err = s.members.Update(ctx, guildID, targetUserID, target.Version, func() (string, map[string]string, map[string]any, error) {
		return "SET #role = :r, updatedAt = :u", map[string]string{"#role": "role"}, map[string]any{
			":r": role,
			":u": time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return fmt.Errorf("set member role: %w", err)
	}
	return nil
}

// TransferOwnership atomically swaps the owner role between the current owner and an existing member.
func (s *MembershipService) TransferOwnership(ctx context.Context, callerID, guildID, newOwnerID string) error {
	g, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		return translateNotFound(err, "guild")
	}
	if g.OwnerID != callerID {
		return apierrors.New(apierrors.PermissionDenied, "only the current owner can transfer ownership")
	}
	if newOwnerID == callerID {
		return apierrors.New(apierrors.ValidationFailed, "already the owner")
	}

	fromMember, err := s.members.Get(ctx, guildID, callerID)
	if err != nil {
		return translateNotFound(err, "member")
	}
	toMember, err := s.members.Get(ctx, guildID, newOwnerID)
	if err != nil {
		return translateNotFound(err, "member")
	}

	now := time.Now().UTC()
	updatedGuild := g
	updatedGuild.OwnerID = newOwnerID
	updatedGuild.UpdatedAt = now
	updatedGuild.Version++

	updatedFrom := fromMember
	updatedFrom.Role = store.RoleModerator
	updatedFrom.UpdatedAt = now
	updatedFrom.Version++

	updatedTo := toMember
	updatedTo.Role = store.RoleOwner
	updatedTo.UpdatedAt = now
	updatedTo.Version++

	if err := s.members.TransferOwnership(ctx, updatedGuild, updatedFrom, updatedTo); err != nil {
		return fmt.Errorf("transfer ownership: %w", err)
	}
	return nil
}

// requireModerator returns apierrors.PermissionDenied unless callerID is the guild owner or a moderator.
func (s *MembershipService) requireModerator(ctx context.Context, callerID, guildID string) error {
	m, err := s.members.Get(ctx, guildID, callerID)
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
