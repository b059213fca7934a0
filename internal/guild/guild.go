// Package guild implements the Guild Service (C6): guild CRUD, membership, the join-request queue, moderation
// actions, avatars, and hourly ranking aggregation.
package guild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// guildStore is the slice of store.GuildRepository the service needs.
type guildStore interface {
	Create(ctx context.Context, g store.Guild) error
	Get(ctx context.Context, guildID string) (store.Guild, error)
	Update(ctx context.Context, guildID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	Delete(ctx context.Context, guildID string) error
	ListByType(ctx context.Context, guildType string, page store.Page) ([]store.Guild, string, error)
	ListOwnedBy(ctx context.Context, userID string, page store.Page) ([]store.Guild, string, error)
}

// memberStore is the slice of store.MemberRepository the service needs.
type memberStore interface {
	Create(ctx context.Context, m store.Member) error
	Get(ctx context.Context, guildID, userID string) (store.Member, error)
	Update(ctx context.Context, guildID, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	Remove(ctx context.Context, guildID, userID string) error
	ListByGuild(ctx context.Context, guildID string, page store.Page) ([]store.Member, string, error)
	ListByUser(ctx context.Context, userID string, page store.Page) ([]store.Member, string, error)
	TransferOwnership(ctx context.Context, updatedGuild store.Guild, updatedFromMember, updatedToMember store.Member) error
}

// Service implements C6's guild CRUD and membership operations.
type Service struct {
	guilds  guildStore
	members memberStore
}

func NewService(guilds *store.GuildRepository, members *store.MemberRepository) *Service {
	return &Service{guilds: guilds, members: members}
}

// CreateRequest is the input for Service.Create.
type CreateRequest struct {
	GuildType   string
	Name        string
	Description string
	Visibility  store.GuildVisibility
}

// Create creates a guild and seeds its owner as the first member, in that order: a guild with no owner member
// would be unreachable by every membership-gated operation.
func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (store.Guild, error) {
	if req.Name == "" {
		return store.Guild{}, apierrors.New(apierrors.ValidationFailed, "name is required")
	}
	if req.Visibility == "" {
		req.Visibility = store.GuildPublic
	}

	now := time.Now().UTC()
	g := store.Guild{
		GuildID:     uuid.NewString(),
		GuildType:   req.GuildType,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  req.Visibility,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.guilds.Create(ctx, g); err != nil {
		return store.Guild{}, fmt.Errorf("create guild: %w", err)
	}

	owner := store.Member{
		GuildID:  g.GuildID,
		UserID:   ownerID,
		Role:     store.RoleOwner,
		JoinedAt: now,
	}
	if err := s.members.Create(ctx, owner); err != nil {
		return store.Guild{}, fmt.Errorf("seed owner membership: %w", err)
	}
	return g, nil
}

func (s *Service) Get(ctx context.Context, guildID string) (store.Guild, error) {
	g, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		return store.Guild{}, translateNotFound(err, "guild")
	}
	return g, nil
}

// ListByType pages through guilds of a type, newest first.
func (s *Service) ListByType(ctx context.Context, guildType string, page store.Page) ([]store.Guild, string, error) {
	return s.guilds.ListByType(ctx, guildType, page)
}

// ListOwnedBy pages through the guilds a user owns.
func (s *Service) ListOwnedBy(ctx context.Context, userID string, page store.Page) ([]store.Guild, string, error) {
	return s.guilds.ListOwnedBy(ctx, userID, page)
}

// UpdateRequest is the input for Service.Update; zero-value fields are left unchanged.
type UpdateRequest struct {
	Name        string
	Description *string
	Visibility  store.GuildVisibility
}

// Update edits guild metadata. Only the owner may update.
func (s *Service) Update(ctx context.Context, callerID, guildID string, req UpdateRequest) (store.Guild, error) {
	var updated store.Guild
	err := store.WithRetry(ctx, func() error {
		g, err := s.guilds.Get(ctx, guildID)
		if err != nil {
			return translateNotFound(err, "guild")
		}
		if g.OwnerID != callerID {
			return apierrors.New(apierrors.PermissionDenied, "only the guild owner can update the guild")
		}

		name := g.Name
		if req.Name != "" {
			name = req.Name
		}
		description := g.Description
		if req.Description != nil {
			description = *req.Description
		}
		visibility := g.Visibility
		if req.Visibility != "" {
			visibility = req.Visibility
		}

		err = s.guilds.Update(ctx, guildID, g.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET #name = :n, description = :d, visibility = :v, updatedAt = :u", map[string]string{"#name": "name"}, map[string]any{
				":n": name,
				":d": description,
				":v": visibility,
				":u": time.Now().UTC(),
			}, nil
		})
		if err != nil {
			return err
		}

		updated = g
		updated.Name, updated.Description, updated.Visibility = name, description, visibility
		return nil
	})
	return updated, err
}

// Delete removes a guild. Only the owner may delete; this does not cascade member/comment/reaction rows, left to
// an operator-driven reap since a guild's social graph can be arbitrarily large (unlike a goal's bounded children).
func (s *Service) Delete(ctx context.Context, callerID, guildID string) error {
	g, err := s.guilds.Get(ctx, guildID)
	if err != nil {
		return translateNotFound(err, "guild")
	}
	if g.OwnerID != callerID {
		return apierrors.New(apierrors.PermissionDenied, "only the guild owner can delete the guild")
	}
	if err := s.guilds.Delete(ctx, guildID); err != nil {
		return fmt.Errorf("delete guild: %w", err)
	}
	return nil
}

func translateNotFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierrors.New(apierrors.NotFound, what+" not found")
	}
	return fmt.Errorf("get %s: %w", what, err)
}
