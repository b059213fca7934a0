package guild

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/media"
	"github.com/goalguild/core-service/internal/store"
)

const (
	avatarMaxBytes = 4 << 20 // 4 MiB
	avatarURLTTL   = 5 * time.Minute
)

var avatarMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

var avatarConstraints = media.UploadConstraints{MaxBytes: avatarMaxBytes, AllowedMimeTypes: avatarMimeTypes}

// s3Uploads is the slice of media.S3Uploads the avatar service needs.
type s3Uploads interface {
	Presign(ctx context.Context, key, contentType string, size int64, constraints media.UploadConstraints) (media.PresignedUpload, error)
	Confirm(ctx context.Context, key string, constraints media.UploadConstraints) error
	PublicURL(key string) string
}

// AvatarService issues presigned S3 uploads for guild avatars and confirms them once the client reports success.
// Only the owner or a moderator may change a guild's avatar.
type AvatarService struct {
	guilds  guildStore
	members memberStore
	uploads s3Uploads
}

func NewAvatarService(guilds *store.GuildRepository, members *store.MemberRepository, uploads *media.S3Uploads) *AvatarService {
	return &AvatarService{guilds: guilds, members: members, uploads: uploads}
}

// RequestUpload returns a presigned PUT URL for a new avatar, constrained to avatarMaxBytes and avatarMimeTypes.
func (s *AvatarService) RequestUpload(ctx context.Context, callerID, guildID, contentType string, size int64) (media.PresignedUpload, error) {
	if err := s.requireModerator(ctx, callerID, guildID); err != nil {
		return media.PresignedUpload{}, err
	}

	key := avatarKey(guildID)
	upload, err := s.uploads.Presign(ctx, key, contentType, size, avatarConstraints)
	if err != nil {
		return media.PresignedUpload{}, translateUploadErr(err)
	}
	return upload, nil
}

// ConfirmUpload verifies the avatar was actually written to S3 and records its public URL on the guild row. Clients
// must call this after a successful PUT; the presigned URL alone proves nothing about what, if anything, landed
// in the bucket.
func (s *AvatarService) ConfirmUpload(ctx context.Context, callerID, guildID string) (store.Guild, error) {
	if err := s.requireModerator(ctx, callerID, guildID); err != nil {
		return store.Guild{}, err
	}

	key := avatarKey(guildID)
	if err := s.uploads.Confirm(ctx, key, avatarConstraints); err != nil {
		return store.Guild{}, translateUploadErr(err)
	}

	var g store.Guild
	err := store.WithRetry(ctx, func() error {
		var err error
		g, err = s.guilds.Get(ctx, guildID)
		if err != nil {
			return translateNotFound(err, "guild")
		}
		return s.guilds.Update(ctx, guildID, g.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET avatarKey = :a, updatedAt = :u", nil, map[string]any{
				":a": key,
				":u": time.Now().UTC(),
			}, nil
		})
	})
	if err != nil {
		return store.Guild{}, fmt.Errorf("set guild avatar: %w", err)
	}

	g.AvatarKey = key
	return g, nil
}

func (s *AvatarService) requireModerator(ctx context.Context, callerID, guildID string) error {
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

func avatarKey(guildID string) string {
	return "guild-avatars/" + guildID
}

func translateUploadErr(err error) error {
	switch err {
	case media.ErrFileTooLarge, media.ErrUnsupportedContentType:
		return apierrors.New(apierrors.ValidationFailed, err.Error())
	case media.ErrObjectNotUploaded:
		return apierrors.New(apierrors.ConflictState, err.Error())
	default:
		return fmt.Errorf("upload avatar: %w", err)
	}
}
