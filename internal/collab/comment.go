package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// PermissionChecker authorizes comment/reaction actions against a container (a guild for C6, a goal for C7).
// internal/guild and internal/collab each supply their own implementation so CommentService and ReactionService
// stay container-agnostic.
type PermissionChecker interface {
	// CanPost returns nil if userID may post a comment or reaction under containerID.
	CanPost(ctx context.Context, userID, containerID string) error
	// CanModerate returns nil if userID may delete or hide another member's comment under containerID.
	CanModerate(ctx context.Context, userID, containerID string) error
}

// commentStore is the slice of store.CommentRepository the service needs.
type commentStore interface {
	Create(ctx context.Context, table, containerPK string, cm store.Comment) error
	Get(ctx context.Context, table, containerPK, commentID string) (store.Comment, error)
	Update(ctx context.Context, table, containerPK, commentID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
	ListByContainer(ctx context.Context, table, containerPK string, page store.Page) ([]store.Comment, string, error)
}

// EventEmitter lets the gamification service react to comment.posted without internal/collab importing it back;
// CommentService calls it best-effort and never fails a post because an event couldn't be emitted.
type EventEmitter interface {
	Emit(ctx context.Context, event Event)
}

// Event is the comment-related gamification trigger internal/gamification reacts to.
type Event struct {
	Kind        string // "comment.posted"
	UserID      string
	ContainerID string
	CommentID   string
}

// noopEmitter is used when the caller has no gamification wiring yet (e.g. in tests).
type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, Event) {}

// CommentService implements comment CRUD shared by the Guild Service (C6) and Collaboration Service (C7). table
// and containerPK select which Core Store partition a given container maps onto (GuildTable/GuildPK for C6,
// CoreTable/GoalPK for C7).
type CommentService struct {
	comments    commentStore
	table       string
	containerPK func(string) string
	perm        PermissionChecker
	events      EventEmitter
}

func NewCommentService(comments *store.CommentRepository, table string, containerPK func(string) string, perm PermissionChecker, events EventEmitter) *CommentService {
	if events == nil {
		events = noopEmitter{}
	}
	return &CommentService{comments: comments, table: table, containerPK: containerPK, perm: perm, events: events}
}

// Create posts a new top-level comment or reply. parentID is empty for a top-level comment.
func (s *CommentService) Create(ctx context.Context, userID, containerID, parentID, body string) (store.Comment, error) {
	if body == "" {
		return store.Comment{}, apierrors.New(apierrors.ValidationFailed, "body is required")
	}
	if err := s.perm.CanPost(ctx, userID, containerID); err != nil {
		return store.Comment{}, err
	}

	now := time.Now().UTC()
	cm := store.Comment{
		ContainerID: containerID,
		CommentID:   uuid.NewString(),
		ParentID:    parentID,
		AuthorID:    userID,
		Body:        body,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.comments.Create(ctx, s.table, s.containerPK(containerID), cm); err != nil {
		return store.Comment{}, fmt.Errorf("create comment: %w", err)
	}
	s.events.Emit(ctx, Event{Kind: "comment.posted", UserID: userID, ContainerID: containerID, CommentID: cm.CommentID})
	return cm, nil
}

// Update edits the body of a comment the caller authored. Only the author may edit; moderators may only delete.
func (s *CommentService) Update(ctx context.Context, userID, containerID, commentID, body string) (store.Comment, error) {
	if body == "" {
		return store.Comment{}, apierrors.New(apierrors.ValidationFailed, "body is required")
	}
	containerPK := s.containerPK(containerID)
	cm, err := s.comments.Get(ctx, s.table, containerPK, commentID)
	if err != nil {
		return store.Comment{}, translateNotFound(err, "comment")
	}
	if cm.AuthorID != userID {
		return store.Comment{}, apierrors.New(apierrors.PermissionDenied, "only the author can edit this comment")
	}
	if cm.Deleted {
		return store.Comment{}, apierrors.New(apierrors.GoneTerminal, "comment was deleted")
	}

	err = s.comments.Update(ctx, s.table, containerPK, commentID, cm.Version, func() (string, map[string]string, map[string]any, error) {
		return "SET body = :b, updatedAt = :u", nil, map[string]any{
			":b": body,
			":u": time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return store.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	cm.Body = body
	return cm, nil
}

// Delete tombstones a comment: its body is cleared and Deleted is set, but the row itself stays so replies further
// down the thread keep a valid parentId. The author may delete their own comment; a moderator may delete anyone's.
func (s *CommentService) Delete(ctx context.Context, userID, containerID, commentID string) error {
	containerPK := s.containerPK(containerID)
	cm, err := s.comments.Get(ctx, s.table, containerPK, commentID)
	if err != nil {
		return translateNotFound(err, "comment")
	}
	if cm.Deleted {
		return nil
	}
	if cm.AuthorID != userID {
		if err := s.perm.CanModerate(ctx, userID, containerID); err != nil {
			return err
		}
	}

	err = s.comments.Update(ctx, s.table, containerPK, commentID, cm.Version, func() (string, map[string]string, map[string]any, error) {
		return "SET body = :b, deleted = :del, updatedAt = :u", nil, map[string]any{
			":b":   "",
			":del": true,
			":u":   time.Now().UTC(),
		}, nil
	})
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}

// ListByContainer pages through every comment under a container. Used directly by C7's goal-scoped threads; C6
// additionally exposes ListThread/ListByAuthor via the GSI-backed methods on store.CommentRepository itself.
func (s *CommentService) ListByContainer(ctx context.Context, containerID string, page store.Page) ([]store.Comment, string, error) {
	return s.comments.ListByContainer(ctx, s.table, s.containerPK(containerID), page)
}

func translateNotFound(err error, what string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apierrors.New(apierrors.NotFound, what+" not found")
	}
	return fmt.Errorf("get %s: %w", what, err)
}
