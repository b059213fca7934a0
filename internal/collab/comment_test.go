package collab

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

type fakeCommentStore struct {
	mu       sync.Mutex
	comments map[string]store.Comment // keyed by table+"/"+containerPK+"/"+commentID
}

func newFakeCommentStore() *fakeCommentStore {
	return &fakeCommentStore{comments: make(map[string]store.Comment)}
}

func commentKey(table, containerPK, commentID string) string { return table + "/" + containerPK + "/" + commentID }

func (f *fakeCommentStore) Create(_ context.Context, table, containerPK string, cm store.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cm.Version = 1
	f.comments[commentKey(table, containerPK, cm.CommentID)] = cm
	return nil
}

func (f *fakeCommentStore) Get(_ context.Context, table, containerPK, commentID string) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cm, ok := f.comments[commentKey(table, containerPK, commentID)]
	if !ok {
		return store.Comment{}, store.ErrNotFound
	}
	return cm, nil
}

func (f *fakeCommentStore) Update(_ context.Context, table, containerPK, commentID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := commentKey(table, containerPK, commentID)
	cm, ok := f.comments[key]
	if !ok {
		return store.ErrNotFound
	}
	if cm.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	_, _, values, err := buildUpdate()
	if err != nil {
		return err
	}
	if v, ok := values[":b"].(string); ok {
		cm.Body = v
	}
	cm.Version++
	f.comments[key] = cm
	return nil
}

func (f *fakeCommentStore) ListByContainer(_ context.Context, table, containerPK string, _ store.Page) ([]store.Comment, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Comment
	prefix := table + "/" + containerPK + "/"
	for k, cm := range f.comments {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out = append(out, cm)
		}
	}
	return out, "", nil
}

// permissive allows every action; denyModerate denies only CanModerate, to test the author-vs-moderator split.
type fakePermChecker struct {
	denyPost     bool
	denyModerate bool
}

func (p fakePermChecker) CanPost(context.Context, string, string) error {
	if p.denyPost {
		return apierrors.New(apierrors.PermissionDenied, "cannot post here")
	}
	return nil
}

func (p fakePermChecker) CanModerate(context.Context, string, string) error {
	if p.denyModerate {
		return apierrors.New(apierrors.PermissionDenied, "cannot moderate here")
	}
	return nil
}

// recordingEmitter captures every emitted event, in the same shape as internal/quest's test helper of the same name.
type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestCommentService(perm PermissionChecker) (*CommentService, *fakeCommentStore, *recordingEmitter) {
	comments := newFakeCommentStore()
	emitter := &recordingEmitter{}
	svc := NewCommentService(nil, "goals", store.GoalPK, perm, emitter)
	svc.comments = comments
	return svc, comments, emitter
}

func TestCreateCommentRequiresBody(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestCommentService(fakePermChecker{})

	_, err := svc.Create(context.Background(), "user-1", "goal-1", "", "")
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.ValidationFailed {
		t.Fatalf("Create() empty body error = %v, want validation.failed", err)
	}
}

func TestCreateCommentDeniedByPermission(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestCommentService(fakePermChecker{denyPost: true})

	_, err := svc.Create(context.Background(), "user-1", "goal-1", "", "hello")
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.PermissionDenied {
		t.Fatalf("Create() denied error = %v, want permission.denied", err)
	}
}

func TestUpdateCommentOnlyByAuthor(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestCommentService(fakePermChecker{})
	ctx := context.Background()

	cm, err := svc.Create(ctx, "author-1", "goal-1", "", "original")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = svc.Update(ctx, "someone-else", "goal-1", cm.CommentID, "edited")
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.PermissionDenied {
		t.Fatalf("Update() by non-author error = %v, want permission.denied", err)
	}

	updated, err := svc.Update(ctx, "author-1", "goal-1", cm.CommentID, "edited")
	if err != nil {
		t.Fatalf("Update() by author error = %v", err)
	}
	if updated.Body != "edited" {
		t.Fatalf("Update() body = %q, want %q", updated.Body, "edited")
	}
}

func TestDeleteCommentByModeratorWhenNotAuthor(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestCommentService(fakePermChecker{})
	ctx := context.Background()

	cm, err := svc.Create(ctx, "author-1", "goal-1", "", "original")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := svc.Delete(ctx, "moderator-1", "goal-1", cm.CommentID); err != nil {
		t.Fatalf("Delete() by moderator error = %v", err)
	}

	after, err := svc.comments.Get(ctx, svc.table, svc.containerPK("goal-1"), cm.CommentID)
	if err != nil {
		t.Fatalf("comment missing after moderator delete, err = %v", err)
	}
	if !after.Deleted || after.Body != "" {
		t.Fatalf("comment after delete = %+v, want tombstoned", after)
	}

	// A second delete of an already-tombstoned comment is a no-op, not an error.
	if err := svc.Delete(ctx, "moderator-1", "goal-1", cm.CommentID); err != nil {
		t.Fatalf("Delete() on already-deleted comment error = %v, want nil", err)
	}
}

func TestDeleteCommentDeniedForNonAuthorNonModerator(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestCommentService(fakePermChecker{denyModerate: true})
	ctx := context.Background()

	cm, err := svc.Create(ctx, "author-1", "goal-1", "", "original")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	err = svc.Delete(ctx, "random-user", "goal-1", cm.CommentID)
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.PermissionDenied {
		t.Fatalf("Delete() by non-author non-moderator error = %v, want permission.denied", err)
	}
}

func TestCreateCommentEmitsCommentPostedEvent(t *testing.T) {
	t.Parallel()
	svc, _, emitter := newTestCommentService(fakePermChecker{})

	cm, err := svc.Create(context.Background(), "author-1", "goal-1", "", "hello")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	emitter.mu.Lock()
	defer emitter.mu.Unlock()
	if len(emitter.events) != 1 {
		t.Fatalf("events = %d, want 1", len(emitter.events))
	}
	e := emitter.events[0]
	if e.Kind != "comment.posted" || e.UserID != "author-1" || e.ContainerID != "goal-1" || e.CommentID != cm.CommentID {
		t.Fatalf("event = %+v, unexpected", e)
	}
}
