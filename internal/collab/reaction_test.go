package collab

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

type fakeReactionStore struct {
	mu        sync.Mutex
	reactions map[string]store.Reaction // keyed by table+"/"+containerPK+"/"+targetID+"/"+userID+"/"+kind
}

func newFakeReactionStore() *fakeReactionStore {
	return &fakeReactionStore{reactions: make(map[string]store.Reaction)}
}

func reactionKey(table, containerPK, targetID, userID, kind string) string {
	return table + "/" + containerPK + "/" + targetID + "/" + userID + "/" + kind
}

func (f *fakeReactionStore) Add(_ context.Context, table, containerPK string, re store.Reaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := reactionKey(table, containerPK, re.TargetID, re.UserID, re.Kind)
	if _, ok := f.reactions[key]; ok {
		return store.ErrVersionConflict
	}
	f.reactions[key] = re
	return nil
}

func (f *fakeReactionStore) Remove(_ context.Context, table, containerPK, targetID, userID, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reactions, reactionKey(table, containerPK, targetID, userID, kind))
	return nil
}

func (f *fakeReactionStore) ListByTarget(_ context.Context, table, containerPK, targetID string, _ store.Page) ([]store.Reaction, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Reaction
	for _, re := range f.reactions {
		if re.TargetID == targetID {
			out = append(out, re)
		}
	}
	return out, "", nil
}

func newTestReactionService(perm PermissionChecker) (*ReactionService, *fakeReactionStore) {
	reactions := newFakeReactionStore()
	svc := NewReactionService(nil, "goals", store.GoalPK, perm)
	svc.reactions = reactions
	return svc, reactions
}

func TestAddReactionRequiresKind(t *testing.T) {
	t.Parallel()
	svc, _ := newTestReactionService(fakePermChecker{})

	err := svc.Add(context.Background(), "user-1", "goal-1", "comment-1", "")
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.ValidationFailed {
		t.Fatalf("Add() empty kind error = %v, want validation.failed", err)
	}
}

func TestAddReactionTwiceIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, reactions := newTestReactionService(fakePermChecker{})
	ctx := context.Background()

	if err := svc.Add(ctx, "user-1", "goal-1", "comment-1", "thumbsup"); err != nil {
		t.Fatalf("Add() first call error = %v", err)
	}
	if err := svc.Add(ctx, "user-1", "goal-1", "comment-1", "thumbsup"); err != nil {
		t.Fatalf("Add() duplicate call error = %v, want nil", err)
	}
	if len(reactions.reactions) != 1 {
		t.Fatalf("reactions stored = %d, want 1", len(reactions.reactions))
	}
}

func TestRemoveReaction(t *testing.T) {
	t.Parallel()
	svc, reactions := newTestReactionService(fakePermChecker{})
	ctx := context.Background()

	if err := svc.Add(ctx, "user-1", "goal-1", "comment-1", "thumbsup"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := svc.Remove(ctx, "user-1", "goal-1", "comment-1", "thumbsup"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(reactions.reactions) != 0 {
		t.Fatalf("reactions stored after remove = %d, want 0", len(reactions.reactions))
	}
}
