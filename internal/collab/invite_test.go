package collab

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

type fakeInviteStore struct {
	mu      sync.Mutex
	invites map[string]store.Invite // keyed by goalID+"/"+inviteeID
}

func newFakeInviteStore() *fakeInviteStore { return &fakeInviteStore{invites: make(map[string]store.Invite)} }

func inviteKey(goalID, inviteeID string) string { return goalID + "/" + inviteeID }

func (f *fakeInviteStore) Create(_ context.Context, inv store.Invite) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv.Version = 1
	f.invites[inviteKey(inv.GoalID, inv.InviteeID)] = inv
	return nil
}

func (f *fakeInviteStore) Get(_ context.Context, goalID, inviteeID string) (store.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invites[inviteKey(goalID, inviteeID)]
	if !ok {
		return store.Invite{}, store.ErrNotFound
	}
	return inv, nil
}

func (f *fakeInviteStore) SetStatus(_ context.Context, inv store.Invite, status store.InviteStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := inviteKey(inv.GoalID, inv.InviteeID)
	existing, ok := f.invites[key]
	if !ok {
		return store.ErrNotFound
	}
	if existing.Version != inv.Version {
		return store.ErrVersionConflict
	}
	existing.Status = status
	existing.Version++
	f.invites[key] = existing
	return nil
}

func (f *fakeInviteStore) ListByGoal(_ context.Context, goalID string, _ store.Page) ([]store.Invite, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Invite
	for _, inv := range f.invites {
		if inv.GoalID == goalID {
			out = append(out, inv)
		}
	}
	return out, "", nil
}

func (f *fakeInviteStore) ListByInvitee(_ context.Context, inviteeID string, _ store.Page) ([]store.Invite, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Invite
	for _, inv := range f.invites {
		if inv.InviteeID == inviteeID {
			out = append(out, inv)
		}
	}
	return out, "", nil
}

type fakeGoalStore struct {
	goals map[string]store.Goal
}

func (f *fakeGoalStore) Get(_ context.Context, goalID string) (store.Goal, error) {
	g, ok := f.goals[goalID]
	if !ok {
		return store.Goal{}, store.ErrNotFound
	}
	return g, nil
}

func newTestInviteService(t *testing.T) (*InviteService, *fakeInviteStore, *fakeGoalStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	invites := newFakeInviteStore()
	goals := &fakeGoalStore{goals: map[string]store.Goal{
		"goal-1": {GoalID: "goal-1", OwnerID: "owner-1"},
	}}
	return &InviteService{invites: invites, goals: goals, rdb: rdb}, invites, goals
}

func TestCreateInviteRequiresOwnership(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestInviteService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "not-the-owner", CreateRequest{GoalID: "goal-1", InviteeID: "friend-1"})
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.PermissionDenied {
		t.Fatalf("Create() from non-owner error = %v, want permission.denied", err)
	}
}

func TestCreateInviteRejectsSelfInvite(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestInviteService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "owner-1", CreateRequest{GoalID: "goal-1", InviteeID: "owner-1"})
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.ValidationFailed {
		t.Fatalf("Create() self-invite error = %v, want validation.failed", err)
	}
}

func TestInviteAcceptDeclineLifecycle(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestInviteService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, "owner-1", CreateRequest{GoalID: "goal-1", InviteeID: "friend-1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inv.Status != store.InvitePending {
		t.Fatalf("Create() status = %v, want pending", inv.Status)
	}

	accepted, err := svc.Accept(ctx, "friend-1", "goal-1")
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if accepted.Status != store.InviteAccepted {
		t.Fatalf("Accept() status = %v, want accepted", accepted.Status)
	}

	if _, err := svc.Accept(ctx, "friend-1", "goal-1"); err == nil {
		t.Fatal("Accept() on already-accepted invite: want error, got nil")
	}
}

func TestRespondRejectsWrongInvitee(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestInviteService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "owner-1", CreateRequest{GoalID: "goal-1", InviteeID: "friend-1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := svc.Decline(ctx, "someone-else", "goal-1")
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.NotFound {
		t.Fatalf("Decline() by wrong invitee error = %v, want not_found", err)
	}
}

func TestInviteRateLimitThrottlesAfterCap(t *testing.T) {
	t.Parallel()
	svc, _, goals := newTestInviteService(t)
	ctx := context.Background()

	for i := 0; i < inviteRateLimit; i++ {
		goalID := "goal-rl"
		goals.goals[goalID] = store.Goal{GoalID: goalID, OwnerID: "owner-1"}
		inviteeID := "invitee"
		// Reuse the same goal/invitee pair's count would collide at the store layer on a real table (Create is
		// PutIfNotExists per mirrored pair), but the fake store here overwrites by key, so only the rate limiter's
		// own behavior is under test.
		_, err := svc.Create(ctx, "owner-1", CreateRequest{GoalID: goalID, InviteeID: inviteeID})
		if err != nil {
			t.Fatalf("Create() invite %d error = %v", i, err)
		}
	}

	_, err := svc.Create(ctx, "owner-1", CreateRequest{GoalID: "goal-rl", InviteeID: "one-too-many"})
	var apiErr *apierrors.Error
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.Throttled {
		t.Fatalf("Create() past rate cap error = %v, want throttled", err)
	}
}
