package gamification

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/goalguild/core-service/internal/store"
)

// fakeUserStore implements userStore in-memory, in the same shape as the other services' fake stores.
type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]store.User
}

func newFakeUserStore(users ...store.User) *fakeUserStore {
	f := &fakeUserStore{users: make(map[string]store.User)}
	for _, u := range users {
		u.Version = 1
		f.users[u.UserID] = u
	}
	return f
}

func (f *fakeUserStore) Get(_ context.Context, userID string) (store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUserStore) Update(_ context.Context, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return store.ErrNotFound
	}
	if u.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	_, _, values, err := buildUpdate()
	if err != nil {
		return err
	}
	if v, ok := values[":xp"].(int); ok {
		u.XP = v
	}
	if v, ok := values[":b"].([]string); ok {
		u.Badges = v
	}
	if v, ok := values[":pe"].([]string); ok {
		u.ProcessedEvents = v
	}
	u.Version++
	f.users[userID] = u
	return nil
}

func newTestService(users *fakeUserStore) *Service {
	return &Service{users: users, log: zerolog.Nop()}
}

func TestApplyGrantsXPAndBadge(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	svc := newTestService(users)

	svc.Apply(t.Context(), Event{Kind: "goal.completed", UserID: "user-1", EventID: "goal.completed:g1"})

	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 25 {
		t.Errorf("XP = %d, want 25", u.XP)
	}
	if len(u.Badges) != 1 || u.Badges[0] != "goal-finisher" {
		t.Errorf("Badges = %v, want [goal-finisher]", u.Badges)
	}
	if len(u.ProcessedEvents) != 1 || u.ProcessedEvents[0] != "goal.completed:g1" {
		t.Errorf("ProcessedEvents = %v, want [goal.completed:g1]", u.ProcessedEvents)
	}
}

func TestApplyIsIdempotentPerEventID(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	svc := newTestService(users)

	svc.Apply(t.Context(), Event{Kind: "task.completed", UserID: "user-1", EventID: "task.completed:g1:t1"})
	svc.Apply(t.Context(), Event{Kind: "task.completed", UserID: "user-1", EventID: "task.completed:g1:t1"})

	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 5 {
		t.Errorf("XP = %d, want 5 (second apply should be a no-op)", u.XP)
	}
}

func TestApplyDoesNotGrantDuplicateBadges(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	svc := newTestService(users)

	svc.Apply(t.Context(), Event{Kind: "goal.completed", UserID: "user-1", EventID: "goal.completed:g1"})
	svc.Apply(t.Context(), Event{Kind: "goal.completed", UserID: "user-1", EventID: "goal.completed:g2"})

	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 50 {
		t.Errorf("XP = %d, want 50 across two distinct goal completions", u.XP)
	}
	if len(u.Badges) != 1 {
		t.Errorf("Badges = %v, want a single goal-finisher badge despite two completions", u.Badges)
	}
}

func TestApplyHonorsXPOverride(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	svc := newTestService(users)

	reward := 150
	svc.Apply(t.Context(), Event{Kind: "quest.completed", UserID: "user-1", EventID: "quest.completed:q1", XPOverride: &reward})

	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 150 {
		t.Errorf("XP = %d, want 150 from the quest's own reward, not the rule table default", u.XP)
	}
}

func TestApplyIgnoresUnknownEventKind(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	svc := newTestService(users)

	svc.Apply(t.Context(), Event{Kind: "not.a.real.event", UserID: "user-1", EventID: "x"})

	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 0 || len(u.ProcessedEvents) != 0 {
		t.Errorf("user = %+v, want unchanged for an unknown event kind", u)
	}
}

func TestApplyMissingUserIsSwallowed(t *testing.T) {
	t.Parallel()
	svc := newTestService(newFakeUserStore())
	// Should not panic despite there being no such user row.
	svc.Apply(t.Context(), Event{Kind: "task.completed", UserID: "ghost", EventID: "task.completed:g1:t1"})
}

func TestAppendBoundedEvictsOldestPastCap(t *testing.T) {
	t.Parallel()
	list := []string{"a", "b", "c"}
	out := appendBounded(list, "d", 3)
	want := []string{"b", "c", "d"}
	if len(out) != len(want) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(want))
	}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
}
