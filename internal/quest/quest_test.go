package quest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

type fakeQuestStore struct {
	mu     sync.Mutex
	quests map[string]store.Quest // keyed by ownerID+"/"+questID
}

func newFakeQuestStore() *fakeQuestStore { return &fakeQuestStore{quests: make(map[string]store.Quest)} }

func questKey(ownerID, questID string) string { return ownerID + "/" + questID }

func (f *fakeQuestStore) Create(_ context.Context, q store.Quest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	q.Version = 1
	f.quests[questKey(q.OwnerID, q.QuestID)] = q
	return nil
}

func (f *fakeQuestStore) Get(_ context.Context, ownerID, questID string) (store.Quest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.quests[questKey(ownerID, questID)]
	if !ok {
		return store.Quest{}, store.ErrNotFound
	}
	return q, nil
}

func (f *fakeQuestStore) Update(_ context.Context, ownerID, questID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := questKey(ownerID, questID)
	q, ok := f.quests[key]
	if !ok {
		return store.ErrNotFound
	}
	if q.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	_, _, values, err := buildUpdate()
	if err != nil {
		return err
	}
	if v, ok := values[":t"].(string); ok {
		q.Title = v
	}
	if v, ok := values[":d"].(string); ok {
		q.Description = v
	}
	if v, ok := values[":rx"].(int); ok {
		q.RewardXP = v
	}
	if v, ok := values[":due"].(time.Time); ok {
		q.DueAt = v
	}
	if v, ok := values[":st"].(store.QuestStatus); ok {
		q.Status = v
	}
	if v, ok := values[":p"].(float64); ok {
		q.Progress = v
	}
	if v, ok := values[":sa"].(time.Time); ok {
		q.StartedAt = v
	}
	if v, ok := values[":ca"].(time.Time); ok {
		q.CompletedAt = v
	}
	if v, ok := values[":m"].(map[string]bool); ok {
		q.MilestonesHit = v
	}
	q.Version++
	f.quests[key] = q
	return nil
}

func (f *fakeQuestStore) Delete(_ context.Context, ownerID, questID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.quests, questKey(ownerID, questID))
	return nil
}

func (f *fakeQuestStore) List(_ context.Context, ownerID string, _ store.Page) ([]store.Quest, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []store.Quest
	for _, q := range f.quests {
		if q.OwnerID == ownerID {
			result = append(result, q)
		}
	}
	return result, "", nil
}

func (f *fakeQuestStore) ListActiveByOwner(_ context.Context, ownerID string, _ store.Page) ([]store.Quest, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []store.Quest
	for _, q := range f.quests {
		if q.OwnerID == ownerID && q.Status == store.QuestActive {
			result = append(result, q)
		}
	}
	return result, "", nil
}

func (f *fakeQuestStore) ScanAllActive(_ context.Context, visit func([]store.Quest) error) error {
	f.mu.Lock()
	var active []store.Quest
	for _, q := range f.quests {
		if q.Status == store.QuestActive {
			active = append(active, q)
		}
	}
	f.mu.Unlock()
	if len(active) == 0 {
		return nil
	}
	return visit(active)
}

type fakeGoalStore struct {
	mu    sync.Mutex
	goals map[string]store.Goal
}

func newFakeGoalStore() *fakeGoalStore { return &fakeGoalStore{goals: make(map[string]store.Goal)} }

func (f *fakeGoalStore) Get(_ context.Context, goalID string) (store.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[goalID]
	if !ok {
		return store.Goal{}, store.ErrNotFound
	}
	return g, nil
}

func (f *fakeGoalStore) set(g store.Goal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.goals[g.GoalID] = g
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingEmitter) Emit(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func newTestService() (*Service, *fakeQuestStore, *fakeGoalStore, *recordingEmitter) {
	quests := newFakeQuestStore()
	goals := newFakeGoalStore()
	emitter := &recordingEmitter{}
	return &Service{quests: quests, goals: goals, events: emitter}, quests, goals, emitter
}

func TestCreateRequiresTitle(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()
	_, err := svc.Create(t.Context(), "user-1", CreateRequest{})
	if err == nil {
		t.Fatal("Create() with empty title should fail")
	}
}

func TestCreateRejectsRewardXPOutOfRange(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()
	_, err := svc.Create(t.Context(), "user-1", CreateRequest{Title: "Read a book", RewardXP: 1500})
	if err == nil {
		t.Fatal("Create() with rewardXp > 1000 should fail")
	}
}

func TestCreateSanitizesTitleAndDescription(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()
	q, err := svc.Create(t.Context(), "user-1", CreateRequest{
		Title:       "<b>Read</b> a book",
		Description: "finish <script>alert(1)</script>chapter one",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if q.Title != "Read a book" {
		t.Errorf("Title = %q, want sanitized %q", q.Title, "Read a book")
	}
	if q.Description != "finish chapter one" {
		t.Errorf("Description = %q, want sanitized %q", q.Description, "finish chapter one")
	}
}

func TestQuestLifecycleHappyPath(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()
	ctx := t.Context()

	q, err := svc.Create(ctx, "user-1", CreateRequest{Title: "Read a book", DueAt: time.Now().Add(30 * 24 * time.Hour)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if q.Status != store.QuestDraft {
		t.Fatalf("Status = %v, want draft", q.Status)
	}

	started, err := svc.Start(ctx, "user-1", q.QuestID)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if started.Status != store.QuestActive {
		t.Fatalf("Status = %v, want active", started.Status)
	}

	completed, err := svc.Complete(ctx, "user-1", q.QuestID)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if completed.Status != store.QuestCompleted {
		t.Fatalf("Status = %v, want completed", completed.Status)
	}
}

func TestStartTwiceConflicts(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()
	ctx := t.Context()

	q, err := svc.Create(ctx, "user-1", CreateRequest{Title: "Read a book"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Start(ctx, "user-1", q.QuestID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	_, err = svc.Start(ctx, "user-1", q.QuestID)
	var apiErr *apierrors.Error
	if err == nil {
		t.Fatal("second Start() should fail")
	}
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.ConflictState {
		t.Fatalf("error = %v, want conflict.state", err)
	}
}

func TestTransitionFromTerminalStateRejected(t *testing.T) {
	t.Parallel()
	svc, _, _, _ := newTestService()
	ctx := t.Context()

	q, err := svc.Create(ctx, "user-1", CreateRequest{Title: "Read a book"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Start(ctx, "user-1", q.QuestID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := svc.Cancel(ctx, "user-1", q.QuestID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	_, err = svc.Complete(ctx, "user-1", q.QuestID)
	var apiErr *apierrors.Error
	if err == nil {
		t.Fatal("Complete() on a cancelled quest should fail")
	}
	if !errors.As(err, &apiErr) || apiErr.Kind != apierrors.GoneTerminal {
		t.Fatalf("error = %v, want gone.terminal", err)
	}
}

func TestCheckCompletionCompletesQuestWhenGoalDone(t *testing.T) {
	t.Parallel()
	svc, _, goals, emitter := newTestService()
	ctx := t.Context()

	goals.set(store.Goal{GoalID: "goal-1", Progress: 1.0})

	q, err := svc.Create(ctx, "user-1", CreateRequest{Title: "Finish the marathon plan", GoalID: "goal-1", DueAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Start(ctx, "user-1", q.QuestID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	result, err := svc.CheckCompletion(ctx, "user-1")
	if err != nil {
		t.Fatalf("CheckCompletion() error = %v", err)
	}
	if result.Completed != 1 {
		t.Fatalf("Completed = %d, want 1", result.Completed)
	}

	got, err := svc.Get(ctx, "user-1", q.QuestID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != store.QuestCompleted {
		t.Fatalf("Status = %v, want completed", got.Status)
	}

	// Idempotent: a second sweep makes no further transitions or events.
	before := len(emitter.events)
	result2, err := svc.CheckCompletion(ctx, "user-1")
	if err != nil {
		t.Fatalf("second CheckCompletion() error = %v", err)
	}
	if result2.Completed != 0 || result2.Failed != 0 {
		t.Fatalf("second sweep should make no transitions, got %+v", result2)
	}
	if len(emitter.events) != before {
		t.Fatalf("second sweep emitted %d new events, want 0", len(emitter.events)-before)
	}
}

func TestCheckCompletionFailsQuestPastDeadline(t *testing.T) {
	t.Parallel()
	svc, _, goals, _ := newTestService()
	ctx := t.Context()

	goals.set(store.Goal{GoalID: "goal-1", Progress: 0.4})

	q, err := svc.Create(ctx, "user-1", CreateRequest{Title: "Finish the marathon plan", GoalID: "goal-1", DueAt: time.Now().Add(-time.Hour)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Start(ctx, "user-1", q.QuestID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	result, err := svc.CheckCompletion(ctx, "user-1")
	if err != nil {
		t.Fatalf("CheckCompletion() error = %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", result.Failed)
	}
}

func TestMilestoneCrossingEmitsOncePerThreshold(t *testing.T) {
	t.Parallel()
	svc, _, goals, emitter := newTestService()
	ctx := t.Context()

	goals.set(store.Goal{GoalID: "goal-1", Progress: 0.5})

	q, err := svc.Create(ctx, "user-1", CreateRequest{Title: "Finish the marathon plan", GoalID: "goal-1", DueAt: time.Now().Add(time.Hour)})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Start(ctx, "user-1", q.QuestID); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if _, err := svc.CheckCompletion(ctx, "user-1"); err != nil {
		t.Fatalf("CheckCompletion() error = %v", err)
	}
	milestoneEvents := countMilestoneEvents(emitter.events)
	if milestoneEvents != 2 {
		t.Fatalf("milestone events after crossing 0.5 = %d, want 2 (0.25 and 0.5)", milestoneEvents)
	}

	// Re-running at the same progress should emit nothing new.
	if _, err := svc.CheckCompletion(ctx, "user-1"); err != nil {
		t.Fatalf("second CheckCompletion() error = %v", err)
	}
	if got := countMilestoneEvents(emitter.events); got != milestoneEvents {
		t.Fatalf("milestone events after repeat sweep = %d, want unchanged %d", got, milestoneEvents)
	}
}

func countMilestoneEvents(events []Event) int {
	n := 0
	for _, e := range events {
		if e.Kind == "milestone.reached" {
			n++
		}
	}
	return n
}
