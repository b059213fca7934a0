package goal

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goalguild/core-service/internal/store"
)

// fakeGoalStore and fakeTaskStore implement goalStore/taskStore in-memory, in the same shape as the fakeUserStore
// in internal/auth's service_test.go.
type fakeGoalStore struct {
	mu    sync.Mutex
	goals map[string]store.Goal
}

func newFakeGoalStore() *fakeGoalStore { return &fakeGoalStore{goals: make(map[string]store.Goal)} }

func (f *fakeGoalStore) Create(_ context.Context, g store.Goal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g.Version = 1
	f.goals[g.GoalID] = g
	return nil
}

func (f *fakeGoalStore) Get(_ context.Context, goalID string) (store.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[goalID]
	if !ok {
		return store.Goal{}, store.ErrNotFound
	}
	return g, nil
}

func (f *fakeGoalStore) Update(_ context.Context, goalID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.goals[goalID]
	if !ok {
		return store.ErrNotFound
	}
	if g.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	_, _, values, err := buildUpdate()
	if err != nil {
		return err
	}
	if v, ok := values[":t"].(string); ok {
		g.Title = v
	}
	if v, ok := values[":d"].(string); ok {
		g.Description = v
	}
	if v, ok := values[":due"].(time.Time); ok {
		g.DueAt = v
	}
	if v, ok := values[":tc"].(int); ok {
		g.TaskCount = v
	}
	if v, ok := values[":dc"].(int); ok {
		g.DoneCount = v
	}
	if v, ok := values[":p"].(float64); ok {
		g.Progress = v
	}
	if v, ok := values[":st"].(store.GoalStatus); ok {
		g.Status = v
	}
	g.Version++
	f.goals[goalID] = g
	return nil
}

func (f *fakeGoalStore) Delete(_ context.Context, goalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.goals, goalID)
	return nil
}

func (f *fakeGoalStore) ListByOwner(_ context.Context, ownerID string, _ store.Page) ([]store.Goal, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []store.Goal
	for _, g := range f.goals {
		if g.OwnerID == ownerID {
			result = append(result, g)
		}
	}
	return result, "", nil
}

type fakeTaskStore struct {
	mu    sync.Mutex
	tasks map[string]store.Task // keyed by goalID+"/"+taskID
}

func newFakeTaskStore() *fakeTaskStore { return &fakeTaskStore{tasks: make(map[string]store.Task)} }

func taskKey(goalID, taskID string) string { return goalID + "/" + taskID }

func (f *fakeTaskStore) Create(_ context.Context, t store.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.Version = 1
	f.tasks[taskKey(t.GoalID, t.TaskID)] = t
	return nil
}

func (f *fakeTaskStore) Get(_ context.Context, goalID, taskID string) (store.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskKey(goalID, taskID)]
	if !ok {
		return store.Task{}, store.ErrNotFound
	}
	return t, nil
}

func (f *fakeTaskStore) Update(_ context.Context, goalID, taskID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := taskKey(goalID, taskID)
	t, ok := f.tasks[key]
	if !ok {
		return store.ErrNotFound
	}
	if t.Version != expectedVersion {
		return store.ErrVersionConflict
	}
	_, _, values, err := buildUpdate()
	if err != nil {
		return err
	}
	if v, ok := values[":t"].(string); ok {
		t.Title = v
	}
	if v, ok := values[":done"].(bool); ok {
		t.Done = v
	}
	if v, ok := values[":at"].(time.Time); ok {
		t.DoneAt = v
	}
	t.Version++
	f.tasks[key] = t
	return nil
}

func (f *fakeTaskStore) Delete(_ context.Context, goalID, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, taskKey(goalID, taskID))
	return nil
}

func (f *fakeTaskStore) List(_ context.Context, goalID string, _ store.Page) ([]store.Task, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []store.Task
	for _, t := range f.tasks {
		if t.GoalID == goalID {
			result = append(result, t)
		}
	}
	return result, "", nil
}

func newTestService() (*Service, *fakeGoalStore, *fakeTaskStore) {
	goals := newFakeGoalStore()
	tasks := newFakeTaskStore()
	return &Service{goals: goals, tasks: tasks, events: noopEmitter{}}, goals, tasks
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

func newTestServiceWithEmitter() (*Service, *fakeGoalStore, *recordingEmitter) {
	svc, goals, _ := newTestService()
	emitter := &recordingEmitter{}
	svc.events = emitter
	return svc, goals, emitter
}

func TestCreateAndListGoals(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := t.Context()

	g, err := svc.CreateGoal(ctx, "user-1", CreateGoalRequest{Title: "Run a marathon"})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	if g.Status != store.GoalActive {
		t.Errorf("Status = %v, want active", g.Status)
	}

	goals, _, err := svc.ListGoals(ctx, "user-1", store.Page{})
	if err != nil {
		t.Fatalf("ListGoals() error = %v", err)
	}
	if len(goals) != 1 || goals[0].GoalID != g.GoalID {
		t.Errorf("ListGoals() = %+v, want [%v]", goals, g.GoalID)
	}
}

func TestCreateGoalRequiresTitle(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	_, err := svc.CreateGoal(t.Context(), "user-1", CreateGoalRequest{})
	if err == nil {
		t.Fatal("CreateGoal() with empty title should fail")
	}
}

func TestCompleteTaskIsIdempotent(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := t.Context()

	g, err := svc.CreateGoal(ctx, "user-1", CreateGoalRequest{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	task, err := svc.CreateTask(ctx, g.GoalID, "user-1", CreateTaskRequest{Title: "Read the tour"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	updated, err := svc.CompleteTask(ctx, g.GoalID, task.TaskID, "user-1")
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if updated.DoneCount != 1 {
		t.Errorf("DoneCount = %d, want 1", updated.DoneCount)
	}
	if updated.Progress <= 0 {
		t.Errorf("Progress = %v, want > 0 after completing the only task", updated.Progress)
	}

	again, err := svc.CompleteTask(ctx, g.GoalID, task.TaskID, "user-1")
	if err != nil {
		t.Fatalf("second CompleteTask() error = %v, want success (idempotent)", err)
	}
	if again.DoneCount != 1 {
		t.Errorf("DoneCount after repeat completion = %d, want unchanged 1", again.DoneCount)
	}
	if again.Progress != updated.Progress {
		t.Errorf("Progress changed on repeat completion: %v -> %v, want unchanged", updated.Progress, again.Progress)
	}
}

func TestGoalCompletesOncePastDueWithAllTasksDone(t *testing.T) {
	t.Parallel()
	svc, goals, _ := newTestService()
	ctx := t.Context()

	g, err := svc.CreateGoal(ctx, "user-1", CreateGoalRequest{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	task, err := svc.CreateTask(ctx, g.GoalID, "user-1", CreateTaskRequest{Title: "Read the tour"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	// Backdate startedAt/dueAt so the time component of the progress formula is fully elapsed too.
	goals.mu.Lock()
	stored := goals.goals[g.GoalID]
	stored.StartedAt = time.Now().Add(-48 * time.Hour)
	stored.DueAt = time.Now().Add(-24 * time.Hour)
	goals.goals[g.GoalID] = stored
	goals.mu.Unlock()

	updated, err := svc.CompleteTask(ctx, g.GoalID, task.TaskID, "user-1")
	if err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}
	if updated.Progress < 0.999 {
		t.Errorf("Progress = %v, want ~1.0 once both task and time components are complete", updated.Progress)
	}
	if updated.Status != store.GoalCompleted {
		t.Errorf("Status = %v, want completed once progress reaches 1.0", updated.Status)
	}
}

func TestCompleteTaskRejectsNonOwner(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := t.Context()

	g, err := svc.CreateGoal(ctx, "user-1", CreateGoalRequest{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	task, err := svc.CreateTask(ctx, g.GoalID, "user-1", CreateTaskRequest{Title: "Read the tour"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	_, err = svc.CompleteTask(ctx, g.GoalID, task.TaskID, "user-2")
	if err == nil {
		t.Fatal("CompleteTask() by a non-owner should fail")
	}
}

func TestDeleteGoalRejectsNonOwner(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	ctx := t.Context()

	g, err := svc.CreateGoal(ctx, "user-1", CreateGoalRequest{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}

	err = svc.DeleteGoal(ctx, g.GoalID, "user-2")
	if err == nil {
		t.Fatal("DeleteGoal() by a non-owner should fail")
	}
}

func TestDeleteGoalNotFound(t *testing.T) {
	t.Parallel()
	svc, _, _ := newTestService()
	err := svc.DeleteGoal(t.Context(), "missing-goal", "user-1")
	if err == nil {
		t.Fatal("DeleteGoal() of a missing goal should fail")
	}
}

func TestCompleteTaskEmitsTaskAndGoalCompletedEvents(t *testing.T) {
	t.Parallel()
	svc, goals, emitter := newTestServiceWithEmitter()
	ctx := t.Context()

	g, err := svc.CreateGoal(ctx, "user-1", CreateGoalRequest{Title: "Learn Go"})
	if err != nil {
		t.Fatalf("CreateGoal() error = %v", err)
	}
	task, err := svc.CreateTask(ctx, g.GoalID, "user-1", CreateTaskRequest{Title: "Read the tour"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}

	// Backdate startedAt/dueAt so the time component of the progress formula is fully elapsed too, matching
	// TestGoalCompletesOncePastDueWithAllTasksDone's setup.
	goals.mu.Lock()
	stored := goals.goals[g.GoalID]
	stored.StartedAt = time.Now().Add(-48 * time.Hour)
	stored.DueAt = time.Now().Add(-24 * time.Hour)
	goals.goals[g.GoalID] = stored
	goals.mu.Unlock()

	if _, err := svc.CompleteTask(ctx, g.GoalID, task.TaskID, "user-1"); err != nil {
		t.Fatalf("CompleteTask() error = %v", err)
	}

	emitter.mu.Lock()
	events := append([]Event(nil), emitter.events...)
	emitter.mu.Unlock()

	var sawTaskCompleted, sawGoalCompleted bool
	for _, e := range events {
		switch e.Kind {
		case "task.completed":
			sawTaskCompleted = true
			if e.GoalID != g.GoalID || e.TaskID != task.TaskID {
				t.Errorf("task.completed event = %+v, want GoalID/TaskID to match", e)
			}
		case "goal.completed":
			sawGoalCompleted = true
			if e.GoalID != g.GoalID {
				t.Errorf("goal.completed event = %+v, want GoalID %q", e, g.GoalID)
			}
		}
	}
	if !sawTaskCompleted {
		t.Error("expected a task.completed event")
	}
	if !sawGoalCompleted {
		t.Error("expected a goal.completed event since completing the only task finishes the goal")
	}

	// Completing the same task again must not re-fire either event (idempotent per spec.md's task-completion rule).
	if _, err := svc.CompleteTask(ctx, g.GoalID, task.TaskID, "user-1"); err != nil {
		t.Fatalf("second CompleteTask() error = %v", err)
	}
	emitter.mu.Lock()
	count := len(emitter.events)
	emitter.mu.Unlock()
	if count != len(events) {
		t.Errorf("event count after repeat completion = %d, want unchanged %d", count, len(events))
	}
}
