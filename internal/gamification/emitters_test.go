package gamification

import (
	"testing"

	"github.com/goalguild/core-service/internal/collab"
	"github.com/goalguild/core-service/internal/goal"
	"github.com/goalguild/core-service/internal/quest"
	"github.com/goalguild/core-service/internal/store"
)

func TestQuestEventAdapterAppliesQuestCompletedWithRewardXP(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	adapter := NewQuestEventAdapter(newTestService(users))

	adapter.Emit(t.Context(), quest.Event{Kind: "quest.completed", UserID: "user-1", QuestID: "q1", RewardXP: 75})

	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 75 {
		t.Errorf("XP = %d, want 75", u.XP)
	}
	if len(u.Badges) != 1 || u.Badges[0] != "quest-champion" {
		t.Errorf("Badges = %v, want [quest-champion]", u.Badges)
	}

	// Replaying the identical event (e.g. a retried sweep) must not double-grant.
	adapter.Emit(t.Context(), quest.Event{Kind: "quest.completed", UserID: "user-1", QuestID: "q1", RewardXP: 75})
	u, err = users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 75 {
		t.Errorf("XP after replay = %d, want unchanged 75", u.XP)
	}
}

func TestQuestEventAdapterAppliesMilestoneReached(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	adapter := NewQuestEventAdapter(newTestService(users))

	adapter.Emit(t.Context(), quest.Event{Kind: "milestone.reached", UserID: "user-1", QuestID: "q1", Threshold: 0.5})
	adapter.Emit(t.Context(), quest.Event{Kind: "milestone.reached", UserID: "user-1", QuestID: "q1", Threshold: 0.75})

	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 20 {
		t.Errorf("XP = %d, want 20 across two distinct milestone crossings", u.XP)
	}
}

func TestGoalEventAdapterAppliesTaskAndGoalCompleted(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	adapter := NewGoalEventAdapter(newTestService(users))

	adapter.Emit(t.Context(), goal.Event{Kind: "task.completed", UserID: "user-1", GoalID: "g1", TaskID: "t1"})
	adapter.Emit(t.Context(), goal.Event{Kind: "goal.completed", UserID: "user-1", GoalID: "g1"})

	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 30 {
		t.Errorf("XP = %d, want 30 (5 + 25)", u.XP)
	}
}

func TestCommentEventAdapterIgnoresOtherKinds(t *testing.T) {
	t.Parallel()
	users := newFakeUserStore(store.User{UserID: "user-1"})
	adapter := NewCommentEventAdapter(newTestService(users))

	adapter.Emit(t.Context(), collab.Event{Kind: "comment.edited", UserID: "user-1", CommentID: "c1"})
	u, err := users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 0 {
		t.Errorf("XP = %d, want 0 for a non comment.posted event", u.XP)
	}

	adapter.Emit(t.Context(), collab.Event{Kind: "comment.posted", UserID: "user-1", ContainerID: "goal-1", CommentID: "c1"})
	u, err = users.Get(t.Context(), "user-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if u.XP != 1 {
		t.Errorf("XP = %d, want 1", u.XP)
	}
}
