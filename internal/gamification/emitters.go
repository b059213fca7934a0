package gamification

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goalguild/core-service/internal/collab"
	"github.com/goalguild/core-service/internal/goal"
	"github.com/goalguild/core-service/internal/quest"
)

// QuestEventAdapter implements quest.EventEmitter, translating quest.completed and milestone.reached into Events
// keyed for idempotent replay.
type QuestEventAdapter struct {
	svc *Service
}

func NewQuestEventAdapter(svc *Service) *QuestEventAdapter { return &QuestEventAdapter{svc: svc} }

func (a *QuestEventAdapter) Emit(ctx context.Context, e quest.Event) {
	switch e.Kind {
	case "quest.completed":
		rewardXP := e.RewardXP
		a.svc.Apply(ctx, Event{
			Kind:       e.Kind,
			UserID:     e.UserID,
			EventID:    "quest.completed:" + e.QuestID,
			XPOverride: &rewardXP,
		})
	case "milestone.reached":
		eventID := fmt.Sprintf("milestone.reached:%s:%s", e.QuestID, strconv.FormatFloat(e.Threshold, 'f', 2, 64))
		a.svc.Apply(ctx, Event{Kind: e.Kind, UserID: e.UserID, EventID: eventID})
	}
}

// GoalEventAdapter implements goal.EventEmitter, translating task.completed and goal.completed.
type GoalEventAdapter struct {
	svc *Service
}

func NewGoalEventAdapter(svc *Service) *GoalEventAdapter { return &GoalEventAdapter{svc: svc} }

func (a *GoalEventAdapter) Emit(ctx context.Context, e goal.Event) {
	var eventID string
	switch e.Kind {
	case "task.completed":
		eventID = fmt.Sprintf("task.completed:%s:%s", e.GoalID, e.TaskID)
	case "goal.completed":
		eventID = "goal.completed:" + e.GoalID
	default:
		return
	}
	a.svc.Apply(ctx, Event{Kind: e.Kind, UserID: e.UserID, EventID: eventID})
}

// CommentEventAdapter implements collab.EventEmitter, translating comment.posted.
type CommentEventAdapter struct {
	svc *Service
}

func NewCommentEventAdapter(svc *Service) *CommentEventAdapter { return &CommentEventAdapter{svc: svc} }

func (a *CommentEventAdapter) Emit(ctx context.Context, e collab.Event) {
	if e.Kind != "comment.posted" {
		return
	}
	a.svc.Apply(ctx, Event{Kind: e.Kind, UserID: e.UserID, EventID: "comment.posted:" + e.CommentID})
}
