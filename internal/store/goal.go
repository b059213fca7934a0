package store

import (
	"context"
	"time"
)

// GoalStatus mirrors the Goal/Task Service's lifecycle states (spec.md §4.4).
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalArchived  GoalStatus = "archived"
)

// Goal is the row at GOAL#<id>/GOAL#<id>, with a GSI1 projection keyed by owner so ListByOwner never scans.
type Goal struct {
	PK          string     `dynamodbav:"PK"`
	SK          string     `dynamodbav:"SK"`
	GSI1PK      string     `dynamodbav:"GSI1PK"`
	GSI1SK      string     `dynamodbav:"GSI1SK"`
	GoalID      string     `dynamodbav:"goalId"`
	OwnerID     string     `dynamodbav:"ownerId"`
	Title       string     `dynamodbav:"title"`
	Description string     `dynamodbav:"description,omitempty"`
	Status      GoalStatus `dynamodbav:"status"`
	TaskCount   int        `dynamodbav:"taskCount"`
	DoneCount   int        `dynamodbav:"doneCount"`
	Progress    float64    `dynamodbav:"progress"`
	StartedAt   time.Time  `dynamodbav:"startedAt"`
	DueAt       time.Time  `dynamodbav:"dueAt,omitempty"`
	CreatedAt   time.Time  `dynamodbav:"createdAt"`
	UpdatedAt   time.Time  `dynamodbav:"updatedAt"`
	Version     int64      `dynamodbav:"version"`
}

// GoalRepository is the typed Core Store surface for the Goal/Task Service (C4).
type GoalRepository struct {
	c *Client
}

func NewGoalRepository(c *Client) *GoalRepository { return &GoalRepository{c: c} }

func (r *GoalRepository) Create(ctx context.Context, g Goal) error {
	g.PK, g.SK = GoalPK(g.GoalID), GoalSK(g.GoalID)
	g.GSI1PK, g.GSI1SK = GoalOwnerGSI1PK(g.OwnerID), GoalOwnerGSI1SK(g.CreatedAt.UTC().Format(time.RFC3339Nano))
	g.Version = 1
	return r.c.PutIfNotExists(ctx, r.c.CoreTable, g)
}

// ListByOwner pages through a user's goals, most recently created first.
func (r *GoalRepository) ListByOwner(ctx context.Context, ownerID string, page Page) ([]Goal, string, error) {
	res, err := r.c.QueryIndex(ctx, r.c.CoreTable, "GSI1", "GSI1PK", "GSI1SK", GoalOwnerGSI1PK(ownerID), "", page, Descending())
	if err != nil {
		return nil, "", err
	}
	goals := make([]Goal, 0, len(res.Items))
	for _, item := range res.Items {
		var g Goal
		if err := unmarshalInto(item, &g); err != nil {
			return nil, "", err
		}
		goals = append(goals, g)
	}
	return goals, res.NextCursor, nil
}

func (r *GoalRepository) Get(ctx context.Context, goalID string) (Goal, error) {
	var g Goal
	err := r.c.GetByKey(ctx, r.c.CoreTable, Key{PK: GoalPK(goalID), SK: GoalSK(goalID)}, &g)
	return g, err
}

func (r *GoalRepository) Update(ctx context.Context, goalID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, r.c.CoreTable, Key{PK: GoalPK(goalID), SK: GoalSK(goalID)}, expectedVersion, buildUpdate)
}

func (r *GoalRepository) Delete(ctx context.Context, goalID string) error {
	return r.c.DeleteCascade(ctx, goalID)
}
