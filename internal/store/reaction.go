package store

import (
	"context"
	"time"
)

// Reaction is the row at <containerPK>/REACT#<targetId>#<userId>#<kind>, recording one user's reaction of one kind
// on a target (comment or message) within a guild or goal. The composite SK enforces "a user reacts with a given
// emoji on a given target at most once" without a read-before-write, and lets ListByTarget query a contiguous SK
// range.
type Reaction struct {
	PK          string    `dynamodbav:"PK"`
	SK          string    `dynamodbav:"SK"`
	ContainerID string    `dynamodbav:"containerId"`
	TargetID    string    `dynamodbav:"targetId"`
	UserID      string    `dynamodbav:"userId"`
	Kind        string    `dynamodbav:"kind"`
	CreatedAt   time.Time `dynamodbav:"createdAt"`
}

// ReactionRepository is the typed Core Store surface shared by the Guild Service (C6) and Collaboration Service
// (C7). Every method takes an explicit table and containerPK (GuildPK(id) for C6, GoalPK(id) for C7).
type ReactionRepository struct {
	c *Client
}

func NewReactionRepository(c *Client) *ReactionRepository { return &ReactionRepository{c: c} }

func (r *ReactionRepository) Add(ctx context.Context, table, containerPK string, re Reaction) error {
	re.PK, re.SK = containerPK, ReactionSK(re.TargetID, re.UserID, re.Kind)
	return r.c.PutIfNotExists(ctx, table, re)
}

func (r *ReactionRepository) Remove(ctx context.Context, table, containerPK, targetID, userID, kind string) error {
	return r.c.Delete(ctx, table, Key{PK: containerPK, SK: ReactionSK(targetID, userID, kind)})
}

// ListByTarget pages through every reaction on a single target within a container.
func (r *ReactionRepository) ListByTarget(ctx context.Context, table, containerPK, targetID string, page Page) ([]Reaction, string, error) {
	res, err := r.c.QueryByPartition(ctx, table, containerPK, ReactionSKPrefix(targetID), page)
	if err != nil {
		return nil, "", err
	}
	reactions := make([]Reaction, 0, len(res.Items))
	for _, item := range res.Items {
		var re Reaction
		if err := unmarshalInto(item, &re); err != nil {
			return nil, "", err
		}
		reactions = append(reactions, re)
	}
	return reactions, res.NextCursor, nil
}
