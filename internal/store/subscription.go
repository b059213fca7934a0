package store

import (
	"context"
	"time"
)

// SubscriptionEvent is a ledger row at USER#<id>/SUBEVENT#<ts>#<eventId>, one per processed webhook delivery. The
// event id is folded into the sort key (the same ts+id composite MessageSK already uses for chat ordering) so a
// replayed webhook delivery collides on PutIfNotExists instead of appending a second ledger row.
type SubscriptionEvent struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	UserID    string    `dynamodbav:"userId"`
	EventID   string    `dynamodbav:"eventId"`
	Type      string    `dynamodbav:"type"`
	Tier      string    `dynamodbav:"tier"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
}

// SubscriptionRepository is the typed Core Store surface for the Subscription Service (C10).
type SubscriptionRepository struct {
	c *Client
}

func NewSubscriptionRepository(c *Client) *SubscriptionRepository {
	return &SubscriptionRepository{c: c}
}

// Append writes one ledger row. Returns ErrVersionConflict if a row already exists for the same (ts, eventId) pair,
// which the service treats as "already processed" rather than an error.
func (r *SubscriptionRepository) Append(ctx context.Context, userID string, e SubscriptionEvent, ts string) error {
	e.PK, e.SK = UserPK(userID), SubEventSK(ts, e.EventID)
	e.UserID = userID
	return r.c.PutIfNotExists(ctx, r.c.CoreTable, e)
}

// List pages through a user's subscription ledger, most recently created first.
func (r *SubscriptionRepository) List(ctx context.Context, userID string, page Page) ([]SubscriptionEvent, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, UserPK(userID), SubEventSKPrefix(), page, Descending())
	if err != nil {
		return nil, "", err
	}
	events := make([]SubscriptionEvent, 0, len(res.Items))
	for _, item := range res.Items {
		var e SubscriptionEvent
		if err := unmarshalInto(item, &e); err != nil {
			return nil, "", err
		}
		events = append(events, e)
	}
	return events, res.NextCursor, nil
}
