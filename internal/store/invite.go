package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// InviteStatus tracks a cross-user invite through its lifecycle.
type InviteStatus string

const (
	InvitePending  InviteStatus = "pending"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
)

// Invite is a cross-user collaboration invite, per spec.md §3's mirrored dual-row layout: one row under the goal
// partition (for "who's invited to this goal") and a second, identical-content mirror row under the invitee's own
// partition (for "my invite inbox"). Both carry the same Version and are kept in lockstep by TransactWrite.
type Invite struct {
	PK        string       `dynamodbav:"PK"`
	SK        string       `dynamodbav:"SK"`
	GoalID    string       `dynamodbav:"goalId"`
	InviterID string       `dynamodbav:"inviterId"`
	InviteeID string       `dynamodbav:"inviteeId"`
	Status    InviteStatus `dynamodbav:"status"`
	CreatedAt time.Time    `dynamodbav:"createdAt"`
	UpdatedAt time.Time    `dynamodbav:"updatedAt"`
	Version   int64        `dynamodbav:"version"`
}

func (inv Invite) goalSideKey() (string, string) { return GoalPK(inv.GoalID), InviteSK(inv.InviteeID) }
func (inv Invite) inboxKey() (string, string)     { return UserPK(inv.InviteeID), InviteSK(inv.GoalID) }

// InviteRepository is the typed Core Store surface for the Collaboration Service's invite queue.
type InviteRepository struct {
	c *Client
}

func NewInviteRepository(c *Client) *InviteRepository { return &InviteRepository{c: c} }

// Create writes both halves of the mirrored pair atomically: either both appear or neither does.
func (r *InviteRepository) Create(ctx context.Context, inv Invite) error {
	inv.Version = 1
	goalSide, inbox := inv, inv
	goalSide.PK, goalSide.SK = inv.goalSideKey()
	inbox.PK, inbox.SK = inv.inboxKey()

	items := []TransactItem{
		{Table: r.c.CoreTable, Put: goalSide, ConditionExpression: "attribute_not_exists(PK)"},
		{Table: r.c.CoreTable, Put: inbox, ConditionExpression: "attribute_not_exists(PK)"},
	}
	return r.c.TransactWrite(ctx, items)
}

// Get fetches the goal-side row, the canonical copy callers mutate before calling SetStatus.
func (r *InviteRepository) Get(ctx context.Context, goalID, inviteeID string) (Invite, error) {
	var inv Invite
	err := r.c.GetByKey(ctx, r.c.CoreTable, Key{PK: GoalPK(goalID), SK: InviteSK(inviteeID)}, &inv)
	return inv, err
}

// SetStatus transitions both halves of the mirrored pair to the given status atomically, bumping both versions by
// one. Callers pass the full invite as last read (their expected pre-update state); accept/decline is only valid
// from pending, so the caller checks that before calling this.
func (r *InviteRepository) SetStatus(ctx context.Context, inv Invite, status InviteStatus) error {
	updated := inv
	updated.Status = status
	updated.UpdatedAt = time.Now().UTC()
	updated.Version = inv.Version + 1

	goalSide, inbox := updated, updated
	goalSide.PK, goalSide.SK = updated.goalSideKey()
	inbox.PK, inbox.SK = updated.inboxKey()

	items := []TransactItem{
		{
			Table:                     r.c.CoreTable,
			Put:                       goalSide,
			ConditionExpression:       "version = :expectedVersion",
			ExpressionAttributeValues: map[string]any{":expectedVersion": inv.Version},
		},
		{
			Table:                     r.c.CoreTable,
			Put:                       inbox,
			ConditionExpression:       "version = :expectedVersion",
			ExpressionAttributeValues: map[string]any{":expectedVersion": inv.Version},
		},
	}
	return r.c.TransactWrite(ctx, items)
}

// ListByGoal pages through every invite issued for a goal.
func (r *InviteRepository) ListByGoal(ctx context.Context, goalID string, page Page) ([]Invite, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, GoalPK(goalID), "INVITE#", page)
	if err != nil {
		return nil, "", err
	}
	return unmarshalInvites(res.Items, res.NextCursor)
}

// ListByInvitee pages through a user's invite inbox, across every goal that invited them.
func (r *InviteRepository) ListByInvitee(ctx context.Context, inviteeID string, page Page) ([]Invite, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, UserPK(inviteeID), "INVITE#", page)
	if err != nil {
		return nil, "", err
	}
	return unmarshalInvites(res.Items, res.NextCursor)
}

func unmarshalInvites(items []map[string]types.AttributeValue, cursor string) ([]Invite, string, error) {
	invites := make([]Invite, 0, len(items))
	for _, item := range items {
		var inv Invite
		if err := unmarshalInto(item, &inv); err != nil {
			return nil, "", err
		}
		invites = append(invites, inv)
	}
	return invites, cursor, nil
}
