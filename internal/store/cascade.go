package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
)

// sweepCompleteAttr names a completion-marker attribute for paged cascade sweeps. No code in this package writes or
// reads it.
const sweepCompleteAttr = "sweepComplete"

// DeleteCascade removes a goal along with its tasks, any invites mirrored under it (both the goal-side row and its
// USER#<inviteeId> inbox mirror), and any collaboration comments/reactions posted directly on the goal. Goals whose
// combined child-row count fits within the 25-item transact limit (minus the goal row itself) delete atomically via
// TransactWrite. Larger goals fall back to a sequential sweep: delete each child row one at a time, then the goal row
// last. No completion marker is written; a sweep interrupted part way leaves the goal row in place.
func (c *Client) DeleteCascade(ctx context.Context, goalID string) error {
	taskKeys, err := c.allKeysByPrefix(ctx, GoalPK(goalID), TaskSKPrefix(goalID))
	if err != nil {
		return fmt.Errorf("list task keys for cascade: %w", err)
	}
	inviteKeys, err := c.allInviteKeysForGoal(ctx, goalID)
	if err != nil {
		return fmt.Errorf("list invite keys for cascade: %w", err)
	}
	commentKeys, err := c.allKeysByPrefix(ctx, GoalPK(goalID), "COMMENT#")
	if err != nil {
		return fmt.Errorf("list comment keys for cascade: %w", err)
	}
	reactionKeys, err := c.allKeysByPrefix(ctx, GoalPK(goalID), "REACT#")
	if err != nil {
		return fmt.Errorf("list reaction keys for cascade: %w", err)
	}

	goalKey := Key{PK: GoalPK(goalID), SK: GoalSK(goalID)}
	allChildKeys := make([]Key, 0, len(taskKeys)+len(inviteKeys)+len(commentKeys)+len(reactionKeys))
	allChildKeys = append(allChildKeys, taskKeys...)
	allChildKeys = append(allChildKeys, inviteKeys...)
	allChildKeys = append(allChildKeys, commentKeys...)
	allChildKeys = append(allChildKeys, reactionKeys...)

	if len(allChildKeys)+1 <= transactItemLimit {
		items := make([]TransactItem, 0, len(allChildKeys)+1)
		for _, k := range allChildKeys {
			k := k
			items = append(items, TransactItem{Table: c.CoreTable, Delete: &k})
		}
		items = append(items, TransactItem{Table: c.CoreTable, Delete: &goalKey})
		return c.TransactWrite(ctx, items)
	}

	for _, k := range allChildKeys {
		if err := c.Delete(ctx, c.CoreTable, k); err != nil {
			return fmt.Errorf("sweep delete child: %w", err)
		}
	}
	if err := c.Delete(ctx, c.CoreTable, goalKey); err != nil {
		return fmt.Errorf("sweep delete goal: %w", err)
	}
	return nil
}

// allKeysByPrefix pages through every row under partitionPK whose sort key starts with skPrefix, exhausting cursors
// internally. Used by cascade deletion for child rows that don't warrant their own dedicated helper.
func (c *Client) allKeysByPrefix(ctx context.Context, partitionPK, skPrefix string) ([]Key, error) {
	var keys []Key
	page := Page{Limit: MaxPageSize}
	for {
		res, err := c.QueryByPartition(ctx, c.CoreTable, partitionPK, skPrefix, page)
		if err != nil {
			return nil, err
		}
		for _, item := range res.Items {
			var k Key
			if err := attributevalue.UnmarshalMap(item, &k); err != nil {
				return nil, fmt.Errorf("unmarshal key: %w", err)
			}
			keys = append(keys, k)
		}
		if res.NextCursor == "" {
			break
		}
		page.Cursor = res.NextCursor
	}
	return keys, nil
}

// allInviteKeysForGoal pages through every invite row under a goal partition and returns both halves of each
// mirrored pair: the goal-side row itself, plus its USER#<inviteeId> inbox mirror, derived from the invitee id
// embedded in the goal-side sort key (INVITE#<inviteeId>) without needing to read the full item.
func (c *Client) allInviteKeysForGoal(ctx context.Context, goalID string) ([]Key, error) {
	var keys []Key
	page := Page{Limit: MaxPageSize}
	for {
		res, err := c.QueryByPartition(ctx, c.CoreTable, GoalPK(goalID), "INVITE#", page)
		if err != nil {
			return nil, err
		}
		for _, item := range res.Items {
			var k Key
			if err := attributevalue.UnmarshalMap(item, &k); err != nil {
				return nil, fmt.Errorf("unmarshal invite key: %w", err)
			}
			keys = append(keys, k)
			inviteeID := strings.TrimPrefix(k.SK, "INVITE#")
			keys = append(keys, Key{PK: UserPK(inviteeID), SK: InviteSK(goalID)})
		}
		if res.NextCursor == "" {
			break
		}
		page.Cursor = res.NextCursor
	}
	return keys, nil
}

// ReapIncompleteSweeps finishes an interrupted sweep for one goal by re-running DeleteCascade on it. It does not
// search for interrupted sweeps; the caller supplies the goalID. Callable on-demand by an operator tool; not wired to
// a ticker since interrupted sweeps are rare (process crash mid-delete).
func (c *Client) ReapIncompleteSweeps(ctx context.Context, goalID string) error {
	return c.DeleteCascade(ctx, goalID)
}
