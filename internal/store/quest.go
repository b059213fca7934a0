package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// QuestStatus mirrors the Quest Engine's state machine (spec.md §4.5).
type QuestStatus string

const (
	QuestDraft     QuestStatus = "draft"
	QuestActive    QuestStatus = "active"
	QuestCompleted QuestStatus = "completed"
	QuestCancelled QuestStatus = "cancelled"
	QuestFailed    QuestStatus = "failed"
)

// Quest is the row at USER#<ownerId>/QUEST#<questId>: owner-scoped per spec.md §3, with an optional reference to the
// goal its progress is derived from.
type Quest struct {
	PK            string          `dynamodbav:"PK"`
	SK            string          `dynamodbav:"SK"`
	QuestID       string          `dynamodbav:"questId"`
	OwnerID       string          `dynamodbav:"ownerId"`
	GoalID        string          `dynamodbav:"goalId,omitempty"`
	TemplateID    string          `dynamodbav:"templateId,omitempty"`
	Title         string          `dynamodbav:"title"`
	Description   string          `dynamodbav:"description,omitempty"`
	RewardXP      int             `dynamodbav:"rewardXp"`
	Status        QuestStatus     `dynamodbav:"status"`
	Progress      float64         `dynamodbav:"progress"`
	MilestonesHit map[string]bool `dynamodbav:"milestonesHit,omitempty"`
	StartedAt     time.Time       `dynamodbav:"startedAt,omitempty"`
	DueAt         time.Time       `dynamodbav:"dueAt"`
	CompletedAt   time.Time       `dynamodbav:"completedAt,omitempty"`
	CreatedAt     time.Time       `dynamodbav:"createdAt"`
	UpdatedAt     time.Time       `dynamodbav:"updatedAt"`
	Version       int64           `dynamodbav:"version"`
}

// QuestRepository is the typed Core Store surface for the Quest Engine (C5).
type QuestRepository struct {
	c *Client
}

func NewQuestRepository(c *Client) *QuestRepository { return &QuestRepository{c: c} }

func (r *QuestRepository) Create(ctx context.Context, q Quest) error {
	q.PK, q.SK = UserPK(q.OwnerID), QuestSK(q.QuestID)
	q.Version = 1
	return r.c.PutIfNotExists(ctx, r.c.CoreTable, q)
}

func (r *QuestRepository) Get(ctx context.Context, ownerID, questID string) (Quest, error) {
	var q Quest
	err := r.c.GetByKey(ctx, r.c.CoreTable, Key{PK: UserPK(ownerID), SK: QuestSK(questID)}, &q)
	return q, err
}

func (r *QuestRepository) Update(ctx context.Context, ownerID, questID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, r.c.CoreTable, Key{PK: UserPK(ownerID), SK: QuestSK(questID)}, expectedVersion, buildUpdate)
}

func (r *QuestRepository) Delete(ctx context.Context, ownerID, questID string) error {
	return r.c.Delete(ctx, r.c.CoreTable, Key{PK: UserPK(ownerID), SK: QuestSK(questID)})
}

// List pages through every quest a user owns in ascending quest-id order; ids are random UUIDs, so this is not
// creation order.
func (r *QuestRepository) List(ctx context.Context, ownerID string, page Page) ([]Quest, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, UserPK(ownerID), "QUEST#", page)
	if err != nil {
		return nil, "", err
	}
	return unmarshalQuests(res.Items, res.NextCursor)
}

// ListActiveByOwner pages through a user's quest partition and filters to the active ones, used by the
// auto-completion sweep in internal/quest/sweep.go.
func (r *QuestRepository) ListActiveByOwner(ctx context.Context, ownerID string, page Page) ([]Quest, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, UserPK(ownerID), "QUEST#", page)
	if err != nil {
		return nil, "", err
	}
	quests, cursor, err := unmarshalQuests(res.Items, res.NextCursor)
	if err != nil {
		return nil, "", err
	}
	active := make([]Quest, 0, len(quests))
	for _, q := range quests {
		if q.Status == QuestActive {
			active = append(active, q)
		}
	}
	return active, cursor, nil
}

// ScanAllActive walks every active quest in the core table regardless of owner, used by the background sweep
// ticker in cmd/ rather than the per-request ListActiveByOwner path.
func (r *QuestRepository) ScanAllActive(ctx context.Context, visit func([]Quest) error) error {
	return r.c.ScanAll(ctx, r.c.CoreTable, "QUEST#", func(items []map[string]types.AttributeValue) error {
		quests, _, err := unmarshalQuests(items, "")
		if err != nil {
			return err
		}
		active := make([]Quest, 0, len(quests))
		for _, q := range quests {
			if q.Status == QuestActive {
				active = append(active, q)
			}
		}
		if len(active) == 0 {
			return nil
		}
		return visit(active)
	})
}

func unmarshalQuests(items []map[string]types.AttributeValue, cursor string) ([]Quest, string, error) {
	quests := make([]Quest, 0, len(items))
	for _, item := range items {
		var q Quest
		if err := unmarshalInto(item, &q); err != nil {
			return nil, "", err
		}
		quests = append(quests, q)
	}
	return quests, cursor, nil
}
