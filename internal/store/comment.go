package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Comment is a tree-structured comment, the shared primitive behind the Guild Service (C6, container = guild) and
// the Collaboration Service (C7, container = goal). Stored at <containerPK>/COMMENT#<commentId>; GSI4 supports
// listing a thread by parentId, GSI5 a user's own comments. Both GSIs live on the guild table, since goal-scoped
// comments are comparatively rare (collaborator discussion on a single goal) and a full per-goal thread fits in one
// QueryByPartition call without needing its own index.
type Comment struct {
	PK          string    `dynamodbav:"PK"`
	SK          string    `dynamodbav:"SK"`
	ContainerID string    `dynamodbav:"containerId"`
	CommentID   string    `dynamodbav:"commentId"`
	ParentID    string    `dynamodbav:"parentId,omitempty"`
	AuthorID    string    `dynamodbav:"authorId"`
	Body        string    `dynamodbav:"body"`
	Deleted     bool      `dynamodbav:"deleted"`
	CreatedAt   time.Time `dynamodbav:"createdAt"`
	UpdatedAt   time.Time `dynamodbav:"updatedAt"`
	Version     int64     `dynamodbav:"version"`

	GSI4PK string `dynamodbav:"GSI4PK,omitempty"`
	GSI4SK string `dynamodbav:"GSI4SK,omitempty"`
	GSI5PK string `dynamodbav:"GSI5PK,omitempty"`
	GSI5SK string `dynamodbav:"GSI5SK,omitempty"`
}

// CommentRepository is the typed Core Store surface shared by the Guild Service (C6) and Collaboration Service (C7).
// Every method takes an explicit table and containerPK (GuildPK(id) for C6, GoalPK(id) for C7) rather than assuming
// one fixed table, since the same tree primitive backs comments on both kinds of container.
type CommentRepository struct {
	c *Client
}

func NewCommentRepository(c *Client) *CommentRepository { return &CommentRepository{c: c} }

func (r *CommentRepository) Create(ctx context.Context, table, containerPK string, cm Comment) error {
	cm.PK, cm.SK = containerPK, CommentSK(cm.CommentID)
	if table == r.c.GuildTable {
		cm.GSI4PK, cm.GSI4SK = GSI4PK(cm.ContainerID, cm.ParentID), GSI4SK(cm.CreatedAt.UTC().Format(time.RFC3339Nano))
		cm.GSI5PK, cm.GSI5SK = GSI5PK(cm.AuthorID), GSI5SK(cm.ContainerID, cm.CommentID)
	}
	cm.Version = 1
	return r.c.PutIfNotExists(ctx, table, cm)
}

func (r *CommentRepository) Get(ctx context.Context, table, containerPK, commentID string) (Comment, error) {
	var cm Comment
	err := r.c.GetByKey(ctx, table, Key{PK: containerPK, SK: CommentSK(commentID)}, &cm)
	return cm, err
}

func (r *CommentRepository) Update(ctx context.Context, table, containerPK, commentID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, table, Key{PK: containerPK, SK: CommentSK(commentID)}, expectedVersion, buildUpdate)
}

func (r *CommentRepository) Delete(ctx context.Context, table, containerPK, commentID string) error {
	return r.c.Delete(ctx, table, Key{PK: containerPK, SK: CommentSK(commentID)})
}

// ListByContainer pages through every top-level comment and reply under a container in one partition query, used by
// C7's goal-scoped comments where a dedicated thread GSI isn't worth the cost.
func (r *CommentRepository) ListByContainer(ctx context.Context, table, containerPK string, page Page) ([]Comment, string, error) {
	res, err := r.c.QueryByPartition(ctx, table, containerPK, "COMMENT#", page)
	if err != nil {
		return nil, "", err
	}
	return unmarshalComments(res.Items, res.NextCursor)
}

// ListThread pages through direct replies to parentID, oldest first, via GSI4. Guild-table only.
func (r *CommentRepository) ListThread(ctx context.Context, guildID, parentID string, page Page) ([]Comment, string, error) {
	res, err := r.c.QueryIndex(ctx, r.c.GuildTable, "GSI4", "GSI4PK", "GSI4SK", GSI4PK(guildID, parentID), "", page)
	if err != nil {
		return nil, "", err
	}
	return unmarshalComments(res.Items, res.NextCursor)
}

// ListByAuthor pages through a user's own comments across guilds, via GSI5. Guild-table only.
func (r *CommentRepository) ListByAuthor(ctx context.Context, userID string, page Page) ([]Comment, string, error) {
	res, err := r.c.QueryIndex(ctx, r.c.GuildTable, "GSI5", "GSI5PK", "GSI5SK", GSI5PK(userID), "", page)
	if err != nil {
		return nil, "", err
	}
	return unmarshalComments(res.Items, res.NextCursor)
}

func unmarshalComments(items []map[string]types.AttributeValue, cursor string) ([]Comment, string, error) {
	comments := make([]Comment, 0, len(items))
	for _, item := range items {
		var cm Comment
		if err := unmarshalInto(item, &cm); err != nil {
			return nil, "", err
		}
		comments = append(comments, cm)
	}
	return comments, cursor, nil
}
