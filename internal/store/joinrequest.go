package store

import (
	"context"
	"time"
)

// JoinRequestStatus tracks a pending membership request through its queue lifecycle.
type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestApproved JoinRequestStatus = "approved"
	JoinRequestRejected JoinRequestStatus = "rejected"
)

// JoinRequest is the row at GUILD#<guildId>/JOIN_REQUEST#<userId>.
type JoinRequest struct {
	PK        string            `dynamodbav:"PK"`
	SK        string            `dynamodbav:"SK"`
	GuildID   string            `dynamodbav:"guildId"`
	UserID    string            `dynamodbav:"userId"`
	Message   string            `dynamodbav:"message,omitempty"`
	Status    JoinRequestStatus `dynamodbav:"status"`
	CreatedAt time.Time         `dynamodbav:"createdAt"`
	UpdatedAt time.Time         `dynamodbav:"updatedAt"`
	Version   int64             `dynamodbav:"version"`
}

// JoinRequestRepository is the typed Core Store surface for the guild join-request queue.
type JoinRequestRepository struct {
	c *Client
}

func NewJoinRequestRepository(c *Client) *JoinRequestRepository { return &JoinRequestRepository{c: c} }

func (r *JoinRequestRepository) Create(ctx context.Context, jr JoinRequest) error {
	jr.PK, jr.SK = GuildPK(jr.GuildID), JoinRequestSK(jr.UserID)
	jr.Version = 1
	return r.c.PutIfNotExists(ctx, r.c.GuildTable, jr)
}

func (r *JoinRequestRepository) Get(ctx context.Context, guildID, userID string) (JoinRequest, error) {
	var jr JoinRequest
	err := r.c.GetByKey(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: JoinRequestSK(userID)}, &jr)
	return jr, err
}

func (r *JoinRequestRepository) Update(ctx context.Context, guildID, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: JoinRequestSK(userID)}, expectedVersion, buildUpdate)
}

func (r *JoinRequestRepository) Delete(ctx context.Context, guildID, userID string) error {
	return r.c.Delete(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: JoinRequestSK(userID)})
}

// ListPending pages through a guild's pending join requests in ascending requester-id order, not by request time.
func (r *JoinRequestRepository) ListPending(ctx context.Context, guildID string, page Page) ([]JoinRequest, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.GuildTable, GuildPK(guildID), "JOIN_REQUEST#", page)
	if err != nil {
		return nil, "", err
	}
	requests := make([]JoinRequest, 0, len(res.Items))
	for _, item := range res.Items {
		var jr JoinRequest
		if err := unmarshalInto(item, &jr); err != nil {
			return nil, "", err
		}
		if jr.Status == JoinRequestPending {
			requests = append(requests, jr)
		}
	}
	return requests, res.NextCursor, nil
}

// Approve atomically deletes the join request and creates the corresponding member row.
func (r *JoinRequestRepository) Approve(ctx context.Context, jr JoinRequest, newMember Member) error {
	newMember.PK, newMember.SK = GuildPK(newMember.GuildID), MemberSK(newMember.UserID)
	newMember.GSI3PK, newMember.GSI3SK = GSI3PK(newMember.UserID), GSI3SK(newMember.GuildID)
	if newMember.Version == 0 {
		newMember.Version = 1
	}
	key := Key{PK: GuildPK(jr.GuildID), SK: JoinRequestSK(jr.UserID)}
	items := []TransactItem{
		{Table: r.c.GuildTable, Delete: &key},
		{Table: r.c.GuildTable, Put: newMember},
	}
	return r.c.TransactWrite(ctx, items)
}
