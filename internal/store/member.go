package store

import (
	"context"
	"time"
)

// MemberRole is a guild member's standing, from plain member up to owner.
type MemberRole string

const (
	RoleMember    MemberRole = "member"
	RoleModerator MemberRole = "moderator"
	RoleOwner     MemberRole = "owner"
)

// Member is the row at GUILD#<guildId>/MEMBER#<userId>, in the companion guild table.
type Member struct {
	PK        string     `dynamodbav:"PK"`
	SK        string     `dynamodbav:"SK"`
	GuildID   string      `dynamodbav:"guildId"`
	UserID    string      `dynamodbav:"userId"`
	Role      MemberRole  `dynamodbav:"role"`
	Blocked   bool        `dynamodbav:"blocked"`
	JoinedAt  time.Time   `dynamodbav:"joinedAt"`
	UpdatedAt time.Time   `dynamodbav:"updatedAt"`
	Version   int64       `dynamodbav:"version"`

	GSI3PK string `dynamodbav:"GSI3PK"`
	GSI3SK string `dynamodbav:"GSI3SK"`
}

// MemberRepository is the typed Core Store surface for guild membership.
type MemberRepository struct {
	c *Client
}

func NewMemberRepository(c *Client) *MemberRepository { return &MemberRepository{c: c} }

func (r *MemberRepository) Create(ctx context.Context, m Member) error {
	m.PK, m.SK = GuildPK(m.GuildID), MemberSK(m.UserID)
	m.GSI3PK, m.GSI3SK = GSI3PK(m.UserID), GSI3SK(m.GuildID)
	m.Version = 1
	return r.c.PutIfNotExists(ctx, r.c.GuildTable, m)
}

func (r *MemberRepository) Get(ctx context.Context, guildID, userID string) (Member, error) {
	var m Member
	err := r.c.GetByKey(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: MemberSK(userID)}, &m)
	return m, err
}

func (r *MemberRepository) Update(ctx context.Context, guildID, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: MemberSK(userID)}, expectedVersion, buildUpdate)
}

func (r *MemberRepository) Remove(ctx context.Context, guildID, userID string) error {
	return r.c.Delete(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: MemberSK(userID)})
}

// ListByGuild pages through a guild's membership roster.
func (r *MemberRepository) ListByGuild(ctx context.Context, guildID string, page Page) ([]Member, string, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.GuildTable, GuildPK(guildID), "MEMBER#", page)
	if err != nil {
		return nil, "", err
	}
	members := make([]Member, 0, len(res.Items))
	for _, item := range res.Items {
		var m Member
		if err := unmarshalInto(item, &m); err != nil {
			return nil, "", err
		}
		members = append(members, m)
	}
	return members, res.NextCursor, nil
}

// ListByUser pages through every guild a user belongs to, via GSI3.
func (r *MemberRepository) ListByUser(ctx context.Context, userID string, page Page) ([]Member, string, error) {
	res, err := r.c.QueryIndex(ctx, r.c.GuildTable, "GSI3", "GSI3PK", "GSI3SK", GSI3PK(userID), "", page)
	if err != nil {
		return nil, "", err
	}
	members := make([]Member, 0, len(res.Items))
	for _, item := range res.Items {
		var m Member
		if err := unmarshalInto(item, &m); err != nil {
			return nil, "", err
		}
		members = append(members, m)
	}
	return members, res.NextCursor, nil
}

// TransferOwnership atomically swaps the owner and a member's role: it replaces both member rows and the guild's
// metadata row in one TransactWrite, so the guild is never observed with two owners or zero owners. Callers
// (internal/guild) build the full updated rows with the new role/ownerId fields already applied and the version
// bumped; this just wraps them in a conditioned transaction.
func (r *MemberRepository) TransferOwnership(ctx context.Context, updatedGuild Guild, updatedFromMember, updatedToMember Member) error {
	items := []TransactItem{
		{
			Table:                     r.c.GuildTable,
			Put:                       updatedGuild,
			ConditionExpression:       "version = :expectedVersion",
			ExpressionAttributeValues: map[string]any{":expectedVersion": updatedGuild.Version - 1},
		},
		{
			Table:                     r.c.GuildTable,
			Put:                       updatedFromMember,
			ConditionExpression:       "version = :expectedVersion",
			ExpressionAttributeValues: map[string]any{":expectedVersion": updatedFromMember.Version - 1},
		},
		{
			Table:                     r.c.GuildTable,
			Put:                       updatedToMember,
			ConditionExpression:       "version = :expectedVersion",
			ExpressionAttributeValues: map[string]any{":expectedVersion": updatedToMember.Version - 1},
		},
	}
	return r.c.TransactWrite(ctx, items)
}
