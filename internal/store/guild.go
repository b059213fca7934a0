package store

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// GuildVisibility controls who can discover and join a guild.
type GuildVisibility string

const (
	GuildPublic   GuildVisibility = "public"
	GuildPrivate  GuildVisibility = "private"
	GuildInviteOnly GuildVisibility = "invite_only"
)

// Guild is the row at GUILD#<id>/METADATA#<id>, stored in the companion guild table.
type Guild struct {
	PK           string          `dynamodbav:"PK"`
	SK           string          `dynamodbav:"SK"`
	GuildID      string          `dynamodbav:"guildId"`
	GuildType    string          `dynamodbav:"guildType"`
	Name         string          `dynamodbav:"name"`
	Description  string          `dynamodbav:"description,omitempty"`
	Visibility   GuildVisibility `dynamodbav:"visibility"`
	OwnerID      string          `dynamodbav:"ownerId"`
	AvatarKey    string          `dynamodbav:"avatarKey,omitempty"`
	MemberCount  int             `dynamodbav:"memberCount"`
	RankingScore float64         `dynamodbav:"rankingScore"`
	CreatedAt    time.Time       `dynamodbav:"createdAt"`
	UpdatedAt    time.Time       `dynamodbav:"updatedAt"`
	Version      int64           `dynamodbav:"version"`

	GSI1PK string `dynamodbav:"GSI1PK"`
	GSI1SK string `dynamodbav:"GSI1SK"`
	GSI2PK string `dynamodbav:"GSI2PK"`
	GSI2SK string `dynamodbav:"GSI2SK"`
}

// GuildRepository is the typed Core Store surface for the Guild Service (C6).
type GuildRepository struct {
	c *Client
}

func NewGuildRepository(c *Client) *GuildRepository { return &GuildRepository{c: c} }

func (r *GuildRepository) Create(ctx context.Context, g Guild) error {
	g.PK, g.SK = GuildPK(g.GuildID), GuildMetadataSK(g.GuildID)
	g.GSI1PK, g.GSI1SK = GSI1PK(g.GuildType), GSI1SK(g.CreatedAt.UTC().Format(time.RFC3339Nano))
	g.GSI2PK, g.GSI2SK = GSI2PK(g.OwnerID), GSI2SK(g.GuildID)
	g.Version = 1
	return r.c.PutIfNotExists(ctx, r.c.GuildTable, g)
}

func (r *GuildRepository) Get(ctx context.Context, guildID string) (Guild, error) {
	var g Guild
	err := r.c.GetByKey(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: GuildMetadataSK(guildID)}, &g)
	return g, err
}

func (r *GuildRepository) Update(ctx context.Context, guildID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: GuildMetadataSK(guildID)}, expectedVersion, buildUpdate)
}

func (r *GuildRepository) Delete(ctx context.Context, guildID string) error {
	return r.c.Delete(ctx, r.c.GuildTable, Key{PK: GuildPK(guildID), SK: GuildMetadataSK(guildID)})
}

// ListByType pages through guilds of a type in creation order, newest first, via GSI1.
func (r *GuildRepository) ListByType(ctx context.Context, guildType string, page Page) ([]Guild, string, error) {
	res, err := r.c.QueryIndex(ctx, r.c.GuildTable, "GSI1", "GSI1PK", "GSI1SK", GSI1PK(guildType), "", page, Descending())
	if err != nil {
		return nil, "", err
	}
	guilds := make([]Guild, 0, len(res.Items))
	for _, item := range res.Items {
		var g Guild
		if err := unmarshalInto(item, &g); err != nil {
			return nil, "", err
		}
		guilds = append(guilds, g)
	}
	return guilds, res.NextCursor, nil
}

// ListOwnedBy pages through guilds a user owns, via GSI2.
func (r *GuildRepository) ListOwnedBy(ctx context.Context, userID string, page Page) ([]Guild, string, error) {
	res, err := r.c.QueryIndex(ctx, r.c.GuildTable, "GSI2", "GSI2PK", "GSI2SK", GSI2PK(userID), "", page)
	if err != nil {
		return nil, "", err
	}
	guilds := make([]Guild, 0, len(res.Items))
	for _, item := range res.Items {
		var g Guild
		if err := unmarshalInto(item, &g); err != nil {
			return nil, "", err
		}
		guilds = append(guilds, g)
	}
	return guilds, res.NextCursor, nil
}

// ScanAll visits every guild row in the table, invoking visit once per page. Used by the ranking aggregation job
// (internal/guild/ranking.go); every other guild lookup goes through a bounded Query.
func (r *GuildRepository) ScanAll(ctx context.Context, visit func([]Guild) error) error {
	return r.c.ScanAll(ctx, r.c.GuildTable, "METADATA#", func(items []map[string]types.AttributeValue) error {
		guilds := make([]Guild, 0, len(items))
		for _, item := range items {
			var g Guild
			if err := unmarshalInto(item, &g); err != nil {
				return err
			}
			guilds = append(guilds, g)
		}
		return visit(guilds)
	})
}
