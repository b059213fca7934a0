package store

import (
	"context"
	"time"
)

// User is the profile row stored at USER#<id>/PROFILE.
type User struct {
	PK              string    `dynamodbav:"PK"`
	SK              string    `dynamodbav:"SK"`
	UserID          string    `dynamodbav:"userId"`
	Email           string    `dynamodbav:"email"`
	DisplayName     string    `dynamodbav:"displayName"`
	PasswordHash    string    `dynamodbav:"passwordHash,omitempty"`
	Federated       bool      `dynamodbav:"federated"`
	FederationIss   string    `dynamodbav:"federationIss,omitempty"`
	EmailVerified   bool      `dynamodbav:"emailVerified"`
	AvatarKey       string    `dynamodbav:"avatarKey,omitempty"`
	Tier            string    `dynamodbav:"tier"`
	XP              int       `dynamodbav:"xp"`
	Badges          []string  `dynamodbav:"badges,omitempty"`
	ProcessedEvents []string  `dynamodbav:"processedEvents,omitempty"`
	CreatedAt       time.Time `dynamodbav:"createdAt"`
	UpdatedAt       time.Time `dynamodbav:"updatedAt"`
	Version         int64     `dynamodbav:"version"`
}

// LoginAttempt is a throttling row at USER#<id>/ATTEMPT#<ts>, written with a DynamoDB TTL attribute so the table
// expires them without an explicit sweep.
type LoginAttempt struct {
	PK        string    `dynamodbav:"PK"`
	SK        string    `dynamodbav:"SK"`
	SourceIP  string    `dynamodbav:"sourceIp"`
	Succeeded bool      `dynamodbav:"succeeded"`
	CreatedAt time.Time `dynamodbav:"createdAt"`
	TTL       int64     `dynamodbav:"ttl"`
}

// UserRepository is the typed Core Store surface for the Identity Service (C3).
type UserRepository struct {
	c *Client
}

func NewUserRepository(c *Client) *UserRepository { return &UserRepository{c: c} }

func (r *UserRepository) Create(ctx context.Context, u User) error {
	u.PK, u.SK = UserPK(u.UserID), ProfileSK()
	u.Version = 1
	return r.c.PutIfNotExists(ctx, r.c.CoreTable, u)
}

func (r *UserRepository) Get(ctx context.Context, userID string) (User, error) {
	var u User
	err := r.c.GetByKey(ctx, r.c.CoreTable, Key{PK: UserPK(userID), SK: ProfileSK()}, &u)
	return u, err
}

func (r *UserRepository) Update(ctx context.Context, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error {
	return r.c.UpdateWithVersion(ctx, r.c.CoreTable, Key{PK: UserPK(userID), SK: ProfileSK()}, expectedVersion, buildUpdate)
}

// RecordAttempt logs a login attempt row with a 15-minute TTL, used by the throttling check in internal/auth.
func (r *UserRepository) RecordAttempt(ctx context.Context, userID, sourceIP string, succeeded bool, now time.Time) error {
	attempt := LoginAttempt{
		PK:        UserPK(userID),
		SK:        AttemptSK(now.UTC().Format(time.RFC3339Nano)),
		SourceIP:  sourceIP,
		Succeeded: succeeded,
		CreatedAt: now,
		TTL:       now.Add(15 * time.Minute).Unix(),
	}
	return r.c.Put(ctx, r.c.CoreTable, attempt)
}

// CountRecentAttempts returns the number of attempts since `since`, read with strong consistency so a burst of
// concurrent logins cannot race past the throttle (Open Question #2 in spec.md).
func (r *UserRepository) CountRecentAttempts(ctx context.Context, userID string, since time.Time) (int, error) {
	res, err := r.c.QueryByPartition(ctx, r.c.CoreTable, UserPK(userID), "ATTEMPT#", Page{Limit: MaxPageSize}, Strong())
	if err != nil {
		return 0, err
	}
	count := 0
	for _, item := range res.Items {
		var a LoginAttempt
		if err := unmarshalInto(item, &a); err != nil {
			return 0, err
		}
		if a.CreatedAt.After(since) {
			count++
		}
	}
	return count, nil
}
