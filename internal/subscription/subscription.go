// Package subscription implements the Subscription Service (C10): the tier + subscription-event ledger on the user
// profile row, advanced by an HMAC-signed webhook.
package subscription

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// Tiers recognized by the webhook, matching the tier enum carried in JWT claims (internal/auth). Anything else
// fails validation.failed rather than silently advancing a user to an unknown tier.
const (
	TierDefault = "default"
	TierPremium = "premium"
	TierAdmin   = "admin"
)

var validTiers = map[string]bool{TierDefault: true, TierPremium: true, TierAdmin: true}

// EventTypes the webhook accepts. "subscription.canceled" always demotes to TierDefault; "subscription.activated"
// advances to the payload's Tier field.
const (
	EventActivated = "subscription.activated"
	EventCanceled  = "subscription.canceled"
)

// Payload is the JSON body of a subscription webhook delivery.
type Payload struct {
	EventID    string    `json:"eventId"`
	Type       string    `json:"type"`
	UserID     string    `json:"userId"`
	Tier       string    `json:"tier"`
	OccurredAt time.Time `json:"occurredAt"`
}

// userStore and subStore are the slices of store.UserRepository/store.SubscriptionRepository the service needs,
// narrowed to an interface so unit tests can substitute an in-memory fake.
type userStore interface {
	Get(ctx context.Context, userID string) (store.User, error)
	Update(ctx context.Context, userID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
}

type subStore interface {
	Append(ctx context.Context, userID string, e store.SubscriptionEvent, ts string) error
}

// Service verifies and applies subscription webhook deliveries.
type Service struct {
	users  userStore
	events subStore
	secret []byte
}

func NewService(users *store.UserRepository, events *store.SubscriptionRepository, webhookSecret string) *Service {
	return &Service{users: users, events: events, secret: []byte(webhookSecret)}
}

// VerifySignature checks an HMAC-SHA256 hex digest of payload against the shared webhook secret, using the same
// hmac.New(sha256.New, key) construction as internal/auth's HMACIdentifier, but compared with hmac.Equal for a
// constant-time check since here the digest guards a write path rather than just keying a lookup.
func (s *Service) VerifySignature(payload []byte, signatureHex string) bool {
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), sig)
}

// HandleWebhook verifies the signature, validates and decodes the payload, appends a ledger row, and advances the
// user's tier. Appending the ledger row first and short-circuiting on ErrVersionConflict is what makes a retried
// webhook delivery (same eventId) idempotent: the tier update never runs a second time for the same delivery.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signatureHex string) error {
	if !s.VerifySignature(rawBody, signatureHex) {
		return apierrors.New(apierrors.AuthSignature, "invalid webhook signature")
	}

	var p Payload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return apierrors.New(apierrors.ValidationFailed, "malformed webhook payload")
	}
	if p.EventID == "" || p.UserID == "" {
		return apierrors.New(apierrors.ValidationFailed, "eventId and userId are required")
	}

	tier := p.Tier
	switch p.Type {
	case EventCanceled:
		tier = TierDefault
	case EventActivated:
		if !validTiers[tier] {
			return apierrors.New(apierrors.ValidationFailed, "unrecognized tier")
		}
	default:
		return apierrors.New(apierrors.ValidationFailed, "unrecognized event type")
	}

	occurredAt := p.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	ts := occurredAt.UTC().Format(time.RFC3339Nano)

	err := s.events.Append(ctx, p.UserID, store.SubscriptionEvent{
		EventID:   p.EventID,
		Type:      p.Type,
		Tier:      tier,
		CreatedAt: occurredAt,
	}, ts)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			return nil
		}
		return fmt.Errorf("append subscription event: %w", err)
	}

	return store.WithRetry(ctx, func() error {
		u, err := s.users.Get(ctx, p.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apierrors.New(apierrors.NotFound, "user not found")
			}
			return fmt.Errorf("get user: %w", err)
		}
		return s.users.Update(ctx, p.UserID, u.Version, func() (string, map[string]string, map[string]any, error) {
			return "SET tier = :t, updatedAt = :u", nil, map[string]any{
				":t": tier,
				":u": time.Now().UTC(),
			}, nil
		})
	})
}
