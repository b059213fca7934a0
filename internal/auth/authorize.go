package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goldjwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/goalguild/core-service/internal/apierrors"
)

// Principal identifies the caller behind a validated bearer token, the output of Authorize (C1 Token Authorizer).
type Principal struct {
	UserID    uuid.UUID `json:"userId"`
	Tier      string    `json:"tier"`
	Federated bool      `json:"federated"`
}

// Authorizer implements C1: Bearer-token verification with a local-HS256-first, federated-RS256-fallback strategy,
// a Valkey decision cache, and a jti revocation deny-list.
type Authorizer struct {
	secret      string
	issuer      string
	audience    string
	jwks        *JWKSVerifier // nil when no JWKS endpoint is configured
	rdb         *redis.Client
	decisionTTL time.Duration
}

func NewAuthorizer(secret, issuer, audience string, jwks *JWKSVerifier, rdb *redis.Client, decisionTTL time.Duration) *Authorizer {
	return &Authorizer{secret: secret, issuer: issuer, audience: audience, jwks: jwks, rdb: rdb, decisionTTL: decisionTTL}
}

func digestKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "authcache:" + hex.EncodeToString(sum[:])
}

func revokedKey(jti string) string {
	return "jti:" + jti
}

// Authorize parses "Bearer <token>", tries local HS256 verification first, and falls back to RS256+JWKS when the
// token carries a "kid" header the JWKS verifier can resolve. The verification result (not the revocation check,
// which is always re-checked live) is cached in Valkey for decisionTTL, keyed by a SHA-256 digest of the raw token
// so the cache never stores bearer secrets verbatim.
func (a *Authorizer) Authorize(ctx context.Context, rawHeader string) (Principal, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(rawHeader, prefix) || len(rawHeader) <= len(prefix) {
		return Principal{}, apierrors.New(apierrors.AuthMissing, "missing or malformed authorization header")
	}
	tokenStr := rawHeader[len(prefix):]

	principal, jti, err := a.verifyCached(ctx, tokenStr)
	if err != nil {
		return Principal{}, err
	}

	if jti != "" {
		revoked, err := a.rdb.Exists(ctx, revokedKey(jti)).Result()
		if err != nil {
			return Principal{}, apierrors.Wrap(apierrors.DependencyUnavailable, "check token revocation", err)
		}
		if revoked == 1 {
			return Principal{}, apierrors.New(apierrors.AuthRevoked, "token has been revoked")
		}
	}

	return principal, nil
}

func (a *Authorizer) verifyCached(ctx context.Context, tokenStr string) (Principal, string, error) {
	key := digestKey(tokenStr)
	if cached, err := a.rdb.Get(ctx, key).Result(); err == nil {
		var entry cachedDecision
		if jsonErr := json.Unmarshal([]byte(cached), &entry); jsonErr == nil {
			return entry.Principal, entry.JTI, nil
		}
	}

	principal, jti, ttl, err := a.verify(tokenStr)
	if err != nil {
		return Principal{}, "", err
	}

	cacheTTL := a.decisionTTL
	if ttl < cacheTTL {
		cacheTTL = ttl
	}
	if cacheTTL > 0 {
		entry := cachedDecision{Principal: principal, JTI: jti}
		if raw, err := json.Marshal(entry); err == nil {
			_ = a.rdb.Set(ctx, key, raw, cacheTTL).Err()
		}
	}

	return principal, jti, nil
}

type cachedDecision struct {
	Principal Principal `json:"principal"`
	JTI       string    `json:"jti"`
}

// verify tries local HS256 first, falling back to JWKS-backed RS256 when the token header names a "kid" the
// Authorizer can resolve. Returns the principal, the token's jti (empty for federated tokens, which this platform
// does not issue and therefore cannot revoke individually), and the token's remaining lifetime.
func (a *Authorizer) verify(tokenStr string) (Principal, string, time.Duration, error) {
	claims, err := ValidateAccessToken(tokenStr, a.secret, a.issuer, a.audience)
	if err == nil {
		userID, parseErr := uuid.Parse(claims.Subject)
		if parseErr != nil {
			return Principal{}, "", 0, apierrors.New(apierrors.AuthClaims, "invalid token subject")
		}
		ttl := time.Until(claims.ExpiresAt.Time)
		return Principal{UserID: userID, Tier: claims.Tier, Federated: false}, claims.ID, ttl, nil
	}

	if errors.Is(err, goldjwt.ErrTokenExpired) {
		return Principal{}, "", 0, apierrors.New(apierrors.AuthExpired, "token has expired")
	}

	if a.jwks == nil {
		return Principal{}, "", 0, apierrors.Wrap(apierrors.AuthSignature, "verify token", err)
	}

	fedClaims, fedErr := a.jwks.Verify(context.Background(), tokenStr)
	if fedErr != nil {
		return Principal{}, "", 0, apierrors.Wrap(apierrors.AuthSignature, "verify federated token", fedErr)
	}

	userID, parseErr := uuid.Parse(fedClaims.Subject)
	if parseErr != nil {
		return Principal{}, "", 0, apierrors.New(apierrors.AuthClaims, "invalid federated token subject")
	}

	return Principal{UserID: userID, Federated: true}, "", a.decisionTTL, nil
}

// Revoke adds the token's jti to the Valkey deny-list until it would have naturally expired, used by Logout.
func (a *Authorizer) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" || ttl <= 0 {
		return nil
	}
	if err := a.rdb.Set(ctx, revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
