package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessClaims holds the JWT claims for a locally issued access token: the registered claims plus the platform's
// tier claim used by the Edge Gateway's usage-plan throttling (C11).
type AccessClaims struct {
	jwt.RegisteredClaims
	Tier string `json:"tier,omitempty"`
}

// NewAccessToken creates a signed HS256 JWT access token for the given user, with a random jti so it can be
// targeted individually by the Valkey revocation deny-list (Logout).
func NewAccessToken(userID uuid.UUID, secret string, ttl time.Duration, issuer, audience, tier string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("JWT secret must not be empty")
	}
	if issuer == "" {
		return "", fmt.Errorf("JWT issuer must not be empty")
	}

	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Tier: tier,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}

	return signed, nil
}

// ValidateAccessToken parses and validates a locally issued HS256 access token, enforcing HMAC signing method and
// the configured issuer/audience.
func ValidateAccessToken(tokenStr, secret, issuer, audience string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	parserOpts := []jwt.ParserOption{jwt.WithIssuer(issuer)}
	if audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(audience))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
