package auth

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// FederatedClaims holds the claims extracted from an RS256 token verified against an external JWKS endpoint, per
// spec.md's federated-login path.
type FederatedClaims struct {
	Subject string
	Issuer  string
}

// JWKSVerifier resolves RS256 tokens whose header carries a "kid" against a configured JWKS endpoint, caching keys
// per jwx's auto-refreshing cache so steady-state verification does not refetch the key set on every request.
type JWKSVerifier struct {
	cache    *jwk.Cache
	jwksURL  string
	issuer   string
	audience string
}

// NewJWKSVerifier builds a verifier backed by an auto-refreshing JWKS cache. ctx bounds the initial fetch only;
// background refreshes use their own internal context.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string) (*JWKSVerifier, error) {
	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL); err != nil {
		return nil, fmt.Errorf("register jwks endpoint: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("initial jwks fetch: %w", err)
	}
	return &JWKSVerifier{cache: cache, jwksURL: jwksURL, issuer: issuer, audience: audience}, nil
}

// Verify checks an RS256 token's signature against the cached key set and validates iss/aud/exp.
func (v *JWKSVerifier) Verify(ctx context.Context, tokenStr string) (*FederatedClaims, error) {
	keySet, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenStr),
		jwt.WithKeySet(keySet),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("verify federated token: %w", err)
	}

	return &FederatedClaims{Subject: token.Subject(), Issuer: token.Issuer()}, nil
}
