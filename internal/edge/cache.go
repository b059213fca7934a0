package edge

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/goalguild/core-service/internal/auth"
)

// ResponseCache is the principal-keyed, Valkey-backed response cache for read-only endpoints. Cached bodies are
// sealed with AES-256-GCM, a random nonce prepended to the ciphertext, before being written to Valkey.
type ResponseCache struct {
	rdb *redis.Client
	key []byte
}

// NewResponseCache builds a ResponseCache from a hex-encoded 32-byte AES key (config.Config.CacheEncryptionKey).
func NewResponseCache(rdb *redis.Client, hexKey string) (*ResponseCache, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode cache encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, errors.New("cache encryption key must be 32 bytes (64 hex characters)")
	}
	return &ResponseCache{rdb: rdb, key: key}, nil
}

// Wrap returns a handler that serves cached bodies on a hit and, on a miss, runs next and caches a successful JSON
// response for ttl. The cache key always folds in the authenticated principal, so one user's cached page is never
// served to another.
func (rc *ResponseCache) Wrap(ttl time.Duration, next fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		key := rc.cacheKey(c)

		if body, ok, err := rc.get(c.Context(), key); err == nil && ok {
			c.Set("Content-Type", "application/json")
			c.Set("X-Cache", "HIT")
			return c.Status(fiber.StatusOK).Send(body)
		}

		if err := next(c); err != nil {
			return err
		}

		if c.Response().StatusCode() == fiber.StatusOK {
			_ = rc.set(c.Context(), key, c.Response().Body(), ttl)
		}
		return nil
	}
}

func (rc *ResponseCache) cacheKey(c fiber.Ctx) string {
	principal := auth.PrincipalFromContext(c)
	key := "edge:cache:" + principal.UserID.String() + ":" + c.Path()
	for _, param := range cacheableQueryParams {
		if v := c.Query(param); v != "" {
			key += ":" + param + "=" + v
		}
	}
	return key
}

// cacheableQueryParams folds in the query parameters the cached list/analytics endpoints vary on, so two distinct
// pages (or date ranges) for the same principal/path never collide on the same cache entry.
var cacheableQueryParams = []string{"page", "limit", "cursor", "from", "to"}

func (rc *ResponseCache) get(ctx context.Context, key string) ([]byte, bool, error) {
	sealed, err := rc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	plaintext, err := rc.open(sealed)
	if err != nil {
		// A corrupt or stale-keyed entry is treated as a miss rather than an error surfaced to the caller.
		return nil, false, nil
	}
	return plaintext, true, nil
}

func (rc *ResponseCache) set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	sealed, err := rc.seal(body)
	if err != nil {
		return fmt.Errorf("seal cache entry: %w", err)
	}
	if err := rc.rdb.Set(ctx, key, sealed, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

func (rc *ResponseCache) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(rc.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (rc *ResponseCache) open(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(rc.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, errors.New("cache entry too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	return gcm.Open(nil, nonce, ciphertext, nil)
}

// TTLs for the resources SPEC_FULL.md names explicitly.
const (
	QuestListTTL = 5 * time.Minute
	AnalyticsTTL = 10 * time.Minute
	TemplatesTTL = 15 * time.Minute
	ProfileTTL   = 5 * time.Minute
)
