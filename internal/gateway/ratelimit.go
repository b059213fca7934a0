package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// messageRateLimit and messageRateWindow bound how many chat messages a single user may send per room per rolling
// minute, distinct from collab's fixed-window invite counter: a sliding window tracked in a Valkey sorted set rather
// than a plain INCR+EXPIRE counter, since a fixed window lets a user burst 2x the limit across a window boundary.
const (
	messageRateLimit  = 30
	messageRateWindow = time.Minute
)

// messageRateLimiter enforces messageRateLimit sends per messageRateWindow per user per room. Each send scores a
// sorted-set member by its send time; members older than the window are trimmed before counting, so the limit always
// reflects the trailing window rather than a fixed bucket.
type messageRateLimiter struct {
	rdb *redis.Client
}

func newMessageRateLimiter(rdb *redis.Client) *messageRateLimiter {
	return &messageRateLimiter{rdb: rdb}
}

func messageRateKey(roomID, userID string) string {
	return "gateway:msgrate:" + roomID + ":" + userID
}

// Allow records one send attempt and reports whether it is within the limit. A rejected attempt is still recorded:
// the caller is expected to close the connection rather than keep retrying, so the window should not keep growing.
func (l *messageRateLimiter) Allow(ctx context.Context, roomID, userID string) (bool, error) {
	key := messageRateKey(roomID, userID)
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-messageRateWindow).UnixNano(), 10)
	member := strconv.FormatInt(now.UnixNano(), 10)

	pipe := l.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", cutoff)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, messageRateWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("check message rate limit: %w", err)
	}

	return card.Val() <= messageRateLimit, nil
}
