package edge

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/httputil"
)

// sensitiveRateLimit and sensitiveRateWindow bound the four listed quest routes (POST /quests, POST
// /quests/check-completion, GET /quests/analytics, POST /quests/templates) more tightly than the general usage-plan
// burst rate, regardless of tier.
const (
	sensitiveRateLimit  = 10
	sensitiveRateWindow = time.Minute
)

// SensitiveLimiter enforces sensitiveRateLimit per principal per route, independent of and in addition to
// PlanLimiter's burst counter.
type SensitiveLimiter struct {
	rdb *redis.Client
}

func NewSensitiveLimiter(rdb *redis.Client) *SensitiveLimiter {
	return &SensitiveLimiter{rdb: rdb}
}

func (l *SensitiveLimiter) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		principal := auth.PrincipalFromContext(c)
		key := "edge:sensitive:" + c.Path() + ":" + principal.UserID.String()

		ctx := c.Context()
		count, err := l.rdb.Incr(ctx, key).Result()
		if err != nil {
			return httputil.HandleError(c, apierrors.Wrap(apierrors.DependencyUnavailable, "check sensitive rate limit", err))
		}
		if count == 1 {
			if err := l.rdb.Expire(ctx, key, sensitiveRateWindow).Err(); err != nil {
				return httputil.HandleError(c, apierrors.Wrap(apierrors.DependencyUnavailable, "expire sensitive rate limit", err))
			}
		}
		if int(count) > sensitiveRateLimit {
			return httputil.HandleError(c, apierrors.New(apierrors.Throttled, "too many requests to this endpoint, slow down"))
		}

		return c.Next()
	}
}
