package edge

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/auth"
	"github.com/goalguild/core-service/internal/httputil"
)

// Plan describes one usage plan's daily quota and burst/rate allowance.
type Plan struct {
	DailyQuota  int
	BurstLimit  int
	BurstWindow time.Duration
}

// DefaultPlans is keyed by the same tier vocabulary store.User.Tier and the JWT "tier" claim carry
// (default/premium/admin). An unrecognized tier falls back to the "default" plan rather than rejecting the
// request, since a missing or legacy tier value should never leave a caller with no quota at all.
var DefaultPlans = map[string]Plan{
	"default": {DailyQuota: 2000, BurstLimit: 20, BurstWindow: time.Minute},
	"premium": {DailyQuota: 20000, BurstLimit: 60, BurstWindow: time.Minute},
	"admin":   {DailyQuota: 200000, BurstLimit: 300, BurstWindow: time.Minute},
}

// PlanLimiter enforces a usage plan's daily quota and burst rate, both tracked as fixed-window counters in Valkey,
// in the same incr+expire-on-first-increment shape as internal/collab's per-inviter hourly cap.
type PlanLimiter struct {
	rdb   *redis.Client
	plans map[string]Plan
}

func NewPlanLimiter(rdb *redis.Client, plans map[string]Plan) *PlanLimiter {
	if plans == nil {
		plans = DefaultPlans
	}
	return &PlanLimiter{rdb: rdb, plans: plans}
}

// Middleware must run after auth.RequireBearer so a Principal is present in context.
func (l *PlanLimiter) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		principal := auth.PrincipalFromContext(c)
		plan, ok := l.plans[principal.Tier]
		if !ok {
			plan = l.plans["default"]
		}

		ctx := c.Context()
		userID := principal.UserID.String()

		dayKey := dailyQuotaKey(userID)
		dayCount, err := l.rdb.Incr(ctx, dayKey).Result()
		if err != nil {
			return httputil.HandleError(c, apierrors.Wrap(apierrors.DependencyUnavailable, "check daily quota", err))
		}
		if dayCount == 1 {
			if err := l.rdb.Expire(ctx, dayKey, 24*time.Hour).Err(); err != nil {
				return httputil.HandleError(c, apierrors.Wrap(apierrors.DependencyUnavailable, "expire daily quota", err))
			}
		}
		if int(dayCount) > plan.DailyQuota {
			return httputil.HandleError(c, apierrors.New(apierrors.Throttled, "daily quota exceeded"))
		}

		burstKey := burstKey(userID)
		burstCount, err := l.rdb.Incr(ctx, burstKey).Result()
		if err != nil {
			return httputil.HandleError(c, apierrors.Wrap(apierrors.DependencyUnavailable, "check burst rate", err))
		}
		if burstCount == 1 {
			if err := l.rdb.Expire(ctx, burstKey, plan.BurstWindow).Err(); err != nil {
				return httputil.HandleError(c, apierrors.Wrap(apierrors.DependencyUnavailable, "expire burst rate", err))
			}
		}
		if int(burstCount) > plan.BurstLimit {
			return httputil.HandleError(c, apierrors.New(apierrors.Throttled, "rate limit exceeded, slow down"))
		}

		return c.Next()
	}
}

func dailyQuotaKey(userID string) string {
	return fmt.Sprintf("edge:quota:%s:%s", userID, time.Now().UTC().Format("2006-01-02"))
}

func burstKey(userID string) string { return "edge:burst:" + userID }
