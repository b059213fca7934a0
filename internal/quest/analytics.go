package quest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goalguild/core-service/internal/apierrors"
	"github.com/goalguild/core-service/internal/store"
)

// analyticsCacheTTL is spec.md §4.5's 10-minute cache window for GET /quests/analytics.
const analyticsCacheTTL = 10 * time.Minute

// Period is the analytics window a caller may request.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodAll   Period = "all"
)

// Analytics is the aggregate returned by GET /quests/analytics?period=….
type Analytics struct {
	Period               Period         `json:"period"`
	CountsByState         map[string]int `json:"countsByState"`
	CompletionRate        float64        `json:"completionRate"`
	AverageTimeToComplete float64        `json:"averageTimeToCompleteSeconds"`
	XPEarned              int            `json:"xpEarned"`
}

// AnalyticsService wraps Service with a Valkey-backed cache, mirroring internal/auth's Authorizer decision-cache
// pattern (JSON-marshaled value, SHA-free plain key here since the cache key has no secret to protect).
type AnalyticsService struct {
	*Service
	rdb *redis.Client
}

func NewAnalyticsService(svc *Service, rdb *redis.Client) *AnalyticsService {
	return &AnalyticsService{Service: svc, rdb: rdb}
}

// Analytics computes (or returns from cache) the analytics aggregate for a user's quest partition over period.
func (s *AnalyticsService) Analytics(ctx context.Context, ownerID string, period Period) (Analytics, error) {
	if period == "" {
		period = PeriodAll
	}
	key := analyticsCacheKey(ownerID, period)

	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, key).Result(); err == nil {
			var a Analytics
			if jsonErr := json.Unmarshal([]byte(cached), &a); jsonErr == nil {
				return a, nil
			}
		}
	}

	a, err := s.compute(ctx, ownerID, period)
	if err != nil {
		return Analytics{}, err
	}

	if s.rdb != nil {
		if raw, err := json.Marshal(a); err == nil {
			_ = s.rdb.Set(ctx, key, raw, analyticsCacheTTL).Err()
		}
	}
	return a, nil
}

func (s *AnalyticsService) compute(ctx context.Context, ownerID string, period Period) (Analytics, error) {
	cutoff, err := periodCutoff(period)
	if err != nil {
		return Analytics{}, err
	}

	counts := map[string]int{
		string(store.QuestDraft):     0,
		string(store.QuestActive):    0,
		string(store.QuestCompleted): 0,
		string(store.QuestCancelled): 0,
		string(store.QuestFailed):    0,
	}
	var (
		total                 int
		completed             int
		xpEarned              int
		completionSecondsSum  float64
		completionSecondsSeen int
	)

	page := store.Page{Limit: store.MaxPageSize}
	for {
		quests, cursor, err := s.quests.List(ctx, ownerID, page)
		if err != nil {
			return Analytics{}, fmt.Errorf("list quests: %w", err)
		}
		for _, q := range quests {
			if q.CreatedAt.Before(cutoff) {
				continue
			}
			total++
			counts[string(q.Status)]++
			if q.Status == store.QuestCompleted {
				completed++
				xpEarned += q.RewardXP
				if !q.StartedAt.IsZero() && !q.CompletedAt.IsZero() {
					completionSecondsSum += q.CompletedAt.Sub(q.StartedAt).Seconds()
					completionSecondsSeen++
				}
			}
		}
		if cursor == "" {
			break
		}
		page.Cursor = cursor
	}

	var completionRate, avgCompletion float64
	if total > 0 {
		completionRate = float64(completed) / float64(total)
	}
	if completionSecondsSeen > 0 {
		avgCompletion = completionSecondsSum / float64(completionSecondsSeen)
	}

	return Analytics{
		Period:                period,
		CountsByState:         counts,
		CompletionRate:        completionRate,
		AverageTimeToComplete: avgCompletion,
		XPEarned:              xpEarned,
	}, nil
}

func periodCutoff(period Period) (time.Time, error) {
	now := time.Now().UTC()
	switch period {
	case PeriodWeek:
		return now.AddDate(0, 0, -7), nil
	case PeriodMonth:
		return now.AddDate(0, -1, 0), nil
	case PeriodAll:
		return time.Time{}, nil
	default:
		return time.Time{}, apierrors.New(apierrors.ValidationFailed, "period must be one of week, month, all")
	}
}

func analyticsCacheKey(ownerID string, period Period) string {
	return fmt.Sprintf("quest:analytics:%s:%s", ownerID, period)
}
