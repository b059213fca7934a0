package guild

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/goalguild/core-service/internal/store"
)

// rankingStore is the slice of store.GuildRepository/store.MemberRepository the aggregation job needs.
type rankingStore interface {
	ScanAll(ctx context.Context, visit func([]store.Guild) error) error
	Update(ctx context.Context, guildID string, expectedVersion int64, buildUpdate func() (string, map[string]string, map[string]any, error)) error
}

type rankingMemberStore interface {
	ListByGuild(ctx context.Context, guildID string, page store.Page) ([]store.Member, string, error)
}

// RankingJob recomputes every guild's ranking score on an hourly tick, so a request for a guild's score is always a
// plain row read rather than an aggregation performed inline with the request.
type RankingJob struct {
	guilds   rankingStore
	members  rankingMemberStore
	interval time.Duration
}

func NewRankingJob(guilds *store.GuildRepository, members *store.MemberRepository) *RankingJob {
	return &RankingJob{guilds: guilds, members: members, interval: time.Hour}
}

// Run blocks, recomputing rankings once immediately and then every interval, until ctx is cancelled. Intended to be
// launched in its own goroutine from cmd/, mirroring the teacher's purgeExpiredData/ticker pattern in cmd/uncord.
func (j *RankingJob) Run(ctx context.Context) {
	j.recomputeAll(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.recomputeAll(ctx)
		}
	}
}

func (j *RankingJob) recomputeAll(ctx context.Context) {
	updated := 0
	err := j.guilds.ScanAll(ctx, func(guilds []store.Guild) error {
		for _, g := range guilds {
			if err := j.recomputeOne(ctx, g); err != nil {
				log.Warn().Err(err).Str("guildId", g.GuildID).Msg("failed to recompute guild ranking score")
				continue
			}
			updated++
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Msg("guild ranking scan failed")
		return
	}
	log.Info().Int("guilds", updated).Msg("recomputed guild ranking scores")
}

// recomputeOne scores a guild by its member count, log-scaled so a handful of very large guilds don't flatten the
// ranking for everyone else, plus a small recency boost favoring guilds created more recently.
func (j *RankingJob) recomputeOne(ctx context.Context, g store.Guild) error {
	memberCount, err := j.countMembers(ctx, g.GuildID)
	if err != nil {
		return err
	}

	ageDays := time.Since(g.CreatedAt).Hours() / 24
	recencyBoost := 1.0
	if ageDays < 30 {
		recencyBoost = 1.0 + (30-ageDays)/30*0.2
	}
	score := math.Log1p(float64(memberCount)) * recencyBoost

	return j.guilds.Update(ctx, g.GuildID, g.Version, func() (string, map[string]string, map[string]any, error) {
		return "SET rankingScore = :s, memberCount = :m, updatedAt = :u", nil, map[string]any{
			":s": score,
			":m": memberCount,
			":u": time.Now().UTC(),
		}, nil
	})
}

func (j *RankingJob) countMembers(ctx context.Context, guildID string) (int, error) {
	count := 0
	cursor := ""
	for {
		members, next, err := j.members.ListByGuild(ctx, guildID, store.Page{Limit: store.MaxPageSize, Cursor: cursor})
		if err != nil {
			return 0, err
		}
		for _, m := range members {
			if !m.Blocked {
				count++
			}
		}
		if next == "" {
			return count, nil
		}
		cursor = next
	}
}
