package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"quiz-duel-service/internal/domain"
)

// Rating and XP deltas per outcome. The raw match score is added to XP on
// top of the base grant so longer, higher-scoring matches pay out more.
const (
	winRating  = 25
	lossRating = -15
	drawRating = 5

	winXP  = 50
	lossXP = 10
	drawXP = 25
)

// MatchReporter persists per-player rating/XP changes into Redis hashes:
//
//	HINCRBY player:{username}:stats rating {delta}
//	HINCRBY player:{username}:stats xp     {delta}
//	HINCRBY player:{username}:stats wins|losses|draws 1
//
// The coordinator calls it once per participant of a finished match and
// tolerates failures; the leaderboard service reads these keys.
type MatchReporter struct {
	client *redis.Client
}

func NewMatchReporter(client *redis.Client) *MatchReporter {
	return &MatchReporter{client: client}
}

func (r *MatchReporter) Report(ctx context.Context, result domain.PlayerResult) error {
	var rating, xp int
	var bucket string
	switch result.Outcome {
	case domain.OutcomeWin:
		rating, xp, bucket = winRating, winXP, "wins"
	case domain.OutcomeLoss:
		rating, xp, bucket = lossRating, lossXP, "losses"
	default:
		rating, xp, bucket = drawRating, drawXP, "draws"
	}
	xp += result.Score

	key := r.statsKey(result.Username)
	pipe := r.client.Pipeline()
	pipe.HIncrBy(ctx, key, "rating", int64(rating))
	pipe.HIncrBy(ctx, key, "xp", int64(xp))
	pipe.HIncrBy(ctx, key, bucket, 1)
	pipe.HIncrBy(ctx, key, "matches", 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("report match result: %w", err)
	}
	return nil
}

func (r *MatchReporter) statsKey(username string) string {
	return "player:" + username + ":stats"
}
