package memory

import (
	"context"

	"github.com/rs/zerolog"

	"quiz-duel-service/internal/domain"
)

// LogReporter is the redis-less match reporter: it only logs results.
// Useful for development and as the default when no Redis is configured.
type LogReporter struct {
	log zerolog.Logger
}

func NewLogReporter(log zerolog.Logger) *LogReporter {
	return &LogReporter{log: log.With().Str("component", "reporter").Logger()}
}

func (r *LogReporter) Report(_ context.Context, result domain.PlayerResult) error {
	r.log.Info().
		Str("user", result.Username).
		Str("outcome", string(result.Outcome)).
		Int("score", result.Score).
		Str("mode", result.Mode).
		Msg("match result")
	return nil
}
