package game

import (
	"context"
	"time"

	"github.com/kiliankoe/promptheist/internal/judge"
	"github.com/rs/zerolog"
)

// ScoreJob judges every submission of a sealed round. Oracle failures are
// logged and replaced by the fallback score; the result is never short.
func ScoreJob(ctx context.Context, o judge.Oracle, job *ScoringJob, timeout time.Duration, limit int, logger zerolog.Logger) []ScoreEntry {
	guesses := make([]string, len(job.Submissions))
	for i, s := range job.Submissions {
		guesses[i] = s.Text
	}
	results := judge.ScoreAll(ctx, o, job.Secret, guesses, timeout, limit)
	entries := make([]ScoreEntry, 0, len(results))
	for i, r := range results {
		identity := job.Submissions[i].Identity
		if r.Err != nil {
			logger.Warn().Err(r.Err).
				Str("round", job.RoundID).
				Str("wallet", identity).
				Int("score", r.Score).
				Msg("judge unavailable, using fallback score")
		}
		entries = append(entries, ScoreEntry{
			Identity:  identity,
			Score:     r.Score,
			Reasoning: r.Reasoning,
			XP:        r.XP,
			Fallback:  r.Fallback,
		})
	}
	return entries
}
