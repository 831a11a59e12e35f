// Package judge scores guesses against a round's secret prompt.
package judge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

var (
	ErrUnusable = errors.New("judge returned an unusable verdict")
	ErrNoOracle = errors.New("no oracle configured")
)

// FallbackReasoning is attached to every score produced without an oracle.
const FallbackReasoning = "Scored by the fallback rule because the judge was unavailable."

// Verdict is what an oracle returns for one guess.
type Verdict struct {
	Score     float64 `json:"score"`
	Reasoning string  `json:"reasoning"`
	XPDelta   float64 `json:"xpDelta"`
}

// Oracle scores a single guess. Implementations must honour ctx cancellation.
type Oracle interface {
	Score(ctx context.Context, guess, secret string) (Verdict, error)
}

// OracleFunc adapts a plain function to Oracle.
type OracleFunc func(ctx context.Context, guess, secret string) (Verdict, error)

func (f OracleFunc) Score(ctx context.Context, guess, secret string) (Verdict, error) {
	return f(ctx, guess, secret)
}

// Check rejects verdicts that cannot be trusted: non-finite numbers, and a
// bare zero without reasoning for a non-empty guess and secret.
func Check(v Verdict, guess, secret string) error {
	if math.IsNaN(v.Score) || math.IsInf(v.Score, 0) {
		return fmt.Errorf("%w: score %v", ErrUnusable, v.Score)
	}
	if math.IsNaN(v.XPDelta) || math.IsInf(v.XPDelta, 0) {
		return fmt.Errorf("%w: xp %v", ErrUnusable, v.XPDelta)
	}
	if v.Score == 0 && v.Reasoning == "" && guess != "" && secret != "" {
		return fmt.Errorf("%w: empty zero score", ErrUnusable)
	}
	return nil
}

// Fallback is the deterministic score used when no oracle result is usable.
func Fallback(guess string) int {
	return min(100, 40+utf8.RuneCountInString(guess)%61)
}

// Result is a normalized score for one guess.
type Result struct {
	Score     int
	Reasoning string
	XP        int
	Fallback  bool
	Err       error
}

// Judge asks o for a verdict within timeout and falls back on any failure.
func Judge(ctx context.Context, o Oracle, guess, secret string, timeout time.Duration) Result {
	if o == nil {
		return fallbackResult(guess, ErrNoOracle)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := o.Score(ctx, guess, secret)
	if err == nil {
		err = Check(v, guess, secret)
	}
	if err != nil {
		return fallbackResult(guess, err)
	}
	score := clamp(int(math.Round(v.Score)))
	return Result{
		Score:     score,
		Reasoning: v.Reasoning,
		XP:        max(0, int(math.Round(v.XPDelta))),
	}
}

// ScoreAll judges every guess concurrently, at most limit at a time, and
// returns results in input order. It never fails; errors end up in Result.Err.
func ScoreAll(ctx context.Context, o Oracle, secret string, guesses []string, timeout time.Duration, limit int) []Result {
	results := make([]Result, len(guesses))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, guess := range guesses {
		g.Go(func() error {
			results[i] = Judge(gctx, o, guess, secret, timeout)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func fallbackResult(guess string, err error) Result {
	score := Fallback(guess)
	return Result{
		Score:     score,
		Reasoning: FallbackReasoning,
		XP:        score,
		Fallback:  true,
		Err:       err,
	}
}

func clamp(score int) int {
	return max(0, min(100, score))
}
