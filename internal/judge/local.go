package judge

import (
	"context"
	"math"
	"strings"
	"unicode"
)

// Local scores a guess by the overlap of its word set with the secret's
// (Jaccard similarity). It runs in process and never fails.
type Local struct{}

func (Local) Score(ctx context.Context, guess, secret string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}
	if strings.TrimSpace(guess) == "" || strings.TrimSpace(secret) == "" {
		return Verdict{Score: 0, Reasoning: "Empty input.", XPDelta: 0}, nil
	}
	g := tokens(guess)
	s := tokens(secret)
	inter := 0
	union := len(s)
	for t := range g {
		if _, ok := s[t]; ok {
			inter++
		} else {
			union++
		}
	}
	score := math.RoundToEven(float64(inter) / float64(max(1, union)) * 100)
	score = max(0, min(100, score))
	return Verdict{Score: score, Reasoning: band(int(score)), XPDelta: score}, nil
}

func tokens(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func band(score int) string {
	switch {
	case score >= 85:
		return "Strong match on subject and style."
	case score >= 70:
		return "Good alignment, missing a few key cues."
	case score >= 55:
		return "Some overlap, but differs in core details."
	case score >= 35:
		return "Partial overlap; main tone differs."
	default:
		return "Low similarity."
	}
}
