package judge

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Traced wraps an oracle so that every call becomes a span.
type Traced struct {
	Next   Oracle
	Name   string
	tracer trace.Tracer
}

func NewTraced(next Oracle, name string) *Traced {
	return &Traced{Next: next, Name: name, tracer: otel.Tracer("github.com/kiliankoe/promptheist/internal/judge")}
}

func (t *Traced) Score(ctx context.Context, guess, secret string) (Verdict, error) {
	ctx, span := t.tracer.Start(ctx, "judge.Score", trace.WithAttributes(
		attribute.String("judge.oracle", t.Name),
		attribute.Int("judge.guess_runes", len([]rune(guess))),
	))
	defer span.End()

	v, err := t.Next.Score(ctx, guess, secret)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return v, err
	}
	span.SetAttributes(
		attribute.Float64("judge.score", v.Score),
		attribute.Float64("judge.xp_delta", v.XPDelta),
	)
	return v, nil
}
