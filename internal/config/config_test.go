package config

import (
	"strings"
	"testing"
	"time"

	"github.com/kiliankoe/promptheist/internal/game"
)

func TestFromEnvDefaults(t *testing.T) {
	c, err := FromEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if c.Port != "8080" || c.Judge != "local" || c.Leaderboard != "sqlite" {
		t.Fatalf("unexpected defaults %+v", c)
	}
	if c.Timings() != game.DefaultTimings() {
		t.Fatalf("expected default timings, got %+v", c.Timings())
	}
	if len(c.CORSOrigins) != 1 || c.CORSOrigins[0] != "*" {
		t.Fatalf("expected wildcard origin, got %v", c.CORSOrigins)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("PHASE_SUBMIT", "90s")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("EXPORT_ENABLED", "true")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if c.Port != "3000" || c.SubmitDuration != 90*time.Second || !c.ExportEnabled {
		t.Fatalf("unexpected config %+v", c)
	}
	if len(c.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", c.CORSOrigins)
	}
}

func TestFromEnvError(t *testing.T) {
	t.Setenv("JUDGE_TIMEOUT", "soon")
	_, err := FromEnv()
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env error, got %v", err)
	}
}
