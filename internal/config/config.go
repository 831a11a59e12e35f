package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/kiliankoe/promptheist/internal/game"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Judge selects the scoring oracle: "local", "remote", "openai" or "ollama".
	Judge            string        `env:"JUDGE" envDefault:"local"`
	JudgeURL         string        `env:"JUDGE_URL"`
	JudgeToken       string        `env:"JUDGE_TOKEN"`
	JudgeTimeout     time.Duration `env:"JUDGE_TIMEOUT" envDefault:"20s"`
	JudgeConcurrency int           `env:"JUDGE_CONCURRENCY" envDefault:"8"`
	DefaultModel     string        `env:"DEFAULT_MODEL" envDefault:"gpt-4o-mini"`
	SystemPrompt     string        `env:"SYSTEM_PROMPT"`
	OpenAIKey        string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `env:"OPENAI_BASE_URL"`
	OllamaHost       string        `env:"OLLAMA_HOST" envDefault:"http://localhost:11434"`

	CasePack       string `env:"CASE_PACK"`
	RoundsPerMatch int    `env:"ROUNDS_PER_MATCH" envDefault:"3"`

	RevealDuration          time.Duration `env:"PHASE_REVEAL" envDefault:"30s"`
	SubmitDuration          time.Duration `env:"PHASE_SUBMIT" envDefault:"75s"`
	VerdictDuration         time.Duration `env:"PHASE_VERDICT" envDefault:"20s"`
	ChallengeWindowDuration time.Duration `env:"PHASE_CHALLENGE_WINDOW" envDefault:"20s"`
	ChallengeVoteDuration   time.Duration `env:"PHASE_CHALLENGE_VOTE" envDefault:"120s"`

	// Leaderboard selects the XP backend: "sqlite", "redis", "json" or "none".
	Leaderboard     string `env:"LEADERBOARD" envDefault:"sqlite"`
	DBPath          string `env:"DB_PATH" envDefault:"./data/prompt-heist.sqlite"`
	LeaderboardFile string `env:"LEADERBOARD_FILE" envDefault:"./data/leaderboard.json"`
	RedisAddr       string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword   string `env:"REDIS_PASSWORD"`
	RedisDB         int    `env:"REDIS_DB" envDefault:"0"`

	SignatureMaxAge time.Duration `env:"SIGNATURE_MAX_AGE" envDefault:"10m"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	ExportEnabled bool   `env:"EXPORT_ENABLED" envDefault:"false"`
	ExportFile    string `env:"EXPORT_FILE" envDefault:"./prompt-heist-results.txt"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// FromEnv reads the configuration from environment variables.
func FromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return c, nil
}

func (c Config) Timings() game.Timings {
	return game.Timings{
		Reveal:          c.RevealDuration,
		Submit:          c.SubmitDuration,
		Verdict:         c.VerdictDuration,
		ChallengeWindow: c.ChallengeWindowDuration,
		ChallengeVote:   c.ChallengeVoteDuration,
	}
}
