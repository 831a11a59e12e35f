package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kiliankoe/promptheist/internal/ai"
	"github.com/kiliankoe/promptheist/internal/ai/ollama"
	"github.com/kiliankoe/promptheist/internal/ai/openai"
	"github.com/kiliankoe/promptheist/internal/api"
	"github.com/kiliankoe/promptheist/internal/config"
	"github.com/kiliankoe/promptheist/internal/content"
	"github.com/kiliankoe/promptheist/internal/game"
	"github.com/kiliankoe/promptheist/internal/identity"
	"github.com/kiliankoe/promptheist/internal/judge"
	"github.com/kiliankoe/promptheist/internal/telemetry"
	"github.com/kiliankoe/promptheist/internal/ws"
	"github.com/kiliankoe/promptheist/internal/xp"
	"github.com/kiliankoe/promptheist/internal/xp/jsonfile"
	"github.com/kiliankoe/promptheist/internal/xp/redisstore"
	"github.com/kiliankoe/promptheist/internal/xp/sqlite"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var version = "dev" // Set at build time via -ldflags

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Prompt Heist - multiplayer prompt guessing game server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT                  Port to listen on (default: 8080)
  LOG_LEVEL             debug, info, warn or error (default: info)
  JUDGE                 local, remote, openai or ollama (default: local)
  JUDGE_URL             Remote judge endpoint (JUDGE=remote)
  JUDGE_TOKEN           Bearer token for the remote judge
  JUDGE_TIMEOUT         Per-submission judge timeout (default: 20s)
  DEFAULT_MODEL         Model for the openai/ollama judges
  OPENAI_API_KEY        OpenAI API key (JUDGE=openai)
  OLLAMA_HOST           Ollama host URL (default: http://localhost:11434)
  CASE_PACK             Path to a JSON case pack (default: built-in pack)
  ROUNDS_PER_MATCH      Rounds per match (default: 3)
  PHASE_*               Phase durations, e.g. PHASE_SUBMIT=75s
  LEADERBOARD           sqlite, redis, json or none (default: sqlite)
  DB_PATH               SQLite file (default: ./data/prompt-heist.sqlite)
  REDIS_ADDR            Redis address (default: localhost:6379)
  EXPORT_ENABLED        Append match results to a file (default: false)
  EXPORT_FILE           Path for exported results
  OTEL_EXPORTER_OTLP_ENDPOINT  Enable tracing to this OTLP/HTTP endpoint

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Prompt Heist %s\n", version)
		return
	}

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "prompt-heist", version, cfg.OTelEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	pack, err := loadPack(cfg.CasePack)
	if err != nil {
		log.Fatal().Err(err).Msg("load case pack")
	}
	oracle, err := newOracle(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("configure judge")
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open leaderboard")
	}
	if store != nil {
		defer store.Close()
	}

	directory := identity.NewDirectory()
	sock, err := ws.New()
	if err != nil {
		log.Fatal().Err(err).Msg("configure sockets")
	}
	deps := game.Deps{
		Oracle:           oracle,
		Rounds:           pack,
		Names:            directory,
		Timings:          cfg.Timings(),
		RoundsPerMatch:   cfg.RoundsPerMatch,
		JudgeTimeout:     cfg.JudgeTimeout,
		JudgeConcurrency: cfg.JudgeConcurrency,
	}
	if store != nil {
		deps.Ledger = store
	}
	if cfg.ExportEnabled {
		deps.Recorder = game.NewFileExporter(cfg.ExportFile)
	}

	feed := ws.NewFeed()
	deps.Notifier = ws.Fanout{sock, feed}
	games := game.NewManager(deps)
	defer games.Close()
	sock.SetGames(games)
	feed.SetGames(games)

	gin.SetMode(gin.ReleaseMode)
	r := api.NewRouter(api.Deps{
		Games:       games,
		Store:       store,
		Directory:   directory,
		Verifier:    identity.Verifier{MaxAge: cfg.SignatureMaxAge},
		Feed:        feed.Handle,
		CORSOrigins: cfg.CORSOrigins,
	})
	io := sock.Mount(r)
	defer io.Close()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		log.Info().Str("port", cfg.Port).Str("judge", cfg.Judge).Str("leaderboard", cfg.Leaderboard).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
}

func loadPack(path string) (*content.Pack, error) {
	if path == "" {
		return content.Default()
	}
	return content.Load(path)
}

func newOracle(cfg config.Config) (judge.Oracle, error) {
	var oracle judge.Oracle
	switch name := strings.ToLower(cfg.Judge); name {
	case "", "local":
		oracle = judge.Local{}
	case "remote":
		if cfg.JudgeURL == "" {
			return nil, errors.New("JUDGE_URL is required for the remote judge")
		}
		oracle = judge.NewRemote(cfg.JudgeURL, cfg.JudgeToken)
	case "openai", "ollama":
		providers := ai.Registry{
			"openai": openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL),
			"ollama": ollama.New(cfg.OllamaHost),
		}
		p, err := providers.Get(name)
		if err != nil {
			return nil, err
		}
		oracle = &judge.LLM{Provider: p, Model: cfg.DefaultModel, SystemPrompt: cfg.SystemPrompt}
	default:
		return nil, fmt.Errorf("unknown judge %q", cfg.Judge)
	}
	return judge.NewTraced(oracle, cfg.Judge), nil
}

func openStore(ctx context.Context, cfg config.Config) (xp.Store, error) {
	switch strings.ToLower(cfg.Leaderboard) {
	case "", "sqlite":
		return sqlite.Open(cfg.DBPath)
	case "redis":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return redisstore.Dial(dialCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "json":
		return jsonfile.Open(cfg.LeaderboardFile)
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown leaderboard backend %q", cfg.Leaderboard)
	}
}
