package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/knowbot/internal/config"
	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/internal/providers/llm"
	"github.com/sandevgo/knowbot/internal/service/command"
	"github.com/sandevgo/knowbot/internal/service/conversation"
	"github.com/sandevgo/knowbot/internal/service/memory"
	"github.com/sandevgo/knowbot/internal/service/retention"
	"github.com/sandevgo/knowbot/internal/service/session"
	"github.com/sandevgo/knowbot/internal/storage/redis"
	"github.com/sandevgo/knowbot/internal/storage/sqlite"
	httptransport "github.com/sandevgo/knowbot/internal/transport/http"
	"github.com/sandevgo/knowbot/internal/transport/telegram"
	"github.com/sandevgo/knowbot/pkg/log"
	"github.com/sandevgo/knowbot/pkg/srv"
)

// app holds everything the commands share. cleanups run in reverse order.
type app struct {
	cfg      *config.AppConfig
	db       *sql.DB
	messages *sqlite.MessagesRepo
	sessions *session.Manager
	conv     *conversation.Manager
	router   *command.Router
	cleanups []srv.Service
}

func newApp(ctx context.Context) (*app, error) {
	logger := log.FromCtx(ctx)

	// init env
	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	a := &app{cfg: config.NewAppConfig(ctx)}
	llmCfg := config.NewLLMConfig(ctx)

	// 2. Storage
	db, err := sqlite.NewDB(ctx, a.cfg.GetDatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.db = db
	a.cleanups = append(a.cleanups, srv.NewCleanup("sqlite", db.Close))

	a.messages = sqlite.NewMessagesRepo(db)
	notes := sqlite.NewNotesRepo(db)

	// 3. Session state
	store, err := a.initStateStore(ctx)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.sessions = session.NewManager(store)

	// 4. AI Provider
	ai, err := llm.NewProvider(ctx, llmCfg, a.sessions)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}

	// 5. Memory: context and extraction
	builder := memory.NewContextBuilder(
		a.messages,
		memory.NewSysPrompt(a.cfg),
		a.cfg.ContextWindowSize,
		tokenBudget(ctx, a.cfg.ContextTokenBudget),
	)

	var extractor memory.Extractor = memory.NewKeywordExtractor()
	if a.cfg.Extractor == config.ExtractorLLM {
		extractor = memory.NewLLMExtractor(ai, extractor, a.cfg.ModelTimeout)
	}

	// 6. Conversation
	a.conv = conversation.NewManager(
		a.messages,
		notes,
		a.sessions,
		builder,
		ai,
		extractor,
		conversation.WithModelTimeout(a.cfg.ModelTimeout),
		conversation.WithHistoryLimit(a.cfg.HistoryLimit),
	)
	a.router = command.New(command.NewCommands(a.conv))

	return a, nil
}

func (a *app) initStateStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.StateBackend {
	case config.StateBackendSQLite, "":
		return sqlite.NewStateRepo(a.db), nil
	case config.StateBackendMemory:
		log.FromCtx(ctx).Warn().Msg("session state is kept in memory and will be lost on restart")
		return session.NewMemoryStore(), nil
	case config.StateBackendRedis:
		redisCfg := config.NewRedisConfig(ctx)
		client := redis.NewClient(redisCfg)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", redisCfg.Addr, err)
		}
		store := redis.NewStateStore(client, redisCfg.Prefix)
		a.cleanups = append(a.cleanups, srv.NewCleanup("redis", store.Close))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown state backend: %s", a.cfg.StateBackend)
	}
}

func (a *app) sweeper() *retention.Sweeper {
	return retention.NewSweeper(a.messages, a.sessions, a.cfg.RetentionKeep, a.cfg.RetentionInterval)
}

// services lists the long running parts of `knowbot serve`, storage first so
// it is shut down last.
func (a *app) services(ctx context.Context) ([]srv.Service, error) {
	services := append([]srv.Service{}, a.cleanups...)
	services = append(services, a.sweeper())

	if a.cfg.EnableHTTP {
		services = append(services, httptransport.NewServer(a.cfg.HTTPAddr, a.conv))
	}

	if a.cfg.EnableTelegram {
		tgCfg := config.NewTelegramConfig(ctx)
		bot, err := telegram.NewBot(ctx, tgCfg, a.conv, a.router)
		if err != nil {
			return nil, err
		}
		services = append(services, bot)
	}

	if len(services) == len(a.cleanups)+1 {
		log.FromCtx(ctx).Warn().Msg("no transports enabled, only the retention sweeper will run")
	}
	return services, nil
}

func (a *app) close(ctx context.Context) {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Error().Err(err).Msgf("%v failed to close", a.cleanups[i])
		}
	}
}

func tokenBudget(ctx context.Context, budget int) memory.ContextOption {
	if budget <= 0 {
		return memory.WithTokenBudget(0, nil)
	}

	counter, err := memory.NewTiktokenCounter()
	if err != nil {
		log.FromCtx(ctx).Warn().Err(err).Msg("token counter unavailable, context token budget disabled")
		return memory.WithTokenBudget(0, nil)
	}
	return memory.WithTokenBudget(budget, core.TokenCounter(counter))
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
