package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"trivia-service/internal/app"
	"trivia-service/internal/async"
	"trivia-service/internal/config"
	"trivia-service/internal/domain"
	"trivia-service/internal/infra/memory"
	infrapg "trivia-service/internal/infra/postgres"
	infraredis "trivia-service/internal/infra/redis"
	transport "trivia-service/internal/transport/http"
	"trivia-service/pkg/logger"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string, debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, *debug)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string, debug bool) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
	}
	log := logger.New(debug)
	defer log.Sync()

	settings := buildSettings(cfg)
	worker := async.New()

	storage, bunDB := openStatsStorage(ctx, cfg, log)
	if bunDB != nil {
		defer bunDB.Close()
	}

	stats := app.NewStatsCache(storage, worker, log)
	if storage == nil {
		stats.DisablePersistence()
	} else {
		pgStorage := storage.(*infrapg.StatsStorage)
		_ = worker.Run(func(ctx context.Context) {
			if err := pgStorage.EnsureSchema(ctx); err != nil {
				log.Error("failed to initialize the stats schema", zap.Error(err))
				stats.DisablePersistence()
			}
		})
	}

	source := func(ctx context.Context) ([]*domain.Question, error) {
		return loadQuestions(ctx, cfg, log)
	}
	questions, err := source(ctx)
	if err != nil {
		return err
	}
	pool := app.NewQuestionPool(questions, settings, time.Now().UnixNano())
	if pool.Size() == 0 {
		log.Warn("no quiz questions were loaded")
	}

	var presence interface {
		app.Presence
		transport.Registrar
	}
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		presence = infraredis.NewPresence(client, log)
	} else {
		presence = memory.NewPresence()
	}

	hub := transport.NewHub()
	rewards := app.NewRewards(rewardProfiles(cfg), nil, hub, log)
	rounds := app.NewRoundManager(settings, presence, hub, stats, rewards, log)
	gate := app.NewDurationGate(presence, settings.MinOnlineTime)
	answers := app.NewAnswerService(settings, rounds, hub, gate)
	scheduler := app.NewScheduler(settings, pool, rounds, log)
	scheduler.Start()

	wsHandler := transport.NewWSHandler(settings, hub, presence, answers, rounds, pool, stats, source, log)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting trivia service", zap.String("port", finalPort), zap.Int("questions", pool.Size()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("failed to start server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down")
	case <-ctx.Done():
		log.Info("context canceled, shutting down")
	}

	// Shutdown order: stop producing rounds, drop the open round without
	// recording, then flush what the cache already holds.
	scheduler.Stop()
	rounds.Abort()
	stats.FlushDirtyBlocking(5 * time.Second)
	worker.Shutdown(5 * time.Second)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildSettings(cfg config.Config) app.Settings {
	return app.Settings{
		Enabled:          cfg.Quiz.Enabled,
		AutoEnabled:      cfg.Quiz.Auto.Enabled,
		AutoInterval:     cfg.AutoInterval(),
		RoundTimeLimit:   cfg.RoundTimeLimit(),
		MultipleWinners:  cfg.Quiz.Round.AllowMultipleWinners,
		AllowChatAnswers: cfg.Quiz.Answer.AllowChat,
		ChatPrefix:       cfg.Quiz.Answer.ChatPrefix,
		AnswerCooldown:   time.Duration(cfg.Quiz.Answer.CooldownMs) * time.Millisecond,
		MinHumanResponse: time.Duration(cfg.Quiz.Answer.MinHumanMs) * time.Millisecond,
		AvoidRepeats:     cfg.Quiz.Question.AvoidRepeats,
		RepeatCooldown:   cfg.Quiz.Question.RepeatCooldown,
		MinOnlineTime:    time.Duration(cfg.Quiz.Eligibility.MinOnlineSeconds) * time.Second,
		Scope:            app.ParseScope(cfg.Quiz.Broadcast.Scope),
		ScopePermission:  cfg.Quiz.Broadcast.Permission,
		DefaultChannel:   cfg.Quiz.Broadcast.Channel,
	}
}

// openStatsStorage connects the durable backend when Postgres is configured.
// A migration failure degrades to memory-only stats instead of aborting
// startup; the cache keeps serving and warns once.
func openStatsStorage(ctx context.Context, cfg config.Config, log *zap.Logger) (app.StatsStorage, *bun.DB) {
	if cfg.Postgres.URL == "" {
		return nil, nil
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		log.Warn("schema migration failed, stats will not be persisted", zap.Error(err))
		return nil, nil
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	return infrapg.NewStatsStorage(bunDB), bunDB
}

func rewardProfiles(cfg config.Config) map[string]domain.RewardDefinition {
	profiles := make(map[string]domain.RewardDefinition, len(cfg.Rewards))
	for name, profile := range cfg.Rewards {
		profiles[name] = domain.RewardDefinition{
			Money:    profile.Money,
			XP:       profile.XP,
			Commands: profile.Commands,
		}
	}
	return profiles
}

// loadQuestions picks the question source: yaml file when configured,
// otherwise Postgres, otherwise the bundled samples.
func loadQuestions(ctx context.Context, cfg config.Config, log *zap.Logger) ([]*domain.Question, error) {
	if cfg.Quiz.Question.File != "" {
		return memory.LoadQuestionFile(cfg.Quiz.Question.File, log)
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			log.Warn("question store unreachable, using bundled samples", zap.Error(err))
			return memory.SampleQuestions(), nil
		}
		defer pool.Close()
		return infrapg.NewQuestionLoader(pool, log).LoadQuestions(ctx)
	}
	return memory.SampleQuestions(), nil
}
