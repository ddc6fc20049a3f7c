package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/glizzus/clipster/internal/catalog"
	"github.com/glizzus/clipster/internal/config"
	"github.com/glizzus/clipster/internal/datalayer"
	"github.com/glizzus/clipster/internal/handler"
	"github.com/glizzus/clipster/internal/playback"
	"github.com/glizzus/clipster/internal/repository"
	"github.com/glizzus/clipster/internal/voice"
	"github.com/glizzus/clipster/internal/worker"
)

func newClipStore(ctx context.Context, cfg *config.ClipsConfig) (catalog.ClipStore, error) {
	if cfg.Store == config.ClipStoreLocal {
		return &catalog.FileStore{Root: cfg.Dir}, nil
	}

	minioStorage, err := datalayer.NewMinioStorageFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create minio storage: %w", err)
	}
	if err := minioStorage.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure minio bucket: %w", err)
	}
	return minioStorage, nil
}

// newRedis connects to redis when REDIS_ADDR is set. Without it the bot runs
// with an in-memory blocklist and accepts no remote jobs.
func newRedis(ctx context.Context) (*redis.Client, error) {
	if os.Getenv("REDIS_ADDR") == "" {
		slog.Warn("REDIS_ADDR is not set, clip jobs are disabled")
		return nil, nil
	}
	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load redis config: %w", err)
	}
	rdb := redis.NewClient(redisConfig.Options())
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server stopped", "addr", addr, "error", err)
		}
	}()
	return srv
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	slog.SetLogLoggerLevel(config.LogLevel())
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}
	playbackConfig, err := config.NewPlaybackConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load playback config: %w", err)
	}
	clipsConfig, err := config.NewClipsConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load clips config: %w", err)
	}
	metricsConfig, err := config.NewMetricsConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load metrics config: %w", err)
	}

	pool, err := datalayer.NewPostgresPoolFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("failed to create postgres pool: %w", err)
	}
	defer pool.Close()
	if err := datalayer.MigratePostgres(pool); err != nil {
		return fmt.Errorf("failed to migrate postgres: %w", err)
	}
	playLog := repository.NewPostgresPlayLogRepository(pool)

	store, err := newClipStore(ctx, clipsConfig)
	if err != nil {
		return err
	}
	clips := catalog.New(clipsConfig.Dir, store, logger)
	if _, err := clips.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load clips: %w", err)
	}

	rdb, err := newRedis(ctx)
	if err != nil {
		return err
	}
	var blocklist worker.Blocklist = worker.NewMemoryBlocklist()
	if rdb != nil {
		defer rdb.Close()
		blocklist = worker.NewRedisBlocklist(rdb)
	}

	var interactions func(handler.DiscordSession, *discordgo.InteractionCreate)
	session, err := handler.NewSession(discordConfig.Token, handler.Handlers{
		Ready: handler.ReadyLog,
		InteractionCreate: func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			interactions(s, i)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	gateway := voice.NewGateway(session.State, session, logger)
	orchestrator := playback.New(playbackConfig.Playback(), playback.Dependencies{
		Gateway:  gateway,
		Opener:   clips,
		Notifier: handler.NewChannelNotifier(session, logger),
		Audit:    playLog,
		Logger:   logger,
	})
	interactions = handler.NewInteractionHandler(handler.Dependencies{
		Player:    orchestrator,
		Clips:     clips,
		Voice:     gateway,
		Admins:    discordConfig,
		Blocklist: blocklist,
		Logger:    logger,
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	// An empty guild ID registers the commands globally.
	if err := handler.EstablishCommands(session, discordConfig.GuildID); err != nil {
		return fmt.Errorf("failed to establish commands: %w", err)
	}

	if metricsConfig.Addr != "" {
		srv := serveMetrics(metricsConfig.Addr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	jobsDone := make(chan struct{})
	player := worker.NewPlayer(worker.PlayerDependencies{
		Submitter: orchestrator,
		Clips:     clips,
		Channels:  gateway,
		Blocklist: blocklist,
		Logger:    logger,
	})
	if rdb != nil {
		consumer, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		receiver, err := worker.NewRedisJobReceiver(ctx, rdb, consumer, logger)
		if err != nil {
			return fmt.Errorf("failed to create job receiver: %w", err)
		}
		go func() {
			defer close(jobsDone)
			if err := receiver.Run(ctx, player); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Clip job receiver stopped", "error", err)
			}
		}()
	} else {
		close(jobsDone)
	}

	logger.Info("Bot is running", "guildID", discordConfig.GuildID)
	<-ctx.Done()
	logger.Info("Shutting down")

	<-jobsDone
	player.Wait()
	if err := orchestrator.Close(); err != nil {
		slog.Warn("failed to close orchestrator", "error", err)
	}
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
