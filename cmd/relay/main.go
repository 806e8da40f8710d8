// Command relay runs the QQ chat relay.
//
// The relay receives OneBot v11 webhook events, answers chat and command
// messages through an OpenAI-compatible backend, and keeps per-session
// history in the configured store.
//
// Configuration is read from config.yaml (see pkg/config for the
// discovery order), with RELAY_* environment overrides:
//
//	RELAY_CONFIG          - config file path
//	RELAY_ONEBOT_URL      - OneBot HTTP API root (required)
//	RELAY_OPENAI_BASE_URL - Chat Completions backend root
//	RELAY_OPENAI_API_KEY  - backend API key
//	RELAY_MODEL           - default model name
//	RELAY_STORAGE         - storage type: "file", "memory" or "postgres"
//	RELAY_MONITOR_GROUP   - group id for model catalog notifications
//
// A .env file in the working directory is loaded first when present.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/a2bot/relay/pkg/config"
	"github.com/a2bot/relay/pkg/debug"
	"github.com/a2bot/relay/pkg/monitor"
	"github.com/a2bot/relay/pkg/onebot"
	"github.com/a2bot/relay/pkg/prompt"
	"github.com/a2bot/relay/pkg/provider"
	"github.com/a2bot/relay/pkg/relay"
	"github.com/a2bot/relay/pkg/store"
	filestore "github.com/a2bot/relay/pkg/store/file"
	"github.com/a2bot/relay/pkg/store/memory"
	"github.com/a2bot/relay/pkg/store/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("relay failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Load .env from the working directory (ignore errors if not found).
	godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	debug.Init(cfg.Log.Debug, cfg.Log.Level)
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One HTTP client shared by the backend, the bot API and image fetches.
	httpClient := &http.Client{}
	defer httpClient.CloseIdleConnections()

	st, err := newStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer st.Close()

	prompts := prompt.NewLoader(cfg.OpenAI.SystemPrompt, logger)

	backend := provider.NewClient(provider.Config{
		BaseURL:           cfg.OpenAI.BaseURL,
		APIKey:            cfg.OpenAI.APIKey,
		CompletionTimeout: cfg.OpenAI.CompletionTimeout,
		CatalogTimeout:    cfg.OpenAI.PeripheralTimeout,
		HTTPClient:        httpClient,
		Logger:            logger,
	})
	defer backend.Close()

	bot := onebot.NewClient(onebot.ClientConfig{
		APIURL:      cfg.OneBot.APIURL,
		AccessToken: cfg.OneBot.AccessToken,
		HTTPClient:  httpClient,
		Logger:      logger,
	})

	engine, err := relay.New(backend, bot, st, prompts, relay.Config{
		DefaultModel: cfg.OpenAI.DefaultModel,
		BotName:      cfg.OneBot.BotName,
		HTTPClient:   httpClient,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}

	if cfg.Monitor.Enabled {
		watcher, err := monitor.New(backend, bot, monitor.Config{
			Schedule: cfg.Monitor.Schedule,
			GroupID:  cfg.Monitor.NotifyGroup,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("creating model watcher: %w", err)
		}
		watcher.Start(ctx)
		defer watcher.Stop()
	}

	opts := []onebot.ServerOption{
		onebot.WithAddr(cfg.Server.Addr),
		onebot.WithReadTimeout(cfg.Server.ReadTimeout),
		onebot.WithWriteTimeout(cfg.Server.WriteTimeout),
		onebot.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		onebot.WithLogger(logger),
	}
	if cfg.Server.Secret != "" {
		opts = append(opts, onebot.WithSecret(cfg.Server.Secret))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, onebot.WithMetrics(promhttp.Handler()))
	}
	if probe, ok := st.(interface{ HealthCheck(context.Context) error }); ok {
		opts = append(opts, onebot.WithHealthCheck(probe.HealthCheck))
	}

	srv := onebot.NewServer(engine, opts...)

	logger.Info("relay starting",
		"addr", cfg.Server.Addr,
		"backend", cfg.OpenAI.BaseURL,
		"model", cfg.OpenAI.DefaultModel,
		"storage", cfg.Storage.Type)

	return srv.Run(ctx)
}

// newStore builds the session store named by storage.type.
func newStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Storage.Type {
	case "file":
		logger.Info("storage enabled", "type", "file", "dir", cfg.Storage.File.Dir)
		return filestore.New(cfg.Storage.File.Dir), nil
	case "memory":
		logger.Info("storage enabled", "type", "memory")
		return memory.New(), nil
	case "postgres":
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			MinConns:        cfg.Storage.Postgres.MinConns,
			MaxConnLifetime: cfg.Storage.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Storage.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("storage enabled", "type", "postgres", "max_conns", cfg.Storage.Postgres.MaxConns)
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}
