package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kjannette/pricegraph/internal/api"
	"github.com/kjannette/pricegraph/internal/config"
	"github.com/kjannette/pricegraph/internal/db"
	"github.com/kjannette/pricegraph/internal/external"
	"github.com/kjannette/pricegraph/internal/logging"
	"github.com/kjannette/pricegraph/internal/notifications"
	"github.com/kjannette/pricegraph/internal/pricegraph"
	"github.com/kjannette/pricegraph/internal/recorder"
	"github.com/kjannette/pricegraph/internal/repository"
	"github.com/kjannette/pricegraph/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel, cfg.IsProduction())

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	cfg.Print()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fetcher := newFetcher(cfg)

	rec, closeRec, err := openRecorder(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.HistoryBackend()).Msg("open lookup history")
	}
	defer closeRec()

	notify := notifications.NewSender(cfg.WebhookURL, cfg.AppName)

	svc := pricegraph.NewService(fetcher, rec, notify)

	var pruner *scheduler.PruneScheduler
	if cfg.HistoryBackend() != "none" {
		pruner, err = scheduler.NewPruneScheduler(rec, scheduler.PruneConfig{
			Spec:          cfg.PruneCron,
			RetentionDays: cfg.HistoryRetentionDays,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("prune scheduler")
		}
		pruner.Start()
	}

	srv := api.NewServer(svc, cfg)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if pruner != nil {
		pruner.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	log.Info().Msg("shutdown complete")
}

func newFetcher(cfg *config.Config) external.Fetcher {
	if cfg.Provider == config.ProviderAlpaca {
		return external.NewAlpacaClient(cfg.AlpacaAPIKey, cfg.AlpacaAPISecret)
	}
	return external.NewQuandlClient(cfg.QuandlAPIKey, external.QuandlOptions{
		BaseURL: cfg.QuandlBaseURL,
		Timeout: time.Duration(cfg.UpstreamTimeoutSeconds) * time.Second,
		Retries: cfg.UpstreamRetries,
	})
}

// openRecorder picks Postgres, then SQLite, then no history at all.
func openRecorder(ctx context.Context, cfg *config.Config) (recorder.Recorder, func(), error) {
	switch cfg.HistoryBackend() {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewLookupRepo(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, func() {
			pool.Close()
			log.Info().Msg("postgres pool closed")
		}, nil

	case "sqlite":
		r, err := recorder.NewSQLiteRecorder(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return r, closeLogged(r, "sqlite"), nil
	}

	log.Info().Msg("lookup history disabled")
	return recorder.NewNoopRecorder(), func() {}, nil
}

func closeLogged(c io.Closer, name string) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Warn().Err(err).Str("backend", name).Msg("close history store")
		}
	}
}
