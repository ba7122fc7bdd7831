package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/live-sub-translator/internal/config"
	"github.com/MimeLyc/live-sub-translator/internal/httpapi"
	"github.com/MimeLyc/live-sub-translator/internal/persistence"
	"github.com/MimeLyc/live-sub-translator/pkg/icron"
	"github.com/MimeLyc/live-sub-translator/pkg/log"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the caption translation server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address; overrides HTTP_ADDR")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another server is already using %s", cfg.System.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	translator := newTranslator(cfg)
	registry := httpapi.NewRegistry(ctx, translator, store, httpapi.RegistryConfig{
		Pipeline:     pipelineOptions(cfg),
		Throttle:     cfg.Pipeline.Throttle,
		CacheMaxSize: cfg.Cache.MaxSize,
		CacheTTL:     cfg.Cache.TTL,
	})
	defer registry.CloseAll()

	sweeper := cron.New()
	entryID, err := sweeper.AddFunc(cfg.HTTP.SweepCron, func() {
		reaped := registry.Reap(cfg.HTTP.IdleTimeout)
		purged := registry.PurgeCaches()
		log.Debug("sweep: reaped %d sessions, purged %d cache entries", len(reaped), purged)
	})
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	sweeper.Start()
	defer sweeper.Stop()
	if info, err := icron.GetTriggerInfo(cfg.HTTP.SweepCron, time.Now()); err == nil {
		log.Info("sweep %q, first run in %s", info.Expression, info.TimeUntilNext.Round(time.Second))
	}

	server := httpapi.NewServer(
		registry,
		translator,
		httpapi.WithCORSOrigins(cfg.HTTP.CORSOrigins),
		httpapi.WithDefaultTarget(cfg.Translate.TargetLanguage.String()),
		httpapi.WithSourceLanguage(cfg.Translate.SourceLanguage),
		httpapi.WithNextSweep(func() time.Time { return sweeper.Entry(entryID).Next }),
	)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening on %s (data dir %s)", cfg.HTTP.Addr, cfg.System.DataDir)
		errCh <- server.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	// Closing sessions first ends their overlay streams.
	registry.CloseAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
