package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/headline-goat/intent-goat/internal/config"
	"github.com/headline-goat/intent-goat/internal/logger"
	"github.com/headline-goat/intent-goat/internal/notify"
	"github.com/headline-goat/intent-goat/internal/report"
	"github.com/headline-goat/intent-goat/internal/server"
	"github.com/headline-goat/intent-goat/internal/store"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the intent-goat HTTP server.

The server provides:
  - Event ingestion with replay deduplication
  - Optimizer recompute endpoints and scheduled posterior snapshots
  - Sales webhook relay
  - Dashboard JSON for summaries and variant comparisons
  - Health check endpoint

Example:
  igt serve --port 8080 --config igt.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", getEnvIntOrDefault("IGT_PORT", 8080), "port to listen on")
	rootCmd.Flags().IntVarP(&port, "port", "p", getEnvIntOrDefault("IGT_PORT", 8080), "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	s, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dedup := openDeduper(ctx, cfg, s, log)

	relay := notify.NewRelay(cfg.Webhook.URL, notify.Options{
		Timeout:   time.Duration(cfg.Webhook.TimeoutMs) * time.Millisecond,
		PerSecond: cfg.RateLimit.WebhookPerSecond,
		Burst:     cfg.RateLimit.WebhookBurst,
	}, log)
	defer relay.Close()

	srv := server.New(s, server.Options{
		Port:            port,
		TokenFile:       getTokenFilePath(),
		Deduper:         dedup,
		Relay:           relay,
		Logger:          log,
		ExperimentID:    cfg.Experiment.ID,
		Kappa:           cfg.Recompute.Kappa,
		IngestPerSecond: cfg.RateLimit.IngestPerSecond,
		IngestBurst:     cfg.RateLimit.IngestBurst,
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, true)
	})
	if cfg.Recompute.Schedule != "" {
		g.Go(func() error {
			return runSnapshots(ctx, s, cfg.Recompute, log)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// openDeduper prefers Redis when configured and reachable, falling back
// to the SQLite seen-set.
func openDeduper(ctx context.Context, cfg *config.Config, s *store.SQLiteStore, log *logger.Logger) store.Deduper {
	if cfg.Redis.Addr == "" {
		return s
	}
	rd := store.NewRedisDeduper(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rd.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, deduplicating in sqlite", "addr", cfg.Redis.Addr, "error", err)
		rd.Close()
		return s
	}
	go func() {
		<-ctx.Done()
		rd.Close()
	}()
	return rd
}

// runSnapshots recomputes the posterior snapshot on the configured
// schedule until ctx is done.
func runSnapshots(ctx context.Context, s store.Store, rc config.RecomputeConfig, log *logger.Logger) error {
	c := cron.New()
	_, err := c.AddFunc(rc.Schedule, func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		n, err := report.Snapshot(jobCtx, s, rc.Kappa)
		if err != nil {
			log.Warn("posterior snapshot failed", "error", err)
			return
		}
		log.Info("posterior snapshot saved", "blocks", n)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule recompute: %w", err)
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// getTokenFilePath returns the path to the token file
func getTokenFilePath() string {
	// Store token file alongside the database
	dir := filepath.Dir(dbPath)
	return filepath.Join(dir, ".igt-token")
}
