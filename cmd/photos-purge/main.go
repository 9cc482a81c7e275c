// Command photos-purge drains photo records marked as deleted: it removes
// their blobs from the external network in concurrent batches and then
// deletes the confirmed records from the metadata store, reporting progress
// and rates while it runs.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/photovault/internal/logging"
	"github.com/dmitrijs2005/photovault/internal/purger"
	"github.com/dmitrijs2005/photovault/internal/server/config"
	"github.com/dmitrijs2005/photovault/internal/server/repositories/repomanager"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath     string
		dbURI          string
		endpoint       string
		secret         string
		limit          int
		concurrency    int
		reportInterval time.Duration
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:           "photos-purge",
		Short:         "Delete blobs of purged photos and drain their records",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			// Flags the caller set explicitly win over the config file.
			flags := cmd.Flags()
			if flags.Changed("db-uri") {
				cfg.DatabaseDSN = dbURI
			}
			if flags.Changed("endpoint") {
				cfg.NetworkDeleteEndpoint = endpoint
			}
			if flags.Changed("secret") {
				cfg.NetworkSecret = secret
			}
			if flags.Changed("limit") {
				cfg.PurgeLimit = limit
			}
			if flags.Changed("concurrency") {
				cfg.PurgeConcurrency = concurrency
			}
			if flags.Changed("report-interval") {
				cfg.PurgeReportInterval = reportInterval
			}
			if flags.Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}

			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON config file")
	cmd.Flags().StringVar(&dbURI, "db-uri", "", "PostgreSQL DSN of the metadata store")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "blob-network batch deletion endpoint")
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "secret for signing blob-network requests")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "purge candidates fetched per round")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 5, "blob deletions per network call")
	cmd.Flags().DurationVar(&reportInterval, "report-interval", 10*time.Second, "progress report period")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "metrics endpoint bind address")

	return cmd
}

func initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.NewJSONLogger(os.Stdout)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	initSignalHandler(cancel)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		logger.Error(ctx, "opening database", "err", err.Error())
		return err
	}
	defer db.Close()

	manager := repomanager.NewPostgresRepositoryManager()
	if err := manager.RunMigrations(ctx, db); err != nil {
		logger.Error(ctx, "running migrations", "err", err.Error())
		return err
	}

	purger.StartMetricsServer(cfg.MetricsAddr, logger)

	status := purger.NewStatus(logger.With("component", "purger"), cfg.PurgeReportInterval)
	p := purger.New(
		purger.NewStoreSource(manager.Photos(db)),
		purger.NewClient(cfg.NetworkDeleteEndpoint, cfg.NetworkSecret),
		status,
		logger.With("component", "purger"),
		cfg.PurgeMaxAttempts,
	)

	logger.Info(ctx, "starting purge",
		"limit", cfg.PurgeLimit, "concurrency", cfg.PurgeConcurrency)

	if err := p.Run(ctx, cfg.PurgeLimit, cfg.PurgeConcurrency); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "purge interrupted")
			return nil
		}
		logger.Error(ctx, "purge failed", "err", err.Error())
		return err
	}
	return nil
}
