// Package cmd defines and implements the CLI commands for the wowharvest
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/wow-harvester/internal/archive"
	"github.com/JakeFAU/wow-harvester/internal/logging"
	"github.com/JakeFAU/wow-harvester/internal/notify"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wowharvest",
		Short: "Harvests a paginated public listing into a durable record store.",
		Long: `wowharvest walks a paginated public listing with a headless browser,
parses each card into a structured record, downloads pictures through the
browser session, and persists everything as one checkpointed JSON store.
A separate enrich run attaches face-analysis attributes to stored records,
resuming safely across interruptions.`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().Bool("dev-logging", true, "use the human-readable development logger")
	cmd.PersistentFlags().String("metrics-addr", "", "serve /metrics and /healthz on this address (empty disables)")
	bindFlag(cmd, "logging.development", "dev-logging")
	bindFlag(cmd, "server.metrics_addr", "metrics-addr")

	cmd.AddCommand(newScrapeCmd(), newEnrichCmd())
	return cmd
}

// Execute is the main entry point. Any command error produces exit code 1.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfig initializes Viper: config file search paths, env overrides,
// and defaults for every knob.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.wowharvest")
	}

	viper.SetEnvPrefix("WOWHARVEST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	// The config file is optional; defaults plus flags are enough.
	_ = viper.ReadInConfig()
}

func setDefaults() {
	viper.SetDefault("logging.development", true)
	viper.SetDefault("server.metrics_addr", "")

	viper.SetDefault("scrape.listing_url", "https://www.dhs.gov/wow?page=")
	viper.SetDefault("scrape.base_url", "https://www.dhs.gov")
	viper.SetDefault("scrape.start_page", 0)
	viper.SetDefault("scrape.end_page", 1687)
	viper.SetDefault("scrape.download_images", true)
	viper.SetDefault("scrape.output_dir", "output")
	viper.SetDefault("scrape.store_path", "")
	viper.SetDefault("scrape.checkpoint_every_page", true)
	viper.SetDefault("scrape.user_agent", "wow-harvester/1.0 (+https://github.com/JakeFAU/wow-harvester)")
	viper.SetDefault("scrape.headless", true)
	viper.SetDefault("scrape.nav_timeout", "45s")
	viper.SetDefault("scrape.dom_wait_timeout", "10s")
	viper.SetDefault("scrape.settle_delay", "1s")
	viper.SetDefault("scrape.page_delay", "500ms")
	viper.SetDefault("scrape.image_delay", "250ms")

	viper.SetDefault("enrich.store_path", filepath.Join("output", "mugshots.json"))
	viper.SetDefault("enrich.log_path", "")
	viper.SetDefault("enrich.analyzer_url", "http://127.0.0.1:5005")
	viper.SetDefault("enrich.analyzer_timeout", "120s")
	viper.SetDefault("enrich.cpu_only", false)
	viper.SetDefault("enrich.progress_every", 100)

	viper.SetDefault("archive.gcs_bucket", "")
	viper.SetDefault("notify.project_id", "")
	viper.SetDefault("notify.topic_id", "")
}

// bindFlag connects a cobra flag to a Viper key.
func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		cobra.CheckErr(fmt.Errorf("bind flag %s: %w", flag, err))
	}
}

// bindLocalFlag connects a subcommand-local flag to a Viper key.
func bindLocalFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
		cobra.CheckErr(fmt.Errorf("bind flag %s: %w", flag, err))
	}
}

func buildLogger() (*zap.Logger, error) {
	logger, err := logging.New(viper.GetBool("logging.development"))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// newArchiveProvider returns the configured archive backend, defaulting to
// a no-op when no bucket is set.
func newArchiveProvider(ctx context.Context, logger *zap.Logger) (archive.Provider, error) {
	bucket := viper.GetString("archive.gcs_bucket")
	if bucket == "" {
		return archive.NoOpProvider{}, nil
	}
	logger.Info("archiving store snapshots to GCS", zap.String("bucket", bucket))
	return archive.NewGCSProvider(ctx, bucket, logger)
}

// newRunPublisher returns the configured run-event publisher, defaulting to
// a no-op when no topic is set.
func newRunPublisher(ctx context.Context, logger *zap.Logger) (notify.Publisher, error) {
	projectID := viper.GetString("notify.project_id")
	topicID := viper.GetString("notify.topic_id")
	if projectID == "" || topicID == "" {
		return notify.NoOpPublisher{}, nil
	}
	logger.Info("publishing run events", zap.String("topic", topicID))
	return notify.NewPubSubPublisher(ctx, projectID, topicID, logger)
}

// postRun uploads the final store snapshot and publishes the run event.
// Both are best-effort: a broken archive or broker never fails a finished
// run.
func postRun(ctx context.Context, logger *zap.Logger, event notify.RunEvent) {
	provider, err := newArchiveProvider(ctx, logger)
	if err != nil {
		logger.Warn("archive provider unavailable", zap.Error(err))
	} else {
		defer closeQuietly(logger, "archive provider", provider.Close)
		if data, rerr := os.ReadFile(event.StorePath); rerr == nil {
			object := fmt.Sprintf("%s/%s", event.RunID, filepath.Base(event.StorePath))
			if serr := provider.Save(ctx, object, data); serr != nil {
				logger.Warn("store snapshot upload failed", zap.Error(serr))
			}
		}
	}

	publisher, err := newRunPublisher(ctx, logger)
	if err != nil {
		logger.Warn("run publisher unavailable", zap.Error(err))
		return
	}
	defer closeQuietly(logger, "run publisher", publisher.Close)
	event.FinishedAt = time.Now().UTC()
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("run event publish failed", zap.Error(err))
	}
}

// newRunID labels one CLI invocation for archives and run events.
func newRunID() string {
	return uuid.NewString()
}

func closeQuietly(logger *zap.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn("close failed", zap.String("component", what), zap.Error(err))
	}
}
