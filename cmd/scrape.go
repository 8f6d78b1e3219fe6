package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/wow-harvester/internal/api"
	"github.com/JakeFAU/wow-harvester/internal/harvest"
	"github.com/JakeFAU/wow-harvester/internal/notify"
)

// newScrapeCmd creates the scrape subcommand.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Walk the listing pages and build the record store.",
		Long: `scrape opens one headless browser session, walks listing pages
sequentially from --start through --end, parses every card into a record,
optionally downloads pictures, and persists the store as JSON. With page
checkpointing on (the default) an interrupted run still leaves a valid,
loadable store.`,
		RunE: runScrape,
	}

	cmd.Flags().Int("start", 0, "first listing page (0-indexed, inclusive)")
	cmd.Flags().Int("end", 1687, "last listing page (inclusive)")
	cmd.Flags().Bool("images", true, "download each record's picture")
	cmd.Flags().String("output", "output", "directory for the store and pictures")
	cmd.Flags().String("store", "", "store file path (default <output>/mugshots.json)")
	cmd.Flags().Bool("headless", true, "run the browser headless")
	bindLocalFlag(cmd, "scrape.start_page", "start")
	bindLocalFlag(cmd, "scrape.end_page", "end")
	bindLocalFlag(cmd, "scrape.download_images", "images")
	bindLocalFlag(cmd, "scrape.output_dir", "output")
	bindLocalFlag(cmd, "scrape.store_path", "store")
	bindLocalFlag(cmd, "scrape.headless", "headless")

	return cmd
}

func runScrape(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := harvest.LoadScrapeConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("scrape config: %w", err)
	}

	ctx := cmd.Context()

	if addr := viper.GetString("server.metrics_addr"); addr != "" {
		srv := api.NewServer(addr, logger)
		srv.Start()
		defer closeQuietly(logger, "metrics server", func() error { return srv.Shutdown(ctx) })
	}

	session, err := harvest.NewChromedpSession(cfg, logger)
	if err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	defer closeQuietly(logger, "browser session", func() error { return session.Close(ctx) })

	parser, err := harvest.NewParser(cfg.BaseURL, logger)
	if err != nil {
		return fmt.Errorf("build parser: %w", err)
	}
	acquirer := harvest.NewAcquirer(session, cfg.ImageDelay, logger)
	orch := harvest.NewOrchestrator(cfg, session, parser, acquirer, logger)

	logger.Info("scrape starting",
		zap.Int("start_page", cfg.StartPage),
		zap.Int("end_page", cfg.EndPage),
		zap.Bool("images", cfg.DownloadImages),
		zap.String("store", cfg.StorePath),
	)

	records, runErr := orch.Run(ctx)

	// Persist whatever was accumulated even when the walk was interrupted.
	if err := harvest.SaveStore(cfg.StorePath, records); err != nil {
		return fmt.Errorf("persist store: %w", err)
	}

	postRun(ctx, logger, notify.RunEvent{
		RunID:     newRunID(),
		Kind:      "scrape",
		StorePath: cfg.StorePath,
		Records:   len(records),
	})

	if runErr != nil {
		return runErr
	}
	logger.Info("scrape finished",
		zap.Int("records", len(records)),
		zap.String("store", cfg.StorePath),
	)
	return nil
}
