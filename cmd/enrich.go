package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/wow-harvester/internal/api"
	"github.com/JakeFAU/wow-harvester/internal/deepface"
	"github.com/JakeFAU/wow-harvester/internal/harvest"
	"github.com/JakeFAU/wow-harvester/internal/notify"
)

// newEnrichCmd creates the enrich subcommand.
func newEnrichCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Attach face-analysis attributes to stored records.",
		Long: `enrich loads an existing record store, analyzes each record's
local picture through the configured analyzer service, and writes the
attributes back into the store after every record. Records already
enriched, or without a usable picture on disk, are left untouched, so an
interrupted run can simply be re-invoked.`,
		RunE: runEnrich,
	}

	cmd.Flags().String("store", "", "record store file to enrich")
	cmd.Flags().String("log", "", "processing log path (default alongside the store)")
	cmd.Flags().String("analyzer-url", "", "base URL of the face-analysis service")
	cmd.Flags().Bool("cpu-only", false, "ask the analyzer to skip GPU inference")
	bindLocalFlag(cmd, "enrich.store_path", "store")
	bindLocalFlag(cmd, "enrich.log_path", "log")
	bindLocalFlag(cmd, "enrich.analyzer_url", "analyzer-url")
	bindLocalFlag(cmd, "enrich.cpu_only", "cpu-only")

	return cmd
}

func runEnrich(cmd *cobra.Command, _ []string) error {
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := harvest.LoadEnrichConfig(viper.GetViper())
	if err != nil {
		return fmt.Errorf("enrich config: %w", err)
	}

	// A missing store means nothing to do and nothing to create: fail
	// before opening the processing log or touching the analyzer.
	records, err := harvest.LoadStore(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}

	ctx := cmd.Context()

	if addr := viper.GetString("server.metrics_addr"); addr != "" {
		srv := api.NewServer(addr, logger)
		srv.Start()
		defer closeQuietly(logger, "metrics server", func() error { return srv.Shutdown(ctx) })
	}

	plog, err := harvest.OpenProcessingLog(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("open processing log: %w", err)
	}
	defer closeQuietly(logger, "processing log", plog.Close)

	client, err := deepface.NewClient(deepface.Config{
		BaseURL: cfg.AnalyzerURL,
		Timeout: cfg.AnalyzerTimeout,
		CPUOnly: cfg.CPUOnly,
	}, logger)
	if err != nil {
		return fmt.Errorf("build analyzer client: %w", err)
	}

	proc := harvest.NewProcessor(client, plog, cfg.ProgressEvery, logger)

	logger.Info("enrichment starting",
		zap.Int("records", len(records)),
		zap.String("store", cfg.StorePath),
		zap.String("analyzer", cfg.AnalyzerURL),
		zap.Bool("cpu_only", cfg.CPUOnly),
	)

	summary, runErr := proc.Run(ctx, records, cfg.StorePath)

	postRun(ctx, logger, notify.RunEvent{
		RunID:     newRunID(),
		Kind:      "enrich",
		StorePath: cfg.StorePath,
		Records:   summary.Total,
		Enriched:  summary.Enriched,
		Skipped:   summary.Skipped,
		Errors:    summary.Errors,
	})

	if runErr != nil {
		return runErr
	}
	logger.Info("enrichment finished",
		zap.Int("total", summary.Total),
		zap.Int("already_done", summary.AlreadyDone),
		zap.Int("enriched", summary.Enriched),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
	)
	return nil
}
