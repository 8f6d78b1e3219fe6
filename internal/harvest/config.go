package harvest

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// ScrapeConfig captures every knob that influences a scrape run. All values
// originate from Viper so the harvester can be configured via files, env
// vars, or CLI flags.
type ScrapeConfig struct {
	ListingURL          string
	BaseURL             string
	StartPage           int
	EndPage             int
	DownloadImages      bool
	OutputDir           string
	StorePath           string
	CheckpointEveryPage bool
	UserAgent           string
	Headless            bool
	NavTimeout          time.Duration
	DOMWaitTimeout      time.Duration
	SettleDelay         time.Duration
	PageDelay           time.Duration
	ImageDelay          time.Duration
}

// ImagesDir is where acquired pictures are written.
func (c ScrapeConfig) ImagesDir() string {
	return filepath.Join(c.OutputDir, "mugshots")
}

// LoadScrapeConfig constructs a ScrapeConfig by reading from Viper.
func LoadScrapeConfig(v *viper.Viper) (ScrapeConfig, error) {
	cfg := ScrapeConfig{
		ListingURL:          v.GetString("scrape.listing_url"),
		BaseURL:             v.GetString("scrape.base_url"),
		StartPage:           v.GetInt("scrape.start_page"),
		EndPage:             v.GetInt("scrape.end_page"),
		DownloadImages:      v.GetBool("scrape.download_images"),
		OutputDir:           v.GetString("scrape.output_dir"),
		StorePath:           v.GetString("scrape.store_path"),
		CheckpointEveryPage: v.GetBool("scrape.checkpoint_every_page"),
		UserAgent:           v.GetString("scrape.user_agent"),
		Headless:            v.GetBool("scrape.headless"),
		NavTimeout:          v.GetDuration("scrape.nav_timeout"),
		DOMWaitTimeout:      v.GetDuration("scrape.dom_wait_timeout"),
		SettleDelay:         v.GetDuration("scrape.settle_delay"),
		PageDelay:           v.GetDuration("scrape.page_delay"),
		ImageDelay:          v.GetDuration("scrape.image_delay"),
	}
	if cfg.StorePath == "" {
		cfg.StorePath = filepath.Join(cfg.OutputDir, "mugshots.json")
	}
	return cfg, cfg.Validate()
}

// Validate checks for obviously bad configuration combinations.
func (c ScrapeConfig) Validate() error {
	if c.ListingURL == "" {
		return fmt.Errorf("scrape.listing_url must be set")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("scrape.base_url must be set")
	}
	if c.StartPage < 0 {
		return fmt.Errorf("scrape.start_page must be >= 0")
	}
	if c.EndPage < c.StartPage {
		return fmt.Errorf("scrape.end_page must be >= scrape.start_page")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("scrape.output_dir must be set")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("scrape.user_agent must be set")
	}
	if c.NavTimeout <= 0 {
		return fmt.Errorf("scrape.nav_timeout must be > 0")
	}
	if c.DOMWaitTimeout <= 0 {
		return fmt.Errorf("scrape.dom_wait_timeout must be > 0")
	}
	if c.PageDelay < 0 || c.ImageDelay < 0 || c.SettleDelay < 0 {
		return fmt.Errorf("scrape delays must be >= 0")
	}
	return nil
}

// EnrichConfig captures the knobs for a resumable enrichment run.
type EnrichConfig struct {
	StorePath       string
	LogPath         string
	AnalyzerURL     string
	AnalyzerTimeout time.Duration
	CPUOnly         bool
	ProgressEvery   int
}

// LoadEnrichConfig constructs an EnrichConfig by reading from Viper.
func LoadEnrichConfig(v *viper.Viper) (EnrichConfig, error) {
	cfg := EnrichConfig{
		StorePath:       v.GetString("enrich.store_path"),
		LogPath:         v.GetString("enrich.log_path"),
		AnalyzerURL:     v.GetString("enrich.analyzer_url"),
		AnalyzerTimeout: v.GetDuration("enrich.analyzer_timeout"),
		CPUOnly:         v.GetBool("enrich.cpu_only"),
		ProgressEvery:   v.GetInt("enrich.progress_every"),
	}
	if cfg.LogPath == "" {
		cfg.LogPath = filepath.Join(filepath.Dir(cfg.StorePath), "deepface_processing.log")
	}
	return cfg, cfg.Validate()
}

// Validate checks required enrichment settings.
func (c EnrichConfig) Validate() error {
	if c.StorePath == "" {
		return fmt.Errorf("enrich.store_path must be set")
	}
	if c.AnalyzerURL == "" {
		return fmt.Errorf("enrich.analyzer_url must be set")
	}
	if c.AnalyzerTimeout <= 0 {
		return fmt.Errorf("enrich.analyzer_timeout must be > 0")
	}
	if c.ProgressEvery < 0 {
		return fmt.Errorf("enrich.progress_every must be >= 0")
	}
	return nil
}
