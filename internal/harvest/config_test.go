package harvest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func scrapeViper() *viper.Viper {
	v := viper.New()
	v.Set("scrape.listing_url", "https://example.org/wow?page=")
	v.Set("scrape.base_url", "https://example.org")
	v.Set("scrape.start_page", 0)
	v.Set("scrape.end_page", 10)
	v.Set("scrape.download_images", true)
	v.Set("scrape.output_dir", "output")
	v.Set("scrape.checkpoint_every_page", true)
	v.Set("scrape.user_agent", "test-agent")
	v.Set("scrape.nav_timeout", "45s")
	v.Set("scrape.dom_wait_timeout", "10s")
	v.Set("scrape.settle_delay", "1s")
	v.Set("scrape.page_delay", "500ms")
	v.Set("scrape.image_delay", "250ms")
	return v
}

func enrichViper() *viper.Viper {
	v := viper.New()
	v.Set("enrich.store_path", filepath.Join("output", "mugshots.json"))
	v.Set("enrich.analyzer_url", "http://127.0.0.1:5005")
	v.Set("enrich.analyzer_timeout", "120s")
	v.Set("enrich.progress_every", 100)
	return v
}

func TestLoadScrapeConfig_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadScrapeConfig(scrapeViper())
	require.NoError(t, err)
	require.Equal(t, "https://example.org/wow?page=", cfg.ListingURL)
	require.Equal(t, 10, cfg.EndPage)
	require.Equal(t, 45*time.Second, cfg.NavTimeout)
	require.Equal(t, 500*time.Millisecond, cfg.PageDelay)
	require.Equal(t, filepath.Join("output", "mugshots"), cfg.ImagesDir())
}

func TestLoadScrapeConfig_StorePathDefaultsToOutputDir(t *testing.T) {
	t.Parallel()

	cfg, err := LoadScrapeConfig(scrapeViper())
	require.NoError(t, err)
	require.Equal(t, filepath.Join("output", "mugshots.json"), cfg.StorePath)
}

func TestLoadScrapeConfig_ExplicitStorePathKept(t *testing.T) {
	t.Parallel()

	v := scrapeViper()
	v.Set("scrape.store_path", "/data/store.json")
	cfg, err := LoadScrapeConfig(v)
	require.NoError(t, err)
	require.Equal(t, "/data/store.json", cfg.StorePath)
}

func TestLoadScrapeConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"missing listing url", "scrape.listing_url", ""},
		{"missing base url", "scrape.base_url", ""},
		{"negative start page", "scrape.start_page", -1},
		{"end before start", "scrape.end_page", -5},
		{"missing output dir", "scrape.output_dir", ""},
		{"missing user agent", "scrape.user_agent", ""},
		{"zero nav timeout", "scrape.nav_timeout", "0s"},
		{"zero dom wait", "scrape.dom_wait_timeout", "0s"},
		{"negative page delay", "scrape.page_delay", "-1s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := scrapeViper()
			v.Set(tc.key, tc.val)
			_, err := LoadScrapeConfig(v)
			require.Error(t, err)
		})
	}
}

func TestLoadEnrichConfig_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadEnrichConfig(enrichViper())
	require.NoError(t, err)
	require.Equal(t, filepath.Join("output", "mugshots.json"), cfg.StorePath)
	require.Equal(t, 120*time.Second, cfg.AnalyzerTimeout)
	require.Equal(t, 100, cfg.ProgressEvery)
}

func TestLoadEnrichConfig_LogPathDefaultsBesideStore(t *testing.T) {
	t.Parallel()

	cfg, err := LoadEnrichConfig(enrichViper())
	require.NoError(t, err)
	require.Equal(t, filepath.Join("output", "deepface_processing.log"), cfg.LogPath)
}

func TestLoadEnrichConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"missing store path", "enrich.store_path", ""},
		{"missing analyzer url", "enrich.analyzer_url", ""},
		{"zero analyzer timeout", "enrich.analyzer_timeout", "0s"},
		{"negative progress cadence", "enrich.progress_every", -1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			v := enrichViper()
			v.Set(tc.key, tc.val)
			_, err := LoadEnrichConfig(v)
			require.Error(t, err)
		})
	}
}
