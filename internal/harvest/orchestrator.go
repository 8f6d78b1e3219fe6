package harvest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Orchestrator drives the strictly sequential page walk that builds the
// record store. It owns one browser session for the whole run and absorbs
// per-page failures: a page that fails to fetch or render contributes zero
// records and the walk continues.
type Orchestrator struct {
	cfg         ScrapeConfig
	session     Session
	parser      *Parser
	acquirer    *Acquirer
	pageLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewOrchestrator wires the scrape pipeline together.
func NewOrchestrator(cfg ScrapeConfig, session Session, parser *Parser, acquirer *Acquirer, logger *zap.Logger) *Orchestrator {
	var limiter *rate.Limiter
	if cfg.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.PageDelay), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:         cfg,
		session:     session,
		parser:      parser,
		acquirer:    acquirer,
		pageLimiter: limiter,
		logger:      logger,
	}
}

// Run walks pages StartPage..EndPage inclusive and returns the accumulated
// records in page-then-card discovery order. When checkpointing is enabled
// the full accumulator is persisted atomically after every page, so an
// interrupted run leaves a valid, loadable store. Failed pages are not
// retried; re-invoke with a narrower range to recover them.
func (o *Orchestrator) Run(ctx context.Context) ([]Record, error) {
	records := []Record{}
	for page := o.cfg.StartPage; page <= o.cfg.EndPage; page++ {
		if err := ctx.Err(); err != nil {
			return records, fmt.Errorf("scrape interrupted at page %d: %w", page, err)
		}

		pageRecords, err := o.scrapePage(ctx, page)
		switch {
		case err != nil:
			// Distinct from an empty page: the fetch itself broke. Zero
			// records, keep walking.
			PagesFailed.Inc()
			o.logger.Warn("page fetch failed", zap.Int("page", page), zap.Error(err))
		case len(pageRecords) == 0:
			PagesEmpty.Inc()
			o.logger.Info("page yielded no cards", zap.Int("page", page))
		default:
			PagesFetched.Inc()
			o.logger.Info("page scraped",
				zap.Int("page", page),
				zap.Int("records", len(pageRecords)),
			)
		}
		records = append(records, pageRecords...)

		if o.cfg.CheckpointEveryPage {
			if err := SaveStore(o.cfg.StorePath, records); err != nil {
				o.logger.Warn("page checkpoint failed", zap.Int("page", page), zap.Error(err))
			}
		}
		o.pace(ctx)
	}
	return records, nil
}

// scrapePage fetches, parses, and (optionally) downloads images for a single
// page. Any navigation or marker-wait failure aborts just this page.
func (o *Orchestrator) scrapePage(ctx context.Context, page int) ([]Record, error) {
	pageURL := fmt.Sprintf("%s%d", o.cfg.ListingURL, page)
	if err := o.session.Navigate(ctx, pageURL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if !o.session.WaitVisible(ctx, CardSelector, o.cfg.DOMWaitTimeout) {
		return nil, fmt.Errorf("listing marker %q not visible on page %d", CardSelector, page)
	}
	// Give late card hydration a moment before snapshotting the DOM.
	sleepCtx(ctx, o.cfg.SettleDelay)

	markup, err := o.session.OuterHTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot page %d: %w", page, err)
	}
	records, err := o.parser.ParseCards(markup, page)
	if err != nil {
		return nil, fmt.Errorf("parse page %d: %w", page, err)
	}

	if o.cfg.DownloadImages {
		o.downloadImages(ctx, records)
	}
	return records, nil
}

// downloadImages acquires each record's picture through the shared session.
// A failed download keeps the record; only PictureLocal stays unset so a
// later run can tell the image was never persisted.
func (o *Orchestrator) downloadImages(ctx context.Context, records []Record) {
	for i := range records {
		dest := filepath.Join(o.cfg.ImagesDir(), ImageFilename(records[i]))
		if err := o.acquirer.Acquire(ctx, records[i].PictureURL, dest); err != nil {
			ImagesFailed.Inc()
			o.logger.Warn("image download failed",
				zap.String("id", records[i].ID),
				zap.String("url", records[i].PictureURL),
				zap.Error(err),
			)
			continue
		}
		records[i].PictureLocal = dest
		ImagesSaved.Inc()
	}
}

func (o *Orchestrator) pace(ctx context.Context) {
	if o.pageLimiter == nil {
		return
	}
	if err := o.pageLimiter.Wait(ctx); err != nil {
		o.logger.Debug("page pacing interrupted", zap.Error(err))
	}
}

// sleepCtx pauses for delay or until the context finishes.
func sleepCtx(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
