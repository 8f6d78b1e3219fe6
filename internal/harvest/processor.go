package harvest

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultProgressEvery = 100

// Summary reports the outcome counts of one enrichment run.
type Summary struct {
	Total       int
	AlreadyDone int
	Enriched    int
	Skipped     int
	Errors      int
}

// Processor walks a loaded store in order and attaches face analysis to
// every record that still needs it. Each success is immediately followed by
// an atomic checkpoint of the whole store, so a crash loses at most the
// in-flight record's work. Re-running on the same store is always safe: the
// enrichment marker makes every record idempotent to revisit.
type Processor struct {
	analyzer      Analyzer
	plog          *ProcessingLog
	logger        *zap.Logger
	progressEvery int
}

// NewProcessor builds a Processor. progressEvery <= 0 selects the default
// cadence of one summary per 100 records.
func NewProcessor(analyzer Analyzer, plog *ProcessingLog, progressEvery int, logger *zap.Logger) *Processor {
	if progressEvery <= 0 {
		progressEvery = defaultProgressEvery
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		analyzer:      analyzer,
		plog:          plog,
		logger:        logger,
		progressEvery: progressEvery,
	}
}

// Run processes records in store order, mutating them in place, and
// checkpoints the full store to storePath after every new enrichment.
// Non-fatal failures (skipped records, analyzer errors) are absorbed into
// the summary and the processing log; only checkpoint failures and context
// cancellation abort the run.
func (p *Processor) Run(ctx context.Context, records []Record, storePath string) (Summary, error) {
	sum := Summary{Total: len(records)}
	runID := uuid.NewString()
	if err := p.plog.Session(runID, len(records)); err != nil {
		return sum, fmt.Errorf("start processing log session: %w", err)
	}
	p.logger.Info("enrichment run starting",
		zap.String("run_id", runID),
		zap.Int("total", len(records)),
	)

	for i := range records {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("enrichment interrupted: %w", err)
		}
		if err := p.process(ctx, &records[i], records, storePath, &sum); err != nil {
			return sum, err
		}
		if (i+1)%p.progressEvery == 0 {
			p.logProgress(i+1, sum)
		}
	}

	p.logger.Info("enrichment run finished",
		zap.String("run_id", runID),
		zap.Int("already_done", sum.AlreadyDone),
		zap.Int("enriched", sum.Enriched),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", sum.Errors),
	)
	return sum, nil
}

// process handles one record. Non-fatal analysis failures are absorbed
// locally; a failed checkpoint is escalated because the durability guarantee
// is gone once the store can no longer be persisted.
func (p *Processor) process(ctx context.Context, rec *Record, all []Record, storePath string, sum *Summary) error {
	if rec.Enriched() {
		sum.AlreadyDone++
		return nil
	}

	if reason, ok := p.skipReason(rec); ok {
		sum.Skipped++
		EnrichmentOutcomes.WithLabelValues("skipped").Inc()
		p.logAttempt(rec, StatusSkipped, reason)
		return nil
	}

	faces, err := p.analyzer.Analyze(ctx, rec.PictureLocal, DefaultActions())
	if err != nil {
		// Leave the record untouched: the skip rule retries it on the next run.
		sum.Errors++
		EnrichmentOutcomes.WithLabelValues("error").Inc()
		p.logAttempt(rec, StatusError, err.Error())
		p.logger.Warn("analysis failed", zap.String("id", rec.ID), zap.Error(err))
		return nil
	}
	if len(faces) == 0 {
		sum.Errors++
		EnrichmentOutcomes.WithLabelValues("error").Inc()
		p.logAttempt(rec, StatusError, "no face detected")
		return nil
	}

	// Multi-face results keep only the first face; later faces are discarded
	// on purpose.
	enrichment := faces[0].Enrichment()
	rec.Enrichment = &enrichment
	sum.Enriched++
	EnrichmentOutcomes.WithLabelValues("success").Inc()
	p.logAttempt(rec, StatusSuccess,
		fmt.Sprintf("age: %d, gender: %s", enrichment.Age, enrichment.Gender.Dominant))

	if err := SaveStore(storePath, all); err != nil {
		return fmt.Errorf("checkpoint store after %s: %w", rec.ID, err)
	}
	return nil
}

// skipReason reports why a record cannot be analyzed: no local picture was
// ever acquired, or the referenced file has since disappeared. Skipped
// records never reach the analyzer.
func (p *Processor) skipReason(rec *Record) (string, bool) {
	if rec.PictureLocal == "" {
		return "no local picture", true
	}
	if _, err := os.Stat(rec.PictureLocal); err != nil {
		return fmt.Sprintf("file not found: %s", rec.PictureLocal), true
	}
	return "", false
}

func (p *Processor) logAttempt(rec *Record, status Status, message string) {
	if err := p.plog.Write(rec.ID, rec.Name, status, message); err != nil {
		p.logger.Warn("processing log write failed", zap.String("id", rec.ID), zap.Error(err))
	}
}

func (p *Processor) logProgress(done int, sum Summary) {
	p.logger.Info("enrichment progress",
		zap.Int("done", done),
		zap.Int("total", sum.Total),
		zap.Int("already_done", sum.AlreadyDone),
		zap.Int("enriched", sum.Enriched),
		zap.Int("skipped", sum.Skipped),
		zap.Int("errors", sum.Errors),
	)
}
