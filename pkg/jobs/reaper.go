package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/competitor"
	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/logger"
	"github.com/jordanlanch/rivalscope/pkg/models"
)

// ScrapeInterruptedMessage is stored on competitors whose scrape never finished
const ScrapeInterruptedMessage = "scrape interrupted"

// ReapResult counts the rows moved to FAILED in one pass
type ReapResult struct {
	Analyses int
	Scrapes  int
}

// StaleRunReaper fails analyses and scrapes left in flight by a crashed or restarted
// process, so they can be retried.
type StaleRunReaper struct {
	repo       domain.AnalysisRepository
	staleAfter time.Duration
	logger     logger.Logger
	now        func() time.Time
}

// NewStaleRunReaper creates a reaper. Rows untouched for longer than staleAfter are failed.
func NewStaleRunReaper(repo domain.AnalysisRepository, staleAfter time.Duration, log logger.Logger) *StaleRunReaper {
	if log == nil {
		log = logger.Default()
	}
	return &StaleRunReaper{
		repo:       repo,
		staleAfter: staleAfter,
		logger:     log.With("job", "stale_run_reaper"),
		now:        time.Now,
	}
}

// Reap runs one pass
func (r *StaleRunReaper) Reap(ctx context.Context) (ReapResult, error) {
	var res ReapResult
	cutoff := r.now().Add(-r.staleAfter)

	analyses, err := r.repo.ListStaleAnalyses(ctx,
		[]models.AnalysisStatus{models.AnalysisStatusScraping, models.AnalysisStatusAnalyzing}, cutoff)
	if err != nil {
		return res, fmt.Errorf("failed to list stale analyses: %w", err)
	}

	failed := models.AnalysisStatusFailed
	for _, a := range analyses {
		if !competitor.CanTransition(a.Status, failed) {
			continue
		}
		if err := r.repo.UpdateAnalysis(ctx, a.ID, models.AnalysisUpdate{Status: &failed}); err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return res, fmt.Errorf("failed to fail analysis %s: %w", a.ID, err)
		}
		r.logger.Warn("stale analysis failed", "analysis_id", a.ID, "status", a.Status, "updated_at", a.UpdatedAt)
		res.Analyses++
	}

	scrapes, err := r.repo.ListStaleScrapes(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("failed to list stale scrapes: %w", err)
	}

	scrapeFailed := models.ScrapeStatusFailed
	msg := ScrapeInterruptedMessage
	for _, c := range scrapes {
		err := r.repo.UpdateCompetitor(ctx, c.ID, models.CompetitorUpdate{
			ScrapeStatus: &scrapeFailed,
			ScrapeError:  &msg,
		})
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return res, fmt.Errorf("failed to fail scrape %s: %w", c.ID, err)
		}
		r.logger.Warn("stale scrape failed", "competitor_id", c.ID, "analysis_id", c.AnalysisID)
		res.Scrapes++
	}

	return res, nil
}
