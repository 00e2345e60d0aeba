package competitor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/jordanlanch/rivalscope/pkg/models"
	"golang.org/x/sync/errgroup"
)

// ScrapeOne scrapes a single competitor page and records the outcome on the competitor.
//
// It returns (nil, nil) when the competitor has no URL; nothing is written in that case.
// A failed fetch is recorded as FAILED with its message in scrapeError and is not
// returned as an error, so the result is also (nil, nil). Only lookup and
// persistence errors are returned.
func (s *Service) ScrapeOne(ctx context.Context, competitorID string) (*models.ScrapedData, error) {
	c, err := s.repo.GetCompetitor(ctx, competitorID)
	if err != nil {
		return nil, err
	}

	status, data, err := s.scrapeCompetitor(ctx, c)
	if err != nil {
		return nil, err
	}
	if status != models.ScrapeStatusCompleted {
		return nil, nil
	}
	return data, nil
}

// ScrapeAllPending scrapes every PENDING competitor of the analysis that has a URL
// and returns how many completed. The analysis moves to SCRAPING first.
// One competitor's failure never affects its siblings.
func (s *Service) ScrapeAllPending(ctx context.Context, analysisID string) (int, error) {
	a, err := s.repo.GetAnalysis(ctx, analysisID)
	if err != nil {
		return 0, err
	}

	pending, err := s.repo.ListPendingCompetitors(ctx, analysisID)
	if err != nil {
		return 0, err
	}

	if err := s.transition(ctx, a, models.AnalysisStatusScraping); err != nil {
		return 0, err
	}

	log := s.logger.With("analysis_id", analysisID)
	log.Info("scrape batch started", "pending", len(pending), "concurrency", s.concurrency)

	var (
		completed atomic.Int64
		g         errgroup.Group
	)
	g.SetLimit(s.concurrency)

	for _, c := range pending {
		g.Go(func() error {
			status, _, err := s.scrapeCompetitor(ctx, c)
			if err != nil {
				log.Error("failed to record scrape outcome", "competitor_id", c.ID, "error", err)
				return nil
			}
			if status == models.ScrapeStatusCompleted {
				completed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	n := int(completed.Load())
	log.Info("scrape batch finished", "scraped", n, "attempted", len(pending))
	return n, nil
}

// scrapeCompetitor runs the fetch + extract cycle for c and persists every step.
// The returned status is the one written to the competitor.
func (s *Service) scrapeCompetitor(ctx context.Context, c *models.Competitor) (models.ScrapeStatus, *models.ScrapedData, error) {
	if !c.HasURL() {
		return models.ScrapeStatusSkipped, nil, nil
	}

	scraping := models.ScrapeStatusScraping
	if err := s.repo.UpdateCompetitor(ctx, c.ID, models.CompetitorUpdate{ScrapeStatus: &scraping}); err != nil {
		return "", nil, fmt.Errorf("failed to mark competitor scraping: %w", err)
	}

	data, scrapeErr := s.scraper.ScrapeURL(ctx, *c.URL)

	// The outcome is recorded even when the caller's context ended mid-fetch
	writeCtx := context.WithoutCancel(ctx)

	if scrapeErr != nil {
		failed := models.ScrapeStatusFailed
		msg := scrapeErr.Error()
		if err := s.repo.UpdateCompetitor(writeCtx, c.ID, models.CompetitorUpdate{
			ScrapeStatus: &failed,
			ScrapeError:  &msg,
		}); err != nil {
			return "", nil, fmt.Errorf("failed to record scrape failure: %w", err)
		}
		s.observer.ScrapeFinished(failed)
		s.logger.Warn("competitor scrape failed", "competitor_id", c.ID, "url", *c.URL, "error", msg)
		return failed, nil, nil
	}

	completed := models.ScrapeStatusCompleted
	scrapedAt := data.ScrapedAt
	upd := models.CompetitorUpdate{
		ScrapeStatus:     &completed,
		ClearScrapeError: true,
		ScrapedAt:        &scrapedAt,
		ScrapedData:      data,
	}
	// Scraped values replace manual ones only when non-empty
	if data.Tagline != "" {
		upd.Tagline = &data.Tagline
	}
	if data.Description != "" {
		upd.Description = &data.Description
	}
	if data.Pricing != "" {
		upd.Pricing = &data.Pricing
	}
	if len(data.Features) > 0 {
		upd.Features = data.Features
	}

	if err := s.repo.UpdateCompetitor(writeCtx, c.ID, upd); err != nil {
		return "", nil, fmt.Errorf("failed to record scrape result: %w", err)
	}
	s.observer.ScrapeFinished(completed)
	s.logger.Debug("competitor scraped", "competitor_id", c.ID, "features", len(data.Features))
	return completed, data, nil
}
