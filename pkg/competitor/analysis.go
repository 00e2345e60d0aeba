package competitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/models"
)

// transitions lists the statuses each analysis status may move to
var transitions = map[models.AnalysisStatus][]models.AnalysisStatus{
	models.AnalysisStatusDraft:     {models.AnalysisStatusScraping},
	models.AnalysisStatusScraping:  {models.AnalysisStatusScraping, models.AnalysisStatusAnalyzing, models.AnalysisStatusFailed},
	models.AnalysisStatusAnalyzing: {models.AnalysisStatusCompleted, models.AnalysisStatusFailed},
	models.AnalysisStatusCompleted: {models.AnalysisStatusScraping, models.AnalysisStatusAnalyzing},
	models.AnalysisStatusFailed:    {models.AnalysisStatusScraping, models.AnalysisStatusAnalyzing},
}

// CanTransition reports whether an analysis in from may move to to
func CanTransition(from, to models.AnalysisStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s *Service) transition(ctx context.Context, a *models.Analysis, to models.AnalysisStatus) error {
	if !CanTransition(a.Status, to) {
		return &domain.DomainError{
			Code:    domain.ErrCodeConflict,
			Message: fmt.Sprintf("analysis is %s and cannot move to %s", a.Status, to),
			Err:     ErrInvalidTransition,
		}
	}
	if err := s.repo.UpdateAnalysis(ctx, a.ID, models.AnalysisUpdate{Status: &to}); err != nil {
		return fmt.Errorf("failed to set analysis status %s: %w", to, err)
	}
	a.Status = to
	return nil
}

// Run scrapes the pending competitors and then scores the analysis
func (s *Service) Run(ctx context.Context, analysisID, actingUserID string) (map[string]any, error) {
	if _, err := s.ScrapeAllPending(ctx, analysisID); err != nil {
		return nil, err
	}
	return s.RunAnalysis(ctx, analysisID, actingUserID)
}

// RunAnalysis scores every competitor of the analysis with the scoring engine and
// returns the engine's raw result.
//
// An analysis still in DRAFT is scraped first. Any failure once the analysis is
// ANALYZING leaves it FAILED and is returned; calling RunAnalysis again repeats
// the whole pipeline.
func (s *Service) RunAnalysis(ctx context.Context, analysisID, actingUserID string) (map[string]any, error) {
	a, err := s.repo.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	if a.Status == models.AnalysisStatusDraft {
		if _, err := s.ScrapeAllPending(ctx, analysisID); err != nil {
			return nil, err
		}
	}

	a, err = s.repo.GetAnalysisWithCompetitors(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, a, models.AnalysisStatusAnalyzing); err != nil {
		return nil, err
	}

	result, err := s.score(ctx, a, actingUserID)
	if err != nil {
		failed := models.AnalysisStatusFailed
		if uerr := s.repo.UpdateAnalysis(context.WithoutCancel(ctx), a.ID, models.AnalysisUpdate{Status: &failed}); uerr != nil {
			s.logger.Error("failed to mark analysis failed", "analysis_id", a.ID, "error", uerr)
		}
		s.observer.AnalysisFinished(failed)
		s.logger.Error("analysis failed", "analysis_id", a.ID, "error", err)
		return nil, err
	}

	s.observer.AnalysisFinished(models.AnalysisStatusCompleted)
	return result, nil
}

// score runs steps from the engine call through COMPLETED for an ANALYZING analysis
func (s *Service) score(ctx context.Context, a *models.Analysis, actingUserID string) (map[string]any, error) {
	prompt := BuildAnalysisPrompt(a.Product, a.Competitors)
	engineContext := map[string]any{
		"prompt":          prompt,
		"product":         a.Product,
		"competitorCount": len(a.Competitors),
		"analysisId":      a.ID,
	}

	start := s.now()
	result, err := s.engine.Analyze(ctx, AnalysisKind, engineItems(a.Competitors), engineContext, actingUserID)
	s.observer.EngineCall(s.now().Sub(start), err)
	if err != nil {
		return nil, engineFailure(err)
	}
	if result == nil {
		return nil, engineFailure(errors.New("empty response"))
	}

	summary, err := json.Marshal(result)
	if err != nil {
		return nil, engineFailure(fmt.Errorf("response is not serializable: %w", err))
	}

	byID := make(map[string]*models.Competitor, len(a.Competitors))
	byName := make(map[string]*models.Competitor, len(a.Competitors))
	for _, c := range a.Competitors {
		byID[c.ID] = c
		if _, seen := byName[c.Name]; !seen {
			byName[c.Name] = c
		}
	}

	raw := extractScoreEntries(result)
	entries := make([]ScoreEntry, 0, len(raw))
	unmatched := 0
	for _, r := range raw {
		entry := NormalizeScoreEntry(r)
		entries = append(entries, entry)

		c, ok := byID[entry.CompetitorID]
		if !ok {
			c, ok = byName[entry.Name]
		}
		if !ok {
			unmatched++
			continue
		}

		if err := s.repo.UpdateCompetitor(ctx, c.ID, scoreUpdate(entry, r)); err != nil {
			return nil, fmt.Errorf("failed to save scores for competitor %s: %w", c.ID, err)
		}
	}
	if unmatched > 0 {
		s.logger.Debug("score entries without a matching competitor dropped", "analysis_id", a.ID, "count", unmatched)
	}

	completed := models.AnalysisStatusCompleted
	if err := s.repo.UpdateAnalysis(ctx, a.ID, models.AnalysisUpdate{
		Status:            &completed,
		Summary:           summary,
		SetAggregateScore: true,
		AggregateScore:    aggregateScore(entries),
	}); err != nil {
		return nil, fmt.Errorf("failed to complete analysis: %w", err)
	}

	s.logger.Info("analysis completed", "analysis_id", a.ID, "entries", len(entries), "unmatched", unmatched)
	return result, nil
}

func scoreUpdate(entry ScoreEntry, raw map[string]any) models.CompetitorUpdate {
	upd := models.CompetitorUpdate{
		OverallScore: entry.Overall,
		FeatureScore: entry.Feature,
		PricingScore: entry.Pricing,
		UXScore:      entry.UX,
		MarketScore:  entry.Market,
		Strengths:    entry.Strengths,
		Weaknesses:   entry.Weaknesses,
	}
	if blob, err := json.Marshal(raw); err == nil {
		upd.Scores = blob
	}
	return upd
}

func engineFailure(err error) error {
	return domain.NewUpstreamError("scoring engine failed", fmt.Errorf("%w: %w", ErrEngineFailed, err))
}
