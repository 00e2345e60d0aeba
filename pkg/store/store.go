// Package store persists analyses and competitors using ent's SQL builder.
package store

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"entgo.io/ent/dialect/sql"
	"github.com/jordanlanch/rivalscope/pkg/database"
	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/models"
)

var analysisColumns = []string{
	"id", "name", "product", "status", "summary", "aggregate_score",
	"owner_id", "organization_id", "created_at", "updated_at",
}

var competitorColumns = []string{
	"id", "analysis_id", "name", "url", "description", "category", "tagline",
	"features", "pricing", "scrape_status", "scrape_error", "scraped_at", "scraped_data",
	"overall_score", "feature_score", "pricing_score", "ux_score", "market_score", "scores",
	"strengths", "weaknesses", "created_at", "updated_at",
}

// Store implements domain.AnalysisRepository
type Store struct {
	db      *stdsql.DB
	builder *sql.DialectBuilder
	now     func() time.Time

	mu   sync.Mutex
	last time.Time
}

var _ domain.AnalysisRepository = (*Store)(nil)

// New creates a store on an open database client
func New(client *database.Client) *Store {
	return &Store{
		db:      client.DB(),
		builder: sql.Dialect(client.Dialect()),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// stamp returns a strictly increasing creation time so rows created in
// one batch keep their insertion order.
func (s *Store) stamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// CreateAnalysis inserts a, filling timestamps
func (s *Store) CreateAnalysis(ctx context.Context, a *models.Analysis) error {
	product, err := json.Marshal(a.Product)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	if a.Status == "" {
		a.Status = models.AnalysisStatusDraft
	}
	now := s.stamp()
	a.CreatedAt, a.UpdatedAt = now, now

	query, args := s.builder.Insert(database.TableAnalyses).
		Columns(analysisColumns...).
		Values(a.ID, a.Name, string(product), string(a.Status), nullJSON(a.Summary), nullFloat(a.AggregateScore),
			a.OwnerID, a.OrganizationID, now, now).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create analysis: %w", err)
	}
	return nil
}

// GetAnalysis loads one analysis without its competitors
func (s *Store) GetAnalysis(ctx context.Context, id string) (*models.Analysis, error) {
	query, args := s.builder.Select(analysisColumns...).
		From(sql.Table(database.TableAnalyses)).
		Where(sql.EQ("id", id)).
		Query()

	a, err := scanAnalysis(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, domain.NewNotFoundError("analysis")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// GetAnalysisWithCompetitors loads an analysis and its competitors in creation order
func (s *Store) GetAnalysisWithCompetitors(ctx context.Context, id string) (*models.Analysis, error) {
	a, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Competitors, err = s.ListCompetitors(ctx, id)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListAnalyses returns the organization's analyses, newest first
func (s *Store) ListAnalyses(ctx context.Context, organizationID string) ([]*models.Analysis, error) {
	query, args := s.builder.Select(analysisColumns...).
		From(sql.Table(database.TableAnalyses)).
		Where(sql.EQ("organization_id", organizationID)).
		OrderBy(sql.Desc("created_at"), sql.Asc("id")).
		Query()

	return s.queryAnalyses(ctx, query, args)
}

// ListStaleAnalyses returns analyses in one of statuses not touched since updatedBefore
func (s *Store) ListStaleAnalyses(ctx context.Context, statuses []models.AnalysisStatus, updatedBefore time.Time) ([]*models.Analysis, error) {
	if len(statuses) == 0 {
		return []*models.Analysis{}, nil
	}
	values := make([]any, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}

	query, args := s.builder.Select(analysisColumns...).
		From(sql.Table(database.TableAnalyses)).
		Where(sql.And(
			sql.In("status", values...),
			sql.LT("updated_at", updatedBefore.UTC()),
		)).
		OrderBy(sql.Asc("updated_at")).
		Query()

	return s.queryAnalyses(ctx, query, args)
}

// UpdateAnalysis applies a partial update and bumps updated_at
func (s *Store) UpdateAnalysis(ctx context.Context, id string, upd models.AnalysisUpdate) error {
	b := s.builder.Update(database.TableAnalyses).Set("updated_at", s.now())

	if upd.Name != nil {
		b.Set("name", *upd.Name)
	}
	if upd.Product != nil {
		product, err := json.Marshal(upd.Product)
		if err != nil {
			return fmt.Errorf("encode product: %w", err)
		}
		b.Set("product", string(product))
	}
	if upd.Status != nil {
		b.Set("status", string(*upd.Status))
	}
	if upd.Summary != nil {
		b.Set("summary", string(upd.Summary))
	}
	if upd.SetAggregateScore {
		if upd.AggregateScore == nil {
			b.SetNull("aggregate_score")
		} else {
			b.Set("aggregate_score", *upd.AggregateScore)
		}
	}

	query, args := b.Where(sql.EQ("id", id)).Query()
	return s.execOne(ctx, "analysis", query, args)
}

// DeleteAnalysis removes the analysis and all of its competitors atomically
func (s *Store) DeleteAnalysis(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args := s.builder.Delete(database.TableCompetitors).Where(sql.EQ("analysis_id", id)).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete competitors: %w", err)
	}

	query, args = s.builder.Delete(database.TableAnalyses).Where(sql.EQ("id", id)).Query()
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewNotFoundError("analysis")
	}

	return tx.Commit()
}

// CreateCompetitor inserts c under its analysis, filling defaults and timestamps
func (s *Store) CreateCompetitor(ctx context.Context, c *models.Competitor) error {
	if c.ScrapeStatus == "" {
		c.ScrapeStatus = models.ScrapeStatusPending
	}
	if c.Features == nil {
		c.Features = []string{}
	}
	if c.Strengths == nil {
		c.Strengths = []string{}
	}
	if c.Weaknesses == nil {
		c.Weaknesses = []string{}
	}

	scraped, err := encodeScrapedData(c.ScrapedData)
	if err != nil {
		return err
	}
	now := s.stamp()
	c.CreatedAt, c.UpdatedAt = now, now

	query, args := s.builder.Insert(database.TableCompetitors).
		Columns(competitorColumns...).
		Values(
			c.ID, c.AnalysisID, c.Name, nullString(c.URL), nullString(c.Description), nullString(c.Category), nullString(c.Tagline),
			mustJSON(c.Features), nullString(c.Pricing), string(c.ScrapeStatus), nullString(c.ScrapeError), nullTime(c.ScrapedAt), scraped,
			nullFloat(c.OverallScore), nullFloat(c.FeatureScore), nullFloat(c.PricingScore), nullFloat(c.UXScore), nullFloat(c.MarketScore), nullJSON(c.Scores),
			mustJSON(c.Strengths), mustJSON(c.Weaknesses), now, now,
		).
		Query()

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to create competitor: %w", err)
	}
	return nil
}

// GetCompetitor loads one competitor
func (s *Store) GetCompetitor(ctx context.Context, id string) (*models.Competitor, error) {
	query, args := s.builder.Select(competitorColumns...).
		From(sql.Table(database.TableCompetitors)).
		Where(sql.EQ("id", id)).
		Query()

	c, err := scanCompetitor(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, stdsql.ErrNoRows) {
		return nil, domain.NewNotFoundError("competitor")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get competitor: %w", err)
	}
	return c, nil
}

// ListCompetitors returns the analysis' competitors in creation order
func (s *Store) ListCompetitors(ctx context.Context, analysisID string) ([]*models.Competitor, error) {
	query, args := s.builder.Select(competitorColumns...).
		From(sql.Table(database.TableCompetitors)).
		Where(sql.EQ("analysis_id", analysisID)).
		OrderBy(sql.Asc("created_at"), sql.Asc("id")).
		Query()

	return s.queryCompetitors(ctx, query, args)
}

// ListPendingCompetitors returns competitors still waiting for a scrape that have a URL
func (s *Store) ListPendingCompetitors(ctx context.Context, analysisID string) ([]*models.Competitor, error) {
	query, args := s.builder.Select(competitorColumns...).
		From(sql.Table(database.TableCompetitors)).
		Where(sql.And(
			sql.EQ("analysis_id", analysisID),
			sql.EQ("scrape_status", string(models.ScrapeStatusPending)),
			sql.NotNull("url"),
		)).
		OrderBy(sql.Asc("created_at"), sql.Asc("id")).
		Query()

	return s.queryCompetitors(ctx, query, args)
}

// ListStaleScrapes returns competitors left in SCRAPING since before updatedBefore
func (s *Store) ListStaleScrapes(ctx context.Context, updatedBefore time.Time) ([]*models.Competitor, error) {
	query, args := s.builder.Select(competitorColumns...).
		From(sql.Table(database.TableCompetitors)).
		Where(sql.And(
			sql.EQ("scrape_status", string(models.ScrapeStatusScraping)),
			sql.LT("updated_at", updatedBefore.UTC()),
		)).
		Query()

	return s.queryCompetitors(ctx, query, args)
}

// UpdateCompetitor applies a partial update and bumps updated_at
func (s *Store) UpdateCompetitor(ctx context.Context, id string, upd models.CompetitorUpdate) error {
	b := s.builder.Update(database.TableCompetitors).Set("updated_at", s.now())

	if upd.ScrapeStatus != nil {
		b.Set("scrape_status", string(*upd.ScrapeStatus))
	}
	switch {
	case upd.ScrapeError != nil:
		b.Set("scrape_error", *upd.ScrapeError)
	case upd.ClearScrapeError:
		b.SetNull("scrape_error")
	}
	if upd.ScrapedAt != nil {
		b.Set("scraped_at", upd.ScrapedAt.UTC())
	}
	if upd.ScrapedData != nil {
		scraped, err := encodeScrapedData(upd.ScrapedData)
		if err != nil {
			return err
		}
		b.Set("scraped_data", scraped)
	}
	if upd.Tagline != nil {
		b.Set("tagline", *upd.Tagline)
	}
	if upd.Description != nil {
		b.Set("description", *upd.Description)
	}
	if upd.Pricing != nil {
		b.Set("pricing", *upd.Pricing)
	}
	if upd.Features != nil {
		b.Set("features", mustJSON(upd.Features))
	}

	for _, score := range []struct {
		column string
		value  *float64
	}{
		{"overall_score", upd.OverallScore},
		{"feature_score", upd.FeatureScore},
		{"pricing_score", upd.PricingScore},
		{"ux_score", upd.UXScore},
		{"market_score", upd.MarketScore},
	} {
		if score.value != nil {
			b.Set(score.column, *score.value)
		}
	}
	if upd.Scores != nil {
		b.Set("scores", string(upd.Scores))
	}
	if upd.Strengths != nil {
		b.Set("strengths", mustJSON(upd.Strengths))
	}
	if upd.Weaknesses != nil {
		b.Set("weaknesses", mustJSON(upd.Weaknesses))
	}

	query, args := b.Where(sql.EQ("id", id)).Query()
	return s.execOne(ctx, "competitor", query, args)
}

// DeleteCompetitor removes one competitor
func (s *Store) DeleteCompetitor(ctx context.Context, id string) error {
	query, args := s.builder.Delete(database.TableCompetitors).Where(sql.EQ("id", id)).Query()
	return s.execOne(ctx, "competitor", query, args)
}

func (s *Store) execOne(ctx context.Context, resource, query string, args []any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", resource, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", resource, err)
	}
	if n == 0 {
		return domain.NewNotFoundError(resource)
	}
	return nil
}

func (s *Store) queryAnalyses(ctx context.Context, query string, args []any) ([]*models.Analysis, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	out := []*models.Analysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) queryCompetitors(ctx context.Context, query string, args []any) ([]*models.Competitor, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitors: %w", err)
	}
	defer rows.Close()

	out := []*models.Competitor{}
	for rows.Next() {
		c, err := scanCompetitor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competitor: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
