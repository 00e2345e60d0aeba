package store

import (
	stdsql "database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/models"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	var (
		a       models.Analysis
		product string
		status  string
		summary stdsql.NullString
		score   stdsql.NullFloat64
	)
	err := row.Scan(&a.ID, &a.Name, &product, &status, &summary, &score,
		&a.OwnerID, &a.OrganizationID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(product), &a.Product); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	a.Status = models.AnalysisStatus(status)
	if summary.Valid && summary.String != "" {
		a.Summary = json.RawMessage(summary.String)
	}
	a.AggregateScore = floatPtr(score)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func scanCompetitor(row rowScanner) (*models.Competitor, error) {
	var (
		c                                         models.Competitor
		url, description, category, tagline       stdsql.NullString
		pricing, scrapeError, scrapedData, scores stdsql.NullString
		features, strengths, weaknesses           string
		status                                    string
		scrapedAt                                 stdsql.NullTime
		overall, feature, price, ux, market       stdsql.NullFloat64
	)
	err := row.Scan(
		&c.ID, &c.AnalysisID, &c.Name, &url, &description, &category, &tagline,
		&features, &pricing, &status, &scrapeError, &scrapedAt, &scrapedData,
		&overall, &feature, &price, &ux, &market, &scores,
		&strengths, &weaknesses, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.URL = stringPtr(url)
	c.Description = stringPtr(description)
	c.Category = stringPtr(category)
	c.Tagline = stringPtr(tagline)
	c.Pricing = stringPtr(pricing)
	c.ScrapeStatus = models.ScrapeStatus(status)
	c.ScrapeError = stringPtr(scrapeError)
	if scrapedAt.Valid {
		t := scrapedAt.Time.UTC()
		c.ScrapedAt = &t
	}
	if scrapedData.Valid && scrapedData.String != "" {
		var data models.ScrapedData
		if err := json.Unmarshal([]byte(scrapedData.String), &data); err != nil {
			return nil, fmt.Errorf("decode scraped data: %w", err)
		}
		c.ScrapedData = &data
	}

	c.OverallScore = floatPtr(overall)
	c.FeatureScore = floatPtr(feature)
	c.PricingScore = floatPtr(price)
	c.UXScore = floatPtr(ux)
	c.MarketScore = floatPtr(market)
	if scores.Valid && scores.String != "" {
		c.Scores = json.RawMessage(scores.String)
	}

	for _, list := range []struct {
		raw  string
		dest *[]string
	}{
		{features, &c.Features},
		{strengths, &c.Strengths},
		{weaknesses, &c.Weaknesses},
	} {
		*list.dest = []string{}
		if list.raw == "" {
			continue
		}
		if err := json.Unmarshal([]byte(list.raw), list.dest); err != nil {
			return nil, fmt.Errorf("decode string list: %w", err)
		}
	}

	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return &c, nil
}

func encodeScrapedData(d *models.ScrapedData) (any, error) {
	if d == nil {
		return nil, nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode scraped data: %w", err)
	}
	return string(b), nil
}

func mustJSON(list []string) string {
	if list == nil {
		return "[]"
	}
	// a string slice always marshals
	b, _ := json.Marshal(list)
	return string(b)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func stringPtr(ns stdsql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func floatPtr(nf stdsql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
