package models

import (
	"encoding/json"
	"time"
)

// AnalysisStatus is the lifecycle state of a competitive analysis run
type AnalysisStatus string

const (
	AnalysisStatusDraft     AnalysisStatus = "DRAFT"
	AnalysisStatusScraping  AnalysisStatus = "SCRAPING"
	AnalysisStatusAnalyzing AnalysisStatus = "ANALYZING"
	AnalysisStatusCompleted AnalysisStatus = "COMPLETED"
	AnalysisStatusFailed    AnalysisStatus = "FAILED"
)

// ScrapeStatus is the per-competitor scrape state
type ScrapeStatus string

const (
	ScrapeStatusPending   ScrapeStatus = "PENDING"
	ScrapeStatusScraping  ScrapeStatus = "SCRAPING"
	ScrapeStatusCompleted ScrapeStatus = "COMPLETED"
	ScrapeStatusFailed    ScrapeStatus = "FAILED"
	ScrapeStatusSkipped   ScrapeStatus = "SKIPPED"
)

// MarketPosition values the scoring engine may return
const (
	MarketPositionLeader     = "leader"
	MarketPositionChallenger = "challenger"
	MarketPositionFollower   = "follower"
	MarketPositionNiche      = "niche"
)

// ProductDefinition describes the product being compared against competitors
type ProductDefinition struct {
	Name        string   `json:"name" validate:"required,max=200"`
	URL         *string  `json:"url,omitempty" validate:"omitempty,url"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
}

// Analysis is one competitive-analysis run for one product
type Analysis struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Product        ProductDefinition `json:"product"`
	Status         AnalysisStatus    `json:"status"`
	Summary        json.RawMessage   `json:"summary,omitempty"`
	AggregateScore *float64          `json:"aggregate_score"`
	OwnerID        string            `json:"owner_id"`
	OrganizationID string            `json:"organization_id"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`

	// Loaded on demand
	Competitors []*Competitor `json:"competitors,omitempty"`
}

// Competitor is one rival product under an analysis
type Competitor struct {
	ID          string   `json:"id"`
	AnalysisID  string   `json:"analysis_id"`
	Name        string   `json:"name"`
	URL         *string  `json:"url,omitempty"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Tagline     *string  `json:"tagline,omitempty"`
	Features    []string `json:"features"`
	Pricing     *string  `json:"pricing,omitempty"`

	ScrapeStatus ScrapeStatus `json:"scrape_status"`
	ScrapeError  *string      `json:"scrape_error,omitempty"`
	ScrapedAt    *time.Time   `json:"scraped_at,omitempty"`
	ScrapedData  *ScrapedData `json:"scraped_data,omitempty"`

	OverallScore *float64        `json:"overall_score"`
	FeatureScore *float64        `json:"feature_score"`
	PricingScore *float64        `json:"pricing_score"`
	UXScore      *float64        `json:"ux_score"`
	MarketScore  *float64        `json:"market_score"`
	Scores       json.RawMessage `json:"scores,omitempty"`

	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasURL reports whether the competitor can be scraped
func (c *Competitor) HasURL() bool {
	return c.URL != nil && *c.URL != ""
}

// ScrapedData is the fixed-shape record extracted from a competitor page.
// Every field is always present; unextractable values are empty.
type ScrapedData struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Tagline     string    `json:"tagline"`
	Features    []string  `json:"features"`
	Pricing     string    `json:"pricing"`
	BodyText    string    `json:"bodyText"`
	URL         string    `json:"url"`
	ScrapedAt   time.Time `json:"scrapedAt"`
}

// SWOT is the four-list SWOT breakdown returned by the scoring engine
type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// AnalysisSummary is the structured view of the engine response stored on an analysis.
// Every part is optional.
type AnalysisSummary struct {
	Summary          string           `json:"summary,omitempty"`
	MarketPosition   string           `json:"market_position,omitempty"`
	CompetitorScores []map[string]any `json:"competitor_scores,omitempty"`
	SWOT             *SWOT            `json:"swot,omitempty"`
	Recommendations  []string         `json:"recommendations,omitempty"`
}

// AnalysisUpdate is a partial update of an analysis row. Nil fields are left untouched.
type AnalysisUpdate struct {
	Name    *string
	Product *ProductDefinition
	Status  *AnalysisStatus
	Summary json.RawMessage

	// SetAggregateScore writes AggregateScore even when it is nil (clears the column)
	SetAggregateScore bool
	AggregateScore    *float64
}

// CompetitorUpdate is a partial update of a competitor row. Nil fields are left untouched.
type CompetitorUpdate struct {
	ScrapeStatus     *ScrapeStatus
	ScrapeError      *string
	ClearScrapeError bool
	ScrapedAt        *time.Time
	ScrapedData      *ScrapedData

	Tagline     *string
	Description *string
	Pricing     *string
	Features    []string

	OverallScore *float64
	FeatureScore *float64
	PricingScore *float64
	UXScore      *float64
	MarketScore  *float64
	Scores       json.RawMessage

	Strengths  []string
	Weaknesses []string
}

// CompetitorInput holds the manually entered fields of a competitor
type CompetitorInput struct {
	Name        string   `json:"name" validate:"required,max=200"`
	URL         *string  `json:"url,omitempty" validate:"omitempty,url"`
	Description *string  `json:"description,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Tagline     *string  `json:"tagline,omitempty"`
	Features    []string `json:"features,omitempty"`
	Pricing     *string  `json:"pricing,omitempty"`
	Strengths   []string `json:"strengths,omitempty"`
	Weaknesses  []string `json:"weaknesses,omitempty"`
}

// CreateAnalysisRequest creates an analysis in DRAFT with its competitors
type CreateAnalysisRequest struct {
	Name        string            `json:"name" validate:"required,max=200"`
	Product     ProductDefinition `json:"product"`
	Competitors []CompetitorInput `json:"competitors" validate:"dive"`
}

// UpdateAnalysisRequest edits analysis metadata
type UpdateAnalysisRequest struct {
	Name    *string            `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Product *ProductDefinition `json:"product,omitempty"`
}

// ScrapePreviewRequest asks for a one-off scrape of a URL
type ScrapePreviewRequest struct {
	URL string `json:"url" validate:"required"`
}

// ScrapeBatchResponse reports how many competitors were scraped successfully
type ScrapeBatchResponse struct {
	AnalysisID string `json:"analysis_id"`
	Scraped    int    `json:"scraped"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
