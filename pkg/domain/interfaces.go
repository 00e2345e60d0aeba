package domain

import (
	"context"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/models"
)

// AnalysisRepository defines data access operations for analyses and their competitors.
// Every update is an independent single-row write visible to concurrent readers.
type AnalysisRepository interface {
	CreateAnalysis(ctx context.Context, a *models.Analysis) error
	GetAnalysis(ctx context.Context, id string) (*models.Analysis, error)
	GetAnalysisWithCompetitors(ctx context.Context, id string) (*models.Analysis, error)
	ListAnalyses(ctx context.Context, organizationID string) ([]*models.Analysis, error)
	UpdateAnalysis(ctx context.Context, id string, upd models.AnalysisUpdate) error
	DeleteAnalysis(ctx context.Context, id string) error
	ListStaleAnalyses(ctx context.Context, statuses []models.AnalysisStatus, updatedBefore time.Time) ([]*models.Analysis, error)

	CreateCompetitor(ctx context.Context, c *models.Competitor) error
	GetCompetitor(ctx context.Context, id string) (*models.Competitor, error)
	ListCompetitors(ctx context.Context, analysisID string) ([]*models.Competitor, error)
	// ListPendingCompetitors returns competitors of the analysis in PENDING with a non-null URL
	ListPendingCompetitors(ctx context.Context, analysisID string) ([]*models.Competitor, error)
	UpdateCompetitor(ctx context.Context, id string, upd models.CompetitorUpdate) error
	DeleteCompetitor(ctx context.Context, id string) error
	ListStaleScrapes(ctx context.Context, updatedBefore time.Time) ([]*models.Competitor, error)
}

// ScoringEngine is the external LLM-backed collaborator that scores competitors.
// The result has no guaranteed schema.
type ScoringEngine interface {
	Analyze(ctx context.Context, kind string, items []map[string]any, context map[string]any, actingUserID string) (map[string]any, error)
}

// CacheRepository defines caching operations
type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
}
