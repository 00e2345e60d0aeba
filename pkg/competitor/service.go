package competitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/logger"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/jordanlanch/rivalscope/pkg/scraper"
)

var (
	// ErrEngineFailed wraps every scoring engine failure surfaced by RunAnalysis
	ErrEngineFailed = errors.New("scoring engine failed")
	// ErrInvalidTransition is returned when an analysis cannot move to the requested status
	ErrInvalidTransition = errors.New("invalid analysis status transition")
)

// PageScraper turns a URL into ScrapedData
type PageScraper interface {
	ScrapeURL(ctx context.Context, rawURL string) (*models.ScrapedData, error)
}

// Observer receives pipeline outcomes. pkg/metrics implements it.
type Observer interface {
	ScrapeFinished(status models.ScrapeStatus)
	AnalysisFinished(status models.AnalysisStatus)
	EngineCall(d time.Duration, err error)
}

// Config tunes the service
type Config struct {
	// ScrapeConcurrency bounds parallel scrapes in one batch; 1 means sequential
	ScrapeConcurrency int
	Logger            logger.Logger
	Observer          Observer
}

// Service owns analyses and competitors and runs the scrape and scoring pipeline
type Service struct {
	repo        domain.AnalysisRepository
	scraper     PageScraper
	engine      domain.ScoringEngine
	logger      logger.Logger
	observer    Observer
	concurrency int
	newID       func() string
	now         func() time.Time
}

// NewService creates a new competitor analysis service
func NewService(repo domain.AnalysisRepository, scraper PageScraper, engine domain.ScoringEngine, cfg Config) *Service {
	if cfg.ScrapeConcurrency < 1 {
		cfg.ScrapeConcurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}

	return &Service{
		repo:        repo,
		scraper:     scraper,
		engine:      engine,
		logger:      cfg.Logger.With("component", "competitor"),
		observer:    cfg.Observer,
		concurrency: cfg.ScrapeConcurrency,
		newID:       uuid.NewString,
		now:         time.Now,
	}
}

// CreateAnalysis creates a DRAFT analysis with its competitors.
// Competitors without a URL start SKIPPED, the rest PENDING.
func (s *Service) CreateAnalysis(ctx context.Context, ownerID, organizationID string, req models.CreateAnalysisRequest) (*models.Analysis, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, domain.NewValidationError("name is required")
	}
	if strings.TrimSpace(req.Product.Name) == "" {
		return nil, domain.NewValidationError("product name is required")
	}
	if err := validateOptionalURL(req.Product.URL); err != nil {
		return nil, err
	}

	competitors := make([]*models.Competitor, 0, len(req.Competitors))
	for _, in := range req.Competitors {
		c, err := s.newCompetitor(in)
		if err != nil {
			return nil, err
		}
		competitors = append(competitors, c)
	}

	product := req.Product
	if product.Strengths == nil {
		product.Strengths = []string{}
	}
	if product.Weaknesses == nil {
		product.Weaknesses = []string{}
	}

	a := &models.Analysis{
		ID:             s.newID(),
		Name:           strings.TrimSpace(req.Name),
		Product:        product,
		Status:         models.AnalysisStatusDraft,
		OwnerID:        ownerID,
		OrganizationID: organizationID,
	}
	if err := s.repo.CreateAnalysis(ctx, a); err != nil {
		return nil, err
	}

	for _, c := range competitors {
		c.AnalysisID = a.ID
		if err := s.repo.CreateCompetitor(ctx, c); err != nil {
			return nil, err
		}
	}
	a.Competitors = competitors

	s.logger.Info("analysis created", "analysis_id", a.ID, "competitors", len(competitors))
	return a, nil
}

// GetAnalysis returns the analysis with its competitors when it belongs to the organization
func (s *Service) GetAnalysis(ctx context.Context, organizationID, id string) (*models.Analysis, error) {
	a, err := s.repo.GetAnalysisWithCompetitors(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OrganizationID != organizationID {
		return nil, domain.NewNotFoundError("analysis")
	}
	return a, nil
}

// ListAnalyses returns the organization's analyses, newest first
func (s *Service) ListAnalyses(ctx context.Context, organizationID string) ([]*models.Analysis, error) {
	return s.repo.ListAnalyses(ctx, organizationID)
}

// UpdateAnalysis edits name and product metadata
func (s *Service) UpdateAnalysis(ctx context.Context, organizationID, id string, req models.UpdateAnalysisRequest) (*models.Analysis, error) {
	if _, err := s.authorize(ctx, organizationID, id); err != nil {
		return nil, err
	}

	upd := models.AnalysisUpdate{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.NewValidationError("name cannot be empty")
		}
		upd.Name = &name
	}
	if req.Product != nil {
		if strings.TrimSpace(req.Product.Name) == "" {
			return nil, domain.NewValidationError("product name is required")
		}
		if err := validateOptionalURL(req.Product.URL); err != nil {
			return nil, err
		}
		upd.Product = req.Product
	}

	if err := s.repo.UpdateAnalysis(ctx, id, upd); err != nil {
		return nil, err
	}
	return s.repo.GetAnalysisWithCompetitors(ctx, id)
}

// DeleteAnalysis removes the analysis and its competitors
func (s *Service) DeleteAnalysis(ctx context.Context, organizationID, id string) error {
	if _, err := s.authorize(ctx, organizationID, id); err != nil {
		return err
	}
	if err := s.repo.DeleteAnalysis(ctx, id); err != nil {
		return err
	}
	s.logger.Info("analysis deleted", "analysis_id", id)
	return nil
}

// AddCompetitor adds one competitor to an existing analysis
func (s *Service) AddCompetitor(ctx context.Context, organizationID, analysisID string, in models.CompetitorInput) (*models.Competitor, error) {
	if _, err := s.authorize(ctx, organizationID, analysisID); err != nil {
		return nil, err
	}

	c, err := s.newCompetitor(in)
	if err != nil {
		return nil, err
	}
	c.AnalysisID = analysisID
	if err := s.repo.CreateCompetitor(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveCompetitor deletes a competitor from its analysis
func (s *Service) RemoveCompetitor(ctx context.Context, organizationID, analysisID, competitorID string) error {
	if _, err := s.authorize(ctx, organizationID, analysisID); err != nil {
		return err
	}
	c, err := s.repo.GetCompetitor(ctx, competitorID)
	if err != nil {
		return err
	}
	if c.AnalysisID != analysisID {
		return domain.NewNotFoundError("competitor")
	}
	return s.repo.DeleteCompetitor(ctx, competitorID)
}

// AuthorizeAnalysis checks that the analysis exists within the organization
func (s *Service) AuthorizeAnalysis(ctx context.Context, organizationID, analysisID string) error {
	_, err := s.authorize(ctx, organizationID, analysisID)
	return err
}

// AuthorizeCompetitor checks that the competitor's analysis belongs to the organization
func (s *Service) AuthorizeCompetitor(ctx context.Context, organizationID, competitorID string) (*models.Competitor, error) {
	c, err := s.repo.GetCompetitor(ctx, competitorID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, organizationID, c.AnalysisID); err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.NewNotFoundError("competitor")
		}
		return nil, err
	}
	return c, nil
}

// GetCompetitor returns a competitor by id
func (s *Service) GetCompetitor(ctx context.Context, id string) (*models.Competitor, error) {
	return s.repo.GetCompetitor(ctx, id)
}

// authorize hides analyses of other organizations behind NotFound
func (s *Service) authorize(ctx context.Context, organizationID, analysisID string) (*models.Analysis, error) {
	a, err := s.repo.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	if a.OrganizationID != organizationID {
		return nil, domain.NewNotFoundError("analysis")
	}
	return a, nil
}

func (s *Service) newCompetitor(in models.CompetitorInput) (*models.Competitor, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("competitor name is required")
	}

	url := in.URL
	if url != nil && strings.TrimSpace(*url) == "" {
		url = nil
	}
	if err := validateOptionalURL(url); err != nil {
		return nil, err
	}

	status := models.ScrapeStatusPending
	if url == nil {
		status = models.ScrapeStatusSkipped
	}

	features := in.Features
	if features == nil {
		features = []string{}
	}

	return &models.Competitor{
		ID:           s.newID(),
		Name:         name,
		URL:          url,
		Description:  in.Description,
		Category:     in.Category,
		Tagline:      in.Tagline,
		Features:     features,
		Pricing:      in.Pricing,
		ScrapeStatus: status,
		Strengths:    in.Strengths,
		Weaknesses:   in.Weaknesses,
	}, nil
}

func validateOptionalURL(u *string) error {
	if u == nil || strings.TrimSpace(*u) == "" {
		return nil
	}
	if _, err := scraper.ValidateURL(*u); err != nil {
		return &domain.DomainError{
			Code:    domain.ErrCodeValidation,
			Message: fmt.Sprintf("url %q must be an absolute http or https URL", *u),
			Err:     err,
		}
	}
	return nil
}

type nopObserver struct{}

func (nopObserver) ScrapeFinished(models.ScrapeStatus)     {}
func (nopObserver) AnalysisFinished(models.AnalysisStatus) {}
func (nopObserver) EngineCall(time.Duration, error)        {}
