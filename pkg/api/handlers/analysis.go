package handlers

import (
	"bytes"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jordanlanch/rivalscope/pkg/api/errors"
	custommw "github.com/jordanlanch/rivalscope/pkg/api/middleware"
	"github.com/jordanlanch/rivalscope/pkg/cache"
	"github.com/jordanlanch/rivalscope/pkg/competitor"
	"github.com/jordanlanch/rivalscope/pkg/export"
	"github.com/jordanlanch/rivalscope/pkg/logger"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/labstack/echo/v4"
)

// ScrapeCompetitorResponse is returned when a single-competitor scrape produced no data
type ScrapeCompetitorResponse struct {
	CompetitorID string              `json:"competitor_id"`
	Skipped      bool                `json:"skipped"`
	ScrapeStatus models.ScrapeStatus `json:"scrape_status"`
	ScrapeError  *string             `json:"scrape_error,omitempty"`
}

// AnalysisHandler handles competitive analysis endpoints
type AnalysisHandler struct {
	service   *competitor.Service
	previewer competitor.PageScraper
	previews  *cache.PreviewCache
	exporter  *export.Service
	archive   *export.Archive
	validator *validator.Validate
	logger    logger.Logger
}

// NewAnalysisHandler creates a new analysis handler. previews may be nil to disable caching.
func NewAnalysisHandler(service *competitor.Service, previewer competitor.PageScraper, previews *cache.PreviewCache, exporter *export.Service, log logger.Logger) *AnalysisHandler {
	if log == nil {
		log = logger.Default()
	}
	return &AnalysisHandler{
		service:   service,
		previewer: previewer,
		previews:  previews,
		exporter:  exporter,
		validator: validator.New(),
		logger:    log,
	}
}

// WithArchive enables the report archive endpoints
func (h *AnalysisHandler) WithArchive(archive *export.Archive) *AnalysisHandler {
	h.archive = archive
	return h
}

// RegisterRoutes mounts the analysis endpoints on an authenticated group
func (h *AnalysisHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/analyses", h.CreateAnalysis)
	g.GET("/analyses", h.ListAnalyses)
	g.GET("/analyses/:id", h.GetAnalysis)
	g.PATCH("/analyses/:id", h.UpdateAnalysis)
	g.DELETE("/analyses/:id", h.DeleteAnalysis)
	g.POST("/analyses/:id/competitors", h.AddCompetitor)
	g.DELETE("/analyses/:id/competitors/:competitorId", h.RemoveCompetitor)
	g.POST("/analyses/:id/scrape", h.ScrapeAnalysis)
	g.POST("/analyses/:id/run", h.Run)
	g.POST("/analyses/:id/analyze", h.Analyze)
	g.GET("/analyses/:id/export.xlsx", h.Export)
	if h.archive != nil {
		g.POST("/analyses/:id/reports", h.ArchiveReport)
		g.GET("/analyses/:id/reports", h.ListReports)
	}
	g.POST("/competitors/:competitorId/scrape", h.ScrapeCompetitor)
	g.POST("/scrape/preview", h.Preview)
}

// CreateAnalysis godoc
// @Summary Create a competitive analysis
// @Description Creates an analysis in DRAFT with its product definition and competitors
// @Tags Analyses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.CreateAnalysisRequest true "Analysis definition"
// @Success 201 {object} models.Analysis
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /analyses [post]
func (h *AnalysisHandler) CreateAnalysis(c echo.Context) error {
	var req models.CreateAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	a, err := h.service.CreateAnalysis(c.Request().Context(), custommw.UserID(c), custommw.OrganizationID(c), req)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// ListAnalyses godoc
// @Summary List analyses
// @Description Lists the analyses of the caller's organization, newest first
// @Tags Analyses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{} "analyses and total"
// @Router /analyses [get]
func (h *AnalysisHandler) ListAnalyses(c echo.Context) error {
	list, err := h.service.ListAnalyses(c.Request().Context(), custommw.OrganizationID(c))
	if err != nil {
		return errors.Respond(c, err)
	}
	if list == nil {
		list = []*models.Analysis{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"analyses": list,
		"total":    len(list),
	})
}

// GetAnalysis godoc
// @Summary Get an analysis
// @Description Returns an analysis with its competitors
// @Tags Analyses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Success 200 {object} models.Analysis
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /analyses/{id} [get]
func (h *AnalysisHandler) GetAnalysis(c echo.Context) error {
	a, err := h.service.GetAnalysis(c.Request().Context(), custommw.OrganizationID(c), c.Param("id"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// UpdateAnalysis godoc
// @Summary Update analysis metadata
// @Tags Analyses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Param request body models.UpdateAnalysisRequest true "Fields to change"
// @Success 200 {object} models.Analysis
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /analyses/{id} [patch]
func (h *AnalysisHandler) UpdateAnalysis(c echo.Context) error {
	var req models.UpdateAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	a, err := h.service.UpdateAnalysis(c.Request().Context(), custommw.OrganizationID(c), c.Param("id"), req)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// DeleteAnalysis godoc
// @Summary Delete an analysis and its competitors
// @Tags Analyses
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /analyses/{id} [delete]
func (h *AnalysisHandler) DeleteAnalysis(c echo.Context) error {
	if err := h.service.DeleteAnalysis(c.Request().Context(), custommw.OrganizationID(c), c.Param("id")); err != nil {
		return errors.Respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddCompetitor godoc
// @Summary Add a competitor to an analysis
// @Description The competitor starts PENDING, or SKIPPED when it has no URL
// @Tags Competitors
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Param request body models.CompetitorInput true "Competitor"
// @Success 201 {object} models.Competitor
// @Failure 400 {object} models.ErrorResponse "Validation error"
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /analyses/{id}/competitors [post]
func (h *AnalysisHandler) AddCompetitor(c echo.Context) error {
	var req models.CompetitorInput
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	comp, err := h.service.AddCompetitor(c.Request().Context(), custommw.OrganizationID(c), c.Param("id"), req)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, comp)
}

// RemoveCompetitor godoc
// @Summary Remove a competitor
// @Tags Competitors
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Param competitorId path string true "Competitor ID"
// @Success 204
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /analyses/{id}/competitors/{competitorId} [delete]
func (h *AnalysisHandler) RemoveCompetitor(c echo.Context) error {
	err := h.service.RemoveCompetitor(c.Request().Context(), custommw.OrganizationID(c), c.Param("id"), c.Param("competitorId"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ScrapeAnalysis godoc
// @Summary Scrape every pending competitor
// @Tags Pipeline
// @Produce json
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Success 200 {object} models.ScrapeBatchResponse
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Failure 409 {object} models.ErrorResponse "Analysis is busy"
// @Router /analyses/{id}/scrape [post]
func (h *AnalysisHandler) ScrapeAnalysis(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.service.AuthorizeAnalysis(ctx, custommw.OrganizationID(c), id); err != nil {
		return errors.Respond(c, err)
	}

	n, err := h.service.ScrapeAllPending(ctx, id)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, models.ScrapeBatchResponse{AnalysisID: id, Scraped: n})
}

// ScrapeCompetitor godoc
// @Summary Scrape one competitor
// @Description Returns the scraped data, or the recorded status when the competitor was skipped or failed
// @Tags Pipeline
// @Produce json
// @Security BearerAuth
// @Param competitorId path string true "Competitor ID"
// @Success 200 {object} models.ScrapedData
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /competitors/{competitorId}/scrape [post]
func (h *AnalysisHandler) ScrapeCompetitor(c echo.Context) error {
	ctx := c.Request().Context()
	comp, err := h.service.AuthorizeCompetitor(ctx, custommw.OrganizationID(c), c.Param("competitorId"))
	if err != nil {
		return errors.Respond(c, err)
	}

	data, err := h.service.ScrapeOne(ctx, comp.ID)
	if err != nil {
		return errors.Respond(c, err)
	}
	if data != nil {
		return c.JSON(http.StatusOK, data)
	}

	// No data: read back what was recorded
	comp, err = h.service.GetCompetitor(ctx, comp.ID)
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, ScrapeCompetitorResponse{
		CompetitorID: comp.ID,
		Skipped:      comp.ScrapeStatus == models.ScrapeStatusSkipped || !comp.HasURL(),
		ScrapeStatus: comp.ScrapeStatus,
		ScrapeError:  comp.ScrapeError,
	})
}

// Run godoc
// @Summary Run the full pipeline
// @Description Scrapes pending competitors, then scores the analysis. Returns the raw engine result.
// @Tags Pipeline
// @Produce json
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Success 200 {object} map[string]interface{} "Engine result"
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Failure 409 {object} models.ErrorResponse "Analysis is busy"
// @Failure 502 {object} models.ErrorResponse "Scoring engine failed"
// @Router /analyses/{id}/run [post]
func (h *AnalysisHandler) Run(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.service.AuthorizeAnalysis(ctx, custommw.OrganizationID(c), id); err != nil {
		return errors.Respond(c, err)
	}

	result, err := h.service.Run(ctx, id, custommw.UserID(c))
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Analyze godoc
// @Summary Score an analysis
// @Description Scores the analysis without re-scraping (a DRAFT analysis is scraped first)
// @Tags Pipeline
// @Produce json
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Success 200 {object} map[string]interface{} "Engine result"
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Failure 409 {object} models.ErrorResponse "Analysis is busy"
// @Failure 502 {object} models.ErrorResponse "Scoring engine failed"
// @Router /analyses/{id}/analyze [post]
func (h *AnalysisHandler) Analyze(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.service.AuthorizeAnalysis(ctx, custommw.OrganizationID(c), id); err != nil {
		return errors.Respond(c, err)
	}

	result, err := h.service.RunAnalysis(ctx, id, custommw.UserID(c))
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// Export godoc
// @Summary Download the analysis as an XLSX report
// @Tags Analyses
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Success 200 {file} file
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /analyses/{id}/export.xlsx [get]
func (h *AnalysisHandler) Export(c echo.Context) error {
	var buf bytes.Buffer
	filename, err := h.exporter.Report(c.Request().Context(), custommw.OrganizationID(c), c.Param("id"), &buf)
	if err != nil {
		return errors.Respond(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}

// ArchiveReport godoc
// @Summary Archive the analysis report
// @Description Stores a point-in-time XLSX snapshot in the report bucket
// @Tags Analyses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Success 201 {object} export.ArchivedReport
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /analyses/{id}/reports [post]
func (h *AnalysisHandler) ArchiveReport(c echo.Context) error {
	report, err := h.archive.Save(c.Request().Context(), custommw.OrganizationID(c), c.Param("id"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusCreated, report)
}

// ListReports godoc
// @Summary List archived reports
// @Tags Analyses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Analysis ID"
// @Success 200 {object} map[string]interface{} "reports and total"
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Router /analyses/{id}/reports [get]
func (h *AnalysisHandler) ListReports(c echo.Context) error {
	reports, err := h.archive.List(c.Request().Context(), custommw.OrganizationID(c), c.Param("id"))
	if err != nil {
		return errors.Respond(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reports": reports,
		"total":   len(reports),
	})
}

// Preview godoc
// @Summary Scrape a URL without storing it
// @Description Fetches and extracts one page. Results are cached for a short time per URL.
// @Tags Pipeline
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body models.ScrapePreviewRequest true "URL to scrape"
// @Success 200 {object} models.ScrapedData
// @Failure 400 {object} models.ErrorResponse "Invalid URL"
// @Failure 502 {object} models.ErrorResponse "Fetch failed"
// @Router /scrape/preview [post]
func (h *AnalysisHandler) Preview(c echo.Context) error {
	var req models.ScrapePreviewRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return errors.ValidationError(c, err)
	}

	ctx := c.Request().Context()
	if h.previews != nil {
		data, ok, err := h.previews.Get(ctx, req.URL)
		if err != nil {
			h.logger.Warn("preview cache read failed", "error", err)
		} else if ok {
			c.Response().Header().Set("X-Cache", "HIT")
			return c.JSON(http.StatusOK, data)
		}
	}

	data, err := h.previewer.ScrapeURL(ctx, req.URL)
	if err != nil {
		return errors.Respond(c, err)
	}

	if h.previews != nil {
		if err := h.previews.Put(ctx, req.URL, data); err != nil {
			h.logger.Warn("preview cache write failed", "error", err)
		}
		c.Response().Header().Set("X-Cache", "MISS")
	}
	return c.JSON(http.StatusOK, data)
}
