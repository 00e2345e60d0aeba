package export

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/competitor"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary     = "Summary"
	sheetCompetitors = "Competitors"
	sheetSWOT        = "SWOT"
)

// ContentType of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalysisSource loads an analysis with its competitors for a caller's organization
type AnalysisSource interface {
	GetAnalysis(ctx context.Context, organizationID, id string) (*models.Analysis, error)
}

// Service renders analyses as XLSX reports
type Service struct {
	source AnalysisSource
}

// NewService creates a new export service
func NewService(source AnalysisSource) *Service {
	return &Service{source: source}
}

// Report loads the analysis and writes its workbook to w. It returns the suggested file name.
func (s *Service) Report(ctx context.Context, organizationID, analysisID string, w io.Writer) (string, error) {
	a, err := s.source.GetAnalysis(ctx, organizationID, analysisID)
	if err != nil {
		return "", err
	}
	if err := WriteAnalysisReport(w, a); err != nil {
		return "", err
	}
	return Filename(a), nil
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Filename derives a download name such as "acme-vs-rivals-2026-01-02.xlsx"
func Filename(a *models.Analysis) string {
	base := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(a.Name), "-"), "-")
	if base == "" {
		base = "analysis"
	}
	return fmt.Sprintf("%s-%s.xlsx", base, a.UpdatedAt.UTC().Format("2006-01-02"))
}

// WriteAnalysisReport writes a summary sheet, a competitor score sheet and,
// when the engine returned one, a SWOT sheet.
func WriteAnalysisReport(w io.Writer, a *models.Analysis) error {
	summary, err := competitor.ParseSummary(a.Summary)
	if err != nil {
		// a malformed summary still yields the competitor sheet
		summary = &models.AnalysisSummary{}
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	// the default sheet becomes the summary
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if err := writeSummarySheet(f, a, summary, headerStyle); err != nil {
		return err
	}
	if err := writeCompetitorSheet(f, a.Competitors, headerStyle); err != nil {
		return err
	}
	if summary.SWOT != nil {
		if err := writeSWOTSheet(f, summary.SWOT, headerStyle); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummarySheet(f *excelize.File, a *models.Analysis, summary *models.AnalysisSummary, headerStyle int) error {
	rows := [][]any{
		{"Analysis", a.Name},
		{"Status", string(a.Status)},
		{"Product", a.Product.Name},
		{"Product URL", deref(a.Product.URL)},
		{"Category", deref(a.Product.Category)},
		{"Aggregate score", scoreCell(a.AggregateScore)},
		{"Market position", summary.MarketPosition},
		{"Summary", summary.Summary},
		{"Updated", a.UpdatedAt.UTC().Format(time.RFC3339)},
	}
	for i, rec := range summary.Recommendations {
		label := ""
		if i == 0 {
			label = "Recommendations"
		}
		rows = append(rows, []any{label, rec})
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	if err := f.SetCellStyle(sheetSummary, "A1", fmt.Sprintf("A%d", len(rows)), headerStyle); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 20); err != nil {
		return err
	}
	return f.SetColWidth(sheetSummary, "B", "B", 80)
}

var competitorHeaders = []any{
	"Name", "URL", "Scrape status", "Overall", "Feature", "Pricing", "UX", "Market",
	"Tagline", "Pricing details", "Strengths", "Weaknesses", "Scraped at", "Scrape error",
}

func writeCompetitorSheet(f *excelize.File, competitors []*models.Competitor, headerStyle int) error {
	if _, err := f.NewSheet(sheetCompetitors); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetCompetitors, "A1", &competitorHeaders); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(competitorHeaders), 1)
	if err := f.SetCellStyle(sheetCompetitors, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, c := range competitors {
		scrapedAt := ""
		if c.ScrapedAt != nil {
			scrapedAt = c.ScrapedAt.UTC().Format(time.RFC3339)
		}
		row := []any{
			c.Name,
			deref(c.URL),
			string(c.ScrapeStatus),
			scoreCell(c.OverallScore),
			scoreCell(c.FeatureScore),
			scoreCell(c.PricingScore),
			scoreCell(c.UXScore),
			scoreCell(c.MarketScore),
			deref(c.Tagline),
			deref(c.Pricing),
			strings.Join(c.Strengths, "\n"),
			strings.Join(c.Weaknesses, "\n"),
			scrapedAt,
			deref(c.ScrapeError),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetCompetitors, cell, &row); err != nil {
			return fmt.Errorf("failed to write competitor row: %w", err)
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(competitorHeaders))
	return f.SetColWidth(sheetCompetitors, "A", lastCol, 18)
}

func writeSWOTSheet(f *excelize.File, swot *models.SWOT, headerStyle int) error {
	if _, err := f.NewSheet(sheetSWOT); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	columns := [][]string{swot.Strengths, swot.Weaknesses, swot.Opportunities, swot.Threats}
	headers := []any{"Strengths", "Weaknesses", "Opportunities", "Threats"}
	if err := f.SetSheetRow(sheetSWOT, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(sheetSWOT, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	for col, items := range columns {
		for row, item := range items {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(sheetSWOT, cell, item); err != nil {
				return fmt.Errorf("failed to write swot cell: %w", err)
			}
		}
	}
	return f.SetColWidth(sheetSWOT, "A", "D", 40)
}

// scoreCell leaves unscored cells blank instead of writing 0
func scoreCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
