package export

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type stubSource struct {
	analysis *models.Analysis
}

func (s stubSource) GetAnalysis(_ context.Context, organizationID, id string) (*models.Analysis, error) {
	if s.analysis == nil || s.analysis.ID != id || s.analysis.OrganizationID != organizationID {
		return nil, domain.NewNotFoundError("analysis")
	}
	return s.analysis, nil
}

func ptr[T any](v T) *T { return &v }

func completedAnalysis() *models.Analysis {
	summary, _ := json.Marshal(map[string]any{
		"summary":         "Acme leads on features",
		"market_position": "challenger",
		"recommendations": []string{"Lower entry price", "Ship SSO"},
		"swot": map[string]any{
			"strengths":     []string{"Fast"},
			"weaknesses":    []string{"Pricey"},
			"opportunities": []string{"EU market", "SMB"},
			"threats":       []string{"Incumbents"},
		},
	})
	scrapedAt := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return &models.Analysis{
		ID:             "a1",
		Name:           "Acme vs Rivals / Q1",
		OrganizationID: "org-1",
		Status:         models.AnalysisStatusCompleted,
		Product:        models.ProductDefinition{Name: "Acme", URL: ptr("https://acme.test")},
		Summary:        summary,
		AggregateScore: ptr(72.5),
		UpdatedAt:      time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		Competitors: []*models.Competitor{
			{
				Name:         "Globex",
				URL:          ptr("https://globex.test"),
				ScrapeStatus: models.ScrapeStatusCompleted,
				ScrapedAt:    &scrapedAt,
				OverallScore: ptr(80.0),
				UXScore:      ptr(65.0),
				Strengths:    []string{"Brand", "Integrations"},
			},
			{
				Name:         "Initech",
				ScrapeStatus: models.ScrapeStatusSkipped,
			},
		},
	}
}

func TestWriteAnalysisReport(t *testing.T) {
	t.Run("Success - all sheets", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteAnalysisReport(&buf, completedAnalysis()))

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Summary", "Competitors", "SWOT"}, f.GetSheetList())

		v, err := f.GetCellValue("Summary", "B1")
		require.NoError(t, err)
		assert.Equal(t, "Acme vs Rivals / Q1", v)
		v, _ = f.GetCellValue("Summary", "B6")
		assert.Equal(t, "72.5", v)
		v, _ = f.GetCellValue("Summary", "B7")
		assert.Equal(t, "challenger", v)
		v, _ = f.GetCellValue("Summary", "A10")
		assert.Equal(t, "Recommendations", v)
		v, _ = f.GetCellValue("Summary", "B11")
		assert.Equal(t, "Ship SSO", v)

		rows, err := f.GetRows("Competitors")
		require.NoError(t, err)
		require.Len(t, rows, 3)
		assert.Equal(t, "Name", rows[0][0])
		assert.Equal(t, "Globex", rows[1][0])
		assert.Equal(t, "COMPLETED", rows[1][2])
		assert.Equal(t, "80", rows[1][3])
		assert.Equal(t, "", rows[1][4]) // unscored stays blank
		assert.Equal(t, "65", rows[1][6])
		assert.Equal(t, "Brand\nIntegrations", rows[1][10])
		assert.Equal(t, "2026-02-01T09:00:00Z", rows[1][12])
		assert.Equal(t, "Initech", rows[2][0])
		assert.Equal(t, "SKIPPED", rows[2][2])

		v, _ = f.GetCellValue("SWOT", "C3")
		assert.Equal(t, "SMB", v)
		v, _ = f.GetCellValue("SWOT", "D2")
		assert.Equal(t, "Incumbents", v)
	})

	t.Run("Success - draft without summary", func(t *testing.T) {
		a := completedAnalysis()
		a.Summary = nil
		a.AggregateScore = nil
		a.Status = models.AnalysisStatusDraft

		var buf bytes.Buffer
		require.NoError(t, WriteAnalysisReport(&buf, a))

		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()

		assert.Equal(t, []string{"Summary", "Competitors"}, f.GetSheetList())
		v, _ := f.GetCellValue("Summary", "B6")
		assert.Equal(t, "", v)
	})

	t.Run("Success - malformed summary", func(t *testing.T) {
		a := completedAnalysis()
		a.Summary = json.RawMessage(`[1,2]`)

		var buf bytes.Buffer
		require.NoError(t, WriteAnalysisReport(&buf, a))
		assert.NotZero(t, buf.Len())
	})
}

func TestService_Report(t *testing.T) {
	svc := NewService(stubSource{analysis: completedAnalysis()})

	t.Run("Success", func(t *testing.T) {
		var buf bytes.Buffer
		name, err := svc.Report(context.Background(), "org-1", "a1", &buf)
		require.NoError(t, err)
		assert.Equal(t, "acme-vs-rivals-q1-2026-02-03.xlsx", name)
		assert.NotZero(t, buf.Len())
	})

	t.Run("Error - other organization", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := svc.Report(context.Background(), "org-2", "a1", &buf)
		assert.True(t, domain.IsNotFound(err))
		assert.Zero(t, buf.Len())
	})
}

func TestFilename(t *testing.T) {
	a := &models.Analysis{Name: "  ***  ", UpdatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "analysis-2026-01-02.xlsx", Filename(a))
}
