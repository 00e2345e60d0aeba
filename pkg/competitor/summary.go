package competitor

import (
	"encoding/json"
	"fmt"

	"github.com/jordanlanch/rivalscope/pkg/models"
)

// ParseSummary reads a stored engine response into an AnalysisSummary.
// Parts with an unexpected type are left empty rather than failing the parse.
func ParseSummary(raw json.RawMessage) (*models.AnalysisSummary, error) {
	summary := &models.AnalysisSummary{}
	if len(raw) == 0 {
		return summary, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}

	summary.Summary = stringField(doc, "summary")
	summary.MarketPosition = stringField(doc, "market_position")
	summary.CompetitorScores = extractScoreEntries(doc)
	summary.Recommendations = stringList(doc["recommendations"])

	if swot, ok := doc["swot"].(map[string]any); ok {
		summary.SWOT = &models.SWOT{
			Strengths:     stringList(swot["strengths"]),
			Weaknesses:    stringList(swot["weaknesses"]),
			Opportunities: stringList(swot["opportunities"]),
			Threats:       stringList(swot["threats"]),
		}
	}

	return summary, nil
}
