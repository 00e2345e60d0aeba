package competitor

import (
	"encoding/json"
	"math"
	"strings"
)

// ScoreEntry is one engine score entry reduced to the fields the pipeline persists.
// Scores are nil when the entry carries no numeric value for that dimension.
type ScoreEntry struct {
	CompetitorID string
	Name         string

	Overall *float64
	Feature *float64
	Pricing *float64
	UX      *float64
	Market  *float64

	Strengths  []string
	Weaknesses []string
}

// scoreAliases lists the accepted keys per dimension in priority order
var scoreAliases = []struct {
	keys []string
	set  func(*ScoreEntry, float64)
}{
	{[]string{"overallScore", "overall"}, func(e *ScoreEntry, v float64) { e.Overall = &v }},
	{[]string{"featureScore", "feature"}, func(e *ScoreEntry, v float64) { e.Feature = &v }},
	{[]string{"pricingScore", "pricing"}, func(e *ScoreEntry, v float64) { e.Pricing = &v }},
	{[]string{"uxScore", "ux"}, func(e *ScoreEntry, v float64) { e.UX = &v }},
	{[]string{"marketScore", "market"}, func(e *ScoreEntry, v float64) { e.Market = &v }},
}

// NormalizeScoreEntry maps a raw engine entry onto a ScoreEntry.
//
// For every dimension the aliases are tried in order (xScore before x) and the
// first key holding a finite number wins; strings are not parsed. Values are
// clamped to [0, 100]. Strengths and weaknesses keep only non-blank strings.
func NormalizeScoreEntry(raw map[string]any) ScoreEntry {
	entry := ScoreEntry{
		CompetitorID: stringField(raw, "competitorId"),
		Name:         stringField(raw, "name"),
	}

	for _, alias := range scoreAliases {
		for _, key := range alias.keys {
			if v, ok := number(raw[key]); ok {
				alias.set(&entry, clampScore(v))
				break
			}
		}
	}

	entry.Strengths = stringList(raw["strengths"])
	entry.Weaknesses = stringList(raw["weaknesses"])
	return entry
}

// extractScoreEntries returns the competitor_scores array, else the patterns
// array. Anything that is not an array yields no entries.
func extractScoreEntries(result map[string]any) []map[string]any {
	for _, key := range []string{"competitor_scores", "patterns"} {
		if entries, ok := objectList(result[key]); ok {
			return entries
		}
	}
	return []map[string]any{}
}

func objectList(v any) ([]map[string]any, bool) {
	switch list := v.(type) {
	case []map[string]any:
		return list, true
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func clampScore(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return strings.TrimSpace(s)
}

func stringList(v any) []string {
	var items []any
	switch list := v.(type) {
	case []string:
		for _, s := range list {
			items = append(items, s)
		}
	case []any:
		items = list
	default:
		return nil
	}

	out := []string{}
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// aggregateScore is the mean of the numeric overall scores, nil when there are none
func aggregateScore(entries []ScoreEntry) *float64 {
	var (
		sum float64
		n   int
	)
	for _, e := range entries {
		if e.Overall != nil {
			sum += *e.Overall
			n++
		}
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n)
	return &mean
}
