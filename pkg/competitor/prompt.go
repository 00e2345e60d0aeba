package competitor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jordanlanch/rivalscope/pkg/models"
)

const (
	// AnalysisKind tags every scoring engine call made by the pipeline
	AnalysisKind = "competitor_analysis"

	bodyExcerptLen = 1500
	notAvailable   = "N/A"
)

const responseContract = `Respond ONLY with a JSON object of this exact shape:
{
  "summary": "2-4 sentence overview of the competitive landscape",
  "market_position": "leader" | "challenger" | "follower" | "niche",
  "competitor_scores": [
    {
      "competitorId": "id exactly as given above",
      "name": "competitor name exactly as given above",
      "overallScore": 0-100,
      "featureScore": 0-100,
      "pricingScore": 0-100,
      "uxScore": 0-100,
      "marketScore": 0-100,
      "strengths": ["..."],
      "weaknesses": ["..."]
    }
  ],
  "swot": {
    "strengths": ["..."],
    "weaknesses": ["..."],
    "opportunities": ["..."],
    "threats": ["..."]
  },
  "recommendations": ["..."]
}
Include one competitor_scores entry per competitor. Scores are numbers, not strings.`

// BuildAnalysisPrompt renders the product and its competitors into one scoring prompt.
// It performs no I/O and its output depends only on its inputs.
func BuildAnalysisPrompt(product models.ProductDefinition, competitors []*models.Competitor) string {
	var b strings.Builder

	b.WriteString("You are a competitive intelligence analyst. Compare the product below with each of its competitors ")
	b.WriteString("and score every competitor from 0 to 100 on overall strength, features, pricing, user experience and market presence.\n\n")

	b.WriteString("PRODUCT\n")
	fmt.Fprintf(&b, "Name: %s\n", product.Name)
	fmt.Fprintf(&b, "URL: %s\n", orNA(deref(product.URL)))
	fmt.Fprintf(&b, "Category: %s\n", orNA(deref(product.Category)))
	fmt.Fprintf(&b, "Description: %s\n", orNA(deref(product.Description)))
	fmt.Fprintf(&b, "Strengths: %s\n", orNA(strings.Join(product.Strengths, ", ")))
	fmt.Fprintf(&b, "Weaknesses: %s\n\n", orNA(strings.Join(product.Weaknesses, ", ")))

	fmt.Fprintf(&b, "COMPETITORS (%d)\n", len(competitors))
	for i, c := range competitors {
		v := resolveCompetitor(c)
		fmt.Fprintf(&b, "%d. %s (id: %s)\n", i+1, c.Name, c.ID)
		fmt.Fprintf(&b, "   URL: %s\n", orNA(deref(c.URL)))
		fmt.Fprintf(&b, "   Description: %s\n", orNA(v.description))
		fmt.Fprintf(&b, "   Tagline: %s\n", orNA(v.tagline))
		fmt.Fprintf(&b, "   Features: %s\n", orNA(strings.Join(v.features, ", ")))
		fmt.Fprintf(&b, "   Pricing: %s\n", orNA(v.pricing))
		fmt.Fprintf(&b, "   Page excerpt: %s\n\n", orNA(v.excerpt))
	}

	b.WriteString(responseContract)
	return b.String()
}

// competitorView is a competitor with scraped and manual fields already merged
type competitorView struct {
	description string
	tagline     string
	features    []string
	pricing     string
	excerpt     string
}

// resolveCompetitor applies the field precedence used for prompts and engine items:
// scraped description and tagline win over manual ones, manual features and
// pricing win over scraped ones.
func resolveCompetitor(c *models.Competitor) competitorView {
	var scraped models.ScrapedData
	if c.ScrapedData != nil {
		scraped = *c.ScrapedData
	}

	v := competitorView{
		description: firstNonBlank(scraped.Description, deref(c.Description)),
		tagline:     firstNonBlank(scraped.Tagline, deref(c.Tagline)),
		pricing:     firstNonBlank(deref(c.Pricing), scraped.Pricing),
		excerpt:     headRunes(strings.TrimSpace(scraped.BodyText), bodyExcerptLen),
	}
	switch {
	case len(c.Features) > 0:
		v.features = c.Features
	case len(scraped.Features) > 0:
		v.features = scraped.Features
	default:
		v.features = []string{}
	}
	return v
}

// engineItems is the structured competitor list sent alongside the prompt
func engineItems(competitors []*models.Competitor) []map[string]any {
	items := make([]map[string]any, 0, len(competitors))
	for _, c := range competitors {
		v := resolveCompetitor(c)
		items = append(items, map[string]any{
			"id":          c.ID,
			"name":        c.Name,
			"description": v.description,
			"features":    v.features,
			"pricing":     v.pricing,
			"tagline":     v.tagline,
			"bodyText":    v.excerpt,
		})
	}
	return items
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func headRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
