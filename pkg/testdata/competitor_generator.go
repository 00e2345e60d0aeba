// Package testdata generates realistic competitor fixtures for tests and local seeding.
package testdata

import (
	"fmt"
	"html"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jordanlanch/rivalscope/pkg/models"
)

// CompetitorGeneratorConfig configures fixture generation
type CompetitorGeneratorConfig struct {
	Count         int
	Seed          int64
	URLChance     float64 // 0.0-1.0 probability of having a URL
	ManualChance  float64 // probability of manually entered description/pricing
	BaseURL       string  // when set, URLs point at BaseURL/<slug> instead of a fake domain
	FeatureCounts [2]int  // min, max manual features
}

// DefaultCompetitorConfig returns a config producing count competitors, most of them with URLs
func DefaultCompetitorConfig(count int) CompetitorGeneratorConfig {
	return CompetitorGeneratorConfig{
		Count:         count,
		Seed:          42,
		URLChance:     0.8,
		ManualChance:  0.5,
		FeatureCounts: [2]int{0, 4},
	}
}

var pricingTiers = []string{"Free", "Starter", "Pro", "Business", "Enterprise"}

// GenerateProduct returns a product definition with a few strengths and weaknesses
func GenerateProduct(seed int64) models.ProductDefinition {
	gofakeit.Seed(seed)

	category := gofakeit.BuzzWord() + " software"
	description := fmt.Sprintf("%s platform for %s teams", capitalize(gofakeit.BuzzWord()), gofakeit.BuzzWord())
	url := "https://" + gofakeit.DomainName()

	return models.ProductDefinition{
		Name:        gofakeit.Company(),
		URL:         &url,
		Category:    &category,
		Description: &description,
		Strengths:   []string{"Fast onboarding", "Transparent pricing"},
		Weaknesses:  []string{"Small integration catalog"},
	}
}

// GenerateCompetitorInputs returns cfg.Count competitor inputs with unique names
func GenerateCompetitorInputs(cfg CompetitorGeneratorConfig) []models.CompetitorInput {
	gofakeit.Seed(cfg.Seed)

	seen := make(map[string]bool, cfg.Count)
	inputs := make([]models.CompetitorInput, 0, cfg.Count)

	for len(inputs) < cfg.Count {
		name := gofakeit.Company()
		if seen[name] {
			name = fmt.Sprintf("%s %s", name, gofakeit.Numerify("##"))
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		in := models.CompetitorInput{Name: name}

		if chance(cfg.URLChance) {
			url := "https://" + gofakeit.DomainName()
			if cfg.BaseURL != "" {
				url = strings.TrimRight(cfg.BaseURL, "/") + "/" + slug(name)
			}
			in.URL = &url
		}

		if chance(cfg.ManualChance) {
			description := fmt.Sprintf("%s for %s", capitalize(gofakeit.BuzzWord()), gofakeit.BuzzWord())
			pricing := fmt.Sprintf("%s plan from $%d/mo", pricingTiers[gofakeit.Number(0, len(pricingTiers)-1)], gofakeit.Number(5, 499))
			in.Description = &description
			in.Pricing = &pricing
		}

		n := gofakeit.Number(cfg.FeatureCounts[0], max(cfg.FeatureCounts[0], cfg.FeatureCounts[1]))
		for i := 0; i < n; i++ {
			in.Features = append(in.Features, feature())
		}

		inputs = append(inputs, in)
	}

	return inputs
}

// PageHTML renders a competitor landing page the extractor understands
func PageHTML(title, description, tagline string, features []string, pricing string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head>")
	fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(title))
	if description != "" {
		fmt.Fprintf(&b, `<meta name="description" content="%s">`, html.EscapeString(description))
	}
	b.WriteString(`</head><body><nav><ul><li>Home page link</li><li>Pricing page link</li></ul></nav><main>`)
	if tagline != "" {
		fmt.Fprintf(&b, "<h1>%s</h1>", html.EscapeString(tagline))
	}
	if len(features) > 0 {
		b.WriteString("<ul>")
		for _, f := range features {
			fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(f))
		}
		b.WriteString("</ul>")
	}
	if pricing != "" {
		fmt.Fprintf(&b, `<section class="pricing">%s</section>`, html.EscapeString(pricing))
	}
	b.WriteString("</main><footer>Copyright</footer></body></html>")
	return b.String()
}

// RandomPage renders a page with generated content and returns the tagline it used
func RandomPage() (string, string) {
	tagline := fmt.Sprintf("The %s way to %s", gofakeit.BuzzWord(), gofakeit.BuzzWord())
	features := []string{feature(), feature(), feature()}
	page := PageHTML(gofakeit.Company(), gofakeit.Sentence(8), tagline, features, fmt.Sprintf("From $%d/mo", gofakeit.Number(5, 99)))
	return page, tagline
}

func feature() string {
	return fmt.Sprintf("%s %s support", capitalize(gofakeit.BuzzWord()), gofakeit.RandomString([]string{"analytics", "workflow", "reporting", "SSO", "API"}))
}

func chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return gofakeit.Float64Range(0, 1) < p
}

func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "-"):
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
