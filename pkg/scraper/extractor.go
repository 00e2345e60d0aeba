package scraper

import (
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/jordanlanch/rivalscope/pkg/models"
)

const (
	maxFeatures      = 20
	minFeatureLen    = 5   // exclusive
	maxFeatureLen    = 200 // exclusive
	maxPricingLen    = 1000
	maxBodyTextLen   = 5000
	strippedElements = "script, style, nav, footer, header, noscript, iframe"
)

// pricingSelectors are tried in order; the first one matching any element wins.
var pricingSelectors = []string{
	`[class*="pricing"]`,
	`[id*="pricing"]`,
	`[class*="price"]`,
	`[id*="price"]`,
	`[data-section="pricing"]`,
}

// Extract parses an HTML document into a ScrapedData record.
// It never fails: unparseable input or missing elements yield empty fields.
// Scripts are never executed and subresources are never fetched.
func Extract(r io.Reader, sourceURL string, scrapedAt time.Time) models.ScrapedData {
	data := models.ScrapedData{
		Features:  []string{},
		URL:       sourceURL,
		ScrapedAt: scrapedAt,
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return data
	}

	// Noise removal happens once, before any text is read
	doc.Find(strippedElements).Remove()

	data.Title = strings.TrimSpace(doc.Find("title").First().Text())
	data.Description = firstNonEmpty(
		metaContent(doc, `meta[name="description"]`),
		metaContent(doc, `meta[property="og:description"]`),
	)
	data.Tagline = firstNonEmpty(
		strings.TrimSpace(doc.Find("h1").First().Text()),
		metaContent(doc, `meta[property="og:title"]`),
	)
	data.Features = extractFeatures(doc)
	data.Pricing = extractPricing(doc)
	data.BodyText = collapseWhitespace(doc.Find("body").Text(), maxBodyTextLen)

	return data
}

func extractFeatures(doc *goquery.Document) []string {
	features := []string{}
	doc.Find("li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		n := utf8.RuneCountInString(text)
		if n > minFeatureLen && n < maxFeatureLen {
			features = append(features, text)
		}
		return len(features) < maxFeatures
	})
	return features
}

func extractPricing(doc *goquery.Document) string {
	for _, selector := range pricingSelectors {
		match := doc.Find(selector).First()
		if match.Length() == 0 {
			continue
		}
		return truncate(strings.TrimSpace(match.Text()), maxPricingLen)
	}
	return ""
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// collapseWhitespace turns every whitespace run into one space, trims, and truncates to max runes
func collapseWhitespace(s string, max int) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(truncate(collapsed, max))
}

// truncate cuts s to at most max runes
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
