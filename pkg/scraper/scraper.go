package scraper

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/models"
	"golang.org/x/net/html/charset"
)

// Scraper runs the fetch + extract cycle for one URL
type Scraper struct {
	fetcher *Fetcher
	now     func() time.Time
}

// New creates a scraper on top of a fetcher
func New(fetcher *Fetcher) *Scraper {
	return &Scraper{
		fetcher: fetcher,
		now:     time.Now,
	}
}

// ScrapeURL fetches rawURL and extracts its ScrapedData.
// Fails with ErrInvalidURL or a *FetchError; nothing is persisted.
func (s *Scraper) ScrapeURL(ctx context.Context, rawURL string) (*models.ScrapedData, error) {
	page, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	data := Extract(utf8Reader(page), rawURL, s.now().UTC())
	return &data, nil
}

// utf8Reader decodes the body using the charset from the Content-Type header
// or the document's meta tags, falling back to the raw bytes.
func utf8Reader(page *Page) io.Reader {
	r, err := charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		return bytes.NewReader(page.Body)
	}
	return r
}
