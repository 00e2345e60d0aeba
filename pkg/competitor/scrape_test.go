package competitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/jordanlanch/rivalscope/pkg/scraper"
	"github.com/jordanlanch/rivalscope/pkg/testdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeOne(t *testing.T) {
	ctx := context.Background()

	t.Run("No URL is a skip without mutation", func(t *testing.T) {
		env := newTestEnv(t, 1)
		a := env.createAnalysis(t, models.CompetitorInput{Name: "Offline Co"})
		before := env.competitor(t, a.Competitors[0].ID)

		data, err := env.service.ScrapeOne(ctx, before.ID)

		require.NoError(t, err)
		assert.Nil(t, data)
		after := env.competitor(t, before.ID)
		assert.Equal(t, before.ScrapeStatus, after.ScrapeStatus)
		assert.Equal(t, before.UpdatedAt, after.UpdatedAt)
		assert.Empty(t, env.repo.touchedIDs())
		assert.Empty(t, env.scraper.calls)
	})

	t.Run("Unknown competitor", func(t *testing.T) {
		env := newTestEnv(t, 1)

		_, err := env.service.ScrapeOne(ctx, "missing")

		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Success overwrites only non-empty scraped fields", func(t *testing.T) {
		env := newTestEnv(t, 1)
		a := env.createAnalysis(t, models.CompetitorInput{
			Name:        "BWidget",
			URL:         strPtr("https://b.test"),
			Description: strPtr("manual description"),
			Tagline:     strPtr("manual tagline"),
			Pricing:     strPtr("manual pricing"),
			Features:    []string{"manual feature"},
		})
		scrapedAt := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
		env.scraper.results["https://b.test"] = &models.ScrapedData{
			Title:     "BWidget",
			Tagline:   "Best Widgets",
			Features:  []string{"Fast shipping"},
			URL:       "https://b.test",
			ScrapedAt: scrapedAt,
		}

		data, err := env.service.ScrapeOne(ctx, a.Competitors[0].ID)

		require.NoError(t, err)
		require.NotNil(t, data)
		c := env.competitor(t, a.Competitors[0].ID)
		assert.Equal(t, models.ScrapeStatusCompleted, c.ScrapeStatus)
		assert.Nil(t, c.ScrapeError)
		require.NotNil(t, c.ScrapedAt)
		assert.True(t, scrapedAt.Equal(*c.ScrapedAt))
		assert.Equal(t, "Best Widgets", *c.Tagline)
		assert.Equal(t, []string{"Fast shipping"}, c.Features)
		assert.Equal(t, "manual description", *c.Description, "empty scraped description keeps the manual one")
		assert.Equal(t, "manual pricing", *c.Pricing)
		require.NotNil(t, c.ScrapedData)
		assert.Equal(t, "BWidget", c.ScrapedData.Title)
	})

	t.Run("Fetch failure is recorded, not returned", func(t *testing.T) {
		env := newTestEnv(t, 1)
		a := env.createAnalysis(t, models.CompetitorInput{Name: "Down", URL: strPtr("https://down.test")})
		env.scraper.errs["https://down.test"] = &scraper.FetchError{
			URL:  "https://down.test",
			Kind: scraper.FetchErrorConnection,
			Err:  errors.New("connection refused"),
		}

		data, err := env.service.ScrapeOne(ctx, a.Competitors[0].ID)

		require.NoError(t, err)
		assert.Nil(t, data)
		c := env.competitor(t, a.Competitors[0].ID)
		assert.Equal(t, models.ScrapeStatusFailed, c.ScrapeStatus)
		require.NotNil(t, c.ScrapeError)
		assert.Contains(t, *c.ScrapeError, "connection refused")
		assert.Equal(t, 2, env.repo.touchedIDs()[c.ID], "SCRAPING then FAILED")
	})

	t.Run("Retry after failure clears the error", func(t *testing.T) {
		env := newTestEnv(t, 1)
		a := env.createAnalysis(t, models.CompetitorInput{Name: "Flaky", URL: strPtr("https://flaky.test")})
		env.scraper.errs["https://flaky.test"] = errors.New("timeout")
		_, err := env.service.ScrapeOne(ctx, a.Competitors[0].ID)
		require.NoError(t, err)

		delete(env.scraper.errs, "https://flaky.test")
		data, err := env.service.ScrapeOne(ctx, a.Competitors[0].ID)

		require.NoError(t, err)
		assert.NotNil(t, data)
		c := env.competitor(t, a.Competitors[0].ID)
		assert.Equal(t, models.ScrapeStatusCompleted, c.ScrapeStatus)
		assert.Nil(t, c.ScrapeError)
	})
}

func TestScrapeAllPending(t *testing.T) {
	ctx := context.Background()

	for _, concurrency := range []int{1, 4} {
		t.Run(fmt.Sprintf("Touches exactly the pending competitors with concurrency %d", concurrency), func(t *testing.T) {
			env := newTestEnv(t, concurrency)
			a := env.createAnalysis(t,
				models.CompetitorInput{Name: "P1", URL: strPtr("https://p1.test")},
				models.CompetitorInput{Name: "P2", URL: strPtr("https://p2.test")},
				models.CompetitorInput{Name: "P3", URL: strPtr("https://p3.test")},
				models.CompetitorInput{Name: "No URL"},
				models.CompetitorInput{Name: "Done", URL: strPtr("https://done.test")},
			)
			done := a.Competitors[4]
			completed := models.ScrapeStatusCompleted
			require.NoError(t, env.store.UpdateCompetitor(ctx, done.ID, models.CompetitorUpdate{ScrapeStatus: &completed}))
			env.scraper.errs["https://p2.test"] = errors.New("status 503")

			n, err := env.service.ScrapeAllPending(ctx, a.ID)

			require.NoError(t, err)
			assert.Equal(t, 2, n, "successes, not attempts")

			touched := env.repo.touchedIDs()
			assert.Len(t, touched, 3)
			for _, c := range a.Competitors[:3] {
				assert.Contains(t, touched, c.ID)
			}
			assert.NotContains(t, touched, a.Competitors[3].ID)
			assert.NotContains(t, touched, done.ID)

			assert.Equal(t, models.AnalysisStatusScraping, env.analysis(t, a.ID).Status)
			assert.Equal(t, models.ScrapeStatusFailed, env.competitor(t, a.Competitors[1].ID).ScrapeStatus)
			assert.Equal(t, models.ScrapeStatusSkipped, env.competitor(t, a.Competitors[3].ID).ScrapeStatus)
		})
	}

	t.Run("Empty batch still marks the analysis scraping", func(t *testing.T) {
		env := newTestEnv(t, 1)
		a := env.createAnalysis(t, models.CompetitorInput{Name: "No URL"})

		n, err := env.service.ScrapeAllPending(ctx, a.ID)

		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, models.AnalysisStatusScraping, env.analysis(t, a.ID).Status)
	})

	t.Run("Second call finds nothing left to scrape", func(t *testing.T) {
		env := newTestEnv(t, 1)
		a := env.createAnalysis(t, models.CompetitorInput{Name: "P1", URL: strPtr("https://p1.test")})

		n, err := env.service.ScrapeAllPending(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = env.service.ScrapeAllPending(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Len(t, env.scraper.calls, 1)
	})

	t.Run("Unknown analysis", func(t *testing.T) {
		env := newTestEnv(t, 1)

		_, err := env.service.ScrapeAllPending(ctx, "missing")

		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Rejected while analyzing", func(t *testing.T) {
		env := newTestEnv(t, 1)
		a := env.createAnalysis(t, models.CompetitorInput{Name: "P1", URL: strPtr("https://p1.test")})
		analyzing := models.AnalysisStatusAnalyzing
		require.NoError(t, env.store.UpdateAnalysis(ctx, a.ID, models.AnalysisUpdate{Status: &analyzing}))

		_, err := env.service.ScrapeAllPending(ctx, a.ID)

		assert.True(t, domain.IsConflict(err))
		assert.ErrorIs(t, err, ErrInvalidTransition)
		assert.Empty(t, env.scraper.calls)
	})
}

func TestScrapeAllPending_TimeoutIsolation(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	page := testdata.PageHTML("BWidget", "desc", "Best Widgets", []string{"Fast shipping"}, "")
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer fast.Close()

	for _, concurrency := range []int{1, 2} {
		t.Run(fmt.Sprintf("concurrency %d", concurrency), func(t *testing.T) {
			env := newTestEnv(t, concurrency)
			env.withPageScraper(scraper.FetcherConfig{Timeout: 100 * time.Millisecond})
			a := env.createAnalysis(t,
				models.CompetitorInput{Name: "Slow", URL: strPtr(slow.URL)},
				models.CompetitorInput{Name: "Fast", URL: strPtr(fast.URL)},
			)

			n, err := env.service.ScrapeAllPending(context.Background(), a.ID)

			require.NoError(t, err)
			assert.Equal(t, 1, n)

			slowComp := env.competitor(t, a.Competitors[0].ID)
			assert.Equal(t, models.ScrapeStatusFailed, slowComp.ScrapeStatus)
			require.NotNil(t, slowComp.ScrapeError)
			assert.Contains(t, *slowComp.ScrapeError, "timeout")

			fastComp := env.competitor(t, a.Competitors[1].ID)
			assert.Equal(t, models.ScrapeStatusCompleted, fastComp.ScrapeStatus)
			assert.Nil(t, fastComp.ScrapeError)
			assert.Equal(t, "Best Widgets", *fastComp.Tagline)
		})
	}
}
