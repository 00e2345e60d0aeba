package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jordanlanch/rivalscope/pkg/competitor"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ competitor.Observer = (*Metrics)(nil)

// sample returns the counter or gauge value (or histogram sample count) of the
// series matching the given label pairs, or 0 when absent
func sample(t *testing.T, m *Metrics, name string, labelPairs ...string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)

	want := map[string]string{}
	for i := 0; i+1 < len(labelPairs); i += 2 {
		want[labelPairs[i]] = labelPairs[i+1]
	}

	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			matched := 0
			for _, label := range metric.GetLabel() {
				if v, ok := want[label.GetName()]; ok && v == label.GetValue() {
					matched++
				}
			}
			if matched != len(want) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				return metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				return metric.GetGauge().GetValue()
			case metric.GetHistogram() != nil:
				return float64(metric.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func TestNew_IndependentRegistries(t *testing.T) {
	// two instances must not collide on registration
	m1 := New()
	m2 := New()
	m1.ScrapeFinished(models.ScrapeStatusCompleted)

	assert.Equal(t, 1.0, sample(t, m1, "competitor_scrapes_total", "status", "COMPLETED"))
	assert.Equal(t, 0.0, sample(t, m2, "competitor_scrapes_total", "status", "COMPLETED"))
}

func TestPipelineMetrics(t *testing.T) {
	m := New()

	m.ScrapeFinished(models.ScrapeStatusCompleted)
	m.ScrapeFinished(models.ScrapeStatusFailed)
	m.ScrapeFinished(models.ScrapeStatusFailed)
	m.AnalysisFinished(models.AnalysisStatusCompleted)
	m.EngineCall(2*time.Second, nil)
	m.EngineCall(time.Second, errors.New("boom"))
	m.CacheHit("scrape_preview")
	m.CacheMiss("scrape_preview")
	m.CacheMiss("scrape_preview")
	m.UpdateDBConnections(3, 2)

	assert.Equal(t, 1.0, sample(t, m, "competitor_scrapes_total", "status", "COMPLETED"))
	assert.Equal(t, 2.0, sample(t, m, "competitor_scrapes_total", "status", "FAILED"))
	assert.Equal(t, 1.0, sample(t, m, "competitor_analyses_total", "status", "COMPLETED"))
	assert.Equal(t, 1.0, sample(t, m, "scoring_engine_duration_seconds", "outcome", "ok"))
	assert.Equal(t, 1.0, sample(t, m, "scoring_engine_duration_seconds", "outcome", "error"))
	assert.Equal(t, 1.0, sample(t, m, "cache_hits_total", "cache", "scrape_preview"))
	assert.Equal(t, 2.0, sample(t, m, "cache_misses_total", "cache", "scrape_preview"))
	assert.Equal(t, 3.0, sample(t, m, "db_connections", "state", "in_use"))
	assert.Equal(t, 2.0, sample(t, m, "db_connections", "state", "idle"))
}

func TestMiddleware(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/analyses/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	})

	for _, path := range []string{"/api/v1/analyses/a1", "/api/v1/analyses/a2", "/fail"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, sample(t, m, "http_requests_total", "method", "GET", "path", "/api/v1/analyses/:id", "status", "200"))
	assert.Equal(t, 1.0, sample(t, m, "http_requests_total", "method", "GET", "path", "/fail", "status", "502"))
}

func TestHandler_ExposesPipelineMetrics(t *testing.T) {
	m := New()
	m.AnalysisFinished(models.AnalysisStatusFailed)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `competitor_analyses_total{status="FAILED"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
