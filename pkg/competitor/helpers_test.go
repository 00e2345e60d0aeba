package competitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jordanlanch/rivalscope/pkg/database"
	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/logger"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/jordanlanch/rivalscope/pkg/scraper"
	"github.com/jordanlanch/rivalscope/pkg/store"
	"github.com/stretchr/testify/require"
)

const testOrg = "org-1"

// recordingRepo counts competitor writes on top of a real store
type recordingRepo struct {
	domain.AnalysisRepository

	mu      sync.Mutex
	touched map[string]int
}

func (r *recordingRepo) UpdateCompetitor(ctx context.Context, id string, upd models.CompetitorUpdate) error {
	r.mu.Lock()
	r.touched[id]++
	r.mu.Unlock()
	return r.AnalysisRepository.UpdateCompetitor(ctx, id, upd)
}

func (r *recordingRepo) touchedIDs() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.touched))
	for k, v := range r.touched {
		out[k] = v
	}
	return out
}

// fakeScraper returns canned results per URL
type fakeScraper struct {
	mu      sync.Mutex
	results map[string]*models.ScrapedData
	errs    map[string]error
	calls   []string
}

func newFakeScraper() *fakeScraper {
	return &fakeScraper{
		results: map[string]*models.ScrapedData{},
		errs:    map[string]error{},
	}
}

func (f *fakeScraper) ScrapeURL(_ context.Context, rawURL string) (*models.ScrapedData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if data, ok := f.results[rawURL]; ok {
		return data, nil
	}
	return &models.ScrapedData{Features: []string{}, URL: rawURL, ScrapedAt: time.Now().UTC()}, nil
}

// fakeEngine returns a fixed response or error and records its inputs
type fakeEngine struct {
	response map[string]any
	err      error

	calls   int
	kind    string
	items   []map[string]any
	context map[string]any
	userID  string
}

func (f *fakeEngine) Analyze(_ context.Context, kind string, items []map[string]any, ctx map[string]any, actingUserID string) (map[string]any, error) {
	f.calls++
	f.kind = kind
	f.items = items
	f.context = ctx
	f.userID = actingUserID
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type testEnv struct {
	repo    *recordingRepo
	store   *store.Store
	scraper *fakeScraper
	engine  *fakeEngine
	service *Service
}

func newTestEnv(t *testing.T, concurrency int) *testEnv {
	t.Helper()
	client, err := database.Open(context.Background(), database.Options{
		Driver: "sqlite3",
		URL:    "file:" + uuid.NewString() + "?mode=memory&cache=shared&_fk=1",
	}, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	st := store.New(client)
	env := &testEnv{
		repo:    &recordingRepo{AnalysisRepository: st, touched: map[string]int{}},
		store:   st,
		scraper: newFakeScraper(),
		engine:  &fakeEngine{response: map[string]any{}},
	}
	env.service = NewService(env.repo, env.scraper, env.engine, Config{
		ScrapeConcurrency: concurrency,
		Logger:            logger.Nop(),
	})
	return env
}

// withPageScraper swaps the fake for a real fetcher + extractor
func (e *testEnv) withPageScraper(cfg scraper.FetcherConfig) {
	e.service.scraper = scraper.New(scraper.NewFetcher(cfg, nil))
}

func (e *testEnv) createAnalysis(t *testing.T, competitors ...models.CompetitorInput) *models.Analysis {
	t.Helper()
	a, err := e.service.CreateAnalysis(context.Background(), "user-1", testOrg, models.CreateAnalysisRequest{
		Name:        "Q4 landscape",
		Product:     models.ProductDefinition{Name: "Acme"},
		Competitors: competitors,
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) competitor(t *testing.T, id string) *models.Competitor {
	t.Helper()
	c, err := e.store.GetCompetitor(context.Background(), id)
	require.NoError(t, err)
	return c
}

func (e *testEnv) analysis(t *testing.T, id string) *models.Analysis {
	t.Helper()
	a, err := e.store.GetAnalysis(context.Background(), id)
	require.NoError(t, err)
	return a
}

func strPtr(s string) *string { return &s }
