package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingTransport records how many requests reached the network layer
type countingTransport struct {
	calls atomic.Int32
}

func (t *countingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls.Add(1)
	return nil, errors.New("network disabled in test")
}

func TestFetch_InvalidURLNeverTouchesNetwork(t *testing.T) {
	transport := &countingTransport{}
	fetcher := NewFetcher(DefaultFetcherConfig(), &http.Client{Transport: transport})

	urls := []string{
		"ftp://example.test/file",
		"file:///etc/passwd",
		"javascript:alert(1)",
		"mailto:sales@example.test",
		"example.test/no-scheme",
		"https://",
		"://broken",
	}

	for _, u := range urls {
		t.Run(u, func(t *testing.T) {
			_, err := fetcher.Fetch(context.Background(), u)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidURL)
			assert.NotErrorIs(t, err, ErrFetchFailed)
		})
	}

	assert.Equal(t, int32(0), transport.calls.Load())
}

func TestFetch_SendsIdentifyingHeaders(t *testing.T) {
	var gotUA, gotAccept, gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		gotMethod = r.Method
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>ok</title></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{UserAgent: "TestBot/2.0"}, nil)
	page, err := fetcher.Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Equal(t, "TestBot/2.0", gotUA)
	assert.Equal(t, "text/html", gotAccept)
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), "<title>ok</title>")
}

func TestFetch_DefaultsApplied(t *testing.T) {
	fetcher := NewFetcher(FetcherConfig{}, nil)

	cfg := fetcher.Config()
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, int64(5*1024*1024), cfg.MaxBodyBytes)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewFetcher(DefaultFetcherConfig(), nil).Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchErrorStatus, fetchErr.Kind)
	assert.Equal(t, http.StatusForbidden, fetchErr.StatusCode)
}

func TestFetch_BodyTooLarge(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "declared content length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(strings.Repeat("x", 4096)))
			},
		},
		{
			name: "streamed without content length",
			handler: func(w http.ResponseWriter, r *http.Request) {
				flusher := w.(http.Flusher)
				for i := 0; i < 8; i++ {
					_, _ = w.Write([]byte(strings.Repeat("y", 512)))
					flusher.Flush()
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			fetcher := NewFetcher(FetcherConfig{MaxBodyBytes: 1024}, nil)
			_, err := fetcher.Fetch(context.Background(), server.URL)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFetchFailed)
			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, FetchErrorTooLarge, fetchErr.Kind)
		})
	}
}

func TestFetch_BodyAtLimitIsAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("z", 1024)))
	}))
	defer server.Close()

	page, err := NewFetcher(FetcherConfig{MaxBodyBytes: 1024}, nil).Fetch(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Len(t, page.Body, 1024)
}

func TestFetch_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(FetcherConfig{Timeout: 50 * time.Millisecond}, nil)
	_, err := fetcher.Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchErrorTimeout, fetchErr.Kind)
}

func TestFetch_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewFetcher(DefaultFetcherConfig(), nil).Fetch(context.Background(), url)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, FetchErrorConnection, fetchErr.Kind)
}

func TestFetch_NoRetry(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewFetcher(DefaultFetcherConfig(), nil).Fetch(context.Background(), server.URL)

	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}
