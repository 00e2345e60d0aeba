package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>BWidget</title><meta name="description" content="desc"></head>
<body><h1>Best Widgets</h1><ul><li>Fast shipping</li></ul></body></html>`))
	}))
	defer server.Close()

	s := New(NewFetcher(DefaultFetcherConfig(), nil))
	s.now = func() time.Time { return fixedTime }

	data, err := s.ScrapeURL(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "BWidget", data.Title)
	assert.Equal(t, "Best Widgets", data.Tagline)
	assert.Equal(t, []string{"Fast shipping"}, data.Features)
	assert.Equal(t, server.URL, data.URL)
	assert.Equal(t, fixedTime, data.ScrapedAt)
}

func TestScrapeURL_DecodesDeclaredCharset(t *testing.T) {
	// "Café Pro" in ISO-8859-1
	body := []byte("<html><head><title>Caf\xe9 Pro</title></head><body></body></html>")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write(body)
	}))
	defer server.Close()

	data, err := New(NewFetcher(DefaultFetcherConfig(), nil)).ScrapeURL(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "Café Pro", data.Title)
}

func TestScrapeURL_PropagatesFetchErrors(t *testing.T) {
	s := New(NewFetcher(DefaultFetcherConfig(), nil))

	_, err := s.ScrapeURL(context.Background(), "ftp://example.test")
	assert.ErrorIs(t, err, ErrInvalidURL)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err = s.ScrapeURL(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrFetchFailed)
}
