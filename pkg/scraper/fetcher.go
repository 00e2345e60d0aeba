// Package scraper fetches competitor pages and extracts a fixed-shape record from them.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultUserAgent identifies the bot to the sites it visits
	DefaultUserAgent = "RivalScopeBot/1.0 (+https://rivalscope.io/bot)"
	// DefaultTimeout bounds one page fetch end to end
	DefaultTimeout = 15 * time.Second
	// DefaultMaxBodyBytes caps the response body (5 MiB)
	DefaultMaxBodyBytes int64 = 5 * 1024 * 1024
)

// FetcherConfig holds the bounds applied to every fetch
type FetcherConfig struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int64
}

// DefaultFetcherConfig returns the production bounds
func DefaultFetcherConfig() FetcherConfig {
	return FetcherConfig{
		UserAgent:    DefaultUserAgent,
		Timeout:      DefaultTimeout,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// Page is a fetched document
type Page struct {
	URL         string
	Body        []byte
	ContentType string
	StatusCode  int
}

// Fetcher issues exactly one bounded GET per call. It never retries.
type Fetcher struct {
	config FetcherConfig
	client *http.Client
}

// NewFetcher creates a fetcher. A nil client gets a fresh http.Client;
// tests inject one with a fake transport.
func NewFetcher(cfg FetcherConfig, client *http.Client) *Fetcher {
	defaults := DefaultFetcherConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaults.MaxBodyBytes
	}

	if client == nil {
		client = &http.Client{}
	} else {
		c := *client
		client = &c
	}
	if client.Timeout == 0 || client.Timeout > cfg.Timeout {
		client.Timeout = cfg.Timeout
	}

	return &Fetcher{config: cfg, client: client}
}

// Config returns the bounds this fetcher enforces
func (f *Fetcher) Config() FetcherConfig {
	return f.config
}

// ValidateURL checks that rawURL is an absolute http or https URL
func ValidateURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q is not http or https", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	return u, nil
}

// Fetch retrieves rawURL and returns its body and declared content type
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: classify(err), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			URL:        rawURL,
			Kind:       FetchErrorStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("status %s", resp.Status),
		}
	}

	limit := f.config.MaxBodyBytes
	if resp.ContentLength > limit {
		return nil, &FetchError{
			URL:  rawURL,
			Kind: FetchErrorTooLarge,
			Err:  fmt.Errorf("content length %d > %d bytes", resp.ContentLength, limit),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: classify(err), Err: err}
	}
	if int64(len(body)) > limit {
		return nil, &FetchError{
			URL:  rawURL,
			Kind: FetchErrorTooLarge,
			Err:  fmt.Errorf("body larger than %d bytes", limit),
		}
	}

	return &Page{
		URL:         rawURL,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		StatusCode:  resp.StatusCode,
	}, nil
}

func classify(err error) FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FetchErrorTimeout
	}
	return FetchErrorConnection
}
