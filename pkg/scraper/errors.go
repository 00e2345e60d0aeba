package scraper

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned before any network I/O when the URL is not http(s)
	ErrInvalidURL = errors.New("invalid url")
	// ErrFetchFailed matches every *FetchError
	ErrFetchFailed = errors.New("fetch failed")
	// ErrExtractionFailed is reserved; extraction does not fail in normal operation
	ErrExtractionFailed = errors.New("extraction failed")
)

// FetchErrorKind tells why a fetch failed
type FetchErrorKind string

const (
	FetchErrorTimeout    FetchErrorKind = "timeout"
	FetchErrorTooLarge   FetchErrorKind = "too_large"
	FetchErrorConnection FetchErrorKind = "connection"
	FetchErrorStatus     FetchErrorKind = "status"
)

// FetchError carries the underlying cause of a failed page fetch
type FetchError struct {
	URL        string
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchErrorStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case FetchErrorTooLarge:
		return fmt.Sprintf("fetch %s: response body exceeds limit: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetchFailed) true for every FetchError
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}
