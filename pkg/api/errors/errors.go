package errors

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/models"
	"github.com/jordanlanch/rivalscope/pkg/scraper"
	"github.com/labstack/echo/v4"
)

// ValidationError returns a generic validation error without exposing internal details
func ValidationError(c echo.Context, err error) error {
	log.Printf("[VALIDATION ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)

	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "validation_error",
		Message: "Invalid request data. Please check your input and try again.",
	})
}

// InternalError returns a generic internal server error
func InternalError(c echo.Context, err error) error {
	log.Printf("[INTERNAL ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
	capture(c, err)

	return c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred. Please try again later.",
	})
}

// NotFoundError returns a not found error naming the resource kind
func NotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, models.ErrorResponse{
		Error:   "not_found",
		Message: resource + " not found",
	})
}

// ConflictError returns a conflict error
func ConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, models.ErrorResponse{
		Error:   "conflict",
		Message: message, // domain messages are safe to expose
	})
}

// UpstreamError reports a failing external dependency (scoring engine, competitor site)
func UpstreamError(c echo.Context, code, message string, err error) error {
	log.Printf("[UPSTREAM ERROR] Path: %s, Error: %v", c.Request().URL.Path, err)
	capture(c, err)

	return c.JSON(http.StatusBadGateway, models.ErrorResponse{
		Error:   code,
		Message: message,
	})
}

// Respond maps a service error onto the HTTP response:
// not found 404, validation and invalid URL 400, conflict 409,
// engine and fetch failures 502, anything else 500.
func Respond(c echo.Context, err error) error {
	var de *domain.DomainError
	var fe *scraper.FetchError

	switch {
	case errors.Is(err, scraper.ErrInvalidURL):
		return c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_url",
			Message: "URL must be an absolute http or https URL",
		})
	case errors.As(err, &fe):
		return UpstreamError(c, "fetch_failed", fetchMessage(fe), err)
	case errors.As(err, &de):
		switch de.Code {
		case domain.ErrCodeNotFound:
			return c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Message: de.Message})
		case domain.ErrCodeValidation:
			return c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "validation_error", Message: de.Message})
		case domain.ErrCodeConflict:
			return ConflictError(c, de.Message)
		case domain.ErrCodeForbidden:
			return c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "forbidden", Message: de.Message})
		case domain.ErrCodeUpstream:
			return UpstreamError(c, "engine_failed", de.Message, err)
		}
	case errors.Is(err, context.Canceled):
		// client went away, nothing useful to send
		return c.NoContent(499)
	}
	return InternalError(c, err)
}

func fetchMessage(fe *scraper.FetchError) string {
	switch fe.Kind {
	case scraper.FetchErrorTimeout:
		return "The page did not respond in time"
	case scraper.FetchErrorTooLarge:
		return "The page is too large to analyze"
	case scraper.FetchErrorStatus:
		return "The page returned HTTP " + http.StatusText(fe.StatusCode)
	default:
		return "The page could not be reached"
	}
}

func capture(c echo.Context, err error) {
	if hub := sentryecho.GetHubFromContext(c); hub != nil {
		hub.WithScope(func(scope *sentry.Scope) {
			scope.SetTag("path", c.Path())
			hub.CaptureException(err)
		})
	}
}
