package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Check(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name     string
		db       Pinger
		cache    Pinger
		status   int
		database string
		cacheSt  string
	}{
		{"all up", ok, ok, http.StatusOK, "up", "up"},
		{"cache disabled", ok, nil, http.StatusOK, "up", "disabled"},
		{"database down", down, ok, http.StatusServiceUnavailable, "down", "up"},
		{"cache down", ok, down, http.StatusServiceUnavailable, "up", "down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			h := NewHealthHandler(tt.db, tt.cache)
			require.NoError(t, h.Check(c))
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.database, body["database"])
			assert.Equal(t, tt.cacheSt, body["cache"])
		})
	}
}
