package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/plan-placer/backend/internal/plan"
	"github.com/plan-placer/backend/internal/roster"
	"github.com/plan-placer/backend/internal/session"
	"github.com/plan-placer/backend/internal/storage"
	"github.com/plan-placer/backend/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid index", fmt.Errorf("rename: %w", roster.ErrInvalidIndex), http.StatusNotFound, "NOT_FOUND"},
		{"empty name", roster.ErrEmptyName, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad position", roster.ErrInvalidPosition, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no session", fmt.Errorf("%w: abc", session.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"no file", fmt.Errorf("%w: abc", storage.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"unsupported", fmt.Errorf("%w: pdf", plan.ErrUnsupportedFormat), http.StatusBadRequest, "BAD_REQUEST"},
		{"too many", session.ErrTooManySessions, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE"},
		{"closed", workspace.ErrClosed, http.StatusConflict, "CONFLICT"},
		{"api error", NewForbiddenError("no"), http.StatusForbidden, "FORBIDDEN"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := mapError(tt.err, "operation failed")
			assert.Equal(t, tt.wantStatus, apiErr.Status)
			assert.Equal(t, tt.wantCode, apiErr.Code)
		})
	}
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		showDetails bool
		wantStatus  int
		wantBody    string
	}{
		{
			name:       "api error",
			err:        NewNotFoundError("plan", "p1"),
			wantStatus: http.StatusNotFound,
			wantBody:   `{"code":"NOT_FOUND","message":"plan not found: p1"}`,
		},
		{
			name:       "echo error",
			err:        echo.NewHTTPError(http.StatusMethodNotAllowed, "Method Not Allowed"),
			wantStatus: http.StatusMethodNotAllowed,
			wantBody:   `{"code":"HTTP_ERROR","message":"Method Not Allowed"}`,
		},
		{
			name:       "domain error",
			err:        fmt.Errorf("get: %w", workspace.ErrClosed),
			wantStatus: http.StatusConflict,
			wantBody:   `{"code":"CONFLICT","message":"get: workspace closed"}`,
		},
		{
			name:       "unknown error hidden",
			err:        errors.New("secret"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"code":"UNKNOWN_ERROR","message":"An unexpected error occurred"}`,
		},
		{
			name:        "unknown error with details",
			err:         errors.New("secret"),
			showDetails: true,
			wantStatus:  http.StatusInternalServerError,
			wantBody:    `{"code":"UNKNOWN_ERROR","message":"An unexpected error occurred","details":"secret"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)

			NewErrorHandler(tt.showDetails)(tt.err, c)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, 0)
	_, err := env.sessions.Create()
	require.NoError(t, err)

	c, rec := env.request(http.MethodGet, "/api/health", nil)
	require.NoError(t, env.handlers.Health.HandleHealth(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test","workspaces":1}`, rec.Body.String())
}

func TestRegisterRoutes(t *testing.T) {
	env := newTestEnv(t, 0)
	RegisterRoutes(env.e, env.handlers)
	RegisterWebSocketRoutes(env.e, env.handlers)
	SetupMiddleware(env.e, false)

	routes := map[string]bool{}
	for _, r := range env.e.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /api/health",
		"POST /api/plans/upload",
		"GET /api/plans/upload/:jobId/status",
		"DELETE /api/plans/:id",
		"PUT /api/workspaces/:id/machines/:index",
		"GET /api/workspaces/:id/frame/msgpack",
		"GET /api/workspaces/:id/ws",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}

	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/workspaces/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"NOT_FOUND"`)
}
