package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/plan-placer/backend/internal/config"
	"github.com/plan-placer/backend/internal/plan"
	"github.com/plan-placer/backend/internal/session"
	"github.com/plan-placer/backend/internal/testutil"
	"github.com/plan-placer/backend/internal/viewport"
	"github.com/plan-placer/backend/internal/workspace"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{G: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type testEnv struct {
	e        *echo.Echo
	store    *testutil.MockStorageWithTempDir
	sessions *session.Manager
	registry *plan.Registry
	cfg      *config.AppConfig
	handlers *Handlers
}

// newTestEnv wires the handlers over a temp-dir mock store and real
// workspaces.
func newTestEnv(t *testing.T, maxSessions int) *testEnv {
	t.Helper()
	store := testutil.NewMockStorageWithTempDir(t.TempDir())
	registry := plan.NewRegistry()
	loader := plan.NewLoader(store, registry, 0)
	sessions := session.NewManager(func(id string) *workspace.Workspace {
		return workspace.New(id, loader, workspace.Options{Viewport: viewport.DefaultOptions()})
	}, maxSessions)
	t.Cleanup(sessions.Close)

	cfg := config.DefaultConfig()
	env := &testEnv{
		e:        echo.New(),
		store:    store,
		sessions: sessions,
		registry: registry,
		cfg:      cfg,
	}
	env.handlers = NewHandlers(&Dependencies{
		Store:      store,
		SessionMgr: sessions,
		Inspector:  registry,
		Config:     cfg,
		Version:    "test",
	})
	return env
}

// request builds an echo context. params alternates names and values.
func (env *testEnv) request(method, target string, body interface{}, params ...string) (echo.Context, *httptest.ResponseRecorder) {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := env.e.NewContext(req, rec)

	var names, values []string
	for i := 0; i+1 < len(params); i += 2 {
		names = append(names, params[i])
		values = append(values, params[i+1])
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func requireAPIError(t *testing.T, err error, status int, code string) *APIError {
	t.Helper()
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.Status, apiErr.Message)
	require.Equal(t, code, apiErr.Code)
	return apiErr
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// readyWorkspace creates a workspace showing a 200x100 plan.
func (env *testEnv) readyWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	env.store.AddFile("plan-1", "floor.png", pngBytes(t, 200, 100))
	ws, err := env.sessions.Create()
	require.NoError(t, err)
	require.NoError(t, ws.SetPlan("plan-1"))
	require.Eventually(t, func() bool {
		return ws.Frame().State == viewport.FrameReady
	}, 2*time.Second, 5*time.Millisecond)
	return ws
}
