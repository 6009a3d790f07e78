package script

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *fiber.App {
	svc, _, _ := newTestService()
	app := fiber.New()
	NewScriptApi(NewScriptController(svc)).Setup(app)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, body string, out any) int {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestScriptEndpointsAttemptFlow(t *testing.T) {
	app := newTestApp()

	assert.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/scripts", `{"name":"boards"}`, nil))
	assert.Equal(t, http.StatusConflict, call(t, app, http.MethodPost, "/api/scripts", `{"name":"boards"}`, nil))

	var queued Script
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/scripts/boards/queue", "", &queued))
	assert.Equal(t, StatusQueued, queued.Status)

	var entry LogEntry
	assert.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/scripts/boards/start", "", &entry))
	assert.Equal(t, LogInProgress, entry.Status)

	assert.Equal(t, http.StatusConflict, call(t, app, http.MethodPost, "/api/scripts/boards/start", "", nil))

	var done LogEntry
	path := "/api/scripts/boards/logs/" + entry.LogID + "/finish"
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodPost, path, `{"success":true,"apicalls":4}`, &done))
	assert.Equal(t, LogSuccess, done.Status)
	require.NotNil(t, done.APICalls)
	assert.Equal(t, 4, *done.APICalls)

	assert.Equal(t, http.StatusConflict, call(t, app, http.MethodPost, path, `{"success":false}`, nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, "/api/scripts/ghost/logs/x/finish", `{"success":true}`, nil))

	var logs []LogEntry
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/scripts/boards/logs?limit=5", "", &logs))
	assert.Len(t, logs, 1)

	var history []HistoryEntry
	assert.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/scripts/boards/history", "", &history))
	require.Len(t, history, 1)
	assert.Equal(t, HistorySuccess, history[0].Status)
}

func TestScriptEndpointsNotFound(t *testing.T) {
	app := newTestApp()

	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, "/api/scripts/ghost", "", nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodDelete, "/api/scripts/ghost", "", nil))
	assert.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, "/api/scripts/ghost/queue", "", nil))
}
