package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	app := fiber.New()
	NewMetricsApi().Setup(app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestRunAndScriptCounters(t *testing.T) {
	ObserveRun("metrics-test", false, 150*time.Millisecond)
	ObserveRun("metrics-test", true, 50*time.Millisecond)
	ObserveScript("metrics-test", "boards", true)
	SetScheduledJobs(4)

	body := scrape(t)
	assert.Contains(t, body, `coprox_cron_runs_total{config="metrics-test",outcome="error"} 1`)
	assert.Contains(t, body, `coprox_cron_runs_total{config="metrics-test",outcome="success"} 1`)
	assert.Contains(t, body, `coprox_script_runs_total{config="metrics-test",outcome="success",script="boards"} 1`)
	assert.Contains(t, body, `coprox_scheduled_jobs 4`)
	assert.Contains(t, body, `coprox_cron_run_duration_seconds_count{config="metrics-test"} 2`)
}

func TestObserveHTTP(t *testing.T) {
	ObserveHTTP("GET", "/api/cron-configs/:name", 404, time.Millisecond)

	body := scrape(t)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/cron-configs/:name",status="404"} 1`)
}
