package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	common_models "coprox/internal/common/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingService struct {
	AuditService
	filters     map[string]interface{}
	page, limit int64
}

func (s *recordingService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	s.filters, s.page, s.limit = filters, page, limit
	return nil, nil
}

func newAuditApp(svc AuditService) *fiber.App {
	app := fiber.New()
	NewAuditApi(NewAuditController(svc)).Setup(app)
	return app
}

func TestListLogsFilters(t *testing.T) {
	svc := &recordingService{}
	app := newAuditApp(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/audit-logs?module=scripts&record_id=sync&action=delete&page=2&limit=500", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, int64(2), svc.page)
	assert.Equal(t, int64(20), svc.limit)
	assert.Equal(t, "scripts", svc.filters["module"])
	assert.Equal(t, "sync", svc.filters["record_id"])
	assert.Equal(t, common_models.AuditActionDelete, svc.filters["action"])

	var body auditPage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, int64(2), body.Page)
	assert.NotNil(t, body.Items)
}

func TestListLogsUnknownModule(t *testing.T) {
	app := newAuditApp(&recordingService{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/audit-logs?module=users", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
