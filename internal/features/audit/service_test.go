package audit

import (
	"context"
	"testing"
	"time"

	common_models "coprox/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockAuditRepository struct {
	logs          []common_models.AuditLog
	limit, offset int64
	cutoff        time.Time
}

func (m *MockAuditRepository) Create(ctx context.Context, log common_models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filters map[string]interface{}, limit, offset int64) ([]common_models.AuditLog, error) {
	m.limit, m.offset = limit, offset
	return m.logs, nil
}

func (m *MockAuditRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	m.cutoff = before
	return 3, nil
}

func TestLogChangeActor(t *testing.T) {
	repo := &MockAuditRepository{}
	svc := NewAuditService(repo)

	require.NoError(t, svc.LogChange(context.Background(), common_models.AuditActionCreate, "cron_configs", "sync", nil))
	ctx := context.WithValue(context.Background(), common_models.ActorKey, "ops-bot")
	require.NoError(t, svc.LogChange(ctx, common_models.AuditActionDisable, "cron_configs", "sync", map[string]common_models.Change{
		"enabled": {Old: true, New: false},
	}))

	require.Len(t, repo.logs, 2)
	assert.Equal(t, "system", repo.logs[0].ActorID)
	assert.Equal(t, "ops-bot", repo.logs[1].ActorID)
	assert.Equal(t, common_models.AuditActionDisable, repo.logs[1].Action)
	assert.Equal(t, "sync", repo.logs[1].RecordID)
	assert.False(t, repo.logs[1].ID.IsZero())
}

func TestListLogsPaging(t *testing.T) {
	repo := &MockAuditRepository{}
	svc := NewAuditService(repo)

	_, err := svc.ListLogs(context.Background(), nil, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 10, repo.limit)
	assert.EqualValues(t, 0, repo.offset)

	_, err = svc.ListLogs(context.Background(), nil, 3, 25)
	require.NoError(t, err)
	assert.EqualValues(t, 25, repo.limit)
	assert.EqualValues(t, 50, repo.offset)
}

func TestPruneUsesRetention(t *testing.T) {
	repo := &MockAuditRepository{}
	svc := NewAuditService(repo)

	n, err := svc.Prune(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
	assert.WithinDuration(t, time.Now().UTC().Add(-Retention), repo.cutoff, time.Minute)
}
