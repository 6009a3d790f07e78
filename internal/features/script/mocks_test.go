package script

import (
	"context"
	"sort"
	"sync"

	common_models "coprox/internal/common/models"
	cron_feature "coprox/internal/features/cron"
)

type MockScriptRepository struct {
	mu      sync.Mutex
	scripts map[string]Script
}

func NewMockScriptRepository() *MockScriptRepository {
	return &MockScriptRepository{scripts: make(map[string]Script)}
}

func copyScript(s Script) *Script {
	s.Logs = append([]LogEntry{}, s.Logs...)
	s.ExecutionHistory = append([]HistoryEntry{}, s.ExecutionHistory...)
	return &s
}

func (m *MockScriptRepository) Create(ctx context.Context, s *Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scripts[s.Name]; ok {
		return cron_feature.DuplicateNameError("Script with name %q already exists", s.Name)
	}
	m.scripts[s.Name] = *copyScript(*s)
	return nil
}

func (m *MockScriptRepository) GetByName(ctx context.Context, name string) (*Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scripts[name]
	if !ok {
		return nil, cron_feature.NotFoundError("Script %q not found", name)
	}
	return copyScript(s), nil
}

func (m *MockScriptRepository) List(ctx context.Context) ([]*Script, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Script, 0, len(m.scripts))
	for _, s := range m.scripts {
		out = append(out, copyScript(s))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockScriptRepository) ListByStatus(ctx context.Context, status Status) ([]*Script, error) {
	all, _ := m.List(ctx)
	var out []*Script
	for _, s := range all {
		if s.Status == status {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockScriptRepository) Update(ctx context.Context, s *Script) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scripts[s.Name]; !ok {
		return cron_feature.NotFoundError("Script %q not found", s.Name)
	}
	m.scripts[s.Name] = *copyScript(*s)
	return nil
}

func (m *MockScriptRepository) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.scripts[name]; !ok {
		return cron_feature.NotFoundError("Script %q not found", name)
	}
	delete(m.scripts, name)
	return nil
}

func (m *MockScriptRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

type MockAuditService struct {
	mu      sync.Mutex
	Actions []common_models.AuditAction
}

func (m *MockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Actions = append(m.Actions, action)
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return []common_models.AuditLog{}, nil
}

func (m *MockAuditService) Prune(ctx context.Context) (int64, error) {
	return 0, nil
}
