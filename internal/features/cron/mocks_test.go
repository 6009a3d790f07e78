package cron_feature

import (
	"context"
	"sort"
	"sync"

	common_models "coprox/internal/common/models"
)

// MockCronRepository keeps documents in memory so callers never share
// pointers with the store.
type MockCronRepository struct {
	mu      sync.Mutex
	docs    map[string]Document
	Updates int
	ListErr error
}

func NewMockCronRepository(configs ...*CronConfig) *MockCronRepository {
	m := &MockCronRepository{docs: make(map[string]Document)}
	for _, c := range configs {
		m.docs[c.Name] = c.ToObject()
	}
	return m
}

func (m *MockCronRepository) Create(ctx context.Context, cfg *CronConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[cfg.Name]; ok {
		return DuplicateNameError("Config with name %q already exists", cfg.Name)
	}
	m.docs[cfg.Name] = cfg.ToObject()
	return nil
}

func (m *MockCronRepository) GetByName(ctx context.Context, name string) (*CronConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[name]
	if !ok {
		return nil, NotFoundError("Config %q not found", name)
	}
	return FromObject(doc), nil
}

func (m *MockCronRepository) List(ctx context.Context, filter ListFilter) ([]*CronConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []*CronConfig
	for _, doc := range m.docs {
		if filter.Category != "" && doc.Category != filter.Category {
			continue
		}
		if filter.Enabled != nil && doc.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, FromObject(doc))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MockCronRepository) Update(ctx context.Context, cfg *CronConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[cfg.Name]; !ok {
		return NotFoundError("Config %q not found", cfg.Name)
	}
	m.docs[cfg.Name] = cfg.ToObject()
	m.Updates++
	return nil
}

func (m *MockCronRepository) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[name]; !ok {
		return NotFoundError("Config %q not found", name)
	}
	delete(m.docs, name)
	return nil
}

func (m *MockCronRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

type auditCall struct {
	Action   common_models.AuditAction
	Module   string
	RecordID string
	Changes  map[string]common_models.Change
}

type MockAuditService struct {
	mu    sync.Mutex
	Calls []auditCall
}

func (m *MockAuditService) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, auditCall{Action: action, Module: module, RecordID: recordID, Changes: changes})
	return nil
}

func (m *MockAuditService) ListLogs(ctx context.Context, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	return []common_models.AuditLog{}, nil
}

func (m *MockAuditService) Prune(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *MockAuditService) Actions() []common_models.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]common_models.AuditAction, 0, len(m.Calls))
	for _, c := range m.Calls {
		out = append(out, c.Action)
	}
	return out
}
