package script

import (
	"context"
	"errors"

	common_models "coprox/internal/common/models"
	"coprox/internal/features/audit"
	cron_feature "coprox/internal/features/cron"
	"coprox/internal/lock"

	"go.uber.org/zap"
)

const auditModule = "scripts"

type ScriptService interface {
	List(ctx context.Context) ([]*Script, error)
	Get(ctx context.Context, name string) (*Script, error)
	Create(ctx context.Context, in ScriptInput) (*Script, error)
	Ensure(ctx context.Context, name string) (*Script, error)
	Delete(ctx context.Context, name string) error
	Enqueue(ctx context.Context, name string) (*Script, error)
	Start(ctx context.Context, name string) (*Script, LogEntry, error)
	Finish(ctx context.Context, name, logID string, out Outcome) (*Script, LogEntry, error)
	Logs(ctx context.Context, name string, limit int) ([]LogEntry, error)
	History(ctx context.Context, name string, limit int) ([]HistoryEntry, error)
	RecoverInterrupted(ctx context.Context) (int, error)
}

type ScriptServiceImpl struct {
	repo         ScriptRepository
	auditService audit.AuditService
	locker       lock.Locker
	logger       *zap.Logger
}

func NewScriptService(repo ScriptRepository, auditService audit.AuditService, locker lock.Locker, logger *zap.Logger) ScriptService {
	return &ScriptServiceImpl{
		repo:         repo,
		auditService: auditService,
		locker:       locker,
		logger:       logger.Named("script"),
	}
}

func (s *ScriptServiceImpl) List(ctx context.Context) ([]*Script, error) {
	return s.repo.List(ctx)
}

func (s *ScriptServiceImpl) Get(ctx context.Context, name string) (*Script, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *ScriptServiceImpl) Create(ctx context.Context, in ScriptInput) (*Script, error) {
	sc := NewScript(in)
	if errs := sc.Validate(); len(errs) > 0 {
		return nil, cron_feature.ValidationError("Invalid script", errs)
	}
	if err := s.repo.Create(ctx, sc); err != nil {
		return nil, err
	}
	s.audit(ctx, common_models.AuditActionCreate, sc.Name, map[string]common_models.Change{
		"script": {New: sc},
	})
	return sc, nil
}

// Ensure returns the named script, creating it with defaults on first use.
func (s *ScriptServiceImpl) Ensure(ctx context.Context, name string) (*Script, error) {
	sc, err := s.repo.GetByName(ctx, name)
	if err == nil {
		return sc, nil
	}
	if !errors.Is(err, cron_feature.ErrNotFound) {
		return nil, err
	}

	sc, err = s.Create(ctx, ScriptInput{Name: name})
	if errors.Is(err, cron_feature.ErrDuplicateName) {
		// created concurrently
		return s.repo.GetByName(ctx, name)
	}
	return sc, err
}

func (s *ScriptServiceImpl) Delete(ctx context.Context, name string) error {
	unlock, err := s.locker.Lock(ctx, lockKey(name))
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}
	s.audit(ctx, common_models.AuditActionDelete, name, map[string]common_models.Change{
		"script": {New: "DELETED"},
	})
	return nil
}

func (s *ScriptServiceImpl) Enqueue(ctx context.Context, name string) (*Script, error) {
	return s.mutate(ctx, name, func(sc *Script) error {
		return sc.Enqueue()
	})
}

func (s *ScriptServiceImpl) Start(ctx context.Context, name string) (*Script, LogEntry, error) {
	var entry LogEntry
	sc, err := s.mutate(ctx, name, func(sc *Script) error {
		var err error
		entry, err = sc.Start()
		return err
	})
	return sc, entry, err
}

func (s *ScriptServiceImpl) Finish(ctx context.Context, name, logID string, out Outcome) (*Script, LogEntry, error) {
	var entry LogEntry
	sc, err := s.mutate(ctx, name, func(sc *Script) error {
		var err error
		entry, err = sc.Finish(logID, out)
		return err
	})
	return sc, entry, err
}

func (s *ScriptServiceImpl) Logs(ctx context.Context, name string, limit int) ([]LogEntry, error) {
	sc, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return sc.RecentLogs(clampLimit(limit)), nil
}

func (s *ScriptServiceImpl) History(ctx context.Context, name string, limit int) ([]HistoryEntry, error) {
	sc, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return sc.RecentHistory(clampLimit(limit)), nil
}

// RecoverInterrupted fails every attempt left in progress by a previous
// process, returns scripts left queued to NotStarted and reports how many
// scripts were recovered.
func (s *ScriptServiceImpl) RecoverInterrupted(ctx context.Context) (int, error) {
	recovered := 0
	steps := []struct {
		status Status
		fix    func(*Script) error
	}{
		{StatusInProgress, func(sc *Script) error {
			_, err := sc.Abandon("interrupted by restart")
			return err
		}},
		{StatusQueued, func(sc *Script) error {
			return sc.Dequeue()
		}},
	}
	for _, step := range steps {
		stuck, err := s.repo.ListByStatus(ctx, step.status)
		if err != nil {
			return recovered, err
		}
		for _, sc := range stuck {
			if _, err := s.mutate(ctx, sc.Name, step.fix); err != nil {
				s.logger.Warn("Could not recover script", zap.String("script", sc.Name), zap.Error(err))
				continue
			}
			recovered++
		}
	}
	return recovered, nil
}

func (s *ScriptServiceImpl) mutate(ctx context.Context, name string, fn func(*Script) error) (*Script, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(name))
	if err != nil {
		return nil, err
	}
	defer unlock()

	sc, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := fn(sc); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, sc); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *ScriptServiceImpl) audit(ctx context.Context, action common_models.AuditAction, name string, changes map[string]common_models.Change) {
	if err := s.auditService.LogChange(ctx, action, auditModule, name, changes); err != nil {
		s.logger.Error("Failed to write audit log", zap.String("script", name), zap.Error(err))
	}
}

func lockKey(name string) string {
	return "script:" + name
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}
