package cron_feature

import (
	"context"
	"time"

	common_models "coprox/internal/common/models"
	"coprox/internal/config"
	"coprox/internal/features/audit"
	"coprox/internal/lock"

	"go.uber.org/zap"
)

const auditModule = "cron_configs"

type CronService interface {
	List(ctx context.Context, filter ListFilter) ([]*CronConfig, error)
	ListEnabled(ctx context.Context) ([]*CronConfig, error)
	ListDue(ctx context.Context, at time.Time) ([]*CronConfig, error)
	Get(ctx context.Context, name string) (*CronConfig, error)
	Create(ctx context.Context, in CronConfigInput) (*CronConfig, error)
	Update(ctx context.Context, name string, patch CronConfigPatch) (*CronConfig, error)
	Delete(ctx context.Context, name string) error
	SetEnabled(ctx context.Context, name string, enabled bool) (*CronConfig, error)
	AddScript(ctx context.Context, name string, in CronScriptInput) (*CronConfig, error)
	UpdateScript(ctx context.Context, name, script string, patch CronScriptPatch) (*CronConfig, error)
	RemoveScript(ctx context.Context, name, script string) (*CronConfig, error)
	RecordRun(ctx context.Context, name string, runTimeMs int64, success bool) (*CronConfig, error)
	Stats(ctx context.Context) (Statistics, error)
	Seed(ctx context.Context, inputs []CronConfigInput) ([]string, error)
	Export(ctx context.Context) ([]byte, string, error)
}

type CronServiceImpl struct {
	repo         CronRepository
	auditService audit.AuditService
	locker       lock.Locker
	logger       *zap.Logger
	threshold    float64
}

func NewCronService(
	repo CronRepository,
	auditService audit.AuditService,
	locker lock.Locker,
	logger *zap.Logger,
	cfg *config.Config,
) CronService {
	return &CronServiceImpl{
		repo:         repo,
		auditService: auditService,
		locker:       locker,
		logger:       logger.Named("cron"),
		threshold:    cfg.ErrorRateThreshold,
	}
}

func (s *CronServiceImpl) List(ctx context.Context, filter ListFilter) ([]*CronConfig, error) {
	return s.repo.List(ctx, filter)
}

func (s *CronServiceImpl) ListEnabled(ctx context.Context) ([]*CronConfig, error) {
	enabled := true
	configs, err := s.repo.List(ctx, ListFilter{Enabled: &enabled})
	if err != nil {
		return nil, err
	}
	return NewRegistry(configs...).Enabled(), nil
}

func (s *CronServiceImpl) ListDue(ctx context.Context, at time.Time) ([]*CronConfig, error) {
	enabled := true
	configs, err := s.repo.List(ctx, ListFilter{Enabled: &enabled})
	if err != nil {
		return nil, err
	}
	return NewRegistry(configs...).Due(at), nil
}

func (s *CronServiceImpl) Get(ctx context.Context, name string) (*CronConfig, error) {
	return s.repo.GetByName(ctx, name)
}

func (s *CronServiceImpl) Create(ctx context.Context, in CronConfigInput) (*CronConfig, error) {
	cfg := NewCronConfig(in)
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationError("Invalid config", errs)
	}
	if err := cfg.RefreshNextRun(now()); err != nil {
		return nil, ValidationError("Invalid config", []string{err.Error()})
	}

	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, err
	}

	s.audit(ctx, common_models.AuditActionCreate, cfg.Name, map[string]common_models.Change{
		"cron_config": {New: cfg.ToObject()},
	})
	return cfg, nil
}

func (s *CronServiceImpl) Update(ctx context.Context, name string, patch CronConfigPatch) (*CronConfig, error) {
	var before Document
	cfg, err := s.mutate(ctx, name, func(cfg *CronConfig) error {
		before = cfg.ToObject()
		if err := cfg.Apply(patch); err != nil {
			return err
		}
		return cfg.RefreshNextRun(now())
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, common_models.AuditActionUpdate, name, map[string]common_models.Change{
		"cron_config": {Old: before, New: cfg.ToObject()},
	})
	return cfg, nil
}

func (s *CronServiceImpl) Delete(ctx context.Context, name string) error {
	unlock, err := s.locker.Lock(ctx, lockKey(name))
	if err != nil {
		return err
	}
	defer unlock()

	old, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, name); err != nil {
		return err
	}

	s.audit(ctx, common_models.AuditActionDelete, name, map[string]common_models.Change{
		"cron_config": {Old: old.ToObject(), New: "DELETED"},
	})
	return nil
}

func (s *CronServiceImpl) SetEnabled(ctx context.Context, name string, enabled bool) (*CronConfig, error) {
	cfg, err := s.mutate(ctx, name, func(cfg *CronConfig) error {
		cfg.SetEnabled(enabled)
		return nil
	})
	if err != nil {
		return nil, err
	}

	action := common_models.AuditActionDisable
	if enabled {
		action = common_models.AuditActionEnable
	}
	s.audit(ctx, action, name, map[string]common_models.Change{
		"enabled": {Old: !enabled, New: enabled},
	})
	return cfg, nil
}

func (s *CronServiceImpl) AddScript(ctx context.Context, name string, in CronScriptInput) (*CronConfig, error) {
	var added CronScript
	cfg, err := s.mutate(ctx, name, func(cfg *CronConfig) error {
		var err error
		added, err = cfg.AddScript(in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, common_models.AuditActionUpdate, name, map[string]common_models.Change{
		"scripts." + added.Name: {New: added},
	})
	return cfg, nil
}

func (s *CronServiceImpl) UpdateScript(ctx context.Context, name, script string, patch CronScriptPatch) (*CronConfig, error) {
	var before, after CronScript
	cfg, err := s.mutate(ctx, name, func(cfg *CronConfig) error {
		before, _ = cfg.Script(script)
		var err error
		after, err = cfg.UpdateScript(script, patch)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, common_models.AuditActionUpdate, name, map[string]common_models.Change{
		"scripts." + script: {Old: before, New: after},
	})
	return cfg, nil
}

func (s *CronServiceImpl) RemoveScript(ctx context.Context, name, script string) (*CronConfig, error) {
	var removed CronScript
	cfg, err := s.mutate(ctx, name, func(cfg *CronConfig) error {
		removed, _ = cfg.Script(script)
		return cfg.RemoveScript(script)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, common_models.AuditActionUpdate, name, map[string]common_models.Change{
		"scripts." + script: {Old: removed, New: "DELETED"},
	})
	return cfg, nil
}

// RecordRun folds one finished run into the config's statistics and moves
// NextRun forward.
func (s *CronServiceImpl) RecordRun(ctx context.Context, name string, runTimeMs int64, success bool) (*CronConfig, error) {
	cfg, err := s.mutate(ctx, name, func(cfg *CronConfig) error {
		cfg.UpdateRunStats(runTimeMs, success)
		if err := cfg.RefreshNextRun(now()); err != nil {
			s.logger.Warn("Could not compute next run", zap.String("config", name), zap.Error(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if cfg.HasHighErrorRate(s.threshold) {
		s.logger.Warn("Cron config has a high error rate",
			zap.String("config", name),
			zap.Float64("error_rate", cfg.ErrorRate()),
			zap.Int64("runs", cfg.Stats.RunCount),
			zap.Int64("errors", cfg.Stats.ErrorCount),
		)
	}
	return cfg, nil
}

func (s *CronServiceImpl) Stats(ctx context.Context) (Statistics, error) {
	configs, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return Statistics{}, err
	}
	return NewRegistry(configs...).Stats(s.threshold), nil
}

// Seed inserts the inputs whose names are not stored yet. Invalid inputs are
// logged and skipped.
func (s *CronServiceImpl) Seed(ctx context.Context, inputs []CronConfigInput) ([]string, error) {
	existing, err := s.repo.List(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}

	registry := NewRegistry(existing...)
	added, invalid := registry.Seed(inputs)
	for name, errs := range invalid {
		s.logger.Warn("Skipping invalid seed config", zap.String("config", name), zap.Strings("errors", errs))
	}

	for _, name := range added {
		cfg, _ := registry.Get(name)
		if err := cfg.RefreshNextRun(now()); err != nil {
			s.logger.Warn("Could not compute next run", zap.String("config", name), zap.Error(err))
		}
		if err := s.repo.Create(ctx, cfg); err != nil {
			return nil, err
		}
		s.audit(ctx, common_models.AuditActionSeed, name, map[string]common_models.Change{
			"cron_config": {New: cfg.ToObject()},
		})
	}
	return added, nil
}

// mutate runs fn on the stored config under the config's lock and persists
// the result. Nothing is written when fn fails.
func (s *CronServiceImpl) mutate(ctx context.Context, name string, fn func(*CronConfig) error) (*CronConfig, error) {
	unlock, err := s.locker.Lock(ctx, lockKey(name))
	if err != nil {
		return nil, err
	}
	defer unlock()

	cfg, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := fn(cfg); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *CronServiceImpl) audit(ctx context.Context, action common_models.AuditAction, name string, changes map[string]common_models.Change) {
	if err := s.auditService.LogChange(ctx, action, auditModule, name, changes); err != nil {
		s.logger.Error("Failed to write audit log", zap.String("config", name), zap.Error(err))
	}
}

func lockKey(name string) string {
	return "cron_config:" + name
}
