package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"coprox/internal/config"
	cron_feature "coprox/internal/features/cron"
	"coprox/internal/features/script"
	"coprox/internal/features/system"
	"coprox/internal/metrics"
	"coprox/internal/runner"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ConfigSource is the part of the cron config service the scheduler reads
// from and reports runs to.
type ConfigSource interface {
	Get(ctx context.Context, name string) (*cron_feature.CronConfig, error)
	ListEnabled(ctx context.Context) ([]*cron_feature.CronConfig, error)
	RecordRun(ctx context.Context, name string, runTimeMs int64, success bool) (*cron_feature.CronConfig, error)
}

// ExecutionLog is the part of the script service that tracks attempts.
type ExecutionLog interface {
	Ensure(ctx context.Context, name string) (*script.Script, error)
	Enqueue(ctx context.Context, name string) (*script.Script, error)
	Start(ctx context.Context, name string) (*script.Script, script.LogEntry, error)
	Finish(ctx context.Context, name, logID string, out script.Outcome) (*script.Script, script.LogEntry, error)
	RecoverInterrupted(ctx context.Context) (int, error)
}

type Notifier interface {
	Send(ctx context.Context, configName string, to []string, subject, body string) error
}

type Broadcaster interface {
	Broadcast(e system.Event)
}

type Scheduler struct {
	configs  ConfigSource
	scripts  ExecutionLog
	runner   runner.Runner
	notifier Notifier
	events   Broadcaster
	enabled  bool
	logger   *zap.Logger

	cron  *cron.Cron
	sleep func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	jobs    map[string]cron.EntryID
	specs   map[string]string
	running map[string]bool
	wg      sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(
	configs ConfigSource,
	scripts ExecutionLog,
	r runner.Runner,
	notifier Notifier,
	events Broadcaster,
	cfg *config.Config,
	logger *zap.Logger,
) *Scheduler {
	logger = logger.Named("scheduler")
	cl := newCronLogger(logger)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configs:  configs,
		scripts:  scripts,
		runner:   r,
		notifier: notifier,
		events:   events,
		enabled:  cfg.SchedulerEnabled,
		logger:   logger,
		cron: cron.New(
			cron.WithParser(cron_feature.Parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sleep:   sleepContext,
		jobs:    make(map[string]cron.EntryID),
		specs:   make(map[string]string),
		running: make(map[string]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start fails attempts orphaned by a previous process, registers every
// enabled config and starts the clock.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.enabled {
		s.logger.Info("Scheduler disabled")
		return nil
	}

	if n, err := s.scripts.RecoverInterrupted(ctx); err != nil {
		s.logger.Error("Failed to recover interrupted scripts", zap.Error(err))
	} else if n > 0 {
		s.logger.Warn("Recovered interrupted scripts", zap.Int("count", n))
	}

	n, err := s.Reload(ctx)
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", n))
	return nil
}

// Stop halts the clock and waits for running configs until ctx expires, then
// cancels them.
func (s *Scheduler) Stop(ctx context.Context) error {
	<-s.cron.Stop().Done()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Cancelling runs still in progress")
	}
	s.cancel()
	return nil
}

func (s *Scheduler) Reload(ctx context.Context) (int, error) {
	configs, err := s.configs.ListEnabled(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for name := range s.jobs {
		s.unregisterLocked(name)
	}
	for _, cfg := range configs {
		if err := s.registerLocked(cfg); err != nil {
			s.logger.Error("Failed to register config", zap.String("config", cfg.Name), zap.Error(err))
		}
	}
	metrics.SetScheduledJobs(len(s.jobs))
	return len(s.jobs), nil
}

func (s *Scheduler) Sync(ctx context.Context, name string) error {
	cfg, err := s.configs.Get(ctx, name)
	if err != nil && !errors.Is(err, cron_feature.ErrNotFound) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { metrics.SetScheduledJobs(len(s.jobs)) }()

	if cfg == nil || !schedulable(cfg) {
		s.unregisterLocked(name)
		return nil
	}
	return s.registerLocked(cfg)
}

// RunNow starts one run in the background. A disabled config still runs
// when triggered by hand.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	if _, err := s.configs.Get(ctx, name); err != nil {
		return err
	}
	if !s.acquire(name) {
		return cron_feature.TransitionError("Cron config %q is already running", name)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release(name)
		s.run(s.ctx, name, true)
	}()
	return nil
}

// Next returns the next fire time of every registered config.
func (s *Scheduler) Next() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]time.Time, len(s.jobs))
	for name, id := range s.jobs {
		out[name] = s.cron.Entry(id).Next
	}
	return out
}

func schedulable(cfg *cron_feature.CronConfig) bool {
	return cfg.IsEnabled() && len(cfg.EnabledScripts()) > 0
}

func (s *Scheduler) registerLocked(cfg *cron_feature.CronConfig) error {
	spec := cron_feature.ScheduleSpec(cfg.Schedule, cfg.Timezone)
	if s.specs[cfg.Name] == spec {
		return nil
	}
	s.unregisterLocked(cfg.Name)

	name := cfg.Name
	id, err := s.cron.AddFunc(spec, func() {
		if !s.acquire(name) {
			s.logger.Warn("Skipping run, previous one still active", zap.String("config", name))
			return
		}
		s.wg.Add(1)
		defer s.wg.Done()
		defer s.release(name)
		s.run(s.ctx, name, false)
	})
	if err != nil {
		return err
	}
	s.jobs[name] = id
	s.specs[name] = spec
	return nil
}

func (s *Scheduler) unregisterLocked(name string) {
	if id, ok := s.jobs[name]; ok {
		s.cron.Remove(id)
		delete(s.jobs, name)
		delete(s.specs, name)
	}
}

func (s *Scheduler) acquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, name)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
