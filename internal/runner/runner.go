package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"coprox/internal/config"
	cron_feature "coprox/internal/features/cron"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	builtinPrefix = "builtin:"
	tengoPrefix   = "tengo:"
	sqlPrefix     = "sql:"
)

// Task is one script of a cron config handed to a runner.
type Task struct {
	Config   string
	Script   cron_feature.CronScript
	Metadata cron_feature.Metadata
}

// Result is what a finished script reports back. APICalls is nil when the
// script did not count any.
type Result struct {
	APICalls *int
	Message  string
}

type Runner interface {
	Run(ctx context.Context, task Task) (Result, error)
}

// Func is a script implemented in Go.
type Func func(ctx context.Context, task Task) (Result, error)

func (f Func) Run(ctx context.Context, task Task) (Result, error) {
	return f(ctx, task)
}

// ScriptRunner resolves a script's module path to an executor:
//
//	builtin:<name>  a registered Go func
//	tengo:<file>    a tengo script under SCRIPTS_DIR
//	sql:<file>      a SQL file run against EXTERNAL_DB_DSN
//
// A path without a known prefix is looked up as a builtin.
type ScriptRunner struct {
	mu       sync.RWMutex
	builtins map[string]Func

	tengo *TengoExecutor
	sql   *SQLExecutor

	logger *zap.Logger
}

func NewScriptRunner(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) *ScriptRunner {
	r := New(NewTengoExecutor(cfg.ScriptsDir, logger), NewSQLExecutor(cfg.ExternalDBDSN), logger)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return r.sql.Close()
		},
	})
	return r
}

func New(tengo *TengoExecutor, sql *SQLExecutor, logger *zap.Logger) *ScriptRunner {
	r := &ScriptRunner{
		builtins: make(map[string]Func),
		tengo:    tengo,
		sql:      sql,
		logger:   logger.Named("runner"),
	}
	r.Register("noop", func(ctx context.Context, task Task) (Result, error) {
		return Result{Message: "nothing to do"}, nil
	})
	return r
}

// Register adds or replaces a builtin.
func (r *ScriptRunner) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builtins[name] = fn
}

func (r *ScriptRunner) Builtins() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.builtins))
	for name := range r.builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *ScriptRunner) Run(ctx context.Context, task Task) (Result, error) {
	path := task.Script.ModulePath
	r.logger.Debug("Running script",
		zap.String("config", task.Config),
		zap.String("script", task.Script.Name),
		zap.String("module_path", path),
	)

	switch {
	case strings.HasPrefix(path, tengoPrefix):
		return r.tengo.Run(ctx, strings.TrimPrefix(path, tengoPrefix), task)
	case strings.HasPrefix(path, sqlPrefix):
		return r.sql.Run(ctx, r.tengo.dir, strings.TrimPrefix(path, sqlPrefix))
	default:
		return r.runBuiltin(ctx, strings.TrimPrefix(path, builtinPrefix), task)
	}
}

func (r *ScriptRunner) runBuiltin(ctx context.Context, name string, task Task) (Result, error) {
	r.mu.RLock()
	fn, ok := r.builtins[name]
	r.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("no builtin script named %q", name)
	}
	return fn(ctx, task)
}
