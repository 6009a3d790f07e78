package scheduler

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	cron_feature "coprox/internal/features/cron"
	"coprox/internal/features/script"
	"coprox/internal/features/system"
	"coprox/internal/metrics"
	"coprox/internal/runner"

	"go.uber.org/zap"
)

// scriptResult is the final outcome of one script after its retries.
type scriptResult struct {
	Name     string
	Success  bool
	Attempts int
	Message  string
}

// run executes the enabled scripts of a config in order. A failing script
// does not stop the ones after it; the run fails if any script failed.
func (s *Scheduler) run(ctx context.Context, name string, manual bool) {
	logger := s.logger.With(zap.String("config", name))

	cfg, err := s.configs.Get(ctx, name)
	if err != nil {
		logger.Error("Failed to load config for run", zap.Error(err))
		return
	}
	if !manual && !cfg.IsEnabled() {
		logger.Debug("Config disabled since it was scheduled")
		return
	}

	scripts := cfg.EnabledScripts()
	logger.Info("Cron run started", zap.Int("scripts", len(scripts)), zap.Bool("manual", manual))
	s.events.Broadcast(system.Event{Type: "cron.started", Config: name})

	start := time.Now()
	results := make([]scriptResult, 0, len(scripts))
	success := true
	for _, sc := range scripts {
		res := s.runScript(ctx, cfg, sc)
		results = append(results, res)
		if !res.Success {
			success = false
		}
	}
	elapsed := time.Since(start)

	metrics.ObserveRun(name, success, elapsed)

	if _, err := s.configs.RecordRun(ctx, name, elapsed.Milliseconds(), success); err != nil {
		logger.Error("Failed to record run", zap.Error(err))
	}

	summary := summarize(results)
	logger.Info("Cron run finished",
		zap.Bool("success", success),
		zap.Duration("elapsed", elapsed),
		zap.String("summary", summary),
	)
	s.events.Broadcast(system.Event{Type: "cron.finished", Config: name, Success: &success, Message: summary})

	s.notify(ctx, cfg, success, elapsed, results)
}

// runScript drives one script through the execution log: queue, then up to
// 1+MaxRetries attempts, each recorded as its own log entry.
func (s *Scheduler) runScript(ctx context.Context, cfg *cron_feature.CronConfig, sc cron_feature.CronScript) scriptResult {
	record := recordName(cfg.Name, sc.Name)
	logger := s.logger.With(zap.String("config", cfg.Name), zap.String("script", sc.Name))
	res := scriptResult{Name: sc.Name}

	if _, err := s.scripts.Ensure(ctx, record); err != nil {
		res.Message = err.Error()
		logger.Error("Failed to load script record", zap.Error(err))
		return res
	}
	if _, err := s.scripts.Enqueue(ctx, record); err != nil {
		res.Message = err.Error()
		logger.Warn("Script could not be queued", zap.Error(err))
		return res
	}

	policy := cfg.Retry
	task := runner.Task{Config: cfg.Name, Script: sc, Metadata: cfg.Metadata.Clone()}

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, time.Duration(policy.RetryDelayMs)*time.Millisecond); err != nil {
				res.Message = err.Error()
				return res
			}
		}
		res.Attempts++

		_, entry, err := s.scripts.Start(ctx, record)
		if err != nil {
			res.Message = err.Error()
			logger.Error("Failed to start attempt", zap.Error(err))
			return res
		}

		out := s.attempt(ctx, policy, task)
		if _, _, err := s.scripts.Finish(ctx, record, entry.LogID, out); err != nil {
			logger.Error("Failed to finish attempt", zap.String("log_id", entry.LogID), zap.Error(err))
		}
		metrics.ObserveScript(cfg.Name, sc.Name, out.Success)
		s.events.Broadcast(system.Event{
			Type:    "script.finished",
			Config:  cfg.Name,
			Script:  sc.Name,
			Success: &out.Success,
			Message: out.Message,
		})

		res.Success, res.Message = out.Success, out.Message
		if out.Success {
			return res
		}
		logger.Warn("Script attempt failed",
			zap.Int("attempt", res.Attempts),
			zap.Int("max_retries", policy.MaxRetries),
			zap.String("message", out.Message),
		)
		if ctx.Err() != nil {
			return res
		}
	}
	return res
}

// recordName keys the execution record of a script by its config, since
// script names are only unique within one config.
func recordName(config, script string) string {
	return config + ":" + script
}

func (s *Scheduler) attempt(ctx context.Context, policy cron_feature.RetryPolicy, task runner.Task) script.Outcome {
	if policy.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(policy.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	result, err := s.runner.Run(ctx, task)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return script.Outcome{Success: false, Message: err.Error(), APICalls: result.APICalls}
	}
	return script.Outcome{Success: true, Message: result.Message, APICalls: result.APICalls}
}

func (s *Scheduler) notify(ctx context.Context, cfg *cron_feature.CronConfig, success bool, elapsed time.Duration, results []scriptResult) {
	if !cfg.Notifications.ShouldNotify(success) || len(cfg.Notifications.Recipients) == 0 {
		return
	}

	status := "succeeded"
	if !success {
		status = "failed"
	}
	subject := fmt.Sprintf("[coprox] %s %s", cfg.Name, status)

	var b strings.Builder
	fmt.Fprintf(&b, "<p>Cron config <b>%s</b> %s in %s.</p><ul>", html.EscapeString(cfg.Name), status, elapsed.Round(time.Millisecond))
	for _, r := range results {
		mark := "ok"
		if !r.Success {
			mark = "failed"
		}
		fmt.Fprintf(&b, "<li>%s: %s after %d attempt(s) %s</li>",
			html.EscapeString(r.Name), mark, r.Attempts, html.EscapeString(r.Message))
	}
	b.WriteString("</ul>")

	if err := s.notifier.Send(ctx, cfg.Name, cfg.Notifications.Recipients, subject, b.String()); err != nil {
		s.logger.Error("Failed to send notification", zap.String("config", cfg.Name), zap.Error(err))
	}
}

func summarize(results []scriptResult) string {
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	return fmt.Sprintf("%d/%d scripts succeeded", ok, len(results))
}
