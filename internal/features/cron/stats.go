package cron_feature

import (
	"math"
	"time"
)

// DefaultErrorRateThreshold is the error rate above which a config is reported
// as unhealthy.
const DefaultErrorRateThreshold = 0.1

// RunStats aggregates the outcome of every run. It is only ever written
// through Record.
type RunStats struct {
	LastRun        *time.Time `json:"lastRun,omitempty" bson:"last_run,omitempty"`
	NextRun        *time.Time `json:"nextRun,omitempty" bson:"next_run,omitempty"`
	RunCount       int64      `json:"runCount" bson:"run_count"`
	ErrorCount     int64      `json:"errorCount" bson:"error_count"`
	AverageRunTime int64      `json:"averageRunTime" bson:"average_run_time"`
}

// Record counts one run finished at `at`. Non-positive run times count the run
// but leave the moving average alone.
func (s *RunStats) Record(runTimeMs int64, success bool, at time.Time) {
	s.RunCount++
	s.LastRun = &at
	if !success {
		s.ErrorCount++
	}
	if runTimeMs <= 0 {
		return
	}
	if s.AverageRunTime == 0 || s.RunCount == 1 {
		s.AverageRunTime = runTimeMs
		return
	}
	n := float64(s.RunCount)
	s.AverageRunTime = int64(math.Round((float64(s.AverageRunTime)*(n-1) + float64(runTimeMs)) / n))
}

// ErrorRate is ErrorCount/RunCount, or exactly 0 before the first run.
func (s RunStats) ErrorRate() float64 {
	if s.RunCount == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.RunCount)
}

// RetryPolicy is declarative; the scheduler enforces it.
type RetryPolicy struct {
	MaxRetries   int   `json:"maxRetries" bson:"max_retries" yaml:"maxRetries"`
	RetryDelayMs int64 `json:"retryDelayMs" bson:"retry_delay_ms" yaml:"retryDelayMs"`
	TimeoutMs    int64 `json:"timeoutMs" bson:"timeout_ms" yaml:"timeoutMs"`
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, RetryDelayMs: 5000, TimeoutMs: 300000}
}

func (p RetryPolicy) Validate() []string {
	var errs []string
	if p.MaxRetries < 0 {
		errs = append(errs, "maxRetries must be a non-negative number")
	}
	if p.RetryDelayMs < 0 {
		errs = append(errs, "retryDelayMs must be a non-negative number")
	}
	if p.TimeoutMs < 0 {
		errs = append(errs, "timeoutMs must be a non-negative number")
	}
	return errs
}

type Notifications struct {
	OnSuccess  bool     `json:"onSuccess" bson:"on_success" yaml:"onSuccess"`
	OnError    bool     `json:"onError" bson:"on_error" yaml:"onError"`
	Recipients []string `json:"recipients" bson:"recipients" yaml:"recipients"`
}

func DefaultNotifications() Notifications {
	return Notifications{OnError: true, Recipients: []string{}}
}

// ShouldNotify reports whether a run with the given outcome has recipients to tell.
func (n Notifications) ShouldNotify(success bool) bool {
	if len(n.Recipients) == 0 {
		return false
	}
	if success {
		return n.OnSuccess
	}
	return n.OnError
}
