package script

import (
	"time"

	cron_feature "coprox/internal/features/cron"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// ScriptCron is the cron configuration embedded in a script record.
type ScriptCron struct {
	Schedule string                   `json:"schedule" bson:"schedule"`
	Enabled  bool                     `json:"enabled" bson:"enabled"`
	Timezone string                   `json:"timezone" bson:"timezone"`
	Retry    cron_feature.RetryPolicy `json:"retry" bson:"retry"`
	Stats    cron_feature.RunStats    `json:"stats" bson:"stats"`
}

type LogEntry struct {
	LogID     string     `json:"logId" bson:"log_id"`
	Status    LogStatus  `json:"status" bson:"status"`
	APICalls  *int       `json:"apicalls,omitempty" bson:"apicalls,omitempty"`
	StartTime time.Time  `json:"startTime" bson:"start_time"`
	EndTime   *time.Time `json:"endTime,omitempty" bson:"end_time,omitempty"`
	Message   string     `json:"message,omitempty" bson:"message,omitempty"`
}

// Duration is the elapsed time of a finished attempt, or 0 while it runs.
func (e LogEntry) Duration() time.Duration {
	if e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

func (e *LogEntry) finish(status LogStatus, message string, apicalls *int, at time.Time) error {
	if e.Status.Terminal() {
		return cron_feature.TransitionError("log %s is already %s", e.LogID, e.Status)
	}
	if !status.Terminal() {
		return cron_feature.TransitionError("log %s can only finish as success or error", e.LogID)
	}
	e.Status = status
	e.EndTime = &at
	e.Message = message
	if apicalls != nil {
		v := *apicalls
		e.APICalls = &v
	}
	return nil
}

type HistoryEntry struct {
	EndTime time.Time     `json:"endTime" bson:"end_time"`
	Status  HistoryStatus `json:"status" bson:"status"`
	Message string        `json:"message,omitempty" bson:"message,omitempty"`
}

// Outcome is what an attempt reports when it finishes.
type Outcome struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	APICalls *int   `json:"apicalls,omitempty"`
}

// Script is the execution record of one named automatable task. Logs holds
// every attempt in start order; ExecutionHistory only the finished ones.
type Script struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name             string             `json:"name" bson:"name"`
	Description      string             `json:"description,omitempty" bson:"description,omitempty"`
	Status           Status             `json:"status" bson:"status"`
	Cron             ScriptCron         `json:"cron" bson:"cron"`
	Logs             []LogEntry         `json:"logs" bson:"logs"`
	ExecutionHistory []HistoryEntry     `json:"execution_history" bson:"execution_history"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updated_at"`
}

type ScriptInput struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	Schedule     string `json:"schedule"`
	Enabled      *bool  `json:"enabled"`
	Timezone     string `json:"timezone"`
	MaxRetries   *int   `json:"maxRetries" validate:"omitempty,gte=0"`
	RetryDelayMs *int64 `json:"retryDelayMs" validate:"omitempty,gte=0"`
	TimeoutMs    *int64 `json:"timeoutMs" validate:"omitempty,gte=0"`
}

func NewScript(in ScriptInput) *Script {
	ts := now()
	s := &Script{
		Name:        in.Name,
		Description: in.Description,
		Status:      StatusNotStarted,
		Cron: ScriptCron{
			Schedule: in.Schedule,
			Enabled:  true,
			Timezone: in.Timezone,
			Retry:    cron_feature.DefaultRetryPolicy(),
		},
		Logs:             []LogEntry{},
		ExecutionHistory: []HistoryEntry{},
		CreatedAt:        ts,
		UpdatedAt:        ts,
	}
	if s.Cron.Timezone == "" {
		s.Cron.Timezone = cron_feature.DefaultTimezone
	}
	if in.Enabled != nil {
		s.Cron.Enabled = *in.Enabled
	}
	if in.MaxRetries != nil {
		s.Cron.Retry.MaxRetries = *in.MaxRetries
	}
	if in.RetryDelayMs != nil {
		s.Cron.Retry.RetryDelayMs = *in.RetryDelayMs
	}
	if in.TimeoutMs != nil {
		s.Cron.Retry.TimeoutMs = *in.TimeoutMs
	}
	return s
}

// Validate collects every problem. An empty schedule is allowed: such a
// script only runs as part of a cron config.
func (s *Script) Validate() []string {
	var errs []string
	if s.Name == "" {
		errs = append(errs, "Name is required and must be a string")
	}
	if s.Cron.Schedule != "" {
		if _, err := cron_feature.ParseSchedule(s.Cron.Schedule, s.Cron.Timezone); err != nil {
			errs = append(errs, "Invalid cron schedule format: "+err.Error())
		}
	}
	errs = append(errs, s.Cron.Retry.Validate()...)
	return errs
}

// Enqueue marks the script as waiting for an executor. Queuing an already
// queued script is a no-op.
func (s *Script) Enqueue() error {
	if s.Status == StatusQueued {
		return nil
	}
	if err := s.transition(StatusQueued); err != nil {
		return err
	}
	s.UpdatedAt = now()
	return nil
}

// Start opens a new attempt and appends its log entry.
func (s *Script) Start() (LogEntry, error) {
	if err := s.transition(StatusInProgress); err != nil {
		return LogEntry{}, err
	}
	ts := now()
	entry := LogEntry{
		LogID:     uuid.NewString(),
		Status:    LogInProgress,
		StartTime: ts,
	}
	s.Logs = append(s.Logs, entry)
	s.UpdatedAt = ts
	return entry, nil
}

// Finish closes the attempt identified by logID, records it in the execution
// history and the embedded run statistics, and moves the script to its
// terminal status.
func (s *Script) Finish(logID string, out Outcome) (LogEntry, error) {
	i := s.logIndex(logID)
	if i < 0 {
		return LogEntry{}, cron_feature.NotFoundError("Log %q not found for script %q", logID, s.Name)
	}
	if s.Status != StatusInProgress {
		return LogEntry{}, cron_feature.TransitionError("script %q is %s, not in progress", s.Name, s.Status)
	}

	status, history, next := LogSuccess, HistorySuccess, StatusSuccess
	if !out.Success {
		status, history, next = LogError, HistoryError, StatusError
	}

	ts := now()
	entry := &s.Logs[i]
	if err := entry.finish(status, out.Message, out.APICalls, ts); err != nil {
		return LogEntry{}, err
	}

	s.ExecutionHistory = append(s.ExecutionHistory, HistoryEntry{
		EndTime: ts,
		Status:  history,
		Message: out.Message,
	})
	s.Cron.Stats.Record(entry.Duration().Milliseconds(), out.Success, ts)
	s.Status = next
	s.UpdatedAt = ts
	return *entry, nil
}

// Dequeue returns a queued script that never started back to NotStarted.
func (s *Script) Dequeue() error {
	if err := s.transition(StatusNotStarted); err != nil {
		return err
	}
	s.UpdatedAt = now()
	return nil
}

// Abandon fails the attempt left in progress, e.g. by a crashed process.
func (s *Script) Abandon(message string) (LogEntry, error) {
	for i := len(s.Logs) - 1; i >= 0; i-- {
		if s.Logs[i].Status == LogInProgress {
			return s.Finish(s.Logs[i].LogID, Outcome{Success: false, Message: message})
		}
	}
	return LogEntry{}, cron_feature.NotFoundError("Script %q has no attempt in progress", s.Name)
}

func (s *Script) Log(logID string) (LogEntry, bool) {
	if i := s.logIndex(logID); i >= 0 {
		return s.Logs[i], true
	}
	return LogEntry{}, false
}

// RecentLogs returns up to limit attempts, newest first.
func (s *Script) RecentLogs(limit int) []LogEntry {
	out := make([]LogEntry, 0, min(limit, len(s.Logs)))
	for i := len(s.Logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.Logs[i])
	}
	return out
}

// RecentHistory returns up to limit history entries, newest first.
func (s *Script) RecentHistory(limit int) []HistoryEntry {
	out := make([]HistoryEntry, 0, min(limit, len(s.ExecutionHistory)))
	for i := len(s.ExecutionHistory) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.ExecutionHistory[i])
	}
	return out
}

func (s *Script) transition(to Status) error {
	if !s.Status.CanTransition(to) {
		return cron_feature.TransitionError("script %q cannot move from %s to %s", s.Name, s.Status, to)
	}
	s.Status = to
	return nil
}

func (s *Script) logIndex(logID string) int {
	for i := range s.Logs {
		if s.Logs[i].LogID == logID {
			return i
		}
	}
	return -1
}
