package cron_feature

import (
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategorySync        Category = "sync"
	CategoryMaintenance Category = "maintenance"
	CategoryMonitoring  Category = "monitoring"
	CategoryBackup      Category = "backup"
	CategoryOther       Category = "other"
)

var Categories = []Category{CategorySync, CategoryMaintenance, CategoryMonitoring, CategoryBackup, CategoryOther}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const (
	DefaultTimezone = "UTC"
	DefaultPriority = 5
	MinPriority     = 1
	MaxPriority     = 10
)

var now = func() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CronConfig is a named, scheduled group of scripts together with its retry
// and notification policy and the statistics of its past runs.
type CronConfig struct {
	ID            primitive.ObjectID
	Name          string
	Schedule      string
	Enabled       bool
	Timezone      string
	Description   string
	Category      Category
	Priority      int
	Scripts       []CronScript
	Stats         RunStats
	Retry         RetryPolicy
	Notifications Notifications
	Metadata      Metadata
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CronConfigInput is the caller supplied shape of a new config. Nil and zero
// fields take their defaults.
type CronConfigInput struct {
	Name          string            `json:"name" yaml:"name"`
	Schedule      string            `json:"schedule" yaml:"schedule"`
	Enabled       *bool             `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Timezone      string            `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	Description   string            `json:"description,omitempty" yaml:"description,omitempty"`
	Category      Category          `json:"category,omitempty" yaml:"category,omitempty"`
	Priority      *int              `json:"priority,omitempty" yaml:"priority,omitempty"`
	Scripts       []CronScriptInput `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	MaxRetries    *int              `json:"maxRetries,omitempty" yaml:"maxRetries,omitempty"`
	RetryDelayMs  *int64            `json:"retryDelayMs,omitempty" yaml:"retryDelayMs,omitempty"`
	TimeoutMs     *int64            `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
	Notifications *Notifications    `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// CronConfigPatch is a partial update of the config's own fields. Scripts are
// changed through AddScript, UpdateScript and RemoveScript.
type CronConfigPatch struct {
	Schedule      *string           `json:"schedule,omitempty"`
	Enabled       *bool             `json:"enabled,omitempty"`
	Timezone      *string           `json:"timezone,omitempty"`
	Description   *string           `json:"description,omitempty"`
	Category      *Category         `json:"category,omitempty"`
	Priority      *int              `json:"priority,omitempty"`
	MaxRetries    *int              `json:"maxRetries,omitempty"`
	RetryDelayMs  *int64            `json:"retryDelayMs,omitempty"`
	TimeoutMs     *int64            `json:"timeoutMs,omitempty"`
	Notifications *Notifications    `json:"notifications,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

func NewCronConfig(in CronConfigInput) *CronConfig {
	ts := now()
	c := &CronConfig{
		Name:          in.Name,
		Schedule:      in.Schedule,
		Enabled:       true,
		Timezone:      in.Timezone,
		Description:   in.Description,
		Category:      in.Category,
		Priority:      DefaultPriority,
		Scripts:       make([]CronScript, 0, len(in.Scripts)),
		Retry:         DefaultRetryPolicy(),
		Notifications: DefaultNotifications(),
		Metadata:      make(Metadata, len(in.Metadata)),
		CreatedAt:     ts,
		UpdatedAt:     ts,
	}
	if in.Enabled != nil {
		c.Enabled = *in.Enabled
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Category == "" {
		c.Category = CategoryOther
	}
	if in.Priority != nil {
		c.Priority = *in.Priority
	}
	if in.MaxRetries != nil {
		c.Retry.MaxRetries = *in.MaxRetries
	}
	if in.RetryDelayMs != nil {
		c.Retry.RetryDelayMs = *in.RetryDelayMs
	}
	if in.TimeoutMs != nil {
		c.Retry.TimeoutMs = *in.TimeoutMs
	}
	if in.Notifications != nil {
		c.Notifications = cloneNotifications(*in.Notifications)
	}
	for _, s := range in.Scripts {
		c.Scripts = append(c.Scripts, NewCronScript(s))
	}
	for k, v := range in.Metadata {
		c.Metadata[k] = v
	}
	return c
}

// Validate collects every problem with the config and its scripts. Script
// problems are prefixed with the script's 1-based position.
func (c *CronConfig) Validate() []string {
	var errs []string
	if c.Name == "" {
		errs = append(errs, "Name is required and must be a string")
	}
	if c.Schedule == "" {
		errs = append(errs, "Schedule is required and must be a string")
	} else if err := ValidateSchedule(c.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("Invalid cron schedule format: %v", err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil || c.Timezone == "" {
		errs = append(errs, fmt.Sprintf("Invalid timezone: %q", c.Timezone))
	}
	if !c.Category.Valid() {
		errs = append(errs, "Category must be one of: sync, maintenance, monitoring, backup, other")
	}
	if c.Priority < MinPriority || c.Priority > MaxPriority {
		errs = append(errs, "Priority must be a number between 1 and 10")
	}
	errs = append(errs, c.Retry.Validate()...)

	seen := make(map[string]bool, len(c.Scripts))
	for i, s := range c.Scripts {
		for _, e := range s.Validate() {
			errs = append(errs, fmt.Sprintf("Script %d: %s", i+1, e))
		}
		if s.Name != "" {
			if seen[s.Name] {
				errs = append(errs, fmt.Sprintf("Script %d: duplicate script name %q", i+1, s.Name))
			}
			seen[s.Name] = true
		}
	}
	return errs
}

func (c *CronConfig) IsValid() bool {
	return len(c.Validate()) == 0
}

func (c *CronConfig) IsEnabled() bool {
	return c.Enabled
}

// EnabledScripts returns the enabled scripts in execution order.
func (c *CronConfig) EnabledScripts() []CronScript {
	enabled := make([]CronScript, 0, len(c.Scripts))
	for _, s := range c.Scripts {
		if s.IsEnabled() {
			enabled = append(enabled, s)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool { return enabled[i].Order < enabled[j].Order })
	return enabled
}

func (c *CronConfig) Script(name string) (CronScript, bool) {
	if i := c.scriptIndex(name); i >= 0 {
		return c.Scripts[i], true
	}
	return CronScript{}, false
}

func (c *CronConfig) AddScript(in CronScriptInput) (CronScript, error) {
	s := NewCronScript(in)
	if errs := s.Validate(); len(errs) > 0 {
		return CronScript{}, ValidationError("Invalid script", errs)
	}
	if c.scriptIndex(s.Name) >= 0 {
		return CronScript{}, DuplicateNameError("Script with name %q already exists in config %q", s.Name, c.Name)
	}
	c.Scripts = append(c.Scripts, s)
	c.touch()
	return s, nil
}

func (c *CronConfig) RemoveScript(name string) error {
	i := c.scriptIndex(name)
	if i < 0 {
		return NotFoundError("Script %q not found in config %q", name, c.Name)
	}
	c.Scripts = append(c.Scripts[:i:i], c.Scripts[i+1:]...)
	c.touch()
	return nil
}

// UpdateScript merges patch onto a copy of the named script and commits it
// only when the result is valid.
func (c *CronConfig) UpdateScript(name string, patch CronScriptPatch) (CronScript, error) {
	i := c.scriptIndex(name)
	if i < 0 {
		return CronScript{}, NotFoundError("Script %q not found in config %q", name, c.Name)
	}
	updated := c.Scripts[i].apply(patch)
	if errs := updated.Validate(); len(errs) > 0 {
		return CronScript{}, ValidationError("Invalid script update", errs)
	}
	if updated.Name != name && c.scriptIndex(updated.Name) >= 0 {
		return CronScript{}, DuplicateNameError("Script with name %q already exists in config %q", updated.Name, c.Name)
	}
	c.Scripts[i] = updated
	c.touch()
	return updated, nil
}

// Apply merges patch onto a copy of the config and commits it only when the
// result is valid.
func (c *CronConfig) Apply(patch CronConfigPatch) error {
	next := c.Clone()
	if patch.Schedule != nil {
		next.Schedule = *patch.Schedule
	}
	if patch.Enabled != nil {
		next.Enabled = *patch.Enabled
	}
	if patch.Timezone != nil {
		next.Timezone = *patch.Timezone
	}
	if patch.Description != nil {
		next.Description = *patch.Description
	}
	if patch.Category != nil {
		next.Category = *patch.Category
	}
	if patch.Priority != nil {
		next.Priority = *patch.Priority
	}
	if patch.MaxRetries != nil {
		next.Retry.MaxRetries = *patch.MaxRetries
	}
	if patch.RetryDelayMs != nil {
		next.Retry.RetryDelayMs = *patch.RetryDelayMs
	}
	if patch.TimeoutMs != nil {
		next.Retry.TimeoutMs = *patch.TimeoutMs
	}
	if patch.Notifications != nil {
		next.Notifications = cloneNotifications(*patch.Notifications)
	}
	if patch.Metadata != nil {
		next.Metadata = Metadata(patch.Metadata).Clone()
	}
	if errs := next.Validate(); len(errs) > 0 {
		return ValidationError("Invalid config update", errs)
	}
	next.touch()
	*c = *next
	return nil
}

func (c *CronConfig) SetEnabled(enabled bool) {
	c.Enabled = enabled
	c.touch()
}

// UpdateRunStats is the only way run statistics change.
func (c *CronConfig) UpdateRunStats(runTimeMs int64, success bool) {
	ts := now()
	c.Stats.Record(runTimeMs, success, ts)
	c.UpdatedAt = ts
}

// RefreshNextRun recomputes NextRun from the schedule, relative to from.
func (c *CronConfig) RefreshNextRun(from time.Time) error {
	next, err := NextRun(c.Schedule, c.Timezone, from)
	if err != nil {
		return err
	}
	c.Stats.NextRun = &next
	return nil
}

func (c *CronConfig) ErrorRate() float64 {
	return c.Stats.ErrorRate()
}

func (c *CronConfig) HasHighErrorRate(threshold float64) bool {
	return c.ErrorRate() > threshold
}

// NextRunFormatted returns NextRun as RFC 3339, or "" when it is unset.
func (c *CronConfig) NextRunFormatted() string {
	if c.Stats.NextRun == nil {
		return ""
	}
	return c.Stats.NextRun.UTC().Format(time.RFC3339Nano)
}

// Clone returns a deep copy that shares no mutable state with c.
func (c *CronConfig) Clone() *CronConfig {
	return FromObject(c.ToObject())
}

func (c *CronConfig) touch() {
	c.UpdatedAt = now()
}

func (c *CronConfig) scriptIndex(name string) int {
	for i, s := range c.Scripts {
		if s.Name == name {
			return i
		}
	}
	return -1
}

func cloneNotifications(n Notifications) Notifications {
	recipients := make([]string, len(n.Recipients))
	copy(recipients, n.Recipients)
	n.Recipients = recipients
	return n
}
