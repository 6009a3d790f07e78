package cron_feature

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is the serialized form of a CronConfig, used both on the wire and
// as the stored MongoDB document.
type Document struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name           string             `json:"name" bson:"name"`
	Schedule       string             `json:"schedule" bson:"schedule"`
	Enabled        bool               `json:"enabled" bson:"enabled"`
	Timezone       string             `json:"timezone" bson:"timezone"`
	Description    string             `json:"description" bson:"description"`
	Category       Category           `json:"category" bson:"category"`
	Priority       int                `json:"priority" bson:"priority"`
	Scripts        []CronScript       `json:"scripts" bson:"scripts"`
	LastRun        *time.Time         `json:"lastRun,omitempty" bson:"last_run,omitempty"`
	NextRun        *time.Time         `json:"nextRun,omitempty" bson:"next_run,omitempty"`
	RunCount       int64              `json:"runCount" bson:"run_count"`
	ErrorCount     int64              `json:"errorCount" bson:"error_count"`
	AverageRunTime int64              `json:"averageRunTime" bson:"average_run_time"`
	MaxRetries     int                `json:"maxRetries" bson:"max_retries"`
	RetryDelayMs   int64              `json:"retryDelayMs" bson:"retry_delay_ms"`
	TimeoutMs      int64              `json:"timeoutMs" bson:"timeout_ms"`
	Notifications  Notifications      `json:"notifications" bson:"notifications"`
	Metadata       []MetadataEntry    `json:"metadata" bson:"metadata"`
	CreatedAt      time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time          `json:"updatedAt" bson:"updated_at"`
}

func (c *CronConfig) ToObject() Document {
	return Document{
		ID:             c.ID,
		Name:           c.Name,
		Schedule:       c.Schedule,
		Enabled:        c.Enabled,
		Timezone:       c.Timezone,
		Description:    c.Description,
		Category:       c.Category,
		Priority:       c.Priority,
		Scripts:        append(make([]CronScript, 0, len(c.Scripts)), c.Scripts...),
		LastRun:        copyTime(c.Stats.LastRun),
		NextRun:        copyTime(c.Stats.NextRun),
		RunCount:       c.Stats.RunCount,
		ErrorCount:     c.Stats.ErrorCount,
		AverageRunTime: c.Stats.AverageRunTime,
		MaxRetries:     c.Retry.MaxRetries,
		RetryDelayMs:   c.Retry.RetryDelayMs,
		TimeoutMs:      c.Retry.TimeoutMs,
		Notifications:  cloneNotifications(c.Notifications),
		Metadata:       c.Metadata.Entries(),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

// FromObject rebuilds a config from its serialized form, re-expanding the
// metadata entry list into a mapping. No defaults are applied.
func FromObject(d Document) *CronConfig {
	return &CronConfig{
		ID:          d.ID,
		Name:        d.Name,
		Schedule:    d.Schedule,
		Enabled:     d.Enabled,
		Timezone:    d.Timezone,
		Description: d.Description,
		Category:    d.Category,
		Priority:    d.Priority,
		Scripts:     append(make([]CronScript, 0, len(d.Scripts)), d.Scripts...),
		Stats: RunStats{
			LastRun:        copyTime(d.LastRun),
			NextRun:        copyTime(d.NextRun),
			RunCount:       d.RunCount,
			ErrorCount:     d.ErrorCount,
			AverageRunTime: d.AverageRunTime,
		},
		Retry: RetryPolicy{
			MaxRetries:   d.MaxRetries,
			RetryDelayMs: d.RetryDelayMs,
			TimeoutMs:    d.TimeoutMs,
		},
		Notifications: cloneNotifications(d.Notifications),
		Metadata:      NewMetadata(d.Metadata),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
