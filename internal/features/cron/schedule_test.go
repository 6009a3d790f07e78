package cron_feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"* * * * *", false},
		{"0 8 * * 1-5", false},
		{"*/15 * * * *", false},
		{"30 */5 * * * *", false},
		{"0 0 1 1 *", false},
		{"", true},
		{"* * * *", true},
		{"0 0 0 1 1 * 2030", true},
		{"60 * * * *", true},
		{"* * * * 8", true},
		{"TZ=UTC * * * *", true},
		{"@hourly", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateSchedule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextRunHonoursTimezone(t *testing.T) {
	from := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	utc, err := NextRun("0 9 * * *", "UTC", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC), utc)

	// 09:00 in New York is 14:00 UTC in January
	ny, err := NextRun("0 9 * * *", "America/New_York", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC), ny)
}

func TestNextRunSixFields(t *testing.T) {
	from := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	next, err := NextRun("30 * * * * *", "", from)
	require.NoError(t, err)
	assert.Equal(t, from.Add(30*time.Second), next)
}

func TestParseScheduleUnknownTimezone(t *testing.T) {
	_, err := ParseSchedule("* * * * *", "Nowhere/City")
	assert.Error(t, err)
}

func TestScheduleSpec(t *testing.T) {
	assert.Equal(t, "0 * * * *", ScheduleSpec("0 * * * *", ""))
	assert.Equal(t, "CRON_TZ=Asia/Tokyo 0 * * * *", ScheduleSpec("0 * * * *", "Asia/Tokyo"))
}
