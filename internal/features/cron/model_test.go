package cron_feature

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() CronConfigInput {
	return CronConfigInput{
		Name:     "trello-sync",
		Schedule: "*/15 * * * *",
		Category: CategorySync,
		Scripts: []CronScriptInput{
			{Name: "boards", ModulePath: "tengo:boards.tengo"},
		},
		Metadata: map[string]string{"source": "trello"},
	}
}

// freezeClock pins the package clock and returns a func that advances it.
func freezeClock(t *testing.T, start time.Time) func(time.Duration) {
	t.Helper()
	current := start
	prev := now
	now = func() time.Time { return current }
	t.Cleanup(func() { now = prev })
	return func(d time.Duration) { current = current.Add(d) }
}

func TestNewCronConfigDefaults(t *testing.T) {
	cfg := NewCronConfig(CronConfigInput{Name: "x", Schedule: "0 * * * *"})

	assert.True(t, cfg.Enabled)
	assert.Equal(t, DefaultTimezone, cfg.Timezone)
	assert.Equal(t, CategoryOther, cfg.Category)
	assert.Equal(t, DefaultPriority, cfg.Priority)
	assert.Equal(t, DefaultRetryPolicy(), cfg.Retry)
	assert.Equal(t, DefaultNotifications(), cfg.Notifications)
	assert.NotNil(t, cfg.Scripts)
	assert.NotNil(t, cfg.Metadata)
	assert.Zero(t, cfg.Stats.RunCount)
	assert.Nil(t, cfg.Stats.LastRun)
	assert.Equal(t, cfg.CreatedAt, cfg.UpdatedAt)
	assert.Empty(t, cfg.Validate())
}

func TestCronConfigValidateFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CronConfig)
		want   string
	}{
		{"missing name", func(c *CronConfig) { c.Name = "" }, "Name is required and must be a string"},
		{"missing schedule", func(c *CronConfig) { c.Schedule = "" }, "Schedule is required and must be a string"},
		{"four fields", func(c *CronConfig) { c.Schedule = "* * * *" }, "Invalid cron schedule format"},
		{"seven fields", func(c *CronConfig) { c.Schedule = "0 0 0 1 1 * 2030" }, "Invalid cron schedule format"},
		{"bad minute", func(c *CronConfig) { c.Schedule = "61 * * * *" }, "Invalid cron schedule format"},
		{"tz prefix", func(c *CronConfig) { c.Schedule = "CRON_TZ=UTC 0 * * * *" }, "Invalid cron schedule format"},
		{"bad timezone", func(c *CronConfig) { c.Timezone = "Mars/Olympus" }, "Invalid timezone"},
		{"bad category", func(c *CronConfig) { c.Category = "reporting" }, "Category must be one of"},
		{"priority too low", func(c *CronConfig) { c.Priority = 0 }, "Priority must be a number between 1 and 10"},
		{"priority too high", func(c *CronConfig) { c.Priority = 11 }, "Priority must be a number between 1 and 10"},
		{"negative retries", func(c *CronConfig) { c.Retry.MaxRetries = -1 }, "maxRetries must be a non-negative number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewCronConfig(validInput())
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.want)
			assert.False(t, cfg.IsValid())
		})
	}
}

func TestCronConfigAcceptsSixFieldSchedule(t *testing.T) {
	in := validInput()
	in.Schedule = "30 */5 * * * *"
	assert.Empty(t, NewCronConfig(in).Validate())
}

func TestCronConfigValidateCollectsScriptErrorsInOrder(t *testing.T) {
	in := validInput()
	in.Name = ""
	in.Scripts = []CronScriptInput{
		{Name: "ok", ModulePath: "builtin:noop"},
		{Name: "", ModulePath: "builtin:noop"},
		{Name: "bad-order", ModulePath: "builtin:noop", Order: intPtr(-1)},
		{Name: "", ModulePath: ""},
	}

	errs := NewCronConfig(in).Validate()

	assert.Equal(t, []string{
		"Name is required and must be a string",
		"Script 2: Script name is required and must be a string",
		"Script 3: Script order must be a non-negative number",
		"Script 4: Script name is required and must be a string",
		"Script 4: Script modulePath is required and must be a string",
	}, errs)
}

func TestCronConfigValidateDuplicateScriptNames(t *testing.T) {
	in := validInput()
	in.Scripts = append(in.Scripts, CronScriptInput{Name: "boards", ModulePath: "builtin:noop"})

	errs := NewCronConfig(in).Validate()
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0], "Script 2:"))
}

func TestEnabledScriptsOrder(t *testing.T) {
	cfg := NewCronConfig(CronConfigInput{
		Name:     "x",
		Schedule: "0 * * * *",
		Scripts: []CronScriptInput{
			{Name: "c", ModulePath: "m", Order: intPtr(3)},
			{Name: "a", ModulePath: "m", Order: intPtr(1)},
			{Name: "off", ModulePath: "m", Order: intPtr(0), Enabled: boolPtr(false)},
			{Name: "b", ModulePath: "m", Order: intPtr(2)},
			{Name: "a2", ModulePath: "m", Order: intPtr(1)},
		},
	})

	var names []string
	for _, s := range cfg.EnabledScripts() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"a", "a2", "b", "c"}, names)
}

func TestAddScript(t *testing.T) {
	advance := freezeClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := NewCronConfig(validInput())
	created := cfg.UpdatedAt
	advance(time.Minute)

	s, err := cfg.AddScript(CronScriptInput{Name: "cards", ModulePath: "tengo:cards.tengo"})
	require.NoError(t, err)
	assert.Equal(t, "cards", s.Name)
	assert.Len(t, cfg.Scripts, 2)
	assert.True(t, cfg.UpdatedAt.After(created))
}

func TestAddScriptDuplicateLeavesScriptsUnchanged(t *testing.T) {
	cfg := NewCronConfig(validInput())
	before := append([]CronScript{}, cfg.Scripts...)

	_, err := cfg.AddScript(CronScriptInput{Name: "boards", ModulePath: "other"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateName))
	assert.Contains(t, err.Error(), "boards")
	assert.Equal(t, before, cfg.Scripts)
}

func TestAddScriptInvalid(t *testing.T) {
	cfg := NewCronConfig(validInput())

	_, err := cfg.AddScript(CronScriptInput{Name: "x"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, []string{"Script modulePath is required and must be a string"}, ProblemsOf(err))
	assert.Len(t, cfg.Scripts, 1)
}

func TestRemoveScript(t *testing.T) {
	cfg := NewCronConfig(validInput())

	err := cfg.RemoveScript("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Len(t, cfg.Scripts, 1)

	require.NoError(t, cfg.RemoveScript("boards"))
	assert.Empty(t, cfg.Scripts)
}

func TestUpdateScript(t *testing.T) {
	advance := freezeClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	in := validInput()
	in.Scripts = append(in.Scripts, CronScriptInput{Name: "cards", ModulePath: "tengo:cards.tengo"})
	cfg := NewCronConfig(in)
	advance(time.Second)

	t.Run("merges and refreshes updatedAt", func(t *testing.T) {
		updated, err := cfg.UpdateScript("boards", CronScriptPatch{Order: intPtr(5), Enabled: boolPtr(false)})
		require.NoError(t, err)
		assert.Equal(t, 5, updated.Order)
		assert.False(t, updated.Enabled)
		assert.Equal(t, "tengo:boards.tengo", updated.ModulePath)
		assert.Equal(t, now(), cfg.UpdatedAt)
	})

	t.Run("invalid result is not committed", func(t *testing.T) {
		before, _ := cfg.Script("boards")
		_, err := cfg.UpdateScript("boards", CronScriptPatch{ModulePath: strPtr("")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidationFailed))
		after, _ := cfg.Script("boards")
		assert.Equal(t, before, after)
	})

	t.Run("rename onto an existing name", func(t *testing.T) {
		_, err := cfg.UpdateScript("boards", CronScriptPatch{Name: strPtr("cards")})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrDuplicateName))
		_, ok := cfg.Script("boards")
		assert.True(t, ok)
	})

	t.Run("missing script", func(t *testing.T) {
		_, err := cfg.UpdateScript("nope", CronScriptPatch{})
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestApplyValidatesBeforeCommit(t *testing.T) {
	cfg := NewCronConfig(validInput())
	before := cfg.ToObject()

	err := cfg.Apply(CronConfigPatch{Schedule: strPtr("not a cron"), Priority: intPtr(3)})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Equal(t, before, cfg.ToObject())

	require.NoError(t, cfg.Apply(CronConfigPatch{
		Priority: intPtr(3),
		Metadata: map[string]string{"owner": "ops"},
	}))
	assert.Equal(t, 3, cfg.Priority)
	assert.Equal(t, Metadata{"owner": "ops"}, cfg.Metadata)
}

func TestUpdateRunStats(t *testing.T) {
	advance := freezeClock(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := NewCronConfig(validInput())

	assert.Equal(t, 0.0, cfg.ErrorRate())

	advance(time.Minute)
	cfg.UpdateRunStats(100, true)
	assert.Equal(t, int64(1), cfg.Stats.RunCount)
	assert.Equal(t, int64(100), cfg.Stats.AverageRunTime)
	assert.Equal(t, int64(0), cfg.Stats.ErrorCount)
	require.NotNil(t, cfg.Stats.LastRun)
	assert.Equal(t, now(), *cfg.Stats.LastRun)
	assert.Equal(t, now(), cfg.UpdatedAt)

	cfg.UpdateRunStats(300, true)
	assert.Equal(t, int64(2), cfg.Stats.RunCount)
	assert.Equal(t, int64(200), cfg.Stats.AverageRunTime)

	cfg.UpdateRunStats(101, false)
	assert.Equal(t, int64(3), cfg.Stats.RunCount)
	assert.Equal(t, int64(1), cfg.Stats.ErrorCount)
	assert.Equal(t, int64(167), cfg.Stats.AverageRunTime)

	cfg.UpdateRunStats(0, true)
	assert.Equal(t, int64(4), cfg.Stats.RunCount)
	assert.Equal(t, int64(167), cfg.Stats.AverageRunTime)
	assert.InDelta(t, 0.25, cfg.ErrorRate(), 1e-9)
}

func TestHasHighErrorRate(t *testing.T) {
	cfg := NewCronConfig(validInput())
	assert.False(t, cfg.HasHighErrorRate(DefaultErrorRateThreshold))

	for i := 0; i < 9; i++ {
		cfg.UpdateRunStats(10, true)
	}
	cfg.UpdateRunStats(10, false)
	// exactly at the threshold is not high
	assert.False(t, cfg.HasHighErrorRate(DefaultErrorRateThreshold))

	cfg.UpdateRunStats(10, false)
	assert.True(t, cfg.HasHighErrorRate(DefaultErrorRateThreshold))
	assert.False(t, cfg.HasHighErrorRate(0.5))
}

func TestRefreshNextRunAndFormat(t *testing.T) {
	cfg := NewCronConfig(validInput())
	assert.Equal(t, "", cfg.NextRunFormatted())

	from := time.Date(2026, 3, 1, 10, 7, 0, 0, time.UTC)
	require.NoError(t, cfg.RefreshNextRun(from))
	assert.Equal(t, "2026-03-01T10:15:00Z", cfg.NextRunFormatted())
}

func TestCloneSharesNoState(t *testing.T) {
	cfg := NewCronConfig(validInput())
	cfg.Notifications.Recipients = []string{"a@example.com"}
	clone := cfg.Clone()

	clone.Scripts[0].Name = "changed"
	clone.Metadata["source"] = "changed"
	clone.Notifications.Recipients[0] = "changed"

	assert.Equal(t, "boards", cfg.Scripts[0].Name)
	assert.Equal(t, "trello", cfg.Metadata["source"])
	assert.Equal(t, "a@example.com", cfg.Notifications.Recipients[0])
}
