package cron_feature

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configNamed(name string, category Category, priority int, enabled bool) *CronConfig {
	return NewCronConfig(CronConfigInput{
		Name:     name,
		Schedule: "0 * * * *",
		Category: category,
		Priority: &priority,
		Enabled:  &enabled,
		Scripts:  []CronScriptInput{{Name: name + "-script", ModulePath: "builtin:noop"}},
	})
}

func TestRegistrySeed(t *testing.T) {
	r := NewRegistry(configNamed("existing", CategorySync, 5, true))

	added, invalid := r.Seed([]CronConfigInput{
		{Name: "existing", Schedule: "bad"},
		{Name: "fresh", Schedule: "0 0 * * *"},
		{Name: "broken", Schedule: "0 0 * *"},
	})

	assert.Equal(t, []string{"fresh"}, added)
	require.Contains(t, invalid, "broken")
	assert.NotContains(t, invalid, "existing")
	assert.Equal(t, 2, r.Len())
}

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(configNamed("a", CategorySync, 5, true)))

	err := r.Add(configNamed("a", CategorySync, 5, true))
	assert.True(t, errors.Is(err, ErrDuplicateName))

	err = r.Add(configNamed("b", "nope", 5, true))
	assert.True(t, errors.Is(err, ErrValidationFailed))

	got, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.Name)

	_, err = r.Get("b")
	assert.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, r.Remove("a"))
	assert.True(t, errors.Is(r.Remove("a"), ErrNotFound))
	assert.Equal(t, 0, r.Len())
}

func TestRegistryListAndEnabled(t *testing.T) {
	r := NewRegistry(
		configNamed("low", CategorySync, 2, true),
		configNamed("off", CategoryBackup, 10, false),
		configNamed("high", CategoryMonitoring, 9, true),
		configNamed("mid", CategorySync, 5, true),
	)

	var listed, enabled []string
	for _, c := range r.List() {
		listed = append(listed, c.Name)
	}
	for _, c := range r.Enabled() {
		enabled = append(enabled, c.Name)
	}

	assert.Equal(t, []string{"low", "off", "high", "mid"}, listed)
	assert.Equal(t, []string{"high", "mid", "low"}, enabled)
}

func TestRegistryDue(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past, future := at.Add(-time.Minute), at.Add(time.Minute)

	never := configNamed("never", CategorySync, 5, true)
	overdue := configNamed("overdue", CategorySync, 5, true)
	overdue.Stats.NextRun = &past
	exact := configNamed("exact", CategorySync, 5, true)
	exact.Stats.NextRun = &at
	later := configNamed("later", CategorySync, 5, true)
	later.Stats.NextRun = &future
	disabled := configNamed("disabled", CategorySync, 5, false)

	var due []string
	for _, c := range NewRegistry(never, overdue, exact, later, disabled).Due(at) {
		due = append(due, c.Name)
	}
	assert.ElementsMatch(t, []string{"never", "overdue", "exact"}, due)
}

func TestRegistryStats(t *testing.T) {
	healthy := configNamed("healthy", CategorySync, 5, true)
	for i := 0; i < 10; i++ {
		healthy.UpdateRunStats(100, true)
	}
	flaky := configNamed("flaky", CategoryBackup, 5, false)
	flaky.UpdateRunStats(300, true)
	flaky.UpdateRunStats(300, false)
	idle := configNamed("idle", CategorySync, 5, true)

	st := NewRegistry(healthy, flaky, idle).Stats(DefaultErrorRateThreshold)

	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Enabled)
	assert.Equal(t, 1, st.Disabled)
	assert.Equal(t, 2, st.ByCategory[CategorySync])
	assert.Equal(t, 1, st.ByCategory[CategoryBackup])
	assert.Equal(t, 0, st.ByCategory[CategoryOther])
	assert.Equal(t, 3, st.TotalScripts)
	assert.Equal(t, int64(12), st.TotalRuns)
	assert.Equal(t, int64(1), st.TotalErrors)
	assert.InDelta(t, 1.0/12.0, st.ErrorRate, 1e-9)
	assert.Equal(t, []string{"flaky"}, st.HighErrorRate)
	// (100*10 + 300*2) / 12
	assert.Equal(t, int64(133), st.AverageRunTime)
}

func TestRegistryStatsEmpty(t *testing.T) {
	st := NewRegistry().Stats(DefaultErrorRateThreshold)
	assert.Equal(t, 0, st.Total)
	assert.Equal(t, 0.0, st.ErrorRate)
	assert.NotNil(t, st.HighErrorRate)
}
