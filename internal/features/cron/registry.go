package cron_feature

import (
	"sort"
	"time"
)

// Registry is an in-memory collection of configs keyed by name.
type Registry struct {
	configs map[string]*CronConfig
	order   []string
}

func NewRegistry(configs ...*CronConfig) *Registry {
	r := &Registry{configs: make(map[string]*CronConfig, len(configs))}
	for _, c := range configs {
		r.put(c)
	}
	return r
}

// Seed adds every valid config whose name is not registered yet and returns
// the names that were added. Invalid inputs are reported per name.
func (r *Registry) Seed(inputs []CronConfigInput) (added []string, invalid map[string][]string) {
	invalid = make(map[string][]string)
	for _, in := range inputs {
		if _, exists := r.configs[in.Name]; exists {
			continue
		}
		c := NewCronConfig(in)
		if errs := c.Validate(); len(errs) > 0 {
			invalid[in.Name] = errs
			continue
		}
		r.put(c)
		added = append(added, c.Name)
	}
	return added, invalid
}

func (r *Registry) Add(c *CronConfig) error {
	if _, exists := r.configs[c.Name]; exists {
		return DuplicateNameError("Config with name %q already exists", c.Name)
	}
	if errs := c.Validate(); len(errs) > 0 {
		return ValidationError("Invalid config", errs)
	}
	r.put(c)
	return nil
}

func (r *Registry) Get(name string) (*CronConfig, error) {
	c, ok := r.configs[name]
	if !ok {
		return nil, NotFoundError("Config %q not found", name)
	}
	return c, nil
}

func (r *Registry) Remove(name string) error {
	if _, ok := r.configs[name]; !ok {
		return NotFoundError("Config %q not found", name)
	}
	delete(r.configs, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *Registry) Len() int {
	return len(r.order)
}

// List returns configs in insertion order.
func (r *Registry) List() []*CronConfig {
	out := make([]*CronConfig, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.configs[n])
	}
	return out
}

// Enabled returns the enabled configs, highest priority first.
func (r *Registry) Enabled() []*CronConfig {
	var out []*CronConfig
	for _, c := range r.List() {
		if c.IsEnabled() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// Due returns the enabled configs whose next run is at or before at. Configs
// that were never scheduled are due.
func (r *Registry) Due(at time.Time) []*CronConfig {
	var out []*CronConfig
	for _, c := range r.Enabled() {
		if c.Stats.NextRun == nil || !c.Stats.NextRun.After(at) {
			out = append(out, c)
		}
	}
	return out
}

type Statistics struct {
	Total          int              `json:"total"`
	Enabled        int              `json:"enabled"`
	Disabled       int              `json:"disabled"`
	ByCategory     map[Category]int `json:"byCategory"`
	TotalScripts   int              `json:"totalScripts"`
	TotalRuns      int64            `json:"totalRuns"`
	TotalErrors    int64            `json:"totalErrors"`
	ErrorRate      float64          `json:"errorRate"`
	HighErrorRate  []string         `json:"highErrorRate"`
	AverageRunTime int64            `json:"averageRunTime"`
}

// Stats rolls up counts over every registered config. Configs whose error rate
// exceeds threshold are listed in HighErrorRate.
func (r *Registry) Stats(threshold float64) Statistics {
	st := Statistics{
		ByCategory:    make(map[Category]int, len(Categories)),
		HighErrorRate: []string{},
	}
	for _, cat := range Categories {
		st.ByCategory[cat] = 0
	}

	var weighted float64
	var timed int64
	for _, c := range r.List() {
		st.Total++
		if c.IsEnabled() {
			st.Enabled++
		} else {
			st.Disabled++
		}
		st.ByCategory[c.Category]++
		st.TotalScripts += len(c.Scripts)
		st.TotalRuns += c.Stats.RunCount
		st.TotalErrors += c.Stats.ErrorCount
		if c.Stats.AverageRunTime > 0 {
			weighted += float64(c.Stats.AverageRunTime) * float64(c.Stats.RunCount)
			timed += c.Stats.RunCount
		}
		if c.HasHighErrorRate(threshold) {
			st.HighErrorRate = append(st.HighErrorRate, c.Name)
		}
	}
	if st.TotalRuns > 0 {
		st.ErrorRate = float64(st.TotalErrors) / float64(st.TotalRuns)
	}
	if timed > 0 {
		st.AverageRunTime = int64(weighted / float64(timed))
	}
	return st
}

func (r *Registry) put(c *CronConfig) {
	if _, exists := r.configs[c.Name]; !exists {
		r.order = append(r.order, c.Name)
	}
	r.configs[c.Name] = c
}
