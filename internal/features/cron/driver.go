package cron_feature

import "context"

// Scheduler is the driver that turns stored configs into timed executions.
// The HTTP layer calls it after every change that affects what should run.
type Scheduler interface {
	// Sync re-reads the named config and registers or unregisters its job.
	Sync(ctx context.Context, name string) error
	// Reload drops every job and registers all enabled configs again.
	Reload(ctx context.Context) (int, error)
	// RunNow starts one run of the named config outside its schedule.
	RunNow(ctx context.Context, name string) error
}
