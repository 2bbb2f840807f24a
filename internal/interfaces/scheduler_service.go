package interfaces

// SchedulerService manages cron-based agent runs
type SchedulerService interface {
	// Start registers job on the cron expression and starts the scheduler
	Start(cronExpr string, job func() error) error

	// Stop the scheduler, waiting for a running job to return
	Stop() error

	// IsRunning returns true if scheduler is active
	IsRunning() bool
}
