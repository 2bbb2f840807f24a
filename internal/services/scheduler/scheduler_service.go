package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/common"
	"github.com/ternarybob/visionone/internal/interfaces"
)

// Status is a snapshot of the scheduled job
type Status struct {
	Schedule  string
	Runs      int
	LastRun   *time.Time
	NextRun   *time.Time
	LastError string
	IsRunning bool
}

// Service implements SchedulerService for a single recurring agent run
type Service struct {
	cron   *cron.Cron
	logger arbor.ILogger

	mu        sync.Mutex // Protects the fields below
	running   bool
	schedule  string
	cronID    cron.EntryID
	job       func() error
	runs      int
	lastRun   *time.Time
	lastError string
	executing bool

	runMu sync.Mutex // Prevents overlapping runs
}

var _ interfaces.SchedulerService = (*Service)(nil)

// NewService creates a new scheduler service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers job on cronExpr and starts the scheduler
func (s *Service) Start(cronExpr string, job func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}
	if job == nil {
		return fmt.Errorf("scheduler job is nil")
	}
	if err := common.ValidateSchedule(cronExpr); err != nil {
		return err
	}

	id, err := s.cron.AddFunc(cronExpr, s.executeJob)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cronID = id
	s.schedule = cronExpr
	s.job = job
	s.cron.Start()
	s.running = true

	s.logger.Info().Str("cron_expr", cronExpr).Msg("Scheduler started")
	return nil
}

// Stop halts the scheduler and waits for a running job to return
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status returns the current job status
func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		Schedule:  s.schedule,
		Runs:      s.runs,
		LastRun:   s.lastRun,
		LastError: s.lastError,
		IsRunning: s.executing,
	}
	if s.running {
		if next := s.cron.Entry(s.cronID).Next; !next.IsZero() {
			status.NextRun = &next
		}
	}
	return status
}

// executeJob wraps job execution with overlap protection, panic recovery and status tracking
func (s *Service) executeJob() {
	if !s.runMu.TryLock() {
		s.logger.Warn().Msg("Previous run still in progress, skipping this cycle")
		return
	}
	defer s.runMu.Unlock()

	s.mu.Lock()
	job := s.job
	s.executing = true
	s.mu.Unlock()

	start := time.Now()
	err := s.safeRun(job)
	finished := time.Now()

	s.mu.Lock()
	s.executing = false
	s.runs++
	s.lastRun = &finished
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().
			Err(err).
			Str("duration", finished.Sub(start).String()).
			Msg("Scheduled run failed")
		return
	}
	s.logger.Info().
		Str("duration", finished.Sub(start).String()).
		Msg("Scheduled run completed")
}

func (s *Service) safeRun(job func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduled run")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return job()
}
