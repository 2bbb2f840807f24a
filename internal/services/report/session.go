package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/interfaces"
	"github.com/ternarybob/visionone/internal/models"
)

// Session owns the report of one agent session.
// It is mutated by the driving goroutine only; the mutex guards Snapshot readers.
type Session struct {
	mu        sync.Mutex
	report    *models.SessionReport
	dir       string
	logger    arbor.ILogger
	now       func() time.Time
	failed    bool
	finalized bool
	path      string
}

var _ interfaces.SessionRecorder = (*Session)(nil)

// NewSession creates a Running report that will be written to dir
func NewSession(dir string, logger arbor.ILogger) *Session {
	return newSessionAt(dir, logger, time.Now)
}

func newSessionAt(dir string, logger arbor.ILogger, now func() time.Time) *Session {
	return &Session{
		report: models.NewSessionReport(now()),
		dir:    dir,
		logger: logger,
		now:    now,
	}
}

// LogEvent appends an event stamped with the current time
func (s *Session) LogEvent(eventType, status, details string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		s.logger.Warn().Str("type", eventType).Str("status", status).Msg("Event dropped: report already finalized")
		return
	}

	s.report.Events = append(s.report.Events, models.Event{
		Timestamp: s.now().Format(time.RFC3339Nano),
		Type:      eventType,
		Status:    status,
		Details:   details,
	})

	s.logger.Info().Str("type", eventType).Str("status", status).Msg(details)
}

// RecordPass counts a passing test
func (s *Session) RecordPass() {
	s.count(func(r *models.SessionReport) {
		r.TestsRun++
		r.Passes++
	})
}

// RecordHeal counts a passing test that needed self-healing
func (s *Session) RecordHeal() {
	s.count(func(r *models.SessionReport) {
		r.TestsRun++
		r.Passes++
		r.HealedCount++
	})
}

// RecordFail counts a failing test
func (s *Session) RecordFail() {
	s.count(func(r *models.SessionReport) {
		r.TestsRun++
		r.Failures++
	})
}

func (s *Session) count(apply func(r *models.SessionReport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	apply(s.report)
}

// SetVideo records the session recording file name
func (s *Session) SetVideo(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finalized {
		s.report.VideoFilename = filename
	}
}

// MarkFailed makes Finalize write the Failed status instead of Completed
func (s *Session) MarkFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
}

// Snapshot returns a copy of the report as it currently stands
func (s *Session) Snapshot() models.SessionReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := *s.report
	snapshot.Events = append([]models.Event(nil), s.report.Events...)
	return snapshot
}

// Finalize writes the report to summary_<epoch>.json and returns its path.
// Only the first call writes; later calls return the same path.
func (s *Session) Finalize() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finalized {
		return s.path, nil
	}

	if s.report.Status == models.ReportRunning {
		s.report.Status = models.ReportCompleted
		if s.failed {
			s.report.Status = models.ReportFailed
		}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(s.report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("summary_%d.json", s.now().Unix()))
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}

	s.finalized = true
	s.path = path

	s.logger.Info().
		Str("path", path).
		Str("status", s.report.Status).
		Int("tests_run", s.report.TestsRun).
		Int("passes", s.report.Passes).
		Int("failures", s.report.Failures).
		Int("healed", s.report.HealedCount).
		Msg("Session report saved")

	return path, nil
}

// writeAtomic writes through a temp file so dashboard readers never see a partial report
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".summary-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp report: %w", err)
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}
