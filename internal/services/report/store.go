package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/visionone/internal/models"
)

var (
	// ErrNoReports is returned by Latest when the directory holds no reports
	ErrNoReports = errors.New("no reports found")

	// ErrInvalidName is returned for names that are not report file names
	ErrInvalidName = errors.New("invalid report name")

	// ErrNotFound is returned when a named report does not exist
	ErrNotFound = errors.New("report not found")
)

var reportName = regexp.MustCompile(`^summary_\d+\.json$`)

// Store reads finalized reports back from the reports directory
type Store struct {
	dir    string
	logger arbor.ILogger
}

// NewStore creates a store over dir
func NewStore(dir string, logger arbor.ILogger) *Store {
	return &Store{
		dir:    dir,
		logger: logger,
	}
}

// Dir returns the reports directory
func (s *Store) Dir() string {
	return s.dir
}

type reportFile struct {
	name    string
	modTime time.Time
}

// files lists report files newest first by modification time
func (s *Store) files() ([]reportFile, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read reports directory: %w", err)
	}

	var files []reportFile
	for _, entry := range entries {
		if entry.IsDir() || !reportName.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping report: stat failed")
			continue
		}
		files = append(files, reportFile{name: entry.Name(), modTime: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].name > files[j].name
		}
		return files[i].modTime.After(files[j].modTime)
	})
	return files, nil
}

// List returns every readable report, newest first. Unreadable files are skipped.
func (s *Store) List() ([]models.StoredReport, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	reports := make([]models.StoredReport, 0, len(files))
	for _, f := range files {
		report, err := s.read(f.name)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", f.name).Msg("Skipping unreadable report")
			continue
		}
		reports = append(reports, *report)
	}
	return reports, nil
}

// Latest returns the newest report, or ErrNoReports
func (s *Store) Latest() (*models.StoredReport, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoReports
	}
	return s.read(files[0].name)
}

// LatestStamp identifies the newest report file and its modification time.
// An empty name means there are no reports.
func (s *Store) LatestStamp() (string, time.Time, error) {
	files, err := s.files()
	if err != nil || len(files) == 0 {
		return "", time.Time{}, err
	}
	return files[0].name, files[0].modTime, nil
}

// Load reads the named report
func (s *Store) Load(name string) (*models.StoredReport, error) {
	if !reportName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return s.read(name)
}

func (s *Store) read(name string) (*models.StoredReport, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read report %s: %w", name, err)
	}

	var report models.StoredReport
	if err := json.Unmarshal(data, &report.SessionReport); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", name, err)
	}
	report.Filename = name
	if report.Events == nil {
		report.Events = []models.Event{}
	}
	return &report, nil
}
