package models

import "time"

// Event type labels recorded in a session report
const (
	EventSessionStarted = "Session Started"
	EventSessionStart   = "Session Start"
	EventSmartClick     = "Smart Click"
	EventQoEAnalysis    = "QoE Analysis"
	EventChaosInjection = "Chaos Injection"
	EventVideoCapture   = "Video Capture"
	EventScenarioStep   = "Scenario Step"
)

// Event status labels
const (
	StatusSuccess     = "Success"
	StatusHealed      = "Healed"
	StatusFail        = "Fail"
	StatusFailed      = "Failed"
	StatusPass        = "Pass"
	StatusIssuesFound = "Issues Found"
)

// Report status values
const (
	ReportRunning   = "Running"
	ReportCompleted = "Completed"
	ReportFailed    = "Failed"
)

// Event is a single entry in the session audit trail.
// Events are appended in chronological order and never modified.
type Event struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Details   string `json:"details"`
}

// SessionReport is the persisted summary of one agent session.
//
// Counters obey tests_run == passes + failures for counted operations and
// healed_count <= passes, because every heal is also a pass.
type SessionReport struct {
	Timestamp     string  `json:"timestamp"`
	Status        string  `json:"status"`
	TestsRun      int     `json:"tests_run"`
	Passes        int     `json:"passes"`
	Failures      int     `json:"failures"`
	HealedCount   int     `json:"healed_count"`
	Events        []Event `json:"events"`
	VideoFilename string  `json:"video_filename,omitempty"`
}

// NewSessionReport creates a report in the Running state
func NewSessionReport(now time.Time) *SessionReport {
	return &SessionReport{
		Timestamp: now.Format(time.RFC3339Nano),
		Status:    ReportRunning,
		Events:    []Event{},
	}
}

// StoredReport is a report read back from disk, tagged with its file name
type StoredReport struct {
	SessionReport
	Filename string `json:"filename"`
}
