package interfaces

// SessionRecorder is the append-only audit trail a session writes to.
// Counter methods keep tests_run == passes + failures.
type SessionRecorder interface {
	LogEvent(eventType, status, details string)

	// RecordPass counts a successful operation
	RecordPass()

	// RecordHeal counts a successful operation that needed self-healing
	RecordHeal()

	// RecordFail counts a failed operation
	RecordFail()
}
