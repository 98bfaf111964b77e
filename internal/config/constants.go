package config

import "time"

type JobStatus string

// Persisted status literals. Clients match on these exact strings.
const (
	JobStatusPending    JobStatus = "Pending"
	JobStatusInProgress JobStatus = "In Progress"
	JobStatusCompleted  JobStatus = "Completed"
	JobStatusFailed     JobStatus = "Failed"
)

const (
	// DefaultMaxAttempts is the total number of attempts per job
	// (one initial attempt plus two retries).
	DefaultMaxAttempts = 3
	// DefaultBackoffBase is the delay before the first retry; later
	// retries double it.
	DefaultBackoffBase = 5 * time.Second
	// DefaultBackoffMax caps a single retry delay.
	DefaultBackoffMax = time.Hour

	JobUpdateEvent = "jobUpdate"
)

var TerminalStatuses = []JobStatus{JobStatusCompleted, JobStatusFailed}

// IsTerminal reports whether no further attempts may run for a job in status s.
func IsTerminal(s JobStatus) bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}
