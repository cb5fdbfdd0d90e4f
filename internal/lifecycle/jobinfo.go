// Package lifecycle tracks submitted jobs: it owns the mapping from
// internal tracking ids to scheduler job ids and keeps each job's status
// current against the scheduler's two views.
package lifecycle

import (
	"strings"
	"time"
)

// Status is the tracked state of a job. It is a simplification of the
// scheduler's state zoo down to what callers act on.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// JobInfo is the tracked record of one submitted job.
type JobInfo struct {
	InternalID     string
	SchedulerJobID string
	Name           string
	Kind           string // service, client or monitor
	Status         Status
	SubmittedAt    time.Time
	StartedAt      time.Time
	CompletedAt    time.Time
	Elapsed        string
	ExitCode       string
	Nodes          []string
}

// statusFromSlurm maps a raw scheduler state onto the tracked status.
// Cancellation states carry a "by <uid>" suffix. States this tool has no
// mapping for are treated as failures rather than silently kept alive;
// the raw state still reaches the log at the call site.
func statusFromSlurm(state string) Status {
	s := strings.ToUpper(strings.TrimSpace(state))
	switch {
	case s == "PENDING", s == "CONFIGURING", s == "REQUEUED", s == "SUSPENDED":
		return StatusPending
	case s == "RUNNING", s == "COMPLETING":
		return StatusRunning
	case s == "COMPLETED":
		return StatusCompleted
	case strings.HasPrefix(s, "CANCELLED"):
		return StatusCancelled
	default:
		// FAILED, TIMEOUT, NODE_FAIL, OUT_OF_MEMORY, BOOT_FAIL and
		// whatever future states the scheduler grows.
		return StatusFailed
	}
}
