// Package state records generator runs in a SQLite database.
// It tracks what was launched, with which profile, and how it ended.
package state

import (
	"context"
	"time"
)

// RunKind tells how a run was started.
type RunKind string

// Run kinds.
const (
	RunKindProfile RunKind = "profile"
	RunKindJob     RunKind = "job"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Run is one launch of the generator.
type Run struct {
	ID          string     `json:"id"`
	Kind        RunKind    `json:"kind"`
	Profile     string     `json:"profile,omitempty"`
	JobID       string     `json:"job_id,omitempty"`
	Command     string     `json:"command"`
	Status      RunStatus  `json:"status"`
	ExitCode    *int       `json:"exit_code,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *Run) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// NewRun describes a run about to start.
type NewRun struct {
	Kind    RunKind
	Profile string
	JobID   string
	Command string
}

// Store persists runs.
type Store interface {
	CreateRun(ctx context.Context, nr NewRun) (*Run, error)
	CompleteRun(ctx context.Context, id string, status RunStatus, exitCode *int, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	Close() error
}
