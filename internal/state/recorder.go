package state

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/leapstack-labs/talkgen/internal/generator"
)

// Recorder wraps a generator.Executor and records every execution in a
// Store. Bookkeeping failures are logged and never stop the run.
type Recorder struct {
	Store    Store
	Executor generator.Executor
	Kind     RunKind
	Profile  string
	JobID    string
	Logger   *slog.Logger

	lastRunID string
}

// LastRunID returns the ID of the most recently recorded run.
func (r *Recorder) LastRunID() string {
	return r.lastRunID
}

// Run implements generator.Executor.
func (r *Recorder) Run(ctx context.Context, inv *generator.Invocation, out io.Writer) (*generator.Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	run, err := r.Store.CreateRun(ctx, NewRun{
		Kind:    r.Kind,
		Profile: r.Profile,
		JobID:   r.JobID,
		Command: inv.CommandString(),
	})
	if err != nil {
		logger.Warn("failed to record run start", "error", err)
	} else {
		r.lastRunID = run.ID
	}

	res, runErr := r.Executor.Run(ctx, inv, out)

	if run != nil {
		status, exitCode := classify(res, runErr)
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
		}
		// The run context may already be cancelled; completion must still land.
		if err := r.Store.CompleteRun(context.WithoutCancel(ctx), run.ID, status, exitCode, errMsg); err != nil {
			logger.Warn("failed to record run completion", "id", run.ID, "error", err)
		}
	}

	return res, runErr
}

func classify(res *generator.Result, err error) (RunStatus, *int) {
	var exitCode *int
	if res != nil && res.ExitCode >= 0 {
		code := res.ExitCode
		exitCode = &code
	}
	switch {
	case err == nil:
		return RunStatusCompleted, exitCode
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return RunStatusCancelled, exitCode
	default:
		return RunStatusFailed, exitCode
	}
}
