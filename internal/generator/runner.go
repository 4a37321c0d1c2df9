package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Executor runs an Invocation. Runner is the real implementation; tests and
// the run recorder wrap or replace it.
type Executor interface {
	Run(ctx context.Context, inv *Invocation, out io.Writer) (*Result, error)
}

// Result describes a finished process.
type Result struct {
	ExitCode   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	// Tail holds the last lines of combined stdout/stderr.
	Tail []string
}

// ExitError is returned when the generator exits non-zero.
type ExitError struct {
	Code int
	Tail []string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("multitalk generation failed with exit code %d", e.Code)
	if len(e.Tail) == 0 {
		return msg
	}
	return msg + ". Last output:\n" + strings.TrimSpace(strings.Join(e.Tail, "\n"))
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// TailLines bounds the output kept for error reports.
	TailLines int
	// Timeout aborts the process when positive.
	Timeout time.Duration
	// WaitDelay bounds how long output is drained after the process is
	// killed.
	WaitDelay time.Duration
	// Logger is optional.
	Logger *slog.Logger
}

// Runner executes invocations as child processes.
type Runner struct {
	cfg    RunnerConfig
	logger *slog.Logger
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = DefaultTailLines
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 10 * time.Second
	}
	return &Runner{cfg: cfg, logger: logger}
}

// Run starts inv, streams its combined output to out (which may be nil) and
// waits for it to finish. A non-zero exit yields *ExitError together with a
// populated Result.
func (r *Runner) Run(ctx context.Context, inv *Invocation, out io.Writer) (*Result, error) {
	if inv == nil || inv.Binary == "" {
		return nil, errors.New("invocation has no binary")
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	tail := newTailWriter(out, r.cfg.TailLines, r.logger)

	cmd := exec.CommandContext(ctx, inv.Binary, inv.Args...) //nolint:gosec // G204: binary comes from trusted config
	cmd.Dir = inv.Dir
	cmd.Env = append(os.Environ(), inv.Env...)
	// One writer for both streams makes exec share a single pipe, which
	// keeps stdout and stderr in emission order.
	cmd.Stdout = tail
	cmd.Stderr = tail
	cmd.WaitDelay = r.cfg.WaitDelay

	r.logger.Debug("starting generator", "binary", inv.Binary, "dir", inv.Dir, "env", inv.Env)

	result := &Result{ExitCode: -1, StartedAt: time.Now()}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", inv.Binary, err)
	}

	err := cmd.Wait()
	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Tail = tail.Lines()

	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.logger.Warn("generator aborted", "reason", ctxErr, "duration", result.Duration)
			return result, fmt.Errorf("generation aborted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Debug("generator exited", "exit_code", result.ExitCode, "duration", result.Duration)
			return result, &ExitError{Code: result.ExitCode, Tail: result.Tail}
		}
		return result, fmt.Errorf("failed waiting for generator: %w", err)
	}

	r.logger.Debug("generator finished", "duration", result.Duration)
	return result, nil
}

