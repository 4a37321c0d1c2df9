package state

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/talkgen/internal/generator"
)

type fakeExecutor struct {
	result *generator.Result
	err    error
	calls  int
}

func (f *fakeExecutor) Run(_ context.Context, _ *generator.Invocation, out io.Writer) (*generator.Result, error) {
	f.calls++
	if out != nil {
		_, _ = fmt.Fprintln(out, "generating")
	}
	return f.result, f.err
}

func TestRecorder(t *testing.T) {
	inv := &generator.Invocation{
		Binary: "python",
		Args:   []string{"generate_multitalk.py", "--sample_steps", "40"},
		Env:    []string{"WAN_DISABLE_FLASH_ATTN=1"},
	}

	tests := []struct {
		name       string
		result     *generator.Result
		err        error
		wantStatus RunStatus
		wantCode   *int
	}{
		{
			name:       "success",
			result:     &generator.Result{ExitCode: 0},
			wantStatus: RunStatusCompleted,
			wantCode:   intPtr(0),
		},
		{
			name:       "exit error",
			result:     &generator.Result{ExitCode: 3},
			err:        &generator.ExitError{Code: 3, Tail: []string{"CUDA out of memory"}},
			wantStatus: RunStatusFailed,
			wantCode:   intPtr(3),
		},
		{
			name:       "cancelled",
			result:     &generator.Result{ExitCode: -1},
			err:        fmt.Errorf("generation aborted: %w", context.Canceled),
			wantStatus: RunStatusCancelled,
		},
		{
			name:       "start failure",
			err:        fmt.Errorf("failed to start python"),
			wantStatus: RunStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			exec := &fakeExecutor{result: tt.result, err: tt.err}
			rec := &Recorder{Store: store, Executor: exec, Kind: RunKindProfile, Profile: "standard"}

			res, err := rec.Run(context.Background(), inv, io.Discard)
			assert.Equal(t, tt.result, res)
			assert.Equal(t, tt.err, err)
			assert.Equal(t, 1, exec.calls)

			require.NotEmpty(t, rec.LastRunID())
			run, err := store.GetRun(context.Background(), rec.LastRunID())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, run.Status)
			assert.Equal(t, tt.wantCode, run.ExitCode)
			assert.Equal(t, "standard", run.Profile)
			assert.Equal(t, inv.CommandString(), run.Command)
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), run.Error)
			}
		})
	}
}

func TestRecorder_StoreFailureDoesNotBlockRun(t *testing.T) {
	store := NewSQLiteStore(nil) // never opened
	exec := &fakeExecutor{result: &generator.Result{ExitCode: 0}}
	rec := &Recorder{Store: store, Executor: exec, Kind: RunKindJob, JobID: "j1"}

	_, err := rec.Run(context.Background(), &generator.Invocation{Binary: "python"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, exec.calls)
	assert.Empty(t, rec.LastRunID())
}
