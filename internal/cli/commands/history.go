package commands

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/talkgen/internal/cli/output"
	"github.com/leapstack-labs/talkgen/internal/state"
)

const defaultHistoryLimit = 20

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent generator runs",
		Long: `Show the most recent generator runs recorded in the history database,
newest first.`,
		Example: `  # Last 20 runs
  talkgen history

  # Everything, as JSON
  talkgen history --limit 0 -o json

  # One run in detail
  talkgen history show 3f2a9c1e-...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultHistoryLimit, "Number of runs to show (0 for all)")
	cmd.AddCommand(newHistoryShowCommand())
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, args[0])
		},
	}
}

func runHistory(cmd *cobra.Command, limit int) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*state.Run{}
		}
		return r.JSON(runs)
	}

	if len(runs) == 0 {
		r.Muted("No runs recorded yet.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			shortID(run.ID),
			string(run.Kind),
			runTarget(run),
			string(run.Status),
			exitCodeString(run.ExitCode),
			run.StartedAt.Local().Format(time.DateTime),
			durationString(run),
		})
	}
	r.Table([]string{"ID", "Kind", "Target", "Status", "Exit", "Started", "Duration"}, rows)
	return nil
}

func runHistoryShow(cmd *cobra.Command, id string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	run, err := store.GetRun(cmd.Context(), id)
	if errors.Is(err, state.ErrRunNotFound) {
		return fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return err
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(run)
	}

	r.Header(1, "Run "+run.ID)
	r.KeyValue("Kind", string(run.Kind))
	r.KeyValue("Target", runTarget(run))
	r.KeyValue("Status", string(run.Status))
	r.KeyValue("Exit code", exitCodeString(run.ExitCode))
	r.KeyValue("Started", run.StartedAt.Local().Format(time.DateTime))
	r.KeyValue("Duration", durationString(run))
	r.KeyValue("Command", run.Command)
	if run.Error != "" {
		r.Println("")
		r.Header(2, "Error")
		r.Println(run.Error)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runTarget(run *state.Run) string {
	if run.Kind == state.RunKindJob {
		return "job " + run.JobID
	}
	return run.Profile
}

func exitCodeString(code *int) string {
	if code == nil {
		return "-"
	}
	return strconv.Itoa(*code)
}

func durationString(run *state.Run) string {
	if run.CompletedAt == nil {
		return "-"
	}
	return run.Duration().Round(time.Second).String()
}
