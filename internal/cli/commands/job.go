package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/talkgen/internal/cli/output"
	"github.com/leapstack-labs/talkgen/internal/generator"
	"github.com/leapstack-labs/talkgen/internal/job"
	"github.com/leapstack-labs/talkgen/internal/state"
)

// JobOptions holds options for the job command.
type JobOptions struct {
	JobID       string
	Output      string
	Data        string
	KeepWorkDir bool
	DryRun      bool
}

// NewJobCommand creates the job command.
func NewJobCommand() *cobra.Command {
	opts := &JobOptions{}

	cmd := &cobra.Command{
		Use:   "job",
		Short: "Generate a video for a backend job request",
		Long: `Generate one talking-avatar video from a backend job request.

The request (--data) is a JSON object with the speech text and TTS settings:

  {
    "speech_text": "Hello and welcome.",
    "tts_audio": {"human1_voice": "weights/Kokoro-82M/voices/af_heart.pt"},
    "sample_steps": 30,
    "video_seconds": 12
  }

The avatar template JSON and image are taken from avatar_dir. A generator
input file is written to a per-job work directory under runs_dir, the
generator runs in TTS mode and the video is saved to --output. The work
directory is removed afterwards unless --keep-workdir is given.

Here --output names the video file and takes the place of the global
-o/--output format flag. For a JSON summary set "output: json" in
talkgen.yaml or TALKGEN_OUTPUT=json.`,
		Example: `  # Run a job
  talkgen job --job-id 42 --output /videos/42.mp4 --data request.json

  # Inspect the generated input without running
  talkgen job --job-id 42 --output /videos/42.mp4 --data request.json --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJob(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.JobID, "job-id", "", "Job identifier, used for the work directory name")
	f.StringVar(&opts.Output, "output", "", "Output video path")
	f.StringVar(&opts.Data, "data", "", "Path to the job request JSON")
	f.BoolVar(&opts.KeepWorkDir, "keep-workdir", false, "Keep the job work directory after the run")
	f.BoolVar(&opts.DryRun, "dry-run", false, "Prepare the job and print the command instead of running")
	_ = cmd.MarkFlagRequired("job-id")
	_ = cmd.MarkFlagRequired("output")
	_ = cmd.MarkFlagRequired("data")
	_ = cmd.MarkFlagFilename("data", "json")

	return cmd
}

// JobOutput is the JSON output of the job command.
type JobOutput struct {
	JobID      string   `json:"job_id"`
	Output     string   `json:"output"`
	RunID      string   `json:"run_id,omitempty"`
	ExitCode   int      `json:"exit_code"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
	Tail       []string `json:"tail,omitempty"`
}

func runJob(cmd *cobra.Command, opts *JobOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	req, err := job.LoadRequest(opts.Data)
	if err != nil {
		return err
	}
	outPath, err := filepath.Abs(opts.Output)
	if err != nil {
		return fmt.Errorf("invalid output path %s: %w", opts.Output, err)
	}
	spec := job.Spec{
		JobID:       opts.JobID,
		Output:      outPath,
		Request:     req,
		KeepWorkDir: opts.KeepWorkDir,
	}

	// Keep stdout clean for the JSON summary.
	var stream io.Writer = cmd.OutOrStdout()
	if r.EffectiveMode() == output.ModeJSON {
		stream = r.ErrWriter()
	}

	if opts.DryRun {
		launcher := job.NewLauncher(cfg.JobConfig(), nil, stream, cmdCtx.Logger)
		inv, ws, err := launcher.Prepare(spec)
		if err != nil {
			return err
		}
		if !opts.KeepWorkDir {
			defer func() { _ = ws.Cleanup() }()
		}
		return renderDryRun(r, "job:"+opts.JobID, inv)
	}

	if err := cfg.ValidateGeneratorDir(); err != nil {
		return err
	}

	var executor generator.Executor = generator.NewRunner(generator.RunnerConfig{
		Timeout: cfg.Timeout,
		Logger:  cmdCtx.Logger,
	})
	recorder := &state.Recorder{
		Executor: executor,
		Kind:     state.RunKindJob,
		JobID:    opts.JobID,
		Logger:   cmdCtx.Logger,
	}
	closeStore, recording := attachHistory(cmdCtx, recorder)
	defer closeStore()
	if recording {
		executor = recorder
	}
	launcher := job.NewLauncher(cfg.JobConfig(), executor, stream, cmdCtx.Logger)

	res, runErr := launcher.Run(cmd.Context(), spec)

	out := JobOutput{JobID: opts.JobID, Output: outPath, RunID: recorder.LastRunID(), ExitCode: -1}
	if res != nil {
		out.ExitCode = res.ExitCode
		out.DurationMS = res.Duration.Milliseconds()
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}

	if r.EffectiveMode() == output.ModeJSON {
		var exitErr *generator.ExitError
		if errors.As(runErr, &exitErr) {
			out.Tail = exitErr.Tail
		}
		if err := r.JSON(out); err != nil {
			return err
		}
		return runErr
	}

	if runErr != nil {
		return runErr
	}
	r.Println("")
	r.Success(fmt.Sprintf("Job %s finished", opts.JobID))
	r.KeyValue("Output", outPath)
	if out.RunID != "" {
		r.KeyValue("Run", out.RunID)
	}
	r.KeyValue("Duration", res.Duration.Round(time.Millisecond).String())
	return nil
}
