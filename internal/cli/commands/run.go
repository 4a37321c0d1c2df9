package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/talkgen/internal/cli/output"
	"github.com/leapstack-labs/talkgen/internal/generator"
	"github.com/leapstack-labs/talkgen/internal/state"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Overrides generator.Params
	DryRun    bool
	NoHistory bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run [profile]",
		Short: "Run the generator with an invocation profile",
		Long: `Run the MultiTalk generator once with the parameters of a profile.

The builtin profiles are "standard" (single speaker, 40 steps, weights kept
resident) and "lowvram" (multi speaker, 8 steps, all DiT weights offloaded).
Profiles can be added or adjusted in talkgen.yaml, and every parameter can be
overridden with a flag for a single run.

WAN_DISABLE_FLASH_ATTN=1 is set for the generator unless disabled in the
configuration. The generator's exit code becomes talkgen's exit code.`,
		Example: `  # Run the default profile
  talkgen run

  # Run the low-VRAM profile
  talkgen run lowvram

  # Show what would be executed
  talkgen run standard --dry-run

  # Override a parameter for one run
  talkgen run lowvram --sample-steps 12`,
		Args: cobra.MaximumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			cfg, err := getConfig()
			if err != nil {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return cfg.ProfileSet().Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Overrides.InputJSON, "input-json", "", "Override the input JSON path")
	f.IntVar(&opts.Overrides.SampleSteps, "sample-steps", 0, "Override the sampling step count")
	f.StringVar(&opts.Overrides.Mode, "mode", "", "Override the generation mode (streaming|clip)")
	f.Int64Var(&opts.Overrides.NumPersistentParamInDiT, "num-persistent-param-in-dit", 0, "Override the number of DiT parameters kept on the GPU")
	f.StringVar(&opts.Overrides.AudioMode, "audio-mode", "", "Override the audio mode (tts|localfile)")
	f.StringVar(&opts.Overrides.AudioSaveDir, "audio-save-dir", "", "Override the audio output directory")
	f.StringVar(&opts.Overrides.SaveFile, "save-file", "", "Output video path without extension")
	f.BoolVar(&opts.Overrides.UseTeaCache, "use-teacache", false, "Enable TeaCache acceleration")
	f.BoolVar(&opts.DryRun, "dry-run", false, "Print the environment and command instead of running")
	f.BoolVar(&opts.NoHistory, "no-history", false, "Do not record the run in the history database")

	_ = cmd.RegisterFlagCompletionFunc("mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{generator.ModeStreaming, generator.ModeClip}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("audio-mode", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{generator.AudioModeTTS, generator.AudioModeLocalFile}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

// DryRunOutput is the JSON output of run --dry-run.
type DryRunOutput struct {
	Profile string   `json:"profile"`
	Dir     string   `json:"dir"`
	Env     []string `json:"env"`
	Argv    []string `json:"argv"`
	Command string   `json:"command"`
}

// RunOutput is the JSON output of a finished run.
type RunOutput struct {
	Profile    string   `json:"profile"`
	RunID      string   `json:"run_id,omitempty"`
	ExitCode   int      `json:"exit_code"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
	Tail       []string `json:"tail,omitempty"`
}

func runRun(cmd *cobra.Command, args []string, opts *RunOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	name := cfg.Profile
	if len(args) > 0 {
		name = args[0]
	}
	profile, err := cfg.ProfileSet().Get(name)
	if err != nil {
		return err
	}

	params := applyOverrides(cmd, profile.Params, opts.Overrides)
	inv, err := generator.Build(cfg.Settings(), params)
	if err != nil {
		return fmt.Errorf("profile %s: %w", name, err)
	}

	if opts.DryRun {
		return renderDryRun(r, name, inv)
	}

	if err := cfg.ValidateGeneratorDir(); err != nil {
		return err
	}

	var executor generator.Executor = generator.NewRunner(generator.RunnerConfig{
		Timeout: cfg.Timeout,
		Logger:  cmdCtx.Logger,
	})
	var recorder *state.Recorder
	if !opts.NoHistory {
		rec := &state.Recorder{
			Executor: executor,
			Kind:     state.RunKindProfile,
			Profile:  name,
			Logger:   cmdCtx.Logger,
		}
		if closeStore, ok := attachHistory(cmdCtx, rec); ok {
			defer closeStore()
			recorder = rec
			executor = rec
		}
	}

	// Keep stdout clean for the JSON summary.
	var stream io.Writer = cmd.OutOrStdout()
	if r.EffectiveMode() == output.ModeJSON {
		stream = r.ErrWriter()
	}

	cmdCtx.Logger.Info("running profile", "profile", name, "command", inv.CommandString())
	res, runErr := executor.Run(cmd.Context(), inv, stream)

	out := RunOutput{Profile: name, ExitCode: -1}
	if recorder != nil {
		out.RunID = recorder.LastRunID()
	}
	if res != nil {
		out.ExitCode = res.ExitCode
		out.DurationMS = res.Duration.Milliseconds()
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}

	if r.EffectiveMode() == output.ModeJSON {
		if res != nil && runErr != nil {
			out.Tail = res.Tail
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
	r.Success(fmt.Sprintf("Profile %s finished", name))
	if out.RunID != "" {
		r.KeyValue("Run", out.RunID)
	}
	r.KeyValue("Duration", res.Duration.Round(time.Millisecond).String())
	return nil
}

// applyOverrides merges the flags the user actually set onto base. Flags
// whose zero value is meaningful are applied even when zero.
func applyOverrides(cmd *cobra.Command, base generator.Params, o generator.Params) generator.Params {
	p := base.Merge(o)
	f := cmd.Flags()
	if f.Changed("num-persistent-param-in-dit") {
		p.NumPersistentParamInDiT = o.NumPersistentParamInDiT
	}
	if f.Changed("use-teacache") {
		p.UseTeaCache = o.UseTeaCache
	}
	return p
}

func renderDryRun(r *output.Renderer, profile string, inv *generator.Invocation) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(DryRunOutput{
			Profile: profile,
			Dir:     inv.Dir,
			Env:     inv.Env,
			Argv:    inv.Argv(),
			Command: inv.CommandString(),
		})
	}
	r.Println(inv.CommandString())
	return nil
}
