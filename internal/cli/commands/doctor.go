package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/talkgen/internal/cli/config"
	"github.com/leapstack-labs/talkgen/internal/cli/output"
	"github.com/leapstack-labs/talkgen/internal/generator"
	"github.com/leapstack-labs/talkgen/internal/job"
)

// Check statuses.
const (
	CheckOK   = "ok"
	CheckWarn = "warn"
	CheckFail = "fail"
)

const (
	doctorConcurrency   = 4
	interpreterProbeTTL = 15 * time.Second
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the generator environment",
		Long: `Check that everything the generator needs is in place:

  - the Python interpreter
  - the generator script
  - the Wan2.1 and wav2vec2 checkpoint directories
  - the Kokoro TTS weights and default voice (needed for TTS audio)
  - the avatar assets (needed for jobs)
  - the run history database

Missing required pieces fail the check; missing optional ones are reported
as warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// Check is the result of one doctor check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	ConfigFile string  `json:"config_file,omitempty"`
	Checks     []Check `json:"checks"`
	Failed     int     `json:"failed"`
	Warnings   int     `json:"warnings"`
}

type checkFunc func(ctx context.Context, cfg *config.Config) Check

func doctorChecks() []checkFunc {
	return []checkFunc{
		checkInterpreter,
		checkScript,
		func(_ context.Context, cfg *config.Config) Check {
			return checkDir("checkpoint dir", cfg.WeightPath(cfg.CkptDir), CheckFail)
		},
		func(_ context.Context, cfg *config.Config) Check {
			return checkDir("wav2vec dir", cfg.WeightPath(cfg.Wav2VecDir), CheckFail)
		},
		func(_ context.Context, cfg *config.Config) Check {
			return checkDir("kokoro dir", cfg.WeightPath(cfg.KokoroDir), CheckWarn)
		},
		checkVoice,
		checkAvatar,
		checkStateDB,
	}
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg
	r := cmdCtx.Renderer

	out := DoctorOutput{ConfigFile: config.GetConfigFileUsed()}
	out.Checks = runChecks(cmd.Context(), cfg, doctorChecks())
	for _, c := range out.Checks {
		switch c.Status {
		case CheckFail:
			out.Failed++
		case CheckWarn:
			out.Warnings++
		}
	}

	switch r.EffectiveMode() {
	case output.ModeJSON:
		if err := r.JSON(out); err != nil {
			return err
		}
	default:
		renderDoctor(r, cfg, &out)
	}

	if out.Failed > 0 {
		return fmt.Errorf("%d of %d checks failed", out.Failed, len(out.Checks))
	}
	return nil
}

// runChecks runs every check concurrently and returns the results in
// check order.
func runChecks(ctx context.Context, cfg *config.Config, checks []checkFunc) []Check {
	results := make([]Check, len(checks))
	var g errgroup.Group
	g.SetLimit(doctorConcurrency)
	for i, check := range checks {
		g.Go(func() error {
			results[i] = check(ctx, cfg)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func renderDoctor(r *output.Renderer, cfg *config.Config, out *DoctorOutput) {
	r.Header(1, "talkgen doctor")
	if out.ConfigFile != "" {
		r.KeyValue("Config", out.ConfigFile)
	} else {
		r.KeyValue("Config", "(defaults, no "+config.ConfigFileName+" found)")
	}
	r.KeyValue("Generator", cfg.GeneratorDir)
	r.Println("")

	for _, c := range out.Checks {
		status := "success"
		switch c.Status {
		case CheckFail:
			status = "failed"
		case CheckWarn:
			status = "skipped"
		}
		r.StatusLine(c.Name, status, c.Detail)
	}
	r.Println("")

	switch {
	case out.Failed > 0:
		r.Error(fmt.Sprintf("%d checks failed, %d warnings", out.Failed, out.Warnings))
	case out.Warnings > 0:
		r.Success(fmt.Sprintf("All required checks passed (%d warnings)", out.Warnings))
	default:
		r.Success("All checks passed")
	}
}

func checkInterpreter(ctx context.Context, cfg *config.Config) Check {
	c := Check{Name: "python"}
	python := cfg.Python
	if python == "" {
		python = generator.DefaultPython
	}
	path, err := exec.LookPath(python)
	if err != nil {
		c.Status = CheckFail
		c.Detail = fmt.Sprintf("%s not found: %v", python, err)
		return c
	}

	ctx, cancel := context.WithTimeout(ctx, interpreterProbeTTL)
	defer cancel()
	ver, err := exec.CommandContext(ctx, path, "--version").CombinedOutput() //nolint:gosec // G204: interpreter comes from trusted config
	if err != nil {
		c.Status = CheckWarn
		c.Detail = fmt.Sprintf("%s did not report a version: %v", path, err)
		return c
	}
	c.Status = CheckOK
	c.Detail = strings.TrimSpace(string(ver)) + " (" + path + ")"
	return c
}

func checkScript(_ context.Context, cfg *config.Config) Check {
	if err := cfg.ValidateGeneratorDir(); err != nil {
		return Check{Name: "generator script", Status: CheckFail, Detail: err.Error()}
	}
	script := cfg.Script
	if script == "" {
		script = generator.DefaultScript
	}
	return Check{Name: "generator script", Status: CheckOK, Detail: generator.ResolvePath(cfg.GeneratorDir, script)}
}

func checkDir(name, path, missing string) Check {
	if path == "" {
		return Check{Name: name, Status: missing, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return Check{Name: name, Status: missing, Detail: path + " does not exist"}
	case !info.IsDir():
		return Check{Name: name, Status: missing, Detail: path + " is not a directory"}
	}
	return Check{Name: name, Status: CheckOK, Detail: path}
}

func checkVoice(_ context.Context, cfg *config.Config) Check {
	c := Check{Name: "default voice"}
	if cfg.TTSVoice == "" {
		c.Status = CheckWarn
		c.Detail = "not configured"
		return c
	}
	path := cfg.WeightPath(cfg.TTSVoice)
	if _, err := os.Stat(path); err != nil {
		c.Status = CheckWarn
		c.Detail = path + " does not exist"
		return c
	}
	c.Status = CheckOK
	c.Detail = path
	return c
}

func checkAvatar(_ context.Context, cfg *config.Config) Check {
	jsonPath, imagePath, err := job.SelectAvatarAssets(cfg.AvatarDir)
	if err != nil {
		return Check{Name: "avatar assets", Status: CheckWarn, Detail: err.Error()}
	}
	return Check{Name: "avatar assets", Status: CheckOK, Detail: jsonPath + ", " + imagePath}
}

func checkStateDB(_ context.Context, cfg *config.Config) Check {
	c := Check{Name: "history database"}
	store, err := openStore(cfg, nil)
	if err != nil {
		c.Status = CheckWarn
		c.Detail = err.Error()
		return c
	}
	defer func() { _ = store.Close() }()

	version, err := store.GetMigrationVersion()
	if err != nil {
		c.Status = CheckWarn
		c.Detail = err.Error()
		return c
	}
	c.Status = CheckOK
	c.Detail = fmt.Sprintf("%s (schema v%d)", cfg.StatePath, version)
	return c
}
