package job

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/talkgen/internal/generator"
)

// Config is the host configuration a Launcher needs.
type Config struct {
	// Settings locate the interpreter, script and model weights.
	Settings generator.Settings
	// Base supplies mode, step count and persistent-param defaults.
	Base generator.Params
	// AvatarDir holds the avatar template JSON and image.
	AvatarDir string
	// KokoroDir is linked into the generator checkout when set.
	KokoroDir string
	// TTSVoice is the default voice for the first speaker.
	TTSVoice string
	// RunsDir holds per-job work directories. Relative to Settings.Dir
	// unless absolute.
	RunsDir string
	// SecondsPerVideoSecond feeds the runtime estimate.
	SecondsPerVideoSecond float64
}

// Spec identifies one job.
type Spec struct {
	JobID   string
	Output  string
	Request *Request
	// KeepWorkDir leaves the work directory in place for inspection.
	KeepWorkDir bool
}

// Launcher prepares job inputs and hands them to an Executor.
type Launcher struct {
	cfg      Config
	executor generator.Executor
	out      io.Writer
	logger   *slog.Logger
}

// NewLauncher creates a Launcher. Generator output is streamed to out.
func NewLauncher(cfg Config, executor generator.Executor, out io.Writer, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Launcher{cfg: cfg, executor: executor, out: out, logger: logger}
}

// Prepare writes the job input into a fresh workspace and returns the
// invocation that would run it. The caller owns the workspace.
func (l *Launcher) Prepare(spec Spec) (*generator.Invocation, *Workspace, error) {
	if spec.Request == nil {
		return nil, nil, fmt.Errorf("job request is required")
	}
	if spec.Output == "" {
		return nil, nil, fmt.Errorf("output path is required")
	}

	baseDir := l.cfg.Settings.Dir
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}

	ws, err := NewWorkspace(generator.ResolvePath(baseDir, l.cfg.RunsDir), spec.JobID)
	if err != nil {
		return nil, nil, err
	}

	inv, err := l.prepare(spec, ws, baseDir)
	if err != nil {
		_ = ws.Cleanup()
		return nil, nil, err
	}
	return inv, ws, nil
}

func (l *Launcher) prepare(spec Spec, ws *Workspace, baseDir string) (*generator.Invocation, error) {
	avatarJSON, avatarImage, err := SelectAvatarAssets(l.cfg.AvatarDir)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("selected avatar assets", "json", avatarJSON, "image", avatarImage)

	payload, err := BuildPayload(spec.Request, baseDir, avatarJSON, avatarImage, l.cfg.TTSVoice)
	if err != nil {
		return nil, err
	}

	inputPath, err := ws.WritePayload(payload)
	if err != nil {
		return nil, err
	}

	if l.cfg.Settings.CkptDir == "" || l.cfg.Settings.Wav2VecDir == "" {
		return nil, fmt.Errorf("missing ckpt_dir or wav2vec_dir in configuration")
	}

	EnsureKokoroLink(baseDir, l.cfg.KokoroDir, l.logger)

	params := spec.Request.Params(l.cfg.Base)
	params.InputJSON = inputPath
	params.AudioSaveDir = ws.AudioDir()
	params.SaveFile = strings.TrimSuffix(spec.Output, filepath.Ext(spec.Output))

	return generator.Build(l.cfg.Settings, params)
}

// Run prepares the job, executes it and removes the work directory
// afterwards unless KeepWorkDir is set.
func (l *Launcher) Run(ctx context.Context, spec Spec) (*generator.Result, error) {
	inv, ws, err := l.Prepare(spec)
	if err != nil {
		return nil, err
	}
	defer func() {
		if spec.KeepWorkDir {
			l.logger.Info("keeping work directory", "path", ws.Dir)
			return
		}
		if err := ws.Cleanup(); err != nil {
			l.logger.Warn("failed to remove work directory", "path", ws.Dir, "error", err)
		}
	}()

	if eta := EstimateDuration(spec.Request.VideoSeconds, l.cfg.SecondsPerVideoSecond); eta > 0 {
		l.logger.Info("starting generation", "job_id", spec.JobID, "estimated", eta)
	} else {
		l.logger.Info("starting generation", "job_id", spec.JobID)
	}

	return l.executor.Run(ctx, inv, l.out)
}
