package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Workspace is the scratch directory of a single job.
type Workspace struct {
	Dir string
}

// NewWorkspace creates <runsDir>/<jobID>.
func NewWorkspace(runsDir, jobID string) (*Workspace, error) {
	if err := validateJobID(jobID); err != nil {
		return nil, err
	}
	dir := filepath.Join(runsDir, jobID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return &Workspace{Dir: dir}, nil
}

// validateJobID keeps job IDs from escaping the runs directory.
func validateJobID(id string) error {
	switch {
	case id == "":
		return errors.New("job id is required")
	case id == "." || id == "..":
		return fmt.Errorf("invalid job id %q", id)
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("invalid job id %q: must not contain path separators", id)
	}
	return nil
}

// AudioDir is where the generator writes synthesized speech.
func (w *Workspace) AudioDir() string {
	return filepath.Join(w.Dir, "audio")
}

// WritePayload stores the generator input under a random name and returns
// its path.
func (w *Workspace) WritePayload(payload map[string]any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	path := filepath.Join(w.Dir, strings.ReplaceAll(uuid.NewString(), "-", "")+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write payload: %w", err)
	}
	return path, nil
}

// Cleanup removes the work directory and everything in it.
func (w *Workspace) Cleanup() error {
	return os.RemoveAll(w.Dir)
}

// KokoroLinkPath is where the generator looks for the Kokoro TTS weights,
// relative to its checkout.
const KokoroLinkPath = "weights/Kokoro-82M"

// EnsureKokoroLink makes weights/Kokoro-82M reachable from generatorDir by
// symlinking it to kokoroDir when absent. A failed symlink is logged and
// left for the generator to report.
func EnsureKokoroLink(generatorDir, kokoroDir string, logger *slog.Logger) {
	if kokoroDir == "" {
		return
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	link := filepath.Join(generatorDir, KokoroLinkPath)
	if _, err := os.Lstat(link); err == nil {
		return
	}

	target := kokoroDir
	if !filepath.IsAbs(target) {
		if abs, err := filepath.Abs(filepath.Join(generatorDir, target)); err == nil {
			target = abs
		}
	}
	if filepath.Clean(target) == filepath.Clean(link) {
		return
	}

	if err := os.MkdirAll(filepath.Dir(link), 0o750); err != nil {
		logger.Warn("failed to create weights directory", "path", filepath.Dir(link), "error", err)
		return
	}
	if err := os.Symlink(target, link); err != nil {
		logger.Warn("failed to link Kokoro weights", "link", link, "target", target, "error", err)
		return
	}
	logger.Debug("linked Kokoro weights", "link", link, "target", target)
}

// DefaultSecondsPerVideoSecond is the measured generation cost: five
// minutes of wall time per second of output video.
const DefaultSecondsPerVideoSecond = 300.0

// EstimateDuration returns the expected wall time for a clip of
// videoSeconds. Non-positive inputs give zero.
func EstimateDuration(videoSeconds, secondsPerVideoSecond float64) time.Duration {
	if videoSeconds <= 0 {
		return 0
	}
	if secondsPerVideoSecond <= 0 {
		secondsPerVideoSecond = DefaultSecondsPerVideoSecond
	}
	return time.Duration(videoSeconds * secondsPerVideoSecond * float64(time.Second))
}
