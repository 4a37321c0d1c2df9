// Package testutil provides shared helpers for tests.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(logWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type logWriter struct {
	t testing.TB
}

func (w logWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// WriteFile creates dir/name (and any parents) with the given content and
// returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// SetupGeneratorRepo lays out a fake generator checkout: the entry script,
// both checkpoint directories, the Kokoro weights and an avatar directory
// holding one JSON and one image. It returns the repo root.
func SetupGeneratorRepo(t testing.TB, script string) string {
	t.Helper()
	root := t.TempDir()

	WriteFile(t, root, "generate_multitalk.py", script)
	for _, dir := range []string{
		"weights/Wan2.1-I2V-14B-480P",
		"weights/chinese-wav2vec2-base",
		"weights/Kokoro-82M/voices",
	} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
			t.Fatalf("failed to create %s: %v", dir, err)
		}
	}
	WriteFile(t, root, "weights/Kokoro-82M/voices/af_heart.pt", "voice")
	WriteFile(t, root, "avatars/sales_executive/base.json",
		`{"prompt": "A sales executive talking to the camera", "cond_audio": {}}`)
	WriteFile(t, root, "avatars/sales_executive/face.png", "png")

	return root
}
