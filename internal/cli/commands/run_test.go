//go:build unix

package commands

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/talkgen/internal/generator"
	"github.com/leapstack-labs/talkgen/internal/state"
	"github.com/leapstack-labs/talkgen/internal/testutil"
)

const echoArgsScript = `for a in "$@"; do echo "arg=$a"; done
`

func listRecordedRuns(t *testing.T, repo string) []*state.Run {
	t.Helper()
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(filepath.Join(repo, ".talkgen", "state.db")))
	defer func() { _ = store.Close() }()
	require.NoError(t, store.Migrate())
	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	return runs
}

func TestRun_DryRunDefaultProfile(t *testing.T) {
	repo := setupProject(t, echoArgsScript, "")

	stdout, _, err := execute(t, NewRunCommand(), "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, stdout, "WAN_DISABLE_FLASH_ATTN=1 /bin/sh "+filepath.Join(repo, "generate_multitalk.py"))
	assert.Contains(t, stdout, "--ckpt_dir "+filepath.Join(repo, "weights", "Wan2.1-I2V-14B-480P"))
	assert.Contains(t, stdout, "--wav2vec_dir "+filepath.Join(repo, "weights", "chinese-wav2vec2-base"))
	assert.Contains(t, stdout, "--input_json "+filepath.Join(repo, "examples", "single_example_tts_1.json"))
	assert.Contains(t, stdout, "--sample_steps 40 --mode streaming --num_persistent_param_in_dit 7000000000 --audio_mode tts --audio_save_dir save_audio/standard")
	assert.NotContains(t, stdout, "--use_teacache")

	assert.Empty(t, listRecordedRuns(t, repo), "dry runs are not recorded")
}

func TestRun_DryRunOverrides(t *testing.T) {
	setupProject(t, echoArgsScript, "")

	stdout, _, err := execute(t, NewRunCommand(), "standard", "--dry-run",
		"--sample-steps", "12", "--num-persistent-param-in-dit", "0", "--use-teacache")
	require.NoError(t, err)

	assert.Contains(t, stdout, "--sample_steps 12")
	assert.Contains(t, stdout, "--num_persistent_param_in_dit 0")
	assert.Contains(t, stdout, "--audio_save_dir save_audio/standard")
	assert.Contains(t, stdout, "--use_teacache")
}

func TestRun_DryRunJSON(t *testing.T) {
	repo := setupProject(t, echoArgsScript, "output: json\n")

	stdout, _, err := execute(t, NewRunCommand(), "lowvram", "--dry-run")
	require.NoError(t, err)

	var out DryRunOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "lowvram", out.Profile)
	assert.Equal(t, repo, out.Dir)
	assert.Equal(t, []string{"WAN_DISABLE_FLASH_ATTN=1"}, out.Env)
	require.NotEmpty(t, out.Argv)
	assert.Equal(t, "/bin/sh", out.Argv[0])
	assert.Contains(t, out.Argv, "8")
	assert.Contains(t, out.Argv, "save_audio/lowvram")
}

func TestRun_ConfigProfile(t *testing.T) {
	setupProject(t, echoArgsScript, `profile: preview
profiles:
  preview:
    input_json: examples/preview.json
    sample_steps: 4
    audio_save_dir: save_audio/preview
`)

	stdout, _, err := execute(t, NewRunCommand(), "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, stdout, "--sample_steps 4")
	assert.Contains(t, stdout, "--audio_save_dir save_audio/preview")
}

func TestRun_UnknownProfile(t *testing.T) {
	setupProject(t, echoArgsScript, "")

	_, _, err := execute(t, NewRunCommand(), "ultra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile "ultra"`)
}

func TestRun_InvalidOverride(t *testing.T) {
	setupProject(t, echoArgsScript, "")

	_, _, err := execute(t, NewRunCommand(), "--dry-run", "--sample-steps", "-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sample_steps must be positive")
}

func TestRun_ExecutesAndRecords(t *testing.T) {
	repo := setupProject(t, echoArgsScript+`echo "flash=$WAN_DISABLE_FLASH_ATTN"
`, "")

	stdout, _, err := execute(t, NewRunCommand(), "lowvram")
	require.NoError(t, err)

	assert.Contains(t, stdout, "arg=--sample_steps\narg=8\n")
	assert.Contains(t, stdout, "arg=--num_persistent_param_in_dit\narg=0\n")
	assert.Contains(t, stdout, "flash=1")
	assert.Contains(t, stdout, "Profile lowvram finished")

	runs := listRecordedRuns(t, repo)
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunKindProfile, runs[0].Kind)
	assert.Equal(t, "lowvram", runs[0].Profile)
	assert.Equal(t, state.RunStatusCompleted, runs[0].Status)
	require.NotNil(t, runs[0].ExitCode)
	assert.Equal(t, 0, *runs[0].ExitCode)
	assert.Contains(t, runs[0].Command, "--sample_steps 8")
}

func TestRun_NoHistory(t *testing.T) {
	repo := setupProject(t, echoArgsScript, "")

	_, _, err := execute(t, NewRunCommand(), "--no-history")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(repo, ".talkgen", "state.db"))
}

func TestRun_UnavailableHistoryDoesNotBlockRun(t *testing.T) {
	repo := setupProject(t, echoArgsScript, "state_path: blocker/state.db\n")
	testutil.WriteFile(t, repo, "blocker", "not a directory")

	stdout, stderr, err := execute(t, NewRunCommand(), "lowvram")
	require.NoError(t, err)

	assert.Contains(t, stdout, "arg=--sample_steps\narg=8\n")
	assert.Contains(t, stdout, "Profile lowvram finished")
	assert.NotContains(t, stdout, "**Run**")
	assert.Contains(t, stderr, "Warning: failed to open state database")
	assert.Contains(t, stderr, "this run will not be recorded")
}

func TestRun_GeneratorFailure(t *testing.T) {
	repo := setupProject(t, `echo "loading weights"
echo "CUDA out of memory" 1>&2
exit 3
`, "")

	_, _, err := execute(t, NewRunCommand(), "standard")
	require.Error(t, err)

	var exitErr *generator.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Code)
	assert.Contains(t, err.Error(), "CUDA out of memory")

	runs := listRecordedRuns(t, repo)
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].ExitCode)
	assert.Equal(t, 3, *runs[0].ExitCode)
}

func TestRun_FailureJSON(t *testing.T) {
	setupProject(t, `echo "fatal" 1>&2
exit 2
`, "output: json\n")

	stdout, stderr, err := execute(t, NewRunCommand(), "standard", "--no-history")
	require.Error(t, err)

	var out RunOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 2, out.ExitCode)
	assert.Equal(t, []string{"fatal"}, out.Tail)
	assert.Contains(t, stderr, "fatal", "generator output goes to stderr in JSON mode")
}

func TestRun_MissingScript(t *testing.T) {
	setupProject(t, echoArgsScript, "script: missing.py\n")

	_, _, err := execute(t, NewRunCommand())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generator script does not exist")
}
