//go:build unix

package commands

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/talkgen/internal/generator"
	"github.com/leapstack-labs/talkgen/internal/state"
	"github.com/leapstack-labs/talkgen/internal/testutil"
)

// dumpInputScript prints the generator input file and the save path.
const dumpInputScript = `while [ $# -gt 0 ]; do
  case "$1" in
    --input_json) echo "input=$(cat "$2")"; shift ;;
    --save_file) echo "save=$2"; shift ;;
    --sample_steps) echo "steps=$2"; shift ;;
    --use_teacache) echo "teacache" ;;
  esac
  shift
done
`

func writeRequest(t *testing.T, dir, body string) string {
	t.Helper()
	return testutil.WriteFile(t, dir, "request.json", body)
}

func TestJob_Runs(t *testing.T) {
	repo := setupProject(t, dumpInputScript, "")
	data := writeRequest(t, t.TempDir(), `{"speech_text": "Hello there", "tts_audio": {}}`)
	outDir := t.TempDir()

	stdout, _, err := execute(t, NewJobCommand(),
		"--job-id", "42", "--output", filepath.Join(outDir, "video.mp4"), "--data", data)
	require.NoError(t, err)

	assert.Contains(t, stdout, "save="+filepath.Join(outDir, "video")+"\n")
	assert.Contains(t, stdout, "steps=30\n")
	assert.Contains(t, stdout, "teacache\n")
	assert.Contains(t, stdout, `"text":"Hello there"`)
	assert.Contains(t, stdout, `"human1_voice":"`+filepath.Join(repo, "weights", "Kokoro-82M", "voices", "af_heart.pt")+`"`)
	assert.Contains(t, stdout, `"cond_image":"`+filepath.Join(repo, "avatars", "sales_executive", "face.png")+`"`)
	assert.Contains(t, stdout, "Job 42 finished")

	assert.NoDirExists(t, filepath.Join(repo, "backend_runs", "42"), "work directory is removed")

	runs := listRecordedRuns(t, repo)
	require.Len(t, runs, 1)
	assert.Equal(t, state.RunKindJob, runs[0].Kind)
	assert.Equal(t, "42", runs[0].JobID)
	assert.Equal(t, state.RunStatusCompleted, runs[0].Status)
}

func TestJob_UnavailableHistoryDoesNotBlockJob(t *testing.T) {
	repo := setupProject(t, dumpInputScript, "state_path: blocker/state.db\n")
	testutil.WriteFile(t, repo, "blocker", "not a directory")
	data := writeRequest(t, t.TempDir(), `{"speech_text": "Hi"}`)

	stdout, stderr, err := execute(t, NewJobCommand(),
		"--job-id", "9", "--output", filepath.Join(t.TempDir(), "out.mp4"), "--data", data)
	require.NoError(t, err)

	assert.Contains(t, stdout, "steps=30\n")
	assert.Contains(t, stdout, "Job 9 finished")
	assert.Contains(t, stderr, "this run will not be recorded")
}

func TestJob_JSONSummaryFromEnv(t *testing.T) {
	setupProject(t, dumpInputScript, "")
	t.Setenv("TALKGEN_OUTPUT", "json")
	data := writeRequest(t, t.TempDir(), `{"speech_text": "Hi"}`)
	outPath := filepath.Join(t.TempDir(), "out.mp4")

	cmd := NewJobCommand()
	assert.Contains(t, cmd.Long, "TALKGEN_OUTPUT=json")

	stdout, stderr, err := execute(t, cmd, "--job-id", "11", "--output", outPath, "--data", data)
	require.NoError(t, err)

	var out JobOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "11", out.JobID)
	assert.Equal(t, outPath, out.Output)
	assert.Zero(t, out.ExitCode)
	assert.Contains(t, stderr, "steps=30", "generator output goes to stderr")
}

func TestJob_RequestOverrides(t *testing.T) {
	setupProject(t, dumpInputScript, "")
	data := writeRequest(t, t.TempDir(), `{"speech_text": "Hi", "sample_steps": 12, "use_teacache": false}`)

	stdout, _, err := execute(t, NewJobCommand(),
		"--job-id", "7", "--output", filepath.Join(t.TempDir(), "out.mp4"), "--data", data)
	require.NoError(t, err)

	assert.Contains(t, stdout, "steps=12\n")
	assert.NotContains(t, stdout, "teacache\n")
}

func TestJob_RelativeOutputIsAbsolute(t *testing.T) {
	repo := setupProject(t, dumpInputScript, "")
	data := writeRequest(t, t.TempDir(), `{"speech_text": "Hi"}`)

	stdout, _, err := execute(t, NewJobCommand(),
		"--job-id", "8", "--output", "videos/clip.mp4", "--data", data)
	require.NoError(t, err)
	assert.Contains(t, stdout, "save="+filepath.Join(repo, "videos", "clip")+"\n")
}

func TestJob_DryRunKeepWorkDir(t *testing.T) {
	repo := setupProject(t, dumpInputScript, "")
	data := writeRequest(t, t.TempDir(), `{"speech_text": "Hi"}`)

	stdout, _, err := execute(t, NewJobCommand(),
		"--job-id", "9", "--output", "/videos/9.mp4", "--data", data, "--dry-run", "--keep-workdir")
	require.NoError(t, err)

	workDir := filepath.Join(repo, "backend_runs", "9")
	assert.Contains(t, stdout, "--input_json "+workDir+"/")
	assert.Contains(t, stdout, "--audio_mode tts")
	assert.Contains(t, stdout, "--audio_save_dir "+filepath.Join(workDir, "audio"))
	assert.Contains(t, stdout, "--save_file /videos/9")

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))
	assert.Empty(t, listRecordedRuns(t, repo))
}

func TestJob_DryRunCleansUp(t *testing.T) {
	repo := setupProject(t, dumpInputScript, "")
	data := writeRequest(t, t.TempDir(), `{"speech_text": "Hi"}`)

	_, _, err := execute(t, NewJobCommand(),
		"--job-id", "10", "--output", "/videos/10.mp4", "--data", data, "--dry-run")
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(repo, "backend_runs", "10"))
}

func TestJob_GeneratorFailure(t *testing.T) {
	repo := setupProject(t, `echo "tts failed" 1>&2
exit 5
`, "output: json\n")
	data := writeRequest(t, t.TempDir(), `{"speech_text": "Hi"}`)

	stdout, _, err := execute(t, NewJobCommand(),
		"--job-id", "11", "--output", "/videos/11.mp4", "--data", data)
	require.Error(t, err)

	var exitErr *generator.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 5, exitErr.Code)

	var out JobOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "11", out.JobID)
	assert.Equal(t, 5, out.ExitCode)
	assert.Equal(t, []string{"tts failed"}, out.Tail)
	assert.NotEmpty(t, out.RunID)

	assert.NoDirExists(t, filepath.Join(repo, "backend_runs", "11"), "work directory is removed on failure")
}

func TestJob_InvalidInput(t *testing.T) {
	setupProject(t, dumpInputScript, "")
	dir := t.TempDir()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing flags",
			args:    []string{"--job-id", "1"},
			wantErr: "required flag(s)",
		},
		{
			name:    "missing data file",
			args:    []string{"--job-id", "1", "--output", "/v/1.mp4", "--data", filepath.Join(dir, "nope.json")},
			wantErr: "failed to read JSON",
		},
		{
			name:    "missing speech text",
			args:    []string{"--job-id", "1", "--output", "/v/1.mp4", "--data", writeRequest(t, t.TempDir(), `{"tts_audio": {}}`)},
			wantErr: "speech_text",
		},
		{
			name:    "job id with separator",
			args:    []string{"--job-id", "../x", "--output", "/v/1.mp4", "--data", writeRequest(t, t.TempDir(), `{"speech_text": "Hi"}`)},
			wantErr: "invalid job id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, NewJobCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
