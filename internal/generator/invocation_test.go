package generator

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	repo := t.TempDir()

	settings := Settings{
		Python:           "python3",
		Dir:              repo,
		CkptDir:          "weights/Wan2.1-I2V-14B-480P",
		Wav2VecDir:       "/opt/weights/chinese-wav2vec2-base",
		DisableFlashAttn: true,
	}

	inv, err := Build(settings, BuiltinProfiles()[ProfileStandard].Params)
	require.NoError(t, err)

	assert.Equal(t, "python3", inv.Binary)
	assert.Equal(t, repo, inv.Dir)
	assert.Equal(t, []string{"WAN_DISABLE_FLASH_ATTN=1"}, inv.Env)

	want := []string{
		filepath.Join(repo, "generate_multitalk.py"),
		"--ckpt_dir", filepath.Join(repo, "weights/Wan2.1-I2V-14B-480P"),
		"--wav2vec_dir", "/opt/weights/chinese-wav2vec2-base",
		"--input_json", filepath.Join(repo, "examples/single_example_tts_1.json"),
		"--sample_steps", "40",
		"--mode", "streaming",
		"--num_persistent_param_in_dit", "7000000000",
		"--audio_mode", "tts",
		"--audio_save_dir", "save_audio/standard",
	}
	if diff := cmp.Diff(want, inv.Args); diff != "" {
		t.Errorf("Args mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_Defaults(t *testing.T) {
	inv, err := Build(Settings{CkptDir: "/ckpt", Wav2VecDir: "/w2v"}, BuiltinProfiles()[ProfileLowVRAM].Params)
	require.NoError(t, err)

	assert.Equal(t, DefaultPython, inv.Binary)
	assert.Equal(t, DefaultScript, inv.Args[0])
	assert.Empty(t, inv.Env, "flash attention stays enabled unless requested")
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name      string
		settings  Settings
		params    Params
		errSubstr string
	}{
		{
			name:      "invalid params",
			settings:  Settings{CkptDir: "/ckpt", Wav2VecDir: "/w2v"},
			params:    Params{},
			errSubstr: "invalid parameters",
		},
		{
			name:      "missing checkpoints",
			settings:  Settings{},
			params:    BuiltinProfiles()[ProfileStandard].Params,
			errSubstr: "ckpt_dir is required",
		},
		{
			name:      "missing wav2vec",
			settings:  Settings{CkptDir: "/ckpt"},
			params:    BuiltinProfiles()[ProfileStandard].Params,
			errSubstr: "wav2vec_dir is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.settings, tt.params)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestBuild_EnvIsSortedAndDeduplicated(t *testing.T) {
	inv, err := Build(Settings{
		CkptDir:          "/ckpt",
		Wav2VecDir:       "/w2v",
		DisableFlashAttn: true,
		ExtraEnv: map[string]string{
			"CUDA_VISIBLE_DEVICES":    "0",
			EnvDisableFlashAttn:       "0",
			"PYTORCH_CUDA_ALLOC_CONF": "expandable_segments:True",
		},
	}, BuiltinProfiles()[ProfileStandard].Params)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"WAN_DISABLE_FLASH_ATTN=1",
		"CUDA_VISIBLE_DEVICES=0",
		"PYTORCH_CUDA_ALLOC_CONF=expandable_segments:True",
	}, inv.Env)
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"/repo", "", ""},
		{"/repo", "/abs/x", "/abs/x"},
		{"/repo", "rel/x", "/repo/rel/x"},
		{"", "rel/x", "rel/x"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolvePath(tt.base, tt.path), "ResolvePath(%q, %q)", tt.base, tt.path)
	}
}

func TestInvocation_CommandString(t *testing.T) {
	inv := &Invocation{
		Binary: "python",
		Args:   []string{"generate_multitalk.py", "--input_json", "my input.json", "--mode", "streaming"},
		Env:    []string{"WAN_DISABLE_FLASH_ATTN=1"},
	}

	assert.Equal(t,
		"WAN_DISABLE_FLASH_ATTN=1 python generate_multitalk.py --input_json 'my input.json' --mode streaming",
		inv.CommandString())
	assert.Equal(t, "python", inv.Argv()[0])
	assert.Len(t, inv.Argv(), len(inv.Args)+1)
}
