// Package config provides configuration management for the talkgen CLI.
//
// Configuration is layered: built-in defaults, then talkgen.yaml, then
// TALKGEN_* environment variables, then explicitly set command-line flags.
package config

import (
	"time"

	"github.com/leapstack-labs/talkgen/internal/generator"
)

// Config holds all CLI configuration options.
type Config struct {
	// ProjectRoot is where talkgen.yaml was found (or the working directory).
	// Relative paths below are resolved against it.
	ProjectRoot string `koanf:"-"`

	Python       string `koanf:"python"`
	GeneratorDir string `koanf:"generator_dir"`
	Script       string `koanf:"script"`

	CkptDir    string `koanf:"ckpt_dir"`
	Wav2VecDir string `koanf:"wav2vec_dir"`
	KokoroDir  string `koanf:"kokoro_dir"`
	TTSVoice   string `koanf:"tts_voice"`
	AvatarDir  string `koanf:"avatar_dir"`

	DisableFlashAttn bool              `koanf:"disable_flash_attn"`
	Env              map[string]string `koanf:"env"`
	Timeout          time.Duration     `koanf:"timeout"`

	Profile      string `koanf:"profile"`
	StatePath    string `koanf:"state_path"`
	RunsDir      string `koanf:"runs_dir"`
	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`

	SecondsPerVideoSecond float64 `koanf:"seconds_per_video_second"`

	// Job holds defaults for backend jobs.
	Job JobConfig `koanf:"job"`

	Profiles map[string]ProfileConfig `koanf:"profiles"`
}

// JobConfig holds the generation defaults for backend jobs.
type JobConfig struct {
	SampleSteps             int    `koanf:"sample_steps"`
	Mode                    string `koanf:"mode"`
	NumPersistentParamInDiT int64  `koanf:"num_persistent_param_in_dit"`
}

// ProfileConfig defines or overrides a generation profile. Fields left
// empty inherit from the builtin profile of the same name.
type ProfileConfig struct {
	Description             string `koanf:"description"`
	InputJSON               string `koanf:"input_json"`
	SampleSteps             int    `koanf:"sample_steps"`
	Mode                    string `koanf:"mode"`
	NumPersistentParamInDiT *int64 `koanf:"num_persistent_param_in_dit"`
	AudioMode               string `koanf:"audio_mode"`
	AudioSaveDir            string `koanf:"audio_save_dir"`
	SaveFile                string `koanf:"save_file"`
	UseTeaCache             *bool  `koanf:"use_teacache"`
}

// Default configuration values.
const (
	ConfigFileName    = "talkgen.yaml"
	ConfigFileNameAlt = "talkgen.yml"
	EnvPrefix         = "TALKGEN_"

	DefaultGeneratorDir = "."
	DefaultCkptDir      = "weights/Wan2.1-I2V-14B-480P"
	DefaultWav2VecDir   = "weights/chinese-wav2vec2-base"
	DefaultKokoroDir    = "weights/Kokoro-82M"
	DefaultTTSVoice     = "weights/Kokoro-82M/voices/af_heart.pt"
	DefaultAvatarDir    = "avatars/sales_executive"
	DefaultStateFile    = ".talkgen/state.db"
	DefaultRunsDir      = "backend_runs"
	DefaultProfile      = generator.ProfileStandard
	DefaultOutput       = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultJobSteps     = 30
)
