package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/talkgen/internal/job"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// pathFlags are flags whose values are paths relative to the CWD.
var pathFlags = map[string]string{
	"generator-dir": "generator_dir",
	"ckpt-dir":      "ckpt_dir",
	"wav2vec-dir":   "wav2vec_dir",
	"avatar-dir":    "avatar_dir",
	"state":         "state_path",
}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigUpward searches upward from startDir for a talkgen config file.
func findConfigUpward(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"python":                   "python",
		"generator_dir":            DefaultGeneratorDir,
		"script":                   "generate_multitalk.py",
		"ckpt_dir":                 DefaultCkptDir,
		"wav2vec_dir":              DefaultWav2VecDir,
		"kokoro_dir":               DefaultKokoroDir,
		"tts_voice":                DefaultTTSVoice,
		"avatar_dir":               DefaultAvatarDir,
		"disable_flash_attn":       true,
		"timeout":                  "0s",
		"profile":                  DefaultProfile,
		"state_path":               DefaultStateFile,
		"runs_dir":                 DefaultRunsDir,
		"verbose":                  false,
		"output":                   DefaultOutput,
		"seconds_per_video_second": job.DefaultSecondsPerVideoSecond,
		"job": map[string]interface{}{
			"sample_steps":                DefaultJobSteps,
			"mode":                        "streaming",
			"num_persistent_param_in_dit": 0,
		},
	}
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")
	configFileUsed = ""

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file: explicit path, else search upward from the CWD
	projectRoot := cwd
	if cfgFile != "" {
		configFileUsed = cfgFile
	} else {
		configFileUsed = findConfigUpward(cwd)
	}
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			projectRoot = filepath.Dir(abs)
		}
	}

	// 3. Environment variables (TALKGEN_ prefix, "__" for nesting)
	// Transform: TALKGEN_PROFILES__LOWVRAM__SAMPLE_STEPS -> profiles.lowvram.sample_steps
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority, only those explicitly set)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			if key, ok := pathFlags[f.Name]; ok {
				// Paths given on the command line are relative to the CWD,
				// not to the project root.
				v := f.Value.String()
				if abs, err := filepath.Abs(v); err == nil && v != "" {
					v = abs
				}
				return key, v
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
			WeaklyTypedInput: true,
			Result:           &cfg,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve paths. The generator dir and operator-facing paths are
	// anchored at the project root; weights stay relative to the generator
	// checkout, which is how the generator itself resolves them.
	cfg.ProjectRoot = projectRoot
	cfg.GeneratorDir = resolvePathRelativeTo(expandEnvVars(cfg.GeneratorDir), projectRoot)
	cfg.AvatarDir = resolvePathRelativeTo(expandEnvVars(cfg.AvatarDir), projectRoot)
	cfg.StatePath = resolvePathRelativeTo(expandEnvVars(cfg.StatePath), projectRoot)
	cfg.CkptDir = expandEnvVars(cfg.CkptDir)
	cfg.Wav2VecDir = expandEnvVars(cfg.Wav2VecDir)
	cfg.KokoroDir = expandEnvVars(cfg.KokoroDir)
	cfg.TTSVoice = expandEnvVars(cfg.TTSVoice)
	cfg.RunsDir = expandEnvVars(cfg.RunsDir)
	cfg.Python = expandEnvVars(cfg.Python)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

// envKeyChild is the map whose keys are environment variable names for
// the generator. Those names are case-sensitive and are kept as written.
const envKeyChild = "env__"

// envKey maps a TALKGEN_ variable name to a koanf key path.
func envKey(s string) string {
	key := strings.TrimPrefix(s, EnvPrefix)
	if len(key) > len(envKeyChild) && strings.EqualFold(key[:len(envKeyChild)], envKeyChild) {
		return "env." + key[len(envKeyChild):]
	}
	return strings.ReplaceAll(strings.ToLower(key), "__", ".")
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// envVarPattern matches ${VAR}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unknown variables are left as written.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val, ok := os.LookupEnv(match[2 : len(match)-1]); ok {
			return val
		}
		return match
	})
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
func GetCurrentConfig() *Config {
	return currentConfig
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	return slog.New(slog.DiscardHandler)
}
