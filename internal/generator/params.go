// Package generator builds and executes invocations of the external
// MultiTalk generation script.
//
// The package owns nothing about the generation itself. It turns a profile
// (the preset argument values) plus host settings (interpreter, checkpoint
// locations) into a process invocation, runs it, and reports how it ended.
package generator

import (
	"errors"
	"fmt"
	"strconv"
)

// Flag names understood by generate_multitalk.py.
const (
	FlagCkptDir                 = "--ckpt_dir"
	FlagWav2VecDir              = "--wav2vec_dir"
	FlagInputJSON               = "--input_json"
	FlagSampleSteps             = "--sample_steps"
	FlagMode                    = "--mode"
	FlagNumPersistentParamInDiT = "--num_persistent_param_in_dit"
	FlagAudioMode               = "--audio_mode"
	FlagAudioSaveDir            = "--audio_save_dir"
	FlagSaveFile                = "--save_file"
	FlagUseTeaCache             = "--use_teacache"
)

// Generation modes and audio sources accepted by the wrapped tool.
const (
	ModeStreaming = "streaming"
	ModeClip      = "clip"

	AudioModeTTS       = "tts"
	AudioModeLocalFile = "localfile"
)

// Params holds the per-invocation argument values.
type Params struct {
	InputJSON               string `json:"input_json" yaml:"input_json"`
	SampleSteps             int    `json:"sample_steps" yaml:"sample_steps"`
	Mode                    string `json:"mode" yaml:"mode"`
	NumPersistentParamInDiT int64  `json:"num_persistent_param_in_dit" yaml:"num_persistent_param_in_dit"`
	AudioMode               string `json:"audio_mode" yaml:"audio_mode"`
	AudioSaveDir            string `json:"audio_save_dir" yaml:"audio_save_dir"`
	SaveFile                string `json:"save_file,omitempty" yaml:"save_file,omitempty"`
	UseTeaCache             bool   `json:"use_teacache,omitempty" yaml:"use_teacache,omitempty"`
}

// Validate reports every missing or out-of-range value at once.
func (p Params) Validate() error {
	var errs []error
	if p.InputJSON == "" {
		errs = append(errs, errors.New("input_json is required"))
	}
	if p.SampleSteps <= 0 {
		errs = append(errs, fmt.Errorf("sample_steps must be positive, got %d", p.SampleSteps))
	}
	if p.Mode == "" {
		errs = append(errs, errors.New("mode is required"))
	}
	if p.NumPersistentParamInDiT < 0 {
		errs = append(errs, fmt.Errorf("num_persistent_param_in_dit must not be negative, got %d", p.NumPersistentParamInDiT))
	}
	if p.AudioMode == "" {
		errs = append(errs, errors.New("audio_mode is required"))
	}
	if p.AudioSaveDir == "" {
		errs = append(errs, errors.New("audio_save_dir is required"))
	}
	return errors.Join(errs...)
}

// Args returns the profile-dependent part of the argument list.
// The order is fixed; callers and tests rely on it.
func (p Params) Args() []string {
	args := []string{
		FlagInputJSON, p.InputJSON,
		FlagSampleSteps, strconv.Itoa(p.SampleSteps),
		FlagMode, p.Mode,
		FlagNumPersistentParamInDiT, strconv.FormatInt(p.NumPersistentParamInDiT, 10),
		FlagAudioMode, p.AudioMode,
		FlagAudioSaveDir, p.AudioSaveDir,
	}
	if p.SaveFile != "" {
		args = append(args, FlagSaveFile, p.SaveFile)
	}
	if p.UseTeaCache {
		args = append(args, FlagUseTeaCache)
	}
	return args
}

// Merge returns p with every non-zero field of override applied.
// UseTeaCache is only ever switched on by an override.
func (p Params) Merge(override Params) Params {
	if override.InputJSON != "" {
		p.InputJSON = override.InputJSON
	}
	if override.SampleSteps != 0 {
		p.SampleSteps = override.SampleSteps
	}
	if override.Mode != "" {
		p.Mode = override.Mode
	}
	if override.NumPersistentParamInDiT != 0 {
		p.NumPersistentParamInDiT = override.NumPersistentParamInDiT
	}
	if override.AudioMode != "" {
		p.AudioMode = override.AudioMode
	}
	if override.AudioSaveDir != "" {
		p.AudioSaveDir = override.AudioSaveDir
	}
	if override.SaveFile != "" {
		p.SaveFile = override.SaveFile
	}
	if override.UseTeaCache {
		p.UseTeaCache = true
	}
	return p
}
