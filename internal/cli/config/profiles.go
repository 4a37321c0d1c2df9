package config

import (
	"github.com/leapstack-labs/talkgen/internal/generator"
	"github.com/leapstack-labs/talkgen/internal/job"
)

// ProfileSet returns the builtin profiles with config entries merged in.
// An entry named after a builtin overrides it field by field; any other
// name defines a new profile on top of the standard preset.
func (c *Config) ProfileSet() generator.ProfileSet {
	set := generator.ProfileSet(generator.BuiltinProfiles())
	for name, pc := range c.Profiles {
		base, ok := set[name]
		if !ok {
			base = set[generator.ProfileStandard]
			base.Description = ""
		}
		base.Name = name
		set[name] = pc.apply(base)
	}
	return set
}

func (pc ProfileConfig) apply(p generator.Profile) generator.Profile {
	if pc.Description != "" {
		p.Description = pc.Description
	}
	p.Params = p.Params.Merge(generator.Params{
		InputJSON:    pc.InputJSON,
		SampleSteps:  pc.SampleSteps,
		Mode:         pc.Mode,
		AudioMode:    pc.AudioMode,
		AudioSaveDir: pc.AudioSaveDir,
		SaveFile:     pc.SaveFile,
	})
	// Pointer fields may legitimately be set to their zero value.
	if pc.NumPersistentParamInDiT != nil {
		p.Params.NumPersistentParamInDiT = *pc.NumPersistentParamInDiT
	}
	if pc.UseTeaCache != nil {
		p.Params.UseTeaCache = *pc.UseTeaCache
	}
	return p
}

// Settings returns the generator host settings.
func (c *Config) Settings() generator.Settings {
	return generator.Settings{
		Python:           c.Python,
		Dir:              c.GeneratorDir,
		Script:           c.Script,
		CkptDir:          c.CkptDir,
		Wav2VecDir:       c.Wav2VecDir,
		DisableFlashAttn: c.DisableFlashAttn,
		ExtraEnv:         c.Env,
	}
}

// JobConfig returns the launcher configuration for backend jobs.
func (c *Config) JobConfig() job.Config {
	return job.Config{
		Settings: c.Settings(),
		Base: generator.Params{
			SampleSteps:             c.Job.SampleSteps,
			Mode:                    c.Job.Mode,
			NumPersistentParamInDiT: c.Job.NumPersistentParamInDiT,
			AudioMode:               generator.AudioModeTTS,
		},
		AvatarDir:             c.AvatarDir,
		KokoroDir:             c.KokoroDir,
		TTSVoice:              c.TTSVoice,
		RunsDir:               c.RunsDir,
		SecondsPerVideoSecond: c.SecondsPerVideoSecond,
	}
}
