package generator

import (
	"fmt"
	"sort"
)

// Builtin profile names.
const (
	ProfileStandard = "standard"
	ProfileLowVRAM  = "lowvram"
)

// Profile is a named preset of generation parameters.
type Profile struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Params      Params `json:"params" yaml:"params"`
}

// BuiltinProfiles returns the two stock invocation presets.
// A fresh map is returned on every call so callers may modify it.
func BuiltinProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileStandard: {
			Name:        ProfileStandard,
			Description: "Single speaker, full sampling, weights kept resident on the GPU",
			Params: Params{
				InputJSON:               "examples/single_example_tts_1.json",
				SampleSteps:             40,
				Mode:                    ModeStreaming,
				NumPersistentParamInDiT: 7000000000,
				AudioMode:               AudioModeTTS,
				AudioSaveDir:            "save_audio/standard",
			},
		},
		ProfileLowVRAM: {
			Name:        ProfileLowVRAM,
			Description: "Multi speaker, reduced sampling, all DiT weights offloaded",
			Params: Params{
				InputJSON:               "examples/multitalk_example_tts_1.json",
				SampleSteps:             8,
				Mode:                    ModeStreaming,
				NumPersistentParamInDiT: 0,
				AudioMode:               AudioModeTTS,
				AudioSaveDir:            "save_audio/lowvram",
			},
		},
	}
}

// ProfileSet is a lookup table of profiles by name.
type ProfileSet map[string]Profile

// Get returns the named profile or an error listing the known names.
func (s ProfileSet) Get(name string) (Profile, error) {
	p, ok := s[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %v)", name, s.Names())
	}
	return p, nil
}

// Names returns the profile names in sorted order.
func (s ProfileSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sorted returns the profiles ordered by name.
func (s ProfileSet) Sorted() []Profile {
	out := make([]Profile, 0, len(s))
	for _, name := range s.Names() {
		out = append(out, s[name])
	}
	return out
}
