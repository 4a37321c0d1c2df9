package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/leapstack-labs/talkgen/internal/generator"
)

// Request is the backend's job description, read from the --data file.
type Request struct {
	SpeechText string         `json:"speech_text"`
	TTSAudio   map[string]any `json:"tts_audio,omitempty"`

	// Optional overrides of the generation parameters.
	SampleSteps             *int    `json:"sample_steps,omitempty"`
	Mode                    *string `json:"mode,omitempty"`
	NumPersistentParamInDiT *int64  `json:"num_persistent_param_in_dit,omitempty"`
	UseTeaCache             *bool   `json:"use_teacache,omitempty"`

	// VideoSeconds is the expected clip length, used only for the runtime
	// estimate.
	VideoSeconds float64 `json:"video_seconds,omitempty"`
}

// LoadRequest reads a Request from a JSON file.
func LoadRequest(path string) (*Request, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON from %s: %w", path, err)
	}
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to read JSON from %s: %w", path, err)
	}
	return &req, nil
}

// TeaCache reports whether TeaCache acceleration is requested (default on).
func (r *Request) TeaCache() bool {
	return r.UseTeaCache == nil || *r.UseTeaCache
}

// Params returns the generation parameters for this request on top of base.
func (r *Request) Params(base generator.Params) generator.Params {
	p := base
	if r.SampleSteps != nil {
		p.SampleSteps = *r.SampleSteps
	}
	if r.Mode != nil {
		p.Mode = *r.Mode
	}
	if r.NumPersistentParamInDiT != nil {
		p.NumPersistentParamInDiT = *r.NumPersistentParamInDiT
	}
	p.UseTeaCache = r.TeaCache()
	p.AudioMode = generator.AudioModeTTS
	return p
}

// Voice keys inside tts_audio.
const (
	keyText        = "text"
	keyHuman1Voice = "human1_voice"
	keyHuman2Voice = "human2_voice"
)

// BuildPayload produces the generator input document. It starts from the
// avatar template, points cond_image at the avatar image and fills tts_audio
// from the request. Relative voice paths are resolved against baseDir.
func BuildPayload(req *Request, baseDir, avatarJSON, avatarImage, defaultVoice string) (map[string]any, error) {
	if req.SpeechText == "" {
		return nil, errors.New("speech_text is required for multitalk TTS mode")
	}

	payload, err := loadJSONObject(avatarJSON)
	if err != nil {
		return nil, err
	}

	payload["cond_image"] = generator.ResolvePath(baseDir, avatarImage)
	if _, ok := payload["cond_audio"]; !ok {
		payload["cond_audio"] = map[string]any{}
	}

	tts := make(map[string]any, len(req.TTSAudio)+2)
	for k, v := range req.TTSAudio {
		tts[k] = v
	}
	tts[keyText] = req.SpeechText

	human1, err := stringField(tts, keyHuman1Voice)
	if err != nil {
		return nil, err
	}
	// null counts as absent.
	if v, ok := tts[keyHuman1Voice]; !ok || v == nil {
		human1 = defaultVoice
	}
	tts[keyHuman1Voice] = generator.ResolvePath(baseDir, human1)

	human2, err := stringField(tts, keyHuman2Voice)
	if err != nil {
		return nil, err
	}
	switch {
	case human2 != "":
		tts[keyHuman2Voice] = generator.ResolvePath(baseDir, human2)
	case tts[keyHuman2Voice] == nil:
		delete(tts, keyHuman2Voice)
	}

	payload["tts_audio"] = tts
	return payload, nil
}

func stringField(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("tts_audio.%s must be a string, got %T", key, v)
	}
	return s, nil
}

func loadJSONObject(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the configured avatar directory
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON from %s: %w", path, err)
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to read JSON from %s: %w", path, err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}
