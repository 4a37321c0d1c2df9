package generator

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// EnvDisableFlashAttn turns off flash attention inside the wrapped tool.
const EnvDisableFlashAttn = "WAN_DISABLE_FLASH_ATTN"

// Defaults for Settings fields left empty.
const (
	DefaultPython = "python"
	DefaultScript = "generate_multitalk.py"
)

// Settings describes the host side of an invocation: where the generator
// lives and which model weights it loads.
type Settings struct {
	// Python is the interpreter used to run Script.
	Python string
	// Dir is the generator checkout. The process runs here and relative
	// paths are resolved against it.
	Dir string
	// Script is the generator entrypoint, relative to Dir unless absolute.
	Script string
	// CkptDir holds the video model checkpoint.
	CkptDir string
	// Wav2VecDir holds the audio encoder checkpoint.
	Wav2VecDir string
	// DisableFlashAttn sets WAN_DISABLE_FLASH_ATTN=1 for the child process.
	DisableFlashAttn bool
	// ExtraEnv is appended to the child environment.
	ExtraEnv map[string]string
}

// Invocation is a fully resolved process launch.
type Invocation struct {
	Binary string
	Args   []string
	Dir    string
	// Env holds KEY=VALUE pairs added on top of the parent environment.
	Env []string
}

// Build resolves settings and params into an Invocation.
func Build(s Settings, p Params) (*Invocation, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	var errs []error
	if s.CkptDir == "" {
		errs = append(errs, errors.New("ckpt_dir is required"))
	}
	if s.Wav2VecDir == "" {
		errs = append(errs, errors.New("wav2vec_dir is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	python := s.Python
	if python == "" {
		python = DefaultPython
	}
	script := s.Script
	if script == "" {
		script = DefaultScript
	}

	dir := s.Dir
	if dir != "" {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}

	p.InputJSON = ResolvePath(dir, p.InputJSON)

	args := []string{
		ResolvePath(dir, script),
		FlagCkptDir, ResolvePath(dir, s.CkptDir),
		FlagWav2VecDir, ResolvePath(dir, s.Wav2VecDir),
	}
	args = append(args, p.Args()...)

	return &Invocation{
		Binary: python,
		Args:   args,
		Dir:    dir,
		Env:    buildEnv(s),
	}, nil
}

// buildEnv returns the child environment additions in a stable order.
func buildEnv(s Settings) []string {
	var env []string
	if s.DisableFlashAttn {
		env = append(env, EnvDisableFlashAttn+"=1")
	}

	keys := make([]string, 0, len(s.ExtraEnv))
	for k := range s.ExtraEnv {
		if k == EnvDisableFlashAttn && s.DisableFlashAttn {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+s.ExtraEnv[k])
	}
	return env
}

// ResolvePath returns path unchanged when it is empty or absolute, and
// joined onto base otherwise.
func ResolvePath(base, path string) string {
	if path == "" || filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}

// Argv returns the binary followed by its arguments.
func (inv *Invocation) Argv() []string {
	return append([]string{inv.Binary}, inv.Args...)
}

// CommandString renders the invocation as a copy-pasteable shell line,
// environment assignments first.
func (inv *Invocation) CommandString() string {
	parts := make([]string, 0, len(inv.Env)+len(inv.Args)+1)
	for _, kv := range inv.Env {
		parts = append(parts, shellQuote(kv))
	}
	for _, a := range inv.Argv() {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`!*?[]{}()<>|&;#~") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
