package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/talkgen/internal/generator"
)

var validOutputs = []string{"auto", "text", "markdown", "json"}

// Validate checks values that can be verified without touching the
// filesystem, so help and init work without a generator checkout.
func (c *Config) Validate() error {
	var errs []error
	if c.GeneratorDir == "" {
		errs = append(errs, errors.New("generator_dir is required"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.SecondsPerVideoSecond < 0 {
		errs = append(errs, fmt.Errorf("seconds_per_video_second must not be negative, got %g", c.SecondsPerVideoSecond))
	}
	if c.OutputFormat != "" && !contains(validOutputs, c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(validOutputs, "|"), c.OutputFormat))
	}
	for name, p := range c.Profiles {
		if p.SampleSteps < 0 {
			errs = append(errs, fmt.Errorf("profiles.%s.sample_steps must not be negative", name))
		}
		if p.NumPersistentParamInDiT != nil && *p.NumPersistentParamInDiT < 0 {
			errs = append(errs, fmt.Errorf("profiles.%s.num_persistent_param_in_dit must not be negative", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ValidateGeneratorDir checks that the generator checkout exists.
func (c *Config) ValidateGeneratorDir() error {
	script := generator.ResolvePath(c.GeneratorDir, c.scriptOrDefault())
	if _, err := os.Stat(script); os.IsNotExist(err) {
		return fmt.Errorf("generator script does not exist: %s\nHint: set generator_dir in %s or use --generator-dir", script, ConfigFileName)
	}
	return nil
}

func (c *Config) scriptOrDefault() string {
	if c.Script == "" {
		return generator.DefaultScript
	}
	return c.Script
}

// WeightPath resolves a weights path the same way the generator does.
func (c *Config) WeightPath(p string) string {
	return generator.ResolvePath(c.GeneratorDir, filepath.Clean(p))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
