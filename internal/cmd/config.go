// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aibor/vmprobe/internal/introspect"
	"github.com/aibor/vmprobe/internal/probe"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout is the default time limit for a single QEMU invocation.
const DefaultTimeout = 30 * time.Second

// Duration wraps [time.Duration] for YAML unmarshaling from strings like
// "30s".
type Duration time.Duration

// UnmarshalYAML implements [yaml.Unmarshaler].
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string

	err := value.Decode(&s)
	if err != nil {
		return err
	}

	if s == "" {
		return nil
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalYAML implements [yaml.Marshaler].
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the [time.Duration] value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// IntrospectConfig configures the introspect probe.
type IntrospectConfig struct {
	// Machine type. The architecture's default machine if empty.
	Machine   string                `yaml:"machine"`
	Feature   *introspect.Feature   `yaml:"feature"`
	Scenarios []introspect.Scenario `yaml:"scenarios"`
}

// ValidateConfig configures the validate probe.
type ValidateConfig struct {
	Checks []probe.Check `yaml:"checks"`
}

// Config is the content of a vmprobe configuration file. Command line flags
// take precedence over it.
type Config struct {
	Executable   string           `yaml:"executable"`
	Timeout      Duration         `yaml:"timeout"`
	ExtraArgs    []string         `yaml:"extraArgs"`
	ObjectOption string           `yaml:"objectOption"`
	Introspect   IntrospectConfig `yaml:"introspect"`
	Validate     ValidateConfig   `yaml:"validate"`
}

// DefaultConfig returns the [Config] used without configuration file.
func DefaultConfig() Config {
	hpet := introspect.HPET()

	return Config{
		Timeout:      Duration(DefaultTimeout),
		ObjectOption: probe.DefaultOption,
		Introspect: IntrospectConfig{
			Feature:   &hpet,
			Scenarios: introspect.HPETScenarios(),
		},
		Validate: ValidateConfig{
			Checks: probe.HostNodesChecks(),
		},
	}
}

// DecodeConfig decodes the YAML configuration from the given reader on top
// of [DefaultConfig]. Unknown fields are rejected.
func DecodeConfig(reader io.Reader) (Config, error) {
	cfg := DefaultConfig()

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	err := decoder.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return cfg, err
	}

	return cfg, nil
}

// LoadConfig reads the configuration file at the given path. If path is
// empty, [DefaultConfig] is returned.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Path: path, Err: err}
	}

	cfg, err := DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Config{}, &ConfigError{Path: path, Err: err}
	}

	return cfg, nil
}
