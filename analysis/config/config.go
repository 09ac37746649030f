// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"

	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the heap domain and of the tools driving it.
// If some field is not defined in the config file, it will be its default value (see NewDefault).
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options `yaml:",inline"`

	sourceFile string

	// ScenarioDirs lists directories searched for scenario files given with a relative path
	ScenarioDirs []string `yaml:"scenario-dirs"`
}

// Options are the knobs of the heap segment. Options are shared by all the heap segments derived from the same
// initial segment.
type Options struct {
	// PrimeConnectors enables the creation of prime connectors before the heap is partitioned. Without prime
	// connectors, folding regions loses all relational information between a pointer and its target.
	PrimeConnectors bool `yaml:"prime-connectors"`

	// TransitiveConnectors enables the creation and application of transitive connectors (composition of two
	// connectors). This is experimental; compositions of more than one hop are not supported.
	TransitiveConnectors bool `yaml:"transitive-connectors"`

	// CheckInvariants makes every heap transformation check the region table bijection and the sanity of the
	// connectors. This is expensive and only meant for debugging.
	CheckInvariants bool `yaml:"check-invariants"`

	// StrictMalloc makes malloc calls whose size is not a constant unsupported. By default, such calls create a
	// region of unknown size.
	StrictMalloc bool `yaml:"strict-malloc"`

	// MaxRegions, if > 0, triggers a summarization of the heap after each allocation that makes the number of
	// heap regions exceed it.
	MaxRegions int `yaml:"max-regions"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns a default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:   "",
		ScenarioDirs: []string{},
		Options: Options{
			PrimeConnectors:      true,
			TransitiveConnectors: false,
			CheckInvariants:      false,
			StrictMalloc:         false,
			MaxRegions:           DefaultMaxRegions,
			LogLevel:             int(InfoLevel),
			SilenceWarn:          false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("could not load config file %s: %w", filename, err)
	}
	cfg.sourceFile = filename
	return cfg, nil
}

// Parse reads a configuration from the contents of a yaml file
func Parse(b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config: %w", err)
	}

	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if cfg.LogLevel == 0 {
		cfg.LogLevel = int(InfoLevel)
	}

	if cfg.LogLevel < int(ErrLevel) || cfg.LogLevel > int(TraceLevel) {
		return nil, fmt.Errorf("log-level %d is not between %d and %d", cfg.LogLevel, ErrLevel, TraceLevel)
	}

	if cfg.MaxRegions < 0 {
		cfg.MaxRegions = DefaultMaxRegions
	}

	return cfg, nil
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// FindScenario returns the path of the scenario file name: name itself if it exists, otherwise the first match in
// the scenario directories (relative to the config file).
func (c Config) FindScenario(name string) (string, error) {
	if _, err := os.Stat(name); err == nil || path.IsAbs(name) {
		return name, err
	}
	for _, dir := range c.ScenarioDirs {
		candidate := c.RelPath(path.Join(dir, name))
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("scenario %q not found in %v", name, c.ScenarioDirs)
}

// Verbose returns true is the configuration verbosity setting is larger than Info (i.e. Debug or Trace)
func (c Config) Verbose() bool {
	return c.LogLevel >= int(DebugLevel)
}

// ExceedsMaxRegions returns true if n heap regions exceed the configured limit.
// (if the configuration setting is <= 0, then this returns false)
func (o Options) ExceedsMaxRegions(n int) bool {
	if o.MaxRegions <= 0 {
		return false
	}
	return n > o.MaxRegions
}
