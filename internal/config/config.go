// Package config holds the bundler options and loads them from a
// spackle.config.json file. The file is JSONC: comments and trailing
// commas are tolerated, the same way tsconfig readers treat their input.
package config

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
)

// ModuleType selects the output framing.
type ModuleType uint8

const (
	// ModuleES emits a bare ES module program.
	ModuleES ModuleType = iota
	// ModuleIIFE wraps the output in an immediately invoked function with
	// external imports threaded through the parameter list.
	ModuleIIFE
)

func (t ModuleType) String() string {
	if t == ModuleIIFE {
		return "iife"
	}
	return "es"
}

// Config is the full bundler configuration.
type Config struct {
	// Require enables CommonJS require() detection in the analyzer.
	Require bool

	// DisableInliner keeps the synthesized link and alias temporaries.
	// Mainly a testing aid: with inlining on it is hard to see what the
	// chunker actually wired.
	DisableInliner bool

	// ExternalModules are specifiers that are never resolved or followed;
	// they stay imports at the bundle boundary.
	ExternalModules []string

	// Module is the output framing.
	Module ModuleType

	// Entries maps bundle names to entry paths.
	Entries map[string]string

	// LibModules maps shared-library names to module paths that are split
	// into their own lazily loadable bundles.
	LibModules map[string]string

	// OutDir is where the CLI writes bundles.
	OutDir string

	// Watch makes the CLI rebuild on file changes.
	Watch bool

	// LogLevel is a logrus level name.
	LogLevel string
}

// IsExternal reports whether specifier is configured as external.
func (c *Config) IsExternal(specifier string) bool {
	for _, ext := range c.ExternalModules {
		if ext == specifier {
			return true
		}
	}
	return false
}

// fileConfig is the on-disk shape.
type fileConfig struct {
	Require        bool              `json:"require"`
	DisableInliner bool              `json:"disableInliner"`
	External       []string          `json:"external"`
	Module         string            `json:"module"`
	Entries        map[string]string `json:"entries"`
	Libs           map[string]string `json:"libs"`
	OutDir         string            `json:"outDir"`
	LogLevel       string            `json:"logLevel"`
}

// Load reads a JSONC config file.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	var fc fileConfig
	if err := json.Unmarshal(jsonc.ToJSON(data), &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config %q: %w", path, err)
	}

	cfg := &Config{
		Require:         fc.Require,
		DisableInliner:  fc.DisableInliner,
		ExternalModules: fc.External,
		Entries:         fc.Entries,
		LibModules:      fc.Libs,
		OutDir:          fc.OutDir,
		LogLevel:        fc.LogLevel,
	}
	switch fc.Module {
	case "", "es":
		cfg.Module = ModuleES
	case "iife":
		cfg.Module = ModuleIIFE
	default:
		return nil, fmt.Errorf("config %q: unknown module type %q", path, fc.Module)
	}
	return cfg, nil
}
