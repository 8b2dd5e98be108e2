package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/naoina/toml"
)

// Config is the top-level configuration for hdlgen
type Config struct {
	// Output controls where generated Verilog is written
	Output OutputConfig `json:"output,omitempty"`

	// Designs lists the registered designs to build; empty means all of them
	Designs []string `json:"designs,omitempty"`

	// Vendor lists vendor IP descriptor files
	Vendor VendorConfig `json:"vendor,omitempty"`

	// Policy contains design-rule configuration
	Policy PolicyConfig `json:"policy,omitempty"`

	// Build contains build options
	Build BuildConfig `json:"build,omitempty"`

	// Timing enables the JSONL phase timing log
	Timing bool `json:"timing,omitempty"`
}

// OutputConfig controls generated output
type OutputConfig struct {
	// Dir is the output directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty"`

	// Split writes one file per module instead of one file per design
	Split bool `json:"split,omitempty"`
}

// VendorConfig lists vendor IP descriptors
type VendorConfig struct {
	// Descriptors is a list of glob patterns for descriptor JSON files
	Descriptors []string `json:"descriptors,omitempty"`

	// Exclude is a list of glob patterns to exclude
	Exclude []string `json:"exclude,omitempty"`
}

// PolicyConfig contains design-rule configuration
type PolicyConfig struct {
	// Dir is an optional directory of extra .rego files
	Dir string `json:"dir,omitempty"`

	// Rules maps rule names to severity: "off", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`
}

// CacheConfig controls the output cache
type CacheConfig struct {
	// Enabled skips rewriting outputs whose content hash is unchanged
	Enabled *bool `json:"enabled,omitempty"`

	// Dir is the cache directory (relative to project root if not absolute)
	Dir string `json:"dir,omitempty"`
}

// BuildConfig contains build options
type BuildConfig struct {
	// MaxParallel limits concurrent design builds (0 = auto)
	MaxParallel int `json:"maxParallel,omitempty"`

	// Cache controls the output cache
	Cache CacheConfig `json:"cache,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{
			Dir: "build",
		},
		Designs: []string{},
		Vendor: VendorConfig{
			Descriptors: []string{"vendor/*.json", "vendor/**/*.json"},
			Exclude:     []string{},
		},
		Policy: PolicyConfig{
			Rules: map[string]string{},
		},
		Build: BuildConfig{
			MaxParallel: 0, // auto
			Cache: CacheConfig{
				Enabled: boolPtr(true),
				Dir:     ".hdlgen_cache",
			},
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// These settings make TOML keys the Go field names.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Load finds and loads the configuration file
// Search order:
//  1. ./hdlgen.json, ./.hdlgen.json, ./hdlgen.toml (current working directory)
//  2. the same names under <rootPath> (if different from cwd)
//  3. ~/.config/hdlgen/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	names := []string{"hdlgen.json", ".hdlgen.json", "hdlgen.toml"}
	var searchPaths []string
	for _, name := range names {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range names {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "hdlgen", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file. Files ending in .toml are
// decoded as TOML; everything else as JSON.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = tomlSettings.NewDecoder(bufio.NewReader(bytes.NewReader(data))).Decode(&cfg)
		// Add file name to errors that have a line number.
		var lineErr *toml.LineError
		if errors.As(err, &lineErr) {
			err = errors.New(path + ", " + err.Error())
		}
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Output.Dir == "" {
		c.Output.Dir = "build"
	}
	if c.Vendor.Descriptors == nil {
		c.Vendor.Descriptors = []string{"vendor/*.json", "vendor/**/*.json"}
	}
	if c.Policy.Rules == nil {
		c.Policy.Rules = make(map[string]string)
	}
	if c.Build.Cache.Dir == "" {
		c.Build.Cache.Dir = ".hdlgen_cache"
	}
	if c.Build.Cache.Enabled == nil {
		c.Build.Cache.Enabled = boolPtr(true)
	}
}

// Save writes the configuration to a file, as TOML when the name ends in .toml
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err = tomlSettings.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CacheEnabled reports whether the output cache is on
func (c *Config) CacheEnabled() bool {
	return c.Build.Cache.Enabled == nil || *c.Build.Cache.Enabled
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Policy.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Policy.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}

// WantsDesign reports whether a registered design should be built
func (c *Config) WantsDesign(name string) bool {
	if len(c.Designs) == 0 {
		return true
	}
	for _, d := range c.Designs {
		if d == name {
			return true
		}
	}
	return false
}
