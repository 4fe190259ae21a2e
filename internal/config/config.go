package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ory/viper"
)

const (
	// ShapeGeneralized tables are tiered by a [speed][pvs] side table.
	ShapeGeneralized = "generalized"
	// ShapeFixed tables carry their tier in the identifier suffix
	// (acpu_freq_tbl_slow, _nom, _fast).
	ShapeFixed = "fixed"

	LocatorRegex      = "regex"
	LocatorTreeSitter = "treesitter"

	// MaxSlots is the number of voltage slots a row carries.
	MaxSlots = 7

	// EnvPrefix prefixes environment overrides, e.g. ACPU2OPP_SHAPE.
	EnvPrefix = "ACPU2OPP"

	fixedRowLimit       = 12
	generalizedRowLimit = 20
)

// Config is the top-level configuration for acpu2opp
type Config struct {
	// Shape selects how tables are tiered: "generalized" or "fixed"
	Shape string `json:"shape,omitempty" mapstructure:"shape"`

	// Tiers maps tier designators to voltage slots (0..6). Designators match
	// exactly; keys read from a file are stored in the shape's case (upper
	// for generalized, lower for fixed). Decimal designators below 7 map to
	// themselves and need no entry.
	Tiers map[string]int `json:"tiers,omitempty" mapstructure:"tiers"`

	// MaxRows overrides the shape's row ceiling (0 = shape default)
	MaxRows int `json:"maxRows,omitempty" mapstructure:"maxrows"`

	// Locator selects the block locator: "regex" or "treesitter"
	Locator string `json:"locator,omitempty" mapstructure:"locator"`

	// Timing controls stage timing output
	Timing TimingConfig `json:"timing,omitempty" mapstructure:"timing"`

	// Policy controls the lint rules run on every extracted set
	Policy PolicyConfig `json:"policy,omitempty" mapstructure:"policy"`
}

// TimingConfig controls JSONL stage timing output
type TimingConfig struct {
	// Path is the JSONL file to write; empty disables timing
	Path string `json:"path,omitempty" mapstructure:"path"`
}

// PolicyConfig controls the OPA lint stage
type PolicyConfig struct {
	// Dir holds extra .rego files in package acpu2opp.lint
	Dir string `json:"dir,omitempty" mapstructure:"dir"`
	// Strict fails the run on any error or warning finding
	Strict bool `json:"strict,omitempty" mapstructure:"strict"`
}

// DefaultConfig returns the generalized-shape configuration
func DefaultConfig() *Config {
	return &Config{
		Shape:   ShapeGeneralized,
		Tiers:   DefaultTiers(ShapeGeneralized),
		Locator: LocatorRegex,
	}
}

// DefaultTiers returns the stock tier map for a shape
func DefaultTiers(shape string) map[string]int {
	if shape == ShapeFixed {
		return map[string]int{
			"slow": 0,
			"nom":  1,
			"fast": 2,
		}
	}
	return map[string]int{
		"PVS_SLOW":    0,
		"PVS_NOMINAL": 2,
		"PVS_FAST":    3,
		"PVS_FASTER":  4,
	}
}

// Load finds and loads the configuration file
// Search order:
//  1. ./acpu2opp.json (current working directory)
//  2. ./.acpu2opp.json (current working directory)
//  3. acpu2opp.json next to the input file (if different from cwd)
//  4. ~/.config/acpu2opp/config.json
//
// Environment overrides apply whether or not a file is found.
func Load(inputPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "acpu2opp.json"),
		filepath.Join(cwd, ".acpu2opp.json"),
	}

	if inputPath != "" {
		dir, _ := filepath.Abs(filepath.Dir(inputPath))
		if dir != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(dir, "acpu2opp.json"),
				filepath.Join(dir, ".acpu2opp.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "acpu2opp", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	// No config found, defaults plus environment
	return decode(newViper())
}

// LoadFile loads configuration from a specific file. Any format viper reads
// (json, yaml, toml) is accepted; the extension decides.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees environment values for keys viper already knows.
	v.SetDefault("shape", "")
	v.SetDefault("maxrows", 0)
	v.SetDefault("locator", "")
	v.SetDefault("timing.path", "")
	v.SetDefault("policy.dir", "")
	v.SetDefault("policy.strict", false)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.Shape == "" {
		c.Shape = ShapeGeneralized
	}
	c.Shape = strings.ToLower(c.Shape)

	if len(c.Tiers) == 0 {
		c.Tiers = DefaultTiers(c.Shape)
	} else {
		c.Tiers = canonicalTiers(c.Shape, c.Tiers)
	}

	if c.Locator == "" {
		c.Locator = LocatorRegex
	}
	c.Locator = strings.ToLower(c.Locator)
}

// canonicalTiers restores designator case after viper lowercases map keys.
// Side-table designators are C macros; table suffixes are lower case.
func canonicalTiers(shape string, tiers map[string]int) map[string]int {
	fold := strings.ToUpper
	if shape == ShapeFixed {
		fold = strings.ToLower
	}
	out := make(map[string]int, len(tiers))
	for name, slot := range tiers {
		out[fold(name)] = slot
	}
	return out
}

// Validate rejects unknown shapes, locators and out-of-range slots
func (c *Config) Validate() error {
	switch c.Shape {
	case ShapeGeneralized, ShapeFixed:
	default:
		return fmt.Errorf("unknown shape %q (want %s or %s)", c.Shape, ShapeGeneralized, ShapeFixed)
	}

	switch c.Locator {
	case LocatorRegex, LocatorTreeSitter:
	default:
		return fmt.Errorf("unknown locator %q (want %s or %s)", c.Locator, LocatorRegex, LocatorTreeSitter)
	}

	for name, slot := range c.Tiers {
		if slot < 0 || slot >= MaxSlots {
			return fmt.Errorf("tier %s: slot %d outside 0..%d", name, slot, MaxSlots-1)
		}
	}

	if c.MaxRows < 0 {
		return fmt.Errorf("maxRows must not be negative, got %d", c.MaxRows)
	}
	return nil
}

// RowLimit returns the row ceiling: MaxRows when set, else 12 for the fixed
// shape and 20 for the generalized one.
func (c *Config) RowLimit() int {
	if c.MaxRows > 0 {
		return c.MaxRows
	}
	if c.Shape == ShapeFixed {
		return fixedRowLimit
	}
	return generalizedRowLimit
}

// TierSlot resolves a designator to its voltage slot. ok is false for a
// designator outside the configured set.
func (c *Config) TierSlot(designator string) (slot int, ok bool) {
	if n, err := strconv.ParseUint(designator, 10, 8); err == nil {
		return int(n), n < MaxSlots
	}
	slot, ok = c.Tiers[designator]
	return slot, ok
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
