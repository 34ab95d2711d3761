package scenegen

import (
	"fmt"
	"os"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/mpetersen94/scene-generation/feasibility"
	"github.com/mpetersen94/scene-generation/grammar"
)

// Scene families this package can generate.
const (
	FamilyTableSetting    = "table_setting"
	FamilyDishBin         = "dish_bin"
	FamilyPlanarBinStacks = "planar_bin_stacks"
)

// Config controls dataset generation for one scene family.
type Config struct {
	// Family selects the scene grammar / sampler.
	Family string
	// Count is the number of accepted scenes to produce.
	Count int
	// OutputPath receives accepted scene records, appended.
	OutputPath string
	// ParamsPath, when set, is a checkpoint restored into the parameter
	// store before sampling.
	ParamsPath string
	// Project runs each planar candidate through the feasibility oracle
	// before the bounds check.
	Project bool
	Seed    uint64

	Expand grammar.ExpandConfig
	Oracle feasibility.Config

	// BoundsMin/BoundsMax is the acceptance box: scenes with any object
	// outside are rejected after projection. Planar poses are checked in
	// X and Y; spatial poses in all three coordinates.
	BoundsMin r3.Vector
	BoundsMax r3.Vector
}

// DefaultConfig returns generation settings for a family.
func DefaultConfig(family string) (Config, error) {
	cfg := Config{
		Family:  family,
		Count:   100,
		Project: true,
		Seed:    42,
		Expand:  grammar.DefaultExpandConfig(),
		Oracle:  feasibility.DefaultConfig(),
	}
	switch family {
	case FamilyTableSetting:
		cfg.OutputPath = "table_setting_environments_generated.yaml"
		cfg.BoundsMin = r3.Vector{X: -2, Y: -2}
		cfg.BoundsMax = r3.Vector{X: 2, Y: 2}
	case FamilyDishBin:
		cfg.OutputPath = "dish_bin_environments_generated.yaml"
		// Spatial sampling has no projection support; dishes are only
		// bounds checked.
		cfg.Project = false
		cfg.BoundsMin = r3.Vector{X: -2, Y: -2, Z: 0}
		cfg.BoundsMax = r3.Vector{X: 2, Y: 2, Z: 2}
	case FamilyPlanarBinStacks:
		cfg.OutputPath = "planar_bin_stacks_generated.yaml"
		// The stack sampler settles discs against the bin bounds itself;
		// scenes taller than the acceptance box reject rather than squash.
		cfg.Project = false
		cfg.BoundsMin = r3.Vector{X: -2, Y: 0}
		cfg.BoundsMax = r3.Vector{X: 2, Y: 2}
	default:
		return Config{}, fmt.Errorf("unknown scene family %q", family)
	}
	return cfg, nil
}

// LoadConfig reads a YAML config file over the family's defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parsing config file: %w", err)
	}
	family, _ := raw["family"].(string)
	cfg, err := DefaultConfig(family)
	if err != nil {
		return Config{}, err
	}
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
