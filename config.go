package slam

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Config carries the options recognized by the core estimators. Zero
// values for the seed fields mean "not set"; use SeedOption to resolve
// them against a constructor-supplied fallback.
type Config struct {
	// NumParticles is the FastSLAM population size.
	NumParticles int `mapstructure:"num_particles"`
	// ResampleThreshold triggers resampling when the effective size
	// ratio falls below it.
	ResampleThreshold float64 `mapstructure:"resample_threshold"`
	// CollapseThreshold is the effective size ratio below which the
	// particle set is reported as collapsed.
	CollapseThreshold float64 `mapstructure:"collapse_threshold"`
	// NoHistory compacts the FastSLAM trajectory incrementally instead
	// of keeping per-particle linked lists.
	NoHistory bool `mapstructure:"no_history"`

	// UKFAlpha, UKFBeta and UKFKappa are the sigma point scaling
	// parameters.
	UKFAlpha float64 `mapstructure:"ukf_alpha"`
	UKFBeta  float64 `mapstructure:"ukf_beta"`
	UKFKappa float64 `mapstructure:"ukf_kappa"`

	// FastSLAMSeed and MCMCSLAMSeed are the estimator RNG seeds;
	// auto-chosen if absent.
	FastSLAMSeed *uint64 `mapstructure:"fastslam_seed"`
	MCMCSLAMSeed *uint64 `mapstructure:"mcmc_slam_seed"`

	// MCMCSteps is the number of MCMC iterations per simulation step.
	MCMCSteps int `mapstructure:"mcmc_steps"`
	// ControlEdgeImportance and ObservationEdgeImportance are the
	// degrees of freedom used in edge weights; zero means "use the
	// model dimension".
	ControlEdgeImportance     float64 `mapstructure:"control_edge_importance"`
	ObservationEdgeImportance float64 `mapstructure:"observation_edge_importance"`

	// GraphSteps and GraphEndSteps are the nonlinear solver iterations
	// per simulation step and at completion.
	GraphSteps    int `mapstructure:"g2o_steps"`
	GraphEndSteps int `mapstructure:"g2o_end_steps"`

	// source is the map the config was decoded from; resolved seeds
	// are written back into it for reproducibility logs.
	source map[string]any
}

// DefaultConfig returns a Config with the default option values.
func DefaultConfig() *Config {
	return &Config{
		NumParticles:      100,
		ResampleThreshold: 0.75,
		CollapseThreshold: 0.5,
		UKFAlpha:          0.002,
		UKFBeta:           2,
		UKFKappa:          0,
		MCMCSteps:         1,
		GraphSteps:        0,
		GraphEndSteps:     0,
	}
}

// NewConfig decodes the option map into a Config on top of the
// defaults. Unknown keys are an error.
func NewConfig(opts map[string]any) (*Config, error) {
	c := DefaultConfig()
	if opts == nil {
		opts = map[string]any{}
	}

	var meta mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           c,
		Metadata:         &meta,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build option decoder: %w", err)
	}
	if err := dec.Decode(opts); err != nil {
		return nil, fmt.Errorf("failed to decode options: %w", err)
	}
	if len(meta.Unused) > 0 {
		return nil, fmt.Errorf("unknown options: %v", meta.Unused)
	}

	c.source = opts
	return c, nil
}

// SeedOption resolves a seed option: a seed given in the option map is
// used verbatim; otherwise fallback is used and stored back into the
// map so the run can be reproduced from its logged options.
func (c *Config) SeedOption(key string, fallback uint64) uint64 {
	var p **uint64
	switch key {
	case "fastslam_seed":
		p = &c.FastSLAMSeed
	case "mcmc_slam_seed":
		p = &c.MCMCSLAMSeed
	default:
		panic(fmt.Sprintf("slam: unknown seed option %q", key))
	}

	if *p == nil {
		seed := fallback
		*p = &seed
		if c.source != nil {
			c.source[key] = seed
		}
	}
	return **p
}
