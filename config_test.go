package slam

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	assert := assert.New(t)

	c, err := NewConfig(nil)
	assert.NoError(err)
	assert.Equal(100, c.NumParticles)
	assert.InDelta(0.75, c.ResampleThreshold, 1e-12)
	assert.InDelta(0.5, c.CollapseThreshold, 1e-12)
	assert.InDelta(0.002, c.UKFAlpha, 1e-12)
	assert.Equal(1, c.MCMCSteps)
	assert.False(c.NoHistory)
	assert.Nil(c.FastSLAMSeed)
}

func TestNewConfigDecode(t *testing.T) {
	assert := assert.New(t)

	c, err := NewConfig(map[string]any{
		"num_particles":               25,
		"resample_threshold":          0.6,
		"no_history":                  true,
		"mcmc_steps":                  7,
		"fastslam_seed":               99,
		"control_edge_importance":     3.0,
		"observation_edge_importance": 2.0,
		"g2o_steps":                   4,
	})
	assert.NoError(err)
	assert.Equal(25, c.NumParticles)
	assert.InDelta(0.6, c.ResampleThreshold, 1e-12)
	assert.True(c.NoHistory)
	assert.Equal(7, c.MCMCSteps)
	assert.Equal(uint64(99), *c.FastSLAMSeed)
	assert.InDelta(3.0, c.ControlEdgeImportance, 1e-12)
	assert.Equal(4, c.GraphSteps)
}

func TestNewConfigUnknownOption(t *testing.T) {
	assert := assert.New(t)

	_, err := NewConfig(map[string]any{"num_partciles": 10})
	assert.Error(err)
}

func TestSeedOption(t *testing.T) {
	assert := assert.New(t)

	// seed present in the options wins over the fallback
	opts := map[string]any{"fastslam_seed": 7}
	c, err := NewConfig(opts)
	assert.NoError(err)
	assert.Equal(uint64(7), c.SeedOption("fastslam_seed", 42))

	// absent seed: the fallback is used and written back
	opts = map[string]any{}
	c, err = NewConfig(opts)
	assert.NoError(err)
	assert.Equal(uint64(42), c.SeedOption("mcmc_slam_seed", 42))
	assert.Equal(uint64(42), opts["mcmc_slam_seed"])

	// subsequent calls return the remembered seed
	assert.Equal(uint64(42), c.SeedOption("mcmc_slam_seed", 13))
}
