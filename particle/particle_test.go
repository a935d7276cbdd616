package particle

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
)

type state struct {
	id int
}

func TestUpdateWeights(t *testing.T) {
	assert := assert.New(t)

	f := New(4, func(i int) state { return state{id: i} })
	f.Update(func(p *state) float64 {
		if p.id == 2 {
			return 3
		}
		return 1
	})

	assert.InDelta(0.25*3, f.Weight(2), 1e-12)
	assert.InDelta(0.25, f.Weight(0), 1e-12)
	assert.Equal(2, f.MaxWeightParticle().id)
}

func TestEffectiveSize(t *testing.T) {
	assert := assert.New(t)

	f := New(10, func(i int) state { return state{id: i} })
	// uniform weights: effective size equals the population size
	assert.InDelta(10.0, f.EffectiveSize(), 1e-9)

	// one dominant particle: effective size collapses towards 1
	f.Update(func(p *state) float64 {
		if p.id == 0 {
			return 1e12
		}
		return 1
	})
	assert.Less(f.EffectiveSize(), 1.001)
}

func TestResampleInvariants(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(5))
	f := New(8, func(i int) state { return state{id: i} })
	f.Update(func(p *state) float64 { return float64(p.id + 1) })

	f.Resample(rng, 8)

	assert.Equal(8, f.Len())
	for i := 0; i < f.Len(); i++ {
		assert.InDelta(1.0/8, f.Weight(i), 1e-12)
	}
	// heavier particles must be represented at least once
	counts := make(map[int]int)
	f.Each(func(p *state) { counts[p.id]++ })
	assert.Greater(counts[7], 0)
}

func TestResampleUniformIdempotent(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(17))
	f := New(16, func(i int) state { return state{id: i} })

	before := ids(f)
	f.Resample(rng, 16)
	after := ids(f)

	// systematic resampling on uniform weights keeps the population,
	// up to reordering
	sort.Ints(before)
	sort.Ints(after)
	assert.Equal(before, after)
}

func TestResampleGrowShrink(t *testing.T) {
	assert := assert.New(t)

	rng := rand.New(rand.NewSource(23))
	f := New(4, func(i int) state { return state{id: i} })

	f.Resample(rng, 10)
	assert.Equal(10, f.Len())
	for i := 0; i < f.Len(); i++ {
		assert.InDelta(0.1, f.Weight(i), 1e-12)
	}

	f.Resample(rng, 3)
	assert.Equal(3, f.Len())
}

func TestMaxWeightTieBreak(t *testing.T) {
	assert := assert.New(t)

	f := New(5, func(i int) state { return state{id: i} })
	// all weights equal: the first particle wins
	assert.Equal(0, f.MaxWeightParticle().id)
}

func ids(f *Filter[state]) []int {
	out := make([]int, 0, f.Len())
	f.Each(func(p *state) { out = append(out, p.id) })
	return out
}
