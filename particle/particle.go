// Package particle implements a weighted particle population with the
// effective sample size diversity metric and systematic resampling.
package particle

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Filter is a weighted multiset of particles of type P. Particles are
// stored by value; cloning a particle during resampling copies the
// value, so any shared structure it points to (trajectory nodes,
// persistent maps) is shared between clones.
type Filter[P any] struct {
	particles []P
	weights   []float64
}

// New creates a filter of n particles built by init, all with weight
// 1/n.
func New[P any](n int, init func(i int) P) *Filter[P] {
	f := &Filter[P]{
		particles: make([]P, n),
		weights:   make([]float64, n),
	}
	for i := range f.particles {
		f.particles[i] = init(i)
		f.weights[i] = 1 / float64(n)
	}
	return f
}

// Len returns the population size.
func (f *Filter[P]) Len() int {
	return len(f.particles)
}

// At returns a pointer to the i-th particle.
func (f *Filter[P]) At(i int) *P {
	return &f.particles[i]
}

// Weight returns the weight of the i-th particle.
func (f *Filter[P]) Weight(i int) float64 {
	return f.weights[i]
}

// TotalWeight returns the sum of all weights.
func (f *Filter[P]) TotalWeight() float64 {
	return floats.Sum(f.weights)
}

// Each visits every particle in insertion order.
func (f *Filter[P]) Each(visit func(p *P)) {
	for i := range f.particles {
		visit(&f.particles[i])
	}
}

// Update applies step to each particle and multiplies its weight by
// the returned factor.
func (f *Filter[P]) Update(step func(p *P) float64) {
	for i := range f.particles {
		f.weights[i] *= step(&f.particles[i])
	}
}

// EffectiveSize returns the effective sample size
// (sum w)^2 / sum w^2, a proxy for particle diversity.
func (f *Filter[P]) EffectiveSize() float64 {
	var sum, sumSq float64
	for _, w := range f.weights {
		sum += w
		sumSq += w * w
	}
	if sumSq == 0 {
		return 0
	}
	return sum * sum / sumSq
}

// Resample replaces the population with n particles drawn by
// systematic resampling: a single uniform offset u in [0, 1/n) selects
// the particles at cumulative weights (u + i/n) * sum(w). All weights
// are reset to 1/n.
func (f *Filter[P]) Resample(rng *rand.Rand, n int) {
	total := f.TotalWeight()
	u := rng.Float64() / float64(n)

	next := make([]P, 0, n)
	cum := 0.0
	j := 0
	for i := 0; i < n; i++ {
		target := (u + float64(i)/float64(n)) * total
		for j < len(f.particles)-1 && cum+f.weights[j] <= target {
			cum += f.weights[j]
			j++
		}
		next = append(next, f.particles[j])
	}

	f.particles = next
	f.weights = make([]float64, n)
	for i := range f.weights {
		f.weights[i] = 1 / float64(n)
	}
}

// MaxWeightParticle returns the particle with the largest weight, ties
// broken by insertion order.
func (f *Filter[P]) MaxWeightParticle() *P {
	best := 0
	for i := 1; i < len(f.weights); i++ {
		if f.weights[i] > f.weights[best] {
			best = i
		}
	}
	return &f.particles[best]
}

// Weights returns a vector containing the particle weights.
func (f *Filter[P]) Weights() mat.Vector {
	data := make([]float64, len(f.weights))
	copy(data, f.weights)
	return mat.NewVecDense(len(data), data)
}
