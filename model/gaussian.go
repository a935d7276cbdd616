// Package model provides the concrete probabilistic models fed into
// the estimators: an odometry control model over planar pose
// increments and a range-bearing observation model over landmark
// sightings. Both wrap a multivariate Gaussian carried with its
// Cholesky factor.
package model

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// Gaussian is a multivariate normal over the model's vector
// coordinates.
type Gaussian struct {
	mean []float64
	ch   mat.Cholesky
}

// NewGaussian creates a Gaussian with the given mean and covariance.
// It returns error if the covariance is not positive definite.
func NewGaussian(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	if len(mean) != cov.SymmetricDim() {
		return nil, fmt.Errorf("mismatched dimensions: mean %d, cov %d", len(mean), cov.SymmetricDim())
	}

	g := &Gaussian{mean: append([]float64(nil), mean...)}
	if !g.ch.Factorize(cov) {
		return nil, fmt.Errorf("covariance is not positive definite")
	}

	return g, nil
}

// Dim returns the dimension of the Gaussian.
func (g *Gaussian) Dim() int {
	return len(g.mean)
}

// MeanVec returns the mean as a vector.
func (g *Gaussian) MeanVec() *mat.VecDense {
	return mat.NewVecDense(len(g.mean), append([]float64(nil), g.mean...))
}

// CholCov returns the lower-triangular Cholesky factor of the
// covariance.
func (g *Gaussian) CholCov() *mat.TriDense {
	l := mat.NewTriDense(len(g.mean), mat.Lower, nil)
	g.ch.LTo(l)
	return l
}

// Rand draws a sample in vector coordinates.
func (g *Gaussian) Rand(rng *rand.Rand) []float64 {
	return distmv.NormalRand(nil, g.mean, &g.ch, rng)
}

// LogProb returns the log density at x.
func (g *Gaussian) LogProb(x []float64) float64 {
	return distmv.NormalLogProb(x, g.mean, &g.ch)
}
