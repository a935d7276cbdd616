package model

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/milosgajdos/go-slam/pose"
)

// ObservationDim is the dimension of range-bearing vector coordinates.
const ObservationDim = 2

// RangeBearing is a Gaussian observation model over landmark sightings
// parametrized as (range, bearing) relative to the observing pose. It
// implements slam.ObservationModel.
type RangeBearing struct {
	g *Gaussian
}

// NewRangeBearing creates a range-bearing observation model with the
// given mean relative position and covariance in (range, bearing)
// coordinates.
func NewRangeBearing(mean pose.Point, cov mat.Symmetric) (*RangeBearing, error) {
	g, err := NewGaussian([]float64{mean.Range(), mean.Bearing()}, cov)
	if err != nil {
		return nil, err
	}
	return &RangeBearing{g: g}, nil
}

// Dim returns the dimension of the model's vector coordinates.
func (m *RangeBearing) Dim() int {
	return ObservationDim
}

// Mean returns the mean relative feature position.
func (m *RangeBearing) Mean() pose.Point {
	return m.FromVector(m.g.MeanVec())
}

// CholCov returns the lower Cholesky factor of the covariance.
func (m *RangeBearing) CholCov() *mat.TriDense {
	return m.g.CholCov()
}

// Sample draws a relative feature position.
func (m *RangeBearing) Sample(rng *rand.Rand) pose.Point {
	v := m.g.Rand(rng)
	return m.FromVector(mat.NewVecDense(ObservationDim, v))
}

// LogLikelihood returns the log density of the relative position pt.
// The bearing residual is wrapped before evaluation.
func (m *RangeBearing) LogLikelihood(pt pose.Point) float64 {
	mean := m.g.mean
	r := m.Subtract(m.ToVector(pt), mat.NewVecDense(ObservationDim, mean))
	return m.g.LogProb([]float64{
		mean[0] + r.AtVec(0),
		mean[1] + r.AtVec(1),
	})
}

// ToVector maps a relative position into (range, bearing) coordinates.
func (m *RangeBearing) ToVector(pt pose.Point) *mat.VecDense {
	return mat.NewVecDense(ObservationDim, []float64{pt.Range(), pt.Bearing()})
}

// FromVector maps (range, bearing) coordinates to a relative position.
func (m *RangeBearing) FromVector(v mat.Vector) pose.Point {
	r := v.AtVec(0)
	sin, cos := math.Sincos(v.AtVec(1))
	return pose.Point{X: r * cos, Y: r * sin}
}

// Subtract returns a - b with the bearing component wrapped.
func (m *RangeBearing) Subtract(a, b mat.Vector) *mat.VecDense {
	return mat.NewVecDense(ObservationDim, []float64{
		a.AtVec(0) - b.AtVec(0),
		pose.WrapAngle(a.AtVec(1) - b.AtVec(1)),
	})
}
