package model

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/milosgajdos/go-slam/pose"
)

// ControlDim is the dimension of odometry vector coordinates.
const ControlDim = 3

// Odometry is a Gaussian control model over planar pose increments
// parametrized as (dx, dy, dheading) in the frame of the previous
// pose. It implements slam.ControlModel.
type Odometry struct {
	g *Gaussian
}

// NewOdometry creates an odometry control model with the given mean
// increment and covariance in (dx, dy, dheading) coordinates.
func NewOdometry(mean pose.Pose, cov mat.Symmetric) (*Odometry, error) {
	g, err := NewGaussian([]float64{mean.X, mean.Y, mean.Heading}, cov)
	if err != nil {
		return nil, err
	}
	return &Odometry{g: g}, nil
}

// Dim returns the dimension of the model's vector coordinates.
func (o *Odometry) Dim() int {
	return ControlDim
}

// Mean returns the mean state increment.
func (o *Odometry) Mean() pose.Pose {
	return pose.FromVector(o.g.MeanVec())
}

// CholCov returns the lower Cholesky factor of the covariance.
func (o *Odometry) CholCov() *mat.TriDense {
	return o.g.CholCov()
}

// Sample draws a state increment.
func (o *Odometry) Sample(rng *rand.Rand) pose.Pose {
	v := o.g.Rand(rng)
	return pose.Pose{X: v[0], Y: v[1], Heading: pose.WrapAngle(v[2])}
}

// LogLikelihood returns the log density of the increment p. The
// heading residual is wrapped before evaluation.
func (o *Odometry) LogLikelihood(p pose.Pose) float64 {
	mean := o.g.mean
	r := o.Subtract(o.ToVector(p), mat.NewVecDense(ControlDim, mean))
	return o.g.LogProb([]float64{
		mean[0] + r.AtVec(0),
		mean[1] + r.AtVec(1),
		mean[2] + r.AtVec(2),
	})
}

// ToVector maps a state increment into (dx, dy, dheading) coordinates.
func (o *Odometry) ToVector(p pose.Pose) *mat.VecDense {
	return p.Vector()
}

// FromVector maps (dx, dy, dheading) coordinates to a state increment.
func (o *Odometry) FromVector(v mat.Vector) pose.Pose {
	return pose.FromVector(v)
}

// Subtract returns a - b with the heading component wrapped.
func (o *Odometry) Subtract(a, b mat.Vector) *mat.VecDense {
	return mat.NewVecDense(ControlDim, []float64{
		a.AtVec(0) - b.AtVec(0),
		a.AtVec(1) - b.AtVec(1),
		pose.WrapAngle(a.AtVec(2) - b.AtVec(2)),
	})
}
