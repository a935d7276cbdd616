package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/milosgajdos/go-slam/pose"
)

func TestNewGaussian(t *testing.T) {
	assert := assert.New(t)

	g, err := NewGaussian([]float64{1, 2}, mat.NewSymDense(2, []float64{1, 0.1, 0.1, 1}))
	assert.NotNil(g)
	assert.NoError(err)

	_, err = NewGaussian([]float64{1}, mat.NewSymDense(2, []float64{1, 0, 0, 1}))
	assert.Error(err)

	_, err = NewGaussian([]float64{1, 2}, mat.NewSymDense(2, []float64{1, 2, 2, 1}))
	assert.Error(err)
}

func TestOdometry(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(3, []float64{1e-2, 0, 0, 0, 1e-2, 0, 0, 0, 1e-3})
	u, err := NewOdometry(pose.Pose{X: 1, Heading: 0.1}, cov)
	assert.NoError(err)

	assert.Equal(3, u.Dim())
	assert.InDelta(1.0, u.Mean().X, 1e-12)
	assert.InDelta(0.1, u.Mean().Heading, 1e-12)

	// the mean maximizes the likelihood
	llMean := u.LogLikelihood(u.Mean())
	llOff := u.LogLikelihood(pose.Pose{X: 1.1, Heading: 0.1})
	assert.Greater(llMean, llOff)

	// heading residuals wrap: an increment near -pi is as likely as
	// one near +pi for a model centered at pi
	v, err := NewOdometry(pose.Pose{Heading: math.Pi}, cov)
	assert.NoError(err)
	a := v.LogLikelihood(pose.Pose{Heading: math.Pi - 0.01})
	b := v.LogLikelihood(pose.Pose{Heading: -math.Pi + 0.01})
	assert.InDelta(a, b, 1e-9)

	sub := u.Subtract(
		mat.NewVecDense(3, []float64{0, 0, math.Pi - 0.1}),
		mat.NewVecDense(3, []float64{0, 0, -math.Pi + 0.1}),
	)
	assert.InDelta(-0.2, sub.AtVec(2), 1e-12)
}

func TestOdometrySampleDeterministic(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(3, []float64{1e-2, 0, 0, 0, 1e-2, 0, 0, 0, 1e-3})
	u, err := NewOdometry(pose.Pose{X: 1}, cov)
	assert.NoError(err)

	a := u.Sample(rand.New(rand.NewSource(42)))
	b := u.Sample(rand.New(rand.NewSource(42)))
	assert.Equal(a, b)
}

func TestRangeBearing(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{1e-2, 0, 0, 1e-3})
	z, err := NewRangeBearing(pose.Point{X: 5, Y: 0}, cov)
	assert.NoError(err)

	assert.Equal(2, z.Dim())
	assert.InDelta(5.0, z.Mean().X, 1e-12)
	assert.InDelta(0.0, z.Mean().Y, 1e-12)

	// vector coordinates are (range, bearing)
	v := z.ToVector(pose.Point{X: 0, Y: 2})
	assert.InDelta(2.0, v.AtVec(0), 1e-12)
	assert.InDelta(math.Pi/2, v.AtVec(1), 1e-12)

	// round trip through vector coordinates
	pt := z.FromVector(v)
	assert.InDelta(0.0, pt.X, 1e-12)
	assert.InDelta(2.0, pt.Y, 1e-12)

	llMean := z.LogLikelihood(z.Mean())
	llOff := z.LogLikelihood(pose.Point{X: 5.2, Y: 0.1})
	assert.Greater(llMean, llOff)
}

func TestRangeBearingWrap(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{1e-2, 0, 0, 1e-3})
	// model centered behind the robot, near the bearing cut
	z, err := NewRangeBearing(pose.Point{X: -5, Y: 0}, cov)
	assert.NoError(err)

	a := z.LogLikelihood(pose.Point{X: -5, Y: 0.01})
	b := z.LogLikelihood(pose.Point{X: -5, Y: -0.01})
	assert.InDelta(a, b, 1e-6)
}
