package ukf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func plainSub(a, b mat.Vector) *mat.VecDense {
	r := &mat.VecDense{}
	r.SubVec(a, b)
	return r
}

func TestParamsWeightsSum(t *testing.T) {
	assert := assert.New(t)

	for _, n := range []int{1, 2, 3, 5} {
		p := NewParams(n, 0.002, 2, 0)
		sum := p.meanWeight(0)
		for i := 1; i <= 2*n; i++ {
			sum += p.meanWeight(i)
		}
		assert.InDelta(1.0, sum, 1e-9)
	}
}

func TestTransformAffine(t *testing.T) {
	assert := assert.New(t)

	// f(x) = A*x + b must come through exactly: mean A*mu + b,
	// covariance A*Sigma*A^T
	a := mat.NewDense(2, 3, []float64{1, 2, 0, -1, 0.5, 3})
	b := mat.NewVecDense(2, []float64{0.5, -2})

	mean := mat.NewVecDense(3, []float64{1, -1, 2})
	chol := mat.NewTriDense(3, mat.Lower, []float64{
		1, 0, 0,
		0.2, 0.8, 0,
		-0.1, 0.3, 0.5,
	})
	in := NewGaussian(mean, chol)

	params := NewParams(3, 0.002, 2, 0)
	out, err := Transform(params, func(x mat.Vector) *mat.VecDense {
		y := mat.NewVecDense(2, nil)
		y.MulVec(a, x)
		y.AddVec(y, b)
		return y
	}, in, 2, nil)
	assert.NoError(err)

	wantMean := mat.NewVecDense(2, nil)
	wantMean.MulVec(a, mean)
	wantMean.AddVec(wantMean, b)
	for i := 0; i < 2; i++ {
		assert.InDelta(wantMean.AtVec(i), out.Mean().AtVec(i), 1e-8)
	}

	sigma := in.Cov()
	tmp := &mat.Dense{}
	tmp.Mul(a, sigma)
	wantCov := &mat.Dense{}
	wantCov.Mul(tmp, a.T())

	gotCov := out.Cov()
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(wantCov.At(i, j), gotCov.At(i, j), 1e-8)
		}
	}
}

func TestTransformNoise(t *testing.T) {
	assert := assert.New(t)

	in := NewGaussian(mat.NewVecDense(1, []float64{0}),
		mat.NewTriDense(1, mat.Lower, []float64{1}))
	noise := mat.NewTriDense(1, mat.Lower, []float64{2})

	params := NewParams(1, 0.002, 2, 0)
	out, err := Transform(params, func(x mat.Vector) *mat.VecDense {
		return mat.NewVecDense(1, []float64{x.AtVec(0)})
	}, in, 1, noise)
	assert.NoError(err)

	// output variance is input variance plus noise variance
	assert.InDelta(1+4, out.Cov().At(0, 0), 1e-8)
}

func TestUpdateScalar(t *testing.T) {
	assert := assert.New(t)

	// prior N(0,1), identity observation with noise variance 1 and
	// measurement 1: posterior is N(0.5, 0.5)
	joint := NewGaussian(mat.NewVecDense(1, []float64{0}),
		mat.NewTriDense(1, mat.Lower, []float64{1}))
	noise := mat.NewTriDense(1, mat.Lower, []float64{1})

	params := NewParams(1, 0.002, 2, 0)
	err := Update(params, func(x mat.Vector) *mat.VecDense {
		return mat.NewVecDense(1, []float64{x.AtVec(0)})
	}, joint, mat.NewVecDense(1, []float64{1}), noise, plainSub)
	assert.NoError(err)

	assert.InDelta(0.5, joint.Mean().AtVec(0), 1e-6)
	assert.InDelta(0.5, joint.Cov().At(0, 0), 1e-6)
}

func TestGaussianLogProb(t *testing.T) {
	assert := assert.New(t)

	g := NewGaussian(mat.NewVecDense(1, []float64{2}),
		mat.NewTriDense(1, mat.Lower, []float64{3}))

	// standard 1-D normal density scaled to sigma=3
	want := -0.5*math.Log(2*math.Pi) - math.Log(3) - 0.5
	assert.InDelta(want, g.LogProb(mat.NewVecDense(1, []float64{5})), 1e-12)
}

func TestGaussianSampleDeterministic(t *testing.T) {
	assert := assert.New(t)

	g := NewGaussian(mat.NewVecDense(2, []float64{1, 2}),
		mat.NewTriDense(2, mat.Lower, []float64{0.5, 0, 0.1, 0.4}))

	a := g.Sample(rand.New(rand.NewSource(9)))
	b := g.Sample(rand.New(rand.NewSource(9)))
	assert.Equal(a.RawVector().Data, b.RawVector().Data)
}

func TestJointHead(t *testing.T) {
	assert := assert.New(t)

	a := NewGaussian(mat.NewVecDense(2, []float64{1, 2}),
		mat.NewTriDense(2, mat.Lower, []float64{1, 0, 0.5, 2}))
	b := NewGaussian(mat.NewVecDense(1, []float64{3}),
		mat.NewTriDense(1, mat.Lower, []float64{4}))

	j := Joint(a, b)
	assert.Equal(3, j.Dim())
	assert.InDelta(3.0, j.Mean().AtVec(2), 1e-12)

	// off-diagonal blocks are zero
	assert.InDelta(0.0, j.Cov().At(0, 2), 1e-12)

	h := j.Head(2)
	assert.Equal(2, h.Dim())
	for i := 0; i < 2; i++ {
		assert.InDelta(a.Mean().AtVec(i), h.Mean().AtVec(i), 1e-12)
		for k := 0; k < 2; k++ {
			assert.InDelta(a.Cov().At(i, k), h.Cov().At(i, k), 1e-12)
		}
	}
}
