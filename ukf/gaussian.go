// Package ukf implements the scaled unscented transform: sigma point
// generation, Gaussian push-forward through nonlinear functions, and
// measurement conditioning via the sigma point Kalman gain. All
// covariances are carried as lower-triangular Cholesky factors; the
// product J*Sigma*J^T is never formed explicitly.
package ukf

import (
	"errors"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// ErrNotPositiveDefinite is returned when a covariance loses positive
// definiteness and cannot be refactorized.
var ErrNotPositiveDefinite = errors.New("ukf: covariance not positive definite")

// Subtractor computes the residual a - b in model coordinates,
// wrapping angular components where the model requires it.
type Subtractor func(a, b mat.Vector) *mat.VecDense

// Gaussian is a multivariate normal carried as a mean vector and the
// lower-triangular Cholesky factor of its covariance.
type Gaussian struct {
	mean *mat.VecDense
	chol *mat.TriDense
}

// NewGaussian returns a Gaussian with the given mean and lower
// Cholesky factor. Both are cloned.
func NewGaussian(mean mat.Vector, chol *mat.TriDense) *Gaussian {
	m := &mat.VecDense{}
	m.CloneFromVec(mean)

	n, _ := chol.Dims()
	c := mat.NewTriDense(n, mat.Lower, nil)
	c.Copy(chol)

	return &Gaussian{mean: m, chol: c}
}

// NewZeroGaussian returns a dim-dimensional Gaussian with zero mean
// and zero covariance factor.
func NewZeroGaussian(dim int) *Gaussian {
	return &Gaussian{
		mean: mat.NewVecDense(dim, nil),
		chol: mat.NewTriDense(dim, mat.Lower, nil),
	}
}

// Dim returns the dimension of the Gaussian.
func (g *Gaussian) Dim() int {
	return g.mean.Len()
}

// Mean returns a copy of the mean vector.
func (g *Gaussian) Mean() *mat.VecDense {
	m := &mat.VecDense{}
	m.CloneFromVec(g.mean)
	return m
}

// Chol returns a copy of the lower Cholesky factor.
func (g *Gaussian) Chol() *mat.TriDense {
	n, _ := g.chol.Dims()
	c := mat.NewTriDense(n, mat.Lower, nil)
	c.Copy(g.chol)
	return c
}

// Cov returns the covariance matrix L*L^T.
func (g *Gaussian) Cov() *mat.SymDense {
	n := g.Dim()
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var s float64
			for k := 0; k <= i; k++ {
				s += g.chol.At(i, k) * g.chol.At(j, k)
			}
			cov.SetSym(i, j, s)
		}
	}
	return cov
}

// Clone returns a deep copy of g.
func (g *Gaussian) Clone() *Gaussian {
	return NewGaussian(g.mean, g.chol)
}

// Sample draws from the Gaussian as mean + L*z with z standard normal.
func (g *Gaussian) Sample(rng *rand.Rand) *mat.VecDense {
	n := g.Dim()
	z := make([]float64, n)
	for i := range z {
		z[i] = rng.NormFloat64()
	}
	x := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		s := g.mean.AtVec(i)
		for j := 0; j <= i; j++ {
			s += g.chol.At(i, j) * z[j]
		}
		x.SetVec(i, s)
	}
	return x
}

// LogProb returns the log density at x.
func (g *Gaussian) LogProb(x mat.Vector) float64 {
	r := &mat.VecDense{}
	r.SubVec(x, g.mean)
	return g.logProbResidual(r)
}

// LogProbResidual returns the log density at the point whose residual
// from the mean is sub(x, mean).
func (g *Gaussian) LogProbResidual(x mat.Vector, sub Subtractor) float64 {
	return g.logProbResidual(sub(x, g.mean))
}

func (g *Gaussian) logProbResidual(r *mat.VecDense) float64 {
	n := g.Dim()
	// forward substitution: y = L^-1 r
	y := make([]float64, n)
	logDet := 0.0
	for i := 0; i < n; i++ {
		s := r.AtVec(i)
		for j := 0; j < i; j++ {
			s -= g.chol.At(i, j) * y[j]
		}
		d := g.chol.At(i, i)
		y[i] = s / d
		logDet += math.Log(d)
	}
	var quad float64
	for _, v := range y {
		quad += v * v
	}
	return -0.5*quad - logDet - 0.5*float64(n)*math.Log(2*math.Pi)
}

// Head returns the marginal of the leading n coordinates. The leading
// block of a lower Cholesky factor is the factor of the marginal
// covariance, so no refactorization is needed.
func (g *Gaussian) Head(n int) *Gaussian {
	mean := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		mean.SetVec(i, g.mean.AtVec(i))
	}
	chol := mat.NewTriDense(n, mat.Lower, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			chol.SetTri(i, j, g.chol.At(i, j))
		}
	}
	return &Gaussian{mean: mean, chol: chol}
}

// Joint returns the independent joint of a and b: stacked means and a
// block-diagonal Cholesky factor.
func Joint(a, b *Gaussian) *Gaussian {
	na, nb := a.Dim(), b.Dim()
	mean := mat.NewVecDense(na+nb, nil)
	for i := 0; i < na; i++ {
		mean.SetVec(i, a.mean.AtVec(i))
	}
	for i := 0; i < nb; i++ {
		mean.SetVec(na+i, b.mean.AtVec(i))
	}
	chol := mat.NewTriDense(na+nb, mat.Lower, nil)
	for i := 0; i < na; i++ {
		for j := 0; j <= i; j++ {
			chol.SetTri(i, j, a.chol.At(i, j))
		}
	}
	for i := 0; i < nb; i++ {
		for j := 0; j <= i; j++ {
			chol.SetTri(na+i, na+j, b.chol.At(i, j))
		}
	}
	return &Gaussian{mean: mean, chol: chol}
}
