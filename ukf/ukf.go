package ukf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Params holds the sigma point weights for one input dimension. The
// weights are computed once per (n, alpha, beta, kappa) tuple and
// reused for every transform at that dimension.
type Params struct {
	// Dim is the input dimension the weights were generated for.
	Dim int

	gamma float64
	wm0   float64
	wc0   float64
	wi    float64
}

// NewParams generates scaled sigma point weights for input dimension n.
func NewParams(n int, alpha, beta, kappa float64) Params {
	lambda := alpha*alpha*(float64(n)+kappa) - float64(n)
	return Params{
		Dim:   n,
		gamma: math.Sqrt(float64(n) + lambda),
		wm0:   lambda / (float64(n) + lambda),
		wc0:   lambda/(float64(n)+lambda) + 1 - alpha*alpha + beta,
		wi:    1 / (2 * (float64(n) + lambda)),
	}
}

// sigmaPoints returns the 2n+1 sigma points of in: the mean and the
// mean offset by +/- gamma times each column of the Cholesky factor.
func (p Params) sigmaPoints(in *Gaussian) []*mat.VecDense {
	n := in.Dim()
	pts := make([]*mat.VecDense, 2*n+1)
	pts[0] = in.Mean()
	for j := 0; j < n; j++ {
		plus := in.Mean()
		minus := in.Mean()
		for i := j; i < n; i++ {
			d := p.gamma * in.chol.At(i, j)
			plus.SetVec(i, plus.AtVec(i)+d)
			minus.SetVec(i, minus.AtVec(i)-d)
		}
		pts[1+j] = plus
		pts[1+n+j] = minus
	}
	return pts
}

// meanWeight returns the mean weight of sigma point i.
func (p Params) meanWeight(i int) float64 {
	if i == 0 {
		return p.wm0
	}
	return p.wi
}

// covWeight returns the covariance weight of sigma point i.
func (p Params) covWeight(i int) float64 {
	if i == 0 {
		return p.wc0
	}
	return p.wi
}

// Transform pushes the Gaussian in through f and returns a Gaussian
// approximation of the output distribution. f maps an input vector to
// an outDim-dimensional vector. If noiseChol is non-nil, the additive
// noise covariance it factors is included in the output covariance.
func Transform(p Params, f func(mat.Vector) *mat.VecDense, in *Gaussian, outDim int, noiseChol *mat.TriDense) (*Gaussian, error) {
	if p.Dim != in.Dim() {
		panic(fmt.Sprintf("ukf: params dimension %d does not match input dimension %d", p.Dim, in.Dim()))
	}

	pts := p.sigmaPoints(in)
	outs := make([]*mat.VecDense, len(pts))
	mean := mat.NewVecDense(outDim, nil)
	for i, pt := range pts {
		outs[i] = f(pt)
		mean.AddScaledVec(mean, p.meanWeight(i), outs[i])
	}

	cov := mat.NewSymDense(outDim, nil)
	d := &mat.VecDense{}
	for i, y := range outs {
		d.SubVec(y, mean)
		cov.SymRankOne(cov, p.covWeight(i), d)
	}
	if noiseChol != nil {
		addCholSquare(cov, noiseChol)
	}

	chol, err := factorize(cov)
	if err != nil {
		return nil, err
	}
	return &Gaussian{mean: mean, chol: chol}, nil
}

// Update conditions the joint Gaussian on the measurement z observed
// through f, modifying joint in place. f maps a joint vector to a
// predicted measurement; noiseChol factors the additive measurement
// noise and sub computes measurement residuals.
func Update(p Params, f func(mat.Vector) *mat.VecDense, joint *Gaussian, z mat.Vector, noiseChol *mat.TriDense, sub Subtractor) error {
	if p.Dim != joint.Dim() {
		panic(fmt.Sprintf("ukf: params dimension %d does not match joint dimension %d", p.Dim, joint.Dim()))
	}

	n := joint.Dim()
	m := z.Len()

	pts := p.sigmaPoints(joint)
	outs := make([]*mat.VecDense, len(pts))
	yMean := mat.NewVecDense(m, nil)
	for i, pt := range pts {
		outs[i] = f(pt)
		yMean.AddScaledVec(yMean, p.meanWeight(i), outs[i])
	}

	pyy := mat.NewSymDense(m, nil)
	pxy := mat.NewDense(n, m, nil)
	dx := &mat.VecDense{}
	dy := &mat.VecDense{}
	outer := mat.NewDense(n, m, nil)
	for i := range pts {
		dx.SubVec(pts[i], joint.mean)
		dy.SubVec(outs[i], yMean)
		pyy.SymRankOne(pyy, p.covWeight(i), dy)
		outer.Mul(dx, dy.T())
		outer.Scale(p.covWeight(i), outer)
		pxy.Add(pxy, outer)
	}
	if noiseChol != nil {
		addCholSquare(pyy, noiseChol)
	}

	// Kalman gain K = Pxy * Pyy^-1, via the Cholesky solve
	// Pyy * K^T = Pxy^T.
	var pyyChol mat.Cholesky
	if !pyyChol.Factorize(pyy) {
		return ErrNotPositiveDefinite
	}
	kt := &mat.Dense{}
	if err := pyyChol.SolveTo(kt, pxy.T()); err != nil {
		return fmt.Errorf("ukf: gain solve failed: %w", err)
	}
	gain := kt.T()

	// condition the mean on the wrapped innovation
	inn := sub(z, yMean)
	corr := mat.NewVecDense(n, nil)
	corr.MulVec(gain, inn)
	joint.mean.AddVec(joint.mean, corr)

	// conditioned covariance P - K*Pyy*K^T
	cov := joint.Cov()
	kp := &mat.Dense{}
	kp.Mul(gain, pyy)
	kpk := &mat.Dense{}
	kpk.Mul(kp, gain.T())
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, cov.At(i, j)-0.5*(kpk.At(i, j)+kpk.At(j, i)))
		}
	}

	chol, err := factorize(cov)
	if err != nil {
		return err
	}
	joint.chol = chol
	return nil
}

// addCholSquare adds L*L^T to dst.
func addCholSquare(dst *mat.SymDense, l *mat.TriDense) {
	n := dst.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var s float64
			for k := 0; k <= i; k++ {
				s += l.At(i, k) * l.At(j, k)
			}
			dst.SetSym(i, j, dst.At(i, j)+s)
		}
	}
}

// factorize computes the lower Cholesky factor of cov, retrying with
// escalating diagonal jitter before giving up.
func factorize(cov *mat.SymDense) (*mat.TriDense, error) {
	n := cov.SymmetricDim()
	var ch mat.Cholesky
	if ch.Factorize(cov) {
		l := mat.NewTriDense(n, mat.Lower, nil)
		ch.LTo(l)
		return l, nil
	}

	for jitter := 1e-12; jitter <= 1e-6; jitter *= 100 {
		bumped := mat.NewSymDense(n, nil)
		bumped.CopySym(cov)
		for i := 0; i < n; i++ {
			bumped.SetSym(i, i, bumped.At(i, i)+jitter)
		}
		if ch.Factorize(bumped) {
			l := mat.NewTriDense(n, mat.Lower, nil)
			ch.LTo(l)
			return l, nil
		}
	}
	return nil, ErrNotPositiveDefinite
}
