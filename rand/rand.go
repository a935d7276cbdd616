// Package rand provides random sampling helpers shared by the
// simulator and the tests.
package rand

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// NewSeeded returns a generator seeded with seed. All randomness in
// the module flows through explicitly seeded generators so runs are
// bit-exactly reproducible.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// WithCovN draws n samples from a zero mean Gaussian with covariance
// cov and returns them as matrix columns. The factorization uses SVD
// rather than Cholesky so that (almost) singular covariances still
// produce samples.
func WithCovN(rng *rand.Rand, cov mat.Symmetric, n int) (*mat.Dense, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples requested: %d", n)
	}

	var svd mat.SVD
	if ok := svd.Factorize(cov, mat.SVDFull); !ok {
		return nil, fmt.Errorf("SVD factorization failed")
	}

	u := new(mat.Dense)
	svd.UTo(u)
	vals := svd.Values(nil)
	for i := range vals {
		vals[i] = math.Sqrt(vals[i])
	}
	diag := mat.NewDiagDense(len(vals), vals)
	u.Mul(u, diag)

	rows, _ := cov.Dims()
	data := make([]float64, rows*n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	samples := mat.NewDense(rows, n, data)
	samples.Mul(u, samples)

	return samples, nil
}
