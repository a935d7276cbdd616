package graph

import (
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/milosgajdos/go-slam/pose"
)

// jacobianStep is the central difference perturbation used to
// linearize edge errors around the current estimates.
const jacobianStep = 1e-6

// assignIndices numbers the free variables: every pose vertex except
// the fixed origin, followed by every landmark in first-seen order.
// It returns the total variable dimension.
func (g *GraphSLAM) assignIndices() int {
	dim := 0
	for _, v := range g.poses {
		if v.fixed {
			v.index = -1
			continue
		}
		v.index = dim
		dim += poseDof
	}
	for _, id := range g.landmarkOrder {
		lm := g.landmarks[id]
		lm.index = dim
		dim += landmarkDof
	}
	return dim
}

// poseJacobian linearizes err with respect to the local retraction of
// v, one central difference per degree of freedom.
func poseJacobian(v *poseVertex, err func() *mat.VecDense) *mat.Dense {
	saved := v.estimate
	m := err().Len()
	jac := mat.NewDense(m, poseDof, nil)
	delta := make([]float64, poseDof)

	for j := 0; j < poseDof; j++ {
		delta[j] = jacobianStep
		v.retract(delta)
		hi := err()
		v.estimate = saved

		delta[j] = -jacobianStep
		v.retract(delta)
		lo := err()
		v.estimate = saved

		delta[j] = 0
		for i := 0; i < m; i++ {
			jac.Set(i, j, (hi.AtVec(i)-lo.AtVec(i))/(2*jacobianStep))
		}
	}
	return jac
}

func landmarkJacobian(v *landmarkVertex, err func() *mat.VecDense) *mat.Dense {
	saved := v.estimate
	m := err().Len()
	jac := mat.NewDense(m, landmarkDof, nil)
	delta := make([]float64, landmarkDof)

	for j := 0; j < landmarkDof; j++ {
		delta[j] = jacobianStep
		v.retract(delta)
		hi := err()
		v.estimate = saved

		delta[j] = -jacobianStep
		v.retract(delta)
		lo := err()
		v.estimate = saved

		delta[j] = 0
		for i := 0; i < m; i++ {
			jac.Set(i, j, (hi.AtVec(i)-lo.AtVec(i))/(2*jacobianStep))
		}
	}
	return jac
}

// addBlock accumulates jaT * info * jb into H at block (ra, rb), and
// mirrors it when the blocks differ.
func addBlock(h *mat.SymDense, ra, rb int, ja, jb, info mat.Matrix) {
	tmp := &mat.Dense{}
	tmp.Mul(info, jb)
	block := &mat.Dense{}
	block.Mul(ja.T(), tmp)

	br, bc := block.Dims()
	if ra == rb {
		for i := 0; i < br; i++ {
			for j := i; j < bc; j++ {
				h.SetSym(ra+i, rb+j, h.At(ra+i, rb+j)+block.At(i, j))
			}
		}
		return
	}
	for i := 0; i < br; i++ {
		for j := 0; j < bc; j++ {
			h.SetSym(ra+i, rb+j, h.At(ra+i, rb+j)+block.At(i, j))
		}
	}
}

// addGradient accumulates jT * info * err into b at offset r.
func addGradient(b *mat.VecDense, r int, j mat.Matrix, info *mat.SymDense, err *mat.VecDense) {
	tmp := &mat.VecDense{}
	tmp.MulVec(info, err)
	grad := &mat.VecDense{}
	grad.MulVec(j.T(), tmp)
	for i := 0; i < grad.Len(); i++ {
		b.SetVec(r+i, b.AtVec(r+i)+grad.AtVec(i))
	}
}

// buildNormalEquations assembles H = J^T Omega J and b = J^T Omega e
// over all edges, skipping fixed vertex blocks.
func (g *GraphSLAM) buildNormalEquations(dim int) (*mat.SymDense, *mat.VecDense) {
	h := mat.NewSymDense(dim, nil)
	b := mat.NewVecDense(dim, nil)

	for _, e := range g.controlEdges {
		err := e.errorVec()
		var ja, jb *mat.Dense
		if !e.from.fixed {
			ja = poseJacobian(e.from, e.errorVec)
		}
		if !e.to.fixed {
			jb = poseJacobian(e.to, e.errorVec)
		}

		if ja != nil {
			addBlock(h, e.from.index, e.from.index, ja, ja, e.info)
			addGradient(b, e.from.index, ja, e.info, err)
		}
		if jb != nil {
			addBlock(h, e.to.index, e.to.index, jb, jb, e.info)
			addGradient(b, e.to.index, jb, e.info, err)
		}
		if ja != nil && jb != nil {
			addBlock(h, e.from.index, e.to.index, ja, jb, e.info)
		}
	}

	for _, e := range g.obsEdges {
		err := e.errorVec()
		jl := landmarkJacobian(e.to, e.errorVec)
		addBlock(h, e.to.index, e.to.index, jl, jl, e.info)
		addGradient(b, e.to.index, jl, e.info, err)

		if !e.from.fixed {
			jp := poseJacobian(e.from, e.errorVec)
			addBlock(h, e.from.index, e.from.index, jp, jp, e.info)
			addGradient(b, e.from.index, jp, e.info, err)
			addBlock(h, e.from.index, e.to.index, jp, jl, e.info)
		}
	}

	return h, b
}

// applyDelta retracts every free vertex by its block of delta.
func (g *GraphSLAM) applyDelta(delta *mat.VecDense) {
	for _, v := range g.poses {
		if v.fixed {
			continue
		}
		v.retract(delta.RawVector().Data[v.index : v.index+poseDof])
	}
	for _, id := range g.landmarkOrder {
		lm := g.landmarks[id]
		lm.retract(delta.RawVector().Data[lm.index : lm.index+landmarkDof])
	}
}

// snapshot captures all vertex estimates so a rejected step can be
// rolled back.
func (g *GraphSLAM) snapshot() ([]pose.Pose, []pose.Point) {
	poses := make([]pose.Pose, len(g.poses))
	for i, v := range g.poses {
		poses[i] = v.estimate
	}
	points := make([]pose.Point, len(g.landmarkOrder))
	for i, id := range g.landmarkOrder {
		points[i] = g.landmarks[id].estimate
	}
	return poses, points
}

func (g *GraphSLAM) restore(poses []pose.Pose, points []pose.Point) {
	for i, v := range g.poses {
		v.estimate = poses[i]
	}
	for i, id := range g.landmarkOrder {
		g.landmarks[id].estimate = points[i]
	}
}

// Optimize runs up to maxIterations of Levenberg-Marquardt on the
// graph, terminating early when the relative objective gain falls
// below the threshold. Optimizing a graph with fewer than two poses or
// no landmarks is a no-op. Non-convergence is reported in the status,
// never as a failure.
func (g *GraphSLAM) Optimize(maxIterations int) Status {
	if maxIterations <= 0 || len(g.poses) <= 1 || len(g.landmarks) == 0 {
		return Status{}
	}

	dim := g.assignIndices()
	chi2 := g.chi2()
	lambda := 1e-4

	status := Status{}
	for status.Iterations < maxIterations {
		status.Iterations++

		h, b := g.buildNormalEquations(dim)
		for i := 0; i < dim; i++ {
			h.SetSym(i, i, h.At(i, i)+lambda)
		}

		var ch mat.Cholesky
		if !ch.Factorize(h) {
			lambda *= 10
			continue
		}
		delta := mat.NewVecDense(dim, nil)
		if err := ch.SolveVecTo(delta, b); err != nil {
			lambda *= 10
			continue
		}
		delta.ScaleVec(-1, delta)

		poses, points := g.snapshot()
		g.applyDelta(delta)
		newChi2 := g.chi2()

		gain := chi2 - newChi2
		if gain >= 0 {
			chi2 = newChi2
			lambda *= 0.5
			if gain < gainThreshold*(chi2+gainThreshold) {
				status.Converged = true
				break
			}
			continue
		}

		g.restore(poses, points)
		if -gain < gainThreshold*(chi2+gainThreshold) {
			status.Converged = true
			break
		}
		lambda *= 10
		if lambda > 1e12 {
			break
		}
	}

	g.invalidate()
	g.logger.Debug("graph optimization",
		zap.Int("iterations", status.Iterations),
		zap.Bool("converged", status.Converged),
		zap.Float64("chi2", chi2))
	return status
}
