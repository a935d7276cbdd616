// Package graph implements graph optimization SLAM: a nonlinear least
// squares estimator over a pose-landmark factor graph with binary
// control and observation edges, solved by Levenberg-Marquardt on the
// normal equations with a Cholesky factorization. Vertex 0 is held
// fixed to remove the gauge freedom.
package graph

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/data"
	"github.com/milosgajdos/go-slam/pose"
)

const (
	poseDof     = 3
	landmarkDof = 2

	// gainThreshold terminates the solver when the relative objective
	// improvement falls below it.
	gainThreshold = 1e-8
)

type poseVertex struct {
	estimate pose.Pose
	fixed    bool
	// index is the vertex's offset into the reduced variable vector,
	// or -1 when fixed.
	index int
}

func (v *poseVertex) retract(delta []float64) {
	v.estimate = v.estimate.Compose(pose.Pose{
		X: delta[0], Y: delta[1], Heading: pose.WrapAngle(delta[2]),
	})
}

type landmarkVertex struct {
	id       slam.FeatureID
	estimate pose.Point
	index    int
}

func (v *landmarkVertex) retract(delta []float64) {
	v.estimate = v.estimate.Add(pose.Point{X: delta[0], Y: delta[1]})
}

type controlEdge struct {
	from, to    *poseVertex
	measurement *mat.VecDense
	info        *mat.SymDense
	model       slam.ControlModel
}

func (e *controlEdge) errorVec() *mat.VecDense {
	predicted := e.model.ToVector(e.from.estimate.Inverse().Compose(e.to.estimate))
	return e.model.Subtract(predicted, e.measurement)
}

type obsEdge struct {
	from        *poseVertex
	to          *landmarkVertex
	measurement *mat.VecDense
	info        *mat.SymDense
	model       slam.ObservationModel
}

func (e *obsEdge) errorVec() *mat.VecDense {
	rel := e.from.estimate.Inverse().Transform(e.to.estimate)
	return e.model.Subtract(e.model.ToVector(rel), e.measurement)
}

// Status reports the outcome of an Optimize call.
type Status struct {
	// Iterations is the number of solver iterations performed.
	Iterations int
	// Converged reports whether the relative gain fell below the
	// termination threshold.
	Converged bool
}

// GraphSLAM is the graph optimization estimator. It implements
// slam.Listener and slam.Result. New vertices are initialized from the
// initializer's current estimate composed with the graph's own pose at
// that time.
type GraphSLAM struct {
	logger      *zap.Logger
	initializer slam.Result

	poses         []*poseVertex
	landmarks     map[slam.FeatureID]*landmarkVertex
	landmarkOrder []slam.FeatureID

	controlEdges []*controlEdge
	obsEdges     []*obsEdge

	next slam.Timestep

	trajCache *slam.Trajectory
	mapCache  *slam.FeatureMap
}

// New creates a graph SLAM estimator over the event log d, seeded by
// the initializer, and subscribes it to the log's events. The
// initializer must be subscribed before this estimator. A nil logger
// disables logging.
func New(d *data.Log, initializer slam.Result, logger *zap.Logger) *GraphSLAM {
	if logger == nil {
		logger = zap.NewNop()
	}

	g := &GraphSLAM{
		logger:      logger,
		initializer: initializer,
		landmarks:   make(map[slam.FeatureID]*landmarkVertex),
		trajCache:   slam.NewTrajectory(),
		mapCache:    &slam.FeatureMap{},
	}
	g.poses = append(g.poses, &poseVertex{fixed: true, index: -1})

	d.Subscribe(g)
	return g
}

// information computes the edge information matrix (L L^T)^-1 from
// the lower Cholesky factor L of the measurement covariance.
func information(chol *mat.TriDense) *mat.SymDense {
	n, _ := chol.Dims()

	// forward substitution column by column: inv = L^-1
	inv := mat.NewDense(n, n, nil)
	for c := 0; c < n; c++ {
		for i := 0; i < n; i++ {
			s := 0.0
			if i == c {
				s = 1
			}
			for j := 0; j < i; j++ {
				s -= chol.At(i, j) * inv.At(j, c)
			}
			inv.Set(i, c, s/chol.At(i, i))
		}
	}

	// info = inv^T * inv
	info := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var s float64
			for k := 0; k < n; k++ {
				s += inv.At(k, i) * inv.At(k, j)
			}
			info.SetSym(i, j, s)
		}
	}
	return info
}

// OnControl appends the pose vertex for timestep t+1 and the control
// edge connecting it to its predecessor.
func (g *GraphSLAM) OnControl(t slam.Timestep, u slam.ControlModel) {
	if int(t) != len(g.poses)-1 {
		panic(fmt.Sprintf("graph: control for timestep %d with %d pose vertices", t, len(g.poses)))
	}

	inc := u.Mean()
	if g.initializerAvailable(t + 1) {
		inc = g.initializer.State(t).Inverse().Compose(g.initializer.State(t + 1))
	}

	from := g.poses[len(g.poses)-1]
	to := &poseVertex{estimate: from.estimate.Compose(inc), index: -1}
	g.poses = append(g.poses, to)

	g.controlEdges = append(g.controlEdges, &controlEdge{
		from:        from,
		to:          to,
		measurement: u.ToVector(u.Mean()),
		info:        information(u.CholCov()),
		model:       u,
	})
}

// OnObservation appends the landmark vertex on first sight and the
// observation edge for this sighting.
func (g *GraphSLAM) OnObservation(t slam.Timestep, id slam.FeatureID, z slam.ObservationModel, newFeature bool) {
	if int(t) != len(g.poses)-1 {
		panic(fmt.Sprintf("graph: observation at timestep %d with %d pose vertices", t, len(g.poses)))
	}
	from := g.poses[len(g.poses)-1]

	lm, known := g.landmarks[id]
	if newFeature != !known {
		panic(fmt.Sprintf("graph: inconsistent new feature flag for %d", id))
	}
	if !known {
		rel := z.Mean()
		if g.initializerAvailable(t) {
			rel = g.initializer.State(t).Inverse().Transform(g.initializer.Feature(id))
		}
		lm = &landmarkVertex{id: id, estimate: from.estimate.Transform(rel), index: -1}
		g.landmarks[id] = lm
		g.landmarkOrder = append(g.landmarkOrder, id)
	}

	g.obsEdges = append(g.obsEdges, &obsEdge{
		from:        from,
		to:          lm,
		measurement: z.ToVector(z.Mean()),
		info:        information(z.CholCov()),
		model:       z,
	})
}

// OnTimestep advances the estimator's timestep.
func (g *GraphSLAM) OnTimestep(t slam.Timestep) {
	if t < g.next {
		return
	}
	if t != g.next {
		panic(fmt.Sprintf("graph: timestep %d, estimator expects %d", t, g.next))
	}
	g.next++
}

// OnCompleted is a no-op; terminal optimization is driven by Updater.
func (g *GraphSLAM) OnCompleted() {}

func (g *GraphSLAM) initializerAvailable(t slam.Timestep) bool {
	return g.initializer != nil && g.initializer.CurrentTimestep() >= t
}

// Reinitialise overwrites all vertex estimates from another result.
func (g *GraphSLAM) Reinitialise(r slam.Result) {
	trajectory := r.Trajectory()
	for t := 1; t <= trajectory.Len(); t++ {
		g.poses[t].estimate = trajectory.Accumulate(t)
	}

	initial := r.InitialState()
	r.FeatureMap().Each(func(id slam.FeatureID, pt pose.Point) {
		if lm, ok := g.landmarks[id]; ok {
			lm.estimate = initial.Inverse().Transform(pt)
		}
	})

	g.invalidate()
}

// ObjectiveValue returns the total weighted squared error over all
// edges.
func (g *GraphSLAM) ObjectiveValue() float64 {
	return g.chi2()
}

func (g *GraphSLAM) chi2() float64 {
	var sum float64
	for _, e := range g.controlEdges {
		err := e.errorVec()
		tmp := &mat.VecDense{}
		tmp.MulVec(e.info, err)
		sum += mat.Dot(err, tmp)
	}
	for _, e := range g.obsEdges {
		err := e.errorVec()
		tmp := &mat.VecDense{}
		tmp.MulVec(e.info, err)
		sum += mat.Dot(err, tmp)
	}
	return sum
}

func (g *GraphSLAM) invalidate() {
	g.trajCache.Clear()
	g.mapCache.Clear()
}
