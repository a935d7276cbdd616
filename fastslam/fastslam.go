// Package fastslam implements the FastSLAM 2.0 estimator: a
// Rao-Blackwellized particle filter over state trajectories whose
// per-particle feature map is a persistent copy-on-write tree of
// feature Gaussians. State proposals are refined with the unscented
// transform using the current step's observations.
package fastslam

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/milosgajdos/matrix"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/cowmap"
	"github.com/milosgajdos/go-slam/data"
	"github.com/milosgajdos/go-slam/particle"
	"github.com/milosgajdos/go-slam/pose"
	"github.com/milosgajdos/go-slam/ukf"
)

// ErrParticleCollapse reports that the effective sample size fell
// below the collapse threshold. The filter keeps running with the
// degenerate population; the driver decides whether to reset.
var ErrParticleCollapse = errors.New("fastslam: particle set collapsed")

const (
	stateDim   = 3
	featureDim = 2
)

// stateNode is one element of a particle's trajectory list. Nodes are
// shared between particles cloned by resampling; divergence costs one
// new node per particle per step.
type stateNode struct {
	state pose.Pose
	prev  *stateNode
}

// Particle is one trajectory hypothesis with its analytically tracked
// feature map.
type Particle struct {
	node     *stateNode
	features cowmap.Map[slam.FeatureID, *ukf.Gaussian]
}

type observedFeature struct {
	id  slam.FeatureID
	obs slam.ObservationModel
}

// FastSLAM is the FastSLAM 2.0 estimator. It implements slam.Listener
// and slam.Result.
type FastSLAM struct {
	data   *data.Log
	rng    *rand.Rand
	logger *zap.Logger

	numParticles      int
	resampleThreshold float64
	collapseThreshold float64
	discardHistory    bool

	alpha, beta, kappa float64
	params             map[int]ukf.Params

	filter *particle.Filter[Particle]

	next           slam.Timestep
	currentControl slam.ControlModel
	seen, fresh    []observedFeature
	numFeatures    int

	trajectory *slam.Trajectory
	mapCache   *slam.FeatureMap
	collapsed  bool
}

// New creates a FastSLAM estimator over the event log d and subscribes
// it to the log's events. The seed is resolved against the
// configuration per the reproducibility policy. A nil logger disables
// logging.
func New(d *data.Log, cfg *slam.Config, seed uint64, logger *zap.Logger) *FastSLAM {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &FastSLAM{
		data:              d,
		rng:               rand.New(rand.NewSource(cfg.SeedOption("fastslam_seed", seed))),
		logger:            logger,
		numParticles:      cfg.NumParticles,
		resampleThreshold: cfg.ResampleThreshold,
		collapseThreshold: cfg.CollapseThreshold,
		discardHistory:    cfg.NoHistory,
		alpha:             cfg.UKFAlpha,
		beta:              cfg.UKFBeta,
		kappa:             cfg.UKFKappa,
		params:            make(map[int]ukf.Params),
		trajectory:        slam.NewTrajectory(),
		mapCache:          &slam.FeatureMap{},
	}
	f.filter = particle.New(cfg.NumParticles, func(int) Particle {
		return Particle{node: &stateNode{}}
	})

	d.Subscribe(f)
	return f
}

// ukfParams returns the cached sigma point weights for dimension n.
func (f *FastSLAM) ukfParams(n int) ukf.Params {
	p, ok := f.params[n]
	if !ok {
		p = ukf.NewParams(n, f.alpha, f.beta, f.kappa)
		f.params[n] = p
	}
	return p
}

// EffectiveParticleRatio returns the effective sample size divided by
// the population size.
func (f *FastSLAM) EffectiveParticleRatio() float64 {
	return f.filter.EffectiveSize() / float64(f.filter.Len())
}

// Collapsed returns ErrParticleCollapse if the effective sample size
// has fallen below the collapse threshold, nil otherwise.
func (f *FastSLAM) Collapsed() error {
	if f.collapsed {
		return ErrParticleCollapse
	}
	return nil
}

func (f *FastSLAM) resampleRequired() bool {
	return f.filter.EffectiveSize() < float64(f.numParticles)*f.resampleThreshold
}

// OnControl records the control to be consumed by the next timestep.
func (f *FastSLAM) OnControl(t slam.Timestep, u slam.ControlModel) {
	if t != f.CurrentTimestep() {
		panic(fmt.Sprintf("fastslam: control for timestep %d, estimator at %d", t, f.CurrentTimestep()))
	}
	if f.currentControl != nil {
		panic("fastslam: control already pending")
	}
	f.currentControl = u
}

// OnObservation queues an observation for the current timestep.
func (f *FastSLAM) OnObservation(t slam.Timestep, id slam.FeatureID, z slam.ObservationModel, newFeature bool) {
	if t != f.next {
		panic(fmt.Sprintf("fastslam: observation for timestep %d, estimator expects %d", t, f.next))
	}
	of := observedFeature{id: id, obs: z}
	if newFeature {
		f.fresh = append(f.fresh, of)
	} else {
		f.seen = append(f.seen, of)
	}
}

// OnCompleted logs the terminal particle diversity.
func (f *FastSLAM) OnCompleted() {
	f.logger.Info("fastslam complete",
		zap.Float64("effective_ratio", f.EffectiveParticleRatio()),
		zap.Int("features", f.numFeatures))
}

// OnTimestep advances the posterior to timestep t.
func (f *FastSLAM) OnTimestep(t slam.Timestep) {
	if t < f.next {
		return
	}
	if t != f.next {
		panic(fmt.Sprintf("fastslam: timestep %d, estimator expects %d", t, f.next))
	}

	if t > 0 {
		if f.resampleRequired() {
			f.filter.Resample(f.rng, f.numParticles)
		}

		if f.currentControl == nil {
			panic(fmt.Sprintf("fastslam: no control recorded for timestep %d", t))
		}
		f.filter.Update(f.particleStateUpdate)
		f.currentControl = nil

		if f.discardHistory {
			f.trajectory.PushBackAccumulated(f.filter.MaxWeightParticle().node.state)
		}
	}

	f.updateSeenFeatures()
	f.initFreshFeatures()

	f.mapCache.Clear()
	f.next++

	eff := f.filter.EffectiveSize()
	f.logger.Debug("fastslam step",
		zap.Int("timestep", int(t)), zap.Float64("effective_size", eff))
	if t > 0 && eff < float64(f.numParticles)*f.collapseThreshold {
		f.collapsed = true
		f.logger.Warn("particle set collapsed",
			zap.Int("timestep", int(t)),
			zap.Float64("effective_size", eff),
			zap.Float64("spread", f.particleSpread()))
	}
}

// particleStateUpdate propagates one particle through the pending
// control, refines the proposal with this step's observations of known
// features, samples the new state and returns the importance weight
// multiplier.
func (f *FastSLAM) particleStateUpdate(p *Particle) float64 {
	u := f.currentControl
	prev := p.node.state

	ctrl := ukf.NewGaussian(u.ToVector(u.Mean()), u.CholCov())
	state, err := ukf.Transform(f.ukfParams(u.Dim()), func(x mat.Vector) *mat.VecDense {
		return prev.Compose(u.FromVector(x)).Vector()
	}, ctrl, stateDim, nil)
	if err != nil {
		f.logger.Warn("state prediction failed, using control mean", zap.Error(err))
		p.node = f.advance(p.node, prev.Compose(u.Mean()))
		return 1
	}

	// refine the proposal with each already-seen feature observed now
	proposal := state.Clone()
	for _, of := range f.seen {
		feat, ok := p.features.Get(of.id)
		if !ok {
			panic(fmt.Sprintf("fastslam: feature %d observed before initialization", of.id))
		}

		joint := ukf.Joint(proposal, feat)
		err := ukf.Update(f.ukfParams(stateDim+featureDim), func(x mat.Vector) *mat.VecDense {
			st := pose.FromVector(x)
			pt := pose.Point{X: x.AtVec(3), Y: x.AtVec(4)}
			return of.obs.ToVector(st.Inverse().Transform(pt))
		}, joint, of.obs.ToVector(of.obs.Mean()), of.obs.CholCov(), of.obs.Subtract)
		if err != nil {
			f.logger.Warn("proposal refinement failed", zap.Uint64("feature", uint64(of.id)), zap.Error(err))
			continue
		}
		proposal = joint.Head(stateDim)
	}

	newState := pose.FromVector(proposal.Sample(f.rng))
	p.node = f.advance(p.node, newState)

	obsLL := f.particleLogWeight(p)
	stateLL := state.LogProbResidual(newState.Vector(), stateSubtract)
	propLL := proposal.LogProbResidual(newState.Vector(), stateSubtract)

	return math.Exp(obsLL + stateLL - propLL)
}

// advance prepends the new state to the trajectory list, or overwrites
// the head when history is discarded.
func (f *FastSLAM) advance(node *stateNode, state pose.Pose) *stateNode {
	if f.discardHistory {
		return &stateNode{state: state}
	}
	return &stateNode{state: state, prev: node}
}

// particleLogWeight returns the log likelihood of this step's
// observations of known features under the particle's state and map.
func (f *FastSLAM) particleLogWeight(p *Particle) float64 {
	state := p.node.state

	var logWeight float64
	for _, of := range f.seen {
		feat, _ := p.features.Get(of.id)

		predicted, err := ukf.Transform(f.ukfParams(featureDim), func(x mat.Vector) *mat.VecDense {
			return of.obs.ToVector(state.Inverse().Transform(pose.PointFromVector(x)))
		}, feat, of.obs.Dim(), of.obs.CholCov())
		if err != nil {
			f.logger.Warn("observation prediction failed", zap.Uint64("feature", uint64(of.id)), zap.Error(err))
			continue
		}

		logWeight += predicted.LogProbResidual(of.obs.ToVector(of.obs.Mean()), of.obs.Subtract)
	}
	return logWeight
}

// updateSeenFeatures folds this step's observations of known features
// into every particle's feature Gaussians, holding the state fixed.
func (f *FastSLAM) updateSeenFeatures() {
	for _, of := range f.seen {
		f.filter.Each(func(p *Particle) {
			state := p.node.state
			feat, ok := p.features.Get(of.id)
			if !ok {
				panic(fmt.Sprintf("fastslam: feature %d observed before initialization", of.id))
			}

			g := feat.Clone()
			err := ukf.Update(f.ukfParams(featureDim), func(x mat.Vector) *mat.VecDense {
				return of.obs.ToVector(state.Inverse().Transform(pose.PointFromVector(x)))
			}, g, of.obs.ToVector(of.obs.Mean()), of.obs.CholCov(), of.obs.Subtract)
			if err != nil {
				f.logger.Warn("feature update failed", zap.Uint64("feature", uint64(of.id)), zap.Error(err))
				return
			}
			p.features = p.features.Insert(of.id, g)
		})
	}
	f.seen = f.seen[:0]
}

// initFreshFeatures initializes a Gaussian for each first-seen feature
// by pushing the observation distribution through the inverse
// observation model at the particle's state.
func (f *FastSLAM) initFreshFeatures() {
	for _, of := range f.fresh {
		in := ukf.NewGaussian(of.obs.ToVector(of.obs.Mean()), of.obs.CholCov())
		f.filter.Each(func(p *Particle) {
			state := p.node.state
			g, err := ukf.Transform(f.ukfParams(of.obs.Dim()), func(x mat.Vector) *mat.VecDense {
				return state.Transform(of.obs.FromVector(x)).Vector()
			}, in, featureDim, nil)
			if err != nil {
				f.logger.Warn("feature initialization failed", zap.Uint64("feature", uint64(of.id)), zap.Error(err))
				return
			}
			p.features = p.features.Insert(of.id, g)
		})
	}
	f.numFeatures += len(f.fresh)
	f.fresh = f.fresh[:0]
}

// particleSpread returns the trace of the sample covariance of the
// particle states (x, y and heading), a scalar summary of how
// degenerate the population is.
func (f *FastSLAM) particleSpread() float64 {
	states := mat.NewDense(stateDim, f.filter.Len(), nil)
	for i := 0; i < f.filter.Len(); i++ {
		s := f.filter.At(i).node.state
		states.Set(0, i, s.X)
		states.Set(1, i, s.Y)
		states.Set(2, i, s.Heading)
	}
	cov, err := matrix.Cov(states, "cols")
	if err != nil {
		return math.NaN()
	}
	var tr float64
	for i := 0; i < stateDim; i++ {
		tr += cov.At(i, i)
	}
	return tr
}

// stateSubtract is the residual in state coordinates; the heading
// component is wrapped.
func stateSubtract(a, b mat.Vector) *mat.VecDense {
	return mat.NewVecDense(stateDim, []float64{
		a.AtVec(0) - b.AtVec(0),
		a.AtVec(1) - b.AtVec(1),
		pose.WrapAngle(a.AtVec(2) - b.AtVec(2)),
	})
}
