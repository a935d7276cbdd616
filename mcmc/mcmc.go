// Package mcmc implements MCMC-SLAM: a Metropolis-Hastings sampler
// over the spanning tree factorization of the pose graph posterior.
// Each control is a state edge between consecutive pose vertices; each
// feature's first observation is its feature edge. Edges are proposed
// for relabeling with probability proportional to their weight,
// maintained in Fenwick trees for O(log n) weighted selection.
package mcmc

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/bitree"
	"github.com/milosgajdos/go-slam/data"
	"github.com/milosgajdos/go-slam/pose"
)

// maxDrawRetries bounds the redraw loop when a weighted draw lands
// past the last slot due to floating point rounding.
const maxDrawRetries = 100

// featureEstimate is the label of one feature edge: the feature's
// position relative to the pose at its parent timestep.
type featureEstimate struct {
	id       slam.FeatureID
	data     *data.FeatureData
	parent   slam.Timestep
	estimate pose.Point
}

// MCMCSLAM is the MCMC-SLAM estimator. It implements slam.Listener and
// slam.Result.
type MCMCSLAM struct {
	data        *data.Log
	rng         *rand.Rand
	logger      *zap.Logger
	initializer slam.Result

	stateEstimates *slam.Trajectory
	stateWeights   *bitree.Weights

	features       []featureEstimate
	featureWeights *bitree.Weights
	featureIndex   map[slam.FeatureID]int

	mapCache *slam.FeatureMap

	stateDim       float64
	featureDim     float64
	updatesPerStep int

	next          slam.Timestep
	logLikelihood float64

	proposals int
	accepts   int
}

// New creates an MCMC-SLAM estimator over the event log d and
// subscribes it to the log's events. The seed is resolved against the
// configuration per the reproducibility policy. A nil logger disables
// logging.
func New(d *data.Log, cfg *slam.Config, seed uint64, logger *zap.Logger) *MCMCSLAM {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &MCMCSLAM{
		data:           d,
		rng:            rand.New(rand.NewSource(cfg.SeedOption("mcmc_slam_seed", seed))),
		logger:         logger,
		stateEstimates: slam.NewTrajectory(),
		stateWeights:   bitree.NewWeights(),
		featureWeights: bitree.NewWeights(),
		featureIndex:   make(map[slam.FeatureID]int),
		mapCache:       &slam.FeatureMap{},
		stateDim:       cfg.ControlEdgeImportance,
		featureDim:     cfg.ObservationEdgeImportance,
		updatesPerStep: cfg.MCMCSteps,
	}

	d.Subscribe(m)
	return m
}

// SetInitializer supplies another estimator whose current estimate
// seeds new edges. The initializer must be subscribed to the event log
// before this estimator so its estimate is current when edges are
// added.
func (m *MCMCSLAM) SetInitializer(r slam.Result) {
	m.initializer = r
}

// LogLikelihood returns the log likelihood of the current trajectory
// and map labels. It equals the sum of every edge's log likelihood at
// all times.
func (m *MCMCSLAM) LogLikelihood() float64 {
	return m.logLikelihood
}

// edgeLogWeight converts an edge log likelihood into the edge's
// selection log weight log(d) - ll/d, where d is the edge importance.
func edgeLogWeight(logLikelihood, dim float64) float64 {
	return math.Log(dim) - logLikelihood/dim
}

func (m *MCMCSLAM) initializerAvailable(t slam.Timestep) bool {
	return m.initializer != nil && m.initializer.CurrentTimestep() >= t
}

// OnControl is a no-op; controls are read back from the event log.
func (m *MCMCSLAM) OnControl(slam.Timestep, slam.ControlModel) {}

// OnObservation is a no-op; observations are read back from the event
// log.
func (m *MCMCSLAM) OnObservation(slam.Timestep, slam.FeatureID, slam.ObservationModel, bool) {}

// OnCompleted logs the chain's acceptance statistics.
func (m *MCMCSLAM) OnCompleted() {
	m.logger.Info("mcmc-slam complete",
		zap.Int("proposals", m.proposals),
		zap.Int("accepts", m.accepts),
		zap.Float64("log_likelihood", m.logLikelihood))
}

// OnTimestep extends the spanning tree up to timestep t and performs
// the configured number of MCMC updates.
func (m *MCMCSLAM) OnTimestep(t slam.Timestep) {
	if t > m.data.CurrentTimestep() {
		panic(fmt.Sprintf("mcmc: timestep %d ahead of event log at %d", t, m.data.CurrentTimestep()))
	}

	updates := 0
	for m.next <= t {
		if m.next > 0 {
			m.addStateEdge()
		}

		m.data.ObservationsAt(m.next, func(id slam.FeatureID, z slam.ObservationModel) {
			if idx, ok := m.featureIndex[id]; ok {
				f := &m.features[idx]
				rel := m.stateEstimates.AccumulateRange(int(m.next), int(f.parent))
				m.logLikelihood += z.LogLikelihood(rel.Transform(f.estimate))
			} else {
				m.featureIndex[id] = len(m.features)
				m.addFeatureEdge(id, z)
				m.mapCache.Clear()
			}
		})

		if int(m.next) != m.stateEstimates.Len() {
			panic(fmt.Sprintf("mcmc: %d state edges at timestep %d", m.stateEstimates.Len(), m.next))
		}
		m.next++
		updates += m.updatesPerStep
	}

	for ; updates > 0; updates-- {
		m.update()
	}
}

// addStateEdge appends the state edge for the latest control, labeled
// from the initializer when available and from the control mean
// otherwise.
func (m *MCMCSLAM) addStateEdge() {
	t := slam.Timestep(m.stateEstimates.Len())
	u := m.data.Control(t)
	if m.stateDim == 0 {
		m.stateDim = float64(u.Dim())
	}

	est := u.Mean()
	if m.initializerAvailable(t + 1) {
		est = m.initializer.State(t).Inverse().Compose(m.initializer.State(t + 1))
	}

	ll := u.LogLikelihood(est)
	m.stateEstimates.PushBack(est)
	m.stateWeights.PushBack(math.Exp(edgeLogWeight(ll, m.stateDim)))
	m.logLikelihood += ll
}

// addFeatureEdge appends the feature edge for a first-seen feature,
// anchored at the current timestep.
func (m *MCMCSLAM) addFeatureEdge(id slam.FeatureID, z slam.ObservationModel) {
	t := m.next
	if m.featureDim == 0 {
		m.featureDim = float64(z.Dim())
	}

	est := z.Mean()
	if m.initializerAvailable(t) {
		est = m.initializer.State(t).Inverse().Transform(m.initializer.Feature(id))
	}

	ll := z.LogLikelihood(est)
	m.features = append(m.features, featureEstimate{
		id:       id,
		data:     m.data.Feature(id),
		parent:   t,
		estimate: est,
	})
	m.featureWeights.PushBack(math.Exp(edgeLogWeight(ll, m.featureDim)))
	m.logLikelihood += ll
}

// update performs one MCMC step: select an edge with probability
// proportional to its weight, propose a new label from the edge's own
// distribution, and accept with the normalized Metropolis-Hastings
// ratio.
func (m *MCMCSLAM) update() bool {
	sw := m.stateWeights.Total()
	fw := m.featureWeights.Total()
	if sw == 0 && fw == 0 {
		return false
	}

	m.proposals++
	if (sw+fw)*m.rng.Float64() < sw {
		for try := 0; try < maxDrawRetries; try++ {
			i := m.stateWeights.BinarySearch(sw * m.rng.Float64())
			if i < m.stateEstimates.Len() {
				return m.updateStateEdge(slam.Timestep(i))
			}
		}
	} else {
		for try := 0; try < maxDrawRetries; try++ {
			i := m.featureWeights.BinarySearch(fw * m.rng.Float64())
			if i < len(m.features) {
				return m.updateFeatureEdge(i)
			}
		}
	}
	return false
}

func (m *MCMCSLAM) updateStateEdge(t slam.Timestep) bool {
	u := m.data.Control(t)
	old := m.stateEstimates.At(int(t))
	proposed := u.Sample(m.rng)

	logRatio := m.stateLogRatio(t, proposed)
	oldLL := u.LogLikelihood(old)
	newLL := u.LogLikelihood(proposed)

	newW, ok := m.acceptEdge(logRatio, oldLL, newLL, m.stateDim)
	if !ok {
		return false
	}

	m.stateEstimates.Set(int(t), proposed)
	m.stateWeights.Set(int(t), newW)
	m.logLikelihood += logRatio - oldLL + newLL
	m.mapCache.Clear()
	m.accepts++
	return true
}

func (m *MCMCSLAM) updateFeatureEdge(i int) bool {
	f := &m.features[i]
	z := f.data.ObservationAt(0)
	proposed := z.Sample(m.rng)

	logRatio := m.obsLogRatio(f, 0, f.data.Len(), f.parent, proposed)
	oldLL := z.LogLikelihood(f.estimate)
	newLL := z.LogLikelihood(proposed)

	newW, ok := m.acceptEdge(logRatio, oldLL, newLL, m.featureDim)
	if !ok {
		return false
	}

	f.estimate = proposed
	m.featureWeights.Set(i, newW)
	m.logLikelihood += logRatio - oldLL + newLL
	m.mapCache.Clear()
	m.accepts++
	return true
}

// acceptEdge evaluates the Metropolis-Hastings test for an edge
// relabeling. The acceptance ratio is normalized by
// 1 + (w' - w)/W because the edge selection probability itself changes
// with the proposal. It returns the proposed edge weight and whether
// the proposal was accepted.
func (m *MCMCSLAM) acceptEdge(logRatio, oldLL, newLL, dim float64) (float64, bool) {
	oldLogW := edgeLogWeight(oldLL, dim)
	newLogW := edgeLogWeight(newLL, dim)
	newW := math.Exp(newLogW)
	oldW := math.Exp(oldLogW)

	total := m.stateWeights.Total() + m.featureWeights.Total()
	normalizer := 1 + (newW-oldW)/total

	if normalizer*m.rng.Float64() < math.Exp(logRatio+newLogW-oldLogW) {
		return newW, true
	}
	return newW, false
}

// stateLogRatio computes the change in log posterior from relabeling
// the state edge at timestep t. The edge cuts the spanning tree in
// two; a feature whose parent timestep is after t lies on the far side
// of the cut, so only its observations before t+1 are re-scored, and
// conversely only the observations after t for features rooted at or
// before t.
func (m *MCMCSLAM) stateLogRatio(t slam.Timestep, proposed pose.Pose) float64 {
	var logRatio float64

	for i := range m.features {
		f := &m.features[i]
		mid := f.data.UpperBound(t)

		if t < f.parent {
			rel := proposed.Compose(m.stateEstimates.AccumulateRange(int(t)+1, int(f.parent)))
			logRatio += m.obsLogRatio(f, 0, mid, t, rel.Transform(f.estimate))
		} else {
			rel := proposed.Inverse().Compose(m.stateEstimates.AccumulateRange(int(t), int(f.parent)))
			logRatio += m.obsLogRatio(f, mid, f.data.Len(), t+1, rel.Transform(f.estimate))
		}
	}
	return logRatio
}

// obsLogRatio sums the log likelihood changes of the feature's
// observations in index range [from, to), skipping the feature edge
// itself. newObs is the proposed feature position relative to the pose
// at obsT; the old position is recomposed from the current labels.
// Both are walked along the trajectory from observation to observation
// by composing the intermediate state increments.
func (m *MCMCSLAM) obsLogRatio(f *featureEstimate, from, to int, obsT slam.Timestep, newObs pose.Point) float64 {
	oldObs := m.stateEstimates.AccumulateRange(int(obsT), int(f.parent)).Transform(f.estimate)

	var logRatio float64
	for i := from; i < to; i++ {
		step := f.data.StepAt(i)
		if step == f.parent {
			continue
		}

		change := m.stateEstimates.AccumulateRange(int(step), int(obsT))
		newObs = change.Transform(newObs)
		oldObs = change.Transform(oldObs)
		obsT = step

		z := f.data.ObservationAt(i)
		logRatio += z.LogLikelihood(newObs) - z.LogLikelihood(oldObs)
	}
	return logRatio
}
