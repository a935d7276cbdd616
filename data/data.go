// Package data implements the shared SLAM event log: an append-only
// record of control and observation distributions, indexed by timestep
// and by feature, broadcasting every event to subscribed listeners.
package data

import (
	"fmt"

	"go.uber.org/zap"

	slam "github.com/milosgajdos/go-slam"
)

// FeatureData is the sparse observation timeline of one feature,
// ordered by timestep. The earliest timestep is the feature's parent
// timestep.
type FeatureData struct {
	steps []slam.Timestep
	obs   []slam.ObservationModel
}

// Len returns the number of observations of the feature.
func (f *FeatureData) Len() int {
	return len(f.steps)
}

// ParentTimestep returns the timestep of the first observation.
func (f *FeatureData) ParentTimestep() slam.Timestep {
	return f.steps[0]
}

// StepAt returns the timestep of the i-th observation.
func (f *FeatureData) StepAt(i int) slam.Timestep {
	return f.steps[i]
}

// ObservationAt returns the i-th observation.
func (f *FeatureData) ObservationAt(i int) slam.ObservationModel {
	return f.obs[i]
}

// At returns the observation recorded at timestep t.
func (f *FeatureData) At(t slam.Timestep) (slam.ObservationModel, bool) {
	for i, s := range f.steps {
		if s == t {
			return f.obs[i], true
		}
		if s > t {
			break
		}
	}
	return nil, false
}

// UpperBound returns the index of the first observation with timestep
// greater than t.
func (f *FeatureData) UpperBound(t slam.Timestep) int {
	lo, hi := 0, len(f.steps)
	for lo < hi {
		mid := (lo + hi) / 2
		if f.steps[mid] <= t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Each visits the observations in timestep order.
func (f *FeatureData) Each(visit func(t slam.Timestep, z slam.ObservationModel)) {
	for i, s := range f.steps {
		visit(s, f.obs[i])
	}
}

type observationRef struct {
	id  slam.FeatureID
	obs slam.ObservationModel
}

// Log stores all controls and observations of a run as probability
// distributions and notifies listeners as events are appended. Entries
// are append-only and never mutated; mutation is the driver's
// exclusive responsibility.
type Log struct {
	controls []slam.ControlModel
	features map[slam.FeatureID]*FeatureData
	byStep   [][]observationRef

	listeners []slam.Listener
	logger    *zap.Logger
}

// New creates an empty event log. A nil logger disables logging.
func New(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		features: make(map[slam.FeatureID]*FeatureData),
		logger:   logger,
	}
}

// Subscribe registers a listener for subsequent events.
func (l *Log) Subscribe(ls slam.Listener) {
	l.listeners = append(l.listeners, ls)
}

// Unsubscribe drops a listener; its slot is compacted on the next
// broadcast.
func (l *Log) Unsubscribe(ls slam.Listener) {
	for i := range l.listeners {
		if l.listeners[i] == ls {
			l.listeners[i] = nil
		}
	}
}

// broadcast invokes fire for each live listener, compacting dropped
// slots in place.
func (l *Log) broadcast(fire func(slam.Listener)) {
	live := l.listeners[:0]
	for _, ls := range l.listeners {
		if ls == nil {
			continue
		}
		fire(ls)
		live = append(live, ls)
	}
	for i := len(live); i < len(l.listeners); i++ {
		l.listeners[i] = nil
	}
	l.listeners = live
}

// CurrentTimestep returns the number of controls recorded so far.
func (l *Log) CurrentTimestep() slam.Timestep {
	return slam.Timestep(len(l.controls))
}

// Control returns the control taking state t to state t+1.
func (l *Log) Control(t slam.Timestep) slam.ControlModel {
	return l.controls[t]
}

// Feature returns the observation timeline of the feature id, or nil
// if the feature has never been observed.
func (l *Log) Feature(id slam.FeatureID) *FeatureData {
	return l.features[id]
}

// NumFeatures returns the number of distinct observed features.
func (l *Log) NumFeatures() int {
	return len(l.features)
}

// ObservationsAt visits all observations recorded at timestep t in
// arrival order.
func (l *Log) ObservationsAt(t slam.Timestep, visit func(id slam.FeatureID, z slam.ObservationModel)) {
	if int(t) >= len(l.byStep) {
		return
	}
	for _, ref := range l.byStep[t] {
		visit(ref.id, ref.obs)
	}
}

// AddControl appends the control taking the current timestep to the
// next one and notifies listeners.
func (l *Log) AddControl(u slam.ControlModel) {
	t := l.CurrentTimestep()
	l.controls = append(l.controls, u)
	l.broadcast(func(ls slam.Listener) { ls.OnControl(t, u) })
}

// AddObservation records an observation of the feature id at the
// current timestep and notifies listeners. A repeated observation of
// the same feature within one timestep is ignored.
func (l *Log) AddObservation(id slam.FeatureID, z slam.ObservationModel) {
	t := l.CurrentTimestep()

	f, known := l.features[id]
	if !known {
		f = &FeatureData{}
		l.features[id] = f
	}
	if f.Len() > 0 && f.steps[f.Len()-1] == t {
		l.logger.Debug("duplicate observation ignored",
			zap.Uint64("feature", uint64(id)), zap.Int("timestep", int(t)))
		return
	}
	if f.Len() > 0 && f.steps[f.Len()-1] > t {
		panic(fmt.Sprintf("data: observation of feature %d at timestep %d arrived after timestep %d",
			id, t, f.steps[f.Len()-1]))
	}

	f.steps = append(f.steps, t)
	f.obs = append(f.obs, z)
	for int(t) >= len(l.byStep) {
		l.byStep = append(l.byStep, nil)
	}
	l.byStep[t] = append(l.byStep[t], observationRef{id: id, obs: z})

	newFeature := !known
	l.broadcast(func(ls slam.Listener) { ls.OnObservation(t, id, z, newFeature) })
}

// EndStep signals the end of the current timestep; estimators advance
// their posteriors here.
func (l *Log) EndStep() {
	t := l.CurrentTimestep()
	l.broadcast(func(ls slam.Listener) { ls.OnTimestep(t) })
}

// EndSimulation signals that no further events will arrive.
func (l *Log) EndSimulation() {
	l.logger.Info("simulation complete",
		zap.Int("timesteps", int(l.CurrentTimestep())), zap.Int("features", len(l.features)))
	l.broadcast(func(ls slam.Listener) { ls.OnCompleted() })
}
