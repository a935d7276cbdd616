package sim

import (
	"fmt"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/data"
	"github.com/milosgajdos/go-slam/pose"
)

// DeadReckoning is the baseline estimator: it composes the control
// means with no correction and places each feature where its first
// observation says. It implements slam.Listener and slam.Result, and
// serves as an initializer for the other estimators and as the
// baseline error the filters are measured against.
type DeadReckoning struct {
	trajectory *slam.Trajectory
	features   *slam.FeatureMap
	next       slam.Timestep
}

// NewDeadReckoning creates a dead reckoning estimator over the event
// log d and subscribes it to the log's events.
func NewDeadReckoning(d *data.Log) *DeadReckoning {
	r := &DeadReckoning{
		trajectory: slam.NewTrajectory(),
		features:   &slam.FeatureMap{},
	}
	d.Subscribe(r)
	return r
}

// OnControl appends the control mean as the next trajectory increment.
func (r *DeadReckoning) OnControl(t slam.Timestep, u slam.ControlModel) {
	if int(t) != r.trajectory.Len() {
		panic(fmt.Sprintf("sim: dead reckoning control %d with %d increments", t, r.trajectory.Len()))
	}
	r.trajectory.PushBack(u.Mean())
}

// OnObservation places a first-seen feature at the observation mean
// relative to the current pose.
func (r *DeadReckoning) OnObservation(t slam.Timestep, id slam.FeatureID, z slam.ObservationModel, newFeature bool) {
	if !newFeature {
		return
	}
	r.features.Set(id, r.State(t).Transform(z.Mean()))
}

// OnTimestep advances the estimator's timestep.
func (r *DeadReckoning) OnTimestep(t slam.Timestep) {
	if t >= r.next {
		r.next = t + 1
	}
}

// OnCompleted is a no-op.
func (r *DeadReckoning) OnCompleted() {}

// CurrentTimestep returns the latest estimated timestep.
func (r *DeadReckoning) CurrentTimestep() slam.Timestep {
	return slam.Timestep(r.trajectory.Len())
}

// State returns the composed control means up to time t.
func (r *DeadReckoning) State(t slam.Timestep) pose.Pose {
	return r.trajectory.Accumulate(int(t))
}

// Feature returns the feature estimate from its first observation.
func (r *DeadReckoning) Feature(id slam.FeatureID) pose.Point {
	pt, ok := r.features.Get(id)
	if !ok {
		panic(fmt.Sprintf("sim: unknown feature %d", id))
	}
	return pt
}

// Trajectory returns the dead reckoned trajectory.
func (r *DeadReckoning) Trajectory() *slam.Trajectory {
	return r.trajectory
}

// FeatureMap returns the feature map.
func (r *DeadReckoning) FeatureMap() *slam.FeatureMap {
	return r.features
}

// InitialState returns the pose at time 0.
func (r *DeadReckoning) InitialState() pose.Pose {
	return pose.Identity()
}
