package mcmc

import (
	"fmt"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/pose"
)

// CurrentTimestep returns the latest estimated timestep.
func (m *MCMCSLAM) CurrentTimestep() slam.Timestep {
	return slam.Timestep(m.stateEstimates.Len())
}

// State returns the pose estimate at time t: the prefix composition of
// the state edge labels.
func (m *MCMCSLAM) State(t slam.Timestep) pose.Pose {
	if t > m.CurrentTimestep() {
		panic(fmt.Sprintf("mcmc: state %d requested, estimator at %d", t, m.CurrentTimestep()))
	}
	return m.stateEstimates.Accumulate(int(t))
}

// Feature returns the world frame estimate of the feature id: its
// edge label applied at the parent timestep's pose.
func (m *MCMCSLAM) Feature(id slam.FeatureID) pose.Point {
	idx, ok := m.featureIndex[id]
	if !ok {
		panic(fmt.Sprintf("mcmc: unknown feature %d", id))
	}
	f := &m.features[idx]
	return m.State(f.parent).Transform(f.estimate)
}

// Trajectory returns the estimated trajectory as state edge labels.
func (m *MCMCSLAM) Trajectory() *slam.Trajectory {
	return m.stateEstimates
}

// FeatureMap returns the estimated feature map, rebuilt lazily after
// accepted moves.
func (m *MCMCSLAM) FeatureMap() *slam.FeatureMap {
	if m.mapCache.Len() != len(m.features) {
		m.mapCache.Clear()
		for i := range m.features {
			f := &m.features[i]
			m.mapCache.Set(f.id, m.State(f.parent).Transform(f.estimate))
		}
	}
	return m.mapCache
}

// InitialState returns the pose at time 0.
func (m *MCMCSLAM) InitialState() pose.Pose {
	return pose.Identity()
}
