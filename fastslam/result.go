package fastslam

import (
	"fmt"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/pose"
	"github.com/milosgajdos/go-slam/ukf"
)

// CurrentTimestep returns the latest estimated timestep.
func (f *FastSLAM) CurrentTimestep() slam.Timestep {
	if f.next == 0 {
		return 0
	}
	return f.next - 1
}

// State returns the pose estimate of the maximum weight particle at
// time t.
func (f *FastSLAM) State(t slam.Timestep) pose.Pose {
	ct := f.CurrentTimestep()
	if t > ct {
		panic(fmt.Sprintf("fastslam: state %d requested, estimator at %d", t, ct))
	}

	if !f.discardHistory && f.trajectory.Len() != int(ct) {
		n := f.filter.MaxWeightParticle().node
		for s := ct; s > t; s-- {
			n = n.prev
		}
		return n.state
	}
	return f.trajectory.Accumulate(int(t))
}

// Feature returns the maximum weight particle's estimate of the
// feature id.
func (f *FastSLAM) Feature(id slam.FeatureID) pose.Point {
	g, ok := f.filter.MaxWeightParticle().features.Get(id)
	if !ok {
		panic(fmt.Sprintf("fastslam: unknown feature %d", id))
	}
	return pose.PointFromVector(g.Mean())
}

// Trajectory returns the estimated trajectory, materializing it from
// the maximum weight particle's state list when history is kept.
func (f *FastSLAM) Trajectory() *slam.Trajectory {
	ct := int(f.CurrentTimestep())
	if !f.discardHistory && f.trajectory.Len() != ct {
		states := make([]pose.Pose, 0, ct)
		for n := f.filter.MaxWeightParticle().node; n.prev != nil; n = n.prev {
			states = append(states, n.state)
		}

		f.trajectory.Clear()
		for i := len(states) - 1; i >= 0; i-- {
			f.trajectory.PushBackAccumulated(states[i])
		}
	}

	if f.trajectory.Len() != ct {
		panic(fmt.Sprintf("fastslam: trajectory length %d at timestep %d", f.trajectory.Len(), ct))
	}
	return f.trajectory
}

// FeatureMap returns the maximum weight particle's feature map.
func (f *FastSLAM) FeatureMap() *slam.FeatureMap {
	if f.mapCache.Len() != f.numFeatures {
		f.mapCache.Clear()
		f.filter.MaxWeightParticle().features.ForEach(func(id slam.FeatureID, g *ukf.Gaussian) {
			f.mapCache.Set(id, pose.PointFromVector(g.Mean()))
		})
	}
	return f.mapCache
}

// InitialState returns the pose at time 0.
func (f *FastSLAM) InitialState() pose.Pose {
	return pose.Identity()
}
