package graph

import (
	"fmt"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/pose"
)

// CurrentTimestep returns the latest estimated timestep.
func (g *GraphSLAM) CurrentTimestep() slam.Timestep {
	if g.next == 0 {
		return 0
	}
	return g.next - 1
}

// State returns the pose vertex estimate at time t.
func (g *GraphSLAM) State(t slam.Timestep) pose.Pose {
	if int(t) >= len(g.poses) {
		panic(fmt.Sprintf("graph: state %d requested with %d pose vertices", t, len(g.poses)))
	}
	return g.poses[t].estimate
}

// Feature returns the landmark vertex estimate of the feature id.
func (g *GraphSLAM) Feature(id slam.FeatureID) pose.Point {
	lm, ok := g.landmarks[id]
	if !ok {
		panic(fmt.Sprintf("graph: unknown feature %d", id))
	}
	return lm.estimate
}

// Trajectory returns the estimated trajectory, rebuilt lazily from the
// pose vertices.
func (g *GraphSLAM) Trajectory() *slam.Trajectory {
	ct := int(g.CurrentTimestep())
	if g.trajCache.Len() != ct {
		g.trajCache.Clear()
		for t := 1; t <= ct; t++ {
			g.trajCache.PushBackAccumulated(g.poses[t].estimate)
		}
	}
	return g.trajCache
}

// FeatureMap returns the estimated feature map, rebuilt lazily from
// the landmark vertices.
func (g *GraphSLAM) FeatureMap() *slam.FeatureMap {
	if g.mapCache.Len() != len(g.landmarks) {
		g.mapCache.Clear()
		for _, id := range g.landmarkOrder {
			g.mapCache.Set(id, g.landmarks[id].estimate)
		}
	}
	return g.mapCache
}

// InitialState returns the fixed origin pose.
func (g *GraphSLAM) InitialState() pose.Pose {
	return g.poses[0].estimate
}
