package sim

import (
	"math"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/pose"
)

// RMSTrajectoryError returns the root mean square position error of
// the estimated trajectory against the ground truth poses.
func RMSTrajectoryError(truth []pose.Pose, r slam.Result) float64 {
	n := int(r.CurrentTimestep()) + 1
	if n > len(truth) {
		n = len(truth)
	}
	if n == 0 {
		return 0
	}

	var sum float64
	for t := 0; t < n; t++ {
		d := r.State(slam.Timestep(t)).Position().Sub(truth[t].Position())
		sum += d.X*d.X + d.Y*d.Y
	}
	return math.Sqrt(sum / float64(n))
}

// RMSMapError returns the root mean square position error of the
// estimated feature map against the true landmarks, over the features
// the estimator has seen. Landmark ids are their indices.
func RMSMapError(landmarks []pose.Point, r slam.Result) float64 {
	fm := r.FeatureMap()
	if fm.Len() == 0 {
		return 0
	}

	var sum float64
	n := 0
	fm.Each(func(id slam.FeatureID, pt pose.Point) {
		if int(id) >= len(landmarks) {
			return
		}
		d := pt.Sub(landmarks[id])
		sum += d.X*d.X + d.Y*d.Y
		n++
	})
	if n == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(n))
}
