package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/data"
	"github.com/milosgajdos/go-slam/model"
	"github.com/milosgajdos/go-slam/pose"
	slamrand "github.com/milosgajdos/go-slam/rand"
)

func simConfig() Config {
	return Config{
		ControlCov:     mat.NewSymDense(3, []float64{1e-3, 0, 0, 0, 1e-3, 0, 0, 0, 1e-4}),
		ObservationCov: mat.NewSymDense(2, []float64{1e-2, 0, 0, 1e-3}),
		MaxRange:       10,
		Seed:           42,
	}
}

func TestSimulatorRun(t *testing.T) {
	assert := assert.New(t)

	d := data.New(nil)
	landmarks := []pose.Point{{X: 2, Y: 1}, {X: 4, Y: -1}}
	s, err := New(d, landmarks, simConfig())
	assert.NoError(err)

	increments := make([]pose.Pose, 5)
	for i := range increments {
		increments[i] = pose.Pose{X: 1}
	}
	assert.NoError(s.Run(increments))

	assert.Equal(slam.Timestep(5), d.CurrentTimestep())
	assert.InDelta(5.0, s.TruePose(5).X, 1e-12)
	assert.Equal(2, d.NumFeatures())
}

func TestSimulatorMaxRange(t *testing.T) {
	assert := assert.New(t)

	d := data.New(nil)
	// one landmark close, one far beyond sensor range
	landmarks := []pose.Point{{X: 1, Y: 0}, {X: 100, Y: 0}}
	s, err := New(d, landmarks, simConfig())
	assert.NoError(err)

	assert.NoError(s.Run([]pose.Pose{{X: 1}}))
	assert.Equal(1, d.NumFeatures())
}

func TestDeadReckoning(t *testing.T) {
	assert := assert.New(t)

	d := data.New(nil)
	dr := NewDeadReckoning(d)

	cov := mat.NewSymDense(3, []float64{1e-2, 0, 0, 0, 1e-2, 0, 0, 0, 1e-3})
	for i := 0; i < 3; i++ {
		z, err := model.NewRangeBearing(pose.Point{X: 3 - float64(i), Y: 0},
			mat.NewSymDense(2, []float64{1e-2, 0, 0, 1e-3}))
		assert.NoError(err)
		d.AddObservation(0, z)
		d.EndStep()

		u, err := model.NewOdometry(pose.Pose{X: 1}, cov)
		assert.NoError(err)
		d.AddControl(u)
	}
	d.EndStep()

	// dead reckoning composes the exact control means
	assert.Equal(slam.Timestep(3), dr.CurrentTimestep())
	assert.InDelta(3.0, dr.State(3).X, 1e-12)
	assert.InDelta(0.0, dr.State(3).Y, 1e-12)

	// the feature sits where the first observation put it
	pt := dr.Feature(0)
	assert.InDelta(3.0, pt.X, 1e-12)
	assert.InDelta(0.0, pt.Y, 1e-12)
}

func TestRMSErrors(t *testing.T) {
	assert := assert.New(t)

	d := data.New(nil)
	dr := NewDeadReckoning(d)

	cov := mat.NewSymDense(3, []float64{1e-2, 0, 0, 0, 1e-2, 0, 0, 0, 1e-3})
	for i := 0; i < 4; i++ {
		d.EndStep()
		u, err := model.NewOdometry(pose.Pose{X: 1}, cov)
		assert.NoError(err)
		d.AddControl(u)
	}
	d.EndStep()

	// truth equal to the estimate gives zero error
	truth := make([]pose.Pose, 5)
	for ts := range truth {
		truth[ts] = dr.State(slam.Timestep(ts))
	}
	assert.InDelta(0.0, RMSTrajectoryError(truth, dr), 1e-12)

	// shifting the truth by 1 in y gives RMS 1
	for ts := range truth {
		truth[ts].Y += 1
	}
	assert.InDelta(1.0, RMSTrajectoryError(truth, dr), 1e-12)

	assert.InDelta(0.0, RMSMapError(nil, dr), 1e-12)
}

func TestRandomLandmarks(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{4, 0, 0, 4})
	a, err := RandomLandmarks(slamrand.NewSeeded(1), 10, pose.Point{X: 5, Y: 5}, cov)
	assert.NoError(err)
	assert.Len(a, 10)

	b, err := RandomLandmarks(slamrand.NewSeeded(1), 10, pose.Point{X: 5, Y: 5}, cov)
	assert.NoError(err)
	assert.Equal(a, b)
}

func TestNewPlot(t *testing.T) {
	assert := assert.New(t)

	d := data.New(nil)
	dr := NewDeadReckoning(d)

	cov := mat.NewSymDense(3, []float64{1e-2, 0, 0, 0, 1e-2, 0, 0, 0, 1e-3})
	d.EndStep()
	u, err := model.NewOdometry(pose.Pose{X: 1}, cov)
	assert.NoError(err)
	d.AddControl(u)
	d.EndStep()

	truth := []pose.Pose{{}, {X: 1}}
	p, err := NewPlot(truth, []pose.Point{{X: 1, Y: 1}}, dr)
	assert.NoError(err)
	assert.NotNil(p)
}