// Package sim provides a discrete time planar robot simulator that
// feeds the shared event log, a dead reckoning baseline estimator,
// error evaluation against ground truth, and plotting of simulation
// results.
package sim

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/data"
	"github.com/milosgajdos/go-slam/model"
	"github.com/milosgajdos/go-slam/pose"
	slamrand "github.com/milosgajdos/go-slam/rand"
)

// Config is the simulator configuration.
type Config struct {
	// ControlCov is the odometry noise covariance in
	// (dx, dy, dheading) coordinates.
	ControlCov mat.Symmetric
	// ObservationCov is the sensor noise covariance in
	// (range, bearing) coordinates.
	ObservationCov mat.Symmetric
	// MaxRange limits which landmarks the sensor can see; zero means
	// unlimited.
	MaxRange float64
	// Seed seeds the simulator's own noise generator.
	Seed uint64
}

// Simulator drives a ground truth robot along supplied control
// increments, emitting noisy odometry and landmark observations into
// the event log. Within each timestep observations are delivered
// first, then the step boundary, then the control, per the ordering
// contract of the log.
type Simulator struct {
	log *data.Log
	rng *rand.Rand

	controlCov mat.Symmetric
	obsCov     mat.Symmetric
	maxRange   float64

	controlNoise *model.Gaussian
	obsNoise     *model.Gaussian

	landmarks []pose.Point
	truth     []pose.Pose
}

// New creates a simulator over the event log with the given true
// landmark positions. It returns error if either noise covariance is
// not positive definite.
func New(log *data.Log, landmarks []pose.Point, cfg Config) (*Simulator, error) {
	controlNoise, err := model.NewGaussian(make([]float64, 3), cfg.ControlCov)
	if err != nil {
		return nil, fmt.Errorf("invalid control covariance: %w", err)
	}
	obsNoise, err := model.NewGaussian(make([]float64, 2), cfg.ObservationCov)
	if err != nil {
		return nil, fmt.Errorf("invalid observation covariance: %w", err)
	}

	return &Simulator{
		log:          log,
		rng:          slamrand.NewSeeded(cfg.Seed),
		controlCov:   cfg.ControlCov,
		obsCov:       cfg.ObservationCov,
		maxRange:     cfg.MaxRange,
		controlNoise: controlNoise,
		obsNoise:     obsNoise,
		landmarks:    landmarks,
		truth:        []pose.Pose{pose.Identity()},
	}, nil
}

// TruePose returns the ground truth pose at timestep t.
func (s *Simulator) TruePose(t slam.Timestep) pose.Pose {
	return s.truth[t]
}

// TrueLandmarks returns the ground truth landmark positions; the
// feature id of a landmark is its index.
func (s *Simulator) TrueLandmarks() []pose.Point {
	return s.landmarks
}

// observe emits a noisy range-bearing observation of every landmark
// within sensor range of the current true pose.
func (s *Simulator) observe() error {
	current := s.truth[len(s.truth)-1]
	for i, lm := range s.landmarks {
		rel := current.Inverse().Transform(lm)
		if s.maxRange > 0 && rel.Range() > s.maxRange {
			continue
		}

		noise := s.obsNoise.Rand(s.rng)
		r := rel.Range() + noise[0]
		sin, cos := math.Sincos(pose.WrapAngle(rel.Bearing() + noise[1]))
		noisy := pose.Point{X: r * cos, Y: r * sin}

		obs, err := model.NewRangeBearing(noisy, s.obsCov)
		if err != nil {
			return err
		}
		s.log.AddObservation(slam.FeatureID(i), obs)
	}
	return nil
}

// Step observes the current timestep, signals the step boundary, and
// then applies the true increment, recording a noisy odometry reading
// of it.
func (s *Simulator) Step(increment pose.Pose) error {
	if err := s.observe(); err != nil {
		return err
	}
	s.log.EndStep()

	noise := s.controlNoise.Rand(s.rng)
	measured := pose.Pose{
		X:       increment.X + noise[0],
		Y:       increment.Y + noise[1],
		Heading: pose.WrapAngle(increment.Heading + noise[2]),
	}
	u, err := model.NewOdometry(measured, s.controlCov)
	if err != nil {
		return err
	}

	s.truth = append(s.truth, s.truth[len(s.truth)-1].Compose(increment))
	s.log.AddControl(u)
	return nil
}

// Run steps through all increments, closes the final timestep and ends
// the simulation.
func (s *Simulator) Run(increments []pose.Pose) error {
	for _, inc := range increments {
		if err := s.Step(inc); err != nil {
			return err
		}
	}
	if err := s.observe(); err != nil {
		return err
	}
	s.log.EndStep()
	s.log.EndSimulation()
	return nil
}

// RandomLandmarks scatters n landmarks around center with the given
// position covariance.
func RandomLandmarks(rng *rand.Rand, n int, center pose.Point, cov mat.Symmetric) ([]pose.Point, error) {
	samples, err := slamrand.WithCovN(rng, cov, n)
	if err != nil {
		return nil, err
	}
	landmarks := make([]pose.Point, n)
	for i := range landmarks {
		landmarks[i] = pose.Point{
			X: center.X + samples.At(0, i),
			Y: center.Y + samples.At(1, i),
		}
	}
	return landmarks, nil
}
