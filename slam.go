// Package slam defines the contracts shared by the SLAM posterior
// estimators: probabilistic models of controls and observations, the
// event listener interface fed by the data log, and the result
// interface consumed by plotters and evaluators.
package slam

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/milosgajdos/go-slam/bitree"
	"github.com/milosgajdos/go-slam/pose"
)

// Timestep identifies a discrete event boundary. Timesteps are
// nonnegative and monotonically increasing.
type Timestep int

// FeatureID identifies a landmark, stable across the lifetime of a run.
type FeatureID uint64

// Trajectory is a Fenwick tree of pose increments; the pose at time t
// is the prefix composition of the first t increments.
type Trajectory = bitree.Tree[pose.Pose]

// NewTrajectory returns an empty trajectory.
func NewTrajectory() *Trajectory {
	return bitree.New[pose.Pose](pose.Group{})
}

// ControlModel is a Gaussian distribution over state increments. Its
// vector coordinates are the model's own parametrization of an
// increment; the bijection to the pose group is exposed through
// ToVector and FromVector.
type ControlModel interface {
	// Dim returns the dimension of the model's vector coordinates.
	Dim() int
	// Mean returns the mean state increment.
	Mean() pose.Pose
	// CholCov returns the lower-triangular Cholesky factor of the
	// covariance in vector coordinates.
	CholCov() *mat.TriDense
	// Sample draws a state increment.
	Sample(rng *rand.Rand) pose.Pose
	// LogLikelihood returns the log density of the increment p.
	LogLikelihood(p pose.Pose) float64
	// ToVector maps a state increment into vector coordinates.
	ToVector(p pose.Pose) *mat.VecDense
	// FromVector maps vector coordinates back to a state increment.
	FromVector(v mat.Vector) pose.Pose
	// Subtract returns the residual a - b in vector coordinates,
	// wrapping angular components.
	Subtract(a, b mat.Vector) *mat.VecDense
}

// ObservationModel is a Gaussian distribution over observations of a
// feature relative to the observing pose.
type ObservationModel interface {
	// Dim returns the dimension of the model's vector coordinates.
	Dim() int
	// Mean returns the mean relative feature position.
	Mean() pose.Point
	// CholCov returns the lower-triangular Cholesky factor of the
	// covariance in vector coordinates.
	CholCov() *mat.TriDense
	// Sample draws a relative feature position.
	Sample(rng *rand.Rand) pose.Point
	// LogLikelihood returns the log density of the relative position pt.
	LogLikelihood(pt pose.Point) float64
	// ToVector maps a relative feature position into vector coordinates.
	ToVector(pt pose.Point) *mat.VecDense
	// FromVector maps vector coordinates back to a relative position.
	FromVector(v mat.Vector) pose.Point
	// Subtract returns the residual a - b in vector coordinates,
	// wrapping angular components.
	Subtract(a, b mat.Vector) *mat.VecDense
}

// Listener receives event log notifications. Within one timestep all
// observations are delivered before the next control and before
// OnTimestep.
type Listener interface {
	// OnControl is fired when the control taking state t to t+1 is
	// appended.
	OnControl(t Timestep, u ControlModel)
	// OnObservation is fired when an observation of feature id is
	// recorded at timestep t. newFeature is true iff this is the first
	// observation of id.
	OnObservation(t Timestep, id FeatureID, z ObservationModel, newFeature bool)
	// OnTimestep is fired at the end of timestep t; estimators advance
	// their posterior here.
	OnTimestep(t Timestep)
	// OnCompleted is fired once when the simulation ends.
	OnCompleted()
}

// Result is the posterior estimate contract consumed by the plotter
// and the error evaluator.
type Result interface {
	// CurrentTimestep returns the latest estimated timestep.
	CurrentTimestep() Timestep
	// State returns the pose estimate at time t, 0 <= t <= CurrentTimestep.
	State(t Timestep) pose.Pose
	// Feature returns the world-frame estimate of the feature id.
	Feature(id FeatureID) pose.Point
	// Trajectory returns the estimated trajectory as pose increments.
	Trajectory() *Trajectory
	// FeatureMap returns the estimated feature map.
	FeatureMap() *FeatureMap
	// InitialState returns the pose at time 0.
	InitialState() pose.Pose
}
