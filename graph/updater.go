package graph

import (
	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/data"
)

// Updater drives the optimizer from the event log: a configured number
// of solver iterations after every timestep and another batch when the
// simulation completes.
type Updater struct {
	graph    *GraphSLAM
	steps    int
	endSteps int
}

// NewUpdater wires an updater for g into the event log d. The step
// counts come from the configuration's solver options.
func NewUpdater(d *data.Log, g *GraphSLAM, cfg *slam.Config) *Updater {
	u := &Updater{graph: g, steps: cfg.GraphSteps, endSteps: cfg.GraphEndSteps}
	d.Subscribe(u)
	return u
}

// OnControl is a no-op; the graph itself listens for controls.
func (u *Updater) OnControl(slam.Timestep, slam.ControlModel) {}

// OnObservation is a no-op; the graph itself listens for observations.
func (u *Updater) OnObservation(slam.Timestep, slam.FeatureID, slam.ObservationModel, bool) {}

// OnTimestep runs the per-step optimizer iterations.
func (u *Updater) OnTimestep(slam.Timestep) {
	u.graph.Optimize(u.steps)
}

// OnCompleted runs the terminal optimizer iterations.
func (u *Updater) OnCompleted() {
	u.graph.Optimize(u.endSteps)
}
