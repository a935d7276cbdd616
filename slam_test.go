package slam

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/milosgajdos/go-slam/pose"
)

func TestTrajectoryComposition(t *testing.T) {
	assert := assert.New(t)

	traj := NewTrajectory()
	increments := []pose.Pose{
		{X: 1, Heading: 0.1},
		{X: 1, Y: 0.5, Heading: -0.2},
		{X: 2, Heading: 0.3},
	}
	for _, inc := range increments {
		traj.PushBack(inc)
	}

	// prefix compositions agree with naive left-to-right folding
	want := pose.Identity()
	for i, inc := range increments {
		want = want.Compose(inc)
		got := traj.Accumulate(i + 1)
		assert.InDelta(want.X, got.X, 1e-12)
		assert.InDelta(want.Y, got.Y, 1e-12)
		assert.InDelta(want.Heading, got.Heading, 1e-12)
	}

	// accumulate(a, b) composes -prefix(a) with prefix(b)
	rel := traj.AccumulateRange(1, 3)
	check := traj.Accumulate(1).Inverse().Compose(traj.Accumulate(3))
	assert.InDelta(check.X, rel.X, 1e-12)
	assert.InDelta(check.Y, rel.Y, 1e-12)
	assert.InDelta(check.Heading, rel.Heading, 1e-12)
}
