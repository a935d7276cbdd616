package pose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComposeInverse(t *testing.T) {
	assert := assert.New(t)

	for _, p := range []Pose{
		{},
		{X: 1, Y: 2, Heading: 0.5},
		{X: -3, Y: 0.1, Heading: -3},
		{X: 0, Y: 0, Heading: math.Pi},
	} {
		id := p.Compose(p.Inverse())
		assert.InDelta(0, id.X, 1e-12)
		assert.InDelta(0, id.Y, 1e-12)
		assert.InDelta(0, id.Heading, 1e-12)
	}
}

func TestInverseAction(t *testing.T) {
	assert := assert.New(t)

	p := Pose{X: 2, Y: -1, Heading: 1.2}
	x := Point{X: 3, Y: 4}

	// -p + (p + x) == x
	got := p.Inverse().Transform(p.Transform(x))
	assert.InDelta(x.X, got.X, 1e-12)
	assert.InDelta(x.Y, got.Y, 1e-12)
}

func TestComposeAssociative(t *testing.T) {
	assert := assert.New(t)

	p := Pose{X: 1, Y: 2, Heading: 0.3}
	q := Pose{X: -0.5, Y: 1, Heading: -1.1}
	r := Pose{X: 2, Y: 0, Heading: 2.5}

	a := p.Compose(q).Compose(r)
	b := p.Compose(q.Compose(r))
	assert.InDelta(a.X, b.X, 1e-12)
	assert.InDelta(a.Y, b.Y, 1e-12)
	assert.InDelta(WrapAngle(a.Heading-b.Heading), 0, 1e-12)
}

func TestVectorRoundTrip(t *testing.T) {
	assert := assert.New(t)

	p := Pose{X: 1.5, Y: -2.5, Heading: 2.25}
	got := FromVector(p.Vector())
	assert.InDelta(p.X, got.X, 1e-12)
	assert.InDelta(p.Y, got.Y, 1e-12)
	assert.InDelta(p.Heading, got.Heading, 1e-12)
}

func TestWrapAngle(t *testing.T) {
	assert := assert.New(t)

	for _, test := range []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-0.5, -0.5},
		{2*math.Pi + 0.25, 0.25},
	} {
		assert.InDelta(test.want, WrapAngle(test.in), 1e-12)
	}
}

func TestRangeBearing(t *testing.T) {
	assert := assert.New(t)

	pt := Point{X: 3, Y: 4}
	assert.InDelta(5, pt.Range(), 1e-12)
	assert.InDelta(math.Atan2(4, 3), pt.Bearing(), 1e-12)
}
