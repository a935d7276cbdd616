package pose

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Point is a position in the plane. Poses act on points by Transform.
type Point struct {
	X, Y float64
}

// Add returns the vector sum of p and q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns the vector difference of p and q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Range returns the distance of p from the origin.
func (p Point) Range() float64 {
	return math.Hypot(p.X, p.Y)
}

// Bearing returns the angle of p measured from the positive x axis.
func (p Point) Bearing() float64 {
	return math.Atan2(p.Y, p.X)
}

// Vector returns p as a 2-vector.
func (p Point) Vector() *mat.VecDense {
	return mat.NewVecDense(2, []float64{p.X, p.Y})
}

// PointFromVector builds a Point from the first two entries of v.
func PointFromVector(v mat.Vector) Point {
	return Point{v.AtVec(0), v.AtVec(1)}
}

// Pose is an element of the planar rigid motion group SE(2). The zero
// value is the identity. Composition satisfies the group laws:
// p.Compose(p.Inverse()) is the identity and
// p.Inverse().Compose(p.Compose(q)) == q.
type Pose struct {
	X, Y, Heading float64
}

// Identity returns the identity pose.
func Identity() Pose {
	return Pose{}
}

// Compose returns the pose obtained by following p with q, i.e. the
// group product p + q.
func (p Pose) Compose(q Pose) Pose {
	sin, cos := math.Sincos(p.Heading)
	return Pose{
		X:       p.X + cos*q.X - sin*q.Y,
		Y:       p.Y + sin*q.X + cos*q.Y,
		Heading: WrapAngle(p.Heading + q.Heading),
	}
}

// Inverse returns the group inverse -p.
func (p Pose) Inverse() Pose {
	sin, cos := math.Sincos(p.Heading)
	return Pose{
		X:       -cos*p.X - sin*p.Y,
		Y:       sin*p.X - cos*p.Y,
		Heading: WrapAngle(-p.Heading),
	}
}

// Transform applies p to the point pt, i.e. p + pt.
func (p Pose) Transform(pt Point) Point {
	sin, cos := math.Sincos(p.Heading)
	return Point{
		X: p.X + cos*pt.X - sin*pt.Y,
		Y: p.Y + sin*pt.X + cos*pt.Y,
	}
}

// Position returns the translation part of p.
func (p Pose) Position() Point {
	return Point{p.X, p.Y}
}

// Vector returns p as the 3-vector (x, y, heading).
func (p Pose) Vector() *mat.VecDense {
	return mat.NewVecDense(3, []float64{p.X, p.Y, p.Heading})
}

// FromVector builds a Pose from the first three entries of v. The
// heading is wrapped into (-pi, pi].
func FromVector(v mat.Vector) Pose {
	return Pose{v.AtVec(0), v.AtVec(1), WrapAngle(v.AtVec(2))}
}

// WrapAngle maps a into the interval (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// Group adapts Pose composition to the bitree group contract.
type Group struct{}

// Compose returns a + b.
func (Group) Compose(a, b Pose) Pose { return a.Compose(b) }

// Inverse returns -a.
func (Group) Inverse(a Pose) Pose { return a.Inverse() }

// Identity returns the identity pose.
func (Group) Identity() Pose { return Pose{} }
