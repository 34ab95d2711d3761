// Package pose provides the rigid-transform algebra used by the scene
// grammars: planar (x, y, θ) poses for tabletop and bin scenes, and
// spatial (xyz + rpy) poses for full 3D scenes.
package pose

import "math"

// Planar is a rigid transform in the plane: translation (X, Y) and a
// counterclockwise rotation Theta in radians. For planar bin scenes the
// Y axis is the vertical (z) axis.
type Planar struct {
	X     float64
	Y     float64
	Theta float64
}

// Chain composes q (expressed in p's frame) onto p, returning q in the
// world frame. Rotations add; q's translation is rotated by p's heading
// before translating.
func (p Planar) Chain(q Planar) Planar {
	s, c := math.Sincos(p.Theta)
	return Planar{
		X:     p.X + q.X*c - q.Y*s,
		Y:     p.Y + q.X*s + q.Y*c,
		Theta: p.Theta + q.Theta,
	}
}

// Invert returns the inverse transform, so that p.Invert().Chain(p.Chain(q)) == q.
func (p Planar) Invert() Planar {
	s, c := math.Sincos(-p.Theta)
	return Planar{
		X:     -(p.X*c - p.Y*s),
		Y:     -(p.X*s + p.Y*c),
		Theta: -p.Theta,
	}
}

// Vector returns the pose as the 3-float record form [x, y, theta].
func (p Planar) Vector() []float64 {
	return []float64{p.X, p.Y, p.Theta}
}

// PlanarFromVector builds a Planar pose from a 3-float record vector.
func PlanarFromVector(v []float64) (Planar, error) {
	if len(v) != 3 {
		return Planar{}, ErrBadPoseLength
	}
	return Planar{X: v[0], Y: v[1], Theta: v[2]}, nil
}
