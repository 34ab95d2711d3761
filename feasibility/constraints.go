package feasibility

import (
	"fmt"

	"github.com/golang/geo/r3"

	"github.com/mpetersen94/scene-generation/pose"
)

// Body is a placed or candidate object in the projection scene. Planar
// bodies are discs of the given radius centered at their pose.
type Body struct {
	Class  string
	Radius float64
	Pose   pose.Planar
}

// Center returns the body's center as a 3-vector with Z = 0.
func (b Body) Center() r3.Vector {
	return r3.Vector{X: b.Pose.X, Y: b.Pose.Y}
}

// Constraint is a tagged feasibility requirement. The closed set of
// variants is MinimumSeparation and BoundingBox.
type Constraint interface {
	isConstraint()
	Validate() error
}

// MinimumSeparation requires every pair of body surfaces to be at least
// Distance apart. Zero means touching is feasible; penetration is not.
type MinimumSeparation struct {
	Distance float64
}

func (MinimumSeparation) isConstraint() {}

// Validate implements Constraint.
func (c MinimumSeparation) Validate() error {
	if c.Distance < 0 {
		return fmt.Errorf("%w: negative separation %f", ErrBadConstraint, c.Distance)
	}
	return nil
}

// BoundingBox requires the translational coordinates of the bodies it
// applies to to stay inside [Min, Max]. AppliesTo lists body indices in
// the projection scene (placed bodies first, candidate last); nil means
// every body. For planar bodies only X and Y are enforced.
type BoundingBox struct {
	Min, Max  r3.Vector
	AppliesTo []int
}

func (BoundingBox) isConstraint() {}

// Validate implements Constraint.
func (c BoundingBox) Validate() error {
	if c.Min.X > c.Max.X || c.Min.Y > c.Max.Y || c.Min.Z > c.Max.Z {
		return fmt.Errorf("%w: box min exceeds max", ErrBadConstraint)
	}
	return nil
}

// Contains reports whether v lies inside the box in X and Y.
func (c BoundingBox) Contains(v r3.Vector) bool {
	return v.X >= c.Min.X && v.X <= c.Max.X &&
		v.Y >= c.Min.Y && v.Y <= c.Max.Y
}

// ContainsSpatial reports whether v lies inside the box in all three
// coordinates.
func (c BoundingBox) ContainsSpatial(v r3.Vector) bool {
	return c.Contains(v) && v.Z >= c.Min.Z && v.Z <= c.Max.Z
}

// appliesTo reports whether the box constrains body index idx.
func (c BoundingBox) appliesTo(idx int) bool {
	if c.AppliesTo == nil {
		return true
	}
	for _, i := range c.AppliesTo {
		if i == idx {
			return true
		}
	}
	return false
}
