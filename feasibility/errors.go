package feasibility

import "errors"

var (
	// ErrNoBody is returned when a projection is requested without a
	// candidate body.
	ErrNoBody = errors.New("no candidate body")
	// ErrBadConstraint is returned for a constraint with an impossible
	// specification, e.g. a bounding box whose min exceeds its max.
	ErrBadConstraint = errors.New("bad constraint specification")
	// ErrBadGradientLength is returned when a backward pass receives an
	// upstream gradient whose length does not match the pose dimension.
	ErrBadGradientLength = errors.New("upstream gradient has wrong length")
)
