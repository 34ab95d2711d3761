package scenefile

import "errors"

var (
	// ErrMissingObjectCount is returned when a scene record lacks n_objects.
	ErrMissingObjectCount = errors.New("scene record missing n_objects")

	// ErrObjectCountMismatch is returned when n_objects disagrees with the object entries present.
	ErrObjectCountMismatch = errors.New("scene record object count mismatch")

	// ErrMissingClass is returned when an object entry lacks a class.
	ErrMissingClass = errors.New("object entry missing class")

	// ErrMissingPose is returned when an object entry lacks a pose.
	ErrMissingPose = errors.New("object entry missing pose")

	// ErrBadObjectKey is returned for malformed obj_NNNN keys.
	ErrBadObjectKey = errors.New("malformed object key")
)
