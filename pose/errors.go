package pose

import "errors"

var (
	// ErrBadPoseLength is returned when a pose record vector has the wrong number of entries.
	ErrBadPoseLength = errors.New("pose vector has wrong length")
)
