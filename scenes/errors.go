package scenes

import "errors"

var (
	// ErrUnknownClass is returned when a scene object names a class the
	// grammar has no terminal for.
	ErrUnknownClass = errors.New("unknown object class")
	// ErrUnparseable is returned when a scene cannot be explained by the
	// grammar, e.g. two forks competing for the same side of a setting.
	ErrUnparseable = errors.New("scene not parseable under grammar")
)
