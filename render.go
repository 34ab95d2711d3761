package scenegen

import (
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"

	"github.com/mpetersen94/scene-generation/pose"
	"github.com/mpetersen94/scene-generation/scenefile"
)

// Renderer consumes accepted scenes, e.g. to hand them to a simulator or
// image pipeline. Generation works without one; rendering failures abort
// the run since the dataset and its renders would otherwise diverge.
type Renderer interface {
	Render(name string, scene scenefile.Scene) error
}

// WorldPose lifts one scene record pose into the world frame of a base
// environment pose. Planar records live in the bin's xz plane with the
// heading about +Y; spatial records carry their own quaternion.
func WorldPose(base spatialmath.Pose, obj scenefile.Object) (spatialmath.Pose, error) {
	switch len(obj.Pose) {
	case 3:
		p, err := pose.PlanarFromVector(obj.Pose)
		if err != nil {
			return nil, err
		}
		local := spatialmath.NewPose(
			r3.Vector{X: p.X, Z: p.Y},
			&spatialmath.OrientationVector{OX: 0, OY: 1, OZ: 0, Theta: p.Theta},
		)
		return spatialmath.Compose(base, local), nil
	case 7:
		p, err := pose.SpatialFromQuatVector(obj.Pose)
		if err != nil {
			return nil, err
		}
		local := spatialmath.NewPose(
			r3.Vector{X: p.X, Y: p.Y, Z: p.Z},
			&spatialmath.EulerAngles{Roll: p.Roll, Pitch: p.Pitch, Yaw: p.Yaw},
		)
		return spatialmath.Compose(base, local), nil
	default:
		return nil, pose.ErrBadPoseLength
	}
}

// LogRenderer is the fallback renderer: it logs each object's class and
// world pose instead of producing images.
type LogRenderer struct {
	Base   spatialmath.Pose
	Logger logging.Logger
}

// NewLogRenderer builds a renderer logging world poses relative to base.
// A nil base means the identity environment frame.
func NewLogRenderer(base spatialmath.Pose, logger logging.Logger) *LogRenderer {
	if base == nil {
		base = spatialmath.NewZeroPose()
	}
	return &LogRenderer{Base: base, Logger: logger}
}

// Render logs one line per object.
func (r *LogRenderer) Render(name string, scene scenefile.Scene) error {
	for i, obj := range scene.Objects {
		world, err := WorldPose(r.Base, obj)
		if err != nil {
			return err
		}
		if r.Logger != nil {
			pt := world.Point()
			r.Logger.Infof("%s obj %d: %s at (%.3f, %.3f, %.3f)",
				name, i, obj.Class, pt.X, pt.Y, pt.Z)
		}
	}
	return nil
}
