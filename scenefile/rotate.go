package scenefile

import "math"

// Rotate returns a copy of a planar scene rotated by angle radians about
// the given origin, used for domain randomization during fitting. Object
// headings wrap into [0, 2π). Non-planar poses are left untouched.
func Rotate(s Scene, angle, originX, originY float64) Scene {
	sin, cos := math.Sincos(angle)
	out := Scene{Objects: make([]Object, len(s.Objects))}
	for i, obj := range s.Objects {
		copied := obj
		copied.Pose = append([]float64(nil), obj.Pose...)
		if len(copied.Pose) == 3 {
			dx := copied.Pose[0] - originX
			dy := copied.Pose[1] - originY
			copied.Pose[0] = cos*dx - sin*dy + originX
			copied.Pose[1] = sin*dx + cos*dy + originY
			copied.Pose[2] = math.Mod(copied.Pose[2]+angle, 2*math.Pi)
			if copied.Pose[2] < 0 {
				copied.Pose[2] += 2 * math.Pi
			}
		}
		out.Objects[i] = copied
	}
	return out
}
