package pose

import (
	"math"

	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/mat"
)

// singularTol is the cutoff below which rotation recovery switches to the
// gimbal-lock branch.
const singularTol = 1e-6

// Spatial is a rigid transform in 3D: translation (X, Y, Z) and intrinsic
// roll-pitch-yaw rotation in radians, applied as Rz(yaw)·Ry(pitch)·Rx(roll).
type Spatial struct {
	X     float64
	Y     float64
	Z     float64
	Roll  float64
	Pitch float64
	Yaw   float64
}

// Matrix returns the 4x4 homogeneous transform for the pose.
func (p Spatial) Matrix() *mat.Dense {
	sr, cr := math.Sincos(p.Roll)
	sp, cp := math.Sincos(p.Pitch)
	sy, cy := math.Sincos(p.Yaw)
	// R = Rz(yaw) * Ry(pitch) * Rx(roll)
	return mat.NewDense(4, 4, []float64{
		cy * cp, cy*sp*sr - sy*cr, cy*sp*cr + sy*sr, p.X,
		sy * cp, sy*sp*sr + cy*cr, sy*sp*cr - cy*sr, p.Y,
		-sp, cp * sr, cp * cr, p.Z,
		0, 0, 0, 1,
	})
}

// SpatialFromMatrix recovers a pose from a 4x4 homogeneous transform.
// When the pitch angle is at ±π/2 the yaw and roll axes align (gimbal
// lock); the singular branch fixes yaw to 0 and recovers roll from the
// remaining free rotation, so the round trip Matrix → pose → Matrix is
// exact even at the singularity.
func SpatialFromMatrix(m *mat.Dense) Spatial {
	out := Spatial{
		X: m.At(0, 3),
		Y: m.At(1, 3),
		Z: m.At(2, 3),
	}
	sy := math.Hypot(m.At(0, 0), m.At(1, 0))
	if sy >= singularTol {
		out.Roll = math.Atan2(m.At(2, 1), m.At(2, 2))
		out.Pitch = math.Atan2(-m.At(2, 0), sy)
		out.Yaw = math.Atan2(m.At(1, 0), m.At(0, 0))
	} else {
		out.Roll = math.Atan2(-m.At(1, 2), m.At(1, 1))
		out.Pitch = math.Atan2(-m.At(2, 0), sy)
		out.Yaw = 0
	}
	return out
}

// Chain composes q (expressed in p's frame) onto p via full homogeneous
// transform multiplication, returning q in the world frame.
func (p Spatial) Chain(q Spatial) Spatial {
	var out mat.Dense
	out.Mul(p.Matrix(), q.Matrix())
	return SpatialFromMatrix(&out)
}

// Invert returns the inverse transform: R ← Rᵀ, T ← −Rᵀ T.
func (p Spatial) Invert() Spatial {
	m := p.Matrix()
	inv := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			inv.Set(i, j, m.At(j, i))
		}
	}
	for i := 0; i < 3; i++ {
		var v float64
		for j := 0; j < 3; j++ {
			v -= inv.At(i, j) * m.At(j, 3)
		}
		inv.Set(i, 3, v)
	}
	inv.Set(3, 3, 1)
	return SpatialFromMatrix(inv)
}

// Vector returns the pose as the 6-float form [x, y, z, roll, pitch, yaw].
func (p Spatial) Vector() []float64 {
	return []float64{p.X, p.Y, p.Z, p.Roll, p.Pitch, p.Yaw}
}

// SpatialFromVector builds a Spatial pose from a 6-float vector.
func SpatialFromVector(v []float64) (Spatial, error) {
	if len(v) != 6 {
		return Spatial{}, ErrBadPoseLength
	}
	return Spatial{X: v[0], Y: v[1], Z: v[2], Roll: v[3], Pitch: v[4], Yaw: v[5]}, nil
}

// QuatVector returns the 7-float record form [qw, qx, qy, qz, x, y, z]
// used by spatial scene records.
func (p Spatial) QuatVector() []float64 {
	ea := &spatialmath.EulerAngles{Roll: p.Roll, Pitch: p.Pitch, Yaw: p.Yaw}
	q := ea.Quaternion()
	return []float64{q.Real, q.Imag, q.Jmag, q.Kmag, p.X, p.Y, p.Z}
}

// SpatialFromQuatVector recovers a pose from the 7-float record form.
func SpatialFromQuatVector(v []float64) (Spatial, error) {
	if len(v) != 7 {
		return Spatial{}, ErrBadPoseLength
	}
	q := spatialmath.Quaternion{Real: v[0], Imag: v[1], Jmag: v[2], Kmag: v[3]}
	ea := q.EulerAngles()
	return Spatial{
		X: v[4], Y: v[5], Z: v[6],
		Roll: ea.Roll, Pitch: ea.Pitch, Yaw: ea.Yaw,
	}, nil
}
