package feasibility

import (
	"gonum.org/v1/gonum/mat"

	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/pose"
)

// ProjectionSample wraps one projection solve as a differentiable
// sampling step: the forward value is the feasible pose, the density is
// a narrow Normal centered on it, and the backward pass routes upstream
// gradients through the projection's true sensitivity rather than the
// identity.
type ProjectionSample struct {
	// Value is the pose exposed to consumers. When Masked, it is the
	// unprojected input and must not reach any metric.
	Value pose.Planar
	// Jacobian is the output-to-input sensitivity; identity when Masked.
	Jacobian *mat.Dense
	// Masked marks a short-circuited sample whose value the caller is
	// expected to discard.
	Masked    bool
	Converged bool

	scale float64
}

// ProjectSample runs the projection for a candidate slot, short-circuiting
// when the slot is already dead: if the candidate's class does not match
// the class being scored here, or an earlier slot in the same sample
// stopped (keepGoing false), the expensive solve is skipped and the
// input passes through masked.
func (o *Oracle) ProjectSample(candidate Body, placed []Body, constraints []Constraint, scoredClass string, keepGoing bool) (*ProjectionSample, error) {
	if !keepGoing || candidate.Class != scoredClass {
		return &ProjectionSample{
			Value:    candidate.Pose,
			Jacobian: identity3(),
			Masked:   true,
			scale:    o.cfg.SampleScale,
		}, nil
	}
	res, err := o.ProjectToFeasibility(candidate, placed, constraints)
	if err != nil {
		return nil, err
	}
	return &ProjectionSample{
		Value:     res.Pose,
		Jacobian:  res.Jacobian,
		Converged: res.Converged,
		scale:     o.cfg.SampleScale,
	}, nil
}

// LogProb scores an observed pose under the surrogate Normal centered on
// the projected value.
func (s *ProjectionSample) LogProb(observed pose.Planar) float64 {
	mean := s.Value.Vector()
	scale := []float64{s.scale, s.scale, s.scale}
	return grammar.NormalLogProb(observed.Vector(), mean, scale)
}

// Backward maps an upstream gradient with respect to the projected pose
// to a gradient with respect to the pre-projection pose: J^T * upstream.
func (s *ProjectionSample) Backward(upstream []float64) ([]float64, error) {
	if len(upstream) != 3 {
		return nil, ErrBadGradientLength
	}
	up := mat.NewVecDense(3, upstream)
	var out mat.VecDense
	out.MulVec(s.Jacobian.T(), up)
	return []float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}, nil
}
