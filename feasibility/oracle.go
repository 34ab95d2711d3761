package feasibility

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rdk/logging"

	"github.com/mpetersen94/scene-generation/pose"
)

// Config tunes the projection solve.
type Config struct {
	// MaxIterations bounds the Gauss-Newton loop.
	MaxIterations int
	// Tolerance is the largest constraint violation accepted as feasible.
	Tolerance float64
	// ActiveTol is the slack threshold below which a constraint counts as
	// active when assembling the sensitivity Jacobian.
	ActiveTol float64
	// MaxStep caps the translation applied per iteration.
	MaxStep float64
	// SampleScale is the standard deviation of the surrogate sampling
	// distribution centered on the projected pose.
	SampleScale float64
}

// DefaultConfig returns solver settings that work for tabletop-scale
// scenes (coordinates on the order of a meter).
func DefaultConfig() Config {
	return Config{
		MaxIterations: 50,
		Tolerance:     1e-6,
		ActiveTol:     1e-4,
		MaxStep:       0.5,
		SampleScale:   0.01,
	}
}

// Oracle projects candidate poses to the nearest feasible configuration
// and reports the local sensitivity of the projection.
type Oracle struct {
	cfg    Config
	logger logging.Logger
}

// NewOracle builds an oracle. A nil logger suppresses solve diagnostics.
func NewOracle(cfg Config, logger logging.Logger) *Oracle {
	if cfg.MaxIterations <= 0 {
		cfg = DefaultConfig()
	}
	return &Oracle{cfg: cfg, logger: logger}
}

// Result is the outcome of one projection solve.
type Result struct {
	// Pose is the projected candidate pose. On non-convergence it is the
	// best iterate seen, not the last one.
	Pose pose.Planar
	// Jacobian is the 3x3 sensitivity of the projected pose with respect
	// to the pre-projection pose, evaluated at the solution.
	Jacobian *mat.Dense
	// Converged reports whether every constraint is satisfied within
	// tolerance. Callers filter non-converged results with their own
	// bounds check; the solve itself never hard-fails on infeasibility.
	Converged bool
	// Violation is the worst remaining constraint violation at Pose.
	Violation float64
	Iterations int
}

// inequality is one linearized scalar constraint g(q) >= 0 on the
// candidate's translation.
type inequality struct {
	value float64
	grad  [2]float64
}

// ProjectToFeasibility moves the candidate body to the nearest pose
// satisfying the constraints against the already-placed bodies, holding
// the placed bodies fixed. The heading coordinate never participates in
// disc constraints and passes through unchanged.
func (o *Oracle) ProjectToFeasibility(candidate Body, placed []Body, constraints []Constraint) (Result, error) {
	if candidate.Class == "" && candidate.Radius == 0 {
		return Result{}, ErrNoBody
	}
	for _, c := range constraints {
		if err := c.Validate(); err != nil {
			return Result{}, fmt.Errorf("validating constraints: %w", err)
		}
	}

	q := [2]float64{candidate.Pose.X, candidate.Pose.Y}
	best := q
	bestViol := math.Inf(1)
	converged := false
	iters := 0

	for ; iters < o.cfg.MaxIterations; iters++ {
		ineqs := evalConstraints(q, candidate, placed, constraints)

		var violated []inequality
		maxViol := 0.0
		for _, in := range ineqs {
			if in.value < 0 {
				violated = append(violated, in)
				if -in.value > maxViol {
					maxViol = -in.value
				}
			}
		}
		if maxViol < bestViol {
			bestViol = maxViol
			best = q
		}
		if maxViol <= o.cfg.Tolerance {
			converged = true
			break
		}

		step, ok := correctionStep(violated)
		if !ok {
			break
		}
		if n := floats.Norm(step[:], 2); n > o.cfg.MaxStep {
			scale := o.cfg.MaxStep / n
			step[0] *= scale
			step[1] *= scale
		}
		q[0] += step[0]
		q[1] += step[1]
	}

	if !converged {
		q = best
		if o.logger != nil {
			o.logger.Debugf("projection did not converge after %d iterations, violation %g", iters, bestViol)
		}
	}

	final := pose.Planar{X: q[0], Y: q[1], Theta: candidate.Pose.Theta}
	jac := o.sensitivity(q, candidate, placed, constraints)
	return Result{
		Pose:       final,
		Jacobian:   jac,
		Converged:  converged,
		Violation:  bestViol,
		Iterations: iters,
	}, nil
}

// evalConstraints linearizes every scalar inequality at q.
func evalConstraints(q [2]float64, candidate Body, placed []Body, constraints []Constraint) []inequality {
	var out []inequality
	candidateIdx := len(placed)
	for _, c := range constraints {
		switch con := c.(type) {
		case MinimumSeparation:
			for _, other := range placed {
				dx := q[0] - other.Pose.X
				dy := q[1] - other.Pose.Y
				dist := math.Hypot(dx, dy)
				clearance := candidate.Radius + other.Radius + con.Distance
				if dist < 1e-9 {
					// Coincident centers have no defined separation
					// direction; push along +x.
					out = append(out, inequality{value: -clearance, grad: [2]float64{1, 0}})
					continue
				}
				out = append(out, inequality{
					value: dist - clearance,
					grad:  [2]float64{dx / dist, dy / dist},
				})
			}
		case BoundingBox:
			if !con.appliesTo(candidateIdx) {
				continue
			}
			out = append(out,
				inequality{value: q[0] - con.Min.X, grad: [2]float64{1, 0}},
				inequality{value: con.Max.X - q[0], grad: [2]float64{-1, 0}},
				inequality{value: q[1] - con.Min.Y, grad: [2]float64{1, 0}},
				inequality{value: con.Max.Y - q[1], grad: [2]float64{-1, 0}},
			)
		}
	}
	return out
}

// correctionStep computes the minimum-norm translation delta solving the
// linearized system G*delta = -g over the violated constraints, via
// damped normal equations on G*G^T.
func correctionStep(violated []inequality) ([2]float64, bool) {
	m := len(violated)
	if m == 0 {
		return [2]float64{}, false
	}
	g := mat.NewDense(m, 2, nil)
	rhs := mat.NewVecDense(m, nil)
	for i, in := range violated {
		g.Set(i, 0, in.grad[0])
		g.Set(i, 1, in.grad[1])
		rhs.SetVec(i, -in.value)
	}

	var ggt mat.Dense
	ggt.Mul(g, g.T())
	for i := 0; i < m; i++ {
		ggt.Set(i, i, ggt.At(i, i)+1e-9)
	}

	var y mat.VecDense
	if err := y.SolveVec(&ggt, rhs); err != nil {
		return [2]float64{}, false
	}
	var delta mat.VecDense
	delta.MulVec(g.T(), &y)
	return [2]float64{delta.AtVec(0), delta.AtVec(1)}, true
}

// sensitivity builds the 3x3 output-to-input Jacobian at the solution by
// implicit differentiation of the projection's optimality conditions:
// the projected point moves with the input only inside the null space of
// the active constraint gradients, so J = I - G^T (G G^T)^-1 G over the
// active set. With no active constraints the projection is locally the
// identity. Heading is untouched by the solve, so its row and column are
// identity.
func (o *Oracle) sensitivity(q [2]float64, candidate Body, placed []Body, constraints []Constraint) *mat.Dense {
	jac := identity3()

	var active []inequality
	for _, in := range evalConstraints(q, candidate, placed, constraints) {
		if math.Abs(in.value) <= o.cfg.ActiveTol {
			active = append(active, in)
		}
	}
	m := len(active)
	if m == 0 {
		return jac
	}

	g := mat.NewDense(m, 2, nil)
	for i, in := range active {
		g.Set(i, 0, in.grad[0])
		g.Set(i, 1, in.grad[1])
	}
	var ggt mat.Dense
	ggt.Mul(g, g.T())
	for i := 0; i < m; i++ {
		ggt.Set(i, i, ggt.At(i, i)+1e-9)
	}
	var y mat.Dense
	if err := y.Solve(&ggt, g); err != nil {
		return jac
	}
	var proj mat.Dense
	proj.Mul(g.T(), &y)

	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			v := -proj.At(r, c)
			if r == c {
				v++
			}
			jac.Set(r, c, v)
		}
	}
	return jac
}

func identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}
