package scenegen

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/golang/geo/r3"
	"github.com/mpetersen94/scene-generation/feasibility"
	"github.com/mpetersen94/scene-generation/pose"
	"github.com/mpetersen94/scene-generation/scenefile"
)

// StackSampler draws planar bin scenes of stacked discs. Unlike the
// table and dish-bin families these scenes are procedural, not drawn
// from a grammar: stack count and height follow truncated geometric
// distributions and disc radii are uniform. Candidate discs are still
// settled through the feasibility oracle so stacks from different base
// positions never interpenetrate.
type StackSampler struct {
	rng    *rand.Rand
	oracle *feasibility.Oracle
}

// Disc class and working-volume bounds for the planar bin. The bin is
// wider than the acceptance box on purpose: discs pushed to the bin
// walls during projection land outside the box and reject the scene.
const stackClass = "2d_sphere"

var stackBinBounds = feasibility.BoundingBox{
	Min: r3.Vector{X: -1, Y: 0},
	Max: r3.Vector{X: 1, Y: 2},
}

// NewStackSampler builds a sampler with its own RNG stream.
func NewStackSampler(seed uint64, oracleCfg feasibility.Config) *StackSampler {
	return &StackSampler{
		rng:    rand.New(rand.NewSource(seed)),
		oracle: feasibility.NewOracle(oracleCfg, nil),
	}
}

// geometric draws from a geometric distribution with success probability
// p (support 1, 2, ...), clamped to [lo, hi].
func (s *StackSampler) geometric(p float64, lo, hi int) int {
	n := 1
	for s.rng.Float64() >= p {
		n++
		if n >= hi {
			return hi
		}
	}
	if n < lo {
		return lo
	}
	return n
}

func (s *StackSampler) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

// Sample draws one bin scene: 1-3 stacks of 2-5 discs each. Each stack
// rests on the bin floor with discs piled center over center; the oracle
// then resolves collisions between neighbouring stacks.
func (s *StackSampler) Sample() (scenefile.Scene, error) {
	constraints := []feasibility.Constraint{
		feasibility.MinimumSeparation{},
		stackBinBounds,
	}
	var scene scenefile.Scene
	var placed []feasibility.Body

	nStacks := s.geometric(0.5, 1, 3)
	for i := 0; i < nStacks; i++ {
		baseX := s.uniform(-0.85, 0.85)
		nBodies := s.geometric(0.3, 2, 5)
		z := 0.0
		var below float64
		for j := 0; j < nBodies; j++ {
			radius := s.uniform(0.05, 0.15)
			if j == 0 {
				z = radius
			} else {
				z += below + radius
			}
			below = radius

			body := feasibility.Body{
				Class:  stackClass,
				Radius: radius,
				Pose:   pose.Planar{X: baseX, Y: z},
			}
			res, err := s.oracle.ProjectToFeasibility(body, placed, constraints)
			if err != nil {
				return scenefile.Scene{}, fmt.Errorf("settling stack disc: %w", err)
			}
			body.Pose = res.Pose
			placed = append(placed, body)

			scene.Objects = append(scene.Objects, scenefile.Object{
				Class:       stackClass,
				Params:      []float64{radius},
				ParamsNames: []string{"radius"},
				Pose:        body.Pose.Vector(),
				Color:       []float64{0.25, 0.5, s.uniform(0.5, 0.8), 1.0},
			})
		}
	}
	return scene, nil
}
