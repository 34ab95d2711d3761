package scenes

import (
	"fmt"
	"math"

	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/pose"
	"github.com/mpetersen94/scene-generation/scenefile"
)

// SpatialObject is a terminal dish instance with a full 6-DOF pose,
// serialized in the 7-float quaternion record form.
type SpatialObject struct {
	grammar.TerminalBase
	Class string
	Pose  pose.Spatial
}

// Record implements grammar.Terminal.
func (o *SpatialObject) Record() scenefile.Object {
	return scenefile.Object{
		Class:       o.Class,
		Params:      []float64{},
		ParamsNames: []string{},
		Pose:        o.Pose.QuatVector(),
	}
}

// binSlotsPerClass is how many of each dish class a bin can hold.
const binSlotsPerClass = 4

// DishBin is the spatial scene family root: up to four mugs and four
// plates dropped into a bin, each slot present independently. Offset
// distributions are shared per class, not per slot.
type DishBin struct {
	*grammar.IndependentSetNode
	Pose pose.Spatial
}

// NewDishBin builds the dish bin root at the world origin.
func NewDishBin(store *grammar.ParamStore) (*DishBin, error) {
	binPose := pose.Spatial{}

	classes := []string{"mug_1", "plate_11in"}
	meanKeys := make(map[string]grammar.ParamKey, len(classes))
	scaleKeys := make(map[string]grammar.ParamKey, len(classes))
	for _, class := range classes {
		meanKeys[class] = grammar.ParamKey{Component: "dish_bin", Slot: class, Field: "mean"}
		scaleKeys[class] = grammar.ParamKey{Component: "dish_bin", Slot: class, Field: "scale"}
		// Dishes land slightly above the bin floor with loose orientation.
		if _, err := store.Define(meanKeys[class], []float64{0, 0, 0.1, 0, 0, 0}, grammar.ConstraintNone); err != nil {
			return nil, err
		}
		if _, err := store.Define(scaleKeys[class], []float64{0.05, 0.05, 0.05, 2, 2, 2}, grammar.ConstraintPositive); err != nil {
			return nil, err
		}
	}

	var rules []grammar.ProductionRule
	var probs []float64
	for k := 0; k < binSlotsPerClass; k++ {
		for _, class := range classes {
			rules = append(rules, &dishRule{
				name:     fmt.Sprintf("dish_bin_%s_%03d", class, k),
				class:    class,
				bin:      binPose,
				meanKey:  meanKeys[class],
				scaleKey: scaleKeys[class],
				store:    store,
			})
			probs = append(probs, 0.5)
		}
	}
	node, err := grammar.NewIndependentSetNode("dish_bin", store,
		grammar.ParamKey{Component: "dish_bin", Field: "slot_probs"}, rules, probs)
	if err != nil {
		return nil, err
	}
	return &DishBin{IndependentSetNode: node, Pose: binPose}, nil
}

// dishRule drops one dish at a Normal 6-DOF offset from the bin frame.
type dishRule struct {
	name     string
	class    string
	bin      pose.Spatial
	meanKey  grammar.ParamKey
	scaleKey grammar.ParamKey
	store    *grammar.ParamStore
}

func (r *dishRule) Name() string             { return r.name }
func (r *dishRule) ProductClasses() []string { return []string{r.class} }
func (r *dishRule) MaxChildren() int         { return 1 }

func (r *dishRule) Sample(ctx *grammar.SampleContext, _ grammar.Node, observed []grammar.Node) ([]grammar.Node, error) {
	if observed != nil {
		if len(observed) != 1 {
			return nil, fmt.Errorf("%w: %s wants one child", grammar.ErrChildMismatch, r.name)
		}
		obj, ok := observed[0].(*SpatialObject)
		if !ok || obj.Class != r.class {
			return nil, fmt.Errorf("%w: %s wants class %q", grammar.ErrChildMismatch, r.name, r.class)
		}
		return observed, nil
	}
	mean, err := ctx.Store.Get(r.meanKey)
	if err != nil {
		return nil, err
	}
	scale, err := ctx.Store.Get(r.scaleKey)
	if err != nil {
		return nil, err
	}
	rel, err := pose.SpatialFromVector(grammar.SampleNormal(ctx, mean, scale))
	if err != nil {
		return nil, err
	}
	obj := &SpatialObject{
		TerminalBase: grammar.TerminalBase{NodeName: r.name + "_obj"},
		Class:        r.class,
		Pose:         r.bin.Chain(rel),
	}
	return []grammar.Node{obj}, nil
}

func (r *dishRule) Score(_ grammar.Node, children []grammar.Node, g grammar.Gradients) float64 {
	if len(children) != 1 {
		return math.Inf(-1)
	}
	obj, ok := children[0].(*SpatialObject)
	if !ok || obj.Class != r.class {
		return math.Inf(-1)
	}
	mean, err := r.store.Get(r.meanKey)
	if err != nil {
		return math.Inf(-1)
	}
	scale, err := r.store.Get(r.scaleKey)
	if err != nil {
		return math.Inf(-1)
	}
	rel := r.bin.Invert().Chain(obj.Pose)
	return grammar.NormalScoreGrad(rel.Vector(), mean, scale, g, r.meanKey, r.scaleKey)
}
