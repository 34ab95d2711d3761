// Package scenes holds the concrete grammars: a planar table-setting
// scene family and a spatial dish-bin family.
package scenes

import (
	"fmt"
	"math"

	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/pose"
	"github.com/mpetersen94/scene-generation/scenefile"
)

// planarClass describes one tableware class's fixed shape parameters and
// render asset.
type planarClass struct {
	params      []float64
	paramsNames []string
	imagePath   string
}

var planarCatalog = map[string]planarClass{
	"plate": {[]float64{0.2}, []string{"radius"}, "table_setting_assets/plate_red.png"},
	"cup":   {[]float64{0.05}, []string{"radius"}, "table_setting_assets/cup_water.png"},
	"fork":  {[]float64{0.02, 0.14}, []string{"width", "height"}, "table_setting_assets/fork.png"},
	"knife": {[]float64{0.015, 0.15}, []string{"width", "height"}, "table_setting_assets/knife.png"},
	"spoon": {[]float64{0.02, 0.12}, []string{"width", "height"}, "table_setting_assets/spoon.png"},
}

// PlanarObject is a terminal tableware instance with a planar pose.
type PlanarObject struct {
	grammar.TerminalBase
	Class string
	Pose  pose.Planar
}

// NewPlanarObject builds a terminal for a cataloged tableware class.
func NewPlanarObject(name, class string, at pose.Planar) (*PlanarObject, error) {
	if _, ok := planarCatalog[class]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
	}
	return &PlanarObject{
		TerminalBase: grammar.TerminalBase{NodeName: name},
		Class:        class,
		Pose:         at,
	}, nil
}

// Record implements grammar.Terminal.
func (o *PlanarObject) Record() scenefile.Object {
	spec := planarCatalog[o.Class]
	return scenefile.Object{
		Class:       o.Class,
		Params:      append([]float64(nil), spec.params...),
		ParamsNames: append([]string(nil), spec.paramsNames...),
		Pose:        o.Pose.Vector(),
		ImagePath:   spec.imagePath,
	}
}

// settingSlot is one named position in a place setting. Left/right
// variants of the same class are separate slots with mirrored means.
type settingSlot struct {
	name  string
	class string
	mean  []float64
	scale []float64
}

var settingSlots = []settingSlot{
	{"plate", "plate", []float64{0, 0.16, 0}, []float64{0.01, 0.01, 1}},
	{"cup", "cup", []float64{0, 0.31, 0}, []float64{0.05, 0.01, 1}},
	{"left_fork", "fork", []float64{-0.15, 0.16, 0}, []float64{0.01, 0.01, 0.01}},
	{"left_knife", "knife", []float64{-0.15, 0.16, 0}, []float64{0.01, 0.01, 0.01}},
	{"left_spoon", "spoon", []float64{-0.15, 0.16, 0}, []float64{0.01, 0.01, 0.01}},
	{"right_fork", "fork", []float64{0.15, 0.16, 0}, []float64{0.01, 0.01, 0.01}},
	{"right_knife", "knife", []float64{0.15, 0.16, 0}, []float64{0.01, 0.01, 0.01}},
	{"right_spoon", "spoon", []float64{0.15, 0.16, 0}, []float64{0.01, 0.01, 0.01}},
}

func settingSlotIndex(name string) int {
	for i, s := range settingSlots {
		if s.name == name {
			return i
		}
	}
	return -1
}

// settingHints biases the subset distribution toward semantically valid
// combinations without hand-weighting all 2^8 cases.
func settingHints() []grammar.SubsetHint {
	byName := func(weight float64, names ...string) grammar.SubsetHint {
		h := grammar.SubsetHint{Weight: weight}
		for _, n := range names {
			h.Indices = append(h.Indices, settingSlotIndex(n))
		}
		return h
	}
	return []grammar.SubsetHint{
		byName(2, "plate", "cup", "left_fork", "right_knife", "right_spoon"),
		byName(2, "plate", "cup", "left_fork", "right_knife"),
		byName(2, "plate", "cup", "left_fork"),
		byName(2, "plate", "cup", "right_fork"),
		byName(2, "plate", "cup", "right_fork", "right_knife"),
		byName(2, "plate", "right_fork"),
		byName(2, "plate", "left_fork"),
		byName(0.5, "cup"),
		byName(1, "plate"),
	}
}

// PlaceSetting is a covarying cluster of tableware around one seat. All
// settings share one subset-weight table and one offset distribution per
// slot, so what is learned at one seat transfers to every seat.
type PlaceSetting struct {
	*grammar.CovaryingSetNode
	Pose pose.Planar
}

// NewPlaceSetting builds a place setting anchored at the given pose.
func NewPlaceSetting(name string, store *grammar.ParamStore, at pose.Planar) (*PlaceSetting, error) {
	rules := make([]grammar.ProductionRule, len(settingSlots))
	for i, slot := range settingSlots {
		meanKey := grammar.ParamKey{Component: "place_setting", Slot: slot.name, Field: "mean"}
		scaleKey := grammar.ParamKey{Component: "place_setting", Slot: slot.name, Field: "scale"}
		if _, err := store.Define(meanKey, slot.mean, grammar.ConstraintNone); err != nil {
			return nil, err
		}
		if _, err := store.Define(scaleKey, slot.scale, grammar.ConstraintPositive); err != nil {
			return nil, err
		}
		rules[i] = &tablewareRule{
			name:     name + "_" + slot.name,
			slot:     slot,
			at:       at,
			meanKey:  meanKey,
			scaleKey: scaleKey,
			store:    store,
		}
	}
	node, err := grammar.NewCovaryingSetNode(name, store,
		grammar.ParamKey{Component: "place_setting", Field: "subset_weights"},
		rules, settingHints(), 0)
	if err != nil {
		return nil, err
	}
	return &PlaceSetting{CovaryingSetNode: node, Pose: at}, nil
}

// tablewareRule draws one tableware object at a Normal offset from the
// place setting's anchor pose.
type tablewareRule struct {
	name     string
	slot     settingSlot
	at       pose.Planar
	meanKey  grammar.ParamKey
	scaleKey grammar.ParamKey
	store    *grammar.ParamStore
}

func (r *tablewareRule) Name() string             { return r.name }
func (r *tablewareRule) ProductClasses() []string { return []string{r.slot.class} }
func (r *tablewareRule) MaxChildren() int         { return 1 }

func (r *tablewareRule) Sample(ctx *grammar.SampleContext, _ grammar.Node, observed []grammar.Node) ([]grammar.Node, error) {
	if observed != nil {
		if len(observed) != 1 {
			return nil, fmt.Errorf("%w: %s wants one child", grammar.ErrChildMismatch, r.name)
		}
		obj, ok := observed[0].(*PlanarObject)
		if !ok || obj.Class != r.slot.class {
			return nil, fmt.Errorf("%w: %s wants class %q", grammar.ErrChildMismatch, r.name, r.slot.class)
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
	rel, err := pose.PlanarFromVector(grammar.SampleNormal(ctx, mean, scale))
	if err != nil {
		return nil, err
	}
	obj, err := NewPlanarObject(r.name+"_obj", r.slot.class, r.at.Chain(rel))
	if err != nil {
		return nil, err
	}
	return []grammar.Node{obj}, nil
}

func (r *tablewareRule) Score(_ grammar.Node, children []grammar.Node, g grammar.Gradients) float64 {
	if len(children) != 1 {
		return math.Inf(-1)
	}
	obj, ok := children[0].(*PlanarObject)
	if !ok || obj.Class != r.slot.class {
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
	rel := r.at.Invert().Chain(obj.Pose)
	return grammar.NormalScoreGrad(rel.Vector(), mean, scale, g, r.meanKey, r.scaleKey)
}

// tableSeats is the number of place-setting locations around the table.
const tableSeats = 4

// Table is the planar scene family root: up to four place settings
// arranged around a round table, each present independently.
type Table struct {
	*grammar.IndependentSetNode
	Pose   pose.Planar
	Radius float64
}

// NewTable builds the table root, registering the table radius, the
// shared seat offset distribution, and the per-seat firing probabilities.
func NewTable(store *grammar.ParamStore) (*Table, error) {
	radius, err := store.Define(
		grammar.ParamKey{Component: "table", Field: "radius"},
		[]float64{0.45}, grammar.ConstraintPositive)
	if err != nil {
		return nil, err
	}
	meanKey := grammar.ParamKey{Component: "table", Slot: "place_setting", Field: "mean"}
	scaleKey := grammar.ParamKey{Component: "table", Slot: "place_setting", Field: "scale"}
	if _, err := store.Define(meanKey, []float64{0, 0, math.Pi / 2}, grammar.ConstraintNone); err != nil {
		return nil, err
	}
	if _, err := store.Define(scaleKey, []float64{0.01, 0.01, 0.01}, grammar.ConstraintPositive); err != nil {
		return nil, err
	}

	tablePose := pose.Planar{X: 0.5, Y: 0.5}
	rules := make([]grammar.ProductionRule, tableSeats)
	probs := make([]float64, tableSeats)
	for k := range rules {
		angle := 2 * math.Pi * float64(k) / tableSeats
		s, c := math.Sincos(angle)
		rules[k] = &seatRule{
			name:     fmt.Sprintf("table_seat_%d", k),
			root:     pose.Planar{X: radius[0] * c, Y: radius[0] * s, Theta: angle},
			table:    tablePose,
			meanKey:  meanKey,
			scaleKey: scaleKey,
			store:    store,
		}
		probs[k] = 0.5
	}
	node, err := grammar.NewIndependentSetNode("table", store,
		grammar.ParamKey{Component: "table", Field: "seat_probs"}, rules, probs)
	if err != nil {
		return nil, err
	}
	return &Table{IndependentSetNode: node, Pose: tablePose, Radius: radius[0]}, nil
}

// seatPose composes a seat's root pose with a sampled offset expressed in
// the table frame.
func seatPose(root, tableFrameOffset pose.Planar) pose.Planar {
	return pose.Planar{
		X:     root.X + tableFrameOffset.X,
		Y:     root.Y + tableFrameOffset.Y,
		Theta: root.Theta + tableFrameOffset.Theta,
	}
}

// seatRule places a full PlaceSetting at one seat around the table, with
// a small Normal jitter shared across seats.
type seatRule struct {
	name     string
	root     pose.Planar
	table    pose.Planar
	meanKey  grammar.ParamKey
	scaleKey grammar.ParamKey
	store    *grammar.ParamStore
}

func (r *seatRule) Name() string             { return r.name }
func (r *seatRule) ProductClasses() []string { return []string{"place_setting"} }
func (r *seatRule) MaxChildren() int         { return 1 }

// ExpectedPose is the seat's anchor with the offset distribution at its
// mean, used by the scene parser to anchor observed settings.
func (r *seatRule) ExpectedPose() (pose.Planar, error) {
	mean, err := r.store.Get(r.meanKey)
	if err != nil {
		return pose.Planar{}, err
	}
	rel, err := pose.PlanarFromVector(mean)
	if err != nil {
		return pose.Planar{}, err
	}
	return seatPose(r.root, r.table.Chain(rel)), nil
}

func (r *seatRule) Sample(ctx *grammar.SampleContext, _ grammar.Node, observed []grammar.Node) ([]grammar.Node, error) {
	if observed != nil {
		if len(observed) != 1 {
			return nil, fmt.Errorf("%w: %s wants one child", grammar.ErrChildMismatch, r.name)
		}
		if _, ok := observed[0].(*PlaceSetting); !ok {
			return nil, fmt.Errorf("%w: %s wants a place setting", grammar.ErrChildMismatch, r.name)
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
	rel, err := pose.PlanarFromVector(grammar.SampleNormal(ctx, mean, scale))
	if err != nil {
		return nil, err
	}
	setting, err := NewPlaceSetting(r.name+"_setting", ctx.Store, seatPose(r.root, r.table.Chain(rel)))
	if err != nil {
		return nil, err
	}
	return []grammar.Node{setting}, nil
}

func (r *seatRule) Score(_ grammar.Node, children []grammar.Node, g grammar.Gradients) float64 {
	if len(children) != 1 {
		return math.Inf(-1)
	}
	setting, ok := children[0].(*PlaceSetting)
	if !ok {
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
	tableFrame := pose.Planar{
		X:     setting.Pose.X - r.root.X,
		Y:     setting.Pose.Y - r.root.Y,
		Theta: setting.Pose.Theta - r.root.Theta,
	}
	rel := r.table.Invert().Chain(tableFrame)
	return grammar.NormalScoreGrad(rel.Vector(), mean, scale, g, r.meanKey, r.scaleKey)
}
