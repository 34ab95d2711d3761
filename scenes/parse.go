package scenes

import (
	"fmt"
	"math"
	"sort"

	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/pose"
	"github.com/mpetersen94/scene-generation/scenefile"
)

// observedStep is the forced production choice for one node: which rules
// fired and the observed children each produced.
type observedStep struct {
	rules    []grammar.ProductionRule
	children [][]grammar.Node
}

// sceneObservation implements grammar.Observation over choices assembled
// ahead of expansion by a greedy parse of the scene record.
type sceneObservation struct {
	choices map[grammar.Node]observedStep
}

func (o *sceneObservation) Choose(node grammar.Node) ([]grammar.ProductionRule, [][]grammar.Node, error) {
	step, ok := o.choices[node]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no observed choice for node %s", ErrUnparseable, node.Name())
	}
	// An empty rule set is a real observation: the node fired nothing.
	return step.rules, step.children, nil
}

// ParseTableScene greedily explains a planar scene under the table
// grammar: each object is assigned to the nearest seat, then to the best
// free slot of its class within that seat's setting (left/right variants
// disambiguated by the object's offset in the setting frame). Seats with
// no assigned objects are treated as not fired; an empty place setting is
// indistinguishable from an absent one in the record format.
func ParseTableScene(table *Table, store *grammar.ParamStore, scene scenefile.Scene) (grammar.Observation, error) {
	seats := table.Rules()
	anchors := make([]pose.Planar, len(seats))
	for i, r := range seats {
		seat, ok := r.(*seatRule)
		if !ok {
			return nil, fmt.Errorf("%w: table rule %s is not a seat", ErrUnparseable, r.Name())
		}
		anchor, err := seat.ExpectedPose()
		if err != nil {
			return nil, err
		}
		anchors[i] = anchor
	}

	assigned := make([][]scenefile.Object, len(seats))
	for _, obj := range scene.Objects {
		if _, ok := planarCatalog[obj.Class]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownClass, obj.Class)
		}
		p, err := pose.PlanarFromVector(obj.Pose)
		if err != nil {
			return nil, fmt.Errorf("object %s: %w", obj.Class, err)
		}
		bestSeat := 0
		bestDist := math.Inf(1)
		for i, anchor := range anchors {
			d := math.Hypot(p.X-anchor.X, p.Y-anchor.Y)
			if d < bestDist {
				bestDist = d
				bestSeat = i
			}
		}
		assigned[bestSeat] = append(assigned[bestSeat], obj)
	}

	obs := &sceneObservation{choices: map[grammar.Node]observedStep{}}
	var tableStep observedStep
	for i, objs := range assigned {
		if len(objs) == 0 {
			continue
		}
		setting, err := NewPlaceSetting(seats[i].Name()+"_setting", store, anchors[i])
		if err != nil {
			return nil, err
		}
		settingStep, err := assignSettingSlots(setting, objs)
		if err != nil {
			return nil, fmt.Errorf("seat %s: %w", seats[i].Name(), err)
		}
		obs.choices[setting] = settingStep
		tableStep.rules = append(tableStep.rules, seats[i])
		tableStep.children = append(tableStep.children, []grammar.Node{setting})
	}
	obs.choices[table] = tableStep
	return obs, nil
}

// assignSettingSlots maps observed objects onto the setting's slots,
// preferring the slot whose learned mean offset is closest in the
// setting frame. Two objects competing for one slot make the scene
// unparseable rather than silently merged.
func assignSettingSlots(setting *PlaceSetting, objs []scenefile.Object) (observedStep, error) {
	rules := setting.Rules()
	taken := make([]bool, len(rules))
	childBySlot := make([]*PlanarObject, len(rules))

	for _, obj := range objs {
		p, err := pose.PlanarFromVector(obj.Pose)
		if err != nil {
			return observedStep{}, err
		}
		rel := setting.Pose.Invert().Chain(p)
		bestSlot := -1
		bestDist := math.Inf(1)
		for k, slot := range settingSlots {
			if slot.class != obj.Class || taken[k] {
				continue
			}
			d := math.Hypot(rel.X-slot.mean[0], rel.Y-slot.mean[1])
			if d < bestDist {
				bestDist = d
				bestSlot = k
			}
		}
		if bestSlot < 0 {
			return observedStep{}, fmt.Errorf("%w: no free slot for class %q", ErrUnparseable, obj.Class)
		}
		taken[bestSlot] = true
		child, err := NewPlanarObject(rules[bestSlot].Name()+"_obj", obj.Class, p)
		if err != nil {
			return observedStep{}, err
		}
		childBySlot[bestSlot] = child
	}

	var step observedStep
	for k := range rules {
		if childBySlot[k] == nil {
			continue
		}
		step.rules = append(step.rules, rules[k])
		step.children = append(step.children, []grammar.Node{childBySlot[k]})
	}
	return step, nil
}

// ParseDishBinScene explains a spatial scene under the dish bin grammar.
// Slots of one class are interchangeable, so objects are assigned to
// slots of their class in record order.
func ParseDishBinScene(bin *DishBin, scene scenefile.Scene) (grammar.Observation, error) {
	byClass := map[string][]scenefile.Object{}
	var classes []string
	for _, obj := range scene.Objects {
		if _, ok := byClass[obj.Class]; !ok {
			classes = append(classes, obj.Class)
		}
		byClass[obj.Class] = append(byClass[obj.Class], obj)
	}
	sort.Strings(classes)

	rules := bin.Rules()
	var step observedStep
	for _, class := range classes {
		var classRules []*dishRule
		for _, r := range rules {
			if dr, ok := r.(*dishRule); ok && dr.class == class {
				classRules = append(classRules, dr)
			}
		}
		objs := byClass[class]
		if len(classRules) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownClass, class)
		}
		if len(objs) > len(classRules) {
			return nil, fmt.Errorf("%w: %d objects of class %q exceed %d slots",
				ErrUnparseable, len(objs), class, len(classRules))
		}
		for i, obj := range objs {
			p, err := pose.SpatialFromQuatVector(obj.Pose)
			if err != nil {
				return nil, fmt.Errorf("object %s: %w", obj.Class, err)
			}
			child := &SpatialObject{
				TerminalBase: grammar.TerminalBase{NodeName: classRules[i].Name() + "_obj"},
				Class:        class,
				Pose:         p,
			}
			step.rules = append(step.rules, classRules[i])
			step.children = append(step.children, []grammar.Node{child})
		}
	}
	return &sceneObservation{choices: map[grammar.Node]observedStep{bin: step}}, nil
}
