package grammar

import (
	"fmt"

	"github.com/mpetersen94/scene-generation/scenefile"
)

// ProductionStep records one node's expansion: which rules fired and
// what children each produced.
type ProductionStep struct {
	Parent         Node
	Rules          []ProductionRule
	ChildrenByRule [][]Node
}

// ParseTree is the realized expansion of a root node into terminals for
// one sample. Trees are built fresh per sample and never mutated, only
// scored or rendered to the scene record format.
type ParseTree struct {
	Root      Node
	Steps     []ProductionStep
	Terminals []Terminal
}

// ExpandConfig bounds tree expansion.
type ExpandConfig struct {
	// MaxIterations is the hard cap on work-list pops; exceeding it is
	// ErrNonTermination. Node and rule definitions are responsible for
	// boundedness; this is the safety net.
	MaxIterations int
}

// DefaultExpandConfig returns the standard expansion bound.
func DefaultExpandConfig() ExpandConfig {
	return ExpandConfig{MaxIterations: 10000}
}

// Observation supplies the production choices a tree expansion must
// reproduce when scoring observed data: for each non-terminal node, the
// rules that fired and the observed children each rule produced. An
// empty rule set means the node was observed to fire nothing; every
// node reached under an observation is conditioned.
type Observation interface {
	Choose(node Node) (rules []ProductionRule, childrenByRule [][]Node, err error)
}

// Expand samples a parse tree from root, breadth-first: pop a node,
// collect it if terminal, otherwise sample its production rules, run
// each rule, and enqueue the children. The fixed expansion order keeps
// random draws for a given site in the same relative sequence across
// samples.
func Expand(ctx *SampleContext, root Node, cfg ExpandConfig) (*ParseTree, error) {
	return expand(ctx, root, nil, cfg)
}

// ExpandObserved reproduces the expansion dictated by an observation,
// conditioning every draw, so the resulting tree can be scored as the
// joint log-probability of fully observed data.
func ExpandObserved(ctx *SampleContext, root Node, obs Observation, cfg ExpandConfig) (*ParseTree, error) {
	return expand(ctx, root, obs, cfg)
}

func expand(ctx *SampleContext, root Node, obs Observation, cfg ExpandConfig) (*ParseTree, error) {
	tree := &ParseTree{Root: root}
	worklist := []Node{root}
	iterations := 0
	for len(worklist) > 0 {
		if iterations >= cfg.MaxIterations {
			return nil, fmt.Errorf("%w after %d iterations", ErrNonTermination, iterations)
		}
		iterations++
		node := worklist[0]
		worklist = worklist[1:]

		if term, ok := node.(Terminal); ok {
			tree.Terminals = append(tree.Terminals, term)
			continue
		}

		var observedRules []ProductionRule
		var observedChildren [][]Node
		conditioned := obs != nil
		if conditioned {
			var err error
			observedRules, observedChildren, err = obs.Choose(node)
			if err != nil {
				return nil, fmt.Errorf("choosing observed rules for %s: %w", node.Name(), err)
			}
		}

		rules, err := node.SampleRules(ctx, observedRules, conditioned)
		if err != nil {
			return nil, fmt.Errorf("sampling rules at %s: %w", node.Name(), err)
		}

		step := ProductionStep{Parent: node, Rules: rules}
		for i, rule := range rules {
			var obsChildren []Node
			if obs != nil {
				obsChildren = observedChildren[i]
			}
			children, err := rule.Sample(ctx, node, obsChildren)
			if err != nil {
				return nil, fmt.Errorf("rule %s at %s: %w", rule.Name(), node.Name(), err)
			}
			if len(children) > rule.MaxChildren() {
				return nil, fmt.Errorf("%w: rule %s produced %d > %d",
					ErrChildBound, rule.Name(), len(children), rule.MaxChildren())
			}
			step.ChildrenByRule = append(step.ChildrenByRule, children)
			worklist = append(worklist, children...)
		}
		tree.Steps = append(tree.Steps, step)
	}
	return tree, nil
}

// Score returns the tree's total joint log-probability: the sum over
// every production step of the node's selection score plus each fired
// rule's product score. Each node is visited exactly once, so nothing is
// double counted. The per-node breakdown is returned alongside. g may be
// nil when gradients are not wanted.
func (t *ParseTree) Score(g Gradients) (float64, map[string]float64) {
	var total float64
	byNode := make(map[string]float64, len(t.Steps))
	for _, step := range t.Steps {
		score := step.Parent.ScoreRules(step.Rules, g)
		for i, rule := range step.Rules {
			score += rule.Score(step.Parent, step.ChildrenByRule[i], g)
		}
		byNode[step.Parent.Name()] = score
		total += score
	}
	return total, byNode
}

// Scene serializes the tree's terminals, in expansion order, to a scene
// record.
func (t *ParseTree) Scene() scenefile.Scene {
	scene := scenefile.Scene{Objects: make([]scenefile.Object, 0, len(t.Terminals))}
	for _, term := range t.Terminals {
		scene.Objects = append(scene.Objects, term.Record())
	}
	return scene
}
