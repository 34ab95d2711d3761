package grammar

import (
	"fmt"
	"math"

	"github.com/mpetersen94/scene-generation/scenefile"
)

// Strategy tags how a node selects which of its production rules fire.
type Strategy int

const (
	// StrategyTerminal marks a leaf carrying a concrete object.
	StrategyTerminal Strategy = iota
	// StrategyOr fires exactly one rule, chosen categorically.
	StrategyOr
	// StrategyAnd always fires every rule.
	StrategyAnd
	// StrategyCovaryingSet fires a subset with a joint weight per combination.
	StrategyCovaryingSet
	// StrategyIndependentSet fires each rule independently by its own Bernoulli weight.
	StrategyIndependentSet
)

func (s Strategy) String() string {
	switch s {
	case StrategyTerminal:
		return "terminal"
	case StrategyOr:
		return "or"
	case StrategyAnd:
		return "and"
	case StrategyCovaryingSet:
		return "covarying_set"
	case StrategyIndependentSet:
		return "independent_set"
	default:
		return "unknown"
	}
}

// Node is a grammar symbol. Implementations are immutable once created;
// a new parse step builds new node instances.
//
// SampleRules draws the set of active production rules. When conditioned
// is true the draw must reproduce exactly the observed set, which may be
// empty: a node observed to fire nothing is a valid observation, distinct
// from no observation at all. A set the node cannot produce is an error,
// never silently corrected. ScoreRules returns the log-probability of a
// selection, −Inf if the selection is not representable; g may be nil
// when gradients are not wanted.
type Node interface {
	Name() string
	Strategy() Strategy
	Rules() []ProductionRule
	SampleRules(ctx *SampleContext, observed []ProductionRule, conditioned bool) ([]ProductionRule, error)
	ScoreRules(rules []ProductionRule, g Gradients) float64
}

// Terminal is a leaf node carrying a concrete posed object that can
// serialize itself to the scene record format.
type Terminal interface {
	Node
	Record() scenefile.Object
}

// TerminalBase provides the Node surface shared by all terminals.
// Embedders supply Record.
type TerminalBase struct {
	NodeName string
}

func (t TerminalBase) Name() string            { return t.NodeName }
func (t TerminalBase) Strategy() Strategy      { return StrategyTerminal }
func (t TerminalBase) Rules() []ProductionRule { return nil }
func (t TerminalBase) SampleRules(_ *SampleContext, observed []ProductionRule, conditioned bool) ([]ProductionRule, error) {
	if conditioned && len(observed) != 0 {
		return nil, fmt.Errorf("%w: terminal %s fires no rules", ErrRuleMismatch, t.NodeName)
	}
	return nil, nil
}

// ScoreRules on a terminal: only the empty selection is representable.
func (t TerminalBase) ScoreRules(rules []ProductionRule, _ Gradients) float64 {
	if len(rules) != 0 {
		return math.Inf(-1)
	}
	return 0
}

// ruleIndex finds a rule in a node's own list by reference identity.
func ruleIndex(rules []ProductionRule, r ProductionRule) (int, bool) {
	for i, candidate := range rules {
		if candidate == r {
			return i, true
		}
	}
	return 0, false
}

// OrNode chooses exactly one production rule by a learned categorical
// weight vector held in the parameter store.
type OrNode struct {
	name      string
	store     *ParamStore
	weightKey ParamKey
	rules     []ProductionRule
}

// NewOrNode builds an Or node, registering its weight simplex under
// weightKey if not already present.
func NewOrNode(name string, store *ParamStore, weightKey ParamKey,
	rules []ProductionRule, initWeights []float64,
) (*OrNode, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRules, name)
	}
	if len(initWeights) != len(rules) {
		return nil, fmt.Errorf("%w: %s", ErrWeightCount, name)
	}
	if _, err := store.Define(weightKey, initWeights, ConstraintSimplex); err != nil {
		return nil, err
	}
	return &OrNode{name: name, store: store, weightKey: weightKey, rules: rules}, nil
}

func (n *OrNode) Name() string            { return n.name }
func (n *OrNode) Strategy() Strategy      { return StrategyOr }
func (n *OrNode) Rules() []ProductionRule { return n.rules }

func (n *OrNode) SampleRules(ctx *SampleContext, observed []ProductionRule, conditioned bool) ([]ProductionRule, error) {
	if conditioned {
		if len(observed) != 1 {
			return nil, fmt.Errorf("%w: or node %s needs exactly one rule", ErrRuleMismatch, n.name)
		}
		if _, ok := ruleIndex(n.rules, observed[0]); !ok {
			return nil, fmt.Errorf("%w: or node %s", ErrRuleMismatch, n.name)
		}
		return observed, nil
	}
	weights, err := ctx.Store.Get(n.weightKey)
	if err != nil {
		return nil, err
	}
	idx := SampleCategorical(ctx, weights)
	return []ProductionRule{n.rules[idx]}, nil
}

func (n *OrNode) ScoreRules(rules []ProductionRule, g Gradients) float64 {
	if len(rules) != 1 {
		return math.Inf(-1)
	}
	idx, ok := ruleIndex(n.rules, rules[0])
	if !ok {
		return math.Inf(-1)
	}
	weights, err := n.store.Get(n.weightKey)
	if err != nil {
		return math.Inf(-1)
	}
	if g != nil {
		g.Accum(n.weightKey, len(weights), idx, 1/weights[idx])
	}
	return CategoricalLogProb(weights, idx)
}

// AndNode deterministically fires every rule it holds.
type AndNode struct {
	name  string
	rules []ProductionRule
}

// NewAndNode builds an And node.
func NewAndNode(name string, rules []ProductionRule) (*AndNode, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRules, name)
	}
	return &AndNode{name: name, rules: rules}, nil
}

func (n *AndNode) Name() string            { return n.name }
func (n *AndNode) Strategy() Strategy      { return StrategyAnd }
func (n *AndNode) Rules() []ProductionRule { return n.rules }

func (n *AndNode) SampleRules(_ *SampleContext, observed []ProductionRule, conditioned bool) ([]ProductionRule, error) {
	if conditioned {
		if len(observed) != len(n.rules) {
			return nil, fmt.Errorf("%w: and node %s must fire all rules", ErrRuleMismatch, n.name)
		}
		for i, r := range observed {
			if n.rules[i] != r {
				return nil, fmt.Errorf("%w: and node %s", ErrRuleMismatch, n.name)
			}
		}
	}
	return n.rules, nil
}

func (n *AndNode) ScoreRules(rules []ProductionRule, _ Gradients) float64 {
	if len(rules) != len(n.rules) {
		return math.Inf(-1)
	}
	for i, r := range rules {
		if n.rules[i] != r {
			return math.Inf(-1)
		}
	}
	return 0
}
