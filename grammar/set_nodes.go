package grammar

import (
	"fmt"
	"math"
)

// maxCovaryingRules caps the CovaryingSet combinatorial blowup: 2^n
// subset weights get expensive fast.
const maxCovaryingRules = 16

// SubsetHint gives a relative occurrence weight to one specific
// combination of production rules, identified by rule indices.
type SubsetHint struct {
	Indices []int
	Weight  float64
}

// CovaryingSetNode chooses a subset of its rules from a categorical
// distribution over all 2^n combinations, capturing correlated
// co-occurrence ("plate+fork" common, "fork alone" rare). The full
// weight table is built at construction from sparse hints plus a uniform
// remaining weight over unlisted combinations.
type CovaryingSetNode struct {
	name      string
	store     *ParamStore
	weightKey ParamKey
	rules     []ProductionRule
}

// NewCovaryingSetNode builds the 2^n subset weight table and registers
// it as a simplex parameter under weightKey.
func NewCovaryingSetNode(name string, store *ParamStore, weightKey ParamKey,
	rules []ProductionRule, hints []SubsetHint, remainingWeight float64,
) (*CovaryingSetNode, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRules, name)
	}
	if len(rules) > maxCovaryingRules {
		return nil, fmt.Errorf("%w: %s has %d rules", ErrTooManyRules, name, len(rules))
	}
	if remainingWeight < 0 {
		return nil, fmt.Errorf("%w: negative remaining weight", ErrBadHint)
	}
	numCombinations := 1 << len(rules)
	weights := make([]float64, numCombinations)
	for i := range weights {
		weights[i] = remainingWeight
	}
	var total float64
	for _, hint := range hints {
		if hint.Weight < 0 {
			return nil, fmt.Errorf("%w: negative weight in %s", ErrBadHint, name)
		}
		combination := 0
		for _, idx := range hint.Indices {
			if idx < 0 || idx >= len(rules) {
				return nil, fmt.Errorf("%w: index %d out of range in %s", ErrBadHint, idx, name)
			}
			combination |= 1 << idx
		}
		weights[combination] = hint.Weight
	}
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: all subset weights zero in %s", ErrBadHint, name)
	}
	for i := range weights {
		weights[i] /= total
	}
	if _, err := store.Define(weightKey, weights, ConstraintSimplex); err != nil {
		return nil, err
	}
	return &CovaryingSetNode{name: name, store: store, weightKey: weightKey, rules: rules}, nil
}

func (n *CovaryingSetNode) Name() string            { return n.name }
func (n *CovaryingSetNode) Strategy() Strategy      { return StrategyCovaryingSet }
func (n *CovaryingSetNode) Rules() []ProductionRule { return n.rules }

// recoverCombination maps a rule set to its subset index by reference
// membership in the node's own rule list. A foreign or duplicated rule
// makes the set unrepresentable.
func (n *CovaryingSetNode) recoverCombination(rules []ProductionRule) (int, bool) {
	combination := 0
	for _, r := range rules {
		idx, ok := ruleIndex(n.rules, r)
		if !ok || combination&(1<<idx) != 0 {
			return 0, false
		}
		combination |= 1 << idx
	}
	return combination, true
}

// selectCombination decodes a subset index into rules, in rule order.
// The empty combination decodes to an empty, non-nil set.
func (n *CovaryingSetNode) selectCombination(combination int) []ProductionRule {
	out := []ProductionRule{}
	for k, r := range n.rules {
		if (combination>>k)&1 == 1 {
			out = append(out, r)
		}
	}
	return out
}

func (n *CovaryingSetNode) SampleRules(ctx *SampleContext, observed []ProductionRule, conditioned bool) ([]ProductionRule, error) {
	if conditioned {
		if _, ok := n.recoverCombination(observed); !ok {
			return nil, fmt.Errorf("%w: covarying set %s", ErrRuleMismatch, n.name)
		}
		return observed, nil
	}
	weights, err := ctx.Store.Get(n.weightKey)
	if err != nil {
		return nil, err
	}
	combination := SampleCategorical(ctx, weights)
	return n.selectCombination(combination), nil
}

func (n *CovaryingSetNode) ScoreRules(rules []ProductionRule, g Gradients) float64 {
	combination, ok := n.recoverCombination(rules)
	if !ok {
		return math.Inf(-1)
	}
	weights, err := n.store.Get(n.weightKey)
	if err != nil {
		return math.Inf(-1)
	}
	if g != nil {
		g.Accum(n.weightKey, len(weights), combination, 1/weights[combination])
	}
	return CategoricalLogProb(weights, combination)
}

// IndependentSetNode chooses a subset of its rules where each fires
// independently via its own Bernoulli weight. No combinatorial joint
// table, but no inter-rule correlation either.
type IndependentSetNode struct {
	name    string
	store   *ParamStore
	probKey ParamKey
	rules   []ProductionRule
}

// NewIndependentSetNode registers the per-rule firing probabilities as a
// unit-interval parameter under probKey. Zero rules is permitted (the
// node simply never produces children).
func NewIndependentSetNode(name string, store *ParamStore, probKey ParamKey,
	rules []ProductionRule, initProbs []float64,
) (*IndependentSetNode, error) {
	if len(initProbs) != len(rules) {
		return nil, fmt.Errorf("%w: %s", ErrWeightCount, name)
	}
	if _, err := store.Define(probKey, initProbs, ConstraintUnitInterval); err != nil {
		return nil, err
	}
	return &IndependentSetNode{name: name, store: store, probKey: probKey, rules: rules}, nil
}

func (n *IndependentSetNode) Name() string            { return n.name }
func (n *IndependentSetNode) Strategy() Strategy      { return StrategyIndependentSet }
func (n *IndependentSetNode) Rules() []ProductionRule { return n.rules }

// recoverMask maps a rule set to a 0/1 activation mask over the node's
// own rules. A foreign or duplicated rule makes the set unrepresentable.
func (n *IndependentSetNode) recoverMask(rules []ProductionRule) ([]bool, bool) {
	mask := make([]bool, len(n.rules))
	for _, r := range rules {
		idx, ok := ruleIndex(n.rules, r)
		if !ok || mask[idx] {
			return nil, false
		}
		mask[idx] = true
	}
	return mask, true
}

func (n *IndependentSetNode) SampleRules(ctx *SampleContext, observed []ProductionRule, conditioned bool) ([]ProductionRule, error) {
	if conditioned {
		if _, ok := n.recoverMask(observed); !ok {
			return nil, fmt.Errorf("%w: independent set %s", ErrRuleMismatch, n.name)
		}
		return observed, nil
	}
	probs, err := ctx.Store.Get(n.probKey)
	if err != nil {
		return nil, err
	}
	var out []ProductionRule
	for k, r := range n.rules {
		if SampleBernoulli(ctx, probs[k]) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (n *IndependentSetNode) ScoreRules(rules []ProductionRule, g Gradients) float64 {
	mask, ok := n.recoverMask(rules)
	if !ok {
		return math.Inf(-1)
	}
	probs, err := n.store.Get(n.probKey)
	if err != nil {
		return math.Inf(-1)
	}
	var total float64
	for k, active := range mask {
		total += BernoulliLogProb(active, probs[k])
		if g != nil {
			if active {
				g.Accum(n.probKey, len(probs), k, 1/probs[k])
			} else {
				g.Accum(n.probKey, len(probs), k, -1/(1-probs[k]))
			}
		}
	}
	return total
}
