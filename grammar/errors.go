package grammar

import "errors"

var (
	// ErrNoRules is returned when an Or/And/CovaryingSet node is built with zero production rules.
	ErrNoRules = errors.New("node must have at least one production rule")

	// ErrWeightCount is returned when the number of weights does not match the number of rules.
	ErrWeightCount = errors.New("production rule and weight counts must match")

	// ErrTooManyRules is returned when a CovaryingSet would need more than 2^16 subset weights.
	ErrTooManyRules = errors.New("too many rules for covarying set")

	// ErrBadHint is returned for a subset hint with a bad index or negative weight.
	ErrBadHint = errors.New("invalid subset weight hint")

	// ErrRuleMismatch is returned when observed-mode sampling is given rules the node does not own.
	ErrRuleMismatch = errors.New("observed rules not producible by node")

	// ErrChildMismatch is returned when observed children cannot be produced by a rule.
	ErrChildMismatch = errors.New("observed children not producible by rule")

	// ErrChildBound is returned when a rule produces more children than its declared bound.
	ErrChildBound = errors.New("rule produced more children than its declared bound")

	// ErrNonTermination is returned when tree expansion exceeds the hard iteration cap.
	ErrNonTermination = errors.New("grammar did not terminate")

	// ErrUnknownParam is returned when looking up a parameter that was never defined.
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrParamRedefined is returned when a parameter is redefined with a different shape or constraint.
	ErrParamRedefined = errors.New("parameter redefined with different shape or constraint")
)
