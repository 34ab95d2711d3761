package grammar

// ProductionRule is an atomic stochastic step from a parent node to zero
// or more child nodes. Sampling and scoring are paired: Score must
// return the exact log-probability that Sample, run on the same parent,
// would produce the given children.
//
// When observed is non-nil, Sample must reproduce the observed children
// exactly, conditioning any internal draws on them (used to score real
// data); observed children the rule cannot produce are an error.
// Rule identity is by reference: a node recognizes only rules from its
// own rule list.
type ProductionRule interface {
	Name() string
	// ProductClasses names the object classes this rule can produce,
	// for observed-data association.
	ProductClasses() []string
	Sample(ctx *SampleContext, parent Node, observed []Node) ([]Node, error)
	// Score returns the log-probability of producing children from
	// parent, −Inf if impossible. g may be nil.
	Score(parent Node, children []Node, g Gradients) float64
	// MaxChildren bounds how many nodes one firing can produce, so
	// total tree size is provably finite.
	MaxChildren() int
}
