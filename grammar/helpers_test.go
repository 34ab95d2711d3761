package grammar

import (
	"fmt"
	"math"

	"github.com/mpetersen94/scene-generation/scenefile"
)

// testTerminal is a minimal leaf for node and tree tests.
type testTerminal struct {
	TerminalBase
	class string
	pose  []float64
}

func (t *testTerminal) Record() scenefile.Object {
	return scenefile.Object{Class: t.class, Pose: t.pose}
}

// terminalRule deterministically produces one testTerminal.
type terminalRule struct {
	name  string
	class string
}

func (r *terminalRule) Name() string             { return r.name }
func (r *terminalRule) ProductClasses() []string { return []string{r.class} }
func (r *terminalRule) MaxChildren() int         { return 1 }

func (r *terminalRule) Sample(_ *SampleContext, _ Node, observed []Node) ([]Node, error) {
	if observed != nil {
		if len(observed) != 1 {
			return nil, fmt.Errorf("%w: want one child", ErrChildMismatch)
		}
		return observed, nil
	}
	return []Node{&testTerminal{
		TerminalBase: TerminalBase{NodeName: r.name + "_" + r.class},
		class:        r.class,
		pose:         []float64{0, 0, 0},
	}}, nil
}

func (r *terminalRule) Score(_ Node, children []Node, _ Gradients) float64 {
	if len(children) != 1 {
		return math.Inf(-1)
	}
	if term, ok := children[0].(*testTerminal); !ok || term.class != r.class {
		return math.Inf(-1)
	}
	return 0
}

func makeTerminalRules(classes ...string) []ProductionRule {
	rules := make([]ProductionRule, len(classes))
	for i, c := range classes {
		rules[i] = &terminalRule{name: fmt.Sprintf("rule_%03d", i), class: c}
	}
	return rules
}
