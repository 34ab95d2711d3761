package scenes

import (
	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/scenefile"
)

// NewTableScorer returns a closure scoring planar table scenes as joint
// log-probabilities under the grammar. Each call parses and expands a
// fresh observed tree, so the closure is safe to call from concurrent
// fitting workers.
func NewTableScorer(table *Table, store *grammar.ParamStore) func(scenefile.Scene, grammar.Gradients) (float64, error) {
	return func(scene scenefile.Scene, g grammar.Gradients) (float64, error) {
		obs, err := ParseTableScene(table, store, scene)
		if err != nil {
			return 0, err
		}
		ctx := grammar.NewSampleContext(store, 0)
		tree, err := grammar.ExpandObserved(ctx, table, obs, grammar.DefaultExpandConfig())
		if err != nil {
			return 0, err
		}
		total, _ := tree.Score(g)
		return total, nil
	}
}

// NewDishBinScorer returns the spatial analogue of NewTableScorer for
// dish bin scenes.
func NewDishBinScorer(bin *DishBin, store *grammar.ParamStore) func(scenefile.Scene, grammar.Gradients) (float64, error) {
	return func(scene scenefile.Scene, g grammar.Gradients) (float64, error) {
		obs, err := ParseDishBinScene(bin, scene)
		if err != nil {
			return 0, err
		}
		ctx := grammar.NewSampleContext(store, 0)
		tree, err := grammar.ExpandObserved(ctx, bin, obs, grammar.DefaultExpandConfig())
		if err != nil {
			return 0, err
		}
		total, _ := tree.Score(g)
		return total, nil
	}
}
