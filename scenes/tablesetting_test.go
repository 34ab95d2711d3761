package scenes

import (
	"errors"
	"math"
	"testing"

	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/pose"
	"github.com/mpetersen94/scene-generation/scenefile"
)

func TestTableSampleProducesCatalogObjects(t *testing.T) {
	store := grammar.NewParamStore()
	table, err := NewTable(store)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	ctx := grammar.NewSampleContext(store, 4)
	tree, err := grammar.Expand(ctx, table, grammar.DefaultExpandConfig())
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	scene := tree.Scene()
	for _, obj := range scene.Objects {
		spec, ok := planarCatalog[obj.Class]
		if !ok {
			t.Fatalf("sampled unknown class %q", obj.Class)
		}
		if len(obj.Pose) != 3 {
			t.Errorf("%s pose has %d floats, want 3", obj.Class, len(obj.Pose))
		}
		if len(obj.Params) != len(spec.params) {
			t.Errorf("%s params %v do not match catalog", obj.Class, obj.Params)
		}
		if obj.ImagePath == "" {
			t.Errorf("%s missing image path", obj.Class)
		}
	}
}

func TestTableMeanSettingCount(t *testing.T) {
	store := grammar.NewParamStore()
	table, err := NewTable(store)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	ctx := grammar.NewSampleContext(store, 1234)

	const trials = 10000
	var total int
	for i := 0; i < trials; i++ {
		tree, err := grammar.Expand(ctx, table, grammar.DefaultExpandConfig())
		if err != nil {
			t.Fatalf("trial %d: Expand failed: %v", i, err)
		}
		for _, step := range tree.Steps {
			if step.Parent == grammar.Node(table) {
				total += len(step.Rules)
			}
		}
	}
	mean := float64(total) / trials
	// Four seats firing independently at 0.5 each.
	if math.Abs(mean-2.0) > 0.05 {
		t.Errorf("mean setting count %.3f over %d scenes, want ~2.0", mean, trials)
	}
}

func TestTableObservedRoundTrip(t *testing.T) {
	store := grammar.NewParamStore()
	table, err := NewTable(store)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	ctx := grammar.NewSampleContext(store, 99)

	var tree *grammar.ParseTree
	for {
		tree, err = grammar.Expand(ctx, table, grammar.DefaultExpandConfig())
		if err != nil {
			t.Fatalf("Expand failed: %v", err)
		}
		if len(tree.Terminals) > 0 {
			break
		}
	}
	scene := tree.Scene()

	obs, err := ParseTableScene(table, store, scene)
	if err != nil {
		t.Fatalf("ParseTableScene failed: %v", err)
	}
	observed, err := grammar.ExpandObserved(ctx, table, obs, grammar.DefaultExpandConfig())
	if err != nil {
		t.Fatalf("ExpandObserved failed: %v", err)
	}
	if len(observed.Terminals) != len(tree.Terminals) {
		t.Fatalf("observed tree has %d terminals, sampled had %d",
			len(observed.Terminals), len(tree.Terminals))
	}
	score, byNode := observed.Score(nil)
	if math.IsInf(score, 0) || math.IsNaN(score) {
		t.Fatalf("observed tree scored %f", score)
	}
	var sum float64
	for _, s := range byNode {
		sum += s
	}
	if math.Abs(score-sum) > 1e-9 {
		t.Errorf("score %f != per-node sum %f", score, sum)
	}
}

func TestTableObservedGradientTouchesSharedParams(t *testing.T) {
	store := grammar.NewParamStore()
	table, err := NewTable(store)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	ctx := grammar.NewSampleContext(store, 6)

	var tree *grammar.ParseTree
	for {
		tree, err = grammar.Expand(ctx, table, grammar.DefaultExpandConfig())
		if err != nil {
			t.Fatalf("Expand failed: %v", err)
		}
		if len(tree.Terminals) > 0 {
			break
		}
	}
	obs, err := ParseTableScene(table, store, tree.Scene())
	if err != nil {
		t.Fatalf("ParseTableScene failed: %v", err)
	}
	observed, err := grammar.ExpandObserved(ctx, table, obs, grammar.DefaultExpandConfig())
	if err != nil {
		t.Fatalf("ExpandObserved failed: %v", err)
	}
	g := grammar.Gradients{}
	observed.Score(g)
	if len(g) == 0 {
		t.Fatal("scoring produced no gradients")
	}
	seatKey := grammar.ParamKey{Component: "table", Field: "seat_probs"}
	if _, ok := g[seatKey]; !ok {
		t.Errorf("no gradient for %s", seatKey)
	}
}

func TestParseTableSceneRejectsUnknownClass(t *testing.T) {
	store := grammar.NewParamStore()
	table, err := NewTable(store)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	scene := scenefile.Scene{Objects: []scenefile.Object{
		{Class: "teapot", Pose: []float64{0.9, 0.5, 0}},
	}}
	_, err = ParseTableScene(table, store, scene)
	if !errors.Is(err, ErrUnknownClass) {
		t.Errorf("expected ErrUnknownClass, got %v", err)
	}
}

func TestNewPlanarObjectUnknownClass(t *testing.T) {
	_, err := NewPlanarObject("x", "teapot", pose.Planar{})
	if !errors.Is(err, ErrUnknownClass) {
		t.Errorf("expected ErrUnknownClass, got %v", err)
	}
}
