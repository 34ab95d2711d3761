package scenegen

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"

	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/internal/checkpoint"
	"github.com/mpetersen94/scene-generation/scenefile"
	"github.com/mpetersen94/scene-generation/scenes"
)

func TestGeneratorRunTableSetting(t *testing.T) {
	cfg, err := DefaultConfig(FamilyTableSetting)
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.Count = 5
	cfg.OutputPath = filepath.Join(t.TempDir(), "table.yaml")

	store := grammar.NewParamStore()
	gen, err := NewGenerator(cfg, store, nil)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	gen.SetRenderer(NewLogRenderer(nil, nil))

	stats, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Accepted != cfg.Count {
		t.Fatalf("accepted %d scenes, want %d", stats.Accepted, cfg.Count)
	}

	scenes, err := scenefile.LoadOrdered(cfg.OutputPath)
	if err != nil {
		t.Fatalf("LoadOrdered failed: %v", err)
	}
	if len(scenes) != cfg.Count {
		t.Fatalf("file holds %d scenes, want %d", len(scenes), cfg.Count)
	}
	for i, scene := range scenes {
		for j, obj := range scene.Objects {
			if len(obj.Pose) != 3 {
				t.Fatalf("scene %d obj %d: pose length %d", i, j, len(obj.Pose))
			}
			if obj.Pose[0] < -2 || obj.Pose[0] > 2 || obj.Pose[1] < -2 || obj.Pose[1] > 2 {
				t.Errorf("scene %d obj %d: pose %v outside acceptance box", i, j, obj.Pose)
			}
		}
	}
}

func TestGeneratorRunDishBin(t *testing.T) {
	cfg, err := DefaultConfig(FamilyDishBin)
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.Count = 3
	cfg.OutputPath = filepath.Join(t.TempDir(), "bin.yaml")

	gen, err := NewGenerator(cfg, grammar.NewParamStore(), nil)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	if _, err := gen.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	scenes, err := scenefile.LoadOrdered(cfg.OutputPath)
	if err != nil {
		t.Fatalf("LoadOrdered failed: %v", err)
	}
	if len(scenes) != cfg.Count {
		t.Fatalf("file holds %d scenes, want %d", len(scenes), cfg.Count)
	}
	for i, scene := range scenes {
		for j, obj := range scene.Objects {
			if len(obj.Pose) != 7 {
				t.Fatalf("scene %d obj %d: pose length %d", i, j, len(obj.Pose))
			}
		}
	}
}

func TestGeneratorRunPlanarStacks(t *testing.T) {
	cfg, err := DefaultConfig(FamilyPlanarBinStacks)
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.Count = 3
	cfg.OutputPath = filepath.Join(t.TempDir(), "stacks.yaml")

	gen, err := NewGenerator(cfg, grammar.NewParamStore(), nil)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	stats, err := gen.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if stats.Accepted != cfg.Count {
		t.Fatalf("accepted %d scenes, want %d", stats.Accepted, cfg.Count)
	}
	scenes, err := scenefile.LoadOrdered(cfg.OutputPath)
	if err != nil {
		t.Fatalf("LoadOrdered failed: %v", err)
	}
	for i, scene := range scenes {
		for j, obj := range scene.Objects {
			if z := obj.Pose[1]; z < 0 || z > 2 {
				t.Errorf("scene %d obj %d: height %f outside [0, 2]", i, j, z)
			}
		}
	}
}

func TestGeneratorUnknownFamily(t *testing.T) {
	cfg, err := DefaultConfig(FamilyTableSetting)
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.Family = "nonsense"
	if _, err := NewGenerator(cfg, grammar.NewParamStore(), nil); err == nil {
		t.Error("expected error for unknown family")
	}
}

func TestGeneratorRestoresCheckpoint(t *testing.T) {
	// A checkpoint written from a fitted store must restore into a fresh
	// generator, whose grammar defines the parameters before the restore.
	fitted := grammar.NewParamStore()
	if _, err := scenes.NewTable(fitted); err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}
	probsKey := grammar.ParamKey{Component: "table", Field: "seat_probs"}
	if err := fitted.Apply(probsKey, func(v []float64) {
		for i := range v {
			v[i] = 0.25
		}
	}); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "params.json")
	if err := checkpoint.Save(path, fitted.Snapshot()); err != nil {
		t.Fatalf("checkpoint.Save failed: %v", err)
	}

	cfg, err := DefaultConfig(FamilyTableSetting)
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.ParamsPath = path
	store := grammar.NewParamStore()
	if _, err := NewGenerator(cfg, store, nil); err != nil {
		t.Fatalf("NewGenerator with checkpoint failed: %v", err)
	}
	probs, err := store.Get(probsKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	for i, p := range probs {
		if p != 0.25 {
			t.Errorf("seat prob %d = %f, want restored 0.25", i, p)
		}
	}
}

func TestGeneratorCancellation(t *testing.T) {
	cfg, err := DefaultConfig(FamilyTableSetting)
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	cfg.OutputPath = filepath.Join(t.TempDir(), "table.yaml")
	gen, err := NewGenerator(cfg, grammar.NewParamStore(), nil)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Run(ctx); err == nil {
		t.Error("expected context error")
	}
}

func TestBoundsRejection(t *testing.T) {
	cfg, err := DefaultConfig(FamilyPlanarBinStacks)
	if err != nil {
		t.Fatalf("DefaultConfig failed: %v", err)
	}
	gen, err := NewGenerator(cfg, grammar.NewParamStore(), nil)
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	inside := scenefile.Scene{Objects: []scenefile.Object{
		{Class: "2d_sphere", Pose: []float64{0.5, 0.3, 0}},
	}}
	if !gen.inBounds(inside) {
		t.Error("in-bounds scene flagged rejected")
	}
	for _, pose := range [][]float64{
		{-2.5, 0.3, 0}, // x below -2
		{2.5, 0.3, 0},  // x above 2
		{0.5, -0.1, 0}, // z below 0
		{0.5, 2.5, 0},  // z above 2
	} {
		scene := scenefile.Scene{Objects: []scenefile.Object{
			{Class: "2d_sphere", Pose: pose},
		}}
		if gen.inBounds(scene) {
			t.Errorf("pose %v accepted outside the acceptance box", pose)
		}
	}
}

func TestCollisionRadius(t *testing.T) {
	withRadius := scenefile.Object{Params: []float64{0.1}, ParamsNames: []string{"radius"}}
	if r := collisionRadius(withRadius); r != 0.1 {
		t.Errorf("radius param: got %f, want 0.1", r)
	}
	extents := scenefile.Object{Params: []float64{0.02, 0.14}, ParamsNames: []string{"width", "height"}}
	if r := collisionRadius(extents); r != 0.07 {
		t.Errorf("extents: got %f, want 0.07", r)
	}
}

func TestWorldPoseLiftsPlanarRecords(t *testing.T) {
	base := spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 2, Z: 3})
	obj := scenefile.Object{Class: "2d_sphere", Pose: []float64{0.5, 0.25, 0}}
	world, err := WorldPose(base, obj)
	if err != nil {
		t.Fatalf("WorldPose failed: %v", err)
	}
	pt := world.Point()
	if pt.X != 1.5 || pt.Y != 2 || pt.Z != 3.25 {
		t.Errorf("world point %v, want (1.5, 2, 3.25)", pt)
	}

	if _, err := WorldPose(base, scenefile.Object{Pose: []float64{1, 2}}); err == nil {
		t.Error("expected error for bad pose length")
	}
}
