package grammar

import (
	"errors"
	"math"
	"testing"
)

func TestParamStoreDefineAndGet(t *testing.T) {
	store := NewParamStore()
	key := ParamKey{Component: "place_setting", Slot: "plate", Field: "mean"}
	if _, err := store.Define(key, []float64{0, 0.16, 0}, ConstraintNone); err != nil {
		t.Fatalf("Define failed: %v", err)
	}
	got, err := store.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got[1] != 0.16 {
		t.Errorf("got %v", got)
	}

	// Redefining with the same shape returns the stored value.
	val, err := store.Define(key, []float64{9, 9, 9}, ConstraintNone)
	if err != nil {
		t.Fatalf("redefine failed: %v", err)
	}
	if val[1] != 0.16 {
		t.Errorf("redefine returned %v, want stored value", val)
	}

	// Shape mismatch fails loudly.
	if _, err := store.Define(key, []float64{1}, ConstraintNone); !errors.Is(err, ErrParamRedefined) {
		t.Errorf("expected ErrParamRedefined, got %v", err)
	}
}

func TestParamStoreUnknownKeyFailsLoudly(t *testing.T) {
	store := NewParamStore()
	_, err := store.Get(ParamKey{Component: "typo", Field: "mean"})
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
	err = store.Apply(ParamKey{Component: "typo", Field: "mean"}, func([]float64) {})
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam from Apply, got %v", err)
	}
}

func TestParamStoreConstraintProjection(t *testing.T) {
	store := NewParamStore()
	posKey := ParamKey{Component: "c", Field: "scale"}
	store.Define(posKey, []float64{0.5}, ConstraintPositive) //nolint:errcheck
	store.Apply(posKey, func(v []float64) { v[0] = -3 })     //nolint:errcheck
	v, _ := store.Get(posKey)
	if v[0] <= 0 {
		t.Errorf("positive constraint not enforced: %v", v)
	}

	simplexKey := ParamKey{Component: "c", Field: "weights"}
	store.Define(simplexKey, []float64{2, 2}, ConstraintSimplex) //nolint:errcheck
	v, _ = store.Get(simplexKey)
	if math.Abs(v[0]+v[1]-1) > 1e-12 {
		t.Errorf("simplex not normalized at definition: %v", v)
	}
	store.Apply(simplexKey, func(w []float64) { w[0] += 5 }) //nolint:errcheck
	v, _ = store.Get(simplexKey)
	if math.Abs(v[0]+v[1]-1) > 1e-12 {
		t.Errorf("simplex not renormalized after update: %v", v)
	}

	unitKey := ParamKey{Component: "c", Field: "probs"}
	store.Define(unitKey, []float64{0.5}, ConstraintUnitInterval) //nolint:errcheck
	store.Apply(unitKey, func(p []float64) { p[0] = 1.7 })        //nolint:errcheck
	v, _ = store.Get(unitKey)
	if v[0] >= 1 {
		t.Errorf("unit interval not enforced: %v", v)
	}
}

func TestParamStoreSnapshotRestore(t *testing.T) {
	store := NewParamStore()
	key := ParamKey{Component: "table", Field: "radius"}
	store.Define(key, []float64{0.45}, ConstraintPositive) //nolint:errcheck

	snap := store.Snapshot()
	if len(snap) != 1 || snap["table/radius"][0] != 0.45 {
		t.Fatalf("snapshot wrong: %v", snap)
	}

	store.Apply(key, func(v []float64) { v[0] = 0.9 }) //nolint:errcheck
	if err := store.Restore(snap); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	v, _ := store.Get(key)
	if v[0] != 0.45 {
		t.Errorf("restore did not overwrite: %v", v)
	}

	// Restoring an unknown name is an error.
	err := store.Restore(map[string][]float64{"nope/field": {1}})
	if !errors.Is(err, ErrUnknownParam) {
		t.Errorf("expected ErrUnknownParam, got %v", err)
	}
}

func TestParseParamKeyRoundTrip(t *testing.T) {
	keys := []ParamKey{
		{Component: "place_setting", Slot: "plate", Field: "mean"},
		{Component: "table", Field: "radius"},
	}
	for _, k := range keys {
		parsed, err := ParseParamKey(k.String())
		if err != nil {
			t.Fatalf("parse %q failed: %v", k.String(), err)
		}
		if parsed != k {
			t.Errorf("round trip %q → %+v", k.String(), parsed)
		}
	}
	if _, err := ParseParamKey("justone"); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestGradientsMergeScale(t *testing.T) {
	key := ParamKey{Component: "c", Field: "mean"}
	a := Gradients{}
	a.Accum(key, 2, 0, 1)
	b := Gradients{}
	b.Accum(key, 2, 0, 2)
	b.Accum(key, 2, 1, 4)
	a.Merge(b)
	if a[key][0] != 3 || a[key][1] != 4 {
		t.Errorf("merge wrong: %v", a[key])
	}
	a.Scale(0.5)
	if a[key][0] != 1.5 || a[key][1] != 2 {
		t.Errorf("scale wrong: %v", a[key])
	}
}

func TestNormalScoreGradMatchesFiniteDifference(t *testing.T) {
	meanKey := ParamKey{Component: "c", Field: "mean"}
	scaleKey := ParamKey{Component: "c", Field: "scale"}
	x := []float64{0.3, -0.2}
	mean := []float64{0.1, 0.0}
	scale := []float64{0.5, 0.7}

	g := Gradients{}
	base := NormalScoreGrad(x, mean, scale, g, meanKey, scaleKey)
	if math.Abs(base-NormalLogProb(x, mean, scale)) > 1e-12 {
		t.Fatal("NormalScoreGrad value disagrees with NormalLogProb")
	}

	const h = 1e-6
	for i := range mean {
		bumped := append([]float64(nil), mean...)
		bumped[i] += h
		fd := (NormalLogProb(x, bumped, scale) - base) / h
		if math.Abs(fd-g[meanKey][i]) > 1e-4 {
			t.Errorf("mean grad[%d]: analytic %f vs fd %f", i, g[meanKey][i], fd)
		}
	}
	for i := range scale {
		bumped := append([]float64(nil), scale...)
		bumped[i] += h
		fd := (NormalLogProb(x, mean, bumped) - base) / h
		if math.Abs(fd-g[scaleKey][i]) > 1e-4 {
			t.Errorf("scale grad[%d]: analytic %f vs fd %f", i, g[scaleKey][i], fd)
		}
	}
}
