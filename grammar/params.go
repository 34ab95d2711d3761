package grammar

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Constraint describes the feasible set a learned parameter lives in.
type Constraint int

const (
	// ConstraintNone leaves the parameter unconstrained.
	ConstraintNone Constraint = iota
	// ConstraintPositive keeps every entry strictly positive.
	ConstraintPositive
	// ConstraintSimplex keeps entries nonnegative and summing to one.
	ConstraintSimplex
	// ConstraintUnitInterval keeps every entry inside (0, 1).
	ConstraintUnitInterval
)

func (c Constraint) String() string {
	switch c {
	case ConstraintNone:
		return "unconstrained"
	case ConstraintPositive:
		return "positive"
	case ConstraintSimplex:
		return "simplex"
	case ConstraintUnitInterval:
		return "unit_interval"
	default:
		return "unknown"
	}
}

// ParamKey identifies a learned parameter by structured coordinates
// rather than a free-form string, so a typo'd lookup fails loudly
// instead of silently creating a fresh zero parameter.
type ParamKey struct {
	Component string // grammar family, e.g. "place_setting"
	Slot      string // site within the component, e.g. "plate"; may be empty
	Field     string // which parameter, e.g. "mean"
}

func (k ParamKey) String() string {
	if k.Slot == "" {
		return k.Component + "/" + k.Field
	}
	return k.Component + "/" + k.Slot + "/" + k.Field
}

// ParseParamKey inverts ParamKey.String for snapshot restore.
func ParseParamKey(s string) (ParamKey, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		return ParamKey{Component: parts[0], Field: parts[1]}, nil
	case 3:
		return ParamKey{Component: parts[0], Slot: parts[1], Field: parts[2]}, nil
	default:
		return ParamKey{}, fmt.Errorf("malformed parameter key %q", s)
	}
}

type param struct {
	value      []float64
	constraint Constraint
}

// ParamStore holds all learned grammar parameters. It is passed
// explicitly into node and rule constructors and into the fitting loop;
// values persist across sampling and scoring calls for the life of the
// process. Safe for concurrent readers and a single writer.
type ParamStore struct {
	mu     sync.RWMutex
	params map[ParamKey]*param
}

// NewParamStore returns an empty store.
func NewParamStore() *ParamStore {
	return &ParamStore{params: map[ParamKey]*param{}}
}

// Define registers a parameter if absent and returns its current value.
// Redefining with the same shape and constraint is a no-op returning the
// existing (possibly fitted) value, so per-sample node construction
// reuses persistent parameters. A shape or constraint mismatch is an
// error.
func (s *ParamStore) Define(key ParamKey, init []float64, c Constraint) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.params[key]; ok {
		if len(existing.value) != len(init) || existing.constraint != c {
			return nil, fmt.Errorf("%w: %s", ErrParamRedefined, key)
		}
		return append([]float64(nil), existing.value...), nil
	}
	value := append([]float64(nil), init...)
	projectConstraint(value, c)
	s.params[key] = &param{value: value, constraint: c}
	return append([]float64(nil), value...), nil
}

// Get returns a copy of the parameter value, or ErrUnknownParam.
func (s *ParamStore) Get(key ParamKey) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownParam, key)
	}
	return append([]float64(nil), p.value...), nil
}

// ConstraintOf returns the constraint kind registered for a parameter.
func (s *ParamStore) ConstraintOf(key ParamKey) (Constraint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[key]
	if !ok {
		return ConstraintNone, fmt.Errorf("%w: %s", ErrUnknownParam, key)
	}
	return p.constraint, nil
}

// Apply mutates a parameter in place under the store lock, then projects
// the result back onto its constraint set. Used by the optimizer.
func (s *ParamStore) Apply(key ParamKey, f func(value []float64)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.params[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParam, key)
	}
	f(p.value)
	projectConstraint(p.value, p.constraint)
	return nil
}

// Keys returns all defined keys in a stable sorted order.
func (s *ParamStore) Keys() []ParamKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]ParamKey, 0, len(s.params))
	for k := range s.params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Snapshot returns a name → value copy of every parameter, suitable for
// checkpointing to disk.
func (s *ParamStore) Snapshot() map[string][]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]float64, len(s.params))
	for k, p := range s.params {
		out[k.String()] = append([]float64(nil), p.value...)
	}
	return out
}

// Restore overwrites matching parameters from a snapshot. Snapshot keys
// that do not correspond to defined parameters are an error.
func (s *ParamStore) Restore(snapshot map[string][]float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, value := range snapshot {
		key, err := ParseParamKey(name)
		if err != nil {
			return err
		}
		p, ok := s.params[key]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownParam, key)
		}
		if len(p.value) != len(value) {
			return fmt.Errorf("%w: %s", ErrParamRedefined, key)
		}
		copy(p.value, value)
		projectConstraint(p.value, p.constraint)
	}
	return nil
}

const (
	positiveFloor = 1e-6
	simplexFloor  = 1e-9
)

// projectConstraint clamps a value back onto its constraint set after an
// unconstrained update.
func projectConstraint(value []float64, c Constraint) {
	switch c {
	case ConstraintPositive:
		for i := range value {
			if value[i] < positiveFloor {
				value[i] = positiveFloor
			}
		}
	case ConstraintUnitInterval:
		for i := range value {
			if value[i] < positiveFloor {
				value[i] = positiveFloor
			}
			if value[i] > 1-positiveFloor {
				value[i] = 1 - positiveFloor
			}
		}
	case ConstraintSimplex:
		var sum float64
		for i := range value {
			if value[i] < simplexFloor {
				value[i] = simplexFloor
			}
			sum += value[i]
		}
		for i := range value {
			value[i] /= sum
		}
	}
}

// Gradients is a sparse map from parameter key to the accumulated
// gradient of a log-probability with respect to that parameter. Each
// scoring worker builds its own Gradients; the fit coordinator merges
// them, so no shared mutable state crosses worker boundaries.
type Gradients map[ParamKey][]float64

// Accum adds v to entry idx of the gradient for key, allocating a vector
// of the given size on first touch.
func (g Gradients) Accum(key ParamKey, size, idx int, v float64) {
	vec, ok := g[key]
	if !ok {
		vec = make([]float64, size)
		g[key] = vec
	}
	vec[idx] += v
}

// Merge adds another gradient map into this one.
func (g Gradients) Merge(other Gradients) {
	for key, vec := range other {
		dst, ok := g[key]
		if !ok {
			dst = make([]float64, len(vec))
			g[key] = dst
		}
		for i, v := range vec {
			dst[i] += v
		}
	}
}

// Scale multiplies every gradient entry by f.
func (g Gradients) Scale(f float64) {
	for _, vec := range g {
		for i := range vec {
			vec[i] *= f
		}
	}
}
