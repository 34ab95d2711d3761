// Package fit estimates grammar parameters from scene datasets by
// minibatch-parallel scoring and first-order stochastic ascent.
package fit

import (
	"math"

	"github.com/mpetersen94/scene-generation/grammar"
)

// Adam is a first-order stochastic optimizer with per-coordinate moment
// estimates. Step performs gradient ascent: gradients are expected to
// point toward higher log-probability, as produced by tree scoring.
type Adam struct {
	lr      float64
	beta1   float64
	beta2   float64
	epsilon float64

	step int
	m    map[grammar.ParamKey][]float64
	v    map[grammar.ParamKey][]float64
}

// NewAdam builds an optimizer with the given learning rate and standard
// moment decay rates.
func NewAdam(lr, beta1, beta2, epsilon float64) *Adam {
	return &Adam{
		lr:      lr,
		beta1:   beta1,
		beta2:   beta2,
		epsilon: epsilon,
		m:       map[grammar.ParamKey][]float64{},
		v:       map[grammar.ParamKey][]float64{},
	}
}

// Step applies one ascent update to every parameter with a gradient.
// Constraint projection happens inside the store's Apply, so updated
// simplex and positivity parameters stay valid.
func (a *Adam) Step(store *grammar.ParamStore, grads grammar.Gradients) error {
	a.step++
	bias1 := 1 - math.Pow(a.beta1, float64(a.step))
	bias2 := 1 - math.Pow(a.beta2, float64(a.step))
	for key, grad := range grads {
		if _, ok := a.m[key]; !ok {
			a.m[key] = make([]float64, len(grad))
			a.v[key] = make([]float64, len(grad))
		}
		m, v := a.m[key], a.v[key]
		err := store.Apply(key, func(vals []float64) {
			for i, g := range grad {
				m[i] = a.beta1*m[i] + (1-a.beta1)*g
				v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
				mHat := m[i] / bias1
				vHat := v[i] / bias2
				vals[i] += a.lr * mHat / (math.Sqrt(vHat) + a.epsilon)
			}
		})
		if err != nil {
			return err
		}
	}
	return nil
}
