package grammar

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// SampleContext carries the random source and parameter store through one
// sampling pass. Expansion visits nodes in a fixed breadth-first order,
// so a seeded source gives the same draw sequence run to run.
type SampleContext struct {
	Src   rand.Source
	Store *ParamStore
}

// NewSampleContext builds a context with a seeded source.
func NewSampleContext(store *ParamStore, seed uint64) *SampleContext {
	return &SampleContext{Src: rand.NewSource(seed), Store: store}
}

// SampleCategorical draws an index from an (unnormalized) weight vector.
func SampleCategorical(ctx *SampleContext, weights []float64) int {
	cat := distuv.NewCategorical(weights, ctx.Src)
	return int(cat.Rand())
}

// SampleBernoulli draws a coin with success probability p.
func SampleBernoulli(ctx *SampleContext, p float64) bool {
	b := distuv.Bernoulli{P: p, Src: ctx.Src}
	return b.Rand() == 1
}

// SampleNormal draws a vector from a diagonal Normal with the given
// per-coordinate mean and scale.
func SampleNormal(ctx *SampleContext, mean, scale []float64) []float64 {
	out := make([]float64, len(mean))
	for i := range mean {
		n := distuv.Normal{Mu: mean[i], Sigma: scale[i], Src: ctx.Src}
		out[i] = n.Rand()
	}
	return out
}

const logSqrt2Pi = 0.9189385332046727 // log(sqrt(2π))

// NormalLogProb returns the log-density of x under a diagonal Normal,
// summed over coordinates.
func NormalLogProb(x, mean, scale []float64) float64 {
	var total float64
	for i := range x {
		z := (x[i] - mean[i]) / scale[i]
		total += -0.5*z*z - math.Log(scale[i]) - logSqrt2Pi
	}
	return total
}

// NormalScoreGrad returns NormalLogProb(x) and, when g is non-nil,
// accumulates the analytic gradients with respect to the mean and scale
// parameters into g under the given keys.
func NormalScoreGrad(x, mean, scale []float64, g Gradients, meanKey, scaleKey ParamKey) float64 {
	var total float64
	for i := range x {
		z := (x[i] - mean[i]) / scale[i]
		total += -0.5*z*z - math.Log(scale[i]) - logSqrt2Pi
		if g != nil {
			g.Accum(meanKey, len(mean), i, z/scale[i])
			g.Accum(scaleKey, len(scale), i, (z*z-1)/scale[i])
		}
	}
	return total
}

// BernoulliLogProb returns the log-probability of outcome active under
// success probability p.
func BernoulliLogProb(active bool, p float64) float64 {
	if active {
		return math.Log(p)
	}
	return math.Log(1 - p)
}

// CategoricalLogProb returns the log-probability of index idx under a
// normalized weight vector.
func CategoricalLogProb(weights []float64, idx int) float64 {
	return math.Log(weights[idx])
}
