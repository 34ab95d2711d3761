package fit

import (
	"context"
	"fmt"
	"math"
	"sync"

	"go.viam.com/rdk/logging"
	"golang.org/x/exp/rand"

	"github.com/mpetersen94/scene-generation/grammar"
	"github.com/mpetersen94/scene-generation/internal/checkpoint"
	"github.com/mpetersen94/scene-generation/scenefile"
)

// Scorer computes the joint log-probability of one observed scene under
// the current parameters, accumulating gradients into g when non-nil.
// Implementations build a fresh observed parse tree per call.
type Scorer func(scene scenefile.Scene, g grammar.Gradients) (float64, error)

// Config tunes the fitting loop.
type Config struct {
	Epochs        int
	MinibatchSize int
	// Workers is the number of concurrent scoring goroutines per
	// minibatch.
	Workers      int
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	// TrainFraction is the share of scenes held for training; the rest
	// form the test split used for best-checkpoint selection.
	TrainFraction float64
	// RandomizeRotation rotates each training scene by a uniform angle
	// about the rotation origin before scoring, so learned offsets do
	// not overfit the dataset's global orientation.
	RandomizeRotation bool
	RotationOriginX   float64
	RotationOriginY   float64
	// CheckpointPath, when set, receives the parameter snapshot with the
	// best test loss seen so far after each epoch.
	CheckpointPath string
	Seed           uint64
}

// DefaultConfig returns fitting settings matching the table-setting
// experiments.
func DefaultConfig() Config {
	return Config{
		Epochs:          20,
		MinibatchSize:   8,
		Workers:         4,
		LearningRate:    1e-2,
		Beta1:           0.9,
		Beta2:           0.999,
		Epsilon:         1e-8,
		TrainFraction:   0.8,
		RotationOriginX: 0.5,
		RotationOriginY: 0.5,
		Seed:            42,
	}
}

// Report summarizes one fitting run.
type Report struct {
	// TrainLoss and TestLoss hold the mean negative log-probability per
	// scene after each epoch.
	TrainLoss []float64
	TestLoss  []float64
	// BestTestLoss is the lowest test loss seen, and BestSnapshot the
	// parameter values that produced it.
	BestTestLoss float64
	BestSnapshot map[string][]float64
	// SkippedBatches counts minibatches abandoned because a worker
	// failed or returned a non-finite score.
	SkippedBatches int
}

// Fitter runs minibatch gradient ascent on a parameter store.
type Fitter struct {
	cfg    Config
	store  *grammar.ParamStore
	score  Scorer
	opt    *Adam
	rng    *rand.Rand
	logger logging.Logger
}

// NewFitter builds a fitter. A nil logger suppresses progress output.
func NewFitter(cfg Config, store *grammar.ParamStore, score Scorer, logger logging.Logger) *Fitter {
	if cfg.Epochs <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Fitter{
		cfg:    cfg,
		store:  store,
		score:  score,
		opt:    NewAdam(cfg.LearningRate, cfg.Beta1, cfg.Beta2, cfg.Epsilon),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		logger: logger,
	}
}

// batchResult is one worker's contribution to a minibatch barrier.
type batchResult struct {
	logProb float64
	grads   grammar.Gradients
	err     error
}

// Run fits the store's parameters to the dataset and returns the loss
// history. The context is checked between minibatches; a stuck scoring
// call stalls its batch, which is an accepted limitation of the
// barrier-synchronized design.
func (f *Fitter) Run(ctx context.Context, dataset []scenefile.Scene) (*Report, error) {
	if len(dataset) == 0 {
		return nil, fmt.Errorf("empty dataset")
	}
	train, test := f.split(dataset)
	report := &Report{BestTestLoss: math.Inf(1)}

	for epoch := 0; epoch < f.cfg.Epochs; epoch++ {
		f.rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })

		var epochLoss float64
		var scored int
		for start := 0; start < len(train); start += f.cfg.MinibatchSize {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			end := start + f.cfg.MinibatchSize
			if end > len(train) {
				end = len(train)
			}
			batchLoss, ok := f.runMinibatch(train[start:end])
			if !ok {
				report.SkippedBatches++
				continue
			}
			epochLoss += batchLoss * float64(end-start)
			scored += end - start
		}
		if scored > 0 {
			epochLoss /= float64(scored)
		}
		report.TrainLoss = append(report.TrainLoss, epochLoss)

		testLoss := f.evaluate(test)
		report.TestLoss = append(report.TestLoss, testLoss)
		if f.logger != nil {
			f.logger.Infof("epoch %d: train loss %.4f, test loss %.4f", epoch, epochLoss, testLoss)
		}
		if testLoss < report.BestTestLoss {
			report.BestTestLoss = testLoss
			report.BestSnapshot = f.store.Snapshot()
			if f.cfg.CheckpointPath != "" {
				if err := checkpoint.Save(f.cfg.CheckpointPath, report.BestSnapshot); err != nil {
					return report, fmt.Errorf("saving checkpoint: %w", err)
				}
			}
		}
	}
	return report, nil
}

// split partitions the dataset into train and test slices. With no test
// budget the train split doubles as the test split.
func (f *Fitter) split(dataset []scenefile.Scene) (train, test []scenefile.Scene) {
	shuffled := append([]scenefile.Scene(nil), dataset...)
	f.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	cut := int(float64(len(shuffled)) * f.cfg.TrainFraction)
	if cut <= 0 || cut >= len(shuffled) {
		return shuffled, shuffled
	}
	return shuffled[:cut], shuffled[cut:]
}

// runMinibatch scores a batch across workers, waits at the barrier, then
// applies one averaged ascent step. Gradients are accumulated per worker
// and merged only after every worker finishes, so workers never race on
// shared parameter state. Returns the batch's mean loss and whether the
// step was applied.
func (f *Fitter) runMinibatch(batch []scenefile.Scene) (float64, bool) {
	jobs := make(chan scenefile.Scene, len(batch))
	results := make(chan batchResult, len(batch))
	for _, scene := range batch {
		if f.cfg.RandomizeRotation {
			angle := f.rng.Float64() * 2 * math.Pi
			scene = scenefile.Rotate(scene, angle, f.cfg.RotationOriginX, f.cfg.RotationOriginY)
		}
		jobs <- scene
	}
	close(jobs)

	workers := f.cfg.Workers
	if workers > len(batch) {
		workers = len(batch)
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for scene := range jobs {
				g := grammar.Gradients{}
				logProb, err := f.score(scene, g)
				results <- batchResult{logProb: logProb, grads: g, err: err}
			}
		}()
	}
	wg.Wait()
	close(results)

	total := grammar.Gradients{}
	var loss float64
	for res := range results {
		if res.err != nil {
			if f.logger != nil {
				f.logger.Warnf("worker failed, dropping minibatch: %v", res.err)
			}
			return 0, false
		}
		if math.IsInf(res.logProb, 0) || math.IsNaN(res.logProb) {
			if f.logger != nil {
				f.logger.Warnf("non-finite score %f, dropping minibatch", res.logProb)
			}
			return 0, false
		}
		loss -= res.logProb
		total.Merge(res.grads)
	}
	total.Scale(1 / float64(len(batch)))
	if err := f.opt.Step(f.store, total); err != nil {
		if f.logger != nil {
			f.logger.Warnf("optimizer step failed, dropping minibatch: %v", err)
		}
		return 0, false
	}
	return loss / float64(len(batch)), true
}

// evaluate returns the mean negative log-probability over a split,
// without touching gradients or parameters.
func (f *Fitter) evaluate(split []scenefile.Scene) float64 {
	if len(split) == 0 {
		return math.Inf(1)
	}
	var loss float64
	for _, scene := range split {
		logProb, err := f.score(scene, nil)
		if err != nil || math.IsInf(logProb, 0) || math.IsNaN(logProb) {
			return math.Inf(1)
		}
		loss -= logProb
	}
	return loss / float64(len(split))
}
