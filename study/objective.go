// Copyright 2025 Tomas Machalek <tomas.machalek@gmail.com>
// Copyright 2025 Department of Linguistics,
// Faculty of Arts, Charles University
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package study

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/czcorpus/kudosizer/dataset"
	"github.com/czcorpus/kudosizer/nn"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

// validationBatchSize is fixed and independent of the sampled training
// batch size.
const validationBatchSize = 64

// SearchSpace holds the hyperparameter bounds the objective samples
// from. It is built once at startup and passed in explicitly; nothing
// reads bounds from ambient state.
type SearchSpace struct {
	MaxHiddenLayers int
	MinLayerNodes   int
	MaxLayerNodes   int
	MinDropout      float64
	MaxDropout      float64
	MinLearningRate float64
	MaxLearningRate float64
	MinWeightDecay  float64
	MaxWeightDecay  float64
	MinBatchSize    int
	MaxBatchSize    int
	MinEpochs       int
	MaxEpochs       int
}

// DefaultSearchSpace returns the bounds the production studies use.
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		MaxHiddenLayers: 6,
		MinLayerNodes:   4,
		MaxLayerNodes:   128,
		MinDropout:      0.05,
		MaxDropout:      0.2,
		MinLearningRate: 1e-5,
		MaxLearningRate: 1e-1,
		MinWeightDecay:  1e-6,
		MaxWeightDecay:  1e-1,
		MinBatchSize:    32,
		MaxBatchSize:    512,
		MinEpochs:       50,
		MaxEpochs:       2000,
	}
}

// batchSizeChoices lists the powers of two within the configured batch
// size bounds.
func (sp SearchSpace) batchSizeChoices() []string {
	start := int(math.Ceil(math.Log2(float64(sp.MinBatchSize))))
	end := int(math.Floor(math.Log2(float64(sp.MaxBatchSize))))
	ans := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		ans = append(ans, fmt.Sprintf("%d", 1<<i))
	}
	return ans
}

// Objective trains one candidate network per invocation: it samples a
// topology, optimizer and schedule through the trial handle, trains
// against the training set, evaluates each epoch against the validation
// set and persists the resulting model unconditionally (even a poor
// trial's checkpoint is kept; selection happens post hoc in the study).
type Objective struct {
	Train         *dataset.Dataset
	Validate      *dataset.Dataset
	Space         SearchSpace
	CheckpointDir string
	StudyVersion  string

	// Seed fixes the weight init / shuffling RNG; 0 means time-based
	Seed int64

	// ShowProgress enables a per-trial epoch progress bar
	ShowProgress bool
}

// CheckpointPath returns the deterministic checkpoint location for one
// trial of one study version.
func (o *Objective) CheckpointPath(trialNum int) string {
	return filepath.Join(
		o.CheckpointDir,
		fmt.Sprintf("kudos-%s-%d.ckpt", o.StudyVersion, trialNum),
	)
}

func (o *Objective) rng(trialNum int) *rand.Rand {
	seed := o.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed + int64(trialNum)))
}

// Run executes one trial and returns its score: the mean validation
// loss of the final epoch (deliberately not the best epoch seen - the
// scoring contract of existing studies depends on it).
func (o *Objective) Run(ctx context.Context, trial *Trial) (float64, error) {
	rng := o.rng(trial.Number)
	inputSize := o.Train.VectorSize()

	numHidden := trial.SuggestInt("hidden_layers", 1, o.Space.MaxHiddenLayers, true)
	hidden := make([]int, numHidden)
	for i := range hidden {
		hidden[i] = trial.SuggestInt(
			fmt.Sprintf("hidden_layer_%d_size", i),
			o.Space.MinLayerNodes, o.Space.MaxLayerNodes, true,
		)
	}
	// the first hidden layer never gets dropout
	dropout := make([]float64, numHidden)
	for i := 1; i < numHidden; i++ {
		dropout[i] = trial.SuggestFloat(
			fmt.Sprintf("dropout_l%d", i),
			o.Space.MinDropout, o.Space.MaxDropout, true,
		)
	}

	optimizerName := trial.SuggestCategorical("optimizer", []string{"Adam", "RMSprop", "SGD"})
	lr := trial.SuggestFloat("lr", o.Space.MinLearningRate, o.Space.MaxLearningRate, true)
	weightDecay := trial.SuggestFloat("weight_decay", o.Space.MinWeightDecay, o.Space.MaxWeightDecay, true)

	batchSize := mustAtoi(trial.SuggestCategorical("batch_size", o.Space.batchSizeChoices()))
	numEpochs := trial.SuggestInt("num_epochs", o.Space.MinEpochs, o.Space.MaxEpochs, false)

	net := nn.NewNetwork(
		nn.Topology{
			InputSize:   inputSize,
			HiddenSizes: hidden,
			Dropout:     dropout,
			OutputSize:  1,
		},
		rng,
	)

	var solver nn.Solver
	switch optimizerName {
	case "Adam":
		solver = nn.NewAdam(lr, weightDecay)
	case "RMSprop":
		solver = nn.NewRMSprop(lr, weightDecay)
	case "SGD":
		solver = nn.NewSGD(lr, weightDecay)
	default:
		// unreachable given the closed choice set above; a failure here
		// means the search space and this switch went out of sync
		return 0, fmt.Errorf("unknown optimizer %s", optimizerName)
	}
	solver.Init(net.NumParams())

	log.Info().
		Int("trial", trial.Number).
		Ints("hiddenLayers", hidden).
		Str("optimizer", optimizerName).
		Float64("lr", lr).
		Int("batchSize", batchSize).
		Int("numEpochs", numEpochs).
		Msg("starting trial")

	var bar *progressbar.ProgressBar
	if o.ShowProgress {
		bar = progressbar.Default(int64(numEpochs), fmt.Sprintf("trial %d", trial.Number))
	}

	var score float64
	for epoch := 0; epoch < numEpochs; epoch++ {
		for _, idx := range batchIndices(o.Train.Len(), batchSize, rng) {
			inputs, targets := gather(o.Train, idx)
			net.TrainBatch(inputs, targets, solver, rng)
		}
		score = o.validationLoss(net)
		if bar != nil {
			bar.Add(1)
		}
	}

	path := o.CheckpointPath(trial.Number)
	if err := nn.SaveCheckpoint(path, net); err != nil {
		return 0, err
	}
	log.Info().
		Int("trial", trial.Number).
		Float64("score", score).
		Str("checkpoint", path).
		Msg("trial finished")
	return score, nil
}

// validationLoss computes the epoch's mean validation loss: MSE per
// fixed-size batch, averaged over batches, rounded to two decimals.
// Evaluation order is sequential; it has no effect on the mean.
func (o *Objective) validationLoss(net *nn.Network) float64 {
	n := o.Validate.Len()
	var total float64
	var numBatches int
	for start := 0; start < n; start += validationBatchSize {
		end := start + validationBatchSize
		if end > n {
			end = n
		}
		idx := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			idx = append(idx, i)
		}
		inputs, targets := gather(o.Validate, idx)
		total += net.Loss(inputs, targets)
		numBatches++
	}
	if numBatches == 0 {
		return 0
	}
	return math.Round(total/float64(numBatches)*100) / 100
}

// batchIndices shuffles 0..n-1 and cuts it into batches; reshuffled on
// every call so each epoch sees a different order.
func batchIndices(n, batchSize int, rng *rand.Rand) [][]int {
	perm := rng.Perm(n)
	ans := make([][]int, 0, n/batchSize+1)
	for start := 0; start < n; start += batchSize {
		end := start + batchSize
		if end > n {
			end = n
		}
		ans = append(ans, perm[start:end])
	}
	return ans
}

func gather(ds *dataset.Dataset, idx []int) ([][]float64, []float64) {
	inputs := make([][]float64, len(idx))
	targets := make([]float64, len(idx))
	for k, i := range idx {
		inputs[k], targets[k] = ds.At(i)
	}
	return inputs, targets
}

func mustAtoi(s string) int {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		panic("not a number: " + s)
	}
	return v
}

// EnsureCheckpointDir creates the checkpoint directory if missing.
func EnsureCheckpointDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint dir: %w", err)
	}
	return nil
}
