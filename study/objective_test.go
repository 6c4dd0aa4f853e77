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
	"testing"

	"github.com/czcorpus/kudosizer/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticDataset builds a small linear-target dataset so a trial can
// finish in milliseconds.
func syntheticDataset(n int, seed int64) *dataset.Dataset {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float64, n)
	labels := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b, c := rng.Float64(), rng.Float64(), rng.Float64()
		vectors[i] = []float64{a, b, c}
		labels[i] = 4*a + 2*b + c
	}
	return dataset.New(vectors, labels)
}

func tinySearchSpace() SearchSpace {
	return SearchSpace{
		MaxHiddenLayers: 2,
		MinLayerNodes:   4,
		MaxLayerNodes:   8,
		MinDropout:      0.05,
		MaxDropout:      0.2,
		MinLearningRate: 1e-3,
		MaxLearningRate: 1e-2,
		MinWeightDecay:  1e-6,
		MaxWeightDecay:  1e-4,
		MinBatchSize:    8,
		MaxBatchSize:    16,
		MinEpochs:       2,
		MaxEpochs:       3,
	}
}

func TestObjectiveRunProducesScoreAndCheckpoint(t *testing.T) {
	obj := &Objective{
		Train:         syntheticDataset(32, 1),
		Validate:      syntheticDataset(16, 2),
		Space:         tinySearchSpace(),
		CheckpointDir: t.TempDir(),
		StudyVersion:  "vtest",
		Seed:          11,
	}
	trial := newTrial(0, NewRandomSampler(rand.New(rand.NewSource(5))), nil)

	score, err := obj.Run(context.Background(), trial)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(score))
	assert.False(t, math.IsInf(score, 0))
	assert.GreaterOrEqual(t, score, 0.0)

	// the checkpoint is written unconditionally, regardless of score
	_, err = os.Stat(obj.CheckpointPath(0))
	assert.NoError(t, err)

	params := trial.Params()
	assert.Contains(t, params, "hidden_layers")
	assert.Contains(t, params, "optimizer")
	assert.Contains(t, params, "lr")
	assert.Contains(t, params, "weight_decay")
	assert.Contains(t, params, "batch_size")
	assert.Contains(t, params, "num_epochs")
	numHidden := int(params["hidden_layers"].Num)
	for i := 0; i < numHidden; i++ {
		assert.Contains(t, params, fmt.Sprintf("hidden_layer_%d_size", i))
	}
	// the first hidden layer never carries dropout
	assert.NotContains(t, params, "dropout_l0")
}

func TestObjectiveScoreRoundedToTwoDecimals(t *testing.T) {
	obj := &Objective{
		Train:         syntheticDataset(32, 3),
		Validate:      syntheticDataset(16, 4),
		Space:         tinySearchSpace(),
		CheckpointDir: t.TempDir(),
		StudyVersion:  "vtest",
		Seed:          7,
	}
	trial := newTrial(0, NewRandomSampler(rand.New(rand.NewSource(9))), nil)
	score, err := obj.Run(context.Background(), trial)
	require.NoError(t, err)
	assert.Equal(t, math.Round(score*100)/100, score)
}

func TestObjectiveDeterministicWithFixedSeed(t *testing.T) {
	run := func() float64 {
		obj := &Objective{
			Train:         syntheticDataset(32, 1),
			Validate:      syntheticDataset(16, 2),
			Space:         tinySearchSpace(),
			CheckpointDir: t.TempDir(),
			StudyVersion:  "vtest",
			Seed:          42,
		}
		trial := newTrial(0, NewRandomSampler(rand.New(rand.NewSource(5))), nil)
		score, err := obj.Run(context.Background(), trial)
		require.NoError(t, err)
		return score
	}
	assert.Equal(t, run(), run())
}

func TestCheckpointPathNaming(t *testing.T) {
	obj := &Objective{CheckpointDir: "/var/lib/kudos", StudyVersion: "v21"}
	assert.Equal(t, "/var/lib/kudos/kudos-v21-17.ckpt", obj.CheckpointPath(17))
}

func TestBatchSizeChoicesArePowersOfTwo(t *testing.T) {
	sp := DefaultSearchSpace()
	assert.Equal(
		t, []string{"32", "64", "128", "256", "512"}, sp.batchSizeChoices())
}

func TestBatchIndicesCoverEveryRecordOnce(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	batches := batchIndices(25, 8, rng)
	require.Equal(t, 4, len(batches))
	seen := make(map[int]int)
	for _, batch := range batches {
		for _, i := range batch {
			seen[i]++
		}
	}
	require.Equal(t, 25, len(seen))
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
}

func TestCoordinatorWithRealObjective(t *testing.T) {
	coord, err := Open(
		testLedgerPath(t), "e2e_test",
		NewRandomSampler(rand.New(rand.NewSource(2))),
	)
	require.NoError(t, err)
	defer coord.Close()

	obj := &Objective{
		Train:         syntheticDataset(32, 1),
		Validate:      syntheticDataset(16, 2),
		Space:         tinySearchSpace(),
		CheckpointDir: t.TempDir(),
		StudyVersion:  "vtest",
		Seed:          3,
	}
	require.NoError(t, coord.Optimize(context.Background(), obj.Run, 3))

	best, err := coord.BestTrial()
	require.NoError(t, err)
	assert.False(t, math.IsNaN(best.Score))
	for num := 0; num < 3; num++ {
		_, err := os.Stat(obj.CheckpointPath(num))
		assert.NoError(t, err)
	}
}
