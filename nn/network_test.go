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

package nn

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDegenerateTopologyIsSingleLinearLayer(t *testing.T) {
	net := NewNetwork(
		Topology{InputSize: 10, HiddenSizes: []int{}, OutputSize: 1},
		rand.New(rand.NewSource(1)),
	)
	require.Equal(t, 1, len(net.Weights))
	assert.Equal(t, 1, len(net.Weights[0]))
	assert.Equal(t, 10, len(net.Weights[0][0]))
	assert.Equal(t, 1, len(net.Biases[0]))
}

func TestTwoHiddenLayersTopology(t *testing.T) {
	net := NewNetwork(
		Topology{InputSize: 10, HiddenSizes: []int{8, 4}, OutputSize: 1},
		rand.New(rand.NewSource(1)),
	)
	require.Equal(t, 3, len(net.Weights))
	assert.Equal(t, 8, len(net.Weights[0]))
	assert.Equal(t, 10, len(net.Weights[0][0]))
	assert.Equal(t, 4, len(net.Weights[1]))
	assert.Equal(t, 8, len(net.Weights[1][0]))
	assert.Equal(t, 1, len(net.Weights[2]))
	assert.Equal(t, 4, len(net.Weights[2][0]))
}

func TestPredictOutputWidth(t *testing.T) {
	net := NewNetwork(
		Topology{InputSize: 4, HiddenSizes: []int{6}, OutputSize: 1},
		rand.New(rand.NewSource(7)),
	)
	out := net.Predict([]float64{0.1, 0.2, 0.3, 0.4})
	require.Equal(t, 1, len(out))
}

func TestPredictDeterministic(t *testing.T) {
	net := NewNetwork(
		Topology{InputSize: 4, HiddenSizes: []int{6, 3}, Dropout: []float64{0, 0.1}, OutputSize: 1},
		rand.New(rand.NewSource(7)),
	)
	input := []float64{0.5, -0.2, 1.5, 0.0}
	// dropout must not fire in evaluation mode
	assert.Equal(t, net.Predict(input), net.Predict(input))
}

func TestNumParams(t *testing.T) {
	net := NewNetwork(
		Topology{InputSize: 3, HiddenSizes: []int{2}, OutputSize: 1},
		rand.New(rand.NewSource(1)),
	)
	// layer 0: 2*(3+1), layer 1: 1*(2+1)
	assert.Equal(t, 11, net.NumParams())
}

func TestTrainingReducesLossOnLinearTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	net := NewNetwork(
		Topology{InputSize: 2, HiddenSizes: []int{8}, OutputSize: 1},
		rng,
	)
	inputs := make([][]float64, 64)
	targets := make([]float64, 64)
	for i := range inputs {
		a, b := rng.Float64(), rng.Float64()
		inputs[i] = []float64{a, b}
		targets[i] = 2*a + 3*b + 1
	}
	solver := NewAdam(0.02, 0)
	solver.Init(net.NumParams())
	before := net.Loss(inputs, targets)
	for epoch := 0; epoch < 800; epoch++ {
		net.TrainBatch(inputs, targets, solver, rng)
	}
	after := net.Loss(inputs, targets)
	assert.Less(t, after, before)
	assert.Less(t, after, 0.5)
}

func TestSolversProduceFiniteUpdates(t *testing.T) {
	for _, tc := range []struct {
		name   string
		solver Solver
	}{
		{"adam", NewAdam(0.001, 0.01)},
		{"rmsprop", NewRMSprop(0.001, 0.01)},
		{"sgd", NewSGD(0.001, 0.01)},
	} {
		tc.solver.Init(4)
		delta := tc.solver.Update(0.5, 0.25, 0)
		assert.NotZero(t, delta, tc.name)
		assert.False(t, delta != delta, tc.name) // NaN guard
	}
}

func TestWeightDecayPullsTowardsZero(t *testing.T) {
	solver := NewSGD(0.1, 1.0)
	solver.Init(1)
	// zero raw gradient: only the decay term acts
	delta := solver.Update(2.0, 0.0, 0)
	assert.Less(t, delta, 0.0)
}

func TestCheckpointRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net := NewNetwork(
		Topology{InputSize: 5, HiddenSizes: []int{7, 4}, Dropout: []float64{0, 0.12}, OutputSize: 1},
		rng,
	)
	input := []float64{0.1, 0.9, -0.5, 0.3, 1.1}
	wantOut := net.Predict(input)

	path := filepath.Join(t.TempDir(), "model.ckpt")
	require.NoError(t, SaveCheckpoint(path, net))
	loaded, err := LoadCheckpoint(path)
	require.NoError(t, err)

	assert.Equal(t, net.Top, loaded.Top)
	assert.Equal(t, wantOut, loaded.Predict(input))
}

func TestLoadCheckpointMissingFile(t *testing.T) {
	_, err := LoadCheckpoint("/nonexistent/model.ckpt")
	assert.Error(t, err)
}
