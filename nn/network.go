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

// Package nn implements the small feed-forward regression networks the
// hyperparameter search explores: ReLU hidden layers with optional
// per-layer dropout and a raw affine output. The implementation keeps
// the Solver design of patrikeh/go-deep's training package, which we
// could not use directly here (no dropout, no RMSprop, no weight decay,
// no per-epoch validation access).
package nn

import (
	"math"
	"math/rand"
)

// Topology fully describes a network shape. It is what checkpoints
// record next to the weights, so a saved model can be rebuilt without
// any live type information.
//
// Dropout is aligned with HiddenSizes: Dropout[i] is the drop
// probability applied after hidden layer i. By convention the first
// hidden layer never gets dropout (Dropout[0] == 0).
type Topology struct {
	InputSize   int       `msgpack:"inputSize" json:"inputSize"`
	HiddenSizes []int     `msgpack:"hiddenSizes" json:"hiddenSizes"`
	Dropout     []float64 `msgpack:"dropout" json:"dropout"`
	OutputSize  int       `msgpack:"outputSize" json:"outputSize"`
}

// layerSizes returns the full width sequence input..hidden..output.
func (top Topology) layerSizes() []int {
	sizes := make([]int, 0, len(top.HiddenSizes)+2)
	sizes = append(sizes, top.InputSize)
	sizes = append(sizes, top.HiddenSizes...)
	sizes = append(sizes, top.OutputSize)
	return sizes
}

// NumLayers returns the number of linear transforms, one per
// consecutive width pair. An empty hidden list still yields one
// (input directly to output).
func (top Topology) NumLayers() int {
	return len(top.HiddenSizes) + 1
}

// Network is one feed-forward net: Weights[l][j][i] is the weight from
// input i to neuron j of linear layer l, Biases[l][j] its bias. Every
// layer carries a bias; only hidden layers get the ReLU nonlinearity.
type Network struct {
	Top     Topology
	Weights [][][]float64
	Biases  [][]float64
}

// NewNetwork builds a network for the given topology with uniform
// He-style weight initialization drawn from rng.
func NewNetwork(top Topology, rng *rand.Rand) *Network {
	sizes := top.layerSizes()
	net := &Network{
		Top:     top,
		Weights: make([][][]float64, len(sizes)-1),
		Biases:  make([][]float64, len(sizes)-1),
	}
	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		limit := math.Sqrt(1.0 / float64(fanIn))
		net.Weights[l] = make([][]float64, fanOut)
		net.Biases[l] = make([]float64, fanOut)
		for j := 0; j < fanOut; j++ {
			row := make([]float64, fanIn)
			for i := range row {
				row[i] = (rng.Float64()*2 - 1) * limit
			}
			net.Weights[l][j] = row
			net.Biases[l][j] = (rng.Float64()*2 - 1) * limit
		}
	}
	return net
}

// NumParams returns the total number of scalar parameters (weights and
// biases); solvers allocate their per-parameter state from it.
func (net *Network) NumParams() int {
	var n int
	for l := range net.Weights {
		for j := range net.Weights[l] {
			n += len(net.Weights[l][j]) + 1
		}
	}
	return n
}

// Predict runs an evaluation-mode forward pass (dropout disabled).
func (net *Network) Predict(input []float64) []float64 {
	acts, _ := net.forward(input, nil)
	return acts[len(acts)-1]
}

// forward computes activations for all layers; acts[0] is the input,
// acts[l+1] the post-activation output of linear layer l. When rng is
// non-nil, inverted dropout masks are sampled for the configured hidden
// layers and returned for use in backpropagation.
func (net *Network) forward(input []float64, rng *rand.Rand) (acts [][]float64, masks [][]float64) {
	numLayers := net.Top.NumLayers()
	acts = make([][]float64, numLayers+1)
	masks = make([][]float64, numLayers)
	acts[0] = input
	for l := 0; l < numLayers; l++ {
		in := acts[l]
		out := make([]float64, len(net.Weights[l]))
		for j := range out {
			sum := net.Biases[l][j]
			row := net.Weights[l][j]
			for i, x := range in {
				sum += row[i] * x
			}
			out[j] = sum
		}
		if l < numLayers-1 {
			for j := range out {
				if out[j] < 0 {
					out[j] = 0
				}
			}
			if rng != nil && l < len(net.Top.Dropout) && net.Top.Dropout[l] > 0 {
				p := net.Top.Dropout[l]
				mask := make([]float64, len(out))
				for j := range mask {
					if rng.Float64() >= p {
						mask[j] = 1.0 / (1.0 - p)
					}
					out[j] *= mask[j]
				}
				masks[l] = mask
			}
		}
		acts[l+1] = out
	}
	return acts, masks
}

// gradients holds per-layer gradient accumulators matching the
// network's parameter layout.
type gradients struct {
	weights [][][]float64
	biases  [][]float64
}

func newGradients(net *Network) *gradients {
	g := &gradients{
		weights: make([][][]float64, len(net.Weights)),
		biases:  make([][]float64, len(net.Biases)),
	}
	for l := range net.Weights {
		g.weights[l] = make([][]float64, len(net.Weights[l]))
		g.biases[l] = make([]float64, len(net.Biases[l]))
		for j := range net.Weights[l] {
			g.weights[l][j] = make([]float64, len(net.Weights[l][j]))
		}
	}
	return g
}

// backprop accumulates MSE gradients for one (input, target) sample.
func (net *Network) backprop(acts, masks [][]float64, target float64, grads *gradients) {
	numLayers := net.Top.NumLayers()
	output := acts[numLayers]

	// dL/dy for L = (y - t)^2 with a single output
	delta := []float64{2 * (output[0] - target)}

	for l := numLayers - 1; l >= 0; l-- {
		in := acts[l]
		for j, d := range delta {
			grads.biases[l][j] += d
			row := grads.weights[l][j]
			for i, x := range in {
				row[i] += d * x
			}
		}
		if l == 0 {
			break
		}
		prev := make([]float64, len(in))
		for j, d := range delta {
			row := net.Weights[l][j]
			for i := range prev {
				prev[i] += d * row[i]
			}
		}
		// through dropout mask and ReLU of the previous hidden layer
		if masks[l-1] != nil {
			for i := range prev {
				prev[i] *= masks[l-1][i]
			}
		}
		for i := range prev {
			if acts[l][i] <= 0 {
				prev[i] = 0
			}
		}
		delta = prev
	}
}

// TrainBatch performs one optimization step on a mini-batch: gradients
// of the mean squared error are averaged over the batch and applied
// through the solver. rng drives dropout sampling; targets[k] is the
// observed duration of inputs[k].
func (net *Network) TrainBatch(inputs [][]float64, targets []float64, solver Solver, rng *rand.Rand) {
	grads := newGradients(net)
	for k, input := range inputs {
		acts, masks := net.forward(input, rng)
		net.backprop(acts, masks, targets[k], grads)
	}
	scale := 1.0 / float64(len(inputs))
	idx := 0
	for l := range net.Weights {
		for j := range net.Weights[l] {
			row := net.Weights[l][j]
			grow := grads.weights[l][j]
			for i := range row {
				row[i] += solver.Update(row[i], grow[i]*scale, idx)
				idx++
			}
			net.Biases[l][j] += solver.Update(net.Biases[l][j], grads.biases[l][j]*scale, idx)
			idx++
		}
	}
}

// Loss returns the mean squared error of the network over the given
// sample set, in evaluation mode.
func (net *Network) Loss(inputs [][]float64, targets []float64) float64 {
	if len(inputs) == 0 {
		return 0
	}
	var total float64
	for k, input := range inputs {
		out := net.Predict(input)
		diff := out[0] - targets[k]
		total += diff * diff
	}
	return total / float64(len(inputs))
}
