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

import "math"

// Solver applies per-parameter weight updates. Init is called once with
// the parameter count before training; Update returns the delta to add
// to parameter idx given its current value and raw gradient. All three
// implementations fold L2 weight decay into the gradient the way torch
// optimizers do.
type Solver interface {
	Init(size int)
	Update(value, gradient float64, idx int) float64
}

// SGD is plain stochastic gradient descent.
type SGD struct {
	lr          float64
	weightDecay float64
}

func NewSGD(lr, weightDecay float64) *SGD {
	return &SGD{lr: lr, weightDecay: weightDecay}
}

func (o *SGD) Init(size int) {}

func (o *SGD) Update(value, gradient float64, idx int) float64 {
	return -o.lr * (gradient + o.weightDecay*value)
}

// RMSprop normalizes gradients by a running mean of their squares.
type RMSprop struct {
	lr          float64
	weightDecay float64
	alpha       float64
	epsilon     float64
	sqAvg       []float64
}

func NewRMSprop(lr, weightDecay float64) *RMSprop {
	return &RMSprop{
		lr:          lr,
		weightDecay: weightDecay,
		alpha:       0.99,
		epsilon:     1e-8,
	}
}

func (o *RMSprop) Init(size int) {
	o.sqAvg = make([]float64, size)
}

func (o *RMSprop) Update(value, gradient float64, idx int) float64 {
	g := gradient + o.weightDecay*value
	o.sqAvg[idx] = o.alpha*o.sqAvg[idx] + (1-o.alpha)*g*g
	return -o.lr * g / (math.Sqrt(o.sqAvg[idx]) + o.epsilon)
}

// Adam keeps bias-corrected first and second gradient moments.
type Adam struct {
	lr          float64
	weightDecay float64
	beta1       float64
	beta2       float64
	epsilon     float64
	moments     []float64
	velocities  []float64
	steps       []int
}

func NewAdam(lr, weightDecay float64) *Adam {
	return &Adam{
		lr:          lr,
		weightDecay: weightDecay,
		beta1:       0.9,
		beta2:       0.999,
		epsilon:     1e-8,
	}
}

func (o *Adam) Init(size int) {
	o.moments = make([]float64, size)
	o.velocities = make([]float64, size)
	o.steps = make([]int, size)
}

func (o *Adam) Update(value, gradient float64, idx int) float64 {
	g := gradient + o.weightDecay*value
	o.steps[idx]++
	t := float64(o.steps[idx])
	o.moments[idx] = o.beta1*o.moments[idx] + (1-o.beta1)*g
	o.velocities[idx] = o.beta2*o.velocities[idx] + (1-o.beta2)*g*g
	mHat := o.moments[idx] / (1 - math.Pow(o.beta1, t))
	vHat := o.velocities[idx] / (1 - math.Pow(o.beta2, t))
	return -o.lr * mHat / (math.Sqrt(vHat) + o.epsilon)
}
