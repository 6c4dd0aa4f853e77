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
	"math"
	"math/rand"
	"sort"
)

// Sampler proposes hyperparameter values. hist holds prior completed
// observations of the same parameter within the study, numCompleted the
// total number of completed trials; a sampler is free to ignore both
// (pure random search) or to model them (TPE).
type Sampler interface {
	SampleFloat(low, high float64, logScale bool, hist []Observation, numCompleted int) float64
	SampleInt(low, high int, logScale bool, hist []Observation, numCompleted int) int
	SampleCategorical(choices []string, hist []Observation, numCompleted int) string
}

// ---------------- random search ----------------

// RandomSampler draws every value independently from its
// (log-)uniform prior.
type RandomSampler struct {
	rng *rand.Rand
}

func NewRandomSampler(rng *rand.Rand) *RandomSampler {
	return &RandomSampler{rng: rng}
}

func (s *RandomSampler) SampleFloat(low, high float64, logScale bool, hist []Observation, numCompleted int) float64 {
	return randomFloat(s.rng, low, high, logScale)
}

func (s *RandomSampler) SampleInt(low, high int, logScale bool, hist []Observation, numCompleted int) int {
	return randomInt(s.rng, low, high, logScale)
}

func (s *RandomSampler) SampleCategorical(choices []string, hist []Observation, numCompleted int) string {
	return choices[s.rng.Intn(len(choices))]
}

func randomFloat(rng *rand.Rand, low, high float64, logScale bool) float64 {
	if logScale {
		return math.Exp(math.Log(low) + rng.Float64()*(math.Log(high)-math.Log(low)))
	}
	return low + rng.Float64()*(high-low)
}

func randomInt(rng *rand.Rand, low, high int, logScale bool) int {
	if logScale {
		v := math.Exp(math.Log(float64(low)) + rng.Float64()*(math.Log(float64(high)+1)-math.Log(float64(low))))
		return clampInt(int(math.Floor(v)), low, high)
	}
	return low + rng.Intn(high-low+1)
}

func clampInt(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

// ---------------- TPE ----------------

// TPESampler is a per-parameter Tree-structured Parzen Estimator in the
// spirit of Optuna's default sampler: completed trials are split into a
// "good" and a "bad" group at the gamma quantile of their scores
// (lower is better), candidate values are drawn from a Parzen density
// over the good group and the one maximizing the good/bad density
// ratio wins. Until numStartup trials have completed it behaves like
// random search. Parameters are modeled independently of each other.
type TPESampler struct {
	rng           *rand.Rand
	numStartup    int
	numCandidates int
	gamma         float64
}

// NewTPESampler creates a TPE sampler; numStartup is the number of
// purely random trials before the estimator kicks in and numCandidates
// the number of expected-improvement candidates drawn per parameter.
func NewTPESampler(numStartup, numCandidates int, rng *rand.Rand) *TPESampler {
	return &TPESampler{
		rng:           rng,
		numStartup:    numStartup,
		numCandidates: numCandidates,
		gamma:         0.25,
	}
}

func (s *TPESampler) SampleFloat(low, high float64, logScale bool, hist []Observation, numCompleted int) float64 {
	if numCompleted < s.numStartup || len(hist) < 2 {
		return randomFloat(s.rng, low, high, logScale)
	}
	lo, hi := low, high
	if logScale {
		lo, hi = math.Log(low), math.Log(high)
	}
	good, bad := s.splitObservations(hist, logScale)
	v := s.proposeNumeric(lo, hi, good, bad)
	if logScale {
		return math.Exp(v)
	}
	return v
}

func (s *TPESampler) SampleInt(low, high int, logScale bool, hist []Observation, numCompleted int) int {
	v := s.SampleFloat(float64(low), float64(high), logScale, hist, numCompleted)
	return clampInt(int(math.Round(v)), low, high)
}

func (s *TPESampler) SampleCategorical(choices []string, hist []Observation, numCompleted int) string {
	if numCompleted < s.numStartup || len(hist) < 2 {
		return choices[s.rng.Intn(len(choices))]
	}
	good, _ := s.splitCategorical(hist)
	// Laplace-smoothed draw from the good group's empirical distribution
	weights := make([]float64, len(choices))
	var total float64
	for i, c := range choices {
		weights[i] = 1 + float64(good[c])
		total += weights[i]
	}
	r := s.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return choices[i]
		}
	}
	return choices[len(choices)-1]
}

// splitObservations orders hist by score and returns the numeric values
// of the best gamma share and of the rest, in (possibly log) domain.
func (s *TPESampler) splitObservations(hist []Observation, logScale bool) (good, bad []float64) {
	sorted := make([]Observation, len(hist))
	copy(sorted, hist)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })
	numGood := int(math.Ceil(s.gamma * float64(len(sorted))))
	if numGood < 1 {
		numGood = 1
	}
	conv := func(v float64) float64 {
		if logScale {
			return math.Log(v)
		}
		return v
	}
	for i, obs := range sorted {
		if i < numGood {
			good = append(good, conv(obs.Value.Num))
		} else {
			bad = append(bad, conv(obs.Value.Num))
		}
	}
	return
}

func (s *TPESampler) splitCategorical(hist []Observation) (good, bad map[string]int) {
	sorted := make([]Observation, len(hist))
	copy(sorted, hist)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })
	numGood := int(math.Ceil(s.gamma * float64(len(sorted))))
	if numGood < 1 {
		numGood = 1
	}
	good, bad = make(map[string]int), make(map[string]int)
	for i, obs := range sorted {
		if i < numGood {
			good[obs.Value.Str]++
		} else {
			bad[obs.Value.Str]++
		}
	}
	return
}

// proposeNumeric draws candidates from the good-group Parzen density
// and keeps the one with the highest good/bad density ratio.
func (s *TPESampler) proposeNumeric(lo, hi float64, good, bad []float64) float64 {
	bandwidth := (hi - lo) / 5
	if bandwidth <= 0 {
		return lo
	}
	best := lo
	bestRatio := math.Inf(-1)
	for c := 0; c < s.numCandidates; c++ {
		center := good[s.rng.Intn(len(good))]
		cand := center + s.rng.NormFloat64()*bandwidth
		if cand < lo {
			cand = lo
		}
		if cand > hi {
			cand = hi
		}
		ratio := parzen(cand, good, bandwidth) / math.Max(parzen(cand, bad, bandwidth), 1e-12)
		if ratio > bestRatio {
			bestRatio = ratio
			best = cand
		}
	}
	return best
}

// parzen evaluates a fixed-bandwidth Gaussian kernel density estimate.
func parzen(x float64, points []float64, bandwidth float64) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		d := (x - p) / bandwidth
		sum += math.Exp(-0.5 * d * d)
	}
	return sum / (float64(len(points)) * bandwidth * math.Sqrt(2*math.Pi))
}
