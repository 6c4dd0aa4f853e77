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

// Trial is the handle an objective function uses to draw its
// hyperparameter configuration. Every Suggest* call consults the
// study's sampler with the history of the same parameter across
// completed trials (a snapshot taken when the trial started) and
// records the drawn value, so the full configuration ends up in the
// ledger next to the score.
type Trial struct {
	// Number is unique within the study across all worker processes
	Number int

	sampler   Sampler
	completed []TrialRecord
	params    Params
}

func newTrial(number int, sampler Sampler, completed []TrialRecord) *Trial {
	return &Trial{
		Number:    number,
		sampler:   sampler,
		completed: completed,
		params:    Params{},
	}
}

// Params returns the configuration sampled so far.
func (t *Trial) Params() Params {
	return t.params
}

func (t *Trial) history(name string) []Observation {
	ans := make([]Observation, 0, len(t.completed))
	for _, rec := range t.completed {
		if v, ok := rec.Params[name]; ok {
			ans = append(ans, Observation{Value: v, Score: rec.Score})
		}
	}
	return ans
}

func (t *Trial) SuggestInt(name string, low, high int, logScale bool) int {
	v := t.sampler.SampleInt(low, high, logScale, t.history(name), len(t.completed))
	t.params[name] = numParam(float64(v))
	return v
}

func (t *Trial) SuggestFloat(name string, low, high float64, logScale bool) float64 {
	v := t.sampler.SampleFloat(low, high, logScale, t.history(name), len(t.completed))
	t.params[name] = numParam(v)
	return v
}

func (t *Trial) SuggestCategorical(name string, choices []string) string {
	v := t.sampler.SampleCategorical(choices, t.history(name), len(t.completed))
	t.params[name] = strParam(v)
	return v
}
