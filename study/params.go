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
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ParamValue is one sampled hyperparameter value, either numeric
// (integers kept as whole float64s) or categorical.
type ParamValue struct {
	Num      float64
	Str      string
	IsString bool
}

func numParam(v float64) ParamValue {
	return ParamValue{Num: v}
}

func strParam(v string) ParamValue {
	return ParamValue{Str: v, IsString: true}
}

func (pv ParamValue) String() string {
	if pv.IsString {
		return pv.Str
	}
	return strconv.FormatFloat(pv.Num, 'g', -1, 64)
}

func (pv ParamValue) MarshalJSON() ([]byte, error) {
	if pv.IsString {
		return json.Marshal(pv.Str)
	}
	return json.Marshal(pv.Num)
}

func (pv *ParamValue) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*pv = numParam(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode param value %s: %w", data, err)
	}
	*pv = strParam(s)
	return nil
}

// Params is the full sampled configuration of one trial, keyed by
// parameter name. It is stored in the ledger as a JSON object.
type Params map[string]ParamValue

// Describe renders the params one per line in stable (sorted) order,
// for the best-trial report.
func (p Params) Describe() string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	var ans string
	for _, name := range names {
		ans += fmt.Sprintf("  %s: %s\n", name, p[name])
	}
	return ans
}

// Observation pairs one historical value of a single parameter with the
// score of the trial that used it; samplers consume per-parameter
// observation lists when proposing new values.
type Observation struct {
	Value ParamValue
	Score float64
}
