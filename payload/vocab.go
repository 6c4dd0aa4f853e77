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

package payload

import "sort"

// The closed categorical vocabularies below come from the upstream
// inference library (sampler map, controlnet preprocessor map, source
// image processing options). They are versioned constants: any change
// changes the feature vector width and requires training a new study
// version from scratch. Partial reuse of an old checkpoint is never valid.

var knownSamplers = []string{
	"ddim",
	"dpmsolver",
	"k_dpm_2",
	"k_dpm_2_a",
	"k_dpm_adaptive",
	"k_dpm_fast",
	"k_dpmpp_2m",
	"k_dpmpp_2s_a",
	"k_dpmpp_sde",
	"k_euler",
	"k_euler_a",
	"k_heun",
	"k_lms",
	"lcm",
}

var knownControlTypes = []string{
	"None",
	"canny",
	"depth",
	"fakescribbles",
	"hed",
	"hough",
	"normal",
	"openpose",
	"scribble",
	"seg",
}

var knownSourceProcessing = []string{
	"img2img",
	"inpainting",
	"outpainting",
	"remix",
	"txt2img",
}

var knownSchedulers = []string{
	"karras",
	"simple",
}

var knownModelBaselines = []string{
	"flux_1",
	"stable_cascade",
	"stable_diffusion_1",
	"stable_diffusion_2",
	"stable_diffusion_xl",
}

var knownPostProcessors = []string{
	"RealESRGAN_x4plus",
	"RealESRGAN_x2plus",
	"RealESRGAN_x4plus_anime_6B",
	"NMKD_Siax",
	"4x_AnimeSharp",
	"strip_background",
	"GFPGAN",
	"CodeFormers",
}

// Vocabulary is a closed, sorted list of categorical values with a
// designated fallback used for any out-of-vocabulary input.
type Vocabulary struct {
	values   []string
	index    map[string]int
	fallback string
}

func NewVocabulary(values []string, fallback string) Vocabulary {
	vals := make([]string, len(values))
	copy(vals, values)
	sort.Strings(vals)
	idx := make(map[string]int, len(vals))
	for i, v := range vals {
		idx[v] = i
	}
	if _, ok := idx[fallback]; !ok {
		panic("vocabulary fallback value not in vocabulary: " + fallback)
	}
	return Vocabulary{values: vals, index: idx, fallback: fallback}
}

func (v Vocabulary) Size() int {
	return len(v.values)
}

func (v Vocabulary) Values() []string {
	return v.values
}

// IndexOf returns the position of value within the vocabulary,
// falling back to the designated default for unknown values.
// The second return value reports whether the value was known.
func (v Vocabulary) IndexOf(value string) (int, bool) {
	if i, ok := v.index[value]; ok {
		return i, true
	}
	return v.index[v.fallback], false
}

func (v Vocabulary) Contains(value string) bool {
	_, ok := v.index[value]
	return ok
}

// VocabSet bundles all closed vocabularies the feature encoder needs.
// It is built once during process startup and passed around explicitly;
// nothing in the encoding path reads ambient state.
type VocabSet struct {
	ModelBaselines   Vocabulary
	Samplers         Vocabulary
	Schedulers       Vocabulary
	ControlTypes     Vocabulary
	SourceProcessing Vocabulary
	PostProcessors   Vocabulary
}

// NewVocabSet creates the vocabulary set for the current schema version.
func NewVocabSet() VocabSet {
	return VocabSet{
		ModelBaselines:   NewVocabulary(knownModelBaselines, "stable_diffusion_xl"),
		Samplers:         NewVocabulary(knownSamplers, "k_euler"),
		Schedulers:       NewVocabulary(knownSchedulers, "karras"),
		ControlTypes:     NewVocabulary(knownControlTypes, "None"),
		SourceProcessing: NewVocabulary(knownSourceProcessing, "txt2img"),
		PostProcessors:   NewVocabulary(knownPostProcessors, "GFPGAN"),
	}
}
