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

package feats

import (
	"github.com/czcorpus/kudosizer/payload"
)

// NumScalarFeatures is the size of the leading numeric block of the
// feature vector (normalized numbers and boolean casts, in the fixed
// order produced by Encode).
const NumScalarFeatures = 23

// Encoder turns one request payload into a fixed-width feature vector.
// Encoding is total and deterministic: malformed or missing fields fall
// back to fixed defaults and out-of-vocabulary categorical values
// collapse to their vocabulary's fallback, so Encode never fails and
// identical payloads always produce identical vectors.
//
// Several boolean flags default to TRUE when absent (hires_fix, tiling,
// transparency, control flags, source image/mask presence). This is not
// intuitive but it is what the deployed models were trained with, so it
// is a fixed contract of the encoding, not a default to "fix".
type Encoder struct {
	vocabs payload.VocabSet
}

func NewEncoder(vocabs payload.VocabSet) *Encoder {
	return &Encoder{vocabs: vocabs}
}

// VectorSize returns the width of every vector produced by Encode.
// It determines the input width of any network trained on this schema.
func (enc *Encoder) VectorSize() int {
	return NumScalarFeatures +
		enc.vocabs.ModelBaselines.Size() +
		enc.vocabs.Samplers.Size() +
		enc.vocabs.Schedulers.Size() +
		enc.vocabs.ControlTypes.Size() +
		enc.vocabs.SourceProcessing.Size() +
		enc.vocabs.PostProcessors.Size()
}

// Encode produces the feature vector for one request record:
// the numeric block, then one one-hot block per categorical vocabulary
// (model baseline, sampler, scheduler, control type, source processing),
// then the multi-hot post-processor block. Block order is fixed.
func (enc *Encoder) Encode(rec payload.RequestPayload) []float64 {
	p := rec.JobInfo.Params
	ans := make([]float64, 0, enc.VectorSize())

	// numeric block; divisors are hand-chosen scales keeping typical
	// magnitudes roughly within [0, 2]
	ans = append(ans,
		p.Height/1024,
		p.Width/1024,
		p.DDIMSteps/100,
		p.CfgScale/30,
		floatOrDefault(p.DenoisingStrength, 1.0),
		floatOrDefault(p.ClipSkip, 1.0),
		floatOrDefault(p.ControlStrength, 1.0),
		floatOrDefault(p.FacefixerStrength, 1.0),
		floatOrDefault(p.LoraCount, 0),
		floatOrDefault(p.TICount, 0),
		floatOrDefault(p.ExtraSourceImagesCount, 0),
		floatOrDefault(p.ExtraSourceImagesCombinedSize, 0),
		floatOrDefault(p.SourceImageSize, 0),
		floatOrDefault(p.SourceMaskSize, 0),
		boolAsFloat(p.HiresFix, true),
		nonZeroAsFloat(p.HiresFixDenoisingStrength),
		boolAsFloat(p.ImageIsControl, true),
		boolAsFloat(p.ReturnControlMap, true),
		boolAsFloat(p.Transparent, true),
		presenceAsFloat(p.SourceImage),
		presenceAsFloat(p.SourceMask),
		boolAsFloat(p.Tiling, true),
		ppOrderAsFloat(p.PostProcessingOrder),
	)

	ans = enc.appendOneHot(ans, enc.vocabs.ModelBaselines, rec.JobInfo.ModelBaseline)
	ans = enc.appendOneHot(ans, enc.vocabs.Samplers, p.SamplerName)
	ans = enc.appendOneHot(ans, enc.vocabs.Schedulers, p.Scheduler)
	ans = enc.appendOneHot(ans, enc.vocabs.ControlTypes, strOrDefault(p.ControlType, "None"))
	ans = enc.appendOneHot(ans, enc.vocabs.SourceProcessing, strOrDefault(rec.JobInfo.SourceProcessing, "txt2img"))
	ans = enc.appendMultiHot(ans, enc.vocabs.PostProcessors, p.PostProcessing)
	return ans
}

// appendOneHot appends one indicator row for a single categorical value;
// unknown values light up the vocabulary's fallback position instead.
func (enc *Encoder) appendOneHot(vec []float64, voc payload.Vocabulary, value string) []float64 {
	row := make([]float64, voc.Size())
	idx, _ := voc.IndexOf(value)
	row[idx] = 1.0
	return append(vec, row...)
}

// appendMultiHot appends the summed indicator rows of a value list, so a
// post-processor applied twice contributes 2.0 at its position. Unknown
// entries are dropped.
func (enc *Encoder) appendMultiHot(vec []float64, voc payload.Vocabulary, values []string) []float64 {
	row := make([]float64, voc.Size())
	for _, v := range values {
		if idx, known := voc.IndexOf(v); known {
			row[idx] += 1.0
		}
	}
	return append(vec, row...)
}

func floatOrDefault(v *float64, dflt float64) float64 {
	if v == nil {
		return dflt
	}
	return *v
}

func strOrDefault(v *string, dflt string) string {
	if v == nil {
		return dflt
	}
	return *v
}

func boolAsFloat(v *bool, dflt bool) float64 {
	b := dflt
	if v != nil {
		b = *v
	}
	if b {
		return 1.0
	}
	return 0.0
}

// nonZeroAsFloat treats an optional number as a flag: absent counts as
// set (default-true policy), an explicit zero as unset.
func nonZeroAsFloat(v *float64) float64 {
	if v == nil || *v != 0 {
		return 1.0
	}
	return 0.0
}

// presenceAsFloat encodes an optional image attachment: an absent field
// counts as present (default-true policy), an empty string does not.
func presenceAsFloat(v *string) float64 {
	if v == nil || *v != "" {
		return 1.0
	}
	return 0.0
}

// ppOrderAsFloat flags the default "facefixers first" post-processing
// order; anything else (an explicit different order) encodes as 0.
func ppOrderAsFloat(v *string) float64 {
	if v == nil || *v == "facefixers_first" {
		return 1.0
	}
	return 0.0
}
