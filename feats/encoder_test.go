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
	"testing"

	"github.com/czcorpus/kudosizer/payload"
	"github.com/stretchr/testify/assert"
)

func boolPtr(v bool) *bool {
	return &v
}

func floatPtr(v float64) *float64 {
	return &v
}

func strPtr(v string) *string {
	return &v
}

func typicalRecord() payload.RequestPayload {
	return payload.RequestPayload{
		JobInfo: payload.JobInfo{
			ModelBaseline:    "stable_diffusion_1",
			SourceProcessing: strPtr("img2img"),
			Params: payload.GenParams{
				SamplerName: "k_euler",
				Scheduler:   "karras",
				Height:      1024,
				Width:       768,
				DDIMSteps:   40,
				CfgScale:    24,
			},
		},
	}
}

func TestEncodeDeterministic(t *testing.T) {
	enc := NewEncoder(payload.NewVocabSet())
	rec := typicalRecord()
	assert.Equal(t, enc.Encode(rec), enc.Encode(rec))
}

func TestEncodeTotalOnEmptyRecord(t *testing.T) {
	enc := NewEncoder(payload.NewVocabSet())
	vec := enc.Encode(payload.RequestPayload{})
	assert.Equal(t, enc.VectorSize(), len(vec))
}

func TestEncodeLengthInvariant(t *testing.T) {
	enc := NewEncoder(payload.NewVocabSet())
	rec1 := typicalRecord()
	rec2 := typicalRecord()
	rec2.JobInfo.Params.PostProcessing = []string{"GFPGAN", "CodeFormers"}
	rec2.JobInfo.Params.ControlType = strPtr("canny")
	assert.Equal(t, len(enc.Encode(rec1)), len(enc.Encode(rec2)))
	assert.Equal(t, enc.VectorSize(), len(enc.Encode(rec1)))
}

func TestEncodeNumericNormalization(t *testing.T) {
	enc := NewEncoder(payload.NewVocabSet())
	vec := enc.Encode(typicalRecord())
	assert.InDelta(t, 1.0, vec[0], 1e-9)       // height/1024
	assert.InDelta(t, 0.75, vec[1], 1e-9)      // width/1024
	assert.InDelta(t, 0.4, vec[2], 1e-9)       // steps/100
	assert.InDelta(t, 24.0/30.0, vec[3], 1e-9) // cfg/30
}

func TestEncodeDefaultTrueFlags(t *testing.T) {
	enc := NewEncoder(payload.NewVocabSet())
	rec := typicalRecord()
	vec := enc.Encode(rec)
	// absent flags with default-true semantics encode as 1.0
	assert.Equal(t, 1.0, vec[14]) // hires_fix
	assert.Equal(t, 1.0, vec[21]) // tiling
	assert.Equal(t, 1.0, vec[18]) // transparent
	assert.Equal(t, 1.0, vec[22]) // post_processing_order

	rec.JobInfo.Params.HiresFix = boolPtr(false)
	rec.JobInfo.Params.Tiling = boolPtr(false)
	rec.JobInfo.Params.Transparent = boolPtr(false)
	rec.JobInfo.Params.PostProcessingOrder = strPtr("upscalers_first")
	vec = enc.Encode(rec)
	assert.Equal(t, 0.0, vec[14])
	assert.Equal(t, 0.0, vec[21])
	assert.Equal(t, 0.0, vec[18])
	assert.Equal(t, 0.0, vec[22])
}

func TestEncodeOptionalNumericDefaults(t *testing.T) {
	enc := NewEncoder(payload.NewVocabSet())
	rec := typicalRecord()
	vec := enc.Encode(rec)
	assert.Equal(t, 1.0, vec[4]) // denoising_strength
	assert.Equal(t, 1.0, vec[5]) // clip_skip
	assert.Equal(t, 1.0, vec[6]) // control_strength
	assert.Equal(t, 0.0, vec[8]) // lora_count

	rec.JobInfo.Params.DenoisingStrength = floatPtr(0.35)
	rec.JobInfo.Params.LoraCount = floatPtr(3)
	vec = enc.Encode(rec)
	assert.InDelta(t, 0.35, vec[4], 1e-9)
	assert.Equal(t, 3.0, vec[8])
}

func TestEncodeOneHotInVocabulary(t *testing.T) {
	vocabs := payload.NewVocabSet()
	enc := NewEncoder(vocabs)
	rec := typicalRecord()
	vec := enc.Encode(rec)

	block := vec[NumScalarFeatures : NumScalarFeatures+vocabs.ModelBaselines.Size()]
	var ones int
	for i, v := range block {
		if v == 1.0 {
			ones++
			idx, known := vocabs.ModelBaselines.IndexOf("stable_diffusion_1")
			assert.True(t, known)
			assert.Equal(t, idx, i)

		} else {
			assert.Equal(t, 0.0, v)
		}
	}
	assert.Equal(t, 1, ones)
}

func TestEncodeOneHotOutOfVocabulary(t *testing.T) {
	vocabs := payload.NewVocabSet()
	enc := NewEncoder(vocabs)
	rec := typicalRecord()
	rec.JobInfo.ModelBaseline = "some_unknown_baseline"
	vec := enc.Encode(rec)

	block := vec[NumScalarFeatures : NumScalarFeatures+vocabs.ModelBaselines.Size()]
	fallbackIdx, _ := vocabs.ModelBaselines.IndexOf("stable_diffusion_xl")
	for i, v := range block {
		if i == fallbackIdx {
			assert.Equal(t, 1.0, v)

		} else {
			assert.Equal(t, 0.0, v)
		}
	}
}

func TestEncodeUnknownSamplerFallback(t *testing.T) {
	vocabs := payload.NewVocabSet()
	enc := NewEncoder(vocabs)
	rec := typicalRecord()
	rec.JobInfo.Params.SamplerName = "k_totally_new"
	vec := enc.Encode(rec)

	offset := NumScalarFeatures + vocabs.ModelBaselines.Size()
	block := vec[offset : offset+vocabs.Samplers.Size()]
	fallbackIdx, _ := vocabs.Samplers.IndexOf("k_euler")
	assert.Equal(t, 1.0, block[fallbackIdx])
}

func TestEncodeMultiHotCounts(t *testing.T) {
	vocabs := payload.NewVocabSet()
	enc := NewEncoder(vocabs)
	rec := typicalRecord()
	rec.JobInfo.Params.PostProcessing = []string{"GFPGAN", "GFPGAN", "CodeFormers", "NoSuchThing"}
	vec := enc.Encode(rec)

	offset := enc.VectorSize() - vocabs.PostProcessors.Size()
	block := vec[offset:]
	gfpganIdx, _ := vocabs.PostProcessors.IndexOf("GFPGAN")
	cfIdx, _ := vocabs.PostProcessors.IndexOf("CodeFormers")
	assert.Equal(t, 2.0, block[gfpganIdx])
	assert.Equal(t, 1.0, block[cfIdx])
	var total float64
	for _, v := range block {
		total += v
	}
	assert.Equal(t, 3.0, total) // the unknown entry is dropped
}

func TestEncodeSourceImagePresence(t *testing.T) {
	enc := NewEncoder(payload.NewVocabSet())
	rec := typicalRecord()
	vec := enc.Encode(rec)
	assert.Equal(t, 1.0, vec[19]) // absent counts as present

	rec.JobInfo.Params.SourceImage = strPtr("")
	vec = enc.Encode(rec)
	assert.Equal(t, 0.0, vec[19])

	rec.JobInfo.Params.SourceImage = strPtr("aGVsbG8=")
	vec = enc.Encode(rec)
	assert.Equal(t, 1.0, vec[19])
}
