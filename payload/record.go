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

// GenParams is the inner generation parameter set of a job request.
// Most fields are optional on the wire; pointer fields distinguish
// "not provided" (nil) from a concrete value, and the feature encoder
// substitutes a documented default for nil. Absent and explicit null
// are treated the same.
type GenParams struct {
	SamplerName       string   `json:"sampler_name"`
	CfgScale          float64  `json:"cfg_scale"`
	DenoisingStrength *float64 `json:"denoising_strength"`
	Seed              string   `json:"seed"`
	Height            float64  `json:"height"`
	Width             float64  `json:"width"`
	DDIMSteps         float64  `json:"ddim_steps"`
	ClipSkip          *float64 `json:"clip_skip"`
	ControlType       *string  `json:"control_type"`
	ControlStrength   *float64 `json:"control_strength"`
	FacefixerStrength *float64 `json:"facefixer_strength"`
	Scheduler         string   `json:"scheduler"`

	PostProcessing      []string `json:"post_processing"`
	PostProcessingOrder *string  `json:"post_processing_order"`

	HiresFix *bool `json:"hires_fix"`
	// a number on the wire but consumed only as a did-they-set-it flag
	HiresFixDenoisingStrength *float64 `json:"hires_fix_denoising_strength"`
	Tiling                    *bool    `json:"tiling"`
	Transparent               *bool    `json:"transparent"`
	ImageIsControl            *bool    `json:"image_is_control"`
	ReturnControlMap          *bool    `json:"return_control_map"`
	SourceImage               *string  `json:"source_image"`
	SourceMask                *string  `json:"source_mask"`

	LoraCount *float64 `json:"lora_count"`
	TICount   *float64 `json:"ti_count"`

	// The upstream worker reads the following four from the inner params
	// object even though real payloads carry them one level up; the
	// trained models therefore see their defaults. This placement is a
	// behavioral contract of the deployed models and must not move.
	ExtraSourceImagesCount        *float64 `json:"extra_source_images_count"`
	ExtraSourceImagesCombinedSize *float64 `json:"extra_source_images_combined_size"`
	SourceImageSize               *float64 `json:"source_image_size"`
	SourceMaskSize                *float64 `json:"source_mask_size"`
}

// JobInfo wraps the generation parameters with job-level metadata.
type JobInfo struct {
	ID               string    `json:"id_"`
	Params           GenParams `json:"payload"`
	Model            string    `json:"model"`
	ModelBaseline    string    `json:"model_baseline"`
	SourceProcessing *string   `json:"source_processing"`
}

// RequestPayload is one job request record as produced by the worker's
// training data dump. TimeToGenerate is the training label, Time the
// validation one; both optional because the respective other file
// does not carry them.
type RequestPayload struct {
	JobInfo        JobInfo  `json:"sdk_api_job_info"`
	State          string   `json:"state"`
	TimeToGenerate *float64 `json:"time_to_generate"`
	Time           *float64 `json:"time"`
}
