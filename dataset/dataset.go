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

package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/czcorpus/kudosizer/feats"
	"github.com/czcorpus/kudosizer/payload"
	"github.com/rs/zerolog/log"
)

// some payload dumps contain large embedded base64 images
const scanBufferCapacity = 4 * 1024 * 1024

// LabelField selects which label a data file carries: the training dump
// stores elapsed time in `time_to_generate`, the validation walk-through
// file in `time`.
type LabelField string

const (
	LabelTimeToGenerate LabelField = "time_to_generate"
	LabelTime           LabelField = "time"
)

func (lf LabelField) extract(rec payload.RequestPayload) *float64 {
	if lf == LabelTime {
		return rec.Time
	}
	return rec.TimeToGenerate
}

// Dataset is an eagerly materialized, encoded training set: one feature
// vector and one scalar label (seconds) per usable record. Records
// without a label are dropped during load; training sets are modest so
// keeping everything in memory is fine.
type Dataset struct {
	vectors [][]float64
	labels  []float64
}

// New wraps already-encoded vectors and labels in a Dataset; used for
// synthetic data in calibration runs and tests.
func New(vectors [][]float64, labels []float64) *Dataset {
	if len(vectors) != len(labels) {
		panic("dataset: vectors and labels length mismatch")
	}
	return &Dataset{vectors: vectors, labels: labels}
}

func (ds *Dataset) Len() int {
	return len(ds.vectors)
}

// VectorSize returns the feature vector width (0 for an empty set).
func (ds *Dataset) VectorSize() int {
	if len(ds.vectors) == 0 {
		return 0
	}
	return len(ds.vectors[0])
}

// At returns the i-th (features, label) pair. The returned slice is the
// stored vector itself; callers must not modify it.
func (ds *Dataset) At(i int) ([]float64, float64) {
	return ds.vectors[i], ds.labels[i]
}

func (ds *Dataset) add(rec payload.RequestPayload, enc *feats.Encoder, label LabelField) {
	lb := label.extract(rec)
	if lb == nil {
		return
	}
	ds.vectors = append(ds.vectors, enc.Encode(rec))
	ds.labels = append(ds.labels, *lb)
}

// Load reads a payload dump file and encodes it into a Dataset. Both
// whole-array JSON and line-delimited JSON are accepted (sniffed from
// the first non-space byte). A record missing its label is skipped
// silently; a structurally broken file is an error.
func Load(path string, enc *feats.Encoder, label LabelField) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	ds := &Dataset{}
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var recs []payload.RequestPayload
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
		}
		for _, rec := range recs {
			ds.add(rec, enc, label)
		}

	} else {
		scnr := bufio.NewScanner(bytes.NewReader(raw))
		scnr.Buffer(make([]byte, 0, scanBufferCapacity), scanBufferCapacity)
		for scnr.Scan() {
			line := bytes.TrimSpace(scnr.Bytes())
			if len(line) == 0 {
				continue
			}
			var rec payload.RequestPayload
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
			}
			ds.add(rec, enc, label)
		}
		if err := scnr.Err(); err != nil {
			return nil, fmt.Errorf("failed to load dataset %s: %w", path, err)
		}
	}
	log.Info().
		Str("file", path).
		Int("numRecords", ds.Len()).
		Msg("loaded dataset")
	return ds, nil
}
