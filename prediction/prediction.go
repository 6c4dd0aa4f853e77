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

package prediction

import (
	"math"

	"github.com/czcorpus/kudosizer/feats"
	"github.com/czcorpus/kudosizer/nn"
	"github.com/czcorpus/kudosizer/payload"
)

// Predictor serves duration predictions from one trained checkpoint.
// The checkpoint is loaded once at construction; the encoder must be
// built from the same vocabulary version the model was trained with,
// otherwise the input widths will not match.
type Predictor struct {
	net *nn.Network
	enc *feats.Encoder
}

func NewPredictor(net *nn.Network, enc *feats.Encoder) *Predictor {
	return &Predictor{net: net, enc: enc}
}

// FromCheckpoint loads a checkpoint file and wraps it in a Predictor.
func FromCheckpoint(path string, enc *feats.Encoder) (*Predictor, error) {
	net, err := nn.LoadCheckpoint(path)
	if err != nil {
		return nil, err
	}
	return NewPredictor(net, enc), nil
}

// PredictSeconds returns the predicted job duration in seconds, rounded
// to two decimal places. The raw network output is returned as-is: it
// is not clamped, so a badly calibrated model can yield a negative
// value and downstream consumers must guard against that themselves.
func (p *Predictor) PredictSeconds(rec payload.RequestPayload) float64 {
	out := p.net.Predict(p.enc.Encode(rec))
	return math.Round(out[0]*100) / 100
}
