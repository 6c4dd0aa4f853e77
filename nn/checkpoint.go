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

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// checkpointFormatVersion guards the serialized layout, not the feature
// schema (that one lives in the study version baked into file names).
const checkpointFormatVersion = 1

// checkpoint is the serialized form of a trained network. Topology and
// weight tensors are recorded separately so a checkpoint can be loaded
// by any build that understands the format version, with no dependency
// on in-process type identity.
type checkpoint struct {
	FormatVersion int           `msgpack:"formatVersion"`
	Topology      Topology      `msgpack:"topology"`
	Weights       [][][]float64 `msgpack:"weights"`
	Biases        [][]float64   `msgpack:"biases"`
}

// SaveCheckpoint persists a trained network. Checkpoint files are
// write-once; a trial never rewrites an existing one.
func SaveCheckpoint(path string, net *Network) error {
	srz, err := msgpack.Marshal(checkpoint{
		FormatVersion: checkpointFormatVersion,
		Topology:      net.Top,
		Weights:       net.Weights,
		Biases:        net.Biases,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	if err := os.WriteFile(path, srz, 0644); err != nil {
		return fmt.Errorf("failed to save checkpoint to %s: %w", path, err)
	}
	return nil
}

// LoadCheckpoint restores a network from a checkpoint file.
func LoadCheckpoint(path string) (*Network, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", path, err)
	}
	var ckp checkpoint
	if err := msgpack.Unmarshal(raw, &ckp); err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w", path, err)
	}
	if ckp.FormatVersion != checkpointFormatVersion {
		return nil, fmt.Errorf(
			"failed to load checkpoint %s: unsupported format version %d",
			path, ckp.FormatVersion,
		)
	}
	return &Network{
		Top:     ckp.Topology,
		Weights: ckp.Weights,
		Biases:  ckp.Biases,
	}, nil
}
