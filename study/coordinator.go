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

// Package study runs the hyperparameter search: many trials of the
// training objective coordinated through a shared SQL ledger, so any
// number of independent worker processes can be pointed at the same
// study and cooperate without duplicated trial numbers. Trials are
// otherwise fully isolated; there is no cross-trial state and no
// in-flight cancellation (a trial runs to completion or its process
// dies).
package study

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ObjectiveFunc evaluates one trial and returns its score (lower is
// better). An error is unrecoverable and aborts the whole run.
type ObjectiveFunc func(ctx context.Context, trial *Trial) (float64, error)

// Coordinator drives trials of one named study against the ledger.
type Coordinator struct {
	ledger  *Ledger
	sampler Sampler
	name    string
	studyID int64
}

// Open creates-or-resumes the named study in the ledger behind
// connString. The sampler is the proposal strategy shared by all trials
// this process runs.
func Open(connString, name string, sampler Sampler) (*Coordinator, error) {
	ledger, err := OpenLedger(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open study %s: %w", name, err)
	}
	studyID, err := ledger.CreateOrLoadStudy(name)
	if err != nil {
		ledger.Close()
		return nil, fmt.Errorf("failed to open study %s: %w", name, err)
	}
	return &Coordinator{
		ledger:  ledger,
		sampler: sampler,
		name:    name,
		studyID: studyID,
	}, nil
}

func (c *Coordinator) Close() error {
	return c.ledger.Close()
}

// Optimize runs numTrials additional trials. Each one reserves a fresh
// trial number, takes a snapshot of completed trials for the sampler,
// runs the objective and records the score. Context cancellation is
// honored between trials only.
func (c *Coordinator) Optimize(ctx context.Context, objective ObjectiveFunc, numTrials int) error {
	for i := 0; i < numTrials; i++ {
		select {
		case <-ctx.Done():
			log.Warn().Str("study", c.name).Msg("optimization interrupted")
			return ctx.Err()
		default:
		}
		num, err := c.ledger.ReserveTrial(c.studyID)
		if err != nil {
			return err
		}
		completed, err := c.ledger.CompletedTrials(c.studyID)
		if err != nil {
			return err
		}
		trial := newTrial(num, c.sampler, completed)
		score, err := objective(ctx, trial)
		if err != nil {
			return fmt.Errorf("trial %d failed: %w", num, err)
		}
		if err := c.ledger.CompleteTrial(c.studyID, num, trial.Params(), score); err != nil {
			return err
		}
	}
	return nil
}

// BestTrial returns the study-wide best (lowest score) completed trial.
func (c *Coordinator) BestTrial() (TrialRecord, error) {
	rec, err := c.ledger.BestTrial(c.studyID)
	if err != nil {
		return rec, fmt.Errorf("failed to find best trial of %s: %w", c.name, err)
	}
	return rec, nil
}
