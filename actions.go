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

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/czcorpus/kudosizer/apiserver"
	"github.com/czcorpus/kudosizer/cnf"
	"github.com/czcorpus/kudosizer/dataset"
	"github.com/czcorpus/kudosizer/feats"
	"github.com/czcorpus/kudosizer/payload"
	"github.com/czcorpus/kudosizer/prediction"
	"github.com/czcorpus/kudosizer/study"
	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
)

const (
	tpeNumStartupTrials = 30
	tpeNumEICandidates  = 30

	lowAccuracyThreshold = 60.0
)

func runActionTrain(conf *cnf.Conf) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	encoder := feats.NewEncoder(payload.NewVocabSet())
	trainData, err := dataset.Load(conf.TrainingDataPath, encoder, dataset.LabelTimeToGenerate)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load training data")
		return
	}
	validData, err := dataset.Load(conf.ValidationDataPath, encoder, dataset.LabelTimeToGenerate)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load validation data")
		return
	}
	if err := study.EnsureCheckpointDir(conf.CheckpointDir); err != nil {
		log.Fatal().Err(err).Msg("failed to prepare checkpoint directory")
		return
	}

	sampler := study.NewTPESampler(
		tpeNumStartupTrials,
		tpeNumEICandidates,
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)
	studyName := fmt.Sprintf("kudos_model_%s", conf.StudyVersion)
	coord, err := study.Open(conf.StudyDB, studyName, sampler)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open study")
		return
	}
	defer coord.Close()

	objective := &study.Objective{
		Train:         trainData,
		Validate:      validData,
		Space:         study.DefaultSearchSpace(),
		CheckpointDir: conf.CheckpointDir,
		StudyVersion:  conf.StudyVersion,
		ShowProgress:  true,
	}
	if err := coord.Optimize(ctx, objective.Run, conf.NumTrials); err != nil {
		if ctx.Err() == nil {
			log.Fatal().Err(err).Msg("optimization failed")
		}
		return
	}

	best, err := coord.BestTrial()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to determine best trial")
		return
	}
	hl := color.New(color.FgHiGreen)
	hl.Println("Best trial:")
	fmt.Printf("Number: %d\n", best.Number)
	fmt.Printf("Value: %v\n", best.Score)
	fmt.Println("Params:")
	fmt.Print(best.Params.Describe())
	hl.Printf("Best model file is: %s\n", objective.CheckpointPath(best.Number))
}

// runActionTest walks the validation file one record at a time and
// reports prediction accuracy against the observed `time` label.
func runActionTest(conf *cnf.Conf, modelPath string) {
	encoder := feats.NewEncoder(payload.NewVocabSet())
	predictor, err := prediction.FromCheckpoint(modelPath, encoder)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model checkpoint")
		return
	}

	f, err := os.Open(conf.ValidationDataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open validation data")
		return
	}
	defer f.Close()

	lowAcc := color.New(color.FgHiRed)
	var accSum, totalJobTime float64
	var totalPredTime time.Duration
	var numRecords int

	scnr := bufio.NewScanner(f)
	scnr.Buffer(make([]byte, 0, 4*1024*1024), 4*1024*1024)
	for scnr.Scan() {
		line := scnr.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec payload.RequestPayload
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Fatal().Err(err).Msg("failed to parse validation data")
			return
		}
		if rec.Time == nil {
			continue
		}
		t0 := time.Now()
		predicted := predictor.PredictSeconds(rec)
		totalPredTime += time.Since(t0)
		actual := math.Round(*rec.Time*100) / 100
		totalJobTime += *rec.Time

		diff := math.Abs(actual - predicted)
		accuracy := (1 - diff/math.Max(actual, predicted)) * 100
		accSum += accuracy
		numRecords++
		if accuracy < lowAccuracyThreshold {
			lowAcc.Printf("%s\n", line)
		}
		fmt.Printf("%v predicted, %v actual (%.1f%%)\n", predicted, actual, accuracy)
	}
	if err := scnr.Err(); err != nil {
		log.Fatal().Err(err).Msg("failed to read validation data")
		return
	}
	if numRecords == 0 {
		log.Fatal().Msg("no labeled records in validation data")
		return
	}
	n := float64(numRecords)
	fmt.Printf(
		"Average kudos calculation time %d micro-seconds\n",
		totalPredTime.Microseconds()/int64(numRecords),
	)
	fmt.Printf("Average actual job time in the dataset %.2f seconds\n", totalJobTime/n)
	fmt.Printf("Average accuracy = %.1f%%\n", accSum/n)
}

func runActionServer(conf *cnf.Conf, version VersionInfo) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.ModelPath == "" {
		log.Fatal().Msg("cannot run API server - modelPath not configured")
		return
	}
	encoder := feats.NewEncoder(payload.NewVocabSet())
	predictor, err := prediction.FromCheckpoint(conf.ModelPath, encoder)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load model checkpoint")
		return
	}
	apiserver.Run(ctx, conf, predictor, version)
}
