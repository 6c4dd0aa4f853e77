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
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/czcorpus/kudosizer/cnf"
)

const (
	actionTrain   = "train"
	actionTest    = "test"
	actionServer  = "server"
	actionVersion = "version"
	actionHelp    = "help"
)

var (
	version   string
	buildDate string
	gitCommit string
)

// VersionInfo provides a detailed information about the actual build
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
}

func topLevelUsage() {
	fmt.Fprintf(os.Stderr, "KUDOSIZER - an image generation job time predictor\n")
	fmt.Fprintf(os.Stderr, "-----------------------------\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tshow version info\n", actionVersion)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\trun the hyperparameter search training\n", actionTrain)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\tevaluate a model checkpoint record by record\n", actionTest)
	fmt.Fprintf(os.Stderr, "\t%s\t\t\trun the prediction HTTP API\n", actionServer)
	fmt.Fprintf(os.Stderr, "\nUse `kudosizer help ACTION` for information about a specific action\n\n")
}

func setup(confPath string) *cnf.Conf {
	conf := cnf.LoadConfig(confPath)
	if conf.Logging.Level == "" {
		conf.Logging.Level = "info"
	}
	logging.SetupLogging(conf.Logging)
	cnf.ValidateAndDefaults(conf)
	return conf
}

func cleanVersionInfo(v string) string {
	return strings.TrimLeft(strings.Trim(v, "'"), "v")
}

func runActionVersion(ver VersionInfo) {
	fmt.Fprintln(os.Stderr, "Kudosizer version: ", ver)
}

func main() {
	version := VersionInfo{
		Version:   cleanVersionInfo(version),
		BuildDate: cleanVersionInfo(buildDate),
		GitCommit: cleanVersionInfo(gitCommit),
	}

	cmdTrain := flag.NewFlagSet(actionTrain, flag.ExitOnError)
	trainTrials := cmdTrain.Int("trials", 0, "number of trials to run (overrides config)")
	trainStudyVersion := cmdTrain.String("study-version", "", "version number of the study (overrides config)")
	trainDataPath := cmdTrain.String("training-data", "", "path to training data file (overrides config)")
	trainValidPath := cmdTrain.String("validation-data", "", "path to validation data file (overrides config)")
	cmdTrain.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s [options] config.json\n",
			filepath.Base(os.Args[0]), actionTrain)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdTrain.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nRun the distributed hyperparameter search. Multiple processes\n"+
			"pointed at the same study database cooperate automatically.\n")
	}

	cmdTest := flag.NewFlagSet(actionTest, flag.ExitOnError)
	testModelPath := cmdTest.String("model", "", "path to the model checkpoint to evaluate")
	testValidPath := cmdTest.String("validation-data", "", "path to validation data file (overrides config)")
	cmdTest.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s -model PATH [options] config.json\n",
			filepath.Base(os.Args[0]), actionTest)
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		cmdTest.PrintDefaults()
	}

	cmdServer := flag.NewFlagSet(actionServer, flag.ExitOnError)
	cmdServer.Usage = func() {
		fmt.Fprintf(
			os.Stderr,
			"Usage:\t%s %s config.json\n",
			filepath.Base(os.Args[0]), actionServer)
		cmdServer.PrintDefaults()
	}

	cmdVersion := flag.NewFlagSet(actionVersion, flag.ExitOnError)
	cmdVersion.Usage = func() {
		cmdVersion.PrintDefaults()
	}

	cmdHelp := flag.NewFlagSet(actionHelp, flag.ExitOnError)
	cmdHelp.Usage = func() {
		cmdHelp.PrintDefaults()
	}

	action := actionHelp
	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	switch action {
	case actionHelp:
		var subj string
		if len(os.Args) > 2 {
			cmdHelp.Parse(os.Args[2:])
			subj = cmdHelp.Arg(0)
		}
		if subj == "" {
			topLevelUsage()
			return
		}
		switch subj {
		case actionTrain:
			cmdTrain.Usage()
		case actionTest:
			cmdTest.Usage()
		case actionServer:
			cmdServer.Usage()
		}
	case actionVersion:
		cmdVersion.Parse(os.Args[2:])
		runActionVersion(version)
	case actionTrain:
		cmdTrain.Parse(os.Args[2:])
		conf := setup(cmdTrain.Arg(0))
		if *trainTrials > 0 {
			conf.NumTrials = *trainTrials
		}
		if *trainStudyVersion != "" {
			conf.StudyVersion = *trainStudyVersion
		}
		if *trainDataPath != "" {
			conf.TrainingDataPath = *trainDataPath
		}
		if *trainValidPath != "" {
			conf.ValidationDataPath = *trainValidPath
		}
		runActionTrain(conf)
	case actionTest:
		cmdTest.Parse(os.Args[2:])
		conf := setup(cmdTest.Arg(0))
		if *testValidPath != "" {
			conf.ValidationDataPath = *testValidPath
		}
		if *testModelPath == "" {
			fmt.Fprintln(os.Stderr, "missing required -model argument")
			cmdTest.Usage()
			os.Exit(1)
		}
		runActionTest(conf, *testModelPath)
	case actionServer:
		cmdServer.Parse(os.Args[2:])
		conf := setup(cmdServer.Arg(0))
		runActionServer(conf, version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown action, please use 'help' to get more information")
	}
}
