// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// heapsim runs heap scenarios against the heap segment domain and prints the resulting states.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
	"github.com/awslabs/ar-heap-tools/analysis/config"
	"github.com/awslabs/ar-heap-tools/analysis/heap"
	"github.com/awslabs/ar-heap-tools/analysis/render"
	"github.com/awslabs/ar-heap-tools/analysis/scenario"
	"github.com/awslabs/ar-heap-tools/internal/formatutil"
	"github.com/pkg/errors"
)

const usage = `heapsim: run heap scenarios
Usage:
  heapsim [command] [options] <scenario.yaml>...
Commands:
  - run: runs the scenarios and prints the final states
  - check: parses the scenarios without running them
Examples:
  heapsim run -config config.yaml list.yaml
  heapsim run -dot list.dot list.yaml`

// Flags are the flags of the heapsim commands
type Flags struct {
	FlagSet    *flag.FlagSet
	ConfigPath string
	DotPath    string
	Verbose    bool
	Color      formatutil.ColorMode
}

// NewFlags returns the parsed flags of the command name
func NewFlags(name string, args []string) (Flags, error) {
	cmd := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := cmd.String("config", "", "config file path")
	dotPath := cmd.String("dot", "", "output file for the Graphviz rendering of the final states")
	verbose := cmd.Bool("verbose", false, "verbose printing on standard output")
	color := cmd.String("color", "auto", "colored output: auto, always or never")
	cmd.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s\n", usage)
		fmt.Fprintf(os.Stderr, "Options:\n")
		cmd.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(os.Stderr, "  %s: %s (default: %q)\n", f.Name, f.Usage, f.DefValue)
		})
	}
	if err := cmd.Parse(args); err != nil {
		return Flags{}, fmt.Errorf("failed to parse command %s with args %v: %v", name, args, err)
	}
	if cmd.NArg() == 0 {
		return Flags{}, fmt.Errorf("no scenario given")
	}
	mode, err := formatutil.ParseColorMode(*color)
	if err != nil {
		return Flags{}, err
	}
	return Flags{FlagSet: cmd, ConfigPath: *configPath, DotPath: *dotPath, Verbose: *verbose, Color: mode}, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "error: expected subcommand\n%s\n", usage)
		os.Exit(2)
	}
	if snd := os.Args[1]; snd == "-help" || snd == "--help" {
		fmt.Println(usage)
		return
	}

	cmd := os.Args[1]
	flags, err := NewFlags(cmd, os.Args[2:])
	if err != nil {
		errExit(err)
	}
	formatutil.SetColorMode(flags.Color)
	switch cmd {
	case "run":
		err = run(flags, os.Stdout)
	case "check":
		err = check(flags)
	default:
		fmt.Fprintf(os.Stderr, "error: unexpected command: %v\n", cmd)
		fmt.Fprintf(os.Stderr, "usage:\n%s\n", usage)
		os.Exit(2)
	}
	if err != nil {
		errExit(err)
	}
}

func loadConfig(flags Flags) (*config.Config, error) {
	if flags.ConfigPath == "" {
		return config.NewDefault(), nil
	}
	config.SetGlobalConfig(flags.ConfigPath)
	cfg, err := config.LoadGlobal()
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %v", flags.ConfigPath, err)
	}
	return cfg, nil
}

// run runs every scenario and prints the final states on out. A scenario stopping on an unsupported operation does
// not prevent the others from running, but makes run return an error wrapping the first unsupported operation.
func run(flags Flags, out io.Writer) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if flags.Verbose && !cfg.Verbose() {
		cfg.LogLevel = int(config.DebugLevel)
	}
	logger := config.NewLogGroup(cfg)
	env := heap.NewEnv(cfg, logger)

	var final []scenario.State
	var unsupported []string
	var firstUnsupported error
	for _, name := range flags.FlagSet.Args() {
		filename, err := cfg.FindScenario(name)
		if err != nil {
			return err
		}
		s, err := scenario.Load(filename)
		if err != nil {
			return err
		}
		states, err := scenario.NewRunner(env).Run(s)
		if err != nil {
			if !absint.IsUnsupported(err) {
				return fmt.Errorf("scenario %s failed: %w", filename, err)
			}
			logger.Errorf("%s: %s", filename, formatutil.Red(err.Error()))
			if firstUnsupported == nil {
				firstUnsupported = err
			}
			unsupported = append(unsupported, filename)
			continue
		}
		logger.Infof("%s: %s", filename, formatutil.Green(fmt.Sprintf("%d final states", len(states))))
		for i, st := range states {
			fmt.Fprintf(out, "%s\n%s%s\n", formatutil.Bold(fmt.Sprintf("state %d", i)), st.Segment.CompactString(),
				st.State)
		}
		final = append(final, states...)
	}

	if flags.DotPath != "" {
		logger.Infof("writing region graphs in %s", flags.DotPath)
		if err := render.GraphvizToFile(flags.DotPath, final); err != nil {
			return err
		}
	}
	if firstUnsupported != nil {
		return errors.Wrapf(firstUnsupported, "%d scenario(s) stopped on an unsupported operation (%s)",
			len(unsupported), strings.Join(unsupported, ", "))
	}
	return nil
}

func check(flags Flags) error {
	for _, name := range flags.FlagSet.Args() {
		s, err := scenario.Load(name)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d steps\n", formatutil.Sanitize(name), len(s.Steps))
	}
	return nil
}

func errExit(err error) {
	fmt.Fprintf(os.Stderr, "%s %v\n", formatutil.Red("error:"), err)
	os.Exit(2)
}
