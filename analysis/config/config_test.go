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

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func loadFromTestDir(t *testing.T, filename string) (*Config, error) {
	t.Helper()
	return Load(filepath.Join("testdata", filename))
}

func TestNewDefault(t *testing.T) {
	c := NewDefault()
	if !c.PrimeConnectors {
		t.Errorf("prime connectors should be enabled by default")
	}
	if c.TransitiveConnectors {
		t.Errorf("transitive connectors should be disabled by default")
	}
	if c.LogLevel != int(InfoLevel) {
		t.Errorf("default log level should be %d, got %d", InfoLevel, c.LogLevel)
	}
	if c.ExceedsMaxRegions(1000) {
		t.Errorf("default config should never trigger summarization")
	}
}

func TestLoadFullConfig(t *testing.T) {
	c, err := loadFromTestDir(t, "config-full.yaml")
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	if c.PrimeConnectors {
		t.Errorf("expected prime-connectors: false")
	}
	if !c.TransitiveConnectors || !c.CheckInvariants || !c.StrictMalloc {
		t.Errorf("expected transitive-connectors, check-invariants and strict-malloc to be set, got %+v", c.Options)
	}
	if c.MaxRegions != 4 {
		t.Errorf("expected max-regions 4, got %d", c.MaxRegions)
	}
	if !c.ExceedsMaxRegions(5) || c.ExceedsMaxRegions(4) {
		t.Errorf("ExceedsMaxRegions is inconsistent with max-regions 4")
	}
	if !c.Verbose() {
		t.Errorf("log-level 5 should be verbose")
	}
	if len(c.ScenarioDirs) != 1 || c.ScenarioDirs[0] != "scenarios" {
		t.Errorf("unexpected scenario dirs %v", c.ScenarioDirs)
	}
}

func TestLoadPartialConfigKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte("max-regions: 2\n"))
	if err != nil {
		t.Fatalf("could not parse config: %v", err)
	}
	if !c.PrimeConnectors {
		t.Errorf("prime-connectors should keep its default value")
	}
	if c.LogLevel != int(InfoLevel) {
		t.Errorf("log-level should keep its default value")
	}
}

func TestParseRejectsBadLogLevel(t *testing.T) {
	if _, err := Parse([]byte("log-level: 9\n")); err == nil {
		t.Errorf("log-level 9 should be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := loadFromTestDir(t, "does-not-exist.yaml"); err == nil {
		t.Errorf("loading a missing file should fail")
	}
}

func TestFindScenario(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "scenarios"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scenarios", "list.yaml"), []byte("steps: []\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfgFile := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgFile, []byte("scenario-dirs: [scenarios]\n"), 0600); err != nil {
		t.Fatal(err)
	}
	c, err := Load(cfgFile)
	if err != nil {
		t.Fatalf("could not load config: %v", err)
	}
	p, err := c.FindScenario("list.yaml")
	if err != nil {
		t.Fatalf("scenario not found: %v", err)
	}
	if !strings.HasSuffix(p, filepath.Join("scenarios", "list.yaml")) {
		t.Errorf("unexpected scenario path %s", p)
	}
	if _, err := c.FindScenario("other.yaml"); err == nil {
		t.Errorf("missing scenario should not be found")
	}
}

func TestLogGroupLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogGroupAt(InfoLevel, &buf)
	l.SetAllFlags(0)
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Errorf("error %d", 3)
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message printed at info level: %q", out)
	}
	if !strings.Contains(out, "[INFO] shown 2") || !strings.Contains(out, "[ERROR] error 3") {
		t.Errorf("missing messages or prefixes: %q", out)
	}
}

func TestDiscardPrintsNothing(t *testing.T) {
	var buf bytes.Buffer
	l := Discard()
	l.SetAllOutput(&buf)
	l.Errorf("nothing")
	if buf.Len() != 0 {
		t.Errorf("discarding log group printed %q", buf.String())
	}
}
