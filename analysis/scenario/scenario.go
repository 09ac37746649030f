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

// Package scenario runs small heap programs against a heap segment over the points-to domain.
//
// A scenario is a YAML file listing steps. Registers are named by strings and created on first use; heap regions
// only exist through the pointers stored in registers and in other regions:
//
//	name: list
//	steps:
//	  - {op: malloc, dst: p, size: 8}
//	  - {op: malloc, dst: q, size: 8}
//	  - {op: store, dst: q, offset: 0, src: p}  # *(q+0) = p
//	  - {op: fold}
//	  - {op: expect, expect: {regions: 1, summaries: 1}}
//
// The interpreter keeps a disjunction of states: a dereference of a summary region may fork the state.
package scenario

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Op is the operation of a step
type Op string

// The operations of a scenario
const (
	// OpMalloc allocates size bytes and stores the address in the register dst. Without a size, the size is unknown.
	OpMalloc Op = "malloc"
	// OpAssign copies the register src, or the constant value, to the register dst
	OpAssign Op = "assign"
	// OpStore writes the register src, or the constant value, at offset of the region pointed to by dst
	OpStore Op = "store"
	// OpLoad reads offset of the region pointed to by src into the register dst
	OpLoad Op = "load"
	// OpFold summarizes the heap
	OpFold Op = "fold"
	// OpFree frees the region pointed to by dst
	OpFree Op = "free"
	// OpJoin runs branch from the current states and joins the result with the current states
	OpJoin Op = "join"
	// OpExpect checks the current states
	OpExpect Op = "expect"
)

// Scenario is a heap program
type Scenario struct {
	Name string `yaml:"name"`

	// PointerSize is the size of pointers in bits
	PointerSize int `yaml:"pointer-size"`

	Steps []Step `yaml:"steps"`
}

// Step is one operation of a scenario. Which fields are used depends on the operation.
type Step struct {
	Op     Op      `yaml:"op"`
	Dst    string  `yaml:"dst"`
	Src    string  `yaml:"src"`
	Offset int64   `yaml:"offset"`
	Size   *int64  `yaml:"size"`
	Value  *int64  `yaml:"value"`
	Branch []Step  `yaml:"branch"`
	Expect *Expect `yaml:"expect"`
}

func (s Step) String() string {
	switch s.Op {
	case OpMalloc:
		if s.Size == nil {
			return fmt.Sprintf("%s = malloc(?)", s.Dst)
		}
		return fmt.Sprintf("%s = malloc(%d)", s.Dst, *s.Size)
	case OpAssign:
		return fmt.Sprintf("%s = %s", s.Dst, s.operand())
	case OpStore:
		return fmt.Sprintf("*(%s%+d) = %s", s.Dst, s.Offset, s.operand())
	case OpLoad:
		return fmt.Sprintf("%s = *(%s%+d)", s.Dst, s.Src, s.Offset)
	case OpFree:
		return fmt.Sprintf("free(%s)", s.Dst)
	case OpJoin:
		return fmt.Sprintf("join(%d steps)", len(s.Branch))
	default:
		return string(s.Op)
	}
}

func (s Step) operand() string {
	if s.Value != nil {
		return fmt.Sprintf("%d", *s.Value)
	}
	return s.Src
}

// Expect lists the properties that every current state must have. Absent properties are not checked.
type Expect struct {
	// States is the number of states
	States *int `yaml:"states"`

	// Regions is the number of heap regions
	Regions *int `yaml:"regions"`

	// Summaries is the number of summary regions
	Summaries *int `yaml:"summaries"`

	// Connectors is the number of connectors
	Connectors *int `yaml:"connectors"`

	// PointsTo maps registers to their number of possible targets
	PointsTo map[string]int `yaml:"points-to"`
}

// Load reads a scenario from a file
func Load(filename string) (*Scenario, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read scenario file: %w", err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("could not load scenario %s: %w", filename, err)
	}
	return s, nil
}

// Parse reads a scenario from the contents of a yaml file, and checks that its steps are well-formed
func Parse(b []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	s := &Scenario{}
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("could not unmarshal scenario: %w", err)
	}
	if s.PointerSize <= 0 {
		s.PointerSize = defaultPointerSize
	}
	if err := validate(s.Steps); err != nil {
		return nil, err
	}
	return s, nil
}

func validate(steps []Step) error {
	for i, step := range steps {
		var err error
		switch step.Op {
		case OpMalloc, OpFree:
			err = need(step.Dst != "", "dst")
		case OpAssign, OpStore:
			err = need(step.Dst != "", "dst")
			if err == nil {
				err = need(step.Src != "" || step.Value != nil, "src or value")
			}
		case OpLoad:
			err = need(step.Dst != "" && step.Src != "", "dst and src")
		case OpFold:
		case OpJoin:
			err = validate(step.Branch)
		case OpExpect:
			err = need(step.Expect != nil, "expect")
		default:
			err = fmt.Errorf("unknown operation %q", step.Op)
		}
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func need(ok bool, what string) error {
	if !ok {
		return fmt.Errorf("missing %s", what)
	}
	return nil
}
