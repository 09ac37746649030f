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

package scenario

import (
	"github.com/awslabs/ar-heap-tools/analysis/absint"
	"github.com/awslabs/ar-heap-tools/analysis/config"
	"github.com/awslabs/ar-heap-tools/analysis/heap"
	"github.com/awslabs/ar-heap-tools/analysis/pointsto"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const defaultPointerSize = config.DefaultPointerSize

// State is one of the states of a running scenario
type State = heap.SegmentWithState[*pointsto.State]

// Runner executes scenarios. Registers keep their identity across the scenarios run by the same runner.
type Runner struct {
	env       *heap.Env
	registers map[string]absint.MemVar
	ptrSize   int
}

// NewRunner returns a runner whose segments use env
func NewRunner(env *heap.Env) *Runner {
	if env == nil {
		env = heap.DefaultEnv()
	}
	return &Runner{env: env, registers: map[string]absint.MemVar{}}
}

// Register returns the memory variable of the register name
func (r *Runner) Register(name string) absint.MemVar {
	if m, ok := r.registers[name]; ok {
		return m
	}
	m := absint.NewMemVar(name)
	r.registers[name] = m
	return m
}

func (r *Runner) field(region absint.MemVar, offset int64) absint.Field {
	return absint.Field{Region: region, Offset: offset, Size: r.ptrSize}
}

// Run executes the scenario from an empty heap and returns the final states. The result is empty if every path of
// the scenario is infeasible.
func (r *Runner) Run(s *Scenario) ([]State, error) {
	r.ptrSize = s.PointerSize
	if r.ptrSize <= 0 {
		r.ptrSize = defaultPointerSize
	}
	r.env.Log.Infof("running scenario %s", s.Name)
	initial := State{Segment: heap.NewSegment[*pointsto.State](r.env), State: pointsto.New()}
	return r.runSteps([]State{initial}, s.Steps)
}

func (r *Runner) runSteps(states []State, steps []Step) ([]State, error) {
	for i, step := range steps {
		var err error
		states, err = r.step(states, step)
		if err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", i+1, step)
		}
		r.env.Log.Debugf("step %d (%s): %d states", i+1, step, len(states))
		if r.env.Log.Enabled(config.TraceLevel) {
			for _, st := range states {
				r.env.Log.Tracef("%s%s", st.Segment.CompactString(), st.State)
			}
		}
	}
	return states, nil
}

func (r *Runner) step(states []State, step Step) ([]State, error) {
	switch step.Op {
	case OpJoin:
		branch, err := r.runSteps(states, step.Branch)
		if err != nil {
			return nil, errors.Wrap(err, "in branch")
		}
		return joinAll(append(append([]State{}, states...), branch...))
	case OpExpect:
		return states, r.check(states, *step.Expect)
	}
	var res []State
	for _, st := range states {
		next, err := r.exec(st, step)
		if err != nil {
			return nil, err
		}
		res = append(res, next...)
	}
	return res, nil
}

// exec runs the step in a single state
func (r *Runner) exec(st State, step Step) ([]State, error) {
	switch step.Op {
	case OpMalloc:
		size := absint.FieldValue(r.field(absint.FreshMemVar(), 0))
		if step.Size != nil {
			size = absint.ConstValue(*step.Size)
		}
		prim := absint.Prim{Name: "malloc", In: []absint.Value{size}, Out: []absint.Field{r.field(r.Register(step.Dst), 0)}}
		return r.primitive(st, prim)
	case OpFree:
		prim := absint.Prim{Name: "free", Out: []absint.Field{r.field(r.Register(step.Dst), 0)}}
		return r.primitive(st, prim)
	case OpFold:
		return r.primitive(st, absint.Prim{Name: "foldRegions"})
	case OpAssign:
		dst := r.Register(step.Dst)
		state := st.State.Store(r.field(dst, 0), r.operand(st.State, step))
		return []State{st.Segment.InformAboutAssign(state, dst, absint.Point(0), r.source(step))}, nil
	case OpStore:
		accesses, err := r.dereference(st, r.Register(step.Dst), step.Offset)
		if err != nil {
			return nil, err
		}
		return lo.Map(accesses, func(acc heap.RegionAccess[*pointsto.State], _ int) State {
			off := accessOffset(acc.Pointer)
			state := acc.Result.State.Store(r.field(acc.Pointer.Region, off), r.operand(acc.Result.State, step))
			return acc.Result.Segment.InformAboutAssign(state, acc.Pointer.Region, absint.Point(off), r.source(step))
		}), nil
	case OpLoad:
		accesses, err := r.dereference(st, r.Register(step.Src), step.Offset)
		if err != nil {
			return nil, err
		}
		dst := r.Register(step.Dst)
		return lo.Map(accesses, func(acc heap.RegionAccess[*pointsto.State], _ int) State {
			v := acc.Result.State.Load(r.field(acc.Pointer.Region, accessOffset(acc.Pointer)))
			state := acc.Result.State.Store(r.field(dst, 0), v)
			return acc.Result.Segment.InformAboutAssign(state, dst, absint.Point(0), acc.Pointer.Region)
		}), nil
	default:
		return nil, errors.Errorf("unexpected operation %q", step.Op)
	}
}

func (r *Runner) operand(state *pointsto.State, step Step) pointsto.Value {
	if step.Value != nil {
		return pointsto.Constant(*step.Value)
	}
	return state.Load(r.field(r.Register(step.Src), 0))
}

// source returns the register read by the step, or the zero MemVar if it writes a constant
func (r *Runner) source(step Step) absint.MemVar {
	if step.Value != nil || step.Src == "" {
		return absint.MemVar{}
	}
	return r.Register(step.Src)
}

func (r *Runner) primitive(st State, prim absint.Prim) ([]State, error) {
	res, ok, err := st.Segment.TryPrimitive(prim, st.State)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("primitive %s is not handled by the heap", prim)
	}
	return []State{res}, nil
}

// dereference resolves the pointer in register reg, plus offset, in every heap region it may point to
func (r *Runner) dereference(st State, reg absint.MemVar, offset int64) ([]heap.RegionAccess[*pointsto.State], error) {
	field := r.field(reg, 0)
	targets := st.State.Load(field).Targets
	if targets.IsEmpty() {
		return nil, errors.Errorf("%s does not hold a pointer", reg)
	}
	var res []heap.RegionAccess[*pointsto.State]
	for _, addr := range targets.Items() {
		ptr := absint.Pointer{Address: addr, Offset: absint.Const(offset)}
		accesses, ok, err := st.Segment.Dereference(field, ptr, st.State)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.Errorf("%s may point to %s, which is not a heap region", reg, addr)
		}
		res = append(res, accesses...)
	}
	return res, nil
}

// accessOffset returns the offset of the access in its region. The address terms of a pointer rebased from a
// summary to its concrete copy denote the same address in the state of the access.
func accessOffset(p absint.MemPointer) int64 {
	return p.Offset.Const
}

// joinAll makes the states compatible pairwise and joins them into one state
func joinAll(states []State) ([]State, error) {
	if len(states) == 0 {
		return nil, nil
	}
	res := states[0]
	for _, st := range states[1:] {
		compat, err := res.Segment.MakeCompatible(st.Segment, res.State, st.State)
		if err != nil {
			return nil, errors.Wrap(err, "join")
		}
		res = State{Segment: compat.Segment, State: compat.State.Join(compat.OtherState)}
	}
	return []State{res}, nil
}

func (r *Runner) check(states []State, exp Expect) error {
	if exp.States != nil && len(states) != *exp.States {
		return errors.Errorf("expected %d states, got %d", *exp.States, len(states))
	}
	for i, st := range states {
		regions := st.Segment.Regions()
		summaries := lo.CountBy(regions, func(r heap.Region) bool { return r.IsSummary })
		counts := []struct {
			what     string
			expected *int
			actual   int
		}{
			{"regions", exp.Regions, len(regions)},
			{"summaries", exp.Summaries, summaries},
			{"connectors", exp.Connectors, len(st.Segment.Connectors())},
		}
		for _, c := range counts {
			if c.expected != nil && *c.expected != c.actual {
				return errors.Errorf("expected %d %s in state %d, got %d:\n%s", *c.expected, c.what, i, c.actual,
					st.Segment)
			}
		}
		for reg, n := range exp.PointsTo {
			targets := st.State.Load(r.field(r.Register(reg), 0)).Targets
			if targets.Len() != n {
				return errors.Errorf("expected %s to point to %d regions in state %d, got %s", reg, n, i, targets)
			}
		}
	}
	return nil
}
