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

package absint

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func names(s MemVarSet) []string {
	var res []string
	for _, m := range s.Items() {
		res = append(res, m.String())
	}
	return res
}

func TestSetOperations(t *testing.T) {
	a, b, c := NewMemVar("a"), NewMemVar("b"), NewMemVar("c")
	ab := MemVars(b, a)
	bc := MemVars(c, b)

	tests := []struct {
		name string
		got  MemVarSet
		want []string
	}{
		{"items are ordered", ab, []string{"a", "b"}},
		{"union", ab.Union(bc), []string{"a", "b", "c"}},
		{"intersection", ab.Intersect(bc), []string{"b"}},
		{"difference", ab.Difference(bc), []string{"a"}},
		{"remove", ab.Remove(a), []string{"b"}},
		{"insert twice", ab.Insert(a, c), []string{"a", "b", "c"}},
	}
	for _, test := range tests {
		if diff := cmp.Diff(test.want, names(test.got)); diff != "" {
			t.Errorf("%s (-want +got):\n%s", test.name, diff)
		}
	}

	var zero MemVarSet
	if !zero.IsEmpty() || zero.Contains(a) || !zero.SubsetOf(ab) {
		t.Errorf("zero set should be empty")
	}
	if _, ok := zero.Min(); ok {
		t.Errorf("empty set has no minimum")
	}
	if m, _ := bc.Min(); m != b {
		t.Errorf("expected b as the minimum of %s, got %s", bc, m)
	}
	if ab.Equal(bc) || !ab.Equal(MemVars(a, b)) {
		t.Errorf("set equality is wrong")
	}
	if abc := ab.Insert(c); !abc.Contains(c) || ab.Contains(c) {
		t.Errorf("sets should be persistent")
	}
}

func TestFreshIdentifiersAreDistinct(t *testing.T) {
	seen := map[MemVar]bool{}
	for i := 0; i < 100; i++ {
		m := FreshMemVar()
		if seen[m] {
			t.Fatalf("%s returned twice", m)
		}
		seen[m] = true
	}
	a, b := NewAddress("x"), NewAddress("x")
	if a == b || a.Compare(b) >= 0 {
		t.Errorf("addresses with the same name should be distinct and ordered by creation")
	}
}

func TestLinear(t *testing.T) {
	s, c := NewAddress("s"), NewAddress("c")
	l := Const(4).AddVar(s).SubVar(c)
	if _, ok := l.IsConstant(); ok {
		t.Errorf("%s is not constant", l)
	}
	if got := l.String(); got != "&s - &c + 4" {
		t.Errorf("unexpected string %q", got)
	}
	back := l.AddVar(c).SubVar(s)
	if v, ok := back.IsConstant(); !ok || v != 4 {
		t.Errorf("terms should cancel, got %s", back)
	}
	if !back.Equal(Const(4)) {
		t.Errorf("%s should equal 4", back)
	}
	if d := l.Sub(l); !d.Equal(Const(0)) {
		t.Errorf("l - l should be 0, got %s", d)
	}
}

func TestPathAndInterval(t *testing.T) {
	p := Path(8)
	if !p.Is(Point(8)) || p.Is(Point(0)) || !p.Is(Top) {
		t.Errorf("path membership is wrong")
	}
	if p.Plus(Path(4)) != p {
		t.Errorf("composition should keep the first step")
	}
	if Path(4).Compare(p) >= 0 {
		t.Errorf("paths should be ordered by offset")
	}
	if Top.String() != "⊤" || (Interval{Lo: 0, Hi: 3}).String() != "[0, 3]" || Point(2).String() != "2" {
		t.Errorf("unexpected interval strings")
	}
}

func TestOutcomes(t *testing.T) {
	unsupported := Unimplemented("free(%s)", "p")
	unreachable := Unreachablef("p cannot point to %s", "r")

	if !IsUnsupported(fmt.Errorf("wrapped: %w", unsupported)) || IsUnsupported(unreachable) {
		t.Errorf("IsUnsupported is wrong")
	}
	if !IsUnreachable(unreachable) || IsUnreachable(unsupported) || IsUnreachable(nil) {
		t.Errorf("IsUnreachable is wrong")
	}
	if Failed[int](unreachable).Kind() != KindInfeasible {
		t.Errorf("an unreachable failure should be infeasible")
	}

	values, err := Collect(Feasible(1), Lift(0, unreachable), Lift(2, nil))
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if diff := cmp.Diff([]int{1, 2}, values); diff != "" {
		t.Errorf("unexpected values (-want +got):\n%s", diff)
	}

	_, err = Collect(Feasible(1), Failed[int](unsupported), Infeasible[int]())
	if !IsUnsupported(err) {
		t.Errorf("expected the unsupported error, got %v", err)
	}
	if v, ok := Lift(3, nil).Get(); !ok || v != 3 {
		t.Errorf("expected a feasible 3")
	}
}
