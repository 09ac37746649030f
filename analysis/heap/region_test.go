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

package heap

import (
	"testing"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
	"github.com/google/go-cmp/cmp"
)

// idComparers lets go-cmp compare identifiers, which have unexported fields
var idComparers = cmp.Options{
	cmp.Comparer(func(a, b absint.MemVar) bool { return a == b }),
	cmp.Comparer(func(a, b absint.AddrVar) bool { return a == b }),
}

func freshRegion(name string, size int64) Region {
	return NewRegion(absint.NewAddress(name), absint.NewMemVar(name), KnownSize(size))
}

func TestRegionTableBijection(t *testing.T) {
	r1, r2 := freshRegion("r1", 4), freshRegion("r2", 8)
	table := EmptyRegionTable().Bind(r1).Bind(r2)
	if err := table.CheckBijection(); err != nil {
		t.Fatalf("table should be a bijection: %v", err)
	}
	if got, ok := table.GetByContent(r2.Content); !ok || got != r2 {
		t.Errorf("lookup by content returned %v, %v", got, ok)
	}

	// rebinding the content of r1 at another address drops the old binding
	moved := r1.WithAddress(absint.NewAddress("elsewhere"))
	table2 := table.Bind(moved)
	if table2.ContainsAddress(r1.Address) {
		t.Errorf("old address of r1 should be unbound")
	}
	if table2.Len() != 2 {
		t.Errorf("expected 2 regions, got %d", table2.Len())
	}
	if err := table2.CheckBijection(); err != nil {
		t.Errorf("rebinding broke the bijection: %v", err)
	}

	// persistent: the first table is unchanged
	if !table.ContainsAddress(r1.Address) {
		t.Errorf("binding modified the original table")
	}

	table3 := table2.Remove(r2.Address)
	if table3.ContainsContent(r2.Content) || table3.Len() != 1 {
		t.Errorf("removal did not remove both bindings")
	}
	if err := table3.CheckBijection(); err != nil {
		t.Errorf("removal broke the bijection: %v", err)
	}
}

func TestRegionTableSplit(t *testing.T) {
	shared, changed := freshRegion("shared", 4), freshRegion("changed", 4)
	onlyFirst, onlySecond := freshRegion("first", 4), freshRegion("second", 4)
	first := EmptyRegionTable().Bind(shared).Bind(changed).Bind(onlyFirst)
	second := EmptyRegionTable().Bind(shared).Bind(changed.WithSummaryFlag(true)).Bind(onlySecond)

	split := first.Split(second)
	want := RegionSplit{
		OnlyInFirst:        []Region{onlyFirst},
		InBothButDiffering: []Region{changed},
		OnlyInSecond:       []Region{onlySecond},
	}
	if diff := cmp.Diff(want, split, idComparers); diff != "" {
		t.Errorf("unexpected split (-want +got):\n%s", diff)
	}
}

func TestSizeJoin(t *testing.T) {
	if KnownSize(4).Join(KnownSize(4)) != KnownSize(4) {
		t.Errorf("equal sizes should join to themselves")
	}
	if KnownSize(4).Join(KnownSize(8)).Known {
		t.Errorf("different sizes should join to an unknown size")
	}
}
