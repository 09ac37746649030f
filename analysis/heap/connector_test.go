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

func shadows() ConnectorData {
	return ConnectorData{Src: absint.FreshMemVar(), Tgt: absint.FreshMemVar()}
}

func TestConnectorQueries(t *testing.T) {
	a, b, c := absint.NewMemVar("a"), absint.NewMemVar("b"), absint.NewMemVar("c")
	ab := ConnectorID{Src: a, Path: absint.Path(0), Tgt: b}
	bc := ConnectorID{Src: b, Path: absint.Path(4), Tgt: c}
	bb := ConnectorID{Src: b, Path: absint.Path(8), Tgt: b}
	store := EmptyConnectorStore().Add(ab, shadows()).Add(bc, shadows()).Add(bb, shadows())

	ids := func(cs []Connector) []ConnectorID {
		var res []ConnectorID
		for _, c := range cs {
			res = append(res, c.ID)
		}
		return res
	}
	if diff := cmp.Diff([]ConnectorID{bb, bc}, ids(store.ComingFrom(b)), idComparers); diff != "" {
		t.Errorf("connectors coming from b (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ConnectorID{ab, bb}, ids(store.GoingTo(b)), idComparers); diff != "" {
		t.Errorf("connectors going to b (-want +got):\n%s", diff)
	}
	if n := len(store.AttachedTo(b)); n != 3 {
		t.Errorf("expected 3 connectors attached to b, got %d", n)
	}
	if !bb.IsSelfLoop() || ab.IsSelfLoop() {
		t.Errorf("self-loop detection is wrong")
	}
	if !bc.AttachedAt(b, absint.Point(4)) || bc.AttachedAt(b, absint.Point(0)) || bc.AttachedAt(c, absint.Top) {
		t.Errorf("AttachedAt is wrong for %s", bc)
	}
	if got := bb.Move(b, a); got.Src != a || got.Tgt != a {
		t.Errorf("moving a self-loop should move both ends, got %s", got)
	}
	if store.ChildSupportSet().Len() != 6 {
		t.Errorf("expected 6 shadow handles, got %s", store.ChildSupportSet())
	}
}

func TestConnectorStoreIsPersistent(t *testing.T) {
	a, b := absint.NewMemVar("a"), absint.NewMemVar("b")
	id := ConnectorID{Src: a, Path: absint.Path(0), Tgt: b}
	s1 := EmptyConnectorStore().Add(id, shadows())
	s2 := s1.Remove(id)
	if !s1.Contains(id) || s2.Contains(id) {
		t.Errorf("remove should not modify the original store")
	}
	var zero ConnectorStore
	if zero.Len() != 0 || zero.Contains(id) || len(zero.All()) != 0 {
		t.Errorf("zero store should be empty")
	}
}

func TestConnectorStoreAddTwicePanics(t *testing.T) {
	a, b := absint.NewMemVar("a"), absint.NewMemVar("b")
	id := ConnectorID{Src: a, Path: absint.Path(0), Tgt: b}
	s := EmptyConnectorStore().Add(id, shadows())
	defer func() {
		if recover() == nil {
			t.Errorf("binding a connector twice should panic")
		}
	}()
	s.Add(id, shadows())
}

func TestConnectorStoreSplit(t *testing.T) {
	a, b := absint.NewMemVar("a"), absint.NewMemVar("b")
	same := ConnectorID{Src: a, Path: absint.Path(0), Tgt: b}
	differing := ConnectorID{Src: a, Path: absint.Path(4), Tgt: b}
	onlyFirst := ConnectorID{Src: b, Path: absint.Path(0), Tgt: a}
	onlySecond := ConnectorID{Src: b, Path: absint.Path(4), Tgt: b}
	d := shadows()
	first := EmptyConnectorStore().Add(same, d).Add(differing, shadows()).Add(onlyFirst, shadows())
	second := EmptyConnectorStore().Add(same, d).Add(differing, shadows()).Add(onlySecond, shadows())

	split := first.Split(second)
	if len(split.OnlyInFirst) != 1 || split.OnlyInFirst[0].ID != onlyFirst {
		t.Errorf("unexpected only-in-first %v", split.OnlyInFirst)
	}
	if len(split.InBothButDiffering) != 1 || split.InBothButDiffering[0].ID != differing {
		t.Errorf("unexpected differing %v", split.InBothButDiffering)
	}
	if len(split.OnlyInSecond) != 1 || split.OnlyInSecond[0].ID != onlySecond {
		t.Errorf("unexpected only-in-second %v", split.OnlyInSecond)
	}
}
