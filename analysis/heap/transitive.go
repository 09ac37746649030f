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
	"sort"
	"strconv"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
	"github.com/awslabs/ar-heap-tools/internal/graphutil"
)

// Transitive connectors are experimental. They are only created when the transitive-connectors option is set.
//
// A transitive connector composes two connectors a --p--> b and b --q--> c into a --p--> c. Its shadows are copies of
// the source shadow of the first connector and of the target shadow of the second. Only one composition step is
// supported: composing a connector that is itself transitive is unsupported.

// closureOrder returns the regions of area ordered by strongly connected component of the connector graph
func (b *Builder[D]) closureOrder(area absint.MemVarSet) []absint.MemVar {
	g := graphutil.NewRegionGraph()
	regions := map[int64]absint.MemVar{}
	for _, r := range area.Items() {
		regions[g.AddNode(memVarKey(r), r.String())] = r
	}
	for _, c := range b.conns.All() {
		if area.Contains(c.ID.Src) && area.Contains(c.ID.Tgt) {
			g.AddEdge(g.NodeID(memVarKey(c.ID.Src)), g.NodeID(memVarKey(c.ID.Tgt)), c.ID.Path.String())
		}
	}
	var order []absint.MemVar
	for _, component := range g.StrongComponents() {
		members := make([]absint.MemVar, 0, len(component))
		for _, id := range component {
			members = append(members, regions[id])
		}
		sort.Slice(members, func(i, j int) bool { return members[i].Compare(members[j]) < 0 })
		order = append(order, members...)
	}
	return order
}

func memVarKey(m absint.MemVar) string {
	return strconv.FormatInt(m.ID(), 10)
}

// createTransitiveConnectorClosure composes the connectors going through each region of area
func (b *Builder[D]) createTransitiveConnectorClosure(area absint.MemVarSet) error {
	for _, region := range b.closureOrder(area) {
		firsts := b.conns.GoingTo(region)
		seconds := b.conns.ComingFrom(region)
		for _, snd := range seconds {
			for _, fst := range firsts {
				if !area.Contains(snd.ID.Tgt) && !area.Contains(fst.ID.Src) {
					continue
				}
				if fst.ID.Src == region && snd.ID.Tgt == region {
					continue
				}
				if err := b.makeTransitiveConnector(fst, snd); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *Builder[D]) makeTransitiveConnector(first, second Connector) error {
	if first.Data.Transitive || second.Data.Transitive {
		return absint.Unimplemented("composition of transitive connectors %s and %s", first.ID, second.ID)
	}
	switch {
	case first.ID.IsSelfLoop() && !second.ID.IsSelfLoop():
		b.foldConnectorData(second.Data, b.composeData(first.Data, second.Data))
	case !first.ID.IsSelfLoop() && second.ID.IsSelfLoop():
		b.foldConnectorData(first.Data, b.composeData(first.Data, second.Data))
	case first.ID.Src != second.ID.Src && first.ID.Tgt != second.ID.Tgt:
		data := b.composeData(first.Data, second.Data)
		id := ConnectorID{Src: first.ID.Src, Path: first.ID.Path.Plus(second.ID.Path), Tgt: second.ID.Tgt}
		if existing, ok := b.conns.Get(id); ok {
			b.foldConnectorData(existing, data)
		} else {
			b.env.Log.Debugf("transitive connector %s", id)
			b.bindConnector(id, data)
		}
	default:
		return absint.Unimplemented("composition of connectors %s and %s", first.ID, second.ID)
	}
	return nil
}

func (b *Builder[D]) composeData(first, second ConnectorData) ConnectorData {
	return ConnectorData{Src: b.copyRegion(first.Src), Tgt: b.copyRegion(second.Tgt), Transitive: true}
}

// foldConnectorData folds the shadows of eph into those of perm
func (b *Builder[D]) foldConnectorData(perm, eph ConnectorData) {
	b.child = b.child.FoldNG([]absint.MemVarPair{
		{First: perm.Src, Second: eph.Src},
		{First: perm.Tgt, Second: eph.Tgt},
	})
}

// applyTransitiveConnectors specializes the connectors that compose with the single step edge id, which is known to
// exist. An unreachable specialization is ignored.
func (b *Builder[D]) applyTransitiveConnectors(id ConnectorID) error {
	for _, sc := range b.conns.All() {
		if !sc.ID.SpansFromPath(id.Src, id.Path) || sc.ID.IsSelfLoop() {
			continue
		}
		for _, tc := range b.conns.All() {
			if !tc.ID.SpansFrom(id.Tgt) || !tc.ID.SpansTo(sc.ID.Tgt) {
				continue
			}
			b.env.Log.Debugf("specialize connector %s with %s", tc.ID, sc.ID)
			err := b.specializeConnector(id, sc, tc)
			if err != nil && !absint.IsUnreachable(err) {
				return err
			}
		}
	}
	return nil
}

// specializeConnector replaces the shadows of tc by their contents in a state where the first step of sc is id
func (b *Builder[D]) specializeConnector(id ConnectorID, sc, tc Connector) error {
	cs, err := b.child.AssumeRegionsAreEqual(id.Src, sc.Data.Src)
	if err != nil {
		return err
	}
	cs, err = cs.AssumeRegionsAreEqual(tc.Data.Tgt, sc.Data.Tgt)
	if err != nil {
		return err
	}
	b.child = b.child.ProjectRegion(tc.Data.Src).ProjectRegion(tc.Data.Tgt).
		CopyAndPaste(tc.Data.ChildSupportSet(), cs)
	return nil
}
