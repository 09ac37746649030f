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
	"fmt"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
)

// MakeCompatible rewrites two segments and their child states such that they have the same regions, connectors and
// known regions. It must be called before joining, widening or meeting the child states. The operation is
// idempotent: making the result compatible with itself changes nothing.
func (s *Segment[D]) MakeCompatible(other *Segment[D], state, otherState D) (CompatibleState[D], error) {
	w := compatWorker[D]{first: newBuilder(s, state), second: newBuilder(other, otherState)}
	w.movePartitionsToCompatiblePosition()
	w.makeRegionsCompatible()
	w.makeConnectorsCompatible()
	w.makeKnownRegionsCompatible()
	first := w.first.Build()
	second := w.second.Build()
	if s.env.Options.CheckInvariants && !first.Segment.SameShape(second.Segment) {
		return CompatibleState[D]{}, fmt.Errorf("segments still differ after being made compatible:\n%s\n%s",
			first.Segment, second.Segment)
	}
	return CompatibleState[D]{Segment: first.Segment, State: first.State, OtherState: second.State}, nil
}

type compatWorker[D absint.MemoryDomain[D]] struct {
	first  *Builder[D]
	second *Builder[D]
}

// movePartitionsToCompatiblePosition renames the regions of second that are alone in their partition to the region
// of first that is pointed to by the same roots, if that region does not exist in second.
func (w *compatWorker[D]) movePartitionsToCompatiblePosition() {
	firstP := Partition(w.first.table, w.first.nonHeapRegions(), w.first.child)
	secondP := Partition(w.second.table, w.second.nonHeapRegions(), w.second.child)
	var taken absint.MemVarSet
	for _, class := range secondP.Classes() {
		if class.Len() != 1 {
			continue
		}
		from, _ := class.Min()
		if w.first.table.ContainsContent(from) {
			continue
		}
		roots, _ := secondP.RootsOf(from)
		for _, name := range firstP.Regions() {
			firstRoots, _ := firstP.RootsOf(name)
			if taken.Contains(name) || secondP.Contains(name) || !firstRoots.Equal(roots) {
				continue
			}
			fromRegion := w.second.region(from)
			toRegion := w.first.region(name)
			w.second.RenameRegion(fromRegion.Content, fromRegion.Address, toRegion.Content, toRegion.Address)
			taken = taken.Insert(name)
			break
		}
	}
}

func (w *compatWorker[D]) makeRegionsCompatible() {
	split := w.first.table.Split(w.second.table)
	for _, r := range split.OnlyInFirst {
		addDummyRegion(w.second, r, w.first.child)
	}
	for _, r := range split.OnlyInSecond {
		addDummyRegion(w.first, r, w.second.child)
	}
	for _, r := range split.InBothButDiffering {
		o, _ := w.second.table.Get(r.Address)
		if o.Content != r.Content {
			w.second.RenameRegion(o.Content, o.Address, r.Content, r.Address)
			o = o.WithContent(r.Content)
		}
		merged := r.WithSummaryFlag(r.IsSummary || o.IsSummary)
		merged.Size = r.Size.Join(o.Size)
		w.first.bindRegion(merged)
		w.second.bindRegion(merged)
	}
}

// addDummyRegion adds the region r of the state other to b, with the contents r has in other
func addDummyRegion[D absint.MemoryDomain[D]](b *Builder[D], r Region, other D) {
	b.env.Log.Debugf("add dummy region %s", r)
	b.child = b.child.Introduce(r.Address).CopyAndPaste(r.ChildSupportSet(), other)
	b.bindRegion(r)
}

func (w *compatWorker[D]) makeConnectorsCompatible() {
	split := w.first.conns.Split(w.second.conns)
	for _, c := range split.OnlyInFirst {
		copyAndPasteConnector(w.second, c, w.first.child)
	}
	for _, c := range split.OnlyInSecond {
		copyAndPasteConnector(w.first, c, w.second.child)
	}
	for _, c := range split.InBothButDiffering {
		o, _ := w.second.conns.Get(c.ID)
		if o.Src != c.Data.Src {
			w.second.child = w.second.child.SubstituteRegion(o.Src, c.Data.Src)
		}
		if o.Tgt != c.Data.Tgt {
			w.second.child = w.second.child.SubstituteRegion(o.Tgt, c.Data.Tgt)
		}
		if c.Data.Transitive != o.Transitive {
			c.Data.Transitive = true
			w.first.conns = w.first.conns.Put(c.ID, c.Data)
		}
		w.second.conns = w.second.conns.Put(c.ID, c.Data)
	}
}

func copyAndPasteConnector[D absint.MemoryDomain[D]](b *Builder[D], c Connector, other D) {
	b.child = b.child.CopyAndPaste(c.Data.ChildSupportSet(), other)
	b.bindConnector(c.ID, c.Data)
}

func (w *compatWorker[D]) makeKnownRegionsCompatible() {
	known := w.first.known.Union(w.second.known)
	w.first.known = known
	w.second.known = known
}
