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
	"github.com/awslabs/ar-heap-tools/analysis/config"
)

// A Builder transforms a segment and its child state together. It is created from a segment with newBuilder, mutated
// by the transformations and consumed by Build. Any use of a builder after Build panics.
type Builder[D absint.MemoryDomain[D]] struct {
	table RegionTable
	conns ConnectorStore
	known absint.MemVarSet
	child D
	env   *Env
	built bool
}

func newBuilder[D absint.MemoryDomain[D]](s *Segment[D], child D) *Builder[D] {
	return &Builder[D]{
		table: s.regions,
		conns: s.conns,
		known: s.known,
		child: child,
		env:   s.env,
	}
}

func (b *Builder[D]) live() {
	if b.built {
		panic("heap segment builder used after Build")
	}
}

// Build returns the segment and child state. If invariant checking is enabled, the segment is checked and Build
// panics when it is malformed.
func (b *Builder[D]) Build() SegmentWithState[D] {
	b.live()
	b.built = true
	seg := &Segment[D]{regions: b.table, conns: b.conns, known: b.known, env: b.env}
	if b.env.Options.CheckInvariants {
		if err := seg.ConnectorsAreSane(); err != nil {
			panic(fmt.Sprintf("malformed heap segment: %v\n%s", err, seg))
		}
	}
	if b.env.Log.Enabled(config.TraceLevel) {
		b.env.Log.Tracef("built segment:\n%s", seg.CompactString())
	}
	return SegmentWithState[D]{Segment: seg, State: b.child}
}

func (b *Builder[D]) region(content absint.MemVar) Region {
	r, ok := b.table.GetByContent(content)
	if !ok {
		panic(fmt.Sprintf("no heap region with contents %s", content))
	}
	return r
}

func (b *Builder[D]) nonHeapRegions() absint.MemVarSet {
	return b.known.Difference(b.table.Regions())
}

// bindRegion adds r to the table and to the known regions
func (b *Builder[D]) bindRegion(r Region) {
	b.table = b.table.Bind(r)
	b.known = b.known.Insert(r.Content)
}

// removeRegion removes r from the table and from the known regions
func (b *Builder[D]) removeRegion(r Region) {
	b.table = b.table.Remove(r.Address)
	b.known = b.known.Remove(r.Content)
}

func (b *Builder[D]) bindConnector(id ConnectorID, data ConnectorData) {
	b.conns = b.conns.Add(id, data)
}

// removeConnector removes the connector and its shadow contents from the child
func (b *Builder[D]) removeConnector(c Connector) {
	b.conns = b.conns.Remove(c.ID)
	b.child = b.child.ProjectRegion(c.Data.Src).ProjectRegion(c.Data.Tgt)
}

// copyRegion returns a fresh copy of the contents of region in the child
func (b *Builder[D]) copyRegion(region absint.MemVar) absint.MemVar {
	mv := absint.FreshMemVar()
	b.child = b.child.CopyMemRegion(region, mv)
	return mv
}

// SummarizeHeap folds every partition of the heap with more than one region into the oldest region of the
// partition. With prime connectors enabled, the pointer edges between known regions are first recorded as
// connectors so that the child keeps the facts relating both ends.
func (b *Builder[D]) SummarizeHeap() error {
	b.live()
	if b.env.Options.PrimeConnectors {
		b.createPrimeConnectors(b.known)
	}
	partitions := Partition(b.table, b.nonHeapRegions(), b.child)
	for _, class := range partitions.Classes() {
		if class.Len() < 2 {
			continue
		}
		if b.env.Options.TransitiveConnectors {
			if err := b.createTransitiveConnectorClosure(class); err != nil {
				return err
			}
		}
		b.foldPartition(class)
	}
	return nil
}

// createPrimeConnectors records a connector for each pointer from a region of area to a heap region of area
func (b *Builder[D]) createPrimeConnectors(area absint.MemVarSet) {
	for _, src := range area.Items() {
		for _, target := range b.child.FindPossiblePointerTargets(src) {
			tgt, ok := b.table.Get(target.Address)
			if !ok || !area.Contains(tgt.Content) {
				continue
			}
			id := ConnectorID{Src: src, Path: target.Path, Tgt: tgt.Content}
			if b.conns.Contains(id) {
				continue
			}
			data := ConnectorData{Src: b.copyRegion(src), Tgt: b.copyRegion(tgt.Content)}
			b.env.Log.Debugf("prime connector %s", id)
			b.bindConnector(id, data)
		}
	}
}

func (b *Builder[D]) foldPartition(class absint.MemVarSet) {
	perm, _ := class.Min()
	for _, eph := range class.Items() {
		if eph != perm {
			b.FoldRegions(b.region(perm), b.region(eph))
		}
	}
}

// FoldRegions merges the region eph into the region perm, which becomes a summary. Connectors between both regions
// become self-loops of perm, and connectors attached to eph are moved to perm, merging them with an existing
// connector when one with the same identifier is already present.
func (b *Builder[D]) FoldRegions(perm, eph Region) {
	b.live()
	b.env.Log.Debugf("fold %s into %s", eph, perm)
	p, e := perm.Content, eph.Content

	// generalize the facts of the edges attached to eph so that they also hold for perm
	var sContents, cContents, toSummary, toConcrete absint.MemVarSet
	sContents = sContents.Insert(p)
	cContents = cContents.Insert(e)
	for _, c := range b.conns.All() {
		if c.ID.SpansTo(p) {
			sContents = sContents.Insert(c.Data.Tgt)
			if !c.ID.SpansFrom(e) {
				toSummary = toSummary.Insert(c.Data.Src)
			}
		}
		if c.ID.SpansFrom(p) {
			sContents = sContents.Insert(c.Data.Src)
		}
		if c.ID.SpansTo(e) {
			cContents = cContents.Insert(c.Data.Tgt)
			if !c.ID.SpansFrom(p) {
				toConcrete = toConcrete.Insert(c.Data.Src)
			}
		}
		if c.ID.SpansFrom(e) {
			cContents = cContents.Insert(c.Data.Src)
		}
	}
	b.child = b.child.BendGhostEdgesNG(perm.Address, eph.Address, sContents, cContents, toSummary, toConcrete)

	// connectors between perm and eph become self-loops of their source
	var between []absint.MemVarPair
	for _, c := range b.conns.All() {
		if !c.ID.Spans(p, e) && !c.ID.Spans(e, p) {
			continue
		}
		to := ConnectorID{Src: c.ID.Src, Path: c.ID.Path, Tgt: c.ID.Src}
		between = b.foldOrBend(between, c, to)
	}
	b.child = b.child.FoldNG(between)

	// connectors attached to eph are moved to perm
	pairs := []absint.MemVarPair{{First: p, Second: e}}
	for _, c := range b.conns.All() {
		switch {
		case c.ID.Spans(e, e):
			pairs = b.foldOrBend(pairs, c, c.ID.Move(e, p))
		case c.ID.SpansTo(e):
			pairs = b.foldOrBend(pairs, c, c.ID.WithTgt(p))
		case c.ID.SpansFrom(e):
			pairs = b.foldOrBend(pairs, c, c.ID.WithSrc(p))
		}
	}
	b.child = b.child.FoldRegionsNG(perm.Address, eph.Address, pairs)
	b.removeRegion(eph)
	summary := perm.WithSummaryFlag(true)
	summary.Size = perm.Size.Join(eph.Size)
	b.bindRegion(summary)
}

// foldOrBend moves the connector c to the identifier to. If a connector is already bound at to, the shadow contents
// of c are scheduled to be folded into it and c is removed; otherwise c is rebound at to with fresh shadows.
func (b *Builder[D]) foldOrBend(pairs []absint.MemVarPair, c Connector, to ConnectorID) []absint.MemVarPair {
	if onto, ok := b.conns.Get(to); ok {
		b.conns = b.conns.Remove(c.ID)
		return append(pairs,
			absint.MemVarPair{First: onto.Src, Second: c.Data.Src},
			absint.MemVarPair{First: onto.Tgt, Second: c.Data.Tgt})
	}
	b.bendConnector(c, to)
	return pairs
}

// bendConnector rebinds c at to. The shadows are renamed to fresh handles to avoid collisions with handles of the
// other state when segments are later made compatible.
func (b *Builder[D]) bendConnector(c Connector, to ConnectorID) {
	data := c.Data
	data.Src, data.Tgt = absint.FreshMemVar(), absint.FreshMemVar()
	b.child = b.child.SubstituteRegion(c.Data.Src, data.Src).SubstituteRegion(c.Data.Tgt, data.Tgt)
	b.conns = b.conns.Remove(c.ID)
	b.bindConnector(to, data)
}

// RenameRegion renames the region with content from and address fromAddr to content to and address toAddr. The
// connectors attached to the region follow it.
func (b *Builder[D]) RenameRegion(from absint.MemVar, fromAddr absint.AddrVar, to absint.MemVar,
	toAddr absint.AddrVar) {
	b.live()
	b.env.Log.Debugf("rename %s@%s to %s@%s", from, fromAddr, to, toAddr)
	if r, ok := b.table.Get(fromAddr); ok {
		b.removeRegion(r)
		b.bindRegion(r.WithContent(to).WithAddress(toAddr))
	} else if b.known.Contains(from) {
		b.known = b.known.Remove(from).Insert(to)
	}
	for _, c := range b.conns.AttachedTo(from) {
		b.bendConnector(c, c.ID.Move(from, to))
	}
	b.child = b.child.SubstituteRegion(from, to).Substitute(fromAddr, toAddr)
}

// InformAboutAssign drops the connectors whose pointer field is overwritten by an assignment to the offsets of
// region to, and refreshes the shadow copies of region to held by the other connectors attached to it.
// from is the region the assigned value is read from, if any.
func (b *Builder[D]) InformAboutAssign(to absint.MemVar, offsets absint.Interval, from absint.MemVar) {
	b.live()
	for _, c := range b.conns.AttachedTo(to) {
		if c.ID.AttachedAt(to, offsets) {
			b.env.Log.Debugf("drop connector %s, field overwritten", c.ID)
			b.removeConnector(c)
			continue
		}
		data := c.Data
		if c.ID.SpansFrom(to) {
			b.child = b.child.ProjectRegion(data.Src)
			data.Src = b.copyRegion(to)
		}
		if c.ID.SpansTo(to) {
			b.child = b.child.ProjectRegion(data.Tgt)
			data.Tgt = b.copyRegion(to)
		}
		b.conns = b.conns.Put(c.ID, data)
	}
	b.known = b.known.Insert(to)
	if !from.IsZero() {
		b.known = b.known.Insert(from)
	}
}

// AddKnownRegions marks the regions as known to the segment
func (b *Builder[D]) AddKnownRegions(regions ...absint.MemVar) {
	b.live()
	b.known = b.known.Insert(regions...)
}

// RemoveRegion removes the heap region at addr, its connectors, and its contents from the child.
func (b *Builder[D]) RemoveRegion(addr absint.AddrVar) {
	b.live()
	r, ok := b.table.Get(addr)
	if !ok {
		return
	}
	for _, c := range b.conns.AttachedTo(r.Content) {
		b.removeConnector(c)
	}
	b.removeRegion(r)
	b.child = b.child.ProjectRegion(r.Content).Project(r.Address)
}

// BendConnectorsToSummary moves every connector attached to concrete onto summary, as if the connector had always
// pointed to the summary.
func (b *Builder[D]) BendConnectorsToSummary(concrete, summary Region) {
	b.live()
	var pairs []absint.MemVarPair
	for _, c := range b.conns.AttachedTo(concrete.Content) {
		pairs = b.foldOrBend(pairs, c, c.ID.Move(concrete.Content, summary.Content))
	}
	b.child = b.child.FoldNG(pairs)
}
