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
	"github.com/awslabs/ar-heap-tools/analysis/absint"
)

// Expand materializes a concrete copy of the summary region. The copy gets a fresh address and content handle, and
// a copy of every connector attached to the summary. The returned region is not a summary, but still has the ghost
// edges of the summary: both regions are symmetrical until the edges are bent back or disconnected.
func (b *Builder[D]) Expand(summary Region) Region {
	b.live()
	concrete := NewRegion(absint.FreshAddress(), absint.FreshMemVar(), summary.Size)
	b.env.Log.Debugf("expand %s into %s", summary, concrete)
	b.bindRegion(concrete)
	s, c := summary.Content, concrete.Content
	pairs := []absint.MemVarPair{{First: s, Second: c}}
	for _, conn := range b.conns.All() {
		switch {
		case conn.ID.Spans(s, s):
			pairs = b.expandConnector(pairs, conn.ID.Move(s, c), conn.Data)
		case conn.ID.SpansTo(s):
			pairs = b.expandConnector(pairs, conn.ID.WithTgt(c), conn.Data)
		case conn.ID.SpansFrom(s):
			pairs = b.expandConnector(pairs, conn.ID.WithSrc(c), conn.Data)
		}
	}
	b.child = b.child.ExpandRegionsNG(summary.Address, concrete.Address, pairs)
	return concrete
}

// expandConnector binds a copy of data at id, and schedules the copy of the shadows in the child
func (b *Builder[D]) expandConnector(pairs []absint.MemVarPair, id ConnectorID,
	data ConnectorData) []absint.MemVarPair {
	copied := ConnectorData{Src: absint.FreshMemVar(), Tgt: absint.FreshMemVar(), Transitive: data.Transitive}
	b.bindConnector(id, copied)
	return append(pairs,
		absint.MemVarPair{First: data.Src, Second: copied.Src},
		absint.MemVarPair{First: data.Tgt, Second: copied.Tgt})
}

// ExpandAndBendGhostEdges relates a summary and the concrete region materialized from it such that the concrete
// region is still reachable through the self-loops of the summary, and the summary through those of the concrete
// region.
func (b *Builder[D]) ExpandAndBendGhostEdges(summary, concrete Region) {
	b.live()
	s, c := summary.Content, concrete.Content
	var pairs []absint.MemVarPair
	for _, conn := range b.conns.All() {
		switch {
		case conn.ID.Spans(s, s):
			pairs = b.expandConnector(pairs, conn.ID.WithTgt(c), conn.Data)
		case conn.ID.Spans(c, c):
			pairs = b.expandConnector(pairs, conn.ID.WithTgt(s), conn.Data)
		}
	}
	sContents, cContents, toSummary, toConcrete := b.ghostEdgeContents(summary, concrete)
	b.child = b.child.ExpandNG(pairs)
	b.child = b.child.BendBackGhostEdgesNG(summary.Address, concrete.Address, sContents, cContents, toSummary,
		toConcrete)
}

func (b *Builder[D]) ghostEdgeContents(summary, concrete Region) (sContents, cContents, toSummary,
	toConcrete absint.MemVarSet) {
	s, c := summary.Content, concrete.Content
	sContents = sContents.Insert(s)
	cContents = cContents.Insert(c)
	for _, conn := range b.conns.All() {
		if conn.ID.SpansTo(s) {
			sContents = sContents.Insert(conn.Data.Tgt)
			if !conn.ID.SpansFrom(c) {
				toSummary = toSummary.Insert(conn.Data.Src)
			}
		}
		if conn.ID.SpansFrom(s) {
			sContents = sContents.Insert(conn.Data.Src)
		}
		if conn.ID.SpansTo(c) {
			cContents = cContents.Insert(conn.Data.Tgt)
			if !conn.ID.SpansFrom(s) {
				toConcrete = toConcrete.Insert(conn.Data.Src)
			}
		}
		if conn.ID.SpansFrom(c) {
			cContents = cContents.Insert(conn.Data.Src)
		}
	}
	return sContents, cContents, toSummary, toConcrete
}

// ConcretizeAndDisconnect commits the concrete region materialized from summary to denote a single object, and
// disconnects it from the summary.
func (b *Builder[D]) ConcretizeAndDisconnect(summary, concrete Region) error {
	b.live()
	nodes := absint.MemVars(concrete.Content, summary.Content)
	for _, conn := range b.conns.All() {
		if conn.ID.AttachedTo(concrete.Content) || conn.ID.AttachedTo(summary.Content) {
			nodes = nodes.Insert(conn.Data.Src, conn.Data.Tgt)
		}
	}
	child, err := b.child.ConcretizeAndDisconnectNG(summary.Address, nodes)
	if err != nil {
		return err
	}
	b.child = child
	return nil
}

// AssumeEdge restricts the state to the executions where the pointer in field points to region. The connectors
// whose edge is then known to exist are applied and removed.
func (b *Builder[D]) AssumeEdge(field absint.Field, region Region) error {
	b.live()
	child, err := b.child.AssumeEdgeNG(field, region.Address)
	if err != nil {
		return err
	}
	b.child = child
	return b.applyPrimeConnectors(field)
}

// applyPrimeConnectors removes the self-loops of concrete regions, which cannot exist, then asks the child for each
// connector whether its edge definitely exists. A connector whose edge exists is applied: the facts of its shadows
// hold for its endpoints. A connector whose edge definitely does not exist is dropped.
func (b *Builder[D]) applyPrimeConnectors(field absint.Field) error {
	for _, c := range b.conns.All() {
		if !c.ID.IsSelfLoop() {
			continue
		}
		if r, ok := b.table.GetByContent(c.ID.Src); ok && !r.IsSummary {
			b.removeConnector(c)
		}
	}
	for _, c := range b.conns.All() {
		if !b.conns.Contains(c.ID) {
			continue
		}
		tgt, ok := b.table.GetByContent(c.ID.Tgt)
		if !ok {
			continue
		}
		flag := b.child.QueryPtsEdge(c.ID.Src, c.ID.Path.Prefix, field.Size, tgt.Address)
		switch {
		case flag.IsOne():
			if err := b.applyConnector(c); err != nil {
				return err
			}
		case flag.IsZero() && !b.env.Options.TransitiveConnectors && !(c.ID.IsSelfLoop() && tgt.IsSummary):
			b.env.Log.Debugf("drop connector %s, edge does not exist", c.ID)
			b.removeConnector(c)
		}
	}
	return nil
}

func (b *Builder[D]) applyConnector(c Connector) error {
	b.env.Log.Debugf("apply connector %s", c.ID)
	child, err := b.child.AssumeRegionsAreEqual(c.ID.Src, c.Data.Src)
	if err != nil {
		return err
	}
	child, err = child.AssumeRegionsAreEqual(c.ID.Tgt, c.Data.Tgt)
	if err != nil {
		return err
	}
	b.child = child
	if b.env.Options.TransitiveConnectors {
		if err := b.applyTransitiveConnectors(c.ID); err != nil {
			return err
		}
	}
	b.removeConnector(c)
	return nil
}
