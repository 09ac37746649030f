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
	"github.com/awslabs/ar-heap-tools/analysis/pointsto"
	"github.com/stretchr/testify/require"
)

// ghostCall is one call to an operation of the child domain that relates the contents of a summary and of its
// concrete copy
type ghostCall struct {
	op                 string
	summary, concrete  absint.AddrVar
	sContents          absint.MemVarSet
	cContents          absint.MemVarSet
	pointingToSummary  absint.MemVarSet
	pointingToConcrete absint.MemVarSet
	concreteNodes      absint.MemVarSet
}

// recorder is a points-to state that records the ghost edge operations applied to it. Copies of a recorder share
// the same record.
type recorder struct {
	*pointsto.State
	calls *[]ghostCall
}

var _ absint.MemoryDomain[recorder] = recorder{}

func (r recorder) wrap(s *pointsto.State) recorder { return recorder{State: s, calls: r.calls} }

func (r recorder) record(c ghostCall) { *r.calls = append(*r.calls, c) }

func (r recorder) Introduce(addr absint.AddrVar) recorder { return r.wrap(r.State.Introduce(addr)) }

func (r recorder) Project(addr absint.AddrVar) recorder { return r.wrap(r.State.Project(addr)) }

func (r recorder) Substitute(from, to absint.AddrVar) recorder {
	return r.wrap(r.State.Substitute(from, to))
}

func (r recorder) IntroduceRegion(region absint.MemVar) recorder {
	return r.wrap(r.State.IntroduceRegion(region))
}

func (r recorder) ProjectRegion(region absint.MemVar) recorder {
	return r.wrap(r.State.ProjectRegion(region))
}

func (r recorder) SubstituteRegion(from, to absint.MemVar) recorder {
	return r.wrap(r.State.SubstituteRegion(from, to))
}

func (r recorder) CopyMemRegion(from, to absint.MemVar) recorder {
	return r.wrap(r.State.CopyMemRegion(from, to))
}

func (r recorder) CopyAndPaste(vars absint.MemVarSet, other recorder) recorder {
	return r.wrap(r.State.CopyAndPaste(vars, other.State))
}

func (r recorder) FoldNG(pairs []absint.MemVarPair) recorder { return r.wrap(r.State.FoldNG(pairs)) }

func (r recorder) FoldRegionsNG(perm, eph absint.AddrVar, pairs []absint.MemVarPair) recorder {
	return r.wrap(r.State.FoldRegionsNG(perm, eph, pairs))
}

func (r recorder) ExpandNG(pairs []absint.MemVarPair) recorder { return r.wrap(r.State.ExpandNG(pairs)) }

func (r recorder) ExpandRegionsNG(summary, concrete absint.AddrVar, pairs []absint.MemVarPair) recorder {
	return r.wrap(r.State.ExpandRegionsNG(summary, concrete, pairs))
}

func (r recorder) AssumeEdgeNG(field absint.Field, addr absint.AddrVar) (recorder, error) {
	s, err := r.State.AssumeEdgeNG(field, addr)
	return r.wrap(s), err
}

func (r recorder) BendGhostEdgesNG(summary, concrete absint.AddrVar, sContents, cContents, pointingToSummary,
	pointingToConcrete absint.MemVarSet) recorder {
	r.record(ghostCall{op: "bend", summary: summary, concrete: concrete, sContents: sContents,
		cContents: cContents, pointingToSummary: pointingToSummary, pointingToConcrete: pointingToConcrete})
	return r
}

func (r recorder) BendBackGhostEdgesNG(summary, concrete absint.AddrVar, sContents, cContents, pointingToSummary,
	pointingToConcrete absint.MemVarSet) recorder {
	r.record(ghostCall{op: "bendBack", summary: summary, concrete: concrete, sContents: sContents,
		cContents: cContents, pointingToSummary: pointingToSummary, pointingToConcrete: pointingToConcrete})
	return r
}

func (r recorder) ConcretizeAndDisconnectNG(summary absint.AddrVar, concreteNodes absint.MemVarSet) (recorder,
	error) {
	r.record(ghostCall{op: "concretize", summary: summary, concreteNodes: concreteNodes})
	return r, nil
}

func (r recorder) AssumeRegionsAreEqual(first, second absint.MemVar) (recorder, error) {
	s, err := r.State.AssumeRegionsAreEqual(first, second)
	return r.wrap(s), err
}

func (r recorder) AssignSymbolicAddressOf(field absint.Field, addr absint.AddrVar) recorder {
	return r.wrap(r.State.AssignSymbolicAddressOf(field, addr))
}

// recordingHeap builds a segment with the given regions, roots and connectors over child. The shadows of each
// connector are copies of its endpoints.
func recordingHeap(child *pointsto.State, regions []Region, roots []absint.MemVar,
	conns []Connector) (SegmentWithState[recorder], *[]ghostCall) {
	calls := &[]ghostCall{}
	b := newBuilder(NewSegment[recorder](testEnv()), recorder{State: child, calls: calls})
	for _, r := range regions {
		b.bindRegion(r)
		b.child = b.child.Introduce(r.Address).IntroduceRegion(r.Content)
	}
	b.AddKnownRegions(roots...)
	for _, c := range conns {
		b.bindConnector(c.ID, c.Data)
		b.child = b.child.CopyMemRegion(c.ID.Src, c.Data.Src).CopyMemRegion(c.ID.Tgt, c.Data.Tgt)
	}
	return b.Build(), calls
}

func connector(src absint.MemVar, off int64, tgt absint.MemVar, shadow string) Connector {
	return Connector{
		ID:   ConnectorID{Src: src, Path: absint.Path(off), Tgt: tgt},
		Data: ConnectorData{Src: absint.NewMemVar(shadow + ".src"), Tgt: absint.NewMemVar(shadow + ".tgt")},
	}
}

func connectorData(t *testing.T, seg *Segment[recorder], src absint.MemVar, off int64,
	tgt absint.MemVar) ConnectorData {
	t.Helper()
	d, ok := seg.conns.Get(ConnectorID{Src: src, Path: absint.Path(off), Tgt: tgt})
	require.True(t, ok, "no connector %s+%d -> %s", src, off, tgt)
	return d
}

func requireSet(t *testing.T, name string, want, got absint.MemVarSet) {
	t.Helper()
	require.True(t, want.Equal(got), "%s: expected %s, got %s", name, want, got)
}

func TestFoldRegionsBendsGhostEdges(t *testing.T) {
	x := absint.NewMemVar("x")
	perm := NewRegion(absint.NewAddress("perm"), absint.NewMemVar("perm"), KnownSize(8))
	eph := NewRegion(absint.NewAddress("eph"), absint.NewMemVar("eph"), KnownSize(8))
	child := pointsto.New().
		Store(absint.Field{Region: perm.Content, Offset: 0, Size: 32}, pointsto.PointsTo(eph.Address)).
		Store(absint.Field{Region: eph.Content, Offset: 4, Size: 32}, pointsto.PointsTo(perm.Address)).
		Store(ptrField(x), pointsto.PointsTo(eph.Address))
	toEph := connector(perm.Content, 0, eph.Content, "pe")
	toPerm := connector(eph.Content, 4, perm.Content, "ep")
	outside := connector(x, 0, eph.Content, "xe")
	hs, calls := recordingHeap(child, []Region{perm, eph}, []absint.MemVar{x},
		[]Connector{toEph, toPerm, outside})

	b := newBuilder(hs.Segment, hs.State)
	b.FoldRegions(perm, eph)
	b.Build()

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "bend", call.op)
	require.Equal(t, perm.Address, call.summary)
	require.Equal(t, eph.Address, call.concrete)
	requireSet(t, "summary contents", absint.MemVars(perm.Content, toEph.Data.Src, toPerm.Data.Tgt), call.sContents)
	requireSet(t, "concrete contents", absint.MemVars(eph.Content, toEph.Data.Tgt, toPerm.Data.Src,
		outside.Data.Tgt), call.cContents)
	requireSet(t, "pointing to summary", absint.MemVars(), call.pointingToSummary)
	requireSet(t, "pointing to concrete", absint.MemVars(outside.Data.Src), call.pointingToConcrete)
}

// summaryHeap returns a heap with a summary region pointing to itself and pointed to by p, and an unrelated
// concrete region pointed to by q
func summaryHeap() (SegmentWithState[recorder], *[]ghostCall, absint.MemVar, Region, Region) {
	p, q := absint.NewMemVar("p"), absint.NewMemVar("q")
	summary := NewRegion(absint.NewAddress("s"), absint.NewMemVar("s"), KnownSize(8)).WithSummaryFlag(true)
	other := NewRegion(absint.NewAddress("o"), absint.NewMemVar("o"), KnownSize(8))
	child := pointsto.New().
		Store(ptrField(summary.Content), pointsto.PointsTo(summary.Address)).
		Store(ptrField(p), pointsto.PointsTo(summary.Address)).
		Store(ptrField(q), pointsto.PointsTo(other.Address))
	hs, calls := recordingHeap(child, []Region{summary, other}, []absint.MemVar{p, q}, []Connector{
		connector(summary.Content, 0, summary.Content, "ss"),
		connector(p, 0, summary.Content, "ps"),
		connector(q, 0, other.Content, "qo"),
	})
	return hs, calls, p, summary, other
}

func TestConcretizeAndDisconnectNodes(t *testing.T) {
	hs, calls, _, summary, other := summaryHeap()
	b := newBuilder(hs.Segment, hs.State)
	concrete := b.Expand(summary)
	expanded := b.Build()

	b = newBuilder(expanded.Segment, expanded.State)
	require.NoError(t, b.ConcretizeAndDisconnect(summary, concrete))
	b.Build()

	want := absint.MemVars(summary.Content, concrete.Content)
	var unrelated absint.MemVarSet
	for _, c := range expanded.Segment.Connectors() {
		if c.ID.Tgt == other.Content {
			unrelated = unrelated.Insert(c.Data.Src, c.Data.Tgt)
		} else {
			want = want.Insert(c.Data.Src, c.Data.Tgt)
		}
	}
	require.Equal(t, 10, want.Len(), "both regions and the shadows of the four connectors attached to them")
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "concretize", call.op)
	require.Equal(t, summary.Address, call.summary)
	requireSet(t, "concrete nodes", want, call.concreteNodes)
	require.True(t, call.concreteNodes.Intersect(unrelated).IsEmpty(), "connectors of other regions are left out")
}

func TestExpandAndBendGhostEdgesContents(t *testing.T) {
	hs, calls, p, summary, _ := summaryHeap()
	b := newBuilder(hs.Segment, hs.State)
	concrete := b.Expand(summary)
	expanded := b.Build()

	b = newBuilder(expanded.Segment, expanded.State)
	b.ExpandAndBendGhostEdges(summary, concrete)
	bent := b.Build()

	s, c := summary.Content, concrete.Content
	ss := connectorData(t, bent.Segment, s, 0, s)
	cc := connectorData(t, bent.Segment, c, 0, c)
	sc := connectorData(t, bent.Segment, s, 0, c)
	cs := connectorData(t, bent.Segment, c, 0, s)
	ps := connectorData(t, bent.Segment, p, 0, s)
	pc := connectorData(t, bent.Segment, p, 0, c)

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	require.Equal(t, "bendBack", call.op)
	require.Equal(t, summary.Address, call.summary)
	require.Equal(t, concrete.Address, call.concrete)
	requireSet(t, "summary contents", absint.MemVars(s, ss.Src, ss.Tgt, sc.Src, cs.Tgt, ps.Tgt), call.sContents)
	requireSet(t, "concrete contents", absint.MemVars(c, cc.Src, cc.Tgt, cs.Src, sc.Tgt, pc.Tgt), call.cContents)
	requireSet(t, "pointing to summary", absint.MemVars(ss.Src, ps.Src), call.pointingToSummary)
	requireSet(t, "pointing to concrete", absint.MemVars(cc.Src, pc.Src), call.pointingToConcrete)
}

func TestDereferenceSummaryRelatesBothCopies(t *testing.T) {
	hs, calls, p, summary, _ := summaryHeap()
	ptr := absint.Pointer{Address: summary.Address, Offset: absint.Const(0)}
	accesses, ok, err := hs.Segment.Dereference(ptrField(p), ptr, hs.State)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, accesses, 2)

	require.Len(t, *calls, 2, "one call per materialization branch")
	concretize, bendBack := (*calls)[0], (*calls)[1]
	require.Equal(t, "concretize", concretize.op)
	require.Equal(t, summary.Address, concretize.summary)
	require.True(t, concretize.concreteNodes.Contains(summary.Content))
	require.True(t, concretize.concreteNodes.Contains(accesses[0].Pointer.Region))
	require.Equal(t, "bendBack", bendBack.op)
	require.Equal(t, summary.Address, bendBack.summary)
	concrete, ok := accesses[1].Result.Segment.Region(bendBack.concrete)
	require.True(t, ok)
	require.Equal(t, accesses[1].Pointer.Region, concrete.Content)
	require.True(t, bendBack.sContents.Contains(summary.Content))
	require.True(t, bendBack.cContents.Contains(accesses[1].Pointer.Region))
}
