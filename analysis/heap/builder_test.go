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

func TestBuilderUseAfterBuildPanics(t *testing.T) {
	hs := emptyState(testEnv())
	b := newBuilder(hs.Segment, hs.State)
	b.Build()
	require.Panics(t, func() { b.AddKnownRegions(absint.NewMemVar("x")) })
	require.Panics(t, func() { b.Build() })
}

func TestPartitionIsComplete(t *testing.T) {
	p, q := absint.NewMemVar("p"), absint.NewMemVar("q")
	hs, r1 := malloc(t, emptyState(testEnv()), p, 8)
	hs, r2 := malloc(t, hs, p, 8)
	hs, r3 := malloc(t, hs, q, 8)
	hs, r4 := malloc(t, hs, p, 8)
	hs = store(hs, ptrField(q), pointsto.PointsTo(r3.Address, r4.Address))

	part := Partition(hs.Segment.regions, hs.Segment.NonHeapRegions(), hs.State)
	covered := absint.MemVarSet{}
	for _, class := range part.Classes() {
		require.True(t, covered.Intersect(class).IsEmpty(), "classes must be disjoint")
		covered = covered.Union(class)
	}
	require.True(t, covered.Equal(hs.Segment.regions.Regions()), "every region is in a class")

	require.True(t, part.ClassOf(r1.Content).Equal(absint.MemVars(r1.Content, r2.Content)))
	require.True(t, part.ClassOf(r3.Content).Equal(absint.MemVars(r3.Content)))
	require.True(t, part.ClassOf(r4.Content).Equal(absint.MemVars(r4.Content)))
	roots, ok := part.RootsOf(r4.Content)
	require.True(t, ok)
	require.True(t, roots.Equal(absint.MemVars(p, q)))
}

func TestFoldThenExpandOverApproximates(t *testing.T) {
	p := absint.NewMemVar("p")
	hs, r1 := malloc(t, emptyState(testEnv()), p, 8)
	hs, r2 := malloc(t, hs, p, 8)
	hs = store(hs, ptrField(r2.Content), pointsto.PointsTo(r1.Address))
	hs = store(hs, absint.Field{Region: r1.Content, Offset: 4, Size: 32}, pointsto.Constant(5))

	b := newBuilder(hs.Segment, hs.State)
	b.FoldRegions(r1, r2)
	folded := b.Build()
	summary, ok := folded.Segment.Region(r1.Address)
	require.True(t, ok)
	require.True(t, summary.IsSummary)

	b = newBuilder(folded.Segment, folded.State)
	concrete := b.Expand(summary)
	expanded := b.Build()
	require.Equal(t, summary.Size, concrete.Size)
	require.False(t, concrete.IsSummary)

	// every field of the original regions is described by both copies
	for _, region := range []absint.MemVar{summary.Content, concrete.Content} {
		next := expanded.State.Load(ptrField(region))
		require.True(t, next.Targets.Contains(r1.Address), "%s+0 should still point to the summary", region)
		require.True(t, next.Targets.Contains(concrete.Address), "%s+0 should point to the copy", region)
		four := expanded.State.Load(absint.Field{Region: region, Offset: 4, Size: 32})
		require.True(t, pointsto.Constant(5).SubsetOf(four), "%s+4 should include 5", region)
	}
	require.True(t, expanded.State.Load(ptrField(p)).Targets.Contains(concrete.Address))
}

func TestRenameRegionMovesConnectors(t *testing.T) {
	p := absint.NewMemVar("p")
	hs, r := malloc(t, emptyState(testEnv()), p, 8)
	hs = fold(t, hs)
	old := hs.Segment.AttachedConnectors(r.Content)
	require.Len(t, old, 1)

	to, toAddr := absint.NewMemVar("renamed"), absint.NewAddress("renamed")
	b := newBuilder(hs.Segment, hs.State)
	b.RenameRegion(r.Content, r.Address, to, toAddr)
	res := b.Build()

	renamed, ok := res.Segment.Region(toAddr)
	require.True(t, ok)
	require.Equal(t, to, renamed.Content)
	require.False(t, res.Segment.KnownRegions().Contains(r.Content))
	conns := res.Segment.AttachedConnectors(to)
	require.Len(t, conns, 1)
	require.NotEqual(t, old[0].Data.Src, conns[0].Data.Src, "moved connectors get fresh shadows")
	require.True(t, res.State.HasRegion(conns[0].Data.Src))
	require.False(t, res.State.HasRegion(old[0].Data.Src))
	require.True(t, res.State.Load(ptrField(p)).Equal(pointsto.PointsTo(toAddr)))
}

func TestBendConnectorsToSummary(t *testing.T) {
	hs, p, r1, r2 := sharedRoot(t, testEnv())
	b := newBuilder(hs.Segment, hs.State)
	b.createPrimeConnectors(b.known)
	hs = b.Build()
	require.Len(t, hs.Segment.Connectors(), 2)

	res := hs.Segment.BendConnectorsToSummary(hs.State, r2, r1)
	conns := res.Segment.Connectors()
	require.Len(t, conns, 1, "the connector from p to r2 is folded into the one to r1")
	require.Equal(t, ConnectorID{Src: p, Path: absint.Path(0), Tgt: r1.Content}, conns[0].ID)
}

func TestTransitiveConnectors(t *testing.T) {
	env := testEnv()
	env.Options.TransitiveConnectors = true
	p := absint.NewMemVar("p")
	// p -> r3 -> r2 -> r1, with r1 and r2 unreachable from the roots
	hs, r1 := malloc(t, emptyState(env), p, 8)
	hs, r2 := malloc(t, hs, p, 8)
	hs = store(hs, ptrField(r2.Content), pointsto.PointsTo(r1.Address))
	hs, r3 := malloc(t, hs, p, 8)
	hs = store(hs, ptrField(r3.Content), pointsto.PointsTo(r2.Address))

	folded := fold(t, hs)
	require.Len(t, folded.Segment.Regions(), 2)
	var transitive []Connector
	for _, c := range folded.Segment.Connectors() {
		if c.Data.Transitive {
			transitive = append(transitive, c)
		}
	}
	require.Len(t, transitive, 1)
	require.Equal(t, r3.Content, transitive[0].ID.Src)
	require.Equal(t, r1.Content, transitive[0].ID.Tgt)
	require.NoError(t, folded.Segment.ConnectorsAreSane())
}

func TestComposingTransitiveConnectorsIsUnsupported(t *testing.T) {
	hs := emptyState(testEnv())
	b := newBuilder(hs.Segment, hs.State)
	a, c, d := absint.NewMemVar("a"), absint.NewMemVar("c"), absint.NewMemVar("d")
	first := Connector{ID: ConnectorID{Src: a, Tgt: c}, Data: ConnectorData{Transitive: true}}
	second := Connector{ID: ConnectorID{Src: c, Tgt: d}}
	err := b.makeTransitiveConnector(first, second)
	require.True(t, absint.IsUnsupported(err), "got %v", err)
}
