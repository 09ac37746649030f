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
	"strings"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
	"github.com/awslabs/ar-heap-tools/analysis/config"
	"github.com/awslabs/ar-heap-tools/internal/formatutil"
)

// Env holds the settings shared by all the segments of an analysis
type Env struct {
	Options config.Options
	Log     *config.LogGroup
}

// NewEnv returns the environment of an analysis configured by cfg, logging to log
func NewEnv(cfg *config.Config, log *config.LogGroup) *Env {
	return &Env{Options: cfg.Options, Log: log}
}

// DefaultEnv returns the default options without logging
func DefaultEnv() *Env {
	return &Env{Options: config.NewDefault().Options, Log: config.Discard()}
}

// Segment is the heap part of an abstract memory state: the regions, the connectors between them and the regions
// the heap knows about. A segment is immutable; all operations return new segments together with the updated child
// state.
type Segment[D absint.MemoryDomain[D]] struct {
	regions RegionTable
	conns   ConnectorStore
	known   absint.MemVarSet
	env     *Env
}

// SegmentWithState is a segment with the child state it belongs to
type SegmentWithState[D absint.MemoryDomain[D]] struct {
	Segment *Segment[D]
	State   D
}

// RegionAccess is one possible target of a dereference: the region accessed and the state in which the access
// happens.
type RegionAccess[D absint.MemoryDomain[D]] struct {
	Pointer absint.MemPointer
	Result  SegmentWithState[D]
}

// CompatibleState is the result of making two segments compatible: the common segment and both child states, each
// using the regions and connectors of the common segment.
type CompatibleState[D absint.MemoryDomain[D]] struct {
	Segment    *Segment[D]
	State      D
	OtherState D
}

// NewSegment returns an empty heap
func NewSegment[D absint.MemoryDomain[D]](env *Env) *Segment[D] {
	if env == nil {
		env = DefaultEnv()
	}
	return &Segment[D]{regions: EmptyRegionTable(), conns: EmptyConnectorStore(), env: env}
}

// Env returns the environment of the segment
func (s *Segment[D]) Env() *Env { return s.env }

// Regions returns the heap regions ordered by address
func (s *Segment[D]) Regions() []Region { return s.regions.All() }

// Region returns the heap region at addr
func (s *Segment[D]) Region(addr absint.AddrVar) (Region, bool) { return s.regions.Get(addr) }

// RegionByContent returns the heap region with content handle mv
func (s *Segment[D]) RegionByContent(mv absint.MemVar) (Region, bool) { return s.regions.GetByContent(mv) }

// Connectors returns the connectors in identifier order
func (s *Segment[D]) Connectors() []Connector { return s.conns.All() }

// AttachedConnectors returns the connectors with region as one of their endpoints
func (s *Segment[D]) AttachedConnectors(region absint.MemVar) []Connector {
	return s.conns.AttachedTo(region)
}

// KnownRegions returns all the regions known to the segment, heap regions and roots
func (s *Segment[D]) KnownRegions() absint.MemVarSet { return s.known }

// NonHeapRegions returns the known regions that are not heap regions: the roots of the heap
func (s *Segment[D]) NonHeapRegions() absint.MemVarSet {
	return s.known.Difference(s.regions.Regions())
}

// ChildSupportSet returns the content handles of the child used by the segment: the contents of the heap regions and
// the shadows of the connectors.
func (s *Segment[D]) ChildSupportSet() absint.MemVarSet {
	return s.regions.Regions().Union(s.conns.ChildSupportSet())
}

// ConnectorsAreSane checks that the region table is a bijection and that every connector links known regions and
// ends at a heap region.
func (s *Segment[D]) ConnectorsAreSane() error {
	if err := s.regions.CheckBijection(); err != nil {
		return err
	}
	for _, r := range s.regions.All() {
		if !s.known.Contains(r.Content) {
			return fmt.Errorf("heap region %s is not a known region", r)
		}
	}
	for _, c := range s.conns.All() {
		if !s.known.Contains(c.ID.Src) {
			return fmt.Errorf("connector %s starts at unknown region %s", c.ID, c.ID.Src)
		}
		if !s.regions.ContainsContent(c.ID.Tgt) {
			return fmt.Errorf("connector %s does not end at a heap region", c.ID)
		}
		if s.regions.ContainsContent(c.Data.Src) || s.regions.ContainsContent(c.Data.Tgt) {
			return fmt.Errorf("connector %s has a heap region as shadow", c)
		}
	}
	return nil
}

// SameShape returns true if both segments have the same addresses, summary flags, connector identifiers and known
// regions.
func (s *Segment[D]) SameShape(other *Segment[D]) bool {
	split := s.regions.Split(other.regions)
	if len(split.OnlyInFirst)+len(split.OnlyInSecond) > 0 {
		return false
	}
	for _, r := range split.InBothButDiffering {
		o, _ := other.regions.Get(r.Address)
		if o.IsSummary != r.IsSummary || o.Content != r.Content {
			return false
		}
	}
	cs := s.conns.Split(other.conns)
	return len(cs.OnlyInFirst)+len(cs.OnlyInSecond) == 0 && s.known.Equal(other.known)
}

// Dereference resolves the pointer stored in field. It returns false if the pointer does not point into the heap.
// Otherwise it returns the possible accesses: at most one for a concrete region, at most two for a summary region,
// which is materialized. Infeasible accesses are dropped. A non-nil error is an unsupported construct.
func (s *Segment[D]) Dereference(field absint.Field, ptr absint.Pointer, state D) ([]RegionAccess[D], bool, error) {
	if ptr.Absolute {
		return nil, false, nil
	}
	region, ok := s.regions.Get(ptr.Address)
	if !ok {
		return nil, false, nil
	}
	if !region.IsSummary {
		b := newBuilder(s, state)
		if err := b.AssumeEdge(field, region); err != nil {
			accesses, err := absint.Collect(absint.Failed[RegionAccess[D]](err))
			return accesses, true, err
		}
		access := RegionAccess[D]{
			Pointer: absint.MemPointer{Region: region.Content, Offset: ptr.Offset},
			Result:  b.Build(),
		}
		return []RegionAccess[D]{access}, true, nil
	}

	b := newBuilder(s, state)
	concrete := b.Expand(region)
	expanded := b.Build()
	rebased := rebasePointer(ptr, region, concrete)

	disconnected := func() (RegionAccess[D], error) {
		b := newBuilder(expanded.Segment, expanded.State)
		if err := b.ConcretizeAndDisconnect(region, concrete); err != nil {
			return RegionAccess[D]{}, err
		}
		if err := b.AssumeEdge(field, concrete); err != nil {
			return RegionAccess[D]{}, err
		}
		return RegionAccess[D]{Pointer: rebased, Result: b.Build()}, nil
	}
	bent := func() (RegionAccess[D], error) {
		b := newBuilder(expanded.Segment, expanded.State)
		b.ExpandAndBendGhostEdges(region, concrete)
		if err := b.AssumeEdge(field, concrete); err != nil {
			return RegionAccess[D]{}, err
		}
		return RegionAccess[D]{Pointer: rebased, Result: b.Build()}, nil
	}
	accesses, err := absint.Collect(absint.Lift(disconnected()), absint.Lift(bent()))
	s.env.Log.Debugf("dereference of %s in summary %s: %d accesses", field, region, len(accesses))
	return accesses, true, err
}

// rebasePointer expresses a pointer into the summary as a pointer into its concrete copy
func rebasePointer(ptr absint.Pointer, summary, concrete Region) absint.MemPointer {
	offset := ptr.Offset.AddVar(summary.Address).SubVar(concrete.Address)
	return absint.MemPointer{Region: concrete.Content, Offset: offset}
}

// TryPrimitive executes the primitives handled by the heap: malloc(size) allocates a region, foldRegions()
// summarizes the heap and free is unsupported. It returns false for any other primitive.
func (s *Segment[D]) TryPrimitive(prim absint.Prim, state D) (SegmentWithState[D], bool, error) {
	switch {
	case prim.Is("malloc", 1, 1):
		res, err := s.malloc(prim, state)
		return res, true, err
	case prim.Is("free", 0, 1):
		return SegmentWithState[D]{}, true, absint.Unimplemented("free(%s)", prim.Out[0])
	case prim.Is("foldRegions", 0, 0):
		res, err := s.SummarizeHeap(state)
		return res, true, err
	default:
		return SegmentWithState[D]{}, false, nil
	}
}

func (s *Segment[D]) malloc(prim absint.Prim, state D) (SegmentWithState[D], error) {
	size := UnknownSize
	if bytes, ok := state.QueryConstant(prim.In[0]); ok {
		size = KnownSize(bytes)
	} else if s.env.Options.StrictMalloc {
		return SegmentWithState[D]{}, absint.Unimplemented("malloc of non-constant size %s", prim.In[0])
	}
	region := NewRegion(absint.FreshAddress(), absint.FreshMemVar(), size)
	s.env.Log.Debugf("malloc %s", region)
	state = state.Introduce(region.Address).IntroduceRegion(region.Content)
	b := newBuilder(s, state)
	b.bindRegion(region)
	out := prim.Out[0]
	b.child = b.child.AssignSymbolicAddressOf(out, region.Address)
	b.InformAboutAssign(out.Region, absint.Point(out.Offset), absint.MemVar{})
	if s.env.Options.ExceedsMaxRegions(b.table.Len()) {
		s.env.Log.Debugf("%d regions, summarizing heap", b.table.Len())
		if err := b.SummarizeHeap(); err != nil {
			return SegmentWithState[D]{}, err
		}
	}
	return b.Build(), nil
}

// SummarizeHeap folds the regions of the heap that are pointed to by the same roots
func (s *Segment[D]) SummarizeHeap(state D) (SegmentWithState[D], error) {
	b := newBuilder(s, state)
	if err := b.SummarizeHeap(); err != nil {
		return SegmentWithState[D]{}, err
	}
	return b.Build(), nil
}

// InformAboutAssign must be called when the offsets of region to are written. The connectors starting at the written
// field are dropped. from is the region read, or the zero MemVar.
func (s *Segment[D]) InformAboutAssign(state D, to absint.MemVar, offsets absint.Interval,
	from absint.MemVar) SegmentWithState[D] {
	b := newBuilder(s, state)
	b.InformAboutAssign(to, offsets, from)
	return b.Build()
}

// AddKnownRegions returns a segment that knows the regions
func (s *Segment[D]) AddKnownRegions(state D, regions ...absint.MemVar) SegmentWithState[D] {
	b := newBuilder(s, state)
	b.AddKnownRegions(regions...)
	return b.Build()
}

// RemoveRegion removes the region at addr and its connectors
func (s *Segment[D]) RemoveRegion(state D, addr absint.AddrVar) SegmentWithState[D] {
	b := newBuilder(s, state)
	b.RemoveRegion(addr)
	return b.Build()
}

// BendConnectorsToSummary moves the connectors of concrete onto summary
func (s *Segment[D]) BendConnectorsToSummary(state D, concrete, summary Region) SegmentWithState[D] {
	b := newBuilder(s, state)
	b.BendConnectorsToSummary(concrete, summary)
	return b.Build()
}

func (s *Segment[D]) String() string {
	var sb strings.Builder
	sb.WriteString("regions:")
	for _, r := range s.regions.All() {
		sb.WriteString(" ")
		sb.WriteString(r.String())
	}
	sb.WriteString("\nconnectors:")
	for _, c := range s.conns.All() {
		sb.WriteString(" ")
		sb.WriteString(c.String())
	}
	sb.WriteString("\nroots: ")
	sb.WriteString(s.NonHeapRegions().String())
	return sb.String()
}

// CompactString returns a multi-line description of the segment, colorized when printing to a terminal
func (s *Segment[D]) CompactString() string {
	var sb strings.Builder
	sb.WriteString(formatutil.Bold("heap"))
	sb.WriteString("\n")
	for _, r := range s.regions.All() {
		name := r.Content.String()
		if r.IsSummary {
			name = formatutil.Magenta(name + "*")
		} else {
			name = formatutil.Cyan(name)
		}
		fmt.Fprintf(&sb, "  %s @ %s size %s\n", name, r.Address, r.Size)
	}
	if s.conns.Len() > 0 {
		sb.WriteString(formatutil.Bold("connectors"))
		sb.WriteString("\n")
		for _, c := range s.conns.All() {
			fmt.Fprintf(&sb, "  %s %s\n", c.ID, formatutil.Faint(c.Data.String()))
		}
	}
	fmt.Fprintf(&sb, "%s %s\n", formatutil.Bold("roots"), s.NonHeapRegions())
	return sb.String()
}
