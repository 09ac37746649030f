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

package pointsto

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
	"github.com/benbjohnson/immutable"
)

type offset int64

func (o offset) Compare(other offset) int {
	switch {
	case o < other:
		return -1
	case o > other:
		return 1
	default:
		return 0
	}
}

// contents maps the offsets of a region to the values of its fields. Absent fields are Unknown.
type contents struct {
	fields *immutable.SortedMap[offset, Value]
}

func emptyContents() contents {
	return contents{fields: absint.NewSortedMap[offset, Value]()}
}

func (c contents) get(off int64) Value {
	if v, ok := c.fields.Get(offset(off)); ok {
		return v
	}
	return Unknown
}

func (c contents) set(off int64, v Value) contents {
	return contents{fields: c.fields.Set(offset(off), v)}
}

func (c contents) each(f func(off int64, v Value)) {
	it := c.fields.Iterator()
	for !it.Done() {
		k, v, _ := it.Next()
		f(int64(k), v)
	}
}

func (c contents) offsets(other contents) []int64 {
	seen := map[int64]bool{}
	var res []int64
	add := func(off int64, _ Value) {
		if !seen[off] {
			seen[off] = true
			res = append(res, off)
		}
	}
	c.each(add)
	other.each(add)
	return res
}

func (c contents) join(other contents) contents {
	res := emptyContents()
	for _, off := range c.offsets(other) {
		res = res.set(off, c.get(off).Join(other.get(off)))
	}
	return res
}

func (c contents) mapTargets(f func(absint.AddrSet) absint.AddrSet) contents {
	res := c
	c.each(func(off int64, v Value) {
		res = res.set(off, v.mapTargets(f))
	})
	return res
}

func (c contents) subsetOf(other contents) bool {
	for _, off := range c.offsets(other) {
		if !c.get(off).SubsetOf(other.get(off)) {
			return false
		}
	}
	return true
}

func (c contents) addresses() absint.AddrSet {
	var res absint.AddrSet
	c.each(func(_ int64, v Value) {
		res = res.Union(v.Targets)
	})
	return res
}

// State is a non-relational points-to memory state: the value of every field of every region, and the set of
// symbolic addresses in scope. States are immutable.
type State struct {
	regions *immutable.SortedMap[absint.MemVar, contents]
	addrs   absint.AddrSet
}

var _ absint.MemoryDomain[*State] = (*State)(nil)

// New returns a state without regions
func New() *State {
	return &State{regions: absint.NewSortedMap[absint.MemVar, contents]()}
}

func (s *State) contentsOf(region absint.MemVar) contents {
	if c, ok := s.regions.Get(region); ok {
		return c
	}
	return emptyContents()
}

func (s *State) withRegion(region absint.MemVar, c contents) *State {
	return &State{regions: s.regions.Set(region, c), addrs: s.addrs}
}

func (s *State) withAddrs(addrs absint.AddrSet) *State {
	return &State{regions: s.regions, addrs: addrs}
}

func (s *State) mapTargets(f func(absint.AddrSet) absint.AddrSet) *State {
	res := s
	it := s.regions.Iterator()
	for !it.Done() {
		region, c, _ := it.Next()
		res = res.withRegion(region, c.mapTargets(f))
	}
	return res
}

// HasRegion returns true if region is in the state
func (s *State) HasRegion(region absint.MemVar) bool {
	_, ok := s.regions.Get(region)
	return ok
}

// Addresses returns the symbolic addresses in scope
func (s *State) Addresses() absint.AddrSet { return s.addrs }

// Load returns the value of field
func (s *State) Load(field absint.Field) Value {
	return s.contentsOf(field.Region).get(field.Offset)
}

// Store writes v to field
func (s *State) Store(field absint.Field, v Value) *State {
	return s.withRegion(field.Region, s.contentsOf(field.Region).set(field.Offset, v))
}

// Copy writes the value of src to dst
func (s *State) Copy(dst, src absint.Field) *State {
	return s.Store(dst, s.Load(src))
}

// Eval returns the value of an operand
func (s *State) Eval(v absint.Value) Value {
	if v.IsConst {
		return Constant(v.Const)
	}
	return s.Load(v.Field)
}

// Introduce adds the symbolic address addr to the state
func (s *State) Introduce(addr absint.AddrVar) *State {
	return s.withAddrs(s.addrs.Insert(addr))
}

// Project removes addr. Fields that may point to addr may hold any value after the projection.
func (s *State) Project(addr absint.AddrVar) *State {
	res := s.withAddrs(s.addrs.Remove(addr))
	it := s.regions.Iterator()
	for !it.Done() {
		region, c, _ := it.Next()
		c.each(func(off int64, v Value) {
			if v.Targets.Contains(addr) {
				c = c.set(off, Value{Targets: v.Targets.Remove(addr), Scalar: true})
			}
		})
		res = res.withRegion(region, c)
	}
	return res
}

// Substitute renames the address from to to. If to is already in the state, both addresses are merged.
func (s *State) Substitute(from, to absint.AddrVar) *State {
	if from == to {
		return s
	}
	res := s.mapTargets(func(targets absint.AddrSet) absint.AddrSet {
		if targets.Contains(from) {
			return targets.Remove(from).Insert(to)
		}
		return targets
	})
	if s.addrs.Contains(from) {
		res = res.withAddrs(res.addrs.Remove(from).Insert(to))
	}
	return res
}

// IntroduceRegion adds the region with all its fields unknown
func (s *State) IntroduceRegion(region absint.MemVar) *State {
	if s.HasRegion(region) {
		return s
	}
	return s.withRegion(region, emptyContents())
}

// ProjectRegion removes the region
func (s *State) ProjectRegion(region absint.MemVar) *State {
	if !s.HasRegion(region) {
		return s
	}
	return &State{regions: s.regions.Delete(region), addrs: s.addrs}
}

// SubstituteRegion renames the region from to to
func (s *State) SubstituteRegion(from, to absint.MemVar) *State {
	c, ok := s.regions.Get(from)
	if !ok || from == to {
		return s
	}
	return s.ProjectRegion(from).withRegion(to, c)
}

// CopyMemRegion creates to with the contents of from
func (s *State) CopyMemRegion(from, to absint.MemVar) *State {
	return s.withRegion(to, s.contentsOf(from))
}

// CopyAndPaste copies the regions vars from other, with the addresses they point to
func (s *State) CopyAndPaste(vars absint.MemVarSet, other *State) *State {
	res := s
	for _, v := range vars.Items() {
		c, ok := other.regions.Get(v)
		if !ok {
			continue
		}
		res = res.withRegion(v, c)
		res = res.withAddrs(res.addrs.Union(c.addresses()))
	}
	return res
}

// FoldNG joins the contents of the second region of each pair into the first one, and removes the second one
func (s *State) FoldNG(pairs []absint.MemVarPair) *State {
	res := s
	for _, p := range pairs {
		joined := res.contentsOf(p.First).join(res.contentsOf(p.Second))
		res = res.ProjectRegion(p.Second).withRegion(p.First, joined)
	}
	return res
}

// FoldRegionsNG folds the pairs and merges the address eph into perm
func (s *State) FoldRegionsNG(perm, eph absint.AddrVar, pairs []absint.MemVarPair) *State {
	return s.FoldNG(pairs).Substitute(eph, perm)
}

// ExpandNG copies the first region of each pair into the second one
func (s *State) ExpandNG(pairs []absint.MemVarPair) *State {
	res := s
	for _, p := range pairs {
		res = res.CopyMemRegion(p.First, p.Second)
	}
	return res
}

// ExpandRegionsNG expands the pairs and lets every field that may point to summary also point to concrete
func (s *State) ExpandRegionsNG(summary, concrete absint.AddrVar, pairs []absint.MemVarPair) *State {
	res := s.ExpandNG(pairs).Introduce(concrete)
	return res.mapTargets(func(targets absint.AddrSet) absint.AddrSet {
		if targets.Contains(summary) {
			return targets.Insert(concrete)
		}
		return targets
	})
}

// AssumeEdgeNG restricts field to point to addr. It returns an unreachable error if the field cannot point to addr.
func (s *State) AssumeEdgeNG(field absint.Field, addr absint.AddrVar) (*State, error) {
	v := s.Load(field)
	if !v.Targets.Contains(addr) {
		return nil, absint.Unreachablef("%s cannot point to %s", field, addr)
	}
	return s.Store(field, PointsTo(addr)), nil
}

// BendGhostEdgesNG keeps the state as is: a non-relational state has no facts attached to edges
func (s *State) BendGhostEdgesNG(_, _ absint.AddrVar, _, _, _, _ absint.MemVarSet) *State {
	return s
}

// BendBackGhostEdgesNG keeps the state as is
func (s *State) BendBackGhostEdgesNG(_, _ absint.AddrVar, _, _, _, _ absint.MemVarSet) *State {
	return s
}

// ConcretizeAndDisconnectNG keeps the state as is
func (s *State) ConcretizeAndDisconnectNG(_ absint.AddrVar, _ absint.MemVarSet) (*State, error) {
	return s, nil
}

// FindPossiblePointerTargets returns the addresses the fields of region may point to, by offset
func (s *State) FindPossiblePointerTargets(region absint.MemVar) []absint.PointerTarget {
	var res []absint.PointerTarget
	s.contentsOf(region).each(func(off int64, v Value) {
		for _, addr := range v.Targets.Items() {
			res = append(res, absint.PointerTarget{Path: absint.Path(off), Address: addr})
		}
	})
	return res
}

// QueryPtsEdge returns FlagOne if the field at offset of from points exactly to to, FlagZero if it cannot point to
// to, and FlagTop otherwise.
func (s *State) QueryPtsEdge(from absint.MemVar, off int64, _ int, to absint.AddrVar) absint.Flag {
	v := s.contentsOf(from).get(off)
	switch {
	case !v.Targets.Contains(to):
		return absint.FlagZero
	case v.Targets.Len() == 1 && !v.Scalar:
		return absint.FlagOne
	default:
		return absint.FlagTop
	}
}

// AssumeRegionsAreEqual meets the contents of both regions field by field
func (s *State) AssumeRegionsAreEqual(first, second absint.MemVar) (*State, error) {
	a, b := s.contentsOf(first), s.contentsOf(second)
	met := emptyContents()
	for _, off := range a.offsets(b) {
		v := a.get(off).Meet(b.get(off))
		if v.IsEmpty() {
			return nil, absint.Unreachablef("%s and %s differ at offset %d", first, second, off)
		}
		met = met.set(off, v)
	}
	return s.withRegion(first, met).withRegion(second, met), nil
}

// AssignSymbolicAddressOf stores a pointer to addr in field
func (s *State) AssignSymbolicAddressOf(field absint.Field, addr absint.AddrVar) *State {
	return s.Store(field, PointsTo(addr))
}

// QueryConstant returns the value of v if it is a known constant
func (s *State) QueryConstant(v absint.Value) (int64, bool) {
	val := s.Eval(v)
	if val.IsConst && val.Targets.IsEmpty() {
		return val.Const, true
	}
	return 0, false
}

// Join returns the least state describing s and other. A region absent from one state has unknown contents in it.
func (s *State) Join(other *State) *State {
	res := s.withAddrs(s.addrs.Union(other.addrs))
	for _, region := range absint.MemVars(s.Regions()...).Union(absint.MemVars(other.Regions()...)).Items() {
		res = res.withRegion(region, s.contentsOf(region).join(other.contentsOf(region)))
	}
	return res
}

// Widen is Join: the lattice of a state with finitely many addresses and regions has no infinite chains
func (s *State) Widen(other *State) *State {
	return s.Join(other)
}

// SubsetOrEqual returns true if every region of s is described by the same region in other
func (s *State) SubsetOrEqual(other *State) bool {
	it := s.regions.Iterator()
	for !it.Done() {
		region, c, _ := it.Next()
		o, ok := other.regions.Get(region)
		if !ok || !c.subsetOf(o) {
			return false
		}
	}
	return true
}

// Regions returns the regions of the state in order
func (s *State) Regions() []absint.MemVar {
	var res []absint.MemVar
	it := s.regions.Iterator()
	for !it.Done() {
		region, _, _ := it.Next()
		res = append(res, region)
	}
	return res
}

func (s *State) String() string {
	var sb strings.Builder
	it := s.regions.Iterator()
	for !it.Done() {
		region, c, _ := it.Next()
		fmt.Fprintf(&sb, "%s: {", region)
		first := true
		c.each(func(off int64, v Value) {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&sb, "%d: %s", off, v)
		})
		sb.WriteString("}\n")
	}
	return sb.String()
}
