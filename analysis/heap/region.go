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
	"github.com/benbjohnson/immutable"
)

// Size is the size in bytes of a heap region, if it is known.
type Size struct {
	Bytes int64
	Known bool
}

// KnownSize returns the size of a region of b bytes
func KnownSize(b int64) Size { return Size{Bytes: b, Known: true} }

// UnknownSize is the size of regions allocated with a non-constant size
var UnknownSize = Size{}

// Join returns the least size describing both s and other
func (s Size) Join(other Size) Size {
	if s == other {
		return s
	}
	return UnknownSize
}

func (s Size) String() string {
	if !s.Known {
		return "?"
	}
	return fmt.Sprintf("%d", s.Bytes)
}

// A Region is an abstract heap cell. It represents one allocated object, or an unbounded number of objects if
// IsSummary is set.
type Region struct {
	// Address is the symbolic address of the region, the abstract value of pointers to it
	Address absint.AddrVar

	// Content is the handle of the contents of the region in the child domain
	Content absint.MemVar

	// Size of the region
	Size Size

	// IsSummary is true if the region stands for several concrete objects
	IsSummary bool
}

// NewRegion returns a concrete region
func NewRegion(addr absint.AddrVar, content absint.MemVar, size Size) Region {
	return Region{Address: addr, Content: content, Size: size}
}

// WithContent returns r with the content handle mv
func (r Region) WithContent(mv absint.MemVar) Region {
	r.Content = mv
	return r
}

// WithAddress returns r with the address addr
func (r Region) WithAddress(addr absint.AddrVar) Region {
	r.Address = addr
	return r
}

// WithSummaryFlag returns r with the summary flag set to b
func (r Region) WithSummaryFlag(b bool) Region {
	r.IsSummary = b
	return r
}

// ChildSupportSet returns the content handles of the child domain used by r
func (r Region) ChildSupportSet() absint.MemVarSet {
	return absint.MemVars(r.Content)
}

func (r Region) String() string {
	kind := "concrete"
	if r.IsSummary {
		kind = "summary"
	}
	return fmt.Sprintf("%s@%s[%s, %s]", r.Content, r.Address, r.Size, kind)
}

// RegionTable is the persistent bijection between the symbolic addresses and the heap regions.
// The zero value is not usable, use EmptyRegionTable.
type RegionTable struct {
	byAddress *immutable.SortedMap[absint.AddrVar, Region]
	byContent *immutable.SortedMap[absint.MemVar, absint.AddrVar]
}

// EmptyRegionTable returns a table without regions
func EmptyRegionTable() RegionTable {
	return RegionTable{
		byAddress: absint.NewSortedMap[absint.AddrVar, Region](),
		byContent: absint.NewSortedMap[absint.MemVar, absint.AddrVar](),
	}
}

// Bind returns a table where r is bound to its address and content handle. Regions previously bound to the address
// or to the content handle of r are removed.
func (t RegionTable) Bind(r Region) RegionTable {
	if old, ok := t.byAddress.Get(r.Address); ok {
		t = t.Remove(old.Address)
	}
	if oldAddr, ok := t.byContent.Get(r.Content); ok {
		t = t.Remove(oldAddr)
	}
	return RegionTable{
		byAddress: t.byAddress.Set(r.Address, r),
		byContent: t.byContent.Set(r.Content, r.Address),
	}
}

// Remove returns a table without the region at addr
func (t RegionTable) Remove(addr absint.AddrVar) RegionTable {
	r, ok := t.byAddress.Get(addr)
	if !ok {
		return t
	}
	return RegionTable{
		byAddress: t.byAddress.Delete(addr),
		byContent: t.byContent.Delete(r.Content),
	}
}

// Get returns the region at address addr
func (t RegionTable) Get(addr absint.AddrVar) (Region, bool) {
	return t.byAddress.Get(addr)
}

// GetByContent returns the region whose contents are mv
func (t RegionTable) GetByContent(mv absint.MemVar) (Region, bool) {
	addr, ok := t.byContent.Get(mv)
	if !ok {
		return Region{}, false
	}
	return t.byAddress.Get(addr)
}

// ContainsAddress returns true if a region is bound at addr
func (t RegionTable) ContainsAddress(addr absint.AddrVar) bool {
	_, ok := t.byAddress.Get(addr)
	return ok
}

// ContainsContent returns true if mv is the content handle of a region of the table
func (t RegionTable) ContainsContent(mv absint.MemVar) bool {
	_, ok := t.byContent.Get(mv)
	return ok
}

// Len returns the number of regions
func (t RegionTable) Len() int {
	return t.byAddress.Len()
}

// All returns the regions ordered by address
func (t RegionTable) All() []Region {
	regions := make([]Region, 0, t.byAddress.Len())
	it := t.byAddress.Iterator()
	for !it.Done() {
		_, r, _ := it.Next()
		regions = append(regions, r)
	}
	return regions
}

// Regions returns the content handles of all the regions
func (t RegionTable) Regions() absint.MemVarSet {
	var s absint.MemVarSet
	it := t.byContent.Iterator()
	for !it.Done() {
		mv, _, _ := it.Next()
		s = s.Insert(mv)
	}
	return s
}

// Addresses returns the addresses of all the regions
func (t RegionTable) Addresses() absint.AddrSet {
	var s absint.AddrSet
	it := t.byAddress.Iterator()
	for !it.Done() {
		addr, _, _ := it.Next()
		s = s.Insert(addr)
	}
	return s
}

// CheckBijection returns an error if the two indices of the table disagree
func (t RegionTable) CheckBijection() error {
	if t.byAddress.Len() != t.byContent.Len() {
		return fmt.Errorf("region table has %d addresses but %d content handles",
			t.byAddress.Len(), t.byContent.Len())
	}
	for _, r := range t.All() {
		addr, ok := t.byContent.Get(r.Content)
		if !ok {
			return fmt.Errorf("region %s is not indexed by its content", r)
		}
		if addr != r.Address {
			return fmt.Errorf("content %s of region %s is indexed at address %s", r.Content, r, addr)
		}
	}
	return nil
}

// RegionSplit is the result of splitting two region tables by address
type RegionSplit struct {
	// OnlyInFirst are the regions whose address is only bound in the first table
	OnlyInFirst []Region
	// InBothButDiffering are the regions of the first table whose address is bound to a different region in the
	// second table
	InBothButDiffering []Region
	// OnlyInSecond are the regions whose address is only bound in the second table
	OnlyInSecond []Region
}

// Split compares t with other address by address
func (t RegionTable) Split(other RegionTable) RegionSplit {
	var split RegionSplit
	for _, r := range t.All() {
		o, ok := other.Get(r.Address)
		if !ok {
			split.OnlyInFirst = append(split.OnlyInFirst, r)
		} else if o != r {
			split.InBothButDiffering = append(split.InBothButDiffering, r)
		}
	}
	for _, o := range other.All() {
		if !t.ContainsAddress(o.Address) {
			split.OnlyInSecond = append(split.OnlyInSecond, o)
		}
	}
	return split
}
