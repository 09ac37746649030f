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
	"strings"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
	"github.com/samber/lo"
)

// Partitioning groups the heap regions by the set of roots that may point to them. Two regions are in the same class
// iff exactly the same roots may point to them; regions that no root points to form one class.
type Partitioning struct {
	roots   map[absint.MemVar]absint.MemVarSet
	classes []absint.MemVarSet
}

// Partition computes the alias classes of the heap regions of table. The roots are the non-heap regions (registers,
// globals, stack slots) and the child is queried for their possible targets.
func Partition[D absint.MemoryDomain[D]](table RegionTable, roots absint.MemVarSet, child D) Partitioning {
	heapToRoots := map[absint.MemVar]absint.MemVarSet{}
	for _, r := range table.All() {
		heapToRoots[r.Content] = absint.MemVarSet{}
	}
	for _, root := range roots.Items() {
		for _, target := range child.FindPossiblePointerTargets(root) {
			region, ok := table.Get(target.Address)
			if !ok {
				continue
			}
			heapToRoots[region.Content] = heapToRoots[region.Content].Insert(root)
		}
	}
	return newPartitioning(heapToRoots)
}

func newPartitioning(heapToRoots map[absint.MemVar]absint.MemVarSet) Partitioning {
	regions := lo.Keys(heapToRoots)
	sort.Slice(regions, func(i, j int) bool { return regions[i].Compare(regions[j]) < 0 })
	groups := lo.GroupBy(regions, func(r absint.MemVar) string { return setKey(heapToRoots[r]) })
	classes := lo.MapToSlice(groups, func(_ string, members []absint.MemVar) absint.MemVarSet {
		return absint.MemVars(members...)
	})
	sort.Slice(classes, func(i, j int) bool {
		mi, _ := classes[i].Min()
		mj, _ := classes[j].Min()
		return mi.Compare(mj) < 0
	})
	return Partitioning{roots: heapToRoots, classes: classes}
}

// setKey identifies a set by the ids of its elements; names are not unique
func setKey(s absint.MemVarSet) string {
	ids := lo.Map(s.Items(), func(m absint.MemVar, _ int) string { return strconv.FormatInt(m.ID(), 10) })
	return strings.Join(ids, ",")
}

// Classes returns the partitions, ordered by their oldest region
func (p Partitioning) Classes() []absint.MemVarSet {
	return p.classes
}

// RootsOf returns the roots that may point to region
func (p Partitioning) RootsOf(region absint.MemVar) (absint.MemVarSet, bool) {
	s, ok := p.roots[region]
	return s, ok
}

// Contains returns true if region is a partitioned heap region
func (p Partitioning) Contains(region absint.MemVar) bool {
	_, ok := p.roots[region]
	return ok
}

// ClassOf returns the partition of region
func (p Partitioning) ClassOf(region absint.MemVar) absint.MemVarSet {
	c, _ := lo.Find(p.classes, func(s absint.MemVarSet) bool { return s.Contains(region) })
	return c
}

// Regions returns the partitioned regions in order
func (p Partitioning) Regions() []absint.MemVar {
	regions := lo.Keys(p.roots)
	sort.Slice(regions, func(i, j int) bool { return regions[i].Compare(regions[j]) < 0 })
	return regions
}
