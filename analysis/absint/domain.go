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

package absint

import "fmt"

// PointerTarget is a possible target of a pointer stored in a region: the field at Path may point to Address.
type PointerTarget struct {
	Path    PathLabel
	Address AddrVar
}

func (t PointerTarget) String() string {
	return fmt.Sprintf("%s -> %s", t.Path, t.Address)
}

// MemoryDomain is the interface of the child domain of a heap segment. D is the type of the domain's states;
// every operation returns a new state and leaves the receiver unchanged.
//
// Operations returning an error may fail with an error wrapping ErrUnreachable when the requested refinement has no
// concrete instances.
type MemoryDomain[D any] interface {
	// Introduce adds the symbolic address addr to the state
	Introduce(addr AddrVar) D

	// Project removes the symbolic address addr from the state
	Project(addr AddrVar) D

	// Substitute renames the symbolic address from to the address to
	Substitute(from, to AddrVar) D

	// IntroduceRegion adds an empty region with content handle region
	IntroduceRegion(region MemVar) D

	// ProjectRegion removes the region from the state
	ProjectRegion(region MemVar) D

	// SubstituteRegion renames the region from to the region to
	SubstituteRegion(from, to MemVar) D

	// CopyMemRegion creates the region to with a copy of the contents of from
	CopyMemRegion(from, to MemVar) D

	// CopyAndPaste copies the regions in vars, and the addresses they mention, from the state other
	CopyAndPaste(vars MemVarSet, other D) D

	// FoldNG merges the contents of the second element of each pair into the first one and removes the second
	// element. The contents of the first element over-approximate both.
	FoldNG(pairs []MemVarPair) D

	// FoldRegionsNG is FoldNG where additionally the address eph is merged into the address perm.
	FoldRegionsNG(perm, eph AddrVar, pairs []MemVarPair) D

	// ExpandNG copies the contents of the first element of each pair into the (fresh) second element.
	ExpandNG(pairs []MemVarPair) D

	// ExpandRegionsNG is ExpandNG where additionally the address concrete is introduced as a copy of summary.
	ExpandRegionsNG(summary, concrete AddrVar, pairs []MemVarPair) D

	// AssumeEdgeNG restricts the state such that the pointer stored in field points to addr.
	AssumeEdgeNG(field Field, addr AddrVar) (D, error)

	// BendGhostEdgesNG generalizes the relational facts attached to the edges of the concrete region such that
	// they also hold for the summary region the concrete region is folded into.
	BendGhostEdgesNG(summary, concrete AddrVar, sContents, cContents, pointingToSummary,
		pointingToConcrete MemVarSet) D

	// BendBackGhostEdgesNG is the inverse of BendGhostEdgesNG, applied after materialization.
	BendBackGhostEdgesNG(summary, concrete AddrVar, sContents, cContents, pointingToSummary,
		pointingToConcrete MemVarSet) D

	// ConcretizeAndDisconnectNG commits the content handles concreteNodes to the concrete copy of summary.
	ConcretizeAndDisconnectNG(summary AddrVar, concreteNodes MemVarSet) (D, error)

	// FindPossiblePointerTargets returns the targets that the fields of region may point to.
	FindPossiblePointerTargets(region MemVar) []PointerTarget

	// QueryPtsEdge returns whether the field of size bits at offset in region from points to to.
	QueryPtsEdge(from MemVar, offset int64, size int, to AddrVar) Flag

	// AssumeRegionsAreEqual restricts the state such that both regions have the same contents.
	AssumeRegionsAreEqual(first, second MemVar) (D, error)

	// AssignSymbolicAddressOf stores a pointer to addr in field
	AssignSymbolicAddressOf(field Field, addr AddrVar) D

	// QueryConstant returns the value of v if it is a constant in the state
	QueryConstant(v Value) (int64, bool)
}
