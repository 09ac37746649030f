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

/*
Package heap implements the heap segment of an abstract memory domain for binary code.

The heap is a finite set of regions. Each region has a symbolic address, which is the value of the pointers to it,
and a content handle, under which a child memory domain tracks the values stored in the region. A region is either
concrete (one allocated object) or a summary (any number of objects).

The segment does not track values itself: every operation is forwarded to the child domain D, which must implement
[absint.MemoryDomain]. Child states are passed explicitly and returned with the new segment in a [SegmentWithState].

# Connectors

When regions are folded into a summary, the facts that relate a pointer and its target would be lost. Before
folding, each pointer edge between known regions is recorded as a connector: an edge src --path--> tgt with two shadow
content handles holding copies of both regions. Folding and expanding regions move the connectors with the regions.
When an edge is later known to exist again, the shadows are equated with the current contents of the endpoints and
the connector is removed.

# Operations

  - [Segment.TryPrimitive] handles malloc and foldRegions.
  - [Segment.Dereference] resolves pointers into the heap, materializing summaries.
  - [Segment.MakeCompatible] aligns two segments before their child states are joined.
  - [Segment.InformAboutAssign] must be called on every write to a region.
*/
package heap
