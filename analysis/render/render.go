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

// Package render provides functions to build the region graph of a heap segment.
// This is used to render the graph in a GraphViz format.
package render

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
	"github.com/awslabs/ar-heap-tools/analysis/heap"
	"github.com/awslabs/ar-heap-tools/internal/graphutil"
	"gonum.org/v1/gonum/graph/encoding/dot"
)

// connectorPrefix marks the labels of connector edges, to distinguish them from pointer edges
const connectorPrefix = "c"

// BuildGraph returns the region graph of the segment: a node per known region, an edge per possible pointer found
// in the child state, and an edge per connector. Summary regions are drawn with a double border, roots as ellipses,
// and the regions on a cycle in red.
func BuildGraph[D absint.MemoryDomain[D]](seg *heap.Segment[D], state D) *graphutil.RegionGraph {
	g := graphutil.NewRegionGraph()
	for _, r := range seg.Regions() {
		id := g.AddNode(key(r.Content), fmt.Sprintf("%s @ %s\\n%s", r.Content, r.Address, r.Size))
		g.SetNodeAttribute(id, "shape", "box")
		if r.IsSummary {
			g.SetNodeAttribute(id, "peripheries", "2")
		}
	}
	for _, root := range seg.NonHeapRegions().Items() {
		id := g.AddNode(key(root), root.String())
		g.SetNodeAttribute(id, "shape", "ellipse")
	}

	for _, src := range seg.KnownRegions().Items() {
		for _, target := range state.FindPossiblePointerTargets(src) {
			tgt, ok := seg.Region(target.Address)
			if !ok {
				continue
			}
			g.AddEdge(g.NodeID(key(src)), g.NodeID(key(tgt.Content)), target.Path.String())
		}
	}
	for _, c := range seg.Connectors() {
		g.AddEdge(g.NodeID(key(c.ID.Src)), g.NodeID(key(c.ID.Tgt)), connectorPrefix+c.ID.Path.String())
	}

	for _, cycle := range graphutil.FindAllElementaryCycles(g) {
		for _, id := range cycle {
			g.SetNodeAttribute(id, "color", "red")
		}
	}
	return g
}

func key(m absint.MemVar) string {
	return "r" + strconv.FormatInt(m.ID(), 10)
}

// DOT returns the Graphviz representation of the region graph of the segment
func DOT[D absint.MemoryDomain[D]](name string, seg *heap.Segment[D], state D) ([]byte, error) {
	return dot.Marshal(BuildGraph(seg, state), name, "", "  ")
}

// GraphvizToFile writes the region graphs of the states to filename, one graph per state
func GraphvizToFile[D absint.MemoryDomain[D]](filename string, states []heap.SegmentWithState[D]) error {
	var buf bytes.Buffer
	for i, st := range states {
		b, err := DOT(fmt.Sprintf("state%d", i), st.Segment, st.State)
		if err != nil {
			return fmt.Errorf("could not render state %d: %w", i, err)
		}
		buf.Write(b)
		buf.WriteString("\n")
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("could not write graph to %s: %w", filename, err)
	}
	return nil
}
