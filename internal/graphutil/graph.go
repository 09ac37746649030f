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

package graphutil

import (
	"sort"
	"strings"

	ybgraph "github.com/yourbasic/graph"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/iterator"
)

// RegionGraph is a directed graph between memory regions, with labelled edges. It implements the methods to satisfy
// yourbasic's graph.Iterator and Gonum's graph.Directed, so that both libraries can be used on the same graph.
//
// Node ids are dense: the nodes are numbered 0..Order()-1 in insertion order.
type RegionGraph struct {
	// keys maps node keys to node ids
	keys map[string]int64

	// nodes is indexed by node id
	nodes []RegionNode

	// edges is an adjacency map: edges[x][y] holds the labels of the edges from x to y
	edges map[int64]map[int64][]string
}

// NewRegionGraph returns an empty graph
func NewRegionGraph() *RegionGraph {
	return &RegionGraph{
		keys:  map[string]int64{},
		edges: map[int64]map[int64][]string{},
	}
}

// AddNode adds a node identified by key, and returns its id. If the key is already in the graph, the id of the
// existing node is returned and the label is unchanged.
func (g *RegionGraph) AddNode(key string, label string) int64 {
	if id, ok := g.keys[key]; ok {
		return id
	}
	id := int64(len(g.nodes))
	g.keys[key] = id
	g.nodes = append(g.nodes, RegionNode{id: id, Key: key, Label: label})
	g.edges[id] = map[int64][]string{}
	return id
}

// NodeID returns the id of the node with key, or -1 if there is none
func (g *RegionGraph) NodeID(key string) int64 {
	if id, ok := g.keys[key]; ok {
		return id
	}
	return -1
}

// SetNodeAttribute sets a DOT attribute of the node id
func (g *RegionGraph) SetNodeAttribute(id int64, key, value string) {
	n := &g.nodes[id]
	if n.attrs == nil {
		n.attrs = map[string]string{}
	}
	n.attrs[key] = value
}

// AddEdge adds an edge from -> to with label. Parallel edges are merged into one edge carrying all the labels.
// Edges between unknown ids are ignored.
func (g *RegionGraph) AddEdge(from, to int64, label string) {
	if !g.has(from) || !g.has(to) {
		return
	}
	g.edges[from][to] = append(g.edges[from][to], label)
}

func (g *RegionGraph) has(id int64) bool {
	return id >= 0 && id < int64(len(g.nodes))
}

// Labels returns the labels of the edges from -> to
func (g *RegionGraph) Labels(from, to int64) []string {
	return g.edges[from][to]
}

// Successors returns the ids of the successors of id, in increasing order
func (g *RegionGraph) Successors(id int64) []int64 {
	succs := make([]int64, 0, len(g.edges[id]))
	for w := range g.edges[id] {
		succs = append(succs, w)
	}
	sort.Slice(succs, func(i, j int) bool { return succs[i] < succs[j] })
	return succs
}

// StrongComponents returns the strongly connected components of the graph. A component precedes the components it
// has edges into.
func (g *RegionGraph) StrongComponents() [][]int64 {
	var res [][]int64
	for _, component := range ybgraph.StrongComponents(g) {
		ids := make([]int64, len(component))
		for i, v := range component {
			ids[i] = int64(v)
		}
		res = append(res, ids)
	}
	// yourbasic returns the components in reverse topological order
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}

// Order implements the order of the graph.Iterator interface for the RegionGraph
func (g *RegionGraph) Order() int {
	return len(g.nodes)
}

// Visit implements the graph.Iterator interface for the RegionGraph
func (g *RegionGraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, w := range g.Successors(int64(v)) {
		if do(int(w), int64(len(g.edges[int64(v)][w]))) {
			return true
		}
	}
	return false
}

// *************** Graph interface implementation **********************

// Node implements the Graph interface
func (g *RegionGraph) Node(id int64) graph.Node {
	if !g.has(id) {
		return nil
	}
	return g.nodes[id]
}

// Nodes returns the set of nodes in the graph
func (g *RegionGraph) Nodes() graph.Nodes {
	nodes := make([]graph.Node, len(g.nodes))
	for i, n := range g.nodes {
		nodes[i] = n
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the set of nodes reachable in one step from the id
func (g *RegionGraph) From(id int64) graph.Nodes {
	var nodes []graph.Node
	for _, w := range g.Successors(id) {
		nodes = append(nodes, g.nodes[w])
	}
	if len(nodes) == 0 {
		return graph.Empty
	}
	return iterator.NewOrderedNodes(nodes)
}

// To returns the set of nodes that reach the id in one step
func (g *RegionGraph) To(id int64) graph.Nodes {
	var nodes []graph.Node
	for _, n := range g.nodes {
		if _, ok := g.edges[n.id][id]; ok {
			nodes = append(nodes, n)
		}
	}
	if len(nodes) == 0 {
		return graph.Empty
	}
	return iterator.NewOrderedNodes(nodes)
}

// HasEdgeBetween returns a boolean indicating whether an edge exists between the two node identifiers
func (g *RegionGraph) HasEdgeBetween(xid, yid int64) bool {
	return g.HasEdgeFromTo(xid, yid) || g.HasEdgeFromTo(yid, xid)
}

// HasEdgeFromTo returns a boolean indicating whether an edge exists from uid to vid
func (g *RegionGraph) HasEdgeFromTo(uid, vid int64) bool {
	_, ok := g.edges[uid][vid]
	return ok
}

// Edge returns the edge between the two identifiers (nil if none exists)
func (g *RegionGraph) Edge(uid, vid int64) graph.Edge {
	labels, ok := g.edges[uid][vid]
	if !ok {
		return nil
	}
	return RegionEdge{from: g.nodes[uid], to: g.nodes[vid], Labels: labels}
}

// *************** Nodes implementation **********************

// RegionNode is a node of a RegionGraph. It implements the graph.Node interface, and carries DOT attributes.
type RegionNode struct {
	id    int64
	Key   string
	Label string
	attrs map[string]string
}

// ID returns the id of the node
func (n RegionNode) ID() int64 {
	return n.id
}

// DOTID returns the key of the node, used as its name in DOT output
func (n RegionNode) DOTID() string {
	return n.Key
}

// Attributes returns the DOT attributes of the node
func (n RegionNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "label", Value: quote(n.Label)}}
	keys := make([]string, 0, len(n.attrs))
	for k := range n.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, encoding.Attribute{Key: k, Value: n.attrs[k]})
	}
	return attrs
}

func (n RegionNode) String() string {
	return n.Label
}

// *************** Edge implementation **********************

// RegionEdge implements the graph.Edge interface. Its labels are those of the parallel edges it stands for.
type RegionEdge struct {
	from   RegionNode
	to     RegionNode
	Labels []string
}

// From returns the origin of the edge
func (e RegionEdge) From() graph.Node {
	return e.from
}

// To returns the destination of the edge
func (e RegionEdge) To() graph.Node {
	return e.to
}

// ReversedEdge returns a new value representing the reversed edge
func (e RegionEdge) ReversedEdge() graph.Edge {
	return RegionEdge{from: e.to, to: e.from, Labels: e.Labels}
}

// Attributes returns the DOT attributes of the edge
func (e RegionEdge) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: quote(strings.Join(e.Labels, ","))}}
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
