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

	ybgraph "github.com/yourbasic/graph"
)

// FindAllElementaryCycles finds all elementary cycles in the graph. Each cycle starts and ends with its smallest node.
// Self-loops are cycles of length one.
// This uses Donald B. Johnson's algorithm presented in
// "Finding All The Elementary Circuits of a Directed Graph", 1975
func FindAllElementaryCycles(g *RegionGraph) [][]int64 {
	s := &state{cycles: [][]int64{}}
	start := int64(0)
	for start < int64(g.Order()) {
		sub := subgraph{g: g, min: start}
		least := int64(-1)
		for _, component := range ybgraph.StrongComponents(sub) {
			sort.Ints(component)
			node := int64(component[0])
			if node < start || !sub.isCyclic(component) {
				continue
			}
			if least < 0 || node < least {
				least = node
			}
		}
		if least < 0 {
			return s.cycles
		}
		s.stack = []int64{}
		s.blocked = map[int64]bool{}
		s.blist = map[int64]map[int64]bool{}
		s.circuit(least, least, subgraph{g: g, min: least})
		start = least + 1
	}
	return s.cycles
}

// subgraph is the subgraph of g induced by the nodes with an id of at least min
type subgraph struct {
	g   *RegionGraph
	min int64
}

func (s subgraph) Order() int { return s.g.Order() }

func (s subgraph) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	if int64(v) < s.min {
		return false
	}
	return s.g.Visit(v, func(w int, c int64) bool {
		return int64(w) >= s.min && do(w, c)
	})
}

func (s subgraph) successors(v int64) []int64 {
	var res []int64
	for _, w := range s.g.Successors(v) {
		if w >= s.min {
			res = append(res, w)
		}
	}
	return res
}

// isCyclic returns true if the component has a cycle: more than one node, or a self-loop
func (s subgraph) isCyclic(component []int) bool {
	if len(component) > 1 {
		return true
	}
	v := int64(component[0])
	return s.g.HasEdgeFromTo(v, v)
}

type state struct {
	blocked map[int64]bool
	blist   map[int64]map[int64]bool
	stack   []int64
	cycles  [][]int64
}

func (s *state) unblock(u int64) {
	s.blocked[u] = false
	for w := range s.blist[u] {
		delete(s.blist[u], w)
		if s.blocked[w] {
			s.unblock(w)
		}
	}
}

func (s *state) circuit(v int64, i int64, g subgraph) bool {
	f := false
	s.stack = append(s.stack, v)
	s.blocked[v] = true
	for _, w := range g.successors(v) {
		if w == i {
			stackCopy := make([]int64, len(s.stack))
			copy(stackCopy, s.stack)
			stackCopy = append(stackCopy, w)
			s.cycles = append(s.cycles, stackCopy)
			f = true
		} else if !s.blocked[w] {
			if s.circuit(w, i, g) {
				f = true
			}
		}
	}

	if f {
		s.unblock(v)
	} else {
		for _, w := range g.successors(v) {
			m := s.blist[w]
			if m != nil {
				s.blist[w][v] = true
			} else {
				s.blist[w] = map[int64]bool{v: true}
			}
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	return f
}
