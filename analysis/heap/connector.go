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

// ConnectorID identifies a connector: the field at Path in region Src points to region Tgt.
type ConnectorID struct {
	Src  absint.MemVar
	Path absint.PathLabel
	Tgt  absint.MemVar
}

// Compare orders connector identifiers by source, target and then path
func (id ConnectorID) Compare(other ConnectorID) int {
	if c := id.Src.Compare(other.Src); c != 0 {
		return c
	}
	if c := id.Tgt.Compare(other.Tgt); c != 0 {
		return c
	}
	return id.Path.Compare(other.Path)
}

// IsSelfLoop returns true if the connector starts and ends at the same region
func (id ConnectorID) IsSelfLoop() bool { return id.Src == id.Tgt }

// AttachedTo returns true if region is one of the endpoints of the connector
func (id ConnectorID) AttachedTo(region absint.MemVar) bool {
	return id.Src == region || id.Tgt == region
}

// AttachedAt returns true if the connector starts at a field of region within offsets
func (id ConnectorID) AttachedAt(region absint.MemVar, offsets absint.Interval) bool {
	return id.Src == region && id.Path.Is(offsets)
}

// Spans returns true if the connector goes from src to tgt
func (id ConnectorID) Spans(src, tgt absint.MemVar) bool {
	return id.Src == src && id.Tgt == tgt
}

// SpansFrom returns true if the connector starts at region
func (id ConnectorID) SpansFrom(region absint.MemVar) bool { return id.Src == region }

// SpansTo returns true if the connector ends at region
func (id ConnectorID) SpansTo(region absint.MemVar) bool { return id.Tgt == region }

// SpansFromPath returns true if the connector starts at the field path of region
func (id ConnectorID) SpansFromPath(region absint.MemVar, path absint.PathLabel) bool {
	return id.Src == region && id.Path == path
}

// WithSrc returns the identifier with source src
func (id ConnectorID) WithSrc(src absint.MemVar) ConnectorID {
	id.Src = src
	return id
}

// WithTgt returns the identifier with target tgt
func (id ConnectorID) WithTgt(tgt absint.MemVar) ConnectorID {
	id.Tgt = tgt
	return id
}

// Move replaces every endpoint from by to
func (id ConnectorID) Move(from, to absint.MemVar) ConnectorID {
	if id.Src == from {
		id.Src = to
	}
	if id.Tgt == from {
		id.Tgt = to
	}
	return id
}

func (id ConnectorID) String() string {
	return fmt.Sprintf("%s --%s--> %s", id.Src, id.Path, id.Tgt)
}

// ConnectorData holds the shadow content handles of a connector: copies of the source and target regions that
// carry the facts relating them in the child domain.
type ConnectorData struct {
	Src absint.MemVar
	Tgt absint.MemVar

	// Transitive is true if the connector was obtained by composing two connectors
	Transitive bool
}

// ChildSupportSet returns the shadow handles
func (d ConnectorData) ChildSupportSet() absint.MemVarSet {
	return absint.MemVars(d.Src, d.Tgt)
}

func (d ConnectorData) String() string {
	if d.Transitive {
		return fmt.Sprintf("(%s, %s)*", d.Src, d.Tgt)
	}
	return fmt.Sprintf("(%s, %s)", d.Src, d.Tgt)
}

// Connector is an identifier with its data
type Connector struct {
	ID   ConnectorID
	Data ConnectorData
}

func (c Connector) String() string {
	return fmt.Sprintf("%s %s", c.ID, c.Data)
}

// ConnectorStore is a persistent map from connector identifiers to their data.
// The zero value is an empty store.
type ConnectorStore struct {
	m *immutable.SortedMap[ConnectorID, ConnectorData]
}

// EmptyConnectorStore returns a store without connectors
func EmptyConnectorStore() ConnectorStore {
	return ConnectorStore{m: absint.NewSortedMap[ConnectorID, ConnectorData]()}
}

func (s ConnectorStore) tree() *immutable.SortedMap[ConnectorID, ConnectorData] {
	if s.m == nil {
		return absint.NewSortedMap[ConnectorID, ConnectorData]()
	}
	return s.m
}

// Add binds id to data. Binding an identifier twice is a programming error and panics.
func (s ConnectorStore) Add(id ConnectorID, data ConnectorData) ConnectorStore {
	if s.Contains(id) {
		panic(fmt.Sprintf("connector %s is already bound", id))
	}
	return ConnectorStore{m: s.tree().Set(id, data)}
}

// Put binds id to data, replacing any previous binding
func (s ConnectorStore) Put(id ConnectorID, data ConnectorData) ConnectorStore {
	return ConnectorStore{m: s.tree().Set(id, data)}
}

// Remove deletes the connector id
func (s ConnectorStore) Remove(id ConnectorID) ConnectorStore {
	if !s.Contains(id) {
		return s
	}
	return ConnectorStore{m: s.m.Delete(id)}
}

// Get returns the data of connector id
func (s ConnectorStore) Get(id ConnectorID) (ConnectorData, bool) {
	if s.m == nil {
		return ConnectorData{}, false
	}
	return s.m.Get(id)
}

// Contains returns true if id is bound in the store
func (s ConnectorStore) Contains(id ConnectorID) bool {
	_, ok := s.Get(id)
	return ok
}

// Len returns the number of connectors
func (s ConnectorStore) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// All returns the connectors in identifier order. The slice is a snapshot: the store can be modified while iterating
// over it.
func (s ConnectorStore) All() []Connector {
	return s.Filter(func(ConnectorID) bool { return true })
}

// Filter returns the connectors whose identifier satisfies keep
func (s ConnectorStore) Filter(keep func(ConnectorID) bool) []Connector {
	if s.m == nil {
		return nil
	}
	var res []Connector
	it := s.m.Iterator()
	for !it.Done() {
		id, data, _ := it.Next()
		if keep(id) {
			res = append(res, Connector{ID: id, Data: data})
		}
	}
	return res
}

// ComingFrom returns the connectors starting at region
func (s ConnectorStore) ComingFrom(region absint.MemVar) []Connector {
	return s.Filter(func(id ConnectorID) bool { return id.SpansFrom(region) })
}

// GoingTo returns the connectors ending at region
func (s ConnectorStore) GoingTo(region absint.MemVar) []Connector {
	return s.Filter(func(id ConnectorID) bool { return id.SpansTo(region) })
}

// AttachedTo returns the connectors with region as one of their endpoints
func (s ConnectorStore) AttachedTo(region absint.MemVar) []Connector {
	return s.Filter(func(id ConnectorID) bool { return id.AttachedTo(region) })
}

// ChildSupportSet returns all the shadow handles of the store
func (s ConnectorStore) ChildSupportSet() absint.MemVarSet {
	var res absint.MemVarSet
	for _, c := range s.All() {
		res = res.Insert(c.Data.Src, c.Data.Tgt)
	}
	return res
}

// ConnectorSplit is the result of splitting two connector stores by identifier
type ConnectorSplit struct {
	OnlyInFirst []Connector
	// InBothButDiffering holds the connectors of the first store whose identifier is bound to different data in the
	// second store
	InBothButDiffering []Connector
	OnlyInSecond       []Connector
}

// Split compares s and other identifier by identifier
func (s ConnectorStore) Split(other ConnectorStore) ConnectorSplit {
	var split ConnectorSplit
	for _, c := range s.All() {
		d, ok := other.Get(c.ID)
		if !ok {
			split.OnlyInFirst = append(split.OnlyInFirst, c)
		} else if d != c.Data {
			split.InBothButDiffering = append(split.InBothButDiffering, c)
		}
	}
	for _, c := range other.All() {
		if !s.Contains(c.ID) {
			split.OnlyInSecond = append(split.OnlyInSecond, c)
		}
	}
	return split
}
