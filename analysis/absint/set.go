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

import (
	"strings"

	"github.com/benbjohnson/immutable"
)

// Ordered is implemented by the identifiers that can be stored in persistent collections.
type Ordered[T any] interface {
	Compare(T) int
}

// Comparer adapts an Ordered type to the comparer interface of the persistent collections.
type Comparer[T Ordered[T]] struct{}

// Compare returns a.Compare(b)
func (Comparer[T]) Compare(a, b T) int { return a.Compare(b) }

// NewSortedMap returns an empty persistent map with keys of an Ordered type.
func NewSortedMap[K Ordered[K], V any]() *immutable.SortedMap[K, V] {
	return immutable.NewSortedMap[K, V](Comparer[K]{})
}

// Set is a persistent ordered set. The zero value is the empty set.
type Set[T Ordered[T]] struct {
	m *immutable.SortedMap[T, struct{}]
}

// MemVarSet is a set of memory variables
type MemVarSet = Set[MemVar]

// AddrSet is a set of symbolic addresses
type AddrSet = Set[AddrVar]

// NewSet returns the set containing xs
func NewSet[T Ordered[T]](xs ...T) Set[T] {
	return Set[T]{}.Insert(xs...)
}

// MemVars returns the set of memory variables xs
func MemVars(xs ...MemVar) MemVarSet { return NewSet(xs...) }

// Addrs returns the set of addresses xs
func Addrs(xs ...AddrVar) AddrSet { return NewSet(xs...) }

func (s Set[T]) tree() *immutable.SortedMap[T, struct{}] {
	if s.m == nil {
		return NewSortedMap[T, struct{}]()
	}
	return s.m
}

// Len returns the number of elements of s
func (s Set[T]) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// IsEmpty returns true if s has no elements
func (s Set[T]) IsEmpty() bool { return s.Len() == 0 }

// Contains returns true if x is in s
func (s Set[T]) Contains(x T) bool {
	if s.m == nil {
		return false
	}
	_, ok := s.m.Get(x)
	return ok
}

// Insert returns s ∪ xs
func (s Set[T]) Insert(xs ...T) Set[T] {
	if len(xs) == 0 {
		return s
	}
	m := s.tree()
	for _, x := range xs {
		m = m.Set(x, struct{}{})
	}
	return Set[T]{m}
}

// Remove returns s \ {x}
func (s Set[T]) Remove(x T) Set[T] {
	if !s.Contains(x) {
		return s
	}
	return Set[T]{s.m.Delete(x)}
}

// Union returns s ∪ other
func (s Set[T]) Union(other Set[T]) Set[T] {
	if s.Len() < other.Len() {
		s, other = other, s
	}
	return s.Insert(other.Items()...)
}

// Difference returns s \ other
func (s Set[T]) Difference(other Set[T]) Set[T] {
	r := s
	for _, x := range other.Items() {
		r = r.Remove(x)
	}
	return r
}

// Intersect returns s ∩ other
func (s Set[T]) Intersect(other Set[T]) Set[T] {
	var r Set[T]
	for _, x := range s.Items() {
		if other.Contains(x) {
			r = r.Insert(x)
		}
	}
	return r
}

// Equal returns true if s and other contain the same elements
func (s Set[T]) Equal(other Set[T]) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, x := range s.Items() {
		if !other.Contains(x) {
			return false
		}
	}
	return true
}

// SubsetOf returns true if every element of s is in other
func (s Set[T]) SubsetOf(other Set[T]) bool {
	for _, x := range s.Items() {
		if !other.Contains(x) {
			return false
		}
	}
	return true
}

// Min returns the smallest element of s. The boolean is false if s is empty.
func (s Set[T]) Min() (T, bool) {
	var zero T
	if s.Len() == 0 {
		return zero, false
	}
	it := s.m.Iterator()
	x, _, ok := it.Next()
	return x, ok
}

// Items returns the elements of s in increasing order.
func (s Set[T]) Items() []T {
	if s.Len() == 0 {
		return nil
	}
	items := make([]T, 0, s.m.Len())
	it := s.m.Iterator()
	for !it.Done() {
		x, _, _ := it.Next()
		items = append(items, x)
	}
	return items
}

func (s Set[T]) String() string {
	var b strings.Builder
	b.WriteString("{")
	for i, x := range s.Items() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(toString(x))
	}
	b.WriteString("}")
	return b.String()
}

func toString(x any) string {
	if s, ok := x.(interface{ String() string }); ok {
		return s.String()
	}
	return "?"
}
