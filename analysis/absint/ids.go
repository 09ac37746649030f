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
	"fmt"

	"go.uber.org/atomic"
)

var (
	memVarCounter  = atomic.NewInt64(0)
	addrVarCounter = atomic.NewInt64(0)
)

// MemVar identifies a region of memory in a child domain.
// The zero value is not a valid identifier.
type MemVar struct {
	id   int64
	name string // for printing only
}

// FreshMemVar returns a memory variable that has never been returned before.
func FreshMemVar() MemVar {
	return MemVar{id: memVarCounter.Inc()}
}

// NewMemVar returns a fresh memory variable that prints as name. Use this for registers and globals.
func NewMemVar(name string) MemVar {
	return MemVar{id: memVarCounter.Inc(), name: name}
}

// ID returns the unique number of the variable. Variables created later have larger numbers.
func (m MemVar) ID() int64 { return m.id }

// IsZero returns true if m is the zero value
func (m MemVar) IsZero() bool { return m.id == 0 }

// Compare orders memory variables by creation time.
func (m MemVar) Compare(other MemVar) int {
	return compareInt64(m.id, other.id)
}

func (m MemVar) String() string {
	if m.name != "" {
		return m.name
	}
	return fmt.Sprintf("m%d", m.id)
}

// AddrVar is a symbolic address, the abstract value of a pointer to the start of a region.
type AddrVar struct {
	id   int64
	name string
}

// FreshAddress returns an address variable that has never been returned before.
func FreshAddress() AddrVar {
	return AddrVar{id: addrVarCounter.Inc()}
}

// NewAddress returns a fresh address variable that prints as name.
func NewAddress(name string) AddrVar {
	return AddrVar{id: addrVarCounter.Inc(), name: name}
}

// ID returns the unique number of the address
func (a AddrVar) ID() int64 { return a.id }

// IsZero returns true if a is the zero value
func (a AddrVar) IsZero() bool { return a.id == 0 }

// Compare orders addresses by creation time.
func (a AddrVar) Compare(other AddrVar) int {
	return compareInt64(a.id, other.id)
}

func (a AddrVar) String() string {
	if a.name != "" {
		return "&" + a.name
	}
	return fmt.Sprintf("a%d", a.id)
}

// MemVarPair pairs two memory variables. For folding operations, First is the surviving variable and Second is
// merged into it. For expansion, First is the original variable and Second is the fresh copy.
type MemVarPair struct {
	First  MemVar
	Second MemVar
}

func (p MemVarPair) String() string {
	return fmt.Sprintf("(%s, %s)", p.First, p.Second)
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
