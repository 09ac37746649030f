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

package pointsto

import (
	"fmt"
	"strings"

	"github.com/awslabs/ar-heap-tools/analysis/absint"
)

// Value is the abstract value of a field: the addresses it may point to, and whether it may hold a non-pointer.
// A non-pointer value may be a known constant.
type Value struct {
	Targets absint.AddrSet
	Scalar  bool
	Const   int64
	IsConst bool
}

// Unknown is the value of fields that were never written: any non-pointer value
var Unknown = Value{Scalar: true}

// PointsTo returns the value of a pointer to one of addrs
func PointsTo(addrs ...absint.AddrVar) Value {
	return Value{Targets: absint.Addrs(addrs...)}
}

// Constant returns the value holding exactly c
func Constant(c int64) Value {
	return Value{Scalar: true, Const: c, IsConst: true}
}

// IsEmpty returns true if the value has no concretization
func (v Value) IsEmpty() bool {
	return !v.Scalar && v.Targets.IsEmpty()
}

// Equal returns true if v and w are the same value
func (v Value) Equal(w Value) bool {
	return v.Scalar == w.Scalar && v.IsConst == w.IsConst && v.Const == w.Const && v.Targets.Equal(w.Targets)
}

// Join returns the least value describing both v and w
func (v Value) Join(w Value) Value {
	res := Value{Targets: v.Targets.Union(w.Targets), Scalar: v.Scalar || w.Scalar}
	switch {
	case v.IsConst && w.IsConst && v.Const == w.Const:
		res.Const, res.IsConst = v.Const, true
	case v.IsConst && !w.Scalar:
		res.Const, res.IsConst = v.Const, true
	case w.IsConst && !v.Scalar:
		res.Const, res.IsConst = w.Const, true
	}
	return res
}

// Meet returns the values described by both v and w. The result may be empty.
func (v Value) Meet(w Value) Value {
	res := Value{Targets: v.Targets.Intersect(w.Targets), Scalar: v.Scalar && w.Scalar}
	if !res.Scalar {
		return res
	}
	switch {
	case v.IsConst && w.IsConst && v.Const != w.Const:
		res.Scalar = false
	case v.IsConst:
		res.Const, res.IsConst = v.Const, true
	case w.IsConst:
		res.Const, res.IsConst = w.Const, true
	}
	return res
}

// SubsetOf returns true if every concrete value of v is a value of w
func (v Value) SubsetOf(w Value) bool {
	if !v.Targets.SubsetOf(w.Targets) {
		return false
	}
	if !v.Scalar {
		return true
	}
	if !w.Scalar {
		return false
	}
	return !w.IsConst || (v.IsConst && v.Const == w.Const)
}

// mapTargets applies f to the targets of v
func (v Value) mapTargets(f func(absint.AddrSet) absint.AddrSet) Value {
	v.Targets = f(v.Targets)
	return v
}

func (v Value) String() string {
	var parts []string
	for _, a := range v.Targets.Items() {
		parts = append(parts, a.String())
	}
	if v.IsConst {
		parts = append(parts, fmt.Sprintf("%d", v.Const))
	} else if v.Scalar {
		parts = append(parts, "?")
	}
	if len(parts) == 0 {
		return "⊥"
	}
	return strings.Join(parts, "|")
}
