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
	"math"
)

// Interval is a closed range of offsets [Lo, Hi].
type Interval struct {
	Lo int64
	Hi int64
}

// Top is the interval containing every offset
var Top = Interval{Lo: math.MinInt64, Hi: math.MaxInt64}

// Point returns the interval [x, x]
func Point(x int64) Interval {
	return Interval{Lo: x, Hi: x}
}

// Contains returns true if x is in the interval
func (r Interval) Contains(x int64) bool {
	return r.Lo <= x && x <= r.Hi
}

// IsTop returns true if r contains every offset
func (r Interval) IsTop() bool {
	return r == Top
}

// Constant returns the single element of r, if r has exactly one element
func (r Interval) Constant() (int64, bool) {
	if r.Lo == r.Hi {
		return r.Lo, true
	}
	return 0, false
}

func (r Interval) String() string {
	if r.IsTop() {
		return "⊤"
	}
	if c, ok := r.Constant(); ok {
		return fmt.Sprintf("%d", c)
	}
	return fmt.Sprintf("[%d, %d]", r.Lo, r.Hi)
}

// Flag is the answer of a child domain to a points-to query: the edge definitely exists (FlagOne), definitely does
// not exist (FlagZero), or may exist (FlagTop).
type Flag int

const (
	// FlagZero means the edge does not exist in any concrete state
	FlagZero Flag = iota
	// FlagOne means the edge exists in every concrete state
	FlagOne
	// FlagTop means nothing is known
	FlagTop
)

// IsZero returns true if the flag is FlagZero
func (f Flag) IsZero() bool { return f == FlagZero }

// IsOne returns true if the flag is FlagOne
func (f Flag) IsOne() bool { return f == FlagOne }

func (f Flag) String() string {
	switch f {
	case FlagZero:
		return "0"
	case FlagOne:
		return "1"
	default:
		return "⊤"
	}
}
