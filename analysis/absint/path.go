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

// PathLabel describes the access path of a pointer field inside a region. Only single-step paths are represented:
// a path is the byte offset of the field that holds the pointer.
type PathLabel struct {
	Prefix int64
}

// Path returns the single-step path at offset
func Path(offset int64) PathLabel {
	return PathLabel{Prefix: offset}
}

// Compare orders paths by offset
func (p PathLabel) Compare(other PathLabel) int {
	return compareInt64(p.Prefix, other.Prefix)
}

// Is returns true if the field denoted by the path may be one of the offsets in r.
func (p PathLabel) Is(r Interval) bool {
	return r.Contains(p.Prefix)
}

// Plus composes the path p with the path q. Multi-step paths are not represented, the composition keeps the first
// step only. This loses precision when composing connectors transitively.
func (p PathLabel) Plus(_ PathLabel) PathLabel {
	return p
}

func (p PathLabel) String() string {
	return fmt.Sprintf("+%d", p.Prefix)
}
