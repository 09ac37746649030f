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
Package absint contains the vocabulary shared by the memory domains of the abstract interpreter.

# Identifiers

A [MemVar] is a content handle: it names a region of memory in a child domain (a register, a global, the contents
of a heap object, or a shadow copy of such contents). An [AddrVar] is a symbolic address, i.e. the abstract value of
a pointer to the start of a heap region. Both are allocated with fresh, strictly increasing identifiers, so the
"oldest" of a set of identifiers is its minimum.

# Persistent sets

[Set] is a persistent ordered set. Insertions and removals return new sets and never modify the receiver, which
makes it cheap to fork abstract states.

# Signals

Refinements of an abstract state may turn out to have no concrete instances. Such refinements return an error
wrapping [ErrUnreachable]; callers drop the corresponding branch. Constructs that are recognized but not implemented
return an [UnsupportedError] (see [Unimplemented]); these must propagate to the analysis driver. [Outcome] is the
sum of the three possible results of a branch.

# Child domains

[MemoryDomain] lists the operations a child domain must offer to the heap segment.
*/
package absint
