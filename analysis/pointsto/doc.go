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

// Package pointsto is a non-relational memory domain tracking, for every field of every region, the symbolic
// addresses the field may point to and whether it may hold a non-pointer value.
//
// It is the child domain used by the heap segment in the scenario interpreter and in tests. Since it records no
// relation between fields, the ghost-edge operations of the heap segment are the identity.
package pointsto
