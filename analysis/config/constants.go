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

package config

const (
	// DefaultMaxRegions is the default limit on the number of heap regions before summarization is triggered
	// automatically. 0 means that the heap is only summarized on an explicit foldRegions primitive.
	DefaultMaxRegions = 0

	// DefaultPointerSize is the size in bits of the pointers used by the tools when a scenario does not specify it
	DefaultPointerSize = 32
)
