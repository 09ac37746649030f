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
Package config provides a simple way to manage configuration files.

Use [Load] to load a configuration from a specific filename, or [SetGlobalConfig] and then [LoadGlobal] to set a
global configuration file name and load it. [NewDefault] returns the configuration used when no file is given.

A configuration file is a yaml file. All the options of the heap domain are top-level keys:

	log-level: 4                 # 1 (errors) to 5 (trace)
	prime-connectors: true       # relate pointers and targets before folding regions
	transitive-connectors: false # experimental
	check-invariants: true       # check the region table and connectors after every transformation
	strict-malloc: false         # reject malloc calls with a non-constant size
	max-regions: 8               # fold the heap automatically above 8 regions
	scenario-dirs:
	  - scenarios

# Logging

[NewLogGroup] returns a [LogGroup] printing messages up to the configured log level on standard error.
*/
package config
