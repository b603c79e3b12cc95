// Copyright 2023 Buf Technologies, Inc.
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

// Package selector provides strategies for choosing one connection out
// of the connections a pool currently knows about.
//
// This package defines the core interface, [Selector]. Pools call it with
// the ordered candidates that have not yet failed during the current
// request for a connection; the selector picks exactly one of them.
//
// This package also contains several implementations, all in the form of
// functions whose names start with "New": round-robin, sticky round-robin
// and random.
//
// None of the provided implementations make use of the node metadata
// (attribute.Values) of a connection's descriptor. Custom [Selector]
// implementations could, for example to prefer nodes in the caller's
// zone, or to skip nodes whose roles make them poor request targets.
package selector
