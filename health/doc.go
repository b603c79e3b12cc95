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

// Package health tracks the liveness of individual connections.
//
// Liveness is a cached belief: a connection is [StateUnknown] until it is
// first probed, [StateAlive] after a successful ping or sniff, and
// [StateDead] after a failed one. Reading the state never performs I/O.
// Connection implementations embed a [Status] to satisfy the IsAlive,
// MarkAlive and MarkDead methods of the conn.Conn interface.
package health
