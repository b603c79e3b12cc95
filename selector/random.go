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

package selector

import (
	"math/rand"

	"github.com/searchkit/nodepool/conn"
)

// NewRandom returns a selector that picks a connection uniformly at
// random.
func NewRandom() Selector {
	return Func(func(conns conn.Conns) conn.Conn {
		return conns.Get(rand.Intn(conns.Len())) //nolint:gosec // does not need to be cryptographically secure
	})
}
