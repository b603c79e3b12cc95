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
	"errors"

	"github.com/searchkit/nodepool/conn"
)

// ErrNoConnections is returned when a selector is given no candidates.
// Pools never do this; it indicates a bug in the caller.
var ErrNoConnections = errors.New("selector: no connections to select from")

// Selector chooses one connection out of a non-empty ordered set.
// Implementations must be safe for concurrent use. Apart from rotation
// state, a Select call has no side effects.
type Selector interface {
	Select(conns conn.Conns) (conn.Conn, error)
}

// Func adapts a function to the Selector interface. The function is only
// called with non-empty sets.
type Func func(conns conn.Conns) conn.Conn

// Select implements the Selector interface.
func (f Func) Select(conns conn.Conns) (conn.Conn, error) {
	if conns.Len() == 0 {
		return nil, ErrNoConnections
	}
	return f(conns), nil
}
