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

package nodepool

import (
	"github.com/searchkit/nodepool/conn"
	"github.com/searchkit/nodepool/internal"
)

func (p *pool) SetClock(clock internal.Clock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
}

func (p *SniffingPool) Seeds() []conn.Conn {
	return p.seeds
}
