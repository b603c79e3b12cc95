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

package health_test

import (
	"sync"
	"testing"

	"github.com/searchkit/nodepool/health"
	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	var status health.Status
	assert.Equal(t, health.StateUnknown, status.State())
	assert.False(t, status.IsAlive())

	status.MarkDead()
	status.MarkDead()
	assert.Equal(t, health.StateDead, status.State())
	assert.EqualValues(t, 2, status.DeadCount())

	status.MarkAlive()
	assert.True(t, status.IsAlive())
	assert.Zero(t, status.DeadCount())
}

func TestStatusConcurrentMarks(t *testing.T) {
	t.Parallel()

	var status health.Status
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status.MarkDead()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 50, status.DeadCount())
	assert.False(t, status.IsAlive())
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", health.StateUnknown.String())
	assert.Equal(t, "alive", health.StateAlive.String())
	assert.Equal(t, "dead", health.StateDead.String())
	assert.Equal(t, "State(7)", health.State(7).String())
}
