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

// Package clocktest provides a fake clock for tests that exercise
// sniffing and revalidation schedules.
package clocktest

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/searchkit/nodepool/internal"
)

// FakeClock is an internal.Clock whose time only moves when advanced.
type FakeClock interface {
	internal.Clock
	Advance(d time.Duration)
}

// NewFakeClock returns a FakeClock set to an arbitrary fixed instant.
func NewFakeClock() FakeClock {
	return fakeClock{clockwork.NewFakeClock()}
}

// clockwork v0.4 exposes FakeClock as an interface.
type fakeClock struct {
	clockwork.FakeClock
}

var _ FakeClock = fakeClock{}
