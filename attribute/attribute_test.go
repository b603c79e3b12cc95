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

package attribute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributes(t *testing.T) {
	t.Parallel()

	var nodeName = NewKey[string]()
	var nodeVersion = NewKey[string]()
	var nodeZone = NewKey[string]()

	attributes := NewValues(
		nodeName.Value("Vesta"),
		nodeVersion.Value("0.90.5"),
		nodeName.Value("Juno"),
	)
	assert.Equal(t, 2, attributes.Len())

	// Attr value overwritten by key re-appearing later
	value, ok := GetValue(attributes, nodeName)
	assert.True(t, ok)
	assert.Equal(t, "Juno", value)

	// Normal attribute value
	value, ok = GetValue(attributes, nodeVersion)
	assert.True(t, ok)
	assert.Equal(t, "0.90.5", value)

	// Attr key not set
	value, ok = GetValue(attributes, nodeZone)
	assert.False(t, ok)
	assert.Equal(t, "", value)
}

func TestZeroValues(t *testing.T) {
	t.Parallel()

	var roles = NewKey[[]string]()
	var empty Values
	assert.Zero(t, empty.Len())
	value, ok := GetValue(empty, roles)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestAttributeKeysUniquePointers(t *testing.T) {
	t.Parallel()

	// Tests that NewKey returns distinct pointers. (If Key
	// were inadvertently defined as an empty struct, then
	// NewKey would always return the same pointer. This
	// guards against such a mistake.)
	assert.NotSame(t, NewKey[string](), NewKey[string]()) //nolint:testifylint
}
