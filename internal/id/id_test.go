// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package id

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUUIDv7(t *testing.T) {
	u, err := uuid.Parse(NewUUIDv7())
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), u.Version())
}

// TestPurpose: Validates refresh secrets are 32 random bytes and only stored as a stable digest.
// Scope: Unit Test
// Security: Secrets at rest are hashed
// Expected: Decoded secret is 32 bytes, two secrets differ, digest is deterministic 64-hex.
// Test Case ID: ID-01
func TestNewSecret_AndHash(t *testing.T) {
	a, err := NewSecret()
	require.NoError(t, err)
	b, err := NewSecret()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)

	assert.Len(t, HashSecret(a), 64)
	assert.Equal(t, HashSecret(a), HashSecret(a))
	assert.NotEqual(t, HashSecret(a), HashSecret(b))
}

func TestNewOTP(t *testing.T) {
	for range 50 {
		otp, err := NewOTP(6)
		require.NoError(t, err)
		assert.Len(t, otp, 6)
		assert.Empty(t, strings.Trim(otp, "0123456789"))
	}

	_, err := NewOTP(0)
	assert.Error(t, err)
}

func TestNewJoinCode(t *testing.T) {
	code, err := NewJoinCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, c := range code {
		assert.Contains(t, codeAlphabet, string(c))
	}
}
