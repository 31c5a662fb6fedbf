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

package workspace

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that role literals are an exact, case-sensitive closed set.
// Scope: Unit Test
// Security: Prevents privilege confusion from near-miss role strings
// Expected: The three literals parse; any other casing or value is rejected.
// Test Case ID: ROLE-01
func TestParseRole_ExactLiterals(t *testing.T) {
	cases := map[string]Role{
		"Developer":       RoleDeveloper,
		"Project Manager": RoleProjectManager,
		"Admin":           RoleAdmin,
	}
	for literal, want := range cases {
		got, err := ParseRole(literal)
		require.NoError(t, err, literal)
		assert.Equal(t, want, got)
		assert.Equal(t, literal, got.String())
	}

	for _, bad := range []string{"admin", "ADMIN", "ProjectManager", "project manager", "", "Owner"} {
		_, err := ParseRole(bad)
		assert.True(t, errors.Is(err, ErrInvalidRole), bad)
	}
}

// TestPurpose: Validates the role ordering Developer < Project Manager < Admin.
// Scope: Unit Test
// Expected: AtLeast is monotone and the zero value grants nothing.
// Test Case ID: ROLE-02
func TestRole_Ordering(t *testing.T) {
	assert.True(t, RoleAdmin.AtLeast(RoleProjectManager))
	assert.True(t, RoleProjectManager.AtLeast(RoleProjectManager))
	assert.True(t, RoleProjectManager.AtLeast(RoleDeveloper))
	assert.False(t, RoleDeveloper.AtLeast(RoleProjectManager))
	assert.False(t, RoleUnknown.AtLeast(RoleUnknown))
}

func TestRole_JSON(t *testing.T) {
	b, err := json.Marshal(map[string]Role{"role": RoleProjectManager})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"Project Manager"}`, string(b))

	var out struct {
		Role Role `json:"role"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"role":"Admin"}`), &out))
	assert.Equal(t, RoleAdmin, out.Role)

	assert.Error(t, json.Unmarshal([]byte(`{"role":"admin"}`), &out))
}

func TestParsePinType_CaseInsensitive(t *testing.T) {
	for in, want := range map[string]PinType{
		"Tenant": PinTenant, "project": PinProject, "SPRINT": PinSprint, "iSsUe": PinIssue,
	} {
		got, err := ParsePinType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePinType("board")
	assert.ErrorIs(t, err, ErrInvalidPinType)
}
