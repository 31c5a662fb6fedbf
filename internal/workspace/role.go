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

import "fmt"

// Role is the authority carried by a membership edge.
// Values are ordered: a higher role includes every permission of a lower one.
type Role int

const (
	RoleUnknown Role = iota
	RoleDeveloper
	RoleProjectManager
	RoleAdmin
)

// Role literals as they appear on the wire and in storage. Casing is significant.
const (
	RoleNameDeveloper      = "Developer"
	RoleNameProjectManager = "Project Manager"
	RoleNameAdmin          = "Admin"
)

// ParseRole maps an exact role literal to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case RoleNameDeveloper:
		return RoleDeveloper, nil
	case RoleNameProjectManager:
		return RoleProjectManager, nil
	case RoleNameAdmin:
		return RoleAdmin, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleDeveloper:
		return RoleNameDeveloper
	case RoleProjectManager:
		return RoleNameProjectManager
	case RoleAdmin:
		return RoleNameAdmin
	default:
		return "Unknown"
	}
}

// Valid reports whether r is one of the closed set of roles.
func (r Role) Valid() bool {
	return r >= RoleDeveloper && r <= RoleAdmin
}

// AtLeast reports whether r grants everything min grants.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && r >= min
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
