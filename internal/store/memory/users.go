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

package memory

import (
	"context"
	"time"

	"github.com/opentrusty/stride/internal/identity"
)

type userRepository struct {
	s *Store
}

func (r *userRepository) Create(ctx context.Context, user *identity.User, credentials *identity.Credentials) error {
	return r.s.update(ctx, func(d *data) error {
		for _, u := range d.users {
			if u.Email == user.Email {
				return identity.ErrEmailTaken
			}
			if u.Username == user.Username {
				return identity.ErrUsernameTaken
			}
		}
		now := r.s.now()
		user.CreatedAt, user.UpdatedAt = now, now
		credentials.UpdatedAt = now
		d.users[user.ID] = clonePtr(user)
		d.credentials[user.ID] = clonePtr(credentials)
		return nil
	})
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*identity.User, error) {
	var out *identity.User
	err := r.s.view(ctx, func(d *data) error {
		u, ok := d.users[id]
		if !ok {
			return identity.ErrUserNotFound
		}
		out = clonePtr(u)
		return nil
	})
	return out, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*identity.User, error) {
	var out *identity.User
	err := r.s.view(ctx, func(d *data) error {
		for _, u := range d.users {
			if u.Email == email {
				out = clonePtr(u)
				return nil
			}
		}
		return identity.ErrUserNotFound
	})
	return out, err
}

func (r *userRepository) Update(ctx context.Context, user *identity.User) error {
	return r.s.update(ctx, func(d *data) error {
		u, ok := d.users[user.ID]
		if !ok {
			return identity.ErrUserNotFound
		}
		for _, other := range d.users {
			if other.ID != user.ID && other.Username == user.Username {
				return identity.ErrUsernameTaken
			}
		}
		u.Username = user.Username
		u.DisplayName = user.DisplayName
		u.IsPremium = user.IsPremium
		u.UpdatedAt = r.s.now()
		user.UpdatedAt = u.UpdatedAt
		return nil
	})
}

func (r *userRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	return r.s.update(ctx, func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return identity.ErrUserNotFound
		}
		u.FailedLoginAttempts = failedAttempts
		if lockedUntil != nil {
			t := *lockedUntil
			u.LockedUntil = &t
		} else {
			u.LockedUntil = nil
		}
		return nil
	})
}

func (r *userRepository) SetPersonalTenant(ctx context.Context, userID string, tenantID *string) error {
	return r.s.update(ctx, func(d *data) error {
		u, ok := d.users[userID]
		if !ok {
			return identity.ErrUserNotFound
		}
		u.PersonalTenantID = strPtr(tenantID)
		return nil
	})
}

func (r *userRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	var out *identity.Credentials
	err := r.s.view(ctx, func(d *data) error {
		c, ok := d.credentials[userID]
		if !ok {
			return identity.ErrUserNotFound
		}
		out = clonePtr(c)
		return nil
	})
	return out, err
}

func (r *userRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	return r.s.update(ctx, func(d *data) error {
		c, ok := d.credentials[userID]
		if !ok {
			return identity.ErrUserNotFound
		}
		c.PasswordHash = passwordHash
		c.UpdatedAt = r.s.now()
		return nil
	})
}
