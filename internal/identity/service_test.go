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

package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/stride/internal/audit"
)

// MockUserRepository is a simple in-memory implementation of UserRepository
type MockUserRepository struct {
	mu          sync.Mutex
	users       map[string]*User
	credentials map[string]*Credentials
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users:       make(map[string]*User),
		credentials: make(map[string]*Credentials),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *User, credentials *Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return ErrEmailTaken
		}
		if u.Username == user.Username {
			return ErrUsernameTaken
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	c := *credentials
	m.credentials[user.ID] = &c
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *MockUserRepository) Update(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID != user.ID && u.Username == user.Username {
			return ErrUsernameTaken
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MockUserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.FailedLoginAttempts = failedAttempts
	u.LockedUntil = lockedUntil
	return nil
}

func (m *MockUserRepository) SetPersonalTenant(ctx context.Context, userID string, tenantID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	u.PersonalTenantID = tenantID
	return nil
}

func (m *MockUserRepository) GetCredentials(ctx context.Context, userID string) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.credentials[userID]
	if !ok {
		return ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

func newTestService(repo UserRepository, maxAttempts int) *Service {
	// Low-cost parameters keep the suite fast; production uses config values.
	hasher := NewPasswordHasher(1024, 1, 1, 16, 32)
	return NewService(repo, hasher, audit.NopLogger{}, maxAttempts, 5*time.Minute)
}

// TestPurpose: Validates registration normalises email, stores a hash, and rejects duplicates by email and username.
// Scope: Unit Test
// Security: Account uniqueness; no plaintext passwords at rest
// Expected: First registration succeeds; duplicates fail EmailTaken/UsernameTaken; weak password and bad email fail validation.
// Test Case ID: IDN-01
func TestIdentity_Service_Register(t *testing.T) {
	repo := NewMockUserRepository()
	s := newTestService(repo, 5)
	ctx := context.Background()

	user, err := s.Register(ctx, "  Alice@Example.com ", "alice", "Alice", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, "Alice", user.DisplayName)

	creds, err := repo.GetCredentials(ctx, user.ID)
	require.NoError(t, err)
	assert.NotContains(t, creds.PasswordHash, "correct-horse")

	_, err = s.Register(ctx, "alice@example.com", "alice2", "", "correct-horse")
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = s.Register(ctx, "other@example.com", "alice", "", "correct-horse")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = s.Register(ctx, "bob@example.com", "bob", "", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = s.Register(ctx, "not-an-email", "carol", "", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = s.Register(ctx, "dave@example.com", "d a v e", "", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidUsername)
}

// TestPurpose: Validates the user authentication flow, including success, failure, and account lockout after multiple failed attempts.
// Scope: Unit Test
// Security: Authentication mechanisms and Brute-force protection (lockout)
// Expected: Successful login for correct credentials, error for wrong credentials, and account lockout after threshold.
// Test Case ID: IDN-02
func TestIdentity_Service_Authenticate(t *testing.T) {
	repo := NewMockUserRepository()
	s := newTestService(repo, 3)
	ctx := context.Background()

	_, err := s.Register(ctx, "alice@example.com", "alice", "Alice", "correct-horse")
	require.NoError(t, err)

	user, err := s.Authenticate(ctx, "ALICE@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = s.Authenticate(ctx, "nobody@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	for range 3 {
		_, err = s.Authenticate(ctx, "alice@example.com", "wrong-password")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err = s.Authenticate(ctx, "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrAccountLocked)

	s.now = func() time.Time { return time.Now().Add(6 * time.Minute) }
	_, err = s.Authenticate(ctx, "alice@example.com", "correct-horse")
	assert.NoError(t, err)

	stored, _ := repo.GetByID(ctx, user.ID)
	assert.Zero(t, stored.FailedLoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

// TestPurpose: Validates password change requires the current password and enforces strength.
// Scope: Unit Test
// Expected: Wrong old password fails; weak new password fails; success allows login with the new password only.
// Test Case ID: IDN-03
func TestIdentity_Service_ChangePassword(t *testing.T) {
	repo := NewMockUserRepository()
	s := newTestService(repo, 5)
	ctx := context.Background()

	user, err := s.Register(ctx, "alice@example.com", "alice", "", "correct-horse")
	require.NoError(t, err)

	assert.ErrorIs(t, s.ChangePassword(ctx, user.ID, "wrong-password", "battery-staple"), ErrInvalidCredentials)
	assert.ErrorIs(t, s.ChangePassword(ctx, user.ID, "correct-horse", "short"), ErrWeakPassword)
	require.NoError(t, s.ChangePassword(ctx, user.ID, "correct-horse", "battery-staple"))

	_, err = s.Authenticate(ctx, "alice@example.com", "correct-horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Authenticate(ctx, "alice@example.com", "battery-staple")
	assert.NoError(t, err)

	assert.NoError(t, s.VerifyPassword(ctx, user.ID, "battery-staple"))
	assert.ErrorIs(t, s.VerifyPassword(ctx, "missing", "battery-staple"), ErrUserNotFound)
}

func TestIdentity_Service_UpdateProfile(t *testing.T) {
	repo := NewMockUserRepository()
	s := newTestService(repo, 5)
	ctx := context.Background()

	alice, err := s.Register(ctx, "alice@example.com", "alice", "", "correct-horse")
	require.NoError(t, err)
	_, err = s.Register(ctx, "bob@example.com", "bob", "", "correct-horse")
	require.NoError(t, err)

	updated, err := s.UpdateProfile(ctx, alice.ID, "", "Alice Liddell")
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.Username)
	assert.Equal(t, "Alice Liddell", updated.DisplayName)

	_, err = s.UpdateProfile(ctx, alice.ID, "bob", "")
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = s.UpdateProfile(ctx, "missing", "x", "")
	assert.ErrorIs(t, err, ErrUserNotFound)

	require.NoError(t, s.SetPersonalTenant(ctx, alice.ID, "tenant-1"))
	got, err := s.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PersonalTenantID)
	assert.Equal(t, "tenant-1", *got.PersonalTenantID)
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	h := NewPasswordHasher(1024, 1, 1, 16, 32)

	encoded, err := h.Hash("correct-horse")
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$v=19$m=1024,t=1,p=1$")

	ok, err := h.Verify("correct-horse", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.Verify("x", "$bcrypt$nope")
	assert.Error(t, err)
}
