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
	"time"

	"github.com/opentrusty/stride/internal/apperr"
)

// Domain errors
var (
	ErrUserNotFound       = apperr.New(apperr.KindNotFound, "user not found")
	ErrEmailTaken         = apperr.New(apperr.KindConflict, "email already registered")
	ErrUsernameTaken      = apperr.New(apperr.KindConflict, "username already taken")
	ErrInvalidCredentials = apperr.New(apperr.KindAuth, "invalid credentials")
	ErrAccountLocked      = apperr.New(apperr.KindAuth, "account is locked")
	ErrInvalidEmail       = apperr.New(apperr.KindValidation, "invalid email address")
	ErrInvalidUsername    = apperr.New(apperr.KindValidation, "invalid username")
	ErrWeakPassword       = apperr.New(apperr.KindValidation, "password does not meet security requirements")
)

// User represents a registered account
type User struct {
	ID                  string
	Email               string
	Username            string
	DisplayName         string
	IsPremium           bool
	PersonalTenantID    *string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Credentials represents user authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// UserRepository defines the interface for user persistence.
// Users are removed only through the cascade engine.
type UserRepository interface {
	// Create stores the user and its credentials atomically. Unique
	// violations map to ErrEmailTaken or ErrUsernameTaken.
	Create(ctx context.Context, user *User, credentials *Credentials) error

	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail matches the normalised (lower-case) email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Update writes username, display name and premium flag.
	Update(ctx context.Context, user *User) error

	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	SetPersonalTenant(ctx context.Context, userID string, tenantID *string) error

	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
}
