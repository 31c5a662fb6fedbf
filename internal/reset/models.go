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

// Package reset implements the three-step OTP password reset:
// Requested -> Verified -> Completed.
package reset

import (
	"context"
	"time"

	"github.com/opentrusty/stride/internal/apperr"
)

// Domain errors
var (
	ErrExpired       = apperr.New(apperr.KindAuth, "reset code expired")
	ErrInvalidOTP    = apperr.New(apperr.KindAuth, "invalid reset code")
	ErrNoActiveReset = apperr.New(apperr.KindNotFound, "no active password reset")
	ErrStepConflict  = apperr.New(apperr.KindConflict, "password reset already advanced")

	ErrAttemptsExceeded = apperr.New(apperr.KindAuth, "too many invalid reset codes")
)

// DefaultMaxAttempts is the number of wrong codes a workflow tolerates when
// no limit is configured.
const DefaultMaxAttempts = 5

// Step is the position of a record in the workflow. Completed is terminal.
type Step int

const (
	StepRequested Step = 1
	StepVerified  Step = 2
	StepCompleted Step = 3
)

func (s Step) String() string {
	switch s {
	case StepRequested:
		return "requested"
	case StepVerified:
		return "verified"
	case StepCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Record is one reset workflow. The OTP is stored as its SHA-256 digest.
type Record struct {
	ID        string
	UserID    string
	Step      Step
	OTPHash   string
	Attempts  int
	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record's code is no longer usable at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Ticket is what the caller learns about a workflow.
type Ticket struct {
	ResetID   string    `json:"reset_id"`
	Step      Step      `json:"step"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Repository defines the interface for reset persistence. Every lookup is
// scoped by user id.
type Repository interface {
	// Replace deletes the user's non-terminal records and inserts rec in one
	// transaction.
	Replace(ctx context.Context, rec *Record) error

	// GetActive returns the user's record at step, or ErrNoActiveReset.
	GetActive(ctx context.Context, userID string, step Step) (*Record, error)

	// Advance moves a record from one step to the next only if it is still
	// at from; otherwise ErrStepConflict.
	Advance(ctx context.Context, id string, from, to Step) error

	// Complete moves a Verified record to Completed and writes the new
	// password hash in one transaction; ErrStepConflict if the record was no
	// longer Verified.
	Complete(ctx context.Context, id, userID, passwordHash string) error

	// RecordFailure counts one wrong code against a record still at step.
	// When the count reaches maxAttempts the record is deleted and exhausted
	// is true. ErrStepConflict if the record moved on or is gone.
	RecordFailure(ctx context.Context, id string, step Step, maxAttempts int) (exhausted bool, err error)

	// DeleteStale removes completed records and records that expired before
	// the cutoff.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}
