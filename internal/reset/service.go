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

package reset

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/id"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/notify"
	"github.com/opentrusty/stride/internal/observability/logger"
	"github.com/opentrusty/stride/internal/observability/metrics"
)

// Accounts is the slice of the identity service the workflow needs.
type Accounts interface {
	GetByEmail(ctx context.Context, email string) (*identity.User, error)
	HashPassword(password string) (string, error)
}

// Sessions ends every refresh chain of a user once the password changes.
type Sessions interface {
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Service runs the reset workflow.
type Service struct {
	repo        Repository
	accounts    Accounts
	sessions    Sessions
	mailer      notify.Mailer
	ttl         time.Duration
	digits      int
	maxAttempts int
	auditLogger audit.Logger
	metrics     *metrics.Instruments
	now         func() time.Time
	newOTP      func(digits int) (string, error)
}

// NewService creates a new password reset service
func NewService(
	repo Repository,
	accounts Accounts,
	sessions Sessions,
	mailer notify.Mailer,
	ttl time.Duration,
	digits int,
	maxAttempts int,
	auditLogger audit.Logger,
	instruments *metrics.Instruments,
) *Service {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{
		repo:        repo,
		accounts:    accounts,
		sessions:    sessions,
		mailer:      mailer,
		ttl:         ttl,
		digits:      digits,
		maxAttempts: maxAttempts,
		auditLogger: auditLogger,
		metrics:     instruments,
		now:         time.Now,
		newOTP:      id.NewOTP,
	}
}

// RequestReset starts a workflow for the account behind email, replacing any
// unfinished one, and mails the code. Unknown emails return
// identity.ErrUserNotFound; callers decide whether to reveal that.
func (s *Service) RequestReset(ctx context.Context, email string) (*Ticket, error) {
	user, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	otp, err := s.newOTP(s.digits)
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec := &Record{
		ID:        id.NewUUIDv7(),
		UserID:    user.ID,
		Step:      StepRequested,
		OTPHash:   id.HashSecret(otp),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
		UpdatedAt: now,
	}
	if err := s.repo.Replace(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store password reset: %w", err)
	}

	if err := s.mailer.Send(ctx, notify.PasswordResetMessage(user.Email, otp, s.ttl)); err != nil {
		return nil, fmt.Errorf("failed to send reset code: %w", err)
	}

	s.metrics.ResetTransition(ctx, StepRequested.String())
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeResetRequested,
		ActorID:  user.ID,
		Resource: "password_reset",
	})
	return ticket(rec), nil
}

// VerifyOtp checks the code against the user's Requested record and moves it
// to Verified. Verification does not extend the expiry.
func (s *Service) VerifyOtp(ctx context.Context, email, otp string) (*Ticket, error) {
	rec, err := s.active(ctx, email, StepRequested)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, rec, otp); err != nil {
		return nil, err
	}

	if err := s.repo.Advance(ctx, rec.ID, StepRequested, StepVerified); err != nil {
		if errors.Is(err, ErrStepConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to advance password reset: %w", err)
	}
	rec.Step = StepVerified

	s.metrics.ResetTransition(ctx, StepVerified.String())
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeResetVerified,
		ActorID:  rec.UserID,
		Resource: "password_reset",
	})
	return ticket(rec), nil
}

// CompleteReset applies newPassword for a Verified workflow whose code has
// not expired, marks it Completed and revokes every session of the user.
func (s *Service) CompleteReset(ctx context.Context, email, otp, newPassword string) error {
	rec, err := s.active(ctx, email, StepVerified)
	if err != nil {
		return err
	}
	if err := s.check(ctx, rec, otp); err != nil {
		return err
	}

	hash, err := s.accounts.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.Complete(ctx, rec.ID, rec.UserID, hash); err != nil {
		if errors.Is(err, ErrStepConflict) {
			return err
		}
		return fmt.Errorf("failed to complete password reset: %w", err)
	}
	if err := s.sessions.RevokeAllForUser(ctx, rec.UserID); err != nil {
		return fmt.Errorf("failed to revoke sessions after password reset: %w", err)
	}

	s.metrics.ResetTransition(ctx, StepCompleted.String())
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeResetCompleted,
		ActorID:  rec.UserID,
		Resource: "password_reset",
	})
	return nil
}

// PurgeStale deletes completed records and those expired before now.
func (s *Service) PurgeStale(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteStale(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge password resets: %w", err)
	}
	return n, nil
}

func (s *Service) active(ctx context.Context, email string, step Step) (*Record, error) {
	user, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, ErrNoActiveReset
		}
		return nil, err
	}
	rec, err := s.repo.GetActive(ctx, user.ID, step)
	if err != nil {
		if errors.Is(err, ErrNoActiveReset) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load password reset: %w", err)
	}
	return rec, nil
}

// check enforces expiry before comparing the code, so an expired record
// reports ErrExpired even for the right code. Every wrong code is counted;
// the last allowed one deletes the record.
func (s *Service) check(ctx context.Context, rec *Record, otp string) error {
	if rec.Expired(s.now()) {
		slog.InfoContext(ctx, "password reset code expired",
			logger.UserID(rec.UserID),
			logger.ResetID(rec.ID),
			slog.String("step", rec.Step.String()),
		)
		return ErrExpired
	}
	if subtle.ConstantTimeCompare([]byte(id.HashSecret(otp)), []byte(rec.OTPHash)) != 1 {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeResetOTPRejected,
			ActorID:  rec.UserID,
			Resource: "password_reset",
			Metadata: map[string]any{"step": rec.Step.String(), audit.AttrAttempts: rec.Attempts + 1},
		})
		return s.recordFailure(ctx, rec)
	}
	return nil
}

func (s *Service) recordFailure(ctx context.Context, rec *Record) error {
	exhausted, err := s.repo.RecordFailure(ctx, rec.ID, rec.Step, s.maxAttempts)
	if err != nil {
		if errors.Is(err, ErrStepConflict) {
			return ErrInvalidOTP
		}
		return fmt.Errorf("failed to count reset attempt: %w", err)
	}
	if !exhausted {
		return ErrInvalidOTP
	}

	slog.WarnContext(ctx, "password reset abandoned after too many invalid codes",
		logger.UserID(rec.UserID),
		logger.ResetID(rec.ID),
	)
	s.metrics.ResetTransition(ctx, "attempts_exceeded")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeResetAttemptsExceeded,
		ActorID:  rec.UserID,
		Resource: "password_reset",
		Metadata: map[string]any{audit.AttrAttempts: s.maxAttempts},
	})
	return ErrAttemptsExceeded
}

func ticket(rec *Record) *Ticket {
	return &Ticket{ResetID: rec.ID, Step: rec.Step, ExpiresAt: rec.ExpiresAt}
}
