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
	"github.com/opentrusty/stride/internal/reset"
)

type resetRepository struct {
	s *Store
}

func (r *resetRepository) Replace(ctx context.Context, rec *reset.Record) error {
	return r.s.update(ctx, func(d *data) error {
		for recID, existing := range d.resets {
			if existing.UserID == rec.UserID && existing.Step < reset.StepCompleted {
				delete(d.resets, recID)
			}
		}
		d.resets[rec.ID] = clonePtr(rec)
		return nil
	})
}

func (r *resetRepository) GetActive(ctx context.Context, userID string, step reset.Step) (*reset.Record, error) {
	var out *reset.Record
	err := r.s.view(ctx, func(d *data) error {
		for _, rec := range d.resets {
			if rec.UserID == userID && rec.Step == step {
				out = clonePtr(rec)
				return nil
			}
		}
		return reset.ErrNoActiveReset
	})
	return out, err
}

func (r *resetRepository) Advance(ctx context.Context, id string, from, to reset.Step) error {
	return r.s.update(ctx, func(d *data) error {
		rec, ok := d.resets[id]
		if !ok || rec.Step != from {
			return reset.ErrStepConflict
		}
		rec.Step = to
		rec.UpdatedAt = r.s.now()
		return nil
	})
}

func (r *resetRepository) Complete(ctx context.Context, id, userID, passwordHash string) error {
	return r.s.update(ctx, func(d *data) error {
		rec, ok := d.resets[id]
		if !ok || rec.UserID != userID || rec.Step != reset.StepVerified {
			return reset.ErrStepConflict
		}
		creds, ok := d.credentials[userID]
		if !ok {
			return identity.ErrUserNotFound
		}
		now := r.s.now()
		rec.Step = reset.StepCompleted
		rec.UpdatedAt = now
		creds.PasswordHash = passwordHash
		creds.UpdatedAt = now
		return nil
	})
}

func (r *resetRepository) RecordFailure(ctx context.Context, id string, step reset.Step, maxAttempts int) (bool, error) {
	var exhausted bool
	err := r.s.update(ctx, func(d *data) error {
		rec, ok := d.resets[id]
		if !ok || rec.Step != step {
			return reset.ErrStepConflict
		}
		rec.Attempts++
		rec.UpdatedAt = r.s.now()
		if rec.Attempts >= maxAttempts {
			delete(d.resets, id)
			exhausted = true
		}
		return nil
	})
	return exhausted, err
}

func (r *resetRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := r.s.update(ctx, func(d *data) error {
		for recID, rec := range d.resets {
			if rec.Step == reset.StepCompleted || rec.ExpiresAt.Before(before) {
				delete(d.resets, recID)
				n++
			}
		}
		return nil
	})
	return n, err
}
