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

package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/blacklist"
	"github.com/opentrusty/stride/internal/id"
	"github.com/opentrusty/stride/internal/observability/logger"
	"github.com/opentrusty/stride/internal/observability/metrics"
	"github.com/opentrusty/stride/internal/observability/tracing"
)

const tokenType = "Bearer"

// Service issues sessions and runs the refresh rotation protocol.
type Service struct {
	repo        Repository
	signer      *Signer
	guard       blacklist.Guard
	refreshTTL  time.Duration
	auditLogger audit.Logger
	metrics     *metrics.Instruments
	tracer      trace.Tracer
	now         func() time.Time
}

// NewService creates a new token service
func NewService(
	repo Repository,
	signer *Signer,
	guard blacklist.Guard,
	refreshTTL time.Duration,
	auditLogger audit.Logger,
	instruments *metrics.Instruments,
) *Service {
	return &Service{
		repo:        repo,
		signer:      signer,
		guard:       guard,
		refreshTTL:  refreshTTL,
		auditLogger: auditLogger,
		metrics:     instruments,
		tracer:      tracing.Named("token"),
		now:         time.Now,
	}
}

// IssueSession starts a new chain for sub.
func (s *Service) IssueSession(ctx context.Context, sub Subject) (*Pair, error) {
	jti := id.NewUUIDv7()

	access, accessExp, err := s.signer.Sign(sub, jti)
	if err != nil {
		return nil, err
	}
	refresh, row, err := s.newRefresh(sub.UserID, jti)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	s.metrics.SessionIssued(ctx)
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeSessionIssued,
		ActorID:  sub.UserID,
		Resource: "session",
		Metadata: map[string]any{"chain_id": jti},
	})

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        tokenType,
		ChainID:          jti,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: row.ExpiresAt,
	}, nil
}

// Rotate exchanges a presented (access, refresh) pair for a new one in the
// same chain.
//
// An unknown refresh value or a pair from different chains fails with
// ErrInvalidToken and changes nothing. Presenting a row that was already
// rotated or revoked revokes the whole chain and fails with
// ErrReplayDetected; an expired row does the same with ErrExpired. Losing a
// concurrent rotation of the same row fails with ErrReplayDetected without
// touching the winner's successor.
func (s *Service) Rotate(ctx context.Context, accessToken, refreshToken string) (*Pair, error) {
	ctx, span := s.tracer.Start(ctx, "token.rotate")
	defer span.End()

	pair, err := s.rotate(ctx, accessToken, refreshToken)
	if err != nil {
		tracing.Fail(span, err, "")
		s.metrics.RotationFailed(ctx, failureReason(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("chain_id", pair.ChainID))
	s.metrics.Rotated(ctx)
	return pair, nil
}

func (s *Service) rotate(ctx context.Context, accessToken, refreshToken string) (*Pair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	row, err := s.repo.GetByHash(ctx, id.HashSecret(refreshToken))
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}

	claims, err := s.signer.Decode(accessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject != row.UserID || claims.ID != row.ChainID {
		return nil, ErrInvalidToken
	}

	if !row.Valid {
		s.revokeCompromised(ctx, row, "replay")
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeReplayDetected,
			ActorID:  row.UserID,
			Resource: "refresh_token",
			Metadata: map[string]any{"chain_id": row.ChainID},
		})
		return nil, ErrReplayDetected
	}
	if !s.now().Before(row.ExpiresAt) {
		s.revokeCompromised(ctx, row, "expired")
		return nil, ErrExpired
	}

	sub := Subject{UserID: claims.Subject, Email: claims.Email, DisplayName: claims.Name}
	access, accessExp, err := s.signer.Sign(sub, row.ChainID)
	if err != nil {
		return nil, err
	}
	refresh, next, err := s.newRefresh(row.UserID, row.ChainID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Rotate(ctx, row.ID, next); err != nil {
		if errors.Is(err, ErrRotationConflict) {
			slog.WarnContext(ctx, "concurrent refresh rotation lost",
				logger.UserID(row.UserID), logger.ChainID(row.ChainID))
			return nil, ErrReplayDetected
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTokenRotated,
		ActorID:  row.UserID,
		Resource: "refresh_token",
		Metadata: map[string]any{"chain_id": row.ChainID},
	})

	return &Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        tokenType,
		ChainID:          row.ChainID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// revokeCompromised invalidates the chain and denies any access token still
// in flight for it. Failures are logged; the caller already fails the request.
func (s *Service) revokeCompromised(ctx context.Context, row *RefreshToken, cause string) {
	if _, err := s.repo.RevokeChain(ctx, row.UserID, row.ChainID); err != nil {
		slog.ErrorContext(ctx, "failed to revoke refresh chain",
			logger.UserID(row.UserID), logger.ChainID(row.ChainID), logger.Error(err))
	}
	if err := s.guard.Revoke(ctx, row.ChainID, s.signer.TTL()); err != nil {
		slog.ErrorContext(ctx, "failed to blacklist chain",
			logger.ChainID(row.ChainID), logger.Error(err))
	}
	s.metrics.ChainRevoked(ctx, cause)
	slog.WarnContext(ctx, "refresh chain revoked",
		logger.UserID(row.UserID), logger.ChainID(row.ChainID), logger.Reason(cause))
}

// RevokeChain invalidates every refresh row of the chain and blacklists its
// jti for the longest lifetime an access token of the chain can have left.
func (s *Service) RevokeChain(ctx context.Context, userID, jti string) error {
	if _, err := s.repo.RevokeChain(ctx, userID, jti); err != nil {
		return fmt.Errorf("failed to revoke chain: %w", err)
	}
	if err := s.guard.Revoke(ctx, jti, s.signer.TTL()); err != nil {
		return fmt.Errorf("failed to blacklist chain: %w", err)
	}
	s.metrics.ChainRevoked(ctx, "explicit")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeChainRevoked,
		ActorID:  userID,
		Resource: "session",
		Metadata: map[string]any{"chain_id": jti},
	})
	return nil
}

// RevokeAllForUser ends every live session of the user.
func (s *Service) RevokeAllForUser(ctx context.Context, userID string) error {
	chains, err := s.repo.ActiveChains(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list chains: %w", err)
	}
	for _, jti := range chains {
		if err := s.RevokeChain(ctx, userID, jti); err != nil {
			return err
		}
	}
	return nil
}

// Logout revokes the chain named by the presented tokens and blacklists the
// access token for its remaining lifetime. Unknown or malformed tokens are
// not an error; only storage failures are returned.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	var userID, jti string
	ttl := s.signer.TTL()

	if claims, err := s.signer.Decode(accessToken); err == nil {
		userID, jti = claims.Subject, claims.ID
		ttl = s.signer.Remaining(claims)
	}

	if refreshToken != "" {
		row, err := s.repo.GetByHash(ctx, id.HashSecret(refreshToken))
		switch {
		case err == nil:
			if jti == "" {
				userID, jti = row.UserID, row.ChainID
			} else if row.UserID == userID && row.ChainID != jti {
				if _, err := s.repo.RevokeChain(ctx, row.UserID, row.ChainID); err != nil {
					return fmt.Errorf("failed to revoke chain: %w", err)
				}
			}
		case errors.Is(err, ErrTokenNotFound):
		default:
			return fmt.Errorf("failed to load refresh token: %w", err)
		}
	}

	if jti == "" {
		return nil
	}

	if _, err := s.repo.RevokeChain(ctx, userID, jti); err != nil {
		return fmt.Errorf("failed to revoke chain: %w", err)
	}
	if err := s.guard.Revoke(ctx, jti, ttl); err != nil {
		return fmt.Errorf("failed to blacklist token: %w", err)
	}

	s.metrics.ChainRevoked(ctx, "logout")
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLogout,
		ActorID:  userID,
		Resource: "session",
		Metadata: map[string]any{"chain_id": jti},
	})
	return nil
}

// Authenticate verifies an access token and rejects blacklisted chains.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*Claims, error) {
	claims, err := s.signer.Verify(accessToken)
	if err != nil {
		return nil, err
	}
	revoked, err := s.guard.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check blacklist: %w", err)
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// PurgeExpired deletes refresh rows past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", err)
	}
	return n, nil
}

func (s *Service) newRefresh(userID, jti string) (string, *RefreshToken, error) {
	secret, err := id.NewSecret()
	if err != nil {
		return "", nil, err
	}
	now := s.now()
	return secret, &RefreshToken{
		ID:        id.NewUUIDv7(),
		UserID:    userID,
		ChainID:   jti,
		TokenHash: id.HashSecret(secret),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
		Valid:     true,
	}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrReplayDetected):
		return "replay_detected"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	default:
		return "internal"
	}
}
