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

package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Event types
const (
	TypeUserRegistered  = "user_registered"
	TypeLoginSuccess    = "login_success"
	TypeLoginFailed     = "login_failed"
	TypeUserLocked      = "user_locked"
	TypePasswordChanged = "password_changed"
	TypeAccountDeleted  = "account_deleted"

	TypeSessionIssued  = "session_issued"
	TypeTokenRotated   = "token_rotated"
	TypeReplayDetected = "replay_detected"
	TypeChainRevoked   = "chain_revoked"
	TypeLogout         = "logout"

	TypeTenantCreated         = "tenant_created"
	TypeTenantDeleted         = "tenant_deleted"
	TypeTenantJoined          = "tenant_joined"
	TypeProjectCreated        = "project_created"
	TypeProjectDeleted        = "project_deleted"
	TypeProjectJoined         = "project_joined"
	TypeRoleChanged           = "role_changed"
	TypeMemberRemoved         = "member_removed"
	TypeAccessDenied          = "access_denied"
	TypeResetRequested        = "password_reset_requested"
	TypeResetVerified         = "password_reset_verified"
	TypeResetCompleted        = "password_reset_completed"
	TypeResetOTPRejected      = "password_reset_otp_rejected"
	TypeResetAttemptsExceeded = "password_reset_attempts_exceeded"
	TypeCascadeCompleted      = "cascade_completed"
	TypeSprintDeleted         = "sprint_deleted"
	TypeIssueDeleted          = "issue_deleted"
	TypeIssueReassigned       = "issue_assignment_changed"
	TypeMembershipChanged     = "membership_changed"
)

// Metadata keys
const (
	AttrReason   = "reason"
	AttrAttempts = "attempts"
	AttrRole     = "role"
	AttrCounts   = "counts"
	AttrTarget   = "target"
)

type Event struct {
	Type      string
	TenantID  string
	ActorID   string
	Resource  string
	Metadata  map[string]any
	Timestamp time.Time
	IPAddress string
	UserAgent string
}

// Logger records security-relevant events.
type Logger interface {
	Log(ctx context.Context, event Event)
}

// SlogLogger writes events through slog with secrets redacted.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger returns an audit logger on the default slog logger.
func NewSlogLogger() *SlogLogger {
	return &SlogLogger{}
}

// WithLogger returns a copy that writes to l instead of the default logger.
func (l *SlogLogger) WithLogger(sl *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: sl}
}

func (l *SlogLogger) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("audit_type", event.Type),
		slog.String("tenant_id", event.TenantID),
		slog.String("actor_id", event.ActorID),
		slog.String("resource", event.Resource),
		slog.Time("timestamp", event.Timestamp),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}

	if len(event.Metadata) > 0 {
		group := []any{}
		for k, v := range event.Metadata {
			if isSecret(k) {
				v = "[REDACTED]"
			}
			group = append(group, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("metadata", group...))
	}

	sl := l.logger
	if sl == nil {
		sl = slog.Default()
	}
	sl.InfoContext(ctx, "AUDIT_EVENT", append(attrs, slog.String("component", "audit"))...)
}

// NopLogger discards events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}

var secretMarkers = []string{"password", "secret", "token", "key", "hash", "credential", "otp", "authorization"}

func isSecret(key string) bool {
	k := strings.ToLower(key)
	for _, s := range secretMarkers {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
