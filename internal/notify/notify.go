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

// Package notify delivers outbound user messages. Delivery itself is an
// external concern; the process only depends on the Mailer interface.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/opentrusty/stride/internal/observability/logger"
)

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends a message. Implementations must honour ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordResetMessage renders the OTP email for a reset request.
func PasswordResetMessage(to, otp string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your password reset code",
		Body: fmt.Sprintf(
			"Use the code %s to reset your password.\nThe code expires in %d minutes. "+
				"If you did not request a reset you can ignore this message.",
			otp, int(ttl.Round(time.Minute)/time.Minute),
		),
	}
}

// LogMailer records messages in the log instead of delivering them.
// Bodies are never logged since they carry one-time codes.
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	slog.InfoContext(ctx, "email_dispatched",
		logger.Component("notify"),
		logger.Email(msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
