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

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPasswordResetMessage(t *testing.T) {
	msg := PasswordResetMessage("bob@example.com", "123456", 3*time.Minute)

	assert.Equal(t, "bob@example.com", msg.To)
	assert.Contains(t, msg.Body, "123456")
	assert.Contains(t, msg.Body, "3 minutes")
}

func TestLogMailer_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, LogMailer{}.Send(ctx, Message{To: "a@example.com"}))

	cancel()
	assert.ErrorIs(t, LogMailer{}.Send(ctx, Message{To: "a@example.com"}), context.Canceled)
}
