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

// Package blacklist denies access tokens whose chain was revoked before the
// token's own expiry. Entries live only as long as the token they revoke.
package blacklist

import (
	"context"
	"time"

	"github.com/opentrusty/stride/internal/apperr"
)

var ErrUnavailable = apperr.New(apperr.KindInternal, "blacklist store unavailable")

// Guard is consulted on every authenticated request after the token
// signature and expiry have been verified.
type Guard interface {
	// Revoke denies jti for ttl. A non-positive ttl is a no-op because the
	// token has already expired on its own.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
