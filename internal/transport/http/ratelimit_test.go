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

package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/opentrusty/stride/internal/apperr"
)

// TestPurpose: Validates per-client throttling and eviction of idle limiters.
// Scope: Unit Test
// Security: Brute-force and flooding resistance
// Expected: A client past its burst gets 429 while another client is served; idle limiters are evicted.
// Test Case ID: RL-01
func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(0.001, 1, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	h := RateLimitMiddleware(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	call := func(remote, forwarded string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if forwarded != "" {
			req.Header.Set("X-Forwarded-For", forwarded)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1:5678", ""), "same host, different port")
	assert.Equal(t, http.StatusOK, call("10.0.0.2:1234", ""))
	assert.Equal(t, http.StatusOK, call("10.0.0.9:1", "203.0.113.7, 10.0.0.9"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.8:1", "203.0.113.7"))

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 3, rl.Evict())
	assert.Equal(t, http.StatusOK, call("10.0.0.1:1234", ""))
}

func TestRespondFailure_StatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		body   string
	}{
		{apperr.New(apperr.KindAuth, "invalid token"), http.StatusUnauthorized, "invalid token"},
		{apperr.New(apperr.KindPermission, "insufficient role"), http.StatusForbidden, "insufficient role"},
		{apperr.New(apperr.KindNotFound, "issue not found"), http.StatusNotFound, "issue not found"},
		{apperr.New(apperr.KindConflict, "already pinned"), http.StatusBadRequest, "already pinned"},
		{apperr.New(apperr.KindValidation, "invalid role"), http.StatusBadRequest, "invalid role"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			w := httptest.NewRecorder()
			respondFailure(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
			assert.NotContains(t, w.Body.String(), "connection refused")
		})
	}
}
