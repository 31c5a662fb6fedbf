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
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/authz"
	"github.com/opentrusty/stride/internal/blacklist"
	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/notify"
	"github.com/opentrusty/stride/internal/pin"
	"github.com/opentrusty/stride/internal/project"
	"github.com/opentrusty/stride/internal/reset"
	"github.com/opentrusty/stride/internal/store/memory"
	"github.com/opentrusty/stride/internal/tenant"
	"github.com/opentrusty/stride/internal/token"
)

const testPassword = "correct-horse-1"

type outbox struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (o *outbox) Send(_ context.Context, msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	code := otpPattern.FindString(o.sent[len(o.sent)-1].Body)
	require.NotEmpty(t, code)
	return code
}

type testServer struct {
	t      *testing.T
	router chi.Router
	mail   *outbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.New()
	repos := st.Workspace()
	mail := &outbox{}
	nop := audit.NopLogger{}

	accounts := identity.NewService(st.Users(), identity.NewPasswordHasher(1024, 1, 1, 16, 32), nop, 5, time.Minute)
	signer := token.NewSigner([]byte("0123456789abcdef0123456789abcdef"), "stride-test", "stride-api", 15*time.Minute)
	tokens := token.NewService(st.Tokens(), signer, blacklist.NewMemoryGuard(), 24*time.Hour, nop, nil)
	resets := reset.NewService(st.Resets(), accounts, tokens, mail, 10*time.Minute, 6, 5, nop, nil)
	resolver := authz.NewResolver(repos, nop, nil)
	engine := cascade.NewEngine(st, nop, nil)

	h := NewHandler(
		accounts,
		tokens,
		resets,
		tenant.NewService(repos, resolver, engine, accounts, nop),
		project.NewService(repos, resolver, engine, nop),
		pin.NewService(repos.Pins, resolver),
		engine,
		nop,
	)
	return &testServer{
		t:      t,
		router: NewRouter(h, NewRateLimiter(1000, 1000, time.Minute), 5*time.Second),
		mail:   mail,
	}
}

func (s *testServer) do(method, path, bearer string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// signup registers and logs in, returning the session pair.
func (s *testServer) signup(email, username string) token.Pair {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{
		Email: email, Username: username, Password: testPassword,
	})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.login(email, testPassword)
}

func (s *testServer) login(email, password string) token.Pair {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: email, Password: password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[token.Pair](s.t, w)
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

// TestPurpose: Validates that input errors surface as 400 and protected routes require a bearer token.
// Scope: Unit Test
// Security: Input validation and authentication boundary
// Expected: Weak password and malformed JSON give 400; missing or forged bearer gives 401; bad login gives 401.
// Test Case ID: API-01
func TestAPI_InputAndAuthBoundaries(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Email: "a@example.com", Username: "alice", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/user/profile", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/user/profile", "not-a-jwt", nil).Code)

	s.signup("a@example.com", "alice")
	w = s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "a@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "nobody@example.com", Password: testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/register", "", RegisterRequest{Email: "a@example.com", Username: "other", Password: testPassword})
	assert.Equal(t, http.StatusBadRequest, w.Code, "duplicate email is a conflict")
}

// TestPurpose: Validates refresh rotation and replay handling over HTTP.
// Scope: Unit Test
// Security: Refresh token replay (CWE-294)
// Expected: The first rotation succeeds; replaying the old pair fails with 401 and kills the chain, including the newest pair and its access token.
// Test Case ID: API-02
func TestAPI_RefreshReplayRevokesChain(t *testing.T) {
	s := newTestServer(t)
	first := s.signup("a@example.com", "alice")

	w := s.do(http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{AccessToken: first.AccessToken, RefreshToken: first.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decodeBody[token.Pair](t, w)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/v1/user/profile", second.AccessToken, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{AccessToken: first.AccessToken, RefreshToken: first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{AccessToken: second.AccessToken, RefreshToken: second.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/user/profile", second.AccessToken, nil).Code)
}

// TestPurpose: Validates that logout blacklists the access token immediately.
// Scope: Unit Test
// Security: Session termination
// Expected: After logout the access token gets 401 and the refresh token cannot rotate; logout itself always answers 200.
// Test Case ID: API-03
func TestAPI_Logout(t *testing.T) {
	s := newTestServer(t)
	pair := s.signup("a@example.com", "alice")

	w := s.do(http.MethodPost, "/api/v1/auth/logout", pair.AccessToken, LogoutRequest{RefreshToken: pair.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/user/profile", pair.AccessToken, nil).Code)
	w = s.do(http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/logout", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/auth/logout", "not-a-jwt", nil).Code)

	other := s.login("a@example.com", testPassword)
	w = s.do(http.MethodPost, "/api/v1/auth/logout", "", LogoutRequest{AccessToken: other.AccessToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/user/profile", other.AccessToken, nil).Code)
	w = s.do(http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{AccessToken: other.AccessToken, RefreshToken: other.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestPurpose: Validates that changing the password ends every session of the user.
// Scope: Unit Test
// Security: Session invalidation after credential change (CWE-613)
// Expected: Pairs issued before the change can neither rotate nor authenticate; the new password logs in.
// Test Case ID: API-07
func TestAPI_ChangePasswordRevokesSessions(t *testing.T) {
	s := newTestServer(t)
	first := s.signup("a@example.com", "alice")
	second := s.login("a@example.com", testPassword)

	w := s.do(http.MethodPost, "/api/v1/user/change-password", first.AccessToken, ChangePasswordRequest{
		OldPassword: testPassword, NewPassword: "a-brand-new-passphrase",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, pair := range []token.Pair{first, second} {
		w = s.do(http.MethodPost, "/api/v1/auth/refresh", "", RefreshRequest{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/user/profile", pair.AccessToken, nil).Code)
	}
	s.login("a@example.com", "a-brand-new-passphrase")
}

// TestPurpose: Validates the password reset workflow over HTTP without leaking which emails exist.
// Scope: Unit Test
// Security: Account enumeration and OTP possession
// Expected: Unknown and known emails both get 202; the mailed code verifies and completes; the new password logs in.
// Test Case ID: API-04
func TestAPI_PasswordReset(t *testing.T) {
	s := newTestServer(t)
	s.signup("a@example.com", "alice")

	unknown := s.do(http.MethodPost, "/api/v1/auth/password-reset/request", "", PasswordResetRequest{Email: "ghost@example.com"})
	known := s.do(http.MethodPost, "/api/v1/auth/password-reset/request", "", PasswordResetRequest{Email: "a@example.com"})
	assert.Equal(t, http.StatusAccepted, unknown.Code)
	assert.Equal(t, http.StatusAccepted, known.Code)
	assert.Equal(t, unknown.Body.String(), known.Body.String())

	code := s.mail.lastCode(t)

	w := s.do(http.MethodPost, "/api/v1/auth/password-reset/verify", "", PasswordResetVerifyRequest{Email: "a@example.com", OTP: "000000x"})
	assert.NotEqual(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/v1/auth/password-reset/verify", "", PasswordResetVerifyRequest{Email: "a@example.com", OTP: code})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ticket := decodeBody[reset.Ticket](t, w)
	assert.Equal(t, reset.StepVerified, ticket.Step)

	w = s.do(http.MethodPost, "/api/v1/auth/password-reset/complete", "", PasswordResetCompleteRequest{
		Email: "a@example.com", OTP: code, NewPassword: "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	s.login("a@example.com", "brand-new-pass")
	w = s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "a@example.com", Password: testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestPurpose: Validates the workspace routes end to end, including role thresholds and assignment filtering.
// Scope: Unit Test
// Security: Hierarchical authorization
// Expected: The owner builds a tenant/project/sprint; a developer who joins sees only assigned issues, gets 403 on sprint deletion, and the owner's tenant deletion reports the removed rows.
// Test Case ID: API-05
func TestAPI_WorkspaceFlow(t *testing.T) {
	s := newTestServer(t)
	owner := s.signup("owner@example.com", "owner").AccessToken
	dev := s.signup("dev@example.com", "dev").AccessToken

	w := s.do(http.MethodPost, "/api/v1/tenants", owner, CreateTenantRequest{Name: "Acme"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tn := decodeBody[tenantResponse](t, w)

	w = s.do(http.MethodPost, "/api/v1/tenants/"+tn.ID+"/projects", owner, ProjectRequest{Name: "Rocket"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	p := decodeBody[projectResponse](t, w)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/v1/projects/"+p.ID, dev, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/projects/missing", owner, nil).Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/tenants/join", dev, JoinRequest{Code: tn.JoinCode}).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/projects/join", dev, JoinRequest{Code: p.JoinCode}).Code)

	w = s.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/sprints", owner, SprintRequest{Name: "Sprint 1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sp := decodeBody[sprintResponse](t, w)

	var issues []issueResponse
	for _, title := range []string{"one", "two"} {
		w = s.do(http.MethodPost, "/api/v1/projects/"+p.ID+"/issues", owner, IssueRequest{Title: title, SprintID: &sp.ID})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		issues = append(issues, decodeBody[issueResponse](t, w))
	}

	devID := decodeBody[userResponse](t, s.do(http.MethodGet, "/api/v1/user/profile", dev, nil)).ID
	w = s.do(http.MethodPost, "/api/v1/issues/"+issues[0].ID+"/assignees", owner, AssignRequest{UserID: devID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/sprints/"+sp.ID+"/issues", dev, nil)
	require.Equal(t, http.StatusOK, w.Code)
	visible := decodeBody[[]issueResponse](t, w)
	require.Len(t, visible, 1)
	assert.Equal(t, issues[0].ID, visible[0].ID)

	w = s.do(http.MethodGet, "/api/v1/sprints/"+sp.ID+"/issues", owner, nil)
	assert.Len(t, decodeBody[[]issueResponse](t, w), 2)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/v1/sprints/"+sp.ID, dev, nil).Code)

	w = s.do(http.MethodPost, "/api/v1/issues/"+issues[0].ID+"/comments", dev, CommentRequest{Body: "on it"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/pins", dev, PinRequest{Type: "issue", TargetID: issues[0].ID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(http.MethodPost, "/api/v1/pins", dev, PinRequest{Type: "issue", TargetID: issues[0].ID})
	assert.Equal(t, http.StatusBadRequest, w.Code, "already pinned")

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/api/v1/tenants/"+tn.ID, dev, nil).Code)

	w = s.do(http.MethodDelete, "/api/v1/tenants/"+tn.ID, owner, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rep := decodeBody[removalResponse](t, w)
	assert.Equal(t, int64(2), rep.Deleted["issues"])
	assert.Equal(t, int64(1), rep.Deleted["comments"])
	assert.Equal(t, int64(1), rep.Deleted["pins"])

	w = s.do(http.MethodGet, "/api/v1/pins", dev, nil)
	assert.Empty(t, decodeBody[[]pinResponse](t, w))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/tenants/"+tn.ID, owner, nil).Code)
}

// TestPurpose: Validates password-confirmed account removal.
// Scope: Unit Test
// Security: Destructive action confirmation and session invalidation
// Expected: A wrong password gives 401; the right one removes the account, blacklists the session and the email can no longer log in.
// Test Case ID: API-06
func TestAPI_DeleteAccount(t *testing.T) {
	s := newTestServer(t)
	pair := s.signup("a@example.com", "alice")
	w := s.do(http.MethodPost, "/api/v1/tenants", pair.AccessToken, CreateTenantRequest{Name: "Mine"})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodDelete, "/api/v1/user", pair.AccessToken, DeleteAccountRequest{Password: "nope-nope"}).Code)

	w = s.do(http.MethodDelete, "/api/v1/user", pair.AccessToken, DeleteAccountRequest{Password: testPassword})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rep := decodeBody[removalResponse](t, w)
	assert.Equal(t, "user", rep.Root)
	assert.Equal(t, int64(1), rep.Deleted["tenants"])

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/v1/user/profile", pair.AccessToken, nil).Code)
	w = s.do(http.MethodPost, "/api/v1/auth/login", "", LoginRequest{Email: "a@example.com", Password: testPassword})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
