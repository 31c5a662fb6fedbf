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
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/observability/logger"
	"github.com/opentrusty/stride/internal/token"
)

// RegisterRequest represents registration data
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// Register creates an account. It does not log the user in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.identityService.Register(r.Context(), req.Email, req.Username, req.DisplayName, req.Password)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toUser(user))
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates the user and starts a new session chain.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	pair, err := h.tokens.IssueSession(r.Context(), token.Subject{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, pair)
}

// RefreshRequest carries the pair being rotated.
type RefreshRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Refresh rotates a token pair. Replays revoke the whole chain.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AccessToken == "" {
		req.AccessToken = bearerToken(r)
	}

	pair, err := h.tokens.Rotate(r.Context(), req.AccessToken, req.RefreshToken)
	if err != nil {
		if errors.Is(err, token.ErrReplayDetected) {
			slog.WarnContext(r.Context(), "refresh token replay rejected",
				logger.RemoteAddr(getClientIP(r)),
				logger.UserAgent(r.UserAgent()),
			)
		}
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, pair)
}

// LogoutRequest optionally carries the tokens of the session. A bearer
// header takes precedence over AccessToken.
type LogoutRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the session chain and blacklists the access token. It
// answers 200 whether or not any token was presented or recognised; an
// expired access token is still accepted here.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req LogoutRequest
	_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)

	access := bearerToken(r)
	if access == "" {
		access = req.AccessToken
	}

	if err := h.tokens.Logout(r.Context(), access, req.RefreshToken); err != nil {
		respondFailure(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "logged out successfully")
}

// PasswordResetRequest starts a reset workflow.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset mails a one-time code. The response is identical for
// unknown emails.
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetRequest
	if !decode(w, r, &req) {
		return
	}

	_, err := h.resets.RequestReset(r.Context(), req.Email)
	if err != nil && !errors.Is(err, identity.ErrUserNotFound) {
		respondFailure(w, r, err)
		return
	}

	respondMessage(w, http.StatusAccepted, "if the account exists, a reset code has been sent")
}

// PasswordResetVerifyRequest carries the mailed code.
type PasswordResetVerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyPasswordReset checks the code and advances the workflow.
func (h *Handler) VerifyPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetVerifyRequest
	if !decode(w, r, &req) {
		return
	}

	ticket, err := h.resets.VerifyOtp(r.Context(), req.Email, req.OTP)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ticket)
}

// PasswordResetCompleteRequest carries the code and the new password.
type PasswordResetCompleteRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

// CompletePasswordReset writes the new password and closes the workflow.
func (h *Handler) CompletePasswordReset(w http.ResponseWriter, r *http.Request) {
	var req PasswordResetCompleteRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.resets.CompleteReset(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		respondFailure(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "password has been reset")
}

// GetProfile returns the current user's profile
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, err := h.identityService.GetUser(r.Context(), GetUserID(r.Context()))
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toUser(user))
}

// UpdateProfileRequest represents editable profile fields
type UpdateProfileRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// UpdateProfile updates the user profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.identityService.UpdateProfile(r.Context(), GetUserID(r.Context()), req.Username, req.DisplayName)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, toUser(user))
}

// ChangePasswordRequest represents password change data
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword changes the user password
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	userID := GetUserID(r.Context())
	err := h.identityService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
	if err != nil {
		respondFailure(w, r, err)
		return
	}
	if err := h.tokens.RevokeAllForUser(r.Context(), userID); err != nil {
		respondFailure(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "password changed successfully")
}

// DeleteAccountRequest confirms account removal.
type DeleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount removes the user and everything they own. Every session
// chain is revoked and blacklisted first.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req DeleteAccountRequest
	if !decode(w, r, &req) {
		return
	}
	userID := GetUserID(r.Context())

	if err := h.identityService.VerifyPassword(r.Context(), userID, req.Password); err != nil {
		respondFailure(w, r, err)
		return
	}
	if err := h.tokens.RevokeAllForUser(r.Context(), userID); err != nil {
		respondFailure(w, r, err)
		return
	}

	rep, err := h.engine.RemoveUserAccount(r.Context(), userID)
	if err != nil {
		respondFailure(w, r, err)
		return
	}

	h.auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeAccountDeleted,
		ActorID:   userID,
		Resource:  "user",
		Metadata:  map[string]any{"chain_id": GetChainID(r.Context()), audit.AttrCounts: rep.Total()},
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	})

	respondJSON(w, http.StatusOK, toRemoval(rep))
}
