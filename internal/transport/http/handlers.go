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
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/opentrusty/stride/internal/apperr"
	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/observability/logger"
	"github.com/opentrusty/stride/internal/pin"
	"github.com/opentrusty/stride/internal/project"
	"github.com/opentrusty/stride/internal/reset"
	"github.com/opentrusty/stride/internal/tenant"
	"github.com/opentrusty/stride/internal/token"
)

const maxBodyBytes = 1 << 20

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	tokens          *token.Service
	resets          *reset.Service
	tenantService   *tenant.Service
	projectService  *project.Service
	pinService      *pin.Service
	engine          *cascade.Engine
	auditLogger     audit.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	tokens *token.Service,
	resets *reset.Service,
	tenantService *tenant.Service,
	projectService *project.Service,
	pinService *pin.Service,
	engine *cascade.Engine,
	auditLogger audit.Logger,
) *Handler {
	return &Handler{
		identityService: identityService,
		tokens:          tokens,
		resets:          resets,
		tenantService:   tenantService,
		projectService:  projectService,
		pinService:      pinService,
		engine:          engine,
		auditLogger:     auditLogger,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, requestTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
			r.Post("/password-reset/request", h.RequestPasswordReset)
			r.Post("/password-reset/verify", h.VerifyPasswordReset)
			r.Post("/password-reset/complete", h.CompletePasswordReset)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Get("/user/profile", h.GetProfile)
			r.Put("/user/profile", h.UpdateProfile)
			r.Post("/user/change-password", h.ChangePassword)
			r.Delete("/user", h.DeleteAccount)

			r.Route("/tenants", func(r chi.Router) {
				r.Get("/", h.ListTenants)
				r.Post("/", h.CreateTenant)
				r.Post("/join", h.JoinTenant)
				r.Route("/{tenantID}", func(r chi.Router) {
					r.Get("/", h.GetTenant)
					r.Put("/", h.UpdateTenant)
					r.Delete("/", h.DeleteTenant)
					r.Get("/members", h.ListTenantMembers)
					r.Put("/members/{userID}", h.ChangeTenantRole)
					r.Delete("/members/{userID}", h.RemoveTenantMember)
					r.Get("/projects", h.ListProjects)
					r.Post("/projects", h.CreateProject)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Post("/join", h.JoinProject)
				r.Route("/{projectID}", func(r chi.Router) {
					r.Get("/", h.GetProject)
					r.Put("/", h.UpdateProject)
					r.Delete("/", h.DeleteProject)
					r.Get("/members", h.ListProjectMembers)
					r.Post("/members", h.AddProjectMember)
					r.Put("/members/{userID}", h.ChangeProjectRole)
					r.Delete("/members/{userID}", h.RemoveProjectMember)
					r.Get("/sprints", h.ListSprints)
					r.Post("/sprints", h.CreateSprint)
					r.Get("/backlog", h.ListBacklog)
					r.Post("/issues", h.CreateIssue)
				})
			})

			r.Route("/sprints/{sprintID}", func(r chi.Router) {
				r.Get("/", h.GetSprint)
				r.Put("/", h.UpdateSprint)
				r.Delete("/", h.DeleteSprint)
				r.Get("/issues", h.ListSprintIssues)
			})

			r.Route("/issues/{issueID}", func(r chi.Router) {
				r.Get("/", h.GetIssue)
				r.Put("/", h.UpdateIssue)
				r.Delete("/", h.DeleteIssue)
				r.Put("/sprint", h.MoveIssue)
				r.Get("/assignees", h.ListAssignees)
				r.Post("/assignees", h.AssignIssue)
				r.Delete("/assignees/{userID}", h.UnassignIssue)
				r.Get("/comments", h.ListComments)
				r.Post("/comments", h.AddComment)
			})

			r.Route("/pins", func(r chi.Router) {
				r.Get("/", h.ListPins)
				r.Post("/", h.CreatePin)
				r.Delete("/{pinType}/{targetID}", h.DeletePin)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "stride",
	})
}

// respondFailure maps a service error to its status. Internal errors are
// logged and never echoed.
func respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindAuth:
		respondError(w, http.StatusUnauthorized, apperr.ReasonOf(err))
	case apperr.KindPermission:
		respondError(w, http.StatusForbidden, apperr.ReasonOf(err))
	case apperr.KindNotFound:
		respondError(w, http.StatusNotFound, apperr.ReasonOf(err))
	case apperr.KindConflict, apperr.KindValidation:
		respondError(w, http.StatusBadRequest, apperr.ReasonOf(err))
	default:
		slog.ErrorContext(r.Context(), "request failed",
			logger.RequestID(middleware.GetReqID(r.Context())),
			logger.Path(r.URL.Path),
			logger.ErrorType(apperr.KindOf(err).String()),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body of at most maxBodyBytes into dst. It reports
// false after writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"message": message,
	})
}
