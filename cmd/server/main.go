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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentrusty/stride/internal/audit"
	"github.com/opentrusty/stride/internal/authz"
	"github.com/opentrusty/stride/internal/blacklist"
	"github.com/opentrusty/stride/internal/cascade"
	"github.com/opentrusty/stride/internal/config"
	"github.com/opentrusty/stride/internal/identity"
	"github.com/opentrusty/stride/internal/notify"
	"github.com/opentrusty/stride/internal/observability/logger"
	"github.com/opentrusty/stride/internal/observability/metrics"
	"github.com/opentrusty/stride/internal/observability/tracing"
	"github.com/opentrusty/stride/internal/pin"
	"github.com/opentrusty/stride/internal/project"
	"github.com/opentrusty/stride/internal/reset"
	"github.com/opentrusty/stride/internal/store"
	"github.com/opentrusty/stride/internal/tenant"
	"github.com/opentrusty/stride/internal/token"
	transportHTTP "github.com/opentrusty/stride/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting stride access core")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.TraceSamplingRate,
		EndpointURL:    cfg.Observability.TraceEndpoint,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	} else {
		defer tracer.Shutdown(context.WithoutCancel(ctx))
	}

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
		os.Exit(1)
	}
	instruments, err := metrics.NewInstruments(meter)
	if err != nil {
		slog.Error("failed to register instruments", logger.Error(err))
		os.Exit(1)
	}

	// Initialize storage
	backend, err := store.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open storage", logger.Error(err))
		os.Exit(1)
	}
	defer backend.Close()
	if backend.DB != nil {
		if err := backend.DB.Migrate(ctx); err != nil {
			slog.Error("failed to apply schema", logger.Error(err))
			os.Exit(1)
		}
	}
	slog.Info("storage ready", logger.String("driver", cfg.Storage.Driver))

	// Blacklist: shared through Redis when configured, per-process otherwise.
	var guard blacklist.Guard
	if cfg.Redis.URL != "" {
		client, err := blacklist.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Error("failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
		defer client.Close()
		guard = blacklist.NewRedisGuard(client, cfg.Redis.KeyPrefix)
	} else {
		mem := blacklist.NewMemoryGuard()
		go mem.Run(ctx, time.Minute)
		guard = mem
	}

	// Initialize helpers
	auditLogger := audit.NewSlogLogger()
	passwordHasher := identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)

	// Initialize services
	identityService := identity.NewService(
		backend.Users,
		passwordHasher,
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
	signer := token.NewSigner([]byte(cfg.Token.SigningSecret), cfg.Token.Issuer, cfg.Token.Audience, cfg.Token.AccessTTL)
	tokenService := token.NewService(backend.Tokens, signer, guard, cfg.Token.RefreshTTL, auditLogger, instruments)
	resetService := reset.NewService(
		backend.Resets,
		identityService,
		tokenService,
		notify.LogMailer{},
		cfg.Reset.OTPTTL,
		cfg.Reset.OTPDigits,
		cfg.Reset.MaxAttempts,
		auditLogger,
		instruments,
	)
	resolver := authz.NewResolver(backend.Workspace, auditLogger, instruments)
	engine := cascade.NewEngine(backend.Cascade, auditLogger, instruments)
	tenantService := tenant.NewService(backend.Workspace, resolver, engine, identityService, auditLogger)
	projectService := project.NewService(backend.Workspace, resolver, engine, auditLogger)
	pinService := pin.NewService(backend.Workspace.Pins, resolver)

	// Rate Limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.IdleTTL)
	go rateLimiter.Run(ctx, cfg.RateLimit.IdleTTL)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		tokenService,
		resetService,
		tenantService,
		projectService,
		pinService,
		engine,
		auditLogger,
	)
	router := transportHTTP.NewRouter(handler, rateLimiter, cfg.Server.RequestTimeout)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Purge expired refresh rows and stale reset records
	go runCleanup(ctx, cfg.Server.CleanupInterval, tokenService, resetService)

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}

func runCleanup(ctx context.Context, interval time.Duration, tokens *token.Service, resets *reset.Service) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n, err := tokens.PurgeExpired(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to purge refresh tokens", logger.Error(err))
		} else if n > 0 {
			slog.InfoContext(ctx, "purged refresh tokens", logger.RowsAffected(n))
		}
		if n, err := resets.PurgeStale(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to purge password resets", logger.Error(err))
		} else if n > 0 {
			slog.InfoContext(ctx, "purged password resets", logger.RowsAffected(n))
		}
	}
}
