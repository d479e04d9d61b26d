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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opentrusty/accessctl/internal/acl"
	"github.com/opentrusty/accessctl/internal/audit"
	"github.com/opentrusty/accessctl/internal/authz"
	"github.com/opentrusty/accessctl/internal/config"
	"github.com/opentrusty/accessctl/internal/groups"
	"github.com/opentrusty/accessctl/internal/observability/logger"
	"github.com/opentrusty/accessctl/internal/observability/metrics"
	"github.com/opentrusty/accessctl/internal/observability/tracing"
	"github.com/opentrusty/accessctl/internal/store/postgres"
	transportHTTP "github.com/opentrusty/accessctl/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
	})
	slog.Info("starting accessctl authorization service")

	ctx := context.Background()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   1.0,
	})
	if err != nil {
		slog.Error("failed to initialize tracer", logger.Error(err))
	}
	defer tracer.Shutdown(ctx)

	// Initialize meter
	_, err = metrics.New(ctx, metrics.Config{
		Enabled: cfg.Observability.OTELEnabled,
	}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter", logger.Error(err))
	}

	// Initialize database
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize collaborators
	mapper, err := acl.NewMapper(acl.NewACL, acl.MapperConfig{
		DefaultPermissions: cfg.ACL.DefaultPermissions,
		SwitchAdminAccess:  cfg.ACL.SwitchAdminAccess,
		ReturnNull:         cfg.ACL.ReturnNull,
		AdminRoles:         cfg.ACL.AdminRoles,
	})
	if err != nil {
		slog.Error("failed to initialize acl mapper", logger.Error(err))
		os.Exit(1)
	}

	aclRepo := postgres.NewACLRepository(db, mapper)

	var groupResolver authz.GroupResolver
	if cfg.Groups.MembershipURL != "" {
		groupResolver = groups.NewHTTPResolver(cfg.Groups.MembershipURL, cfg.Groups.Timeout)
		slog.Info("using remote group membership resolver",
			logger.String("url", cfg.Groups.MembershipURL))
	} else {
		groupResolver = groups.NewStaticResolver(nil)
		slog.Info("no group service configured, group grants resolve to empty membership")
	}

	evaluator := authz.NewEvaluator(aclRepo, groupResolver)
	auditLogger := audit.NewSlogLogger()

	// Rate limiter
	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(evaluator, aclRepo, mapper, auditLogger, db)

	router := transportHTTP.NewRouter(handler, rateLimiter, transportHTTP.AuthConfig{
		JWTSecret:        cfg.Auth.JWTSecret,
		AuthoritiesClaim: cfg.Auth.AuthoritiesClaim,
	})

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"))
		slog.Info(fmt.Sprintf("listening on %s", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}

	slog.Info("server stopped")
}
