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
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/accessctl/internal/acl"
	"github.com/opentrusty/accessctl/internal/audit"
	"github.com/opentrusty/accessctl/internal/authz"
	"github.com/opentrusty/accessctl/internal/observability/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Pinger reports backing-store health for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	evaluator   *authz.Evaluator
	acls        authz.ACLRepository
	mapper      *acl.Mapper[*acl.ACL]
	auditLogger audit.Logger
	pinger      Pinger

	decisions metric.Int64Counter
}

// NewHandler creates a new HTTP handler
func NewHandler(
	evaluator *authz.Evaluator,
	acls authz.ACLRepository,
	mapper *acl.Mapper[*acl.ACL],
	auditLogger audit.Logger,
	pinger Pinger,
) *Handler {
	meter := otel.Meter("accessctl/transport")
	decisions, err := meter.Int64Counter(
		"authz_decisions_total",
		metric.WithDescription("Authorization decisions by outcome"),
	)
	if err != nil {
		slog.Error("failed to create decision counter", logger.Error(err))
	}
	return &Handler{
		evaluator:   evaluator,
		acls:        acls,
		mapper:      mapper,
		auditLogger: auditLogger,
		pinger:      pinger,
		decisions:   decisions,
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter, authCfg AuthConfig) *chi.Mux {
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
	r.Use(middleware.Timeout(60 * time.Second))

	// Health checks
	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadyCheck)

	// API routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(authCfg))

		r.Post("/authz/evaluate", h.Evaluate)

		r.Route("/acls", func(r chi.Router) {
			r.Get("/", h.ListOwnACLs)
			r.Get("/{targetType}/{targetID}", h.GetACL)
			r.Put("/{targetType}/{targetID}", h.PutACL)
			r.Delete("/{targetType}/{targetID}", h.DeleteACL)
		})
	})

	return r
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyCheck reports readiness, including backing-store reachability.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		if err := h.pinger.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "readiness probe failed", logger.Error(err))
			respondError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type evaluateRequest struct {
	TargetID   string `json:"target_id"`
	TargetType string `json:"target_type"`
	Permission string `json:"permission"`
}

type evaluateResponse struct {
	Allowed bool `json:"allowed"`
}

// Evaluate decides whether the caller holds a permission on a target.
// Anonymous callers are evaluated too; guest entries may still allow them.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TargetID == "" || req.TargetType == "" || req.Permission == "" {
		respondError(w, http.StatusBadRequest, "target_id, target_type and permission are required")
		return
	}

	ctx := r.Context()
	auth := GetAuthentication(ctx)

	allowed, err := h.evaluator.HasPermission(ctx, auth, req.TargetID, req.TargetType, req.Permission)
	if err != nil {
		h.recordDecision(ctx, "error")
		h.auditDecision(ctx, r, auth, req, audit.TypeDecisionFailed)
		slog.ErrorContext(ctx, "evaluation failed",
			logger.TargetID(req.TargetID),
			logger.TargetType(req.TargetType),
			logger.Permission(req.Permission),
			logger.Error(err),
		)
		respondError(w, http.StatusBadGateway, "could not evaluate permission")
		return
	}

	if allowed {
		h.recordDecision(ctx, "allow")
		h.auditDecision(ctx, r, auth, req, audit.TypeDecisionAllowed)
	} else {
		h.recordDecision(ctx, "deny")
		h.auditDecision(ctx, r, auth, req, audit.TypeDecisionDenied)
	}

	slog.InfoContext(ctx, "authz_decision",
		logger.Principal(principalName(auth)),
		logger.TargetID(req.TargetID),
		logger.TargetType(req.TargetType),
		logger.Permission(req.Permission),
		logger.Decision(allowed),
	)
	respondJSON(w, http.StatusOK, evaluateResponse{Allowed: allowed})
}

// GetACL returns the stored ACL of a target in its wire form. Requires the
// administration permission on the target; the owner passes implicitly.
func (h *Handler) GetACL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := chi.URLParam(r, "targetID")
	targetType := chi.URLParam(r, "targetType")

	if !h.requireAdministration(w, r, targetID, targetType) {
		return
	}

	a, err := h.acls.FindACL(ctx, targetID, targetType)
	if err != nil {
		if errors.Is(err, authz.ErrACLNotFound) {
			respondError(w, http.StatusNotFound, "acl not found")
			return
		}
		slog.ErrorContext(ctx, "failed to load acl", logger.Error(err))
		respondError(w, http.StatusBadGateway, "could not load acl")
		return
	}

	respondJSON(w, http.StatusOK, h.mapper.MapToRecord(a))
}

// PutACL creates or replaces the ACL of a target. Creation requires an
// authenticated caller, who becomes owner unless the payload names one;
// replacement requires the administration permission or ownership.
func (h *Handler) PutACL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := chi.URLParam(r, "targetID")
	targetType := chi.URLParam(r, "targetType")

	auth := GetAuthentication(ctx)
	if auth == nil || auth.Name() == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var rec acl.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	_, err := h.acls.FindACL(ctx, targetID, targetType)
	existing := true
	if err != nil {
		if !errors.Is(err, authz.ErrACLNotFound) {
			slog.ErrorContext(ctx, "failed to load acl", logger.Error(err))
			respondError(w, http.StatusBadGateway, "could not load acl")
			return
		}
		existing = false
	}

	if existing && !h.requireAdministration(w, r, targetID, targetType) {
		return
	}
	if rec.Owner == "" {
		rec.Owner = auth.Name()
	}

	// Normalize through the mapper so defaults and admin access are applied
	// the same way on every write path.
	stored := h.mapper.MapToRecord(h.mapper.Map(&rec))

	if err := h.acls.SaveACL(ctx, targetID, targetType, stored); err != nil {
		slog.ErrorContext(ctx, "failed to save acl", logger.Error(err))
		respondError(w, http.StatusBadGateway, "could not save acl")
		return
	}

	eventType := audit.TypeACLReplaced
	status := http.StatusOK
	if !existing {
		eventType = audit.TypeACLCreated
		status = http.StatusCreated
	}
	h.auditLogger.Log(ctx, audit.Event{
		Type:       eventType,
		ActorID:    auth.Name(),
		TargetID:   targetID,
		TargetType: targetType,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
		Metadata:   map[string]any{"owner": stored.Owner},
	})
	respondJSON(w, status, stored)
}

// DeleteACL removes the ACL of a target. Requires the administration
// permission or ownership.
func (h *Handler) DeleteACL(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	targetID := chi.URLParam(r, "targetID")
	targetType := chi.URLParam(r, "targetType")

	auth := GetAuthentication(ctx)
	if auth == nil || auth.Name() == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	if !h.requireAdministration(w, r, targetID, targetType) {
		return
	}

	if err := h.acls.DeleteACL(ctx, targetID, targetType); err != nil {
		if errors.Is(err, authz.ErrACLNotFound) {
			respondError(w, http.StatusNotFound, "acl not found")
			return
		}
		slog.ErrorContext(ctx, "failed to delete acl", logger.Error(err))
		respondError(w, http.StatusBadGateway, "could not delete acl")
		return
	}

	h.auditLogger.Log(ctx, audit.Event{
		Type:       audit.TypeACLDeleted,
		ActorID:    auth.Name(),
		TargetID:   targetID,
		TargetType: targetType,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListOwnACLs lists references to the resources the caller owns.
func (h *Handler) ListOwnACLs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	auth := GetAuthentication(ctx)
	if auth == nil || auth.Name() == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	refs, err := h.acls.ListByOwner(ctx, auth.Name())
	if err != nil {
		slog.ErrorContext(ctx, "failed to list acls", logger.Error(err))
		respondError(w, http.StatusBadGateway, "could not list acls")
		return
	}

	type ref struct {
		TargetID   string `json:"target_id"`
		TargetType string `json:"target_type"`
	}
	out := make([]ref, 0, len(refs))
	for _, re := range refs {
		out = append(out, ref{TargetID: re.ID, TargetType: re.Type})
	}
	respondJSON(w, http.StatusOK, out)
}

// requireAdministration enforces the administration permission on the
// target. The evaluator's owner bypass admits the owner. Writes the error
// response and returns false when the caller may not proceed.
func (h *Handler) requireAdministration(w http.ResponseWriter, r *http.Request, targetID, targetType string) bool {
	ctx := r.Context()
	auth := GetAuthentication(ctx)

	allowed, err := h.evaluator.HasPermission(ctx, auth, targetID, targetType, acl.PermissionAdministration)
	if err != nil {
		slog.ErrorContext(ctx, "administration check failed", logger.Error(err))
		respondError(w, http.StatusBadGateway, "could not evaluate permission")
		return false
	}
	if !allowed {
		respondError(w, http.StatusForbidden, "administration permission required")
		return false
	}
	return true
}

func (h *Handler) recordDecision(ctx context.Context, outcome string) {
	if h.decisions == nil {
		return
	}
	h.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", outcome)))
}

func (h *Handler) auditDecision(ctx context.Context, r *http.Request, auth authz.Authentication, req evaluateRequest, eventType string) {
	h.auditLogger.Log(ctx, audit.Event{
		Type:       eventType,
		ActorID:    principalName(auth),
		TargetID:   req.TargetID,
		TargetType: req.TargetType,
		Permission: req.Permission,
		IPAddress:  r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	})
}

func principalName(auth authz.Authentication) string {
	if auth == nil {
		return ""
	}
	return auth.Name()
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
