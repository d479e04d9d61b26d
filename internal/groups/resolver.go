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

// Package groups resolves the group memberships of a calling principal.
// The HTTP resolver asks a remote group service; the static resolver serves
// deployments whose memberships are fixed configuration.
package groups

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/opentrusty/accessctl/internal/authz"
	"github.com/opentrusty/accessctl/internal/observability/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// tokenCarrier is implemented by authentications that hold the caller's
// compact bearer token. The HTTP resolver forwards it so the group service
// sees the original caller.
type tokenCarrier interface {
	Token() string
}

// HTTPResolver resolves group membership from a remote group service that
// answers GET <url> with a JSON string array of group names.
type HTTPResolver struct {
	url     string
	client  *http.Client
	lookups metric.Int64Counter
}

// NewHTTPResolver creates a resolver for the membership URL.
func NewHTTPResolver(url string, timeout time.Duration) *HTTPResolver {
	meter := otel.Meter("accessctl/groups")
	lookups, err := meter.Int64Counter(
		"authz_group_lookups_total",
		metric.WithDescription("Remote group membership lookups by outcome"),
	)
	if err != nil {
		slog.Error("failed to create group lookup counter", logger.Error(err))
	}
	return &HTTPResolver{
		url: url,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lookups: lookups,
	}
}

// ResolveMembership fetches the principal's current group names. The
// caller's context governs cancellation; a cancelled context aborts the
// request and surfaces the context error.
func (r *HTTPResolver) ResolveMembership(ctx context.Context, auth authz.Authentication) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build membership request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if carrier, ok := auth.(tokenCarrier); ok && carrier.Token() != "" {
		req.Header.Set("Authorization", "Bearer "+carrier.Token())
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.recordLookup(ctx, "error")
		return nil, fmt.Errorf("request group membership: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		r.recordLookup(ctx, "error")
		return nil, fmt.Errorf("group service returned %d: %s", resp.StatusCode, body)
	}

	var membership []string
	if err := json.NewDecoder(resp.Body).Decode(&membership); err != nil {
		r.recordLookup(ctx, "error")
		return nil, fmt.Errorf("decode group membership: %w", err)
	}
	r.recordLookup(ctx, "ok")
	return membership, nil
}

func (r *HTTPResolver) recordLookup(ctx context.Context, outcome string) {
	if r.lookups == nil {
		return
	}
	r.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// StaticResolver resolves membership from a fixed principal-to-groups map.
type StaticResolver struct {
	memberships map[string][]string
}

// NewStaticResolver creates a resolver over the given memberships.
func NewStaticResolver(memberships map[string][]string) *StaticResolver {
	if memberships == nil {
		memberships = make(map[string][]string)
	}
	return &StaticResolver{memberships: memberships}
}

// ResolveMembership returns the configured groups of the principal, empty
// when unknown.
func (r *StaticResolver) ResolveMembership(_ context.Context, auth authz.Authentication) ([]string, error) {
	if auth == nil || auth.Name() == "" {
		return nil, nil
	}
	return r.memberships[auth.Name()], nil
}
