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
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/accessctl/internal/authz"
	"github.com/opentrusty/accessctl/internal/observability/logger"
)

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Log request start
			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthConfig configures bearer-token authentication. An empty JWTSecret
// selects trusted-gateway mode: tokens are decoded without signature
// verification, assuming the upstream gateway already verified them. The
// evaluator itself treats a missing token as an anonymous caller; endpoints
// that require identity enforce it themselves.
type AuthConfig struct {
	JWTSecret        string
	AuthoritiesClaim string
}

// AuthMiddleware extracts the caller's identity from a bearer token and
// attaches it to the request context. Requests without a token pass through
// anonymously; a malformed or badly signed token is rejected.
func AuthMiddleware(cfg AuthConfig) func(next http.Handler) http.Handler {
	claim := cfg.AuthoritiesClaim
	if claim == "" {
		claim = "authorities"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				respondError(w, http.StatusUnauthorized, "unsupported authorization scheme")
				return
			}

			auth, err := parseToken(raw, cfg.JWTSecret, claim)
			if err != nil {
				slog.WarnContext(r.Context(), "rejected bearer token", logger.Error(err))
				respondError(w, http.StatusUnauthorized, "invalid bearer token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthentication(r.Context(), auth)))
		})
	}
}

func parseToken(raw, secret, authoritiesClaim string) (*authz.TokenAuthentication, error) {
	var claims jwt.MapClaims
	if secret == "" {
		// Trusted-gateway mode: decode only.
		parser := jwt.NewParser()
		if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
	} else {
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return []byte(secret), nil
		})
		if err != nil {
			return nil, fmt.Errorf("verify token: %w", err)
		}
		if !token.Valid {
			return nil, fmt.Errorf("token is not valid")
		}
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	return &authz.TokenAuthentication{
		Subject: subject,
		Roles:   stringClaim(claims, authoritiesClaim),
		Raw:     raw,
	}, nil
}

// stringClaim reads a claim that may be a JSON string array or a single
// space-separated string (the scope convention).
func stringClaim(claims jwt.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(v)
	default:
		return nil
	}
}
