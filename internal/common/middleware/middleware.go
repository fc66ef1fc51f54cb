// Package middleware holds the cross-cutting HTTP concerns every service's
// mux wraps its handlers with: CORS, request logging, panic recovery, request
// IDs, and RS256 bearer-token authentication.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mercuriabank/backend/internal/common/apierr"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/tokenvalidator"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	subjectKey
	scopeKey
	authHeaderKey
)

// RequestID injects a per-request identifier, reusing an inbound
// X-Request-ID if the caller (e.g. the gateway) already minted one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request id set by RequestID, or "" if
// none is present.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key, X-Request-ID")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func Logging(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Infof("%s %s %d %s request_id=%s", r.Method, r.URL.Path, sw.status, time.Since(start), RequestIDFromContext(r.Context()))
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Errorf("panic recovered: %v request_id=%s", rec, RequestIDFromContext(r.Context()))
					WriteError(w, r, apierr.Internal("internal server error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Auth verifies the bearer token on every request using v, and stores the
// validated subject/scope in the request context for downstream handlers.
// When allowedScopes is non-empty, the token's space-separated scope claim
// must contain at least one of them (spec §4.1: Wallet accepts {access,
// wallet_access}, every other service requires plain {access}).
func Auth(v *tokenvalidator.Validator, allowedScopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
				WriteError(w, r, apierr.Unauthenticated("missing bearer token"))
				return
			}
			tokenString := header[len(prefix):]

			claims, err := v.Validate(tokenString)
			if err != nil {
				WriteError(w, r, apierr.As(err))
				return
			}

			if len(allowedScopes) > 0 && !hasAllowedScope(claims.Scope, allowedScopes) {
				WriteError(w, r, apierr.Forbidden("token scope does not permit this operation"))
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
			ctx = context.WithValue(ctx, scopeKey, claims.Scope)
			ctx = context.WithValue(ctx, authHeaderKey, header)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasAllowedScope(tokenScope string, allowed []string) bool {
	for _, granted := range strings.Fields(tokenScope) {
		for _, want := range allowed {
			if granted == want {
				return true
			}
		}
	}
	return false
}

// Subject returns the authenticated caller's subject (user id), as set by
// Auth.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// WithSubject lets tests build a request context as if Auth had already run,
// without standing up a real JWKS endpoint.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

func Scope(ctx context.Context) string {
	s, _ := ctx.Value(scopeKey).(string)
	return s
}

// WithAuthorization stashes the inbound Authorization header on ctx so a
// service can forward it verbatim on outbound calls to sibling services,
// mirroring the teacher's SetAuthorizationInContext pattern.
func WithAuthorization(ctx context.Context, header string) context.Context {
	return context.WithValue(ctx, authHeaderKey, header)
}

func AuthorizationFromContext(ctx context.Context) string {
	h, _ := ctx.Value(authHeaderKey).(string)
	return h
}

// WriteError renders err as the uniform {error, detail, request_id} envelope.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.As(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status())
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":      string(apiErr.Kind),
		"detail":     apiErr.Message,
		"request_id": RequestIDFromContext(r.Context()),
	})
}
